// Package reconcile repairs state left behind by interrupted requests and
// re-derives stored aggregates. Every run is recorded in MigrationRuns.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"bprd-credits/internal/application/claims"
	"bprd-credits/internal/application/intake"
	"bprd-credits/internal/application/ledger"
	"bprd-credits/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	TaskFinalizeApproved = "finalize_approved_claims"
	TaskApplyApproved    = "apply_approved_credits"
	TaskRecomputeTotals  = "recompute_student_totals"
)

// Tasks lists every task in the order Run executes them. Credits are applied
// before claims are finalized so a finalize sees the repaired balance.
var Tasks = []string{TaskApplyApproved, TaskFinalizeApproved, TaskRecomputeTotals}

var ErrUnknownTask = errors.New("unknown reconcile task")

type Service struct {
	DB          *gorm.DB
	Ledger      *ledger.Service
	Claims      *claims.Service
	Intake      *intake.Service
	Concurrency int
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) limit() int {
	if s.Concurrency < 1 {
		return 1
	}
	return s.Concurrency
}

// Run executes the named tasks, or all of them when names is empty.
func (s *Service) Run(ctx context.Context, names ...string) ([]domain.MigrationRun, error) {
	if len(names) == 0 {
		names = Tasks
	}
	runs := make([]domain.MigrationRun, 0, len(names))
	for _, name := range names {
		var (
			run *domain.MigrationRun
			err error
		)
		switch name {
		case TaskFinalizeApproved:
			run, err = s.FinalizeApproved(ctx)
		case TaskApplyApproved:
			run, err = s.ApplyApproved(ctx)
		case TaskRecomputeTotals:
			run, err = s.RecomputeTotals(ctx)
		default:
			return runs, fmt.Errorf("%w: %s", ErrUnknownTask, name)
		}
		if err != nil {
			return runs, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// FinalizeApproved issues certificates for claims whose approvals committed
// but whose finalize never did. A claim auto-declined for insufficient
// credits counts as fixed: it no longer sits half-done.
func (s *Service) FinalizeApproved(ctx context.Context) (*domain.MigrationRun, error) {
	pending, err := s.Claims.PendingFinalize(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(pending))
	for i, c := range pending {
		ids[i] = c.ClaimID
	}
	return s.track(ctx, TaskFinalizeApproved, len(ids), func(ctx context.Context, fixed, failed *int64) error {
		return forEach(ctx, s.limit(), ids, func(ctx context.Context, id uuid.UUID) {
			_, err := s.Claims.Finalize(ctx, id)
			switch {
			case err == nil, errors.Is(err, domain.ErrInsufficientCreditsAtFinalize):
				atomic.AddInt64(fixed, 1)
			default:
				atomic.AddInt64(failed, 1)
				log.Error().Err(err).Str("claim_id", id.String()).Msg("reconcile: finalize failed")
			}
		})
	})
}

// ApplyApproved credits pending requests that are fully approved but not applied.
func (s *Service) ApplyApproved(ctx context.Context) (*domain.MigrationRun, error) {
	pending, err := s.Intake.PendingApply(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(pending))
	for i, r := range pending {
		ids[i] = r.RequestID
	}
	return s.track(ctx, TaskApplyApproved, len(ids), func(ctx context.Context, fixed, failed *int64) error {
		return forEach(ctx, s.limit(), ids, func(ctx context.Context, id uuid.UUID) {
			if _, err := s.Intake.Apply(ctx, id); err != nil {
				atomic.AddInt64(failed, 1)
				log.Error().Err(err).Str("request_id", id.String()).Msg("reconcile: apply failed")
				return
			}
			atomic.AddInt64(fixed, 1)
		})
	})
}

// RecomputeTotals sets every student's total_credits to the sum of their
// umbrella balances. Running it twice fixes nothing the second time.
func (s *Service) RecomputeTotals(ctx context.Context) (*domain.MigrationRun, error) {
	var ids []string
	if err := s.DB.WithContext(ctx).Model(&domain.Student{}).Order("student_id ASC").Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	return s.track(ctx, TaskRecomputeTotals, len(ids), func(ctx context.Context, fixed, failed *int64) error {
		return forEach(ctx, s.limit(), ids, func(ctx context.Context, id string) {
			changed, err := s.Ledger.RecomputeTotal(ctx, nil, id)
			if err != nil {
				atomic.AddInt64(failed, 1)
				log.Error().Err(err).Str("student_id", id).Msg("reconcile: recompute failed")
				return
			}
			if changed {
				atomic.AddInt64(fixed, 1)
			}
		})
	})
}

// track writes the run row, runs fn and records its counters.
func (s *Service) track(ctx context.Context, name string, scanned int, fn func(ctx context.Context, fixed, failed *int64) error) (*domain.MigrationRun, error) {
	run := &domain.MigrationRun{Name: name, Scanned: scanned, StartedAt: s.now()}
	if err := s.DB.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	var fixed, failed int64
	runErr := fn(ctx, &fixed, &failed)

	finished := s.now()
	run.Fixed, run.Failed, run.FinishedAt = int(fixed), int(failed), &finished
	if err := s.DB.WithContext(context.WithoutCancel(ctx)).Model(run).Updates(map[string]interface{}{
		"fixed":       run.Fixed,
		"failed":      run.Failed,
		"finished_at": finished,
	}).Error; err != nil {
		return nil, err
	}
	log.Info().
		Str("task", name).
		Int("scanned", run.Scanned).
		Int("fixed", run.Fixed).
		Int("failed", run.Failed).
		Dur("took", finished.Sub(run.StartedAt)).
		Msg("reconcile task finished")
	return run, runErr
}

// forEach calls fn for every item with at most limit in flight. Item
// failures are counted by fn; only cancellation stops the loop.
func forEach[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		item := item
		g.Go(func() error {
			fn(gctx, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
