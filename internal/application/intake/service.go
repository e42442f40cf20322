package intake

import (
	"context"
	"errors"
	"strings"
	"time"

	"bprd-credits/internal/application/ledger"
	"bprd-credits/internal/application/notifications"
	"bprd-credits/internal/domain"
	"bprd-credits/internal/pkg/umbrella"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service takes course-completion submissions through POC and admin approval
// and credits the ledger once both have signed off.
type Service struct {
	DB        *gorm.DB
	Ledger    *ledger.Service
	Umbrellas *umbrella.Table
	Notifier  notifications.Sender
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) canonical(name string) (string, error) {
	if s.Umbrellas != nil {
		return s.Umbrellas.Canonicalize(name)
	}
	return umbrella.Canonicalize(name)
}

type SubmitInput struct {
	StudentID      string
	Organization   string
	Discipline     string
	TheoryHours    float64
	PracticalHours float64
	DocumentPath   *string
	CompletedAt    *time.Time
}

func (s *Service) Submit(ctx context.Context, in SubmitInput) (*domain.PendingCredit, error) {
	umbrellaKey, err := s.canonical(in.Discipline)
	if err != nil {
		return nil, err
	}
	breakdown, err := domain.ComputeCredits(in.TheoryHours, in.PracticalHours)
	if err != nil {
		return nil, err
	}
	studentID := strings.TrimSpace(in.StudentID)
	if _, err := s.Ledger.Student(ctx, nil, studentID); err != nil {
		return nil, err
	}
	req := &domain.PendingCredit{
		StudentID:      studentID,
		Organization:   strings.TrimSpace(in.Organization),
		Discipline:     strings.TrimSpace(in.Discipline),
		Umbrella:       umbrellaKey,
		TheoryHours:    in.TheoryHours,
		PracticalHours: in.PracticalHours,
		Credits:        breakdown.Total,
		DocumentPath:   in.DocumentPath,
		CompletedAt:    in.CompletedAt,
		Approval:       domain.Approval{Status: domain.StatusPending},
	}
	if err := s.DB.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

// ApproveResult is the request after approval plus the history entry written
// when the approval completed it.
type ApproveResult struct {
	Request *domain.PendingCredit `json:"request"`
	Entry   *domain.HistoryEntry  `json:"entry,omitempty"`
}

// Approve records one approver's flag. The approval that completes the pair
// credits the ledger and archives the request in the same transaction.
func (s *Service) Approve(ctx context.Context, requestID uuid.UUID, role domain.Role, actor string) (*ApproveResult, error) {
	var (
		req   domain.PendingCredit
		entry *domain.HistoryEntry
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRequest(tx, requestID, &req); err != nil {
			return err
		}
		updates, err := req.Approve(role, actor, s.now())
		if err != nil {
			return err
		}
		if err := tx.Model(&req).Updates(updates).Error; err != nil {
			return err
		}
		if !req.Complete() {
			return nil
		}
		entry, err = s.apply(ctx, tx, &req)
		return err
	})
	if err != nil {
		return nil, err
	}
	if entry != nil {
		s.notify(ctx, req, *entry)
	}
	return &ApproveResult{Request: &req, Entry: entry}, nil
}

// Apply credits a fully approved request. Re-running it against an applied
// request returns the original history entry and changes nothing.
func (s *Service) Apply(ctx context.Context, requestID uuid.UUID) (*domain.HistoryEntry, error) {
	var (
		req     domain.PendingCredit
		entry   *domain.HistoryEntry
		applied bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRequest(tx, requestID, &req); err != nil {
			return err
		}
		if req.Applied {
			var existing domain.HistoryEntry
			if err := tx.Where("source_request_id = ?", req.RequestID).First(&existing).Error; err != nil {
				return err
			}
			entry = &existing
			return nil
		}
		if !req.Complete() {
			return domain.ErrInvalidTransition
		}
		var err error
		entry, err = s.apply(ctx, tx, &req)
		applied = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}
	if applied {
		s.notify(ctx, req, *entry)
	}
	return entry, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, req *domain.PendingCredit) (*domain.HistoryEntry, error) {
	breakdown, err := domain.ComputeCredits(req.TheoryHours, req.PracticalHours)
	if err != nil {
		return nil, err
	}
	completed := s.now()
	if req.CompletedAt != nil {
		completed = *req.CompletedAt
	}
	rid := req.RequestID
	entry, err := s.Ledger.Credit(ctx, tx, req.StudentID, req.Umbrella, breakdown.Total, ledger.Event{
		Organization:     req.Organization,
		TheoryHours:      req.TheoryHours,
		PracticalHours:   req.PracticalHours,
		TheoryCredits:    breakdown.TheoryCredits,
		PracticalCredits: breakdown.PracticalCredits,
		CompletedAt:      completed,
		SourceRequestID:  &rid,
	})
	if err != nil {
		return nil, err
	}
	at := s.now()
	req.Applied, req.AppliedAt, req.EntryID = true, &at, &entry.EntryID
	if err := tx.Model(req).Updates(map[string]interface{}{
		"applied":    true,
		"applied_at": at,
		"entry_id":   entry.EntryID,
	}).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// Decline moves a request to declined. Applied requests cannot be declined.
func (s *Service) Decline(ctx context.Context, requestID uuid.UUID, role domain.Role, actor, reason string) (*domain.PendingCredit, error) {
	var req domain.PendingCredit
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRequest(tx, requestID, &req); err != nil {
			return err
		}
		if req.Applied {
			return domain.ErrInvalidTransition
		}
		updates, err := req.Decline(role, actor, strings.TrimSpace(reason), s.now())
		if err != nil {
			return err
		}
		return tx.Model(&req).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Service) notify(ctx context.Context, req domain.PendingCredit, entry domain.HistoryEntry) {
	if s.Notifier == nil {
		return
	}
	st, err := s.Ledger.Student(ctx, nil, req.StudentID)
	if err != nil || st.Email == nil {
		return
	}
	notifications.Dispatch(s.Notifier, "credits_applied", func(ctx context.Context, n notifications.Sender) error {
		return n.CreditsApplied(ctx, notifications.CreditsAppliedEvent{
			To:           notifications.Recipient{Email: *st.Email, Name: st.Name},
			StudentID:    req.StudentID,
			Umbrella:     entry.Umbrella,
			Organization: entry.Organization,
			Credits:      entry.Credits,
			Count:        entry.Count,
		})
	})
}

func lockRequest(tx *gorm.DB, requestID uuid.UUID, req *domain.PendingCredit) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("request_id = ?", requestID).First(req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrPendingCreditNotFound
	}
	return err
}

func (s *Service) Get(ctx context.Context, requestID uuid.UUID) (*domain.PendingCredit, error) {
	var req domain.PendingCredit
	if err := s.DB.WithContext(ctx).Where("request_id = ?", requestID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPendingCreditNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (s *Service) ListByStudent(ctx context.Context, studentID string) ([]domain.PendingCredit, error) {
	var out []domain.PendingCredit
	if err := s.DB.WithContext(ctx).Where("student_id = ?", studentID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) PocQueue(ctx context.Context) ([]domain.PendingCredit, error) {
	var out []domain.PendingCredit
	if err := s.DB.WithContext(ctx).Scopes(domain.PocQueue).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) AdminQueue(ctx context.Context) ([]domain.PendingCredit, error) {
	var out []domain.PendingCredit
	if err := s.DB.WithContext(ctx).Scopes(domain.AdminQueue).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// PendingApply lists fully approved requests not yet credited.
func (s *Service) PendingApply(ctx context.Context) ([]domain.PendingCredit, error) {
	var out []domain.PendingCredit
	if err := s.DB.WithContext(ctx).Scopes(domain.FullyApproved).
		Where("applied = ?", false).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
