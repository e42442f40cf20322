package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"bprd-credits/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns every mutation of student balances. Methods that accept a tx
// join the caller's transaction; a nil tx runs in a transaction of their own.
type Service struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return s.DB.WithContext(ctx)
}

func (s *Service) inTx(ctx context.Context, tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx.WithContext(ctx))
	}
	return s.DB.WithContext(ctx).Transaction(fn)
}

type ProvisionInput struct {
	StudentID string
	Name      string
	Email     *string
}

// Provision creates the ledger record for a student. An existing record is
// returned unchanged with created=false.
func (s *Service) Provision(ctx context.Context, in ProvisionInput) (*domain.Student, bool, error) {
	id := strings.TrimSpace(in.StudentID)
	if id == "" {
		return nil, false, errors.New("student_id is required")
	}
	st := domain.Student{StudentID: id, Name: strings.TrimSpace(in.Name), Email: in.Email}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&st)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &st, true, nil
	}
	existing, err := s.Student(ctx, nil, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Service) Student(ctx context.Context, tx *gorm.DB, studentID string) (*domain.Student, error) {
	var st domain.Student
	if err := s.conn(ctx, tx).Where("student_id = ?", studentID).First(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStudentNotFound
		}
		return nil, err
	}
	return &st, nil
}

// Event describes the course behind a credit, recorded on its history entry.
type Event struct {
	Organization     string
	TheoryHours      float64
	PracticalHours   float64
	TheoryCredits    float64
	PracticalCredits float64
	CompletedAt      time.Time
	SourceRequestID  *uuid.UUID
}

func validAmount(amount float64) (float64, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, domain.ErrInvalidAmount
	}
	return domain.RoundCredits(amount), nil
}

// Credit adds amount to the umbrella balance and the student total, then
// appends a history entry whose Count is the previous count plus amount.
func (s *Service) Credit(ctx context.Context, tx *gorm.DB, studentID, umbrella string, amount float64, ev Event) (*domain.HistoryEntry, error) {
	amount, err := validAmount(amount)
	if err != nil {
		return nil, err
	}
	var entry *domain.HistoryEntry
	err = s.inTx(ctx, tx, func(tx *gorm.DB) error {
		var st domain.Student
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("student_id = ?", studentID).First(&st).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrStudentNotFound
			}
			return err
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&domain.UmbrellaBalance{StudentID: studentID, Umbrella: umbrella}).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.UmbrellaBalance{}).
			Where("student_id = ? AND umbrella = ?", studentID, umbrella).
			Update("balance", gorm.Expr("ROUND(CAST(balance + ? AS NUMERIC), 2)", amount)).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Student{}).
			Where("student_id = ?", studentID).
			Update("total_credits", gorm.Expr("ROUND(CAST(total_credits + ? AS NUMERIC), 2)", amount)).Error; err != nil {
			return err
		}

		prior, err := latestCount(tx, studentID, umbrella)
		if err != nil {
			return err
		}
		completed := ev.CompletedAt
		if completed.IsZero() {
			completed = s.now()
		}
		entry = &domain.HistoryEntry{
			StudentID:        studentID,
			Umbrella:         umbrella,
			Organization:     ev.Organization,
			TheoryHours:      ev.TheoryHours,
			PracticalHours:   ev.PracticalHours,
			TheoryCredits:    ev.TheoryCredits,
			PracticalCredits: ev.PracticalCredits,
			Credits:          amount,
			Count:            domain.RoundCredits(prior + amount),
			CompletedAt:      completed,
			SourceRequestID:  ev.SourceRequestID,
			CreatedAt:        s.now(),
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func latestCount(tx *gorm.DB, studentID, umbrella string) (float64, error) {
	var last domain.HistoryEntry
	if err := tx.Where("student_id = ? AND umbrella = ?", studentID, umbrella).
		Order("created_at DESC").Order("count DESC").
		Limit(1).Find(&last).Error; err != nil {
		return 0, err
	}
	return last.Count, nil
}

// Debit subtracts amount from the umbrella balance and the student total.
// The decrement is a conditional update on the pre-image balance, so two
// racing debits can never take the balance below zero.
func (s *Service) Debit(ctx context.Context, tx *gorm.DB, studentID, umbrella string, amount float64) error {
	amount, err := validAmount(amount)
	if err != nil {
		return err
	}
	return s.inTx(ctx, tx, func(tx *gorm.DB) error {
		res := tx.Model(&domain.UmbrellaBalance{}).
			Where("student_id = ? AND umbrella = ? AND balance >= ?", studentID, umbrella, amount).
			Update("balance", gorm.Expr("ROUND(CAST(balance - ? AS NUMERIC), 2)", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if _, err := s.Student(ctx, tx, studentID); err != nil {
				return err
			}
			return fmt.Errorf("debit %.2f from %s: %w", amount, umbrella, domain.ErrInsufficientCredits)
		}
		return tx.Model(&domain.Student{}).
			Where("student_id = ?", studentID).
			Update("total_credits", gorm.Expr("ROUND(CAST(total_credits - ? AS NUMERIC), 2)", amount)).Error
	})
}

// Balance returns the umbrella balance; an umbrella never credited reads 0.
func (s *Service) Balance(ctx context.Context, tx *gorm.DB, studentID, umbrella string) (float64, error) {
	if _, err := s.Student(ctx, tx, studentID); err != nil {
		return 0, err
	}
	var ub domain.UmbrellaBalance
	if err := s.conn(ctx, tx).Where("student_id = ? AND umbrella = ?", studentID, umbrella).
		Limit(1).Find(&ub).Error; err != nil {
		return 0, err
	}
	return ub.Balance, nil
}

// Ledger returns every umbrella balance for the student plus the stored total.
func (s *Service) Ledger(ctx context.Context, studentID string) (*domain.Ledger, error) {
	st, err := s.Student(ctx, nil, studentID)
	if err != nil {
		return nil, err
	}
	var rows []domain.UmbrellaBalance
	if err := s.DB.WithContext(ctx).Where("student_id = ?", studentID).Order("umbrella ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	l := &domain.Ledger{StudentID: studentID, Balances: make(map[string]float64, len(rows)), TotalCredits: st.TotalCredits}
	for _, r := range rows {
		l.Balances[r.Umbrella] = r.Balance
	}
	return l, nil
}

// History returns history entries oldest-first. An empty umbrella returns all.
func (s *Service) History(ctx context.Context, tx *gorm.DB, studentID, umbrella string) ([]domain.HistoryEntry, error) {
	if _, err := s.Student(ctx, tx, studentID); err != nil {
		return nil, err
	}
	q := s.conn(ctx, tx).Where("student_id = ?", studentID)
	if umbrella != "" {
		q = q.Where("umbrella = ?", umbrella)
	}
	var entries []domain.HistoryEntry
	if err := q.Order("created_at ASC").Order("count ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// RecomputeTotal rewrites total_credits as the sum of umbrella balances and
// reports whether the stored value differed.
func (s *Service) RecomputeTotal(ctx context.Context, tx *gorm.DB, studentID string) (bool, error) {
	fixed := false
	err := s.inTx(ctx, tx, func(tx *gorm.DB) error {
		var st domain.Student
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("student_id = ?", studentID).First(&st).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrStudentNotFound
			}
			return err
		}
		var sum struct{ Total float64 }
		if err := tx.Model(&domain.UmbrellaBalance{}).
			Select("COALESCE(SUM(balance), 0) AS total").
			Where("student_id = ?", studentID).
			Scan(&sum).Error; err != nil {
			return err
		}
		total := domain.RoundCredits(sum.Total)
		if total == domain.RoundCredits(st.TotalCredits) {
			return nil
		}
		fixed = true
		return tx.Model(&domain.Student{}).Where("student_id = ?", studentID).
			Update("total_credits", total).Error
	})
	return fixed, err
}
