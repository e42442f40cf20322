package claims

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bprd-credits/internal/application/eligibility"
	"bprd-credits/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Finalizer issues the certificate for a fully approved claim.
type Finalizer interface {
	Finalize(ctx context.Context, claimID uuid.UUID) (*domain.Certificate, error)
}

// Service drives certification claims through dual approval.
type Service struct {
	DB          *gorm.DB
	Eligibility *eligibility.Service
	Issuer      Finalizer
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type CreateInput struct {
	StudentID     string
	Umbrella      string
	Qualification string
	RequestedBy   string
}

// Create opens a pending claim after checking there is no in-flight claim
// for the same student, umbrella and qualification, and that both the
// balance and the FIFO history selection cover the threshold.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.CertificationClaim, error) {
	studentID := strings.TrimSpace(in.StudentID)
	umbrellaKey, err := s.Eligibility.Canonical(in.Umbrella)
	if err != nil {
		return nil, err
	}
	q, err := domain.ParseQualification(in.Qualification)
	if err != nil {
		return nil, err
	}

	var claim *domain.CertificationClaim
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serialize claim creation per student
		var st domain.Student
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("student_id = ?", studentID).First(&st).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrStudentNotFound
			}
			return err
		}

		key := domain.InflightKeyFor(studentID, umbrellaKey, q)
		var inflight int64
		if err := tx.Model(&domain.CertificationClaim{}).Where("inflight_key = ?", key).Count(&inflight).Error; err != nil {
			return err
		}
		if inflight > 0 {
			return domain.ErrDuplicateClaim
		}

		res, err := s.Eligibility.Evaluate(ctx, tx, studentID, umbrellaKey, q)
		if err != nil {
			return err
		}
		if !res.Eligible {
			return fmt.Errorf("%s requires %.2f %s credits, %.2f available: %w",
				q, res.Required, umbrellaKey, res.Balance, domain.ErrInsufficientCredits)
		}

		var requestedBy *string
		if in.RequestedBy != "" {
			requestedBy = &in.RequestedBy
		}
		claim = &domain.CertificationClaim{
			StudentID:        studentID,
			Umbrella:         umbrellaKey,
			Qualification:    q,
			RequiredCredits:  res.Required,
			SelectedCredits:  res.Selection.Total,
			AvailableCredits: res.Balance,
			Contributions:    datatypes.NewJSONType(res.Selection.Contributions),
			RequestedBy:      requestedBy,
			Approval:         domain.Approval{Status: domain.StatusPending},
			InflightKey:      &key,
		}
		if err := tx.Create(claim).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrDuplicateClaim
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// ApproveResult carries the claim after approval and, when the approval
// completed it, the issued certificate.
type ApproveResult struct {
	Claim       *domain.CertificationClaim `json:"claim"`
	Certificate *domain.Certificate        `json:"certificate,omitempty"`
}

// Approve records one approver's flag. When both flags are set the claim is
// finalized; a finalize failure leaves the approval committed so the
// finalize endpoint or the reconciler can retry it.
func (s *Service) Approve(ctx context.Context, claimID uuid.UUID, role domain.Role, actor string) (*ApproveResult, error) {
	var claim domain.CertificationClaim
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockClaim(tx, claimID, &claim); err != nil {
			return err
		}
		if claim.Finalized() {
			return domain.ErrAlreadyFinalized
		}
		updates, err := claim.Approve(role, actor, s.now())
		if err != nil {
			return err
		}
		return tx.Model(&claim).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	out := &ApproveResult{Claim: &claim}
	if !claim.Complete() || s.Issuer == nil {
		return out, nil
	}

	cert, ferr := s.Issuer.Finalize(ctx, claimID)
	if reloaded, err := s.Get(ctx, claimID); err == nil {
		out.Claim = reloaded
	}
	if ferr != nil {
		if !errors.Is(ferr, domain.ErrInsufficientCreditsAtFinalize) {
			log.Ctx(ctx).Error().Err(ferr).Str("claim_id", claimID.String()).Msg("finalize after approval failed")
		}
		return out, ferr
	}
	out.Certificate = cert
	return out, nil
}

// Decline moves a claim to declined. Finalized claims cannot be declined.
func (s *Service) Decline(ctx context.Context, claimID uuid.UUID, role domain.Role, actor, reason string) (*domain.CertificationClaim, error) {
	var claim domain.CertificationClaim
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockClaim(tx, claimID, &claim); err != nil {
			return err
		}
		if claim.Finalized() {
			return domain.ErrAlreadyFinalized
		}
		updates, err := claim.Decline(role, actor, strings.TrimSpace(reason), s.now())
		if err != nil {
			return err
		}
		updates["inflight_key"] = nil
		claim.InflightKey = nil
		return tx.Model(&claim).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// Finalize retries certificate issuance for a fully approved claim.
func (s *Service) Finalize(ctx context.Context, claimID uuid.UUID) (*domain.Certificate, error) {
	if s.Issuer == nil {
		return nil, errors.New("certificate issuer not configured")
	}
	return s.Issuer.Finalize(ctx, claimID)
}

func lockClaim(tx *gorm.DB, claimID uuid.UUID, claim *domain.CertificationClaim) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("claim_id = ?", claimID).First(claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrClaimNotFound
	}
	return err
}

func (s *Service) Get(ctx context.Context, claimID uuid.UUID) (*domain.CertificationClaim, error) {
	var claim domain.CertificationClaim
	if err := s.DB.WithContext(ctx).Where("claim_id = ?", claimID).First(&claim).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrClaimNotFound
		}
		return nil, err
	}
	return &claim, nil
}

func (s *Service) ListByStudent(ctx context.Context, studentID string) ([]domain.CertificationClaim, error) {
	var out []domain.CertificationClaim
	if err := s.DB.WithContext(ctx).Where("student_id = ?", studentID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// PocQueue lists claims with neither approval, oldest first.
func (s *Service) PocQueue(ctx context.Context) ([]domain.CertificationClaim, error) {
	var out []domain.CertificationClaim
	if err := s.DB.WithContext(ctx).Scopes(domain.PocQueue).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// AdminQueue lists claims the POC approved and the admin has not, oldest first.
func (s *Service) AdminQueue(ctx context.Context) ([]domain.CertificationClaim, error) {
	var out []domain.CertificationClaim
	if err := s.DB.WithContext(ctx).Scopes(domain.AdminQueue).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// PendingFinalize lists fully approved claims that have no certificate yet.
func (s *Service) PendingFinalize(ctx context.Context) ([]domain.CertificationClaim, error) {
	var out []domain.CertificationClaim
	if err := s.DB.WithContext(ctx).Scopes(domain.FullyApproved).
		Where("finalized_at IS NULL").Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
