package certificates

import (
	"context"
	"errors"
	"time"

	"bprd-credits/internal/application/ledger"
	"bprd-credits/internal/application/notifications"
	"bprd-credits/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const autoDeclineReason = "Insufficient credits at finalize"

// Service issues certificates for fully approved claims.
type Service struct {
	DB       *gorm.DB
	Ledger   *ledger.Service
	Prefix   string
	Notifier notifications.Sender
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) prefix() string {
	if s.Prefix != "" {
		return s.Prefix
	}
	return "BPRD"
}

// Finalize debits the ledger, allocates the next umbrella sequence number and
// creates the certificate, all in one transaction. A claim that already has a
// certificate gets that certificate back without touching the ledger. If the
// balance no longer covers the claim, the claim is declined and
// ErrInsufficientCreditsAtFinalize is returned.
func (s *Service) Finalize(ctx context.Context, claimID uuid.UUID) (*domain.Certificate, error) {
	var (
		cert     *domain.Certificate
		claim    domain.CertificationClaim
		issued   bool
		declined bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("claim_id = ?", claimID).First(&claim).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrClaimNotFound
			}
			return err
		}

		var existing domain.Certificate
		found := tx.Where("claim_id = ?", claimID).Limit(1).Find(&existing)
		if found.Error != nil {
			return found.Error
		}
		if found.RowsAffected > 0 {
			cert = &existing
			return nil
		}
		if claim.Declined || !claim.Complete() {
			return domain.ErrInvalidTransition
		}

		balance, err := s.Ledger.Balance(ctx, tx, claim.StudentID, claim.Umbrella)
		if err != nil {
			return err
		}
		if balance < claim.RequiredCredits {
			declined = true
			return s.autoDecline(tx, &claim)
		}
		if err := s.Ledger.Debit(ctx, tx, claim.StudentID, claim.Umbrella, claim.RequiredCredits); err != nil {
			if errors.Is(err, domain.ErrInsufficientCredits) {
				declined = true
				return s.autoDecline(tx, &claim)
			}
			return err
		}

		seq, err := nextSequence(tx, claim.Umbrella)
		if err != nil {
			return err
		}
		at := s.now()
		cert = &domain.Certificate{
			CertificateNumber: domain.CertificateNumber(s.prefix(), claim.Umbrella, seq),
			ClaimID:           claim.ClaimID,
			StudentID:         claim.StudentID,
			Umbrella:          claim.Umbrella,
			Qualification:     claim.Qualification,
			Credits:           claim.RequiredCredits,
			Sequence:          seq,
			IssuedAt:          at,
		}
		if err := tx.Create(cert).Error; err != nil {
			return err
		}
		issued = true
		return tx.Model(&claim).Updates(map[string]interface{}{
			"finalized_at":   at,
			"certificate_id": cert.CertificateID,
			"inflight_key":   nil,
			"status":         string(domain.StatusApproved),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	if declined {
		log.Ctx(ctx).Warn().Str("claim_id", claimID.String()).Str("student_id", claim.StudentID).
			Str("umbrella", claim.Umbrella).Msg("claim auto-declined at finalize")
		return nil, domain.ErrInsufficientCreditsAtFinalize
	}
	if issued {
		log.Ctx(ctx).Info().Str("claim_id", claimID.String()).Str("certificate_number", cert.CertificateNumber).Msg("certificate issued")
		s.notify(ctx, *cert)
	}
	return cert, nil
}

func (s *Service) autoDecline(tx *gorm.DB, claim *domain.CertificationClaim) error {
	updates := claim.AutoDecline(autoDeclineReason, s.now())
	updates["inflight_key"] = nil
	return tx.Model(claim).Updates(updates).Error
}

// nextSequence increments and returns the umbrella's certificate counter. The
// UPDATE holds the row lock until the surrounding transaction ends.
func nextSequence(tx *gorm.DB, umbrellaKey string) (int64, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.CertificateSequence{Umbrella: umbrellaKey}).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&domain.CertificateSequence{}).
		Where("umbrella = ?", umbrellaKey).
		Update("last_number", gorm.Expr("last_number + 1")).Error; err != nil {
		return 0, err
	}
	var seq domain.CertificateSequence
	if err := tx.Where("umbrella = ?", umbrellaKey).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.LastNumber, nil
}

func (s *Service) notify(ctx context.Context, cert domain.Certificate) {
	if s.Notifier == nil {
		return
	}
	st, err := s.Ledger.Student(ctx, nil, cert.StudentID)
	if err != nil || st.Email == nil {
		return
	}
	notifications.Dispatch(s.Notifier, "certificate_issued", func(ctx context.Context, n notifications.Sender) error {
		return n.CertificateIssued(ctx, notifications.CertificateIssuedEvent{
			To:                notifications.Recipient{Email: *st.Email, Name: st.Name},
			StudentID:         cert.StudentID,
			Umbrella:          cert.Umbrella,
			Qualification:     string(cert.Qualification),
			CertificateNumber: cert.CertificateNumber,
			Credits:           cert.Credits,
		})
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Certificate, error) {
	var cert domain.Certificate
	if err := s.DB.WithContext(ctx).Where("certificate_id = ?", id).First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCertificateNotFound
		}
		return nil, err
	}
	return &cert, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*domain.Certificate, error) {
	var cert domain.Certificate
	if err := s.DB.WithContext(ctx).Where("certificate_number = ?", number).First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCertificateNotFound
		}
		return nil, err
	}
	return &cert, nil
}

func (s *Service) ListByStudent(ctx context.Context, studentID string) ([]domain.Certificate, error) {
	var certs []domain.Certificate
	if err := s.DB.WithContext(ctx).Where("student_id = ?", studentID).Order("issued_at DESC").Find(&certs).Error; err != nil {
		return nil, err
	}
	return certs, nil
}
