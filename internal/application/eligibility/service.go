package eligibility

import (
	"context"
	"errors"

	"bprd-credits/internal/application/ledger"
	"bprd-credits/internal/domain"
	"bprd-credits/internal/pkg/umbrella"

	"gorm.io/gorm"
)

// Service decides whether a student can claim a qualification and which
// history entries back the claim.
type Service struct {
	DB         *gorm.DB
	Ledger     *ledger.Service
	Thresholds domain.Thresholds
	Umbrellas  *umbrella.Table
}

// Result is the answer to an eligibility query.
type Result struct {
	StudentID     string               `json:"student_id"`
	Umbrella      string               `json:"umbrella"`
	Qualification domain.Qualification `json:"qualification"`
	Required      float64              `json:"required_credits"`
	Balance       float64              `json:"balance"`
	Eligible      bool                 `json:"eligible"`
	Selection     Selection            `json:"selection"`
}

func (s *Service) Required(q domain.Qualification) (float64, error) {
	t := s.Thresholds
	if t == nil {
		t = domain.DefaultThresholds()
	}
	return t.Required(q)
}

// Canonical resolves a user-supplied umbrella name to its key.
func (s *Service) Canonical(name string) (string, error) {
	if s.Umbrellas != nil {
		return s.Umbrellas.Canonicalize(name)
	}
	return umbrella.Canonicalize(name)
}

// CatalogUmbrella is one claimable umbrella.
type CatalogUmbrella struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// CatalogQualification is one qualification with its threshold.
type CatalogQualification struct {
	Qualification domain.Qualification `json:"qualification"`
	Required      float64              `json:"required_credits"`
}

// Catalog is what a client needs to build a claim form.
type Catalog struct {
	Umbrellas      []CatalogUmbrella      `json:"umbrellas"`
	Qualifications []CatalogQualification `json:"qualifications"`
}

// Catalog lists the configured umbrellas and qualification thresholds.
func (s *Service) Catalog() (*Catalog, error) {
	keys := umbrella.Keys()
	if s.Umbrellas != nil {
		keys = s.Umbrellas.Keys()
	}
	out := &Catalog{
		Umbrellas:      make([]CatalogUmbrella, 0, len(keys)),
		Qualifications: make([]CatalogQualification, 0, len(domain.Qualifications)),
	}
	for _, k := range keys {
		out.Umbrellas = append(out.Umbrellas, CatalogUmbrella{Key: k, Label: umbrella.Display(k)})
	}
	for _, q := range domain.Qualifications {
		req, err := s.Required(q)
		if err != nil {
			return nil, err
		}
		out.Qualifications = append(out.Qualifications, CatalogQualification{Qualification: q, Required: req})
	}
	return out, nil
}

// Candidates lists the student's history entries in the umbrella oldest-first,
// net of credits already drawn by finalized claims.
func (s *Service) Candidates(ctx context.Context, tx *gorm.DB, studentID, umbrellaKey string) ([]Candidate, error) {
	entries, err := s.Ledger.History(ctx, tx, studentID, umbrellaKey)
	if err != nil {
		return nil, err
	}
	conn := s.DB
	if tx != nil {
		conn = tx
	}
	var finalized []domain.CertificationClaim
	if err := conn.WithContext(ctx).
		Where("student_id = ? AND umbrella = ? AND finalized_at IS NOT NULL", studentID, umbrellaKey).
		Find(&finalized).Error; err != nil {
		return nil, err
	}
	consumed := map[string]float64{}
	for _, c := range finalized {
		for _, contrib := range c.Contributions.Data() {
			consumed[contrib.EntryID.String()] += contrib.CreditsConsumed
		}
	}

	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		avail := domain.RoundCredits(e.Credits - consumed[e.EntryID.String()])
		if avail < 0 {
			avail = 0
		}
		out = append(out, Candidate{
			EntryID:      e.EntryID,
			Organization: e.Organization,
			CompletedAt:  e.CompletedAt,
			EntryCredits: e.Credits,
			Available:    avail,
		})
	}
	return out, nil
}

// SelectContributingEntries draws required credits FIFO from the student's
// umbrella history.
func (s *Service) SelectContributingEntries(ctx context.Context, tx *gorm.DB, studentID, umbrellaKey string, required float64) (Selection, error) {
	cands, err := s.Candidates(ctx, tx, studentID, umbrellaKey)
	if err != nil {
		return Selection{}, err
	}
	return Select(cands, required)
}

// Evaluate checks both the live balance and the history selection. A student
// is eligible only when both cover the threshold.
func (s *Service) Evaluate(ctx context.Context, tx *gorm.DB, studentID, umbrellaKey string, q domain.Qualification) (*Result, error) {
	required, err := s.Required(q)
	if err != nil {
		return nil, err
	}
	balance, err := s.Ledger.Balance(ctx, tx, studentID, umbrellaKey)
	if err != nil {
		return nil, err
	}
	sel, selErr := s.SelectContributingEntries(ctx, tx, studentID, umbrellaKey, required)
	if selErr != nil && !errors.Is(selErr, domain.ErrInsufficientCredits) {
		return nil, selErr
	}
	return &Result{
		StudentID:     studentID,
		Umbrella:      umbrellaKey,
		Qualification: q,
		Required:      required,
		Balance:       balance,
		Eligible:      selErr == nil && balance >= required,
		Selection:     sel,
	}, nil
}
