package eligibility

import (
	"time"

	"bprd-credits/internal/domain"

	"github.com/google/uuid"
)

// Candidate is a history entry with the credits still available from it.
type Candidate struct {
	EntryID      uuid.UUID
	Organization string
	CompletedAt  time.Time
	EntryCredits float64
	Available    float64
}

// Selection is the FIFO draw against a set of candidates.
type Selection struct {
	Contributions []domain.Contribution `json:"contributions"`
	Total         float64               `json:"selected_credits"`
	Available     float64               `json:"available_credits"`
}

// Select consumes candidates in order until required is reached. The last
// entry may be drawn partially. When the candidates cannot cover required,
// the partial selection is returned with ErrInsufficientCredits.
func Select(cands []Candidate, required float64) (Selection, error) {
	var sel Selection
	for _, c := range cands {
		if c.Available > 0 {
			sel.Available = domain.RoundCredits(sel.Available + c.Available)
		}
	}
	for _, c := range cands {
		if sel.Total >= required {
			break
		}
		if c.Available <= 0 {
			continue
		}
		take := c.Available
		if rem := domain.RoundCredits(required - sel.Total); take > rem {
			take = rem
		}
		sel.Contributions = append(sel.Contributions, domain.Contribution{
			EntryID:         c.EntryID,
			Organization:    c.Organization,
			CompletedAt:     c.CompletedAt,
			EntryCredits:    c.EntryCredits,
			CreditsConsumed: take,
		})
		sel.Total = domain.RoundCredits(sel.Total + take)
	}
	if sel.Total < required {
		return sel, domain.ErrInsufficientCredits
	}
	return sel, nil
}
