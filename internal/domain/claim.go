package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Contribution records how many credits a claim draws from one history entry.
type Contribution struct {
	EntryID         uuid.UUID `json:"entry_id"`
	Organization    string    `json:"organization"`
	CompletedAt     time.Time `json:"completed_at"`
	EntryCredits    float64   `json:"entry_credits"`
	CreditsConsumed float64   `json:"credits_consumed"`
}

// CertificationClaim is a request to convert umbrella credits into a
// qualification. InflightKey is set while the claim is neither declined nor
// finalized; its unique index rejects a second in-flight claim for the same
// student, umbrella and qualification.
type CertificationClaim struct {
	ClaimID          uuid.UUID                          `gorm:"column:claim_id;type:uuid;primaryKey" json:"claim_id"`
	StudentID        string                             `gorm:"column:student_id;type:varchar(64);not null;index" json:"student_id"`
	Umbrella         string                             `gorm:"column:umbrella;type:varchar(64);not null" json:"umbrella"`
	Qualification    Qualification                      `gorm:"column:qualification;type:varchar(20);not null" json:"qualification"`
	RequiredCredits  float64                            `gorm:"column:required_credits;type:decimal(18,2);not null" json:"required_credits"`
	SelectedCredits  float64                            `gorm:"column:selected_credits;type:decimal(18,2);not null" json:"selected_credits"`
	AvailableCredits float64                            `gorm:"column:available_credits;type:decimal(18,2);not null" json:"available_credits"`
	Contributions    datatypes.JSONType[[]Contribution] `gorm:"column:contributions;type:jsonb" json:"contributions"`
	RequestedBy      *string                            `gorm:"column:requested_by" json:"requested_by"`
	Approval         `gorm:"embedded"`
	InflightKey      *string    `gorm:"column:inflight_key;uniqueIndex" json:"-"`
	FinalizedAt      *time.Time `gorm:"column:finalized_at" json:"finalized_at"`
	CertificateID    *uuid.UUID `gorm:"column:certificate_id;type:uuid" json:"certificate_id"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (CertificationClaim) TableName() string {
	return "CertificationClaims"
}

func (c *CertificationClaim) BeforeCreate(tx *gorm.DB) error {
	if c.ClaimID == uuid.Nil {
		c.ClaimID = uuid.New()
	}
	return nil
}

// InflightKeyFor builds the uniqueness key for in-flight claims.
func InflightKeyFor(studentID, umbrella string, q Qualification) string {
	return fmt.Sprintf("%s|%s|%s", studentID, umbrella, q)
}

func (c CertificationClaim) Finalized() bool {
	return c.FinalizedAt != nil
}
