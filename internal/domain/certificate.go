package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Certificate is issued exactly once per claim; the unique index on claim_id
// backs the idempotency check in finalize.
type Certificate struct {
	CertificateID     uuid.UUID     `gorm:"column:certificate_id;type:uuid;primaryKey" json:"certificate_id"`
	CertificateNumber string        `gorm:"column:certificate_number;uniqueIndex;not null" json:"certificate_number"`
	ClaimID           uuid.UUID     `gorm:"column:claim_id;type:uuid;uniqueIndex;not null" json:"claim_id"`
	StudentID         string        `gorm:"column:student_id;type:varchar(64);not null;index" json:"student_id"`
	Umbrella          string        `gorm:"column:umbrella;type:varchar(64);not null" json:"umbrella"`
	Qualification     Qualification `gorm:"column:qualification;type:varchar(20);not null" json:"qualification"`
	Credits           float64       `gorm:"column:credits;type:decimal(18,2);not null" json:"credits"`
	Sequence          int64         `gorm:"column:sequence;not null" json:"sequence"`
	IssuedAt          time.Time     `gorm:"column:issued_at;not null" json:"issued_at"`
	CreatedAt         time.Time     `json:"createdAt"`
}

func (Certificate) TableName() string {
	return "Certificates"
}

func (c *Certificate) BeforeCreate(tx *gorm.DB) error {
	if c.CertificateID == uuid.Nil {
		c.CertificateID = uuid.New()
	}
	return nil
}

// CertificateSequence is the last certificate number handed out per umbrella.
type CertificateSequence struct {
	Umbrella   string    `gorm:"column:umbrella;type:varchar(64);primaryKey" json:"umbrella"`
	LastNumber int64     `gorm:"column:last_number;not null;default:0" json:"last_number"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (CertificateSequence) TableName() string {
	return "CertificateSequences"
}

// CertificateNumber formats prefix_umbrella_N, e.g. BPRD_Cyber_Security_1.
func CertificateNumber(prefix, umbrella string, seq int64) string {
	return fmt.Sprintf("%s_%s_%d", prefix, umbrella, seq)
}
