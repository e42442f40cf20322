package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PendingCredit is a submitted course completion waiting for POC and admin
// approval. Once applied to the ledger it is archived (Applied=true) rather
// than deleted, and EntryID points at the history entry it produced.
type PendingCredit struct {
	RequestID      uuid.UUID  `gorm:"column:request_id;type:uuid;primaryKey" json:"request_id"`
	StudentID      string     `gorm:"column:student_id;type:varchar(64);not null;index" json:"student_id"`
	Organization   string     `gorm:"column:organization;not null" json:"organization"`
	Discipline     string     `gorm:"column:discipline;not null" json:"discipline"`
	Umbrella       string     `gorm:"column:umbrella;type:varchar(64);not null" json:"umbrella"`
	TheoryHours    float64    `gorm:"column:theory_hours;type:decimal(18,2);not null;default:0" json:"theory_hours"`
	PracticalHours float64    `gorm:"column:practical_hours;type:decimal(18,2);not null;default:0" json:"practical_hours"`
	Credits        float64    `gorm:"column:credits;type:decimal(18,2);not null" json:"credits"`
	DocumentPath   *string    `gorm:"column:document_path" json:"document_path"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completed_at"`
	Approval       `gorm:"embedded"`
	Applied        bool       `gorm:"column:applied;not null;default:false;index" json:"applied"`
	AppliedAt      *time.Time `gorm:"column:applied_at" json:"applied_at"`
	EntryID        *uuid.UUID `gorm:"column:entry_id;type:uuid" json:"entry_id"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (PendingCredit) TableName() string {
	return "PendingCredits"
}

func (p *PendingCredit) BeforeCreate(tx *gorm.DB) error {
	if p.RequestID == uuid.Nil {
		p.RequestID = uuid.New()
	}
	return nil
}
