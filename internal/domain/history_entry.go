package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryEntry is one credit-earning event (a completed course). Entries are
// append-only; Count is the running total of credits earned by the student in
// the umbrella, including this entry.
type HistoryEntry struct {
	EntryID          uuid.UUID  `gorm:"column:entry_id;type:uuid;primaryKey" json:"entry_id"`
	StudentID        string     `gorm:"column:student_id;type:varchar(64);not null;index:idx_history_student_umbrella,priority:1" json:"student_id"`
	Umbrella         string     `gorm:"column:umbrella;type:varchar(64);not null;index:idx_history_student_umbrella,priority:2" json:"umbrella"`
	Organization     string     `gorm:"column:organization;not null" json:"organization"`
	TheoryHours      float64    `gorm:"column:theory_hours;type:decimal(18,2);not null;default:0" json:"theory_hours"`
	PracticalHours   float64    `gorm:"column:practical_hours;type:decimal(18,2);not null;default:0" json:"practical_hours"`
	TheoryCredits    float64    `gorm:"column:theory_credits;type:decimal(18,2);not null;default:0" json:"theory_credits"`
	PracticalCredits float64    `gorm:"column:practical_credits;type:decimal(18,2);not null;default:0" json:"practical_credits"`
	Credits          float64    `gorm:"column:credits;type:decimal(18,2);not null" json:"credits"`
	Count            float64    `gorm:"column:count;type:decimal(18,2);not null" json:"count"`
	CompletedAt      time.Time  `gorm:"column:completed_at;not null" json:"completed_at"`
	SourceRequestID  *uuid.UUID `gorm:"column:source_request_id;type:uuid;uniqueIndex" json:"source_request_id"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func (HistoryEntry) TableName() string {
	return "HistoryEntries"
}

func (h *HistoryEntry) BeforeCreate(tx *gorm.DB) error {
	if h.EntryID == uuid.Nil {
		h.EntryID = uuid.New()
	}
	return nil
}
