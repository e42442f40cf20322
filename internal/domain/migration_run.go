package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MigrationRun is the audit row written by every reconciliation or data fix.
type MigrationRun struct {
	RunID      uuid.UUID  `gorm:"column:run_id;type:uuid;primaryKey" json:"run_id"`
	Name       string     `gorm:"column:name;not null;index" json:"name"`
	Scanned    int        `gorm:"column:scanned;not null;default:0" json:"scanned"`
	Fixed      int        `gorm:"column:fixed;not null;default:0" json:"fixed"`
	Failed     int        `gorm:"column:failed;not null;default:0" json:"failed"`
	StartedAt  time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at"`
}

func (MigrationRun) TableName() string {
	return "MigrationRuns"
}

func (m *MigrationRun) BeforeCreate(tx *gorm.DB) error {
	if m.RunID == uuid.Nil {
		m.RunID = uuid.New()
	}
	return nil
}
