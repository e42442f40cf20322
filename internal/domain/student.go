package domain

import (
	"time"
)

// Student is the ledger record of one student. Per-umbrella balances live in
// UmbrellaBalance rows; TotalCredits is their sum and is updated in the same
// transaction as every balance change.
type Student struct {
	StudentID    string    `gorm:"column:student_id;type:varchar(64);primaryKey" json:"student_id"`
	Name         string    `gorm:"column:name;not null" json:"name"`
	Email        *string   `gorm:"column:email" json:"email"`
	TotalCredits float64   `gorm:"column:total_credits;type:decimal(18,2);not null;default:0" json:"total_credits"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Student) TableName() string {
	return "Students"
}

// UmbrellaBalance is one entry of a student's umbrella -> balance map.
type UmbrellaBalance struct {
	StudentID string    `gorm:"column:student_id;type:varchar(64);primaryKey" json:"student_id"`
	Umbrella  string    `gorm:"column:umbrella;type:varchar(64);primaryKey" json:"umbrella"`
	Balance   float64   `gorm:"column:balance;type:decimal(18,2);not null;default:0" json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (UmbrellaBalance) TableName() string {
	return "UmbrellaBalances"
}

// Ledger is the read model returned for a student: balances keyed by umbrella.
type Ledger struct {
	StudentID    string             `json:"student_id"`
	Balances     map[string]float64 `json:"balances"`
	TotalCredits float64            `json:"total_credits"`
}

// Sum returns the sum of all umbrella balances, rounded to ledger precision.
func (l Ledger) Sum() float64 {
	var total float64
	for _, b := range l.Balances {
		total += b
	}
	return RoundCredits(total)
}
