package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Status is the derived state of a dual-approval record.
type Status string

const (
	StatusPending       Status = "pending"
	StatusPocApproved   Status = "poc_approved"
	StatusAdminApproved Status = "admin_approved"
	StatusApproved      Status = "approved"
	StatusDeclined      Status = "declined"
)

// Role is the approver acting on a record.
type Role string

const (
	RolePOC   Role = "poc"
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePOC:
		return RolePOC, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", ErrInvalidRole
}

// DeriveStatus is the only place a status is computed from the flags.
func DeriveStatus(pocApproved, adminApproved, declined bool) Status {
	switch {
	case declined:
		return StatusDeclined
	case pocApproved && adminApproved:
		return StatusApproved
	case pocApproved:
		return StatusPocApproved
	case adminApproved:
		return StatusAdminApproved
	default:
		return StatusPending
	}
}

// Approval holds the two independent approval flags shared by claims and
// pending credits. Status is persisted for querying but always written
// together with the flags by Approve, Decline and AutoDecline.
type Approval struct {
	PocApproved     bool       `gorm:"column:poc_approved;not null;default:false;index" json:"poc_approved"`
	PocApprovedAt   *time.Time `gorm:"column:poc_approved_at" json:"poc_approved_at"`
	PocApprovedBy   *string    `gorm:"column:poc_approved_by" json:"poc_approved_by"`
	AdminApproved   bool       `gorm:"column:admin_approved;not null;default:false;index" json:"admin_approved"`
	AdminApprovedAt *time.Time `gorm:"column:admin_approved_at" json:"admin_approved_at"`
	AdminApprovedBy *string    `gorm:"column:admin_approved_by" json:"admin_approved_by"`
	Declined        bool       `gorm:"column:declined;not null;default:false;index" json:"declined"`
	DeclinedAt      *time.Time `gorm:"column:declined_at" json:"declined_at"`
	DeclinedBy      *string    `gorm:"column:declined_by" json:"declined_by"`
	DeclinedRole    *string    `gorm:"column:declined_role" json:"declined_role"`
	DeclineReason   *string    `gorm:"column:decline_reason" json:"decline_reason"`
	Status          Status     `gorm:"column:status;type:varchar(20);not null;default:'pending';index" json:"status"`
}

// Complete reports whether both approvers have signed off.
func (a Approval) Complete() bool {
	return a.PocApproved && a.AdminApproved && !a.Declined
}

func (a Approval) ApprovedBy(role Role) bool {
	if role == RolePOC {
		return a.PocApproved
	}
	return a.AdminApproved
}

// Approve sets the flag for role and returns the column updates to persist.
// A second approval by the same role fails with ErrAlreadyApproved; the user
// who set the other flag cannot set this one (ErrSameApprover).
func (a *Approval) Approve(role Role, actor string, at time.Time) (map[string]interface{}, error) {
	if role != RolePOC && role != RoleAdmin {
		return nil, ErrInvalidRole
	}
	if a.Declined {
		return nil, ErrInvalidTransition
	}
	if a.ApprovedBy(role) {
		return nil, ErrAlreadyApproved
	}
	other := a.AdminApprovedBy
	if role == RoleAdmin {
		other = a.PocApprovedBy
	}
	if other != nil && *other == actor {
		return nil, ErrSameApprover
	}
	updates := map[string]interface{}{}
	if role == RolePOC {
		a.PocApproved, a.PocApprovedAt, a.PocApprovedBy = true, &at, &actor
		updates["poc_approved"] = true
		updates["poc_approved_at"] = at
		updates["poc_approved_by"] = actor
	} else {
		a.AdminApproved, a.AdminApprovedAt, a.AdminApprovedBy = true, &at, &actor
		updates["admin_approved"] = true
		updates["admin_approved_at"] = at
		updates["admin_approved_by"] = actor
	}
	a.Status = DeriveStatus(a.PocApproved, a.AdminApproved, a.Declined)
	updates["status"] = string(a.Status)
	return updates, nil
}

// Decline moves a non-terminal record to declined. Records that already have
// both approvals cannot be declined by an approver.
func (a *Approval) Decline(role Role, actor, reason string, at time.Time) (map[string]interface{}, error) {
	if role != RolePOC && role != RoleAdmin {
		return nil, ErrInvalidRole
	}
	if a.Declined || a.Complete() {
		return nil, ErrInvalidTransition
	}
	return a.decline(string(role), actor, reason, at), nil
}

// AutoDecline declines on behalf of the system, regardless of approvals.
func (a *Approval) AutoDecline(reason string, at time.Time) map[string]interface{} {
	return a.decline("system", "system", reason, at)
}

func (a *Approval) decline(role, actor, reason string, at time.Time) map[string]interface{} {
	a.Declined, a.DeclinedAt, a.DeclinedBy, a.DeclinedRole = true, &at, &actor, &role
	var r *string
	if reason != "" {
		r = &reason
	}
	a.DeclineReason = r
	a.Status = DeriveStatus(a.PocApproved, a.AdminApproved, a.Declined)
	return map[string]interface{}{
		"declined":       true,
		"declined_at":    at,
		"declined_by":    actor,
		"declined_role":  role,
		"decline_reason": r,
		"status":         string(a.Status),
	}
}

// PocQueue scopes a query to records awaiting the POC: no approvals yet.
func PocQueue(db *gorm.DB) *gorm.DB {
	return db.Where("poc_approved = ? AND admin_approved = ? AND declined = ?", false, false, false)
}

// AdminQueue scopes a query to records the POC approved and the admin has not.
func AdminQueue(db *gorm.DB) *gorm.DB {
	return db.Where("poc_approved = ? AND admin_approved = ? AND declined = ?", true, false, false)
}

// FullyApproved scopes a query to records with both approvals and no decline.
func FullyApproved(db *gorm.DB) *gorm.DB {
	return db.Where("poc_approved = ? AND admin_approved = ? AND declined = ?", true, true, false)
}
