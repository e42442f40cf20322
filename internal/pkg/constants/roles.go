// Package constants holds the session roles.
package constants

const (
	Student    = "student"
	POC        = "poc" // point of contact at the training institute; first approver
	Admin      = "admin"
	Superadmin = "superadmin"
)

var staff = map[string]bool{POC: true, Admin: true, Superadmin: true}

// IsValidRole reports whether a session user may carry role.
func IsValidRole(role string) bool {
	return role == Student || staff[role]
}

// IsStaff reports whether role reviews other students' records.
func IsStaff(role string) bool {
	return staff[role]
}
