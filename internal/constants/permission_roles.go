package constants

import roles "bprd-credits/internal/pkg/constants"

// PermissionRoles maps each permission to roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ViewData:         {roles.Student, roles.POC, roles.Admin, roles.Superadmin},
	ProvisionStudent: {roles.Admin, roles.Superadmin},
	RequestClaim:     {roles.Student, roles.Admin, roles.Superadmin},
	SubmitCredit:     {roles.Student, roles.POC, roles.Admin, roles.Superadmin},
	ApproveAsPOC:     {roles.POC, roles.Superadmin},
	ApproveAsAdmin:   {roles.Admin, roles.Superadmin},
	ViewQueuePOC:     {roles.POC, roles.Superadmin},
	ViewQueueAdmin:   {roles.Admin, roles.Superadmin},
	FinalizeClaim:    {roles.Admin, roles.Superadmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	allowed, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
