// Package permissions resolves role grants for response formatting. Role
// administration lives in a separate service; this catalog is the static
// snapshot of the templates that service publishes.
package permissions

import (
	"sort"

	"identity-service/internal/model"
)

const (
	TemplateUserReadOnly = "USER_READ_ONLY"
	TemplateUserStandard = "USER_STANDARD"
	TemplateSupport      = "SUPPORT"
	TemplateAdmin        = "ADMIN"
)

// DefaultRoleID is assigned to every self-service signup.
const DefaultRoleID = "user"

var roleCatalog = map[string]*model.Role{
	"user": {
		RoleID:      "user",
		Name:        "User",
		Type:        TemplateUserStandard,
		Description: "Standard self-service account",
		IsActive:    true,
	},
	"readonly": {
		RoleID:      "readonly",
		Name:        "Read Only",
		Type:        TemplateUserReadOnly,
		Description: "View-only access to own profile",
		IsActive:    true,
	},
	"support": {
		RoleID:      "support",
		Name:        "Support",
		Type:        TemplateSupport,
		Description: "Customer support operator",
		IsActive:    true,
	},
	"admin": {
		RoleID:      "admin",
		Name:        "Administrator",
		Type:        TemplateAdmin,
		Description: "Full administrative access",
		IsActive:    true,
	},
}

var templateGrants = map[string][]model.RolePermission{
	TemplateUserReadOnly: {
		{PermissionID: "profile-read", Resource: "profile", Action: "read"},
	},
	TemplateUserStandard: {
		{PermissionID: "profile-read", Resource: "profile", Action: "read"},
		{PermissionID: "profile-write", Resource: "profile", Action: "write"},
		{PermissionID: "credentials-manage", Resource: "credentials", Action: "manage"},
	},
	TemplateSupport: {
		{PermissionID: "profile-read", Resource: "profile", Action: "read"},
		{PermissionID: "accounts-read", Resource: "accounts", Action: "read"},
		{PermissionID: "otp-resend", Resource: "otp", Action: "resend"},
	},
	TemplateAdmin: {
		{PermissionID: "profile-read", Resource: "profile", Action: "read"},
		{PermissionID: "profile-write", Resource: "profile", Action: "write"},
		{PermissionID: "credentials-manage", Resource: "credentials", Action: "manage"},
		{PermissionID: "accounts-read", Resource: "accounts", Action: "read"},
		{PermissionID: "accounts-write", Resource: "accounts", Action: "write"},
		{PermissionID: "roles-manage", Resource: "roles", Action: "manage"},
	},
}

// RoleByID returns the catalog role, or nil when the ID is unknown.
func RoleByID(roleID string) *model.Role {
	return roleCatalog[roleID]
}

// Template returns the grants attached to a template name.
func Template(name string) []model.RolePermission {
	grants := templateGrants[name]
	out := make([]model.RolePermission, len(grants))
	copy(out, grants)
	return out
}

// AvailableTemplates lists template names in stable order.
func AvailableTemplates() []string {
	names := make([]string, 0, len(templateGrants))
	for name := range templateGrants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Combine merges grants from multiple templates, dropping duplicates. Two
// grants are the same when resource and action match.
func Combine(names ...string) []model.RolePermission {
	var merged []model.RolePermission
	for _, name := range names {
		merged = append(merged, templateGrants[name]...)
	}
	return Dedupe(merged)
}

// Dedupe removes repeated resource/action pairs, keeping first occurrence.
func Dedupe(grants []model.RolePermission) []model.RolePermission {
	seen := make(map[string]bool, len(grants))
	out := make([]model.RolePermission, 0, len(grants))
	for _, g := range grants {
		key := g.Resource + ":" + g.Action
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, g)
	}
	return out
}
