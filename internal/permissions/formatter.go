package permissions

import (
	"identity-service/internal/model"
)

// FormatAccount projects an account into its response shape, resolving the
// role and permission set from the catalog. Unknown role IDs format with a
// nil role and empty permissions rather than failing the request.
func FormatAccount(acc *model.Account) *model.FormattedAccount {
	if acc == nil {
		return nil
	}

	formatted := &model.FormattedAccount{
		AccountID:       acc.AccountID,
		Email:           acc.Email,
		FullName:        acc.FullName,
		PhoneNumber:     acc.PhoneNumber,
		Status:          acc.Status,
		EmailVerifiedAt: acc.EmailVerifiedAt,
		LastLoginAt:     acc.LastLoginAt,
		CreatedAt:       acc.CreatedAt,
		Permissions:     []model.RolePermissionView{},
	}

	role := RoleByID(acc.RoleID)
	if role == nil || !role.IsActive {
		return formatted
	}

	formatted.Role = role
	for _, g := range Template(role.Type) {
		formatted.Permissions = append(formatted.Permissions, model.RolePermissionView{
			ID:       g.PermissionID,
			Resource: g.Resource,
			Action:   g.Action,
		})
	}

	return formatted
}
