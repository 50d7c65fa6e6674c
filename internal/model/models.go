package model

import "time"

// Account status lifecycle: pending_verification transitions to active
// exactly once, on successful verification, and never reverts.
const (
	StatusPendingVerification = "pending_verification"
	StatusActive              = "active"
)

// Account is the authoritative local record for one end user. The external
// linkage fields stay empty until the identity provider has provisioned a
// matching identity.
type Account struct {
	AccountBucket int    `json:"-"`
	AccountID     string `json:"account_id"`
	Email         string `json:"email"`
	EmailHash     string `json:"-"`
	FullName      string `json:"full_name"`

	PhoneNumber    string `json:"phone_number,omitempty"`
	PhoneHash      string `json:"-"`
	PhoneEncrypted []byte `json:"-"`
	PhoneKeyID     string `json:"-"`

	PasswordHash     string `json:"-"`
	ExternalID       string `json:"-"`
	ExternalUsername string `json:"-"`

	Status string `json:"status"`
	RoleID string `json:"role_id"`

	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`

	AccessToken    string     `json:"-"`
	IDToken        string     `json:"-"`
	RefreshToken   string     `json:"-"`
	TokenType      string     `json:"-"`
	TokenExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// HasExternalLinkage reports whether the account is linked to a provider
// identity.
func (a *Account) HasExternalLinkage() bool {
	return a != nil && a.ExternalID != "" && a.ExternalUsername != ""
}

// OtpRecord is a single-use, time-boxed numeric login challenge tied to an
// email. At most one usable record exists per email; issuing a new one
// invalidates any predecessor.
type OtpRecord struct {
	Email      string     `json:"email"`
	Code       string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Usable reports whether the record can still satisfy a login attempt.
// Expiry is passive: a comparison at read time, never an active sweep.
func (o *OtpRecord) Usable(now time.Time) bool {
	return o != nil && o.ConsumedAt == nil && now.Before(o.ExpiresAt)
}

// Role is a read-only dependency of the engine; role management itself is
// owned elsewhere.
type Role struct {
	RoleID      string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// RolePermission is one resource/action grant attached to a role.
type RolePermission struct {
	PermissionID string `json:"id"`
	Resource     string `json:"resource"`
	Action       string `json:"action"`
}

// FormattedAccount is the response projection of an account with its role
// and permissions resolved.
type FormattedAccount struct {
	AccountID       string               `json:"account_id"`
	Email           string               `json:"email"`
	FullName        string               `json:"full_name"`
	PhoneNumber     string               `json:"phone_number,omitempty"`
	Status          string               `json:"status"`
	EmailVerifiedAt *time.Time           `json:"email_verified_at,omitempty"`
	LastLoginAt     *time.Time           `json:"last_login_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	Role            *Role                `json:"role,omitempty"`
	Permissions     []RolePermissionView `json:"permissions"`
}

// RolePermissionView is the trimmed permission shape exposed to callers.
type RolePermissionView struct {
	ID       string `json:"id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}
