// Package idp defines the capability interface for the external identity
// provider and the closed set of error kinds it may report. The engine
// branches on kinds, never on provider error text.
package idp

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the closed enumeration of provider failure categories.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindDuplicate
	KindNotFound
	KindInvalidCode
	KindExpiredCode
	KindRateLimited
	KindNotAuthorized
	KindMisconfigured
)

func (k ErrorKind) String() string {
	switch k {
	case KindDuplicate:
		return "duplicate"
	case KindNotFound:
		return "not_found"
	case KindInvalidCode:
		return "invalid_code"
	case KindExpiredCode:
		return "expired_code"
	case KindRateLimited:
		return "rate_limited"
	case KindNotAuthorized:
		return "not_authorized"
	case KindMisconfigured:
		return "misconfigured"
	default:
		return "unknown"
	}
}

// ProviderError wraps a provider failure with its classified kind. The raw
// cause is retained for logs only and is never surfaced to callers.
type ProviderError struct {
	Kind  ErrorKind
	Op    string
	cause error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider %s: %s: %v", e.Op, e.Kind, e.cause)
}

func (e *ProviderError) Unwrap() error {
	return e.cause
}

func NewProviderError(kind ErrorKind, op string, cause error) *ProviderError {
	return &ProviderError{Kind: kind, Op: op, cause: cause}
}

// KindOf extracts the classified kind from an error chain, returning
// KindUnknown for errors that did not originate at the adapter.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// CheckResult describes whether an external identity exists for an email
// and, if so, whether it has completed confirmation.
type CheckResult struct {
	Exists     bool
	Confirmed  bool
	ExternalID string
	Username   string
}

// ProvisionResult is returned by both provisioning modes.
type ProvisionResult struct {
	ExternalID    string
	Username      string
	CodeDelivered bool
}

// TokenBundle is the transient token set issued by the provider; it is
// copied onto the Account, never persisted on its own.
type TokenBundle struct {
	AccessToken  string    `json:"access_token"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Provider is the capability set the reconciliation engine consumes. Every
// operation returns either a normalized result or a *ProviderError carrying
// one of the closed kinds.
type Provider interface {
	CheckExists(ctx context.Context, email string) (*CheckResult, error)
	ProvisionSelfService(ctx context.Context, email, name, phone string) (*ProvisionResult, error)
	ProvisionAdministrative(ctx context.Context, email, name, phone string) (*ProvisionResult, error)
	ConfirmCode(ctx context.Context, email, code string) error
	ResendCode(ctx context.Context, email string) error
	ForceConfirm(ctx context.Context, email string) error
	SetDurableCredential(ctx context.Context, email, credential string) error
	IssueTokens(ctx context.Context, email, credential string) (*TokenBundle, error)
	SendResetChallenge(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, email, code, newPassword string) error
}
