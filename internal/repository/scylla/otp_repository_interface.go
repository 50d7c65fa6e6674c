package scylla

import (
	"context"
	"errors"

	"identity-service/internal/model"
)

var (
	// ErrOTPNotFound means no usable challenge exists for the email: none
	// was issued, it expired, or it was already consumed.
	ErrOTPNotFound = errors.New("no usable login code")

	// ErrOTPMismatch means a usable challenge exists but the presented code
	// is wrong. The stored record is left untouched.
	ErrOTPMismatch = errors.New("login code mismatch")
)

// OtpStore manages single-use login challenges. At most one usable record
// exists per email; issuing a new one replaces any predecessor.
type OtpStore interface {
	Issue(ctx context.Context, email string) (*model.OtpRecord, error)
	FindUsable(ctx context.Context, email, code string) (*model.OtpRecord, error)
	Consume(ctx context.Context, email string) error
	InvalidateAll(ctx context.Context, email string) error
}
