package scylla

import (
	"context"
	"errors"

	"identity-service/internal/model"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrDuplicatePhone  = errors.New("phone number already registered")
)

// AccountStore is the persistence contract for account records. Create uses
// lightweight transactions on the lookup tables as the final uniqueness
// arbiter; every other write addresses one known partition.
type AccountStore interface {
	Create(ctx context.Context, acc *model.Account) error
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByID(ctx context.Context, bucket int, accountID string) (*model.Account, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	Delete(ctx context.Context, acc *model.Account) error
	SetExternalLink(ctx context.Context, acc *model.Account, externalID, externalUsername string) error
	Activate(ctx context.Context, acc *model.Account) error
	UpdateLastLogin(ctx context.Context, acc *model.Account) error
	UpdatePasswordHash(ctx context.Context, acc *model.Account, passwordHash string) error
	UpdateTokens(ctx context.Context, acc *model.Account) error
}
