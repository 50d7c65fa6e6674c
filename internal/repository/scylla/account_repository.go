package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"identity-service/internal/bucketing"
	"identity-service/internal/encryption"
	"identity-service/internal/model"
	"identity-service/internal/util"
)

type AccountRepository struct {
	client    *ScyllaClient
	buckets   *bucketing.Manager
	encryptor *encryption.Manager
}

func NewAccountRepository(client *ScyllaClient, buckets *bucketing.Manager, encryptor *encryption.Manager) *AccountRepository {
	return &AccountRepository{
		client:    client,
		buckets:   buckets,
		encryptor: encryptor,
	}
}

// Create persists a new account. The email lookup row is written first with
// IF NOT EXISTS; a non-applied result is the definitive duplicate signal,
// regardless of what any earlier read claimed. Lookup rows written before a
// later failure are removed best-effort.
func (r *AccountRepository) Create(ctx context.Context, acc *model.Account) error {
	if acc.AccountID == "" {
		acc.AccountID = uuid.New().String()
	}

	now := time.Now().UTC()
	acc.CreatedAt = now
	acc.EmailHash = util.HashEmail(acc.Email)
	acc.AccountBucket = r.buckets.AccountBucket(acc.EmailHash)

	if acc.PhoneNumber != "" {
		acc.PhoneHash = util.HashPhone(acc.PhoneNumber)
		blob, keyID, err := r.encryptor.SealPhone(ctx, acc.PhoneNumber)
		if err != nil {
			return fmt.Errorf("failed to seal phone number: %w", err)
		}
		acc.PhoneEncrypted = blob
		acc.PhoneKeyID = keyID
	}

	applied, err := r.client.Prepared.CreateEmailLookup.
		Bind(acc.EmailHash, acc.AccountBucket, acc.AccountID, now).
		WithContext(ctx).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		util.Error("Failed to write email lookup",
			zap.String("account_id", acc.AccountID),
			zap.Error(err))
		return fmt.Errorf("failed to write email lookup: %w", err)
	}
	if !applied {
		return ErrDuplicateEmail
	}

	if acc.PhoneHash != "" {
		applied, err := r.client.Prepared.CreatePhoneLookup.
			Bind(acc.PhoneHash, acc.AccountBucket, acc.AccountID, now).
			WithContext(ctx).
			MapScanCAS(map[string]interface{}{})
		if err != nil || !applied {
			r.removeLookups(ctx, acc.EmailHash, "")
			if err != nil {
				util.Error("Failed to write phone lookup",
					zap.String("account_id", acc.AccountID),
					zap.Error(err))
				return fmt.Errorf("failed to write phone lookup: %w", err)
			}
			return ErrDuplicatePhone
		}
	}

	query := r.client.Prepared.CreateAccount.Bind(
		acc.AccountBucket, acc.AccountID, acc.Email, acc.EmailHash, acc.FullName,
		acc.PhoneHash, acc.PhoneEncrypted, acc.PhoneKeyID,
		acc.PasswordHash, acc.ExternalID, acc.ExternalUsername,
		acc.Status, acc.RoleID, acc.EmailVerifiedAt, acc.LastLoginAt,
		acc.AccessToken, acc.IDToken, acc.RefreshToken, acc.TokenType, acc.TokenExpiresAt,
		acc.CreatedAt, acc.UpdatedAt).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		r.removeLookups(ctx, acc.EmailHash, acc.PhoneHash)
		util.Error("Failed to create account",
			zap.String("account_id", acc.AccountID),
			zap.Error(err))
		return fmt.Errorf("failed to create account: %w", err)
	}

	util.Info("Account created",
		zap.String("account_id", acc.AccountID),
		zap.Int("account_bucket", acc.AccountBucket),
		zap.String("status", acc.Status))

	return nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	emailHash := util.HashEmail(email)

	var bucket int
	var accountID string
	query := r.client.Prepared.GetEmailLookup.Bind(emailHash).WithContext(ctx)
	if err := r.client.ScanWithRetry(query, &bucket, &accountID); err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrAccountNotFound
		}
		util.Error("Failed to resolve email lookup", zap.Error(err))
		return nil, fmt.Errorf("failed to resolve email lookup: %w", err)
	}

	return r.GetByID(ctx, bucket, accountID)
}

func (r *AccountRepository) GetByID(ctx context.Context, bucket int, accountID string) (*model.Account, error) {
	acc := &model.Account{}
	var emailVerifiedAt, lastLoginAt, tokenExpiresAt, updatedAt time.Time

	query := r.client.Prepared.GetAccountByID.Bind(bucket, accountID).WithContext(ctx)
	err := r.client.ScanWithRetry(query,
		&acc.AccountBucket, &acc.AccountID, &acc.Email, &acc.EmailHash, &acc.FullName,
		&acc.PhoneHash, &acc.PhoneEncrypted, &acc.PhoneKeyID,
		&acc.PasswordHash, &acc.ExternalID, &acc.ExternalUsername,
		&acc.Status, &acc.RoleID, &emailVerifiedAt, &lastLoginAt,
		&acc.AccessToken, &acc.IDToken, &acc.RefreshToken, &acc.TokenType, &tokenExpiresAt,
		&acc.CreatedAt, &updatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrAccountNotFound
		}
		util.Error("Failed to get account",
			zap.String("account_id", accountID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	acc.EmailVerifiedAt = timePtr(emailVerifiedAt)
	acc.LastLoginAt = timePtr(lastLoginAt)
	acc.TokenExpiresAt = timePtr(tokenExpiresAt)
	acc.UpdatedAt = timePtr(updatedAt)

	if len(acc.PhoneEncrypted) > 0 {
		phone, err := r.encryptor.OpenPhone(ctx, acc.PhoneEncrypted)
		if err != nil {
			// A lost data key must not make the whole account unreadable.
			util.Warn("Failed to open sealed phone number",
				zap.String("account_id", accountID),
				zap.Error(err))
		} else {
			acc.PhoneNumber = phone
		}
	}

	return acc, nil
}

func (r *AccountRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var bucket int
	var accountID string
	query := r.client.Prepared.GetPhoneLookup.Bind(util.HashPhone(phone)).WithContext(ctx)
	if err := r.client.ScanWithRetry(query, &bucket, &accountID); err != nil {
		if err == gocql.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to resolve phone lookup: %w", err)
	}
	return true, nil
}

// Delete removes the account row and its lookup rows. Used by the signup
// compensation path, so it must work from a partially created state.
func (r *AccountRepository) Delete(ctx context.Context, acc *model.Account) error {
	query := r.client.Prepared.DeleteAccount.
		Bind(acc.AccountBucket, acc.AccountID).WithContext(ctx)
	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to delete account",
			zap.String("account_id", acc.AccountID),
			zap.Error(err))
		return fmt.Errorf("failed to delete account: %w", err)
	}

	r.removeLookups(ctx, acc.EmailHash, acc.PhoneHash)

	util.Info("Account deleted", zap.String("account_id", acc.AccountID))
	return nil
}

func (r *AccountRepository) SetExternalLink(ctx context.Context, acc *model.Account, externalID, externalUsername string) error {
	now := time.Now().UTC()
	query := r.client.Prepared.SetExternalLink.
		Bind(externalID, externalUsername, now, acc.AccountBucket, acc.AccountID).
		WithContext(ctx)
	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to set external link",
			zap.String("account_id", acc.AccountID),
			zap.Error(err))
		return fmt.Errorf("failed to set external link: %w", err)
	}

	acc.ExternalID = externalID
	acc.ExternalUsername = externalUsername
	acc.UpdatedAt = &now
	return nil
}

// Activate flips the account to active and stamps the verification time.
// The transition happens at most once; callers guard the precondition.
func (r *AccountRepository) Activate(ctx context.Context, acc *model.Account) error {
	now := time.Now().UTC()
	query := r.client.Prepared.ActivateAccount.
		Bind(model.StatusActive, now, now, now, acc.AccountBucket, acc.AccountID).
		WithContext(ctx)
	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to activate account",
			zap.String("account_id", acc.AccountID),
			zap.Error(err))
		return fmt.Errorf("failed to activate account: %w", err)
	}

	acc.Status = model.StatusActive
	acc.EmailVerifiedAt = &now
	acc.LastLoginAt = &now
	acc.UpdatedAt = &now

	util.Info("Account activated", zap.String("account_id", acc.AccountID))
	return nil
}

func (r *AccountRepository) UpdateLastLogin(ctx context.Context, acc *model.Account) error {
	now := time.Now().UTC()
	query := r.client.Prepared.UpdateLastLogin.
		Bind(now, now, acc.AccountBucket, acc.AccountID).WithContext(ctx)
	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	acc.LastLoginAt = &now
	acc.UpdatedAt = &now
	return nil
}

func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, acc *model.Account, passwordHash string) error {
	now := time.Now().UTC()
	query := r.client.Prepared.UpdatePasswordHash.
		Bind(passwordHash, now, acc.AccountBucket, acc.AccountID).WithContext(ctx)
	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to update password hash",
			zap.String("account_id", acc.AccountID),
			zap.Error(err))
		return fmt.Errorf("failed to update password hash: %w", err)
	}

	acc.PasswordHash = passwordHash
	acc.UpdatedAt = &now
	return nil
}

func (r *AccountRepository) UpdateTokens(ctx context.Context, acc *model.Account) error {
	now := time.Now().UTC()
	query := r.client.Prepared.UpdateTokens.
		Bind(acc.AccessToken, acc.IDToken, acc.RefreshToken,
			acc.TokenType, acc.TokenExpiresAt, now,
			acc.AccountBucket, acc.AccountID).
		WithContext(ctx)
	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to persist token bundle",
			zap.String("account_id", acc.AccountID),
			zap.Error(err))
		return fmt.Errorf("failed to persist token bundle: %w", err)
	}

	acc.UpdatedAt = &now
	return nil
}

func (r *AccountRepository) removeLookups(ctx context.Context, emailHash, phoneHash string) {
	if emailHash != "" {
		query := r.client.Prepared.DeleteEmailLookup.Bind(emailHash).WithContext(ctx)
		if err := r.client.ExecuteWithRetry(query, 2); err != nil {
			util.Warn("Failed to remove email lookup during cleanup", zap.Error(err))
		}
	}
	if phoneHash != "" {
		query := r.client.Prepared.DeletePhoneLookup.Bind(phoneHash).WithContext(ctx)
		if err := r.client.ExecuteWithRetry(query, 2); err != nil {
			util.Warn("Failed to remove phone lookup during cleanup", zap.Error(err))
		}
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
