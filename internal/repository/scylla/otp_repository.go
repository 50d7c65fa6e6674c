package scylla

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"identity-service/internal/model"
	"identity-service/internal/util"
)

const (
	otpLength = 6
	otpTTL    = 30 * time.Minute
)

type OtpRepository struct {
	client *ScyllaClient
}

func NewOtpRepository(client *ScyllaClient) *OtpRepository {
	return &OtpRepository{
		client: client,
	}
}

// Issue writes a fresh challenge for the email. The table keys challenges
// by email alone, so the insert silently replaces any earlier record and
// the newest issuance is always the only usable one.
func (r *OtpRepository) Issue(ctx context.Context, email string) (*model.OtpRecord, error) {
	code, err := generateCode(otpLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate login code: %w", err)
	}

	now := time.Now().UTC()
	record := &model.OtpRecord{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(otpTTL),
		CreatedAt: now,
	}

	query := r.client.Prepared.UpsertLoginOtp.
		Bind(record.Email, record.Code, record.ExpiresAt, record.CreatedAt).
		WithContext(ctx)
	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to issue login code",
			zap.String("email_hash", util.HashEmail(email)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to issue login code: %w", err)
	}

	util.Info("Login code issued",
		zap.String("email_hash", util.HashEmail(email)),
		zap.Time("expires_at", record.ExpiresAt))

	return record, nil
}

// FindUsable loads the challenge for the email and checks the presented
// code. Expiry is evaluated here at read time; nothing sweeps stale rows.
// A mismatch does not consume, expire, or otherwise alter the record.
func (r *OtpRepository) FindUsable(ctx context.Context, email, code string) (*model.OtpRecord, error) {
	record := &model.OtpRecord{}
	var consumedAt time.Time

	query := r.client.Prepared.GetLoginOtpByEmail.Bind(email).WithContext(ctx)
	err := r.client.ScanWithRetry(query,
		&record.Email, &record.Code, &record.ExpiresAt, &consumedAt, &record.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrOTPNotFound
		}
		util.Error("Failed to load login code",
			zap.String("email_hash", util.HashEmail(email)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to load login code: %w", err)
	}
	record.ConsumedAt = timePtr(consumedAt)

	if !record.Usable(time.Now().UTC()) {
		return nil, ErrOTPNotFound
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		return nil, ErrOTPMismatch
	}

	return record, nil
}

// Consume marks the challenge used so it can never satisfy another attempt.
func (r *OtpRepository) Consume(ctx context.Context, email string) error {
	now := time.Now().UTC()
	query := r.client.Prepared.ConsumeLoginOtp.Bind(now, email).WithContext(ctx)
	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to consume login code",
			zap.String("email_hash", util.HashEmail(email)),
			zap.Error(err))
		return fmt.Errorf("failed to consume login code: %w", err)
	}
	return nil
}

// InvalidateAll drops any outstanding challenge for the email.
func (r *OtpRepository) InvalidateAll(ctx context.Context, email string) error {
	query := r.client.Prepared.DeleteLoginOtpByEmail.Bind(email).WithContext(ctx)
	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		return fmt.Errorf("failed to invalidate login codes: %w", err)
	}
	return nil
}

func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
