package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"identity-service/internal/idp"
	"identity-service/internal/model"
)

type mockAccountStore struct {
	mock.Mock
}

func (m *mockAccountStore) Create(ctx context.Context, acc *model.Account) error {
	return m.Called(ctx, acc).Error(0)
}

func (m *mockAccountStore) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	args := m.Called(ctx, email)
	if acc, ok := args.Get(0).(*model.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountStore) GetByID(ctx context.Context, bucket int, accountID string) (*model.Account, error) {
	args := m.Called(ctx, bucket, accountID)
	if acc, ok := args.Get(0).(*model.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountStore) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	args := m.Called(ctx, phone)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountStore) Delete(ctx context.Context, acc *model.Account) error {
	return m.Called(ctx, acc).Error(0)
}

func (m *mockAccountStore) SetExternalLink(ctx context.Context, acc *model.Account, externalID, externalUsername string) error {
	args := m.Called(ctx, acc, externalID, externalUsername)
	if args.Error(0) == nil {
		acc.ExternalID = externalID
		acc.ExternalUsername = externalUsername
	}
	return args.Error(0)
}

func (m *mockAccountStore) Activate(ctx context.Context, acc *model.Account) error {
	args := m.Called(ctx, acc)
	if args.Error(0) == nil {
		acc.Status = model.StatusActive
	}
	return args.Error(0)
}

func (m *mockAccountStore) UpdateLastLogin(ctx context.Context, acc *model.Account) error {
	return m.Called(ctx, acc).Error(0)
}

func (m *mockAccountStore) UpdatePasswordHash(ctx context.Context, acc *model.Account, passwordHash string) error {
	return m.Called(ctx, acc, passwordHash).Error(0)
}

func (m *mockAccountStore) UpdateTokens(ctx context.Context, acc *model.Account) error {
	return m.Called(ctx, acc).Error(0)
}

type mockOtpStore struct {
	mock.Mock
}

func (m *mockOtpStore) Issue(ctx context.Context, email string) (*model.OtpRecord, error) {
	args := m.Called(ctx, email)
	if rec, ok := args.Get(0).(*model.OtpRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOtpStore) FindUsable(ctx context.Context, email, code string) (*model.OtpRecord, error) {
	args := m.Called(ctx, email, code)
	if rec, ok := args.Get(0).(*model.OtpRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOtpStore) Consume(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockOtpStore) InvalidateAll(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CheckExists(ctx context.Context, email string) (*idp.CheckResult, error) {
	args := m.Called(ctx, email)
	if res, ok := args.Get(0).(*idp.CheckResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) ProvisionSelfService(ctx context.Context, email, name, phone string) (*idp.ProvisionResult, error) {
	args := m.Called(ctx, email, name, phone)
	if res, ok := args.Get(0).(*idp.ProvisionResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) ProvisionAdministrative(ctx context.Context, email, name, phone string) (*idp.ProvisionResult, error) {
	args := m.Called(ctx, email, name, phone)
	if res, ok := args.Get(0).(*idp.ProvisionResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) ConfirmCode(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

func (m *mockProvider) ResendCode(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockProvider) ForceConfirm(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockProvider) SetDurableCredential(ctx context.Context, email, credential string) error {
	return m.Called(ctx, email, credential).Error(0)
}

func (m *mockProvider) IssueTokens(ctx context.Context, email, credential string) (*idp.TokenBundle, error) {
	args := m.Called(ctx, email, credential)
	if res, ok := args.Get(0).(*idp.TokenBundle); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) SendResetChallenge(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockProvider) ConfirmReset(ctx context.Context, email, code, newPassword string) error {
	return m.Called(ctx, email, code, newPassword).Error(0)
}
