package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"identity-service/internal/apperr"
	"identity-service/internal/config"
	"identity-service/internal/hashing"
	"identity-service/internal/idp"
	"identity-service/internal/model"
	"identity-service/internal/repository/scylla"
	"identity-service/internal/util"
)

const (
	testEmail  = "user@example.com"
	testSecret = "test-secret"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.ServiceSecret = testSecret
	cfg.Auth.OtpRequestLimit = 5
	cfg.Auth.OtpRequestWindow = 15 * time.Minute
	cfg.Auth.LoginAttemptLimit = 10
	cfg.Auth.LoginAttemptWindow = 15 * time.Minute
	cfg.Hashing.Argon2MemoryCost = 8 * 1024
	cfg.Hashing.Argon2TimeCost = 1
	cfg.Hashing.Argon2Parallelism = 1
	return cfg
}

func newTestService(accounts *mockAccountStore, otps *mockOtpStore, provider *mockProvider) *AuthService {
	cfg := testConfig()
	return NewAuthService(accounts, otps, provider,
		hashing.NewPasswordHasher(cfg), nil, nil, nil, cfg)
}

func pendingAccount() *model.Account {
	return &model.Account{
		AccountID: "acc-1",
		Email:     testEmail,
		EmailHash: util.HashEmail(testEmail),
		FullName:  "Test User",
		Status:    model.StatusPendingVerification,
		RoleID:    "user",
		CreatedAt: time.Now().UTC(),
	}
}

func activeAccount() *model.Account {
	acc := pendingAccount()
	acc.Status = model.StatusActive
	return acc
}

func linkedActiveAccount() *model.Account {
	acc := activeAccount()
	acc.ExternalID = "ext-1"
	acc.ExternalUsername = testEmail
	return acc
}

func derived() string {
	return hashing.DeriveCredential(testSecret, testEmail)
}

func signupRequest() *SignupRequest {
	return &SignupRequest{
		Email:    testEmail,
		Password: "Secret1!pass",
		FullName: "Test User",
	}
}

// ---- signup ----

func TestSignup_ProvisionsNewIdentity(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, otps, provider)

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(nil, scylla.ErrAccountNotFound)
	accounts.On("Create", mock.Anything, mock.Anything).Return(nil)
	provider.On("CheckExists", mock.Anything, testEmail).Return(&idp.CheckResult{Exists: false}, nil)
	provider.On("ProvisionSelfService", mock.Anything, testEmail, "Test User", "").
		Return(&idp.ProvisionResult{ExternalID: "ext-1", Username: testEmail, CodeDelivered: true}, nil)
	accounts.On("SetExternalLink", mock.Anything, mock.Anything, "ext-1", testEmail).Return(nil)

	result, err := svc.Signup(context.Background(), signupRequest())
	require.NoError(t, err)
	require.NotNil(t, result.Account)
	assert.Equal(t, model.StatusPendingVerification, result.Account.Status)
	assert.Nil(t, result.Tokens)
	accounts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSignup_ResumesUnconfirmedIdentity(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, otps, provider)

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(nil, scylla.ErrAccountNotFound)
	accounts.On("Create", mock.Anything, mock.Anything).Return(nil)
	provider.On("CheckExists", mock.Anything, testEmail).
		Return(&idp.CheckResult{Exists: true, Confirmed: false, ExternalID: "ext-old", Username: testEmail}, nil)
	accounts.On("SetExternalLink", mock.Anything, mock.Anything, "ext-old", testEmail).Return(nil)

	result, err := svc.Signup(context.Background(), signupRequest())
	require.NoError(t, err)
	require.NotNil(t, result.Account)
	provider.AssertNotCalled(t, "ProvisionSelfService", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	accounts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSignup_ConfirmedDuplicateCompensates(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, otps, provider)

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(nil, scylla.ErrAccountNotFound)
	accounts.On("Create", mock.Anything, mock.Anything).Return(nil)
	provider.On("CheckExists", mock.Anything, testEmail).
		Return(&idp.CheckResult{Exists: true, Confirmed: true}, nil)
	accounts.On("Delete", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Signup(context.Background(), signupRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Conflict("")))
	accounts.AssertCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSignup_ProvisionFailureCompensatesAndKeepsOriginalError(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, otps, provider)

	selfErr := idp.NewProviderError(idp.KindUnknown, "ProvisionSelfService", errors.New("boom"))
	adminErr := idp.NewProviderError(idp.KindUnknown, "ProvisionAdministrative", errors.New("still down"))

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(nil, scylla.ErrAccountNotFound)
	accounts.On("Create", mock.Anything, mock.Anything).Return(nil)
	provider.On("CheckExists", mock.Anything, testEmail).Return(&idp.CheckResult{Exists: false}, nil)
	provider.On("ProvisionSelfService", mock.Anything, testEmail, "Test User", "").Return(nil, selfErr)
	provider.On("ProvisionAdministrative", mock.Anything, testEmail, "Test User", "").Return(nil, adminErr)
	accounts.On("Delete", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Signup(context.Background(), signupRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Dependency("")))
	assert.True(t, errors.Is(err, adminErr))
	accounts.AssertCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSignup_AdministrativeFallbackSucceeds(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, otps, provider)

	selfErr := idp.NewProviderError(idp.KindMisconfigured, "ProvisionSelfService", errors.New("signup disabled"))

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(nil, scylla.ErrAccountNotFound)
	accounts.On("Create", mock.Anything, mock.Anything).Return(nil)
	provider.On("CheckExists", mock.Anything, testEmail).Return(&idp.CheckResult{Exists: false}, nil)
	provider.On("ProvisionSelfService", mock.Anything, testEmail, "Test User", "").Return(nil, selfErr)
	provider.On("ProvisionAdministrative", mock.Anything, testEmail, "Test User", "").
		Return(&idp.ProvisionResult{ExternalID: "ext-admin", Username: testEmail}, nil)
	accounts.On("SetExternalLink", mock.Anything, mock.Anything, "ext-admin", testEmail).Return(nil)

	result, err := svc.Signup(context.Background(), signupRequest())
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingVerification, result.Account.Status)
	accounts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSignup_CompensationFailureStillRaisesOriginalError(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, otps, provider)

	providerErr := idp.NewProviderError(idp.KindRateLimited, "ProvisionSelfService", errors.New("slow down"))

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(nil, scylla.ErrAccountNotFound)
	accounts.On("Create", mock.Anything, mock.Anything).Return(nil)
	provider.On("CheckExists", mock.Anything, testEmail).Return(&idp.CheckResult{Exists: false}, nil)
	provider.On("ProvisionSelfService", mock.Anything, testEmail, "Test User", "").Return(nil, providerErr)
	accounts.On("Delete", mock.Anything, mock.Anything).Return(errors.New("scylla down"))

	_, err := svc.Signup(context.Background(), signupRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.RateLimited("")))
}

func TestSignup_LocalDuplicateIsConflict(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, otps, provider)

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(activeAccount(), nil)

	_, err := svc.Signup(context.Background(), signupRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Conflict("")))
	accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSignup_Validation(t *testing.T) {
	svc := newTestService(new(mockAccountStore), new(mockOtpStore), new(mockProvider))

	cases := map[string]*SignupRequest{
		"nil request":    nil,
		"bad email":      {Email: "nope", Password: "Secret1!pass", FullName: "A"},
		"short password": {Email: testEmail, Password: "short", FullName: "A"},
		"missing name":   {Email: testEmail, Password: "Secret1!pass", FullName: "  "},
	}

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), req)
			assert.True(t, errors.Is(err, apperr.Validation("")))
		})
	}
}

// ---- email verification ----

func TestVerifyEmail_ActivatesOnceAndIssuesTokens(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, otps, provider)

	acc := pendingAccount()
	tokens := &idp.TokenBundle{AccessToken: "at", IDToken: "it", RefreshToken: "rt", TokenType: "Bearer",
		ExpiresAt: time.Now().UTC().Add(time.Hour)}

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	provider.On("ConfirmCode", mock.Anything, testEmail, "123456").Return(nil)
	provider.On("SetDurableCredential", mock.Anything, testEmail, derived()).Return(nil)
	accounts.On("Activate", mock.Anything, acc).Return(nil)
	provider.On("IssueTokens", mock.Anything, testEmail, derived()).Return(tokens, nil)
	accounts.On("UpdateTokens", mock.Anything, acc).Return(nil)

	result, err := svc.VerifyEmail(context.Background(), testEmail, "123456")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, result.Account.Status)
	require.NotNil(t, result.Tokens)
	assert.Equal(t, "at", result.Tokens.AccessToken)
	assert.Equal(t, "at", acc.AccessToken)
}

func TestVerifyEmail_AlreadyActiveIsConflict(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(activeAccount(), nil)

	_, err := svc.VerifyEmail(context.Background(), testEmail, "123456")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Conflict("")))
	provider.AssertNotCalled(t, "ConfirmCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyEmail_BadCodeIsBadRequest(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	acc := pendingAccount()
	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	provider.On("ConfirmCode", mock.Anything, testEmail, "000000").
		Return(idp.NewProviderError(idp.KindInvalidCode, "ConfirmCode", errors.New("mismatch")))

	_, err := svc.VerifyEmail(context.Background(), testEmail, "000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Authentication("")))
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	accounts.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything)
}

func TestVerifyEmail_TokenFailureKeepsActivation(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	acc := pendingAccount()
	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	provider.On("ConfirmCode", mock.Anything, testEmail, "123456").Return(nil)
	provider.On("SetDurableCredential", mock.Anything, testEmail, derived()).Return(nil)
	accounts.On("Activate", mock.Anything, acc).Return(nil)
	provider.On("IssueTokens", mock.Anything, testEmail, derived()).
		Return(nil, idp.NewProviderError(idp.KindUnknown, "IssueTokens", errors.New("down")))

	_, err := svc.VerifyEmail(context.Background(), testEmail, "123456")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Dependency("")))
	// The flip is one-way: the account stays active despite the failure.
	assert.Equal(t, model.StatusActive, acc.Status)
}

// ---- resend verification ----

func TestResendVerification_ActiveAccountIsNoOp(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(activeAccount(), nil)

	err := svc.ResendVerification(context.Background(), testEmail)
	require.NoError(t, err)
	provider.AssertNotCalled(t, "ResendCode", mock.Anything, mock.Anything)
}

func TestResendVerification_FallsBackToForceConfirm(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	acc := pendingAccount()
	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	provider.On("ResendCode", mock.Anything, testEmail).
		Return(idp.NewProviderError(idp.KindMisconfigured, "ResendCode", errors.New("no challenge")))
	provider.On("ForceConfirm", mock.Anything, testEmail).Return(nil)
	provider.On("SetDurableCredential", mock.Anything, testEmail, derived()).Return(nil)
	accounts.On("Activate", mock.Anything, acc).Return(nil)

	err := svc.ResendVerification(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, acc.Status)
}

func TestResendVerification_ForceConfirmFailurePropagates(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	acc := pendingAccount()
	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	provider.On("ResendCode", mock.Anything, testEmail).
		Return(idp.NewProviderError(idp.KindMisconfigured, "ResendCode", errors.New("no challenge")))
	provider.On("ForceConfirm", mock.Anything, testEmail).
		Return(idp.NewProviderError(idp.KindRateLimited, "ForceConfirm", errors.New("throttled")))

	err := svc.ResendVerification(context.Background(), testEmail)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.RateLimited("")))
	assert.Equal(t, model.StatusPendingVerification, acc.Status)
	provider.AssertNotCalled(t, "SetDurableCredential", mock.Anything, mock.Anything, mock.Anything)
	accounts.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything)
}

func TestResendVerification_ForceConfirmMissingIdentitySurfacesNotFound(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	acc := pendingAccount()
	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	provider.On("ResendCode", mock.Anything, testEmail).
		Return(idp.NewProviderError(idp.KindNotAuthorized, "ResendCode", errors.New("cannot resend")))
	provider.On("ForceConfirm", mock.Anything, testEmail).
		Return(idp.NewProviderError(idp.KindNotFound, "ForceConfirm", errors.New("no identity")))
	provider.On("SetDurableCredential", mock.Anything, testEmail, derived()).
		Return(idp.NewProviderError(idp.KindNotFound, "SetDurableCredential", errors.New("no identity")))

	err := svc.ResendVerification(context.Background(), testEmail)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.NotFound("")))
	accounts.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything)
}

func TestResendVerification_IsIdempotent(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	acc := pendingAccount()
	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	provider.On("ResendCode", mock.Anything, testEmail).Return(nil)

	require.NoError(t, svc.ResendVerification(context.Background(), testEmail))
	require.NoError(t, svc.ResendVerification(context.Background(), testEmail))
	provider.AssertNumberOfCalls(t, "ResendCode", 2)
}

// ---- login via otp ----

func TestSendLoginOtp_RequiresActiveAccount(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	svc := newTestService(accounts, otps, new(mockProvider))

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(pendingAccount(), nil)

	err := svc.SendLoginOtp(context.Background(), testEmail)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Authentication("")))
	otps.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestSendLoginOtp_IssuesCode(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	svc := newTestService(accounts, otps, new(mockProvider))

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(activeAccount(), nil)
	otps.On("Issue", mock.Anything, testEmail).Return(&model.OtpRecord{
		Email:     testEmail,
		Code:      "654321",
		ExpiresAt: time.Now().UTC().Add(30 * time.Minute),
	}, nil)

	require.NoError(t, svc.SendLoginOtp(context.Background(), testEmail))
}

func TestVerifyLoginOtp_MismatchIsAuthenticationFailure(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	svc := newTestService(accounts, otps, new(mockProvider))

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(linkedActiveAccount(), nil)
	otps.On("FindUsable", mock.Anything, testEmail, "000000").Return(nil, scylla.ErrOTPMismatch)

	_, err := svc.VerifyLoginOtp(context.Background(), testEmail, "000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Authentication("")))
	// A mismatch must leave the stored record intact.
	otps.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
}

func TestVerifyLoginOtp_ExpiredOrMissingIsNotFound(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	svc := newTestService(accounts, otps, new(mockProvider))

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(linkedActiveAccount(), nil)
	otps.On("FindUsable", mock.Anything, testEmail, "654321").Return(nil, scylla.ErrOTPNotFound)

	_, err := svc.VerifyLoginOtp(context.Background(), testEmail, "654321")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.NotFound("")))
	otps.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
}

func TestVerifyLoginOtp_ConsumesAndIssuesTokens(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, otps, provider)

	acc := linkedActiveAccount()
	record := &model.OtpRecord{Email: testEmail, Code: "654321",
		ExpiresAt: time.Now().UTC().Add(10 * time.Minute)}
	tokens := &idp.TokenBundle{AccessToken: "at", TokenType: "Bearer",
		ExpiresAt: time.Now().UTC().Add(time.Hour)}

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	otps.On("FindUsable", mock.Anything, testEmail, "654321").Return(record, nil)
	otps.On("Consume", mock.Anything, testEmail).Return(nil)
	accounts.On("UpdateLastLogin", mock.Anything, acc).Return(nil)
	provider.On("IssueTokens", mock.Anything, testEmail, derived()).Return(tokens, nil)
	accounts.On("UpdateTokens", mock.Anything, acc).Return(nil)

	result, err := svc.VerifyLoginOtp(context.Background(), testEmail, "654321")
	require.NoError(t, err)
	require.NotNil(t, result.Tokens)
	otps.AssertCalled(t, "Consume", mock.Anything, testEmail)
	// Already linked, so no provider probe or provisioning happens.
	provider.AssertNotCalled(t, "CheckExists", mock.Anything, mock.Anything)
}

func TestVerifyLoginOtp_LinksIdentityLazily(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, otps, provider)

	acc := activeAccount() // no linkage yet
	record := &model.OtpRecord{Email: testEmail, Code: "654321",
		ExpiresAt: time.Now().UTC().Add(10 * time.Minute)}
	tokens := &idp.TokenBundle{AccessToken: "at", ExpiresAt: time.Now().UTC().Add(time.Hour)}

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	otps.On("FindUsable", mock.Anything, testEmail, "654321").Return(record, nil)
	provider.On("CheckExists", mock.Anything, testEmail).Return(&idp.CheckResult{Exists: false}, nil)
	provider.On("ProvisionAdministrative", mock.Anything, testEmail, "Test User", "").
		Return(&idp.ProvisionResult{ExternalID: "ext-new", Username: testEmail}, nil)
	accounts.On("SetExternalLink", mock.Anything, acc, "ext-new", testEmail).Return(nil)
	otps.On("Consume", mock.Anything, testEmail).Return(nil)
	accounts.On("UpdateLastLogin", mock.Anything, acc).Return(nil)
	provider.On("IssueTokens", mock.Anything, testEmail, derived()).Return(tokens, nil)
	accounts.On("UpdateTokens", mock.Anything, acc).Return(nil)

	result, err := svc.VerifyLoginOtp(context.Background(), testEmail, "654321")
	require.NoError(t, err)
	require.NotNil(t, result.Tokens)
	assert.True(t, acc.HasExternalLinkage())
}

// ---- password login ----

func TestSigninViaPassword_UnknownEmailGetsGenericFailure(t *testing.T) {
	accounts := new(mockAccountStore)
	svc := newTestService(accounts, new(mockOtpStore), new(mockProvider))

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(nil, scylla.ErrAccountNotFound)

	_, err := svc.SigninViaPassword(context.Background(), testEmail, "whatever1")
	require.Error(t, err)
	// Identical to a wrong password: no account enumeration.
	assert.True(t, errors.Is(err, apperr.Authentication("")))
	assert.Equal(t, "invalid credentials", apperr.MessageOf(err))
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))
}

func TestSigninViaPassword_WrongPasswordGetsSameFailure(t *testing.T) {
	accounts := new(mockAccountStore)
	svc := newTestService(accounts, new(mockOtpStore), new(mockProvider))

	cfg := testConfig()
	hash, err := hashing.NewPasswordHasher(cfg).Hash("RightPass1!")
	require.NoError(t, err)
	acc := linkedActiveAccount()
	acc.PasswordHash = hash

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)

	_, err = svc.SigninViaPassword(context.Background(), testEmail, "WrongPass1!")
	require.Error(t, err)
	assert.Equal(t, "invalid credentials", apperr.MessageOf(err))
}

func TestSigninViaPassword_PendingAccountGetsSameFailure(t *testing.T) {
	accounts := new(mockAccountStore)
	svc := newTestService(accounts, new(mockOtpStore), new(mockProvider))

	acc := pendingAccount()
	acc.PasswordHash = "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA"
	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)

	_, err := svc.SigninViaPassword(context.Background(), testEmail, "whatever1")
	require.Error(t, err)
	assert.Equal(t, "invalid credentials", apperr.MessageOf(err))
}

func TestSigninViaPassword_Succeeds(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	cfg := testConfig()
	hash, err := hashing.NewPasswordHasher(cfg).Hash("RightPass1!")
	require.NoError(t, err)
	acc := linkedActiveAccount()
	acc.PasswordHash = hash
	tokens := &idp.TokenBundle{AccessToken: "at", ExpiresAt: time.Now().UTC().Add(time.Hour)}

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	accounts.On("UpdateLastLogin", mock.Anything, acc).Return(nil)
	provider.On("IssueTokens", mock.Anything, testEmail, derived()).Return(tokens, nil)
	accounts.On("UpdateTokens", mock.Anything, acc).Return(nil)

	result, err := svc.SigninViaPassword(context.Background(), testEmail, "RightPass1!")
	require.NoError(t, err)
	require.NotNil(t, result.Tokens)
	assert.Equal(t, "at", result.Tokens.AccessToken)
}

func TestSigninViaPassword_ProviderOutageDegradesToNoTokens(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	cfg := testConfig()
	hash, err := hashing.NewPasswordHasher(cfg).Hash("RightPass1!")
	require.NoError(t, err)
	acc := linkedActiveAccount()
	acc.PasswordHash = hash

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	accounts.On("UpdateLastLogin", mock.Anything, acc).Return(nil)
	provider.On("IssueTokens", mock.Anything, testEmail, derived()).
		Return(nil, idp.NewProviderError(idp.KindUnknown, "IssueTokens", errors.New("down")))

	result, err := svc.SigninViaPassword(context.Background(), testEmail, "RightPass1!")
	require.NoError(t, err)
	assert.Nil(t, result.Tokens)
	require.NotNil(t, result.Account)
}

func TestSigninViaPassword_UnlinkedAccountSkipsProvider(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	cfg := testConfig()
	hash, err := hashing.NewPasswordHasher(cfg).Hash("RightPass1!")
	require.NoError(t, err)
	acc := activeAccount()
	acc.PasswordHash = hash

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	accounts.On("UpdateLastLogin", mock.Anything, acc).Return(nil)

	result, err := svc.SigninViaPassword(context.Background(), testEmail, "RightPass1!")
	require.NoError(t, err)
	assert.Nil(t, result.Tokens)
	provider.AssertNotCalled(t, "IssueTokens", mock.Anything, mock.Anything, mock.Anything)
}

// ---- password reset ----

func TestSendPasswordResetOtp_MissingAccountIsNotFound(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(nil, scylla.ErrAccountNotFound)

	err := svc.SendPasswordResetOtp(context.Background(), testEmail)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.NotFound("")))
	provider.AssertNotCalled(t, "SendResetChallenge", mock.Anything, mock.Anything)
}

func TestSendPasswordResetOtp_StartsChallenge(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(linkedActiveAccount(), nil)
	provider.On("SendResetChallenge", mock.Anything, testEmail).Return(nil)

	require.NoError(t, svc.SendPasswordResetOtp(context.Background(), testEmail))
}

func TestConfirmPasswordReset_RoundTrip(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, otps, provider)

	acc := linkedActiveAccount()
	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	provider.On("ConfirmReset", mock.Anything, testEmail, "654321", "NewSecret1!").Return(nil)
	accounts.On("UpdatePasswordHash", mock.Anything, acc, mock.Anything).Return(nil)
	provider.On("SetDurableCredential", mock.Anything, testEmail, derived()).Return(nil)
	otps.On("InvalidateAll", mock.Anything, testEmail).Return(nil)

	err := svc.ConfirmPasswordReset(context.Background(), testEmail, "654321", "NewSecret1!")
	require.NoError(t, err)

	// The new password must verify against the stored hash.
	var storedHash string
	for _, call := range accounts.Calls {
		if call.Method == "UpdatePasswordHash" {
			storedHash = call.Arguments.String(2)
		}
	}
	require.NotEmpty(t, storedHash)
	ok, err := hashing.NewPasswordHasher(testConfig()).Verify("NewSecret1!", storedHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConfirmPasswordReset_BadCodeIsBadRequest(t *testing.T) {
	accounts := new(mockAccountStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, new(mockOtpStore), provider)

	accounts.On("GetByEmail", mock.Anything, testEmail).Return(linkedActiveAccount(), nil)
	provider.On("ConfirmReset", mock.Anything, testEmail, "000000", "NewSecret1!").
		Return(idp.NewProviderError(idp.KindExpiredCode, "ConfirmReset", errors.New("expired")))

	err := svc.ConfirmPasswordReset(context.Background(), testEmail, "000000", "NewSecret1!")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	accounts.AssertNotCalled(t, "UpdatePasswordHash", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPasswordReset_CredentialRestoreFailureIsSwallowed(t *testing.T) {
	accounts := new(mockAccountStore)
	otps := new(mockOtpStore)
	provider := new(mockProvider)
	svc := newTestService(accounts, otps, provider)

	acc := linkedActiveAccount()
	accounts.On("GetByEmail", mock.Anything, testEmail).Return(acc, nil)
	provider.On("ConfirmReset", mock.Anything, testEmail, "654321", "NewSecret1!").Return(nil)
	accounts.On("UpdatePasswordHash", mock.Anything, acc, mock.Anything).Return(nil)
	provider.On("SetDurableCredential", mock.Anything, testEmail, derived()).
		Return(idp.NewProviderError(idp.KindUnknown, "SetDurableCredential", errors.New("down")))
	otps.On("InvalidateAll", mock.Anything, testEmail).Return(nil)

	err := svc.ConfirmPasswordReset(context.Background(), testEmail, "654321", "NewSecret1!")
	assert.NoError(t, err)
}
