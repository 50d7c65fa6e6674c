package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"identity-service/internal/apperr"
	"identity-service/internal/audit"
	"identity-service/internal/config"
	"identity-service/internal/hashing"
	"identity-service/internal/idp"
	"identity-service/internal/model"
	"identity-service/internal/notify"
	"identity-service/internal/permissions"
	redisrepo "identity-service/internal/repository/redis"
	"identity-service/internal/repository/scylla"
	"identity-service/internal/util"
)

const (
	minPasswordLength = 8

	opOtpRequest   = "otp_request"
	opResetRequest = "reset_request"
	opLoginAttempt = "login_attempt"
)

// AuthService keeps the local account store and the external identity
// provider consistent across signup, verification, and login. The local
// store is authoritative for account state; the provider is authoritative
// for challenge codes and token issuance.
type AuthService struct {
	accounts   scylla.AccountStore
	otps       scylla.OtpStore
	provider   idp.Provider
	hasher     *hashing.PasswordHasher
	rateLimits *redisrepo.RateLimitCache
	recorder   *audit.Recorder
	notifier   *notify.OtpSender
	cfg        *config.Config
}

// SignupRequest carries the self-service registration input.
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// AuthResult is the response of every operation that yields an account
// view, with tokens attached when the operation issued them.
type AuthResult struct {
	Account *model.FormattedAccount `json:"account"`
	Tokens  *idp.TokenBundle        `json:"tokens,omitempty"`
}

func NewAuthService(
	accounts scylla.AccountStore,
	otps scylla.OtpStore,
	provider idp.Provider,
	hasher *hashing.PasswordHasher,
	rateLimits *redisrepo.RateLimitCache,
	recorder *audit.Recorder,
	notifier *notify.OtpSender,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		accounts:   accounts,
		otps:       otps,
		provider:   provider,
		hasher:     hasher,
		rateLimits: rateLimits,
		recorder:   recorder,
		notifier:   notifier,
		cfg:        cfg,
	}
}

// Signup registers a new account. The local row is created first in
// pending_verification, then the provider identity is provisioned; if
// provisioning fails the local row is compensated away so a later attempt
// starts clean. Compensation is best-effort and never masks the original
// failure.
func (s *AuthService) Signup(ctx context.Context, req *SignupRequest) (*AuthResult, error) {
	if err := validateSignup(req); err != nil {
		return nil, err
	}
	email := util.NormalizeEmail(req.Email)
	emailHash := util.HashEmail(email)

	if err := s.checkSignupCollisions(ctx, email, req.PhoneNumber); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperr.Dependency("failed to process credentials").WithCause(err)
	}

	acc := &model.Account{
		Email:        email,
		FullName:     util.SanitizeInput(req.FullName),
		PhoneNumber:  util.NormalizePhone(req.PhoneNumber),
		PasswordHash: passwordHash,
		Status:       model.StatusPendingVerification,
		RoleID:       permissions.DefaultRoleID,
	}

	if err := s.accounts.Create(ctx, acc); err != nil {
		switch {
		case errors.Is(err, scylla.ErrDuplicateEmail):
			return nil, apperr.Conflict("email already registered")
		case errors.Is(err, scylla.ErrDuplicatePhone):
			return nil, apperr.Conflict("phone number already registered")
		default:
			return nil, apperr.Dependency("failed to create account").WithCause(err)
		}
	}

	check, err := s.provider.CheckExists(ctx, email)
	if err != nil {
		s.compensateSignup(ctx, acc)
		return nil, s.mapProviderError(err, false)
	}

	switch resolveSignupDuplicate(check) {
	case signupConflict:
		s.compensateSignup(ctx, acc)
		s.record(ctx, audit.EventSignup, emailHash, audit.OutcomeFailure, "confirmed identity exists")
		return nil, apperr.Conflict("email already registered")

	case signupResume:
		if err := s.accounts.SetExternalLink(ctx, acc, check.ExternalID, check.Username); err != nil {
			return nil, apperr.Dependency("failed to link identity").WithCause(err)
		}
		util.Info("Signup resumed against unconfirmed identity",
			zap.String("account_id", acc.AccountID))

	case signupProvision:
		result, err := s.provider.ProvisionSelfService(ctx, email, acc.FullName, acc.PhoneNumber)
		if err != nil && provisionFallbackEligible(err) {
			// Self-service signup may be disabled on the pool or fail for
			// reasons the adapter cannot classify. Administrative creation
			// yields a pre-confirmed identity; the account stays pending
			// locally and activates through the resend force-confirm path.
			util.Warn("Self-service provisioning failed, trying administrative creation",
				zap.String("account_id", acc.AccountID),
				zap.String("kind", idp.KindOf(err).String()))
			result, err = s.provider.ProvisionAdministrative(ctx, email, acc.FullName, acc.PhoneNumber)
		}
		if err != nil {
			s.compensateSignup(ctx, acc)
			s.record(ctx, audit.EventSignup, emailHash, audit.OutcomeFailure, idp.KindOf(err).String())
			return nil, s.mapProviderError(err, false)
		}
		if err := s.accounts.SetExternalLink(ctx, acc, result.ExternalID, result.Username); err != nil {
			return nil, apperr.Dependency("failed to link identity").WithCause(err)
		}
	}

	s.record(ctx, audit.EventSignup, emailHash, audit.OutcomeSuccess, "")
	return &AuthResult{Account: permissions.FormatAccount(acc)}, nil
}

// VerifyEmail confirms the provider challenge and flips the account to
// active. The flip happens exactly once; verifying an active account is a
// conflict, not a retry. Token issuance failure after the flip does not
// roll the activation back.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*AuthResult, error) {
	email = util.NormalizeEmail(email)
	if !util.IsValidEmail(email) || code == "" {
		return nil, apperr.Validation("email and verification code are required")
	}

	acc, err := s.loadAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	if acc.Status == model.StatusActive {
		return nil, apperr.Conflict("email already verified")
	}

	if err := s.provider.ConfirmCode(ctx, email, code); err != nil {
		s.record(ctx, audit.EventEmailVerified, acc.EmailHash, audit.OutcomeFailure, idp.KindOf(err).String())
		return nil, s.mapProviderError(err, true)
	}

	credential := hashing.DeriveCredential(s.cfg.Auth.ServiceSecret, email)
	if err := s.provider.SetDurableCredential(ctx, email, credential); err != nil {
		return nil, s.mapProviderError(err, false)
	}

	if err := s.accounts.Activate(ctx, acc); err != nil {
		return nil, apperr.Dependency("failed to activate account").WithCause(err)
	}

	tokens, err := s.provider.IssueTokens(ctx, email, credential)
	if err != nil {
		// The account is already active; surface the failure without
		// undoing the verification.
		return nil, s.mapProviderError(err, false)
	}
	s.persistTokens(ctx, acc, tokens)

	s.record(ctx, audit.EventEmailVerified, acc.EmailHash, audit.OutcomeSuccess, "")
	return &AuthResult{Account: permissions.FormatAccount(acc), Tokens: tokens}, nil
}

// ResendVerification re-triggers the provider challenge. Idempotent: an
// already active account is a success, and a provider that refuses to
// resend because the identity cannot receive codes gets force-confirmed
// instead, activating the account directly.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = util.NormalizeEmail(email)
	if !util.IsValidEmail(email) {
		return apperr.Validation("a valid email is required")
	}

	acc, err := s.loadAccount(ctx, email)
	if err != nil {
		return err
	}
	if acc.Status == model.StatusActive {
		return nil
	}

	err = s.provider.ResendCode(ctx, email)
	if err == nil {
		s.record(ctx, audit.EventVerificationResent, acc.EmailHash, audit.OutcomeSuccess, "")
		return nil
	}

	switch idp.KindOf(err) {
	case idp.KindMisconfigured, idp.KindNotAuthorized:
		// The identity exists but cannot take a challenge, typically
		// because it was provisioned administratively. Confirm it in
		// place and activate.
		if ferr := s.provider.ForceConfirm(ctx, email); ferr != nil {
			// A missing identity is tolerated so the credential step below
			// surfaces the definitive not-found. Anything else stops the
			// fallback before the account flips active.
			if idp.KindOf(ferr) != idp.KindNotFound {
				s.record(ctx, audit.EventVerificationResent, acc.EmailHash, audit.OutcomeFailure, idp.KindOf(ferr).String())
				return s.mapProviderError(ferr, false)
			}
		}
		credential := hashing.DeriveCredential(s.cfg.Auth.ServiceSecret, email)
		if cerr := s.provider.SetDurableCredential(ctx, email, credential); cerr != nil {
			return s.mapProviderError(cerr, false)
		}
		if aerr := s.accounts.Activate(ctx, acc); aerr != nil {
			return apperr.Dependency("failed to activate account").WithCause(aerr)
		}
		s.record(ctx, audit.EventVerificationResent, acc.EmailHash, audit.OutcomeSuccess, "force confirmed")
		return nil
	default:
		s.record(ctx, audit.EventVerificationResent, acc.EmailHash, audit.OutcomeFailure, idp.KindOf(err).String())
		return s.mapProviderError(err, false)
	}
}

// SendLoginOtp issues a fresh single-use login code for an active account
// and hands it to the delivery pipeline. The code never appears in the
// response. Issuing replaces any earlier outstanding code.
func (s *AuthService) SendLoginOtp(ctx context.Context, email string) error {
	email = util.NormalizeEmail(email)
	if !util.IsValidEmail(email) {
		return apperr.Validation("a valid email is required")
	}

	acc, err := s.loadActiveAccount(ctx, email)
	if err != nil {
		return err
	}

	if err := s.enforceLimit(acc.EmailHash, opOtpRequest, s.cfg.Auth.OtpRequestLimit, s.cfg.Auth.OtpRequestWindow); err != nil {
		return err
	}

	record, err := s.otps.Issue(ctx, email)
	if err != nil {
		return apperr.Dependency("failed to issue login code").WithCause(err)
	}

	if err := s.notifier.Send(ctx, record); err != nil {
		// The code is persisted; delivery can be retried by the user.
		util.Warn("Login code delivery failed",
			zap.String("account_id", acc.AccountID),
			zap.Error(err))
	}

	s.record(ctx, audit.EventLoginOtpSent, acc.EmailHash, audit.OutcomeSuccess, "")
	return nil
}

// VerifyLoginOtp checks a login code, consumes it, and issues tokens. An
// account verified before the provider held an identity gets one attached
// lazily here, so token issuance always has a linked identity to work with.
func (s *AuthService) VerifyLoginOtp(ctx context.Context, email, code string) (*AuthResult, error) {
	email = util.NormalizeEmail(email)
	if !util.IsValidEmail(email) || code == "" {
		return nil, apperr.Validation("email and login code are required")
	}

	acc, err := s.loadActiveAccount(ctx, email)
	if err != nil {
		return nil, err
	}

	_, err = s.otps.FindUsable(ctx, email, code)
	if err != nil {
		switch {
		case errors.Is(err, scylla.ErrOTPMismatch):
			s.record(ctx, audit.EventLoginOtpVerified, acc.EmailHash, audit.OutcomeFailure, "code mismatch")
			return nil, apperr.Authentication("invalid login code")
		case errors.Is(err, scylla.ErrOTPNotFound):
			return nil, apperr.NotFound("no active login code, request a new one")
		default:
			return nil, apperr.Dependency("failed to check login code").WithCause(err)
		}
	}

	if err := s.ensureLinkage(ctx, acc); err != nil {
		return nil, err
	}

	if err := s.otps.Consume(ctx, email); err != nil {
		return nil, apperr.Dependency("failed to consume login code").WithCause(err)
	}

	if err := s.accounts.UpdateLastLogin(ctx, acc); err != nil {
		util.Warn("Failed to stamp last login",
			zap.String("account_id", acc.AccountID),
			zap.Error(err))
	}

	credential := hashing.DeriveCredential(s.cfg.Auth.ServiceSecret, email)
	tokens, err := s.provider.IssueTokens(ctx, email, credential)
	if err != nil {
		return nil, s.mapProviderError(err, false)
	}
	s.persistTokens(ctx, acc, tokens)

	s.record(ctx, audit.EventLoginOtpVerified, acc.EmailHash, audit.OutcomeSuccess, "")
	return &AuthResult{Account: permissions.FormatAccount(acc), Tokens: tokens}, nil
}

// SigninViaPassword authenticates against the locally stored hash. Every
// miss, including an unknown email, yields the same generic failure so the
// endpoint cannot be used to enumerate accounts. Provider token issuance is
// best-effort: a provider outage degrades the login, it does not block it.
func (s *AuthService) SigninViaPassword(ctx context.Context, email, password string) (*AuthResult, error) {
	email = util.NormalizeEmail(email)
	if !util.IsValidEmail(email) || password == "" {
		return nil, apperr.Validation("email and password are required")
	}
	emailHash := util.HashEmail(email)

	if err := s.enforceLimit(emailHash, opLoginAttempt, s.cfg.Auth.LoginAttemptLimit, s.cfg.Auth.LoginAttemptWindow); err != nil {
		return nil, err
	}

	invalid := apperr.Authentication("invalid credentials")

	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, scylla.ErrAccountNotFound) {
			s.record(ctx, audit.EventPasswordLogin, emailHash, audit.OutcomeFailure, "unknown account")
			return nil, invalid
		}
		return nil, apperr.Dependency("failed to load account").WithCause(err)
	}
	if acc.Status != model.StatusActive || acc.PasswordHash == "" {
		s.record(ctx, audit.EventPasswordLogin, emailHash, audit.OutcomeFailure, "account not eligible")
		return nil, invalid
	}

	ok, err := s.hasher.Verify(password, acc.PasswordHash)
	if err != nil {
		util.Error("Stored password hash unreadable",
			zap.String("account_id", acc.AccountID),
			zap.Error(err))
		return nil, invalid
	}
	if !ok {
		s.record(ctx, audit.EventPasswordLogin, emailHash, audit.OutcomeFailure, "password mismatch")
		return nil, invalid
	}

	if err := s.accounts.UpdateLastLogin(ctx, acc); err != nil {
		util.Warn("Failed to stamp last login",
			zap.String("account_id", acc.AccountID),
			zap.Error(err))
	}

	var tokens *idp.TokenBundle
	if acc.HasExternalLinkage() {
		credential := hashing.DeriveCredential(s.cfg.Auth.ServiceSecret, email)
		tokens, err = s.provider.IssueTokens(ctx, email, credential)
		if err != nil {
			util.Warn("Token issuance unavailable for password login",
				zap.String("account_id", acc.AccountID),
				zap.String("kind", idp.KindOf(err).String()))
			tokens = nil
		} else {
			s.persistTokens(ctx, acc, tokens)
		}
	}

	if s.rateLimits != nil {
		if err := s.rateLimits.ResetEmailCounter(emailHash, opLoginAttempt); err != nil {
			util.Debug("Failed to reset login attempt counter", zap.Error(err))
		}
	}

	s.record(ctx, audit.EventPasswordLogin, emailHash, audit.OutcomeSuccess, "")
	return &AuthResult{Account: permissions.FormatAccount(acc), Tokens: tokens}, nil
}

// SendPasswordResetOtp asks the provider to start a reset challenge. The
// account must exist and be active; unlike password login, this endpoint
// reports a missing account as not found.
func (s *AuthService) SendPasswordResetOtp(ctx context.Context, email string) error {
	email = util.NormalizeEmail(email)
	if !util.IsValidEmail(email) {
		return apperr.Validation("a valid email is required")
	}

	acc, err := s.loadActiveAccount(ctx, email)
	if err != nil {
		return err
	}

	if err := s.enforceLimit(acc.EmailHash, opResetRequest, s.cfg.Auth.OtpRequestLimit, s.cfg.Auth.OtpRequestWindow); err != nil {
		return err
	}

	if err := s.ensureLinkage(ctx, acc); err != nil {
		return err
	}

	if err := s.provider.SendResetChallenge(ctx, email); err != nil {
		s.record(ctx, audit.EventResetRequested, acc.EmailHash, audit.OutcomeFailure, idp.KindOf(err).String())
		return s.mapProviderError(err, false)
	}

	s.record(ctx, audit.EventResetRequested, acc.EmailHash, audit.OutcomeSuccess, "")
	return nil
}

// ConfirmPasswordReset completes the reset round trip: the provider
// validates the challenge, the local hash is replaced, and the provider
// credential is restored to the derived value so token issuance keeps
// working. The restore is best-effort; a failure is logged, never surfaced.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	email = util.NormalizeEmail(email)
	if !util.IsValidEmail(email) || code == "" {
		return apperr.Validation("email and reset code are required")
	}
	if len(newPassword) < minPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	acc, err := s.loadActiveAccount(ctx, email)
	if err != nil {
		return err
	}

	if err := s.provider.ConfirmReset(ctx, email, code, newPassword); err != nil {
		s.record(ctx, audit.EventResetConfirmed, acc.EmailHash, audit.OutcomeFailure, idp.KindOf(err).String())
		return s.mapProviderError(err, true)
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Dependency("failed to process credentials").WithCause(err)
	}
	if err := s.accounts.UpdatePasswordHash(ctx, acc, passwordHash); err != nil {
		return apperr.Dependency("failed to store new password").WithCause(err)
	}

	// The provider now holds the user-chosen password; swap it back to the
	// derived credential so admin-flow token issuance stays functional.
	credential := hashing.DeriveCredential(s.cfg.Auth.ServiceSecret, email)
	if err := s.provider.SetDurableCredential(ctx, email, credential); err != nil {
		util.Warn("Failed to restore derived credential after reset",
			zap.String("account_id", acc.AccountID),
			zap.String("kind", idp.KindOf(err).String()))
	}

	if err := s.otps.InvalidateAll(ctx, email); err != nil {
		util.Debug("Failed to invalidate login codes after reset", zap.Error(err))
	}

	s.record(ctx, audit.EventResetConfirmed, acc.EmailHash, audit.OutcomeSuccess, "")
	return nil
}

// ---- internals ----

func (s *AuthService) loadAccount(ctx context.Context, email string) (*model.Account, error) {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, scylla.ErrAccountNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, apperr.Dependency("failed to load account").WithCause(err)
	}
	return acc, nil
}

func (s *AuthService) loadActiveAccount(ctx context.Context, email string) (*model.Account, error) {
	acc, err := s.loadAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	if acc.Status != model.StatusActive {
		return nil, apperr.Authentication("account is not verified")
	}
	return acc, nil
}

// checkSignupCollisions is an advisory fast path; the LWT insert during
// Create remains the final arbiter under concurrency.
func (s *AuthService) checkSignupCollisions(ctx context.Context, email, phone string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := s.accounts.GetByEmail(gctx, email)
		if err == nil {
			return apperr.Conflict("email already registered")
		}
		if errors.Is(err, scylla.ErrAccountNotFound) {
			return nil
		}
		return apperr.Dependency("failed to check email").WithCause(err)
	})

	if phone != "" {
		g.Go(func() error {
			exists, err := s.accounts.ExistsByPhone(gctx, util.NormalizePhone(phone))
			if err != nil {
				return apperr.Dependency("failed to check phone").WithCause(err)
			}
			if exists {
				return apperr.Conflict("phone number already registered")
			}
			return nil
		})
	}

	return g.Wait()
}

// compensateSignup deletes the half-created local account after a provider
// failure. A failed delete leaves an orphan; it is logged loudly and the
// original provider error still reaches the caller.
func (s *AuthService) compensateSignup(ctx context.Context, acc *model.Account) {
	if err := s.accounts.Delete(ctx, acc); err != nil {
		util.Error("Signup compensation failed, local account orphaned",
			zap.String("account_id", acc.AccountID),
			zap.String("email_hash", acc.EmailHash),
			zap.Error(err))
		s.record(ctx, audit.EventSignupCompensated, acc.EmailHash, audit.OutcomeFailure, "orphaned")
		return
	}
	s.record(ctx, audit.EventSignupCompensated, acc.EmailHash, audit.OutcomeSuccess, "")
}

// ensureLinkage attaches a provider identity to the account if it has none
// yet, adopting an existing identity or provisioning one administratively.
func (s *AuthService) ensureLinkage(ctx context.Context, acc *model.Account) error {
	if acc.HasExternalLinkage() {
		return nil
	}

	check, err := s.provider.CheckExists(ctx, acc.Email)
	if err != nil {
		return s.mapProviderError(err, false)
	}

	credential := hashing.DeriveCredential(s.cfg.Auth.ServiceSecret, acc.Email)

	switch resolveLinkage(check) {
	case linkExisting:
		if err := s.provider.SetDurableCredential(ctx, acc.Email, credential); err != nil {
			return s.mapProviderError(err, false)
		}
		if err := s.accounts.SetExternalLink(ctx, acc, check.ExternalID, check.Username); err != nil {
			return apperr.Dependency("failed to link identity").WithCause(err)
		}
	case linkProvision:
		result, err := s.provider.ProvisionAdministrative(ctx, acc.Email, acc.FullName, acc.PhoneNumber)
		if err != nil {
			return s.mapProviderError(err, false)
		}
		if err := s.accounts.SetExternalLink(ctx, acc, result.ExternalID, result.Username); err != nil {
			return apperr.Dependency("failed to link identity").WithCause(err)
		}
	}

	util.Info("Provider identity linked lazily",
		zap.String("account_id", acc.AccountID))
	return nil
}

func (s *AuthService) persistTokens(ctx context.Context, acc *model.Account, tokens *idp.TokenBundle) {
	acc.AccessToken = tokens.AccessToken
	acc.IDToken = tokens.IDToken
	acc.RefreshToken = tokens.RefreshToken
	acc.TokenType = tokens.TokenType
	expiresAt := tokens.ExpiresAt
	acc.TokenExpiresAt = &expiresAt

	if err := s.accounts.UpdateTokens(ctx, acc); err != nil {
		// Tokens are still returned to the caller; only the stored copy
		// is stale.
		util.Warn("Failed to persist token bundle",
			zap.String("account_id", acc.AccountID),
			zap.Error(err))
	}
}

func (s *AuthService) enforceLimit(emailHash, operation string, limit int, window time.Duration) error {
	if s.rateLimits == nil || limit <= 0 {
		return nil
	}
	count, err := s.rateLimits.IncrementEmailCounter(emailHash, operation, window)
	if err != nil {
		// Fail open: a throttle outage must not take logins down with it.
		util.Warn("Rate limit check unavailable",
			zap.String("operation", operation),
			zap.Error(err))
		return nil
	}
	if count > limit {
		return apperr.RateLimited("too many requests, try again later")
	}
	return nil
}

// mapProviderError translates the closed provider kinds into the response
// taxonomy. codeOp marks operations where a bad challenge code is the
// user's own input error, reported as 400 rather than 401.
func (s *AuthService) mapProviderError(err error, codeOp bool) error {
	switch idp.KindOf(err) {
	case idp.KindDuplicate:
		return apperr.Conflict("already registered").WithCause(err)
	case idp.KindNotFound:
		return apperr.NotFound("identity not found").WithCause(err)
	case idp.KindInvalidCode, idp.KindExpiredCode:
		e := apperr.Authentication("invalid or expired code").WithCause(err)
		if codeOp {
			return e.WithStatus(http.StatusBadRequest)
		}
		return e
	case idp.KindRateLimited:
		return apperr.RateLimited("too many requests, try again later").WithCause(err)
	case idp.KindNotAuthorized:
		return apperr.Authentication("not authorized").WithCause(err)
	default:
		return apperr.Dependency("identity provider unavailable").WithCause(err)
	}
}

func (s *AuthService) record(ctx context.Context, eventType, emailHash, outcome, detail string) {
	if s.recorder != nil {
		s.recorder.Record(ctx, eventType, emailHash, outcome, detail)
	}
}

func validateSignup(req *SignupRequest) error {
	if req == nil {
		return apperr.Validation("request body is required")
	}
	if !util.IsValidEmail(util.NormalizeEmail(req.Email)) {
		return apperr.Validation("a valid email is required")
	}
	if len(req.Password) < minPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if util.SanitizeInput(req.FullName) == "" {
		return apperr.Validation("full name is required")
	}
	if util.ContainsSuspicious(req.FullName) {
		return apperr.Validation("full name contains invalid characters")
	}
	return nil
}
