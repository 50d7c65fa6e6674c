package service

import (
	"identity-service/internal/audit"
	"identity-service/internal/config"
	"identity-service/internal/hashing"
	"identity-service/internal/idp"
	"identity-service/internal/notify"
	redisrepo "identity-service/internal/repository/redis"
	"identity-service/internal/repository/scylla"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	accounts   scylla.AccountStore
	otps       scylla.OtpStore
	provider   idp.Provider
	hasher     *hashing.PasswordHasher
	rateLimits *redisrepo.RateLimitCache
	recorder   *audit.Recorder
	notifier   *notify.OtpSender
	cfg        *config.Config

	authService *AuthService
}

func NewServiceFactory(
	accounts scylla.AccountStore,
	otps scylla.OtpStore,
	provider idp.Provider,
	hasher *hashing.PasswordHasher,
	rateLimits *redisrepo.RateLimitCache,
	recorder *audit.Recorder,
	notifier *notify.OtpSender,
	cfg *config.Config,
) *ServiceFactory {
	return &ServiceFactory{
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

// AuthService returns the auth service instance (singleton)
func (f *ServiceFactory) AuthService() *AuthService {
	if f.authService == nil {
		f.authService = NewAuthService(
			f.accounts,
			f.otps,
			f.provider,
			f.hasher,
			f.rateLimits,
			f.recorder,
			f.notifier,
			f.cfg,
		)
	}
	return f.authService
}
