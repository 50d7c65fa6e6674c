package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"identity-service/internal/apperr"
	"identity-service/internal/config"
	"identity-service/internal/permissions"
	"identity-service/internal/service"
	"identity-service/internal/util"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// IPLimiter is the slice of the rate-limit cache the HTTP boundary needs.
type IPLimiter interface {
	IncrementIPCounter(ipAddress string, ttl time.Duration) (int, error)
}

// AuthHandler handles HTTP requests for the account lifecycle operations
type AuthHandler struct {
	authService *service.AuthService
	ipLimiter   IPLimiter
	ipLimit     int
	ipWindow    time.Duration
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler. A nil limiter disables the
// per-IP throttle.
func NewAuthHandler(authService *service.AuthService, ipLimiter IPLimiter, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		ipLimiter:   ipLimiter,
		ipLimit:     cfg.Auth.IPRequestLimit,
		ipWindow:    cfg.Auth.IPRequestWindow,
		logger:      logger,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta represents pagination metadata
type Meta struct {
	PageToken string `json:"page_token,omitempty"`
	Total     int    `json:"total,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
}

// successResponse creates a successful response
func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

// emailRequest is the body shape shared by the email-only endpoints.
type emailRequest struct {
	Email string `json:"email"`
}

// codeRequest is the body shape for endpoints that confirm a challenge code.
type codeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// RegisterRoutes registers all auth routes
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Use(h.ipRateLimit)

		r.Post("/signup", h.Signup)
		r.Post("/verify-email", h.VerifyEmail)
		r.Post("/resend-verification", h.ResendVerification)

		r.Route("/login", func(r chi.Router) {
			r.Post("/otp/send", h.SendLoginOtp)
			r.Post("/otp/verify", h.VerifyLoginOtp)
			r.Post("/password", h.SigninViaPassword)
		})

		r.Route("/password-reset", func(r chi.Router) {
			r.Post("/send", h.SendPasswordResetOtp)
			r.Post("/confirm", h.ConfirmPasswordReset)
		})
	})

	router.Get("/permissions/templates", h.ListPermissionTemplates)
}

// Signup handles self-service account registration
// @Summary Register a new account
// @Description Create a local account and provision a matching provider identity
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignupRequest true "Signup request"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req service.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, apperr.Validation("invalid request body").WithCause(err))
		return
	}

	result, err := h.authService.Signup(ctx, &req)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, successResponse(result, "Account created, verification code sent"))
	h.logger.Info("Account created via HTTP",
		util.String("account_id", result.Account.AccountID),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "Signup"),
	)
}

// VerifyEmail handles the email verification code confirmation
// @Summary Verify an email address
// @Description Confirm the verification code and activate the account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body codeRequest true "Verification request"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, apperr.Validation("invalid request body").WithCause(err))
		return
	}

	result, err := h.authService.VerifyEmail(ctx, req.Email, req.Code)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(result, "Email verified"))
	h.logger.Info("Email verified via HTTP",
		util.String("account_id", result.Account.AccountID),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "VerifyEmail"),
	)
}

// ResendVerification handles re-sending the verification code
// @Summary Resend the verification code
// @Description Trigger a fresh verification code for a pending account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body emailRequest true "Resend request"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, apperr.Validation("invalid request body").WithCause(err))
		return
	}

	if err := h.authService.ResendVerification(ctx, req.Email); err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Verification code sent"))
}

// SendLoginOtp handles issuing a one-time login code
// @Summary Send a login code
// @Description Issue a single-use login code for an active account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body emailRequest true "Login code request"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 429 {object} Response
// @Router /auth/login/otp/send [post]
func (h *AuthHandler) SendLoginOtp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, apperr.Validation("invalid request body").WithCause(err))
		return
	}

	if err := h.authService.SendLoginOtp(ctx, req.Email); err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Login code sent"))
}

// VerifyLoginOtp handles one-time login code verification
// @Summary Verify a login code
// @Description Consume a login code and issue session tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body codeRequest true "Login verification request"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 404 {object} Response
// @Router /auth/login/otp/verify [post]
func (h *AuthHandler) VerifyLoginOtp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, apperr.Validation("invalid request body").WithCause(err))
		return
	}

	result, err := h.authService.VerifyLoginOtp(ctx, req.Email, req.Code)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(result, "Login successful"))
	h.logger.Info("OTP login via HTTP",
		util.String("account_id", result.Account.AccountID),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "VerifyLoginOtp"),
	)
}

// SigninViaPassword handles password authentication
// @Summary Sign in with a password
// @Description Authenticate against the stored password hash
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object true "Password login request"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 429 {object} Response
// @Router /auth/login/password [post]
func (h *AuthHandler) SigninViaPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, apperr.Validation("invalid request body").WithCause(err))
		return
	}

	result, err := h.authService.SigninViaPassword(ctx, req.Email, req.Password)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(result, "Login successful"))
	h.logger.Info("Password login via HTTP",
		util.String("account_id", result.Account.AccountID),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "SigninViaPassword"),
	)
}

// SendPasswordResetOtp handles starting a password reset
// @Summary Send a password reset code
// @Description Trigger the provider reset challenge for an active account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body emailRequest true "Reset request"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 429 {object} Response
// @Router /auth/password-reset/send [post]
func (h *AuthHandler) SendPasswordResetOtp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, apperr.Validation("invalid request body").WithCause(err))
		return
	}

	if err := h.authService.SendPasswordResetOtp(ctx, req.Email); err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Password reset code sent"))
}

// ConfirmPasswordReset handles completing a password reset
// @Summary Confirm a password reset
// @Description Validate the reset code and store the new password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object true "Reset confirmation request"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /auth/password-reset/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Email       string `json:"email"`
		Code        string `json:"code"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, apperr.Validation("invalid request body").WithCause(err))
		return
	}

	if err := h.authService.ConfirmPasswordReset(ctx, req.Email, req.Code, req.NewPassword); err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Password reset"))
}

// ListPermissionTemplates handles listing the built-in role templates
// @Summary List permission templates
// @Description List the role templates accounts can be assigned
// @Tags permissions
// @Produce json
// @Success 200 {object} Response
// @Router /permissions/templates [get]
func (h *AuthHandler) ListPermissionTemplates(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK,
		successResponse(permissions.AvailableTemplates(), "Permission templates retrieved"))
}

// ipRateLimit throttles the auth endpoints per source address before any
// per-email counter is consulted. The address comes from RemoteAddr, which
// the RealIP middleware has already rewritten to the client IP. A limiter
// outage fails open: throttling must never take logins down with it.
func (h *AuthHandler) ipRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.ipLimiter == nil || h.ipLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		count, err := h.ipLimiter.IncrementIPCounter(ip, h.ipWindow)
		if err != nil {
			h.logger.Warn("IP rate limit check unavailable",
				util.String("remote_addr", ip),
				util.ErrorField(err),
			)
			next.ServeHTTP(w, r)
			return
		}
		if count > h.ipLimit {
			h.respondWithError(w, apperr.RateLimited("too many requests, try again later"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Helper Methods

// respondWithJSON sends a JSON response
func (h *AuthHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError serializes a classified error. The status and message come
// from the taxonomy, so raw internals never reach the wire.
func (h *AuthHandler) respondWithError(w http.ResponseWriter, err error) {
	statusCode := apperr.StatusOf(err)
	message := apperr.MessageOf(err)

	h.logger.Warn("HTTP error response",
		util.ErrorField(err),
		util.Int("status_code", statusCode),
		util.String("message", message),
	)
	h.respondWithJSON(w, statusCode, Response{
		Success: false,
		Error:   message,
	})
}
