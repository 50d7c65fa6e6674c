package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"identity-service/internal/config"
)

type stubIPLimiter struct {
	count int
	err   error
	seen  []string
}

func (s *stubIPLimiter) IncrementIPCounter(ip string, ttl time.Duration) (int, error) {
	s.seen = append(s.seen, ip)
	if s.err != nil {
		return 0, s.err
	}
	s.count++
	return s.count, nil
}

func newThrottledHandler(limiter IPLimiter, limit int) *AuthHandler {
	cfg := &config.Config{}
	cfg.Auth.IPRequestLimit = limit
	cfg.Auth.IPRequestWindow = 15 * time.Minute
	return NewAuthHandler(nil, limiter, cfg, zap.NewNop())
}

func serveThrottled(h *AuthHandler, remoteAddr string) (*httptest.ResponseRecorder, bool) {
	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/login/otp/send", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()

	h.ipRateLimit(next).ServeHTTP(rec, req)
	return rec, nextCalled
}

func TestIPRateLimit_BlocksOverLimit(t *testing.T) {
	limiter := &stubIPLimiter{}
	h := newThrottledHandler(limiter, 2)

	for i := 0; i < 2; i++ {
		rec, nextCalled := serveThrottled(h, "10.0.0.1:40001")
		assert.True(t, nextCalled)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec, nextCalled := serveThrottled(h, "10.0.0.1:40001")
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "too many requests, try again later", resp.Error)
}

func TestIPRateLimit_KeysOnHostWithoutPort(t *testing.T) {
	limiter := &stubIPLimiter{}
	h := newThrottledHandler(limiter, 5)

	serveThrottled(h, "10.0.0.1:40001")
	serveThrottled(h, "10.0.0.1")

	require.Len(t, limiter.seen, 2)
	assert.Equal(t, "10.0.0.1", limiter.seen[0])
	assert.Equal(t, "10.0.0.1", limiter.seen[1])
}

func TestIPRateLimit_FailsOpenOnLimiterOutage(t *testing.T) {
	limiter := &stubIPLimiter{err: errors.New("redis down")}
	h := newThrottledHandler(limiter, 1)

	for i := 0; i < 3; i++ {
		rec, nextCalled := serveThrottled(h, "10.0.0.2:40002")
		assert.True(t, nextCalled)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestIPRateLimit_DisabledWithoutLimiter(t *testing.T) {
	h := newThrottledHandler(nil, 1)

	for i := 0; i < 3; i++ {
		rec, nextCalled := serveThrottled(h, "10.0.0.3:40003")
		assert.True(t, nextCalled)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
