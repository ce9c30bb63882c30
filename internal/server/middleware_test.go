package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	assert := assert.New(t)

	limiter := NewRateLimiter(3, time.Minute)
	assert.True(limiter.Allow("caller"))
	assert.True(limiter.Allow("caller"))
	assert.True(limiter.Allow("caller"))
	assert.False(limiter.Allow("caller"))
}

func TestRateLimiterIsPerCaller(t *testing.T) {
	assert := assert.New(t)

	limiter := NewRateLimiter(1, time.Minute)
	assert.True(limiter.Allow("a"))
	assert.False(limiter.Allow("a"))
	assert.True(limiter.Allow("b"))
}

func TestRateLimiterWindowSlides(t *testing.T) {
	assert := assert.New(t)

	limiter := NewRateLimiter(1, 50*time.Millisecond)
	assert.True(limiter.Allow("caller"))
	assert.False(limiter.Allow("caller"))

	time.Sleep(60 * time.Millisecond)
	assert.True(limiter.Allow("caller"))
}

func TestRateLimiterForgetAndCleanup(t *testing.T) {
	assert := assert.New(t)

	limiter := NewRateLimiter(1, 10*time.Millisecond)
	limiter.Allow("a")
	limiter.Allow("b")

	limiter.Forget("a")
	assert.True(limiter.Allow("a"))

	time.Sleep(20 * time.Millisecond)
	limiter.Cleanup()
	limiter.mu.Lock()
	assert.Empty(limiter.requests)
	limiter.mu.Unlock()
}

func TestConnectionHealthTracksInactivity(t *testing.T) {
	assert := assert.New(t)

	health := NewConnectionHealth()
	health.UpdateActivity("conn-1")
	health.UpdateActivity("conn-2")

	assert.Empty(health.GetInactiveConnections(time.Minute))

	time.Sleep(20 * time.Millisecond)
	health.UpdateActivity("conn-2")

	inactive := health.GetInactiveConnections(10 * time.Millisecond)
	assert.Equal([]string{"conn-1"}, inactive)

	health.RemoveConnection("conn-1")
	assert.Empty(health.GetInactiveConnections(10 * time.Millisecond))
}

func TestValidateMessageType(t *testing.T) {
	assert := assert.New(t)

	for _, valid := range []string{"ping", "hello", "start_game", "match_points", "activate_powerup", "open_store", "close_store", "purchase_item", "watch_ad", "set_audio", "get_state"} {
		assert.NoError(ValidateMessageType(valid))
	}

	assert.ErrorContains(ValidateMessageType("execute_move"), "INVALID_MESSAGE_TYPE")
	assert.ErrorContains(ValidateMessageType(""), "INVALID_MESSAGE_TYPE")
}

func TestValidatePrompt(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(ValidatePrompt("write me a taunt"))
	assert.ErrorContains(ValidatePrompt(""), "PROMPT_INVALID")
	assert.ErrorContains(ValidatePrompt(strings.Repeat("x", 5001)), "PROMPT_INVALID")
	assert.NoError(ValidatePrompt(strings.Repeat("x", 5000)))
}

func TestRecoveryMiddleware(t *testing.T) {
	assert := assert.New(t)

	handler := recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(http.StatusInternalServerError, rec.Code)
	assert.Contains(rec.Body.String(), "internal_error")
	assert.NotContains(rec.Body.String(), "boom")
}

func TestCallerKey(t *testing.T) {
	assert := assert.New(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:4567"
	assert.Equal("10.1.2.3", callerKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal("203.0.113.9", callerKey(req))
}
