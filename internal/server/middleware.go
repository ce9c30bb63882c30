package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"colorflow-server/internal/ai"
)

// RateLimiter implements per-caller rate limiting using a sliding window algorithm
// Why sliding window: Prevents burst attacks while allowing consistent legitimate traffic
// Why per-caller: One abusive client shouldn't affect others
type RateLimiter struct {
	maxRequests int                    // Maximum requests allowed per window
	window      time.Duration          // Time window for rate limiting
	requests    map[string][]time.Time // caller key -> timestamps of recent requests
	mu          sync.Mutex             // Protects concurrent access to requests map
}

// NewRateLimiter creates a new rate limiter
// maxRequests: number of requests allowed per window
// window: duration of the sliding window (e.g., 60 seconds for 60 req/min)
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow checks if a caller may proceed
// Returns true if allowed, false if rate limited
// Why sliding window: We remove old timestamps and count remaining ones
// This provides smoother rate limiting than fixed windows
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	timestamps := r.requests[key]

	// Remove timestamps outside the window
	// Why filter: Keep memory usage bounded and only count recent requests
	validTimestamps := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			validTimestamps = append(validTimestamps, ts)
		}
	}

	if len(validTimestamps) >= r.maxRequests {
		r.requests[key] = validTimestamps
		return false
	}

	validTimestamps = append(validTimestamps, now)
	r.requests[key] = validTimestamps
	return true
}

// Cleanup removes old caller data to prevent memory leaks
// Should be called periodically
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	for key, timestamps := range r.requests {
		allOld := true
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				allOld = false
				break
			}
		}
		if allOld {
			delete(r.requests, key)
		}
	}
}

// Forget immediately removes rate limit data for a caller
func (r *RateLimiter) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, key)
}

// ConnectionHealth tracks last activity time for each websocket connection
// Used for detecting dead/inactive connections
// Why separate from RateLimiter: Different concerns - health vs abuse prevention
type ConnectionHealth struct {
	lastActivity map[string]time.Time // connectionID -> last message time
	mu           sync.RWMutex         // Read-heavy workload, so RWMutex is better
}

// NewConnectionHealth creates a new connection health tracker
func NewConnectionHealth() *ConnectionHealth {
	return &ConnectionHealth{
		lastActivity: make(map[string]time.Time),
	}
}

// UpdateActivity records that a connection is active
// Should be called on every message received
func (h *ConnectionHealth) UpdateActivity(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity[connectionID] = time.Now()
}

// GetInactiveConnections returns all connections inactive longer than timeout
// Used for batch cleanup operations
func (h *ConnectionHealth) GetInactiveConnections(timeout time.Duration) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	inactive := make([]string, 0)
	now := time.Now()

	for connID, lastActivity := range h.lastActivity {
		if now.Sub(lastActivity) > timeout {
			inactive = append(inactive, connID)
		}
	}

	return inactive
}

// RemoveConnection removes health tracking for a connection
// Should be called when websocket disconnects
func (h *ConnectionHealth) RemoveConnection(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastActivity, connectionID)
}

// ValidateMessageType checks if a websocket message type is recognized
// Why: Return clear error for typos/invalid message types
func ValidateMessageType(msgType string) error {
	validTypes := map[string]bool{
		"ping":             true,
		"hello":            true,
		"start_game":       true,
		"match_points":     true,
		"activate_powerup": true,
		"open_store":       true,
		"close_store":      true,
		"purchase_item":    true,
		"watch_ad":         true,
		"set_audio":        true,
		"get_state":        true,
	}

	if !validTypes[msgType] {
		return fmt.Errorf("INVALID_MESSAGE_TYPE: Unknown message type '%s'", msgType)
	}
	return nil
}

// ValidatePrompt checks prompt requirements for the AI endpoint
func ValidatePrompt(prompt string) error {
	if len(prompt) == 0 {
		return fmt.Errorf("PROMPT_INVALID: Prompt is required")
	}
	if len(prompt) > ai.MaxPromptLength {
		return fmt.Errorf("PROMPT_INVALID: Prompt too long (max %d characters)", ai.MaxPromptLength)
	}
	return nil
}

// recoveryMiddleware converts handler panics into a generic 500 envelope
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("Panic in %s %s: %v", r.Method, r.URL.Path, rec)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(APIErrorResponse{
					Success: false,
					Error:   "internal_error",
					Message: "Something went wrong",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// callerKey extracts the client address used as the rate limit key
func callerKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
