package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	defaultMinInterval    = 1200 * time.Millisecond
	defaultAttemptTimeout = 8 * time.Second
	defaultMaxAttempts    = 3
	defaultBackoffBase    = time.Second
	defaultMaxTokens      = 120
	queueDepth            = 32
	scoreBucketSize       = 500
)

// TextRequest describes one piece of flavor text the game wants.
type TextRequest struct {
	Kind   string
	Level  int
	Score  int
	Member bool
}

// cacheKey buckets the score so nearby scores share an entry.
func (r TextRequest) cacheKey() string {
	return fmt.Sprintf("%s|%d|%d|%t", r.Kind, r.Level, r.Score/scoreBucketSize, r.Member)
}

func (r TextRequest) prompt() string {
	audience := "a casual player"
	if r.Member {
		audience = "a premium member"
	}
	switch r.Kind {
	case KindLevelUp:
		return fmt.Sprintf(
			"Write one short, punchy congratulation (max 15 words) for %s who just reached level %d in a color-matching game with %d points. No emoji, no quotes.",
			audience, r.Level, r.Score)
	case KindGameOver:
		return fmt.Sprintf(
			"Write one short, encouraging game-over message (max 15 words) for %s who finished a color-matching game at level %d with %d points. No emoji, no quotes.",
			audience, r.Level, r.Score)
	default:
		return fmt.Sprintf(
			"Write one short, energetic challenge taunt (max 15 words) for %s at level %d of a color-matching game. No emoji, no quotes.",
			audience, r.Level)
	}
}

type job struct {
	req TextRequest
	out chan string
}

// Client serializes upstream calls through a single worker so the process
// never exceeds one request in flight, caches results for the lifetime of
// the process, and substitutes canned text whenever the upstream fails.
// Fetch never returns an error.
type Client struct {
	gen Generator

	minInterval    time.Duration
	attemptTimeout time.Duration
	maxAttempts    int
	backoffBase    time.Duration

	queue chan job
	done  chan struct{}
	once  sync.Once

	mu    sync.RWMutex
	cache map[string]string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMinInterval overrides the minimum spacing between upstream calls.
func WithMinInterval(d time.Duration) ClientOption {
	return func(c *Client) { c.minInterval = d }
}

// WithAttemptTimeout overrides the per-attempt deadline.
func WithAttemptTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.attemptTimeout = d }
}

// WithBackoffBase overrides the first retry delay.
func WithBackoffBase(d time.Duration) ClientOption {
	return func(c *Client) { c.backoffBase = d }
}

func NewClient(gen Generator, opts ...ClientOption) *Client {
	c := &Client{
		gen:            gen,
		minInterval:    defaultMinInterval,
		attemptTimeout: defaultAttemptTimeout,
		maxAttempts:    defaultMaxAttempts,
		backoffBase:    defaultBackoffBase,
		queue:          make(chan job, queueDepth),
		done:           make(chan struct{}),
		cache:          make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.run()
	return c
}

// Close stops the worker goroutine. Pending jobs receive fallback text.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Fetch returns text for the request, from cache when possible. It blocks
// until the worker answers or ctx is done, and falls back to canned text
// rather than surfacing any error.
func (c *Client) Fetch(ctx context.Context, req TextRequest) string {
	if text, ok := c.cached(req); ok {
		return text
	}
	if c.gen == nil {
		return Fallback(req)
	}

	out := make(chan string, 1)
	select {
	case c.queue <- job{req: req, out: out}:
	case <-c.done:
		return Fallback(req)
	case <-ctx.Done():
		return Fallback(req)
	}

	select {
	case text := <-out:
		return text
	case <-c.done:
		return Fallback(req)
	case <-ctx.Done():
		return Fallback(req)
	}
}

func (c *Client) cached(req TextRequest) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.cache[req.cacheKey()]
	return text, ok
}

func (c *Client) store(req TextRequest, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[req.cacheKey()] = text
}

func (c *Client) run() {
	var last time.Time
	for {
		select {
		case <-c.done:
			return
		case j := <-c.queue:
			// A queued duplicate may have been answered while waiting.
			if text, ok := c.cached(j.req); ok {
				j.out <- text
				continue
			}

			if wait := c.minInterval - time.Since(last); wait > 0 {
				time.Sleep(wait)
			}
			last = time.Now()

			text, err := c.attempt(j.req)
			if err != nil {
				log.Printf("AI generation failed, serving fallback: %v", err)
				j.out <- Fallback(j.req)
				continue
			}
			c.store(j.req, text)
			j.out <- text
		}
	}
}

// attempt calls the generator, retrying only on rate limiting.
func (c *Client) attempt(req TextRequest) (string, error) {
	backoff := c.backoffBase
	var lastErr error
	for i := 0; i < c.maxAttempts; i++ {
		if i > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.attemptTimeout)
		text, err := c.gen.Generate(ctx, Params{
			Prompt:    req.prompt(),
			MaxTokens: defaultMaxTokens,
		})
		cancel()

		if err == nil {
			return text, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRateLimited) {
			return "", err
		}
	}
	return "", lastErr
}
