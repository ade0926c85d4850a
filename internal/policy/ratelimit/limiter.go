// Package ratelimit implements a per-host token bucket limiter for image
// probes.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/review-catalog/internal/metrics"
	"github.com/JakeFAU/review-catalog/internal/placeholder"
)

// Limiter manages per-host rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration. A non-positive RPS disables
// limiting.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for the URL's host, respecting the
// context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := metrics.SanitizeSite(rawURL)

	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Immediate grants are not worth a sample.
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

// Prober delays every request of the wrapped prober on the limiter.
type Prober struct {
	next    placeholder.Prober
	limiter *Limiter
}

// Wrap returns next behind l.
func Wrap(next placeholder.Prober, l *Limiter) *Prober {
	return &Prober{next: next, limiter: l}
}

// Head implements placeholder.Prober.
func (p *Prober) Head(ctx context.Context, url string) (placeholder.Meta, error) {
	if err := p.limiter.Wait(ctx, url); err != nil {
		return placeholder.Meta{ContentLength: -1}, err
	}
	return p.next.Head(ctx, url)
}

// FetchPrefix implements placeholder.Prober.
func (p *Prober) FetchPrefix(ctx context.Context, url string, n int) ([]byte, error) {
	if err := p.limiter.Wait(ctx, url); err != nil {
		return nil, err
	}
	return p.next.FetchPrefix(ctx, url, n)
}
