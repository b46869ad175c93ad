package guard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Window tracks request timestamps per client IP over a trailing span.
// Admit prunes expired entries, checks the ceiling, and records the hit only
// when the request is admitted. Count is the side-effect-free probe.
type Window interface {
	Admit(ctx context.Context, ip string, now time.Time) (count int, ok bool, err error)
	Count(ctx context.Context, ip string, now time.Time) (int, error)
}

// RatePolicy denies requests once a client IP exceeds the ceiling within
// the window. A window backend error fails open with a logged warning.
type RatePolicy struct {
	enabled bool
	ceiling int
	span    time.Duration
	window  Window
	logger  *slog.Logger
}

func NewRatePolicy(enabled bool, ceiling int, span time.Duration, window Window, logger *slog.Logger) *RatePolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &RatePolicy{enabled: enabled, ceiling: ceiling, span: span, window: window, logger: logger}
}

func (p *RatePolicy) Name() string { return "rate_limit" }

func (p *RatePolicy) Evaluate(ctx context.Context, req *Request) *Denial {
	if !p.enabled {
		return nil
	}
	_, ok, err := p.window.Admit(ctx, req.ClientIP, time.Now())
	if err != nil {
		p.logger.WarnContext(ctx, "rate-limit window unavailable, admitting", "client_ip", req.ClientIP, "error", err)
		return nil
	}
	if !ok {
		return &Denial{
			Status:  http.StatusTooManyRequests,
			Reason:  "rate_limited",
			Message: fmt.Sprintf("at most %d requests every %d seconds, try again later", p.ceiling, int(p.span.Seconds())),
		}
	}
	return nil
}

// MemoryWindow is the in-process sliding window, one timestamp slice per IP
// guarded by a single mutex.
type MemoryWindow struct {
	mu      sync.Mutex
	ceiling int
	span    time.Duration
	hits    map[string][]time.Time
}

func NewMemoryWindow(ceiling int, span time.Duration) *MemoryWindow {
	return &MemoryWindow{
		ceiling: ceiling,
		span:    span,
		hits:    make(map[string][]time.Time),
	}
}

func (w *MemoryWindow) Admit(_ context.Context, ip string, now time.Time) (int, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.pruneLocked(ip, now)
	if len(kept) >= w.ceiling {
		return len(kept), false, nil
	}
	kept = append(kept, now)
	w.hits[ip] = kept
	return len(kept), true, nil
}

func (w *MemoryWindow) Count(_ context.Context, ip string, now time.Time) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pruneLocked(ip, now)), nil
}

func (w *MemoryWindow) pruneLocked(ip string, now time.Time) []time.Time {
	hits := w.hits[ip]
	kept := hits[:0]
	for _, t := range hits {
		if now.Sub(t) < w.span {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(w.hits, ip)
		return nil
	}
	w.hits[ip] = kept
	return kept
}
