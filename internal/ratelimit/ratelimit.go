package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// window holds the request timestamps recorded for one credential within
// the trailing rate-limit period.
type window struct {
	mu     sync.Mutex
	stamps []time.Time
}

// Limiter is a sliding-window-log admission controller keyed by credential.
// State is process-local: horizontally scaled instances each enforce their
// own quota. Entries live for the process lifetime; there is no idle
// eviction.
type Limiter struct {
	mu          sync.RWMutex
	windows     map[string]*window
	maxRequests int
	windowLen   time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

type Config struct {
	MaxRequests   int
	WindowSeconds int
	Logger        *zap.Logger
}

func New(cfg Config) *Limiter {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 500
	}
	if cfg.WindowSeconds == 0 {
		cfg.WindowSeconds = 3600
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Limiter{
		windows:     make(map[string]*window),
		maxRequests: cfg.MaxRequests,
		windowLen:   time.Duration(cfg.WindowSeconds) * time.Second,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// Admit reports whether a request for the given credential may proceed.
// Expired timestamps are pruned first; if the remaining count has reached
// the quota the request is denied and not recorded, otherwise the current
// time is appended. Exactly MaxRequests requests fit in any trailing
// window.
func (l *Limiter) Admit(credential string) bool {
	w := l.window(credential)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.windowLen)

	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= l.maxRequests {
		l.logger.Warn("Rate limit exceeded",
			zap.Int("recorded", len(w.stamps)),
			zap.Int("max_requests", l.maxRequests),
		)
		return false
	}

	w.stamps = append(w.stamps, now)
	return true
}

func (l *Limiter) window(credential string) *window {
	l.mu.RLock()
	w, ok := l.windows[credential]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.windows[credential]; ok {
		return w
	}
	w = &window{}
	l.windows[credential] = w
	return w
}

// SetClock overrides the time source. Tests only.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}
