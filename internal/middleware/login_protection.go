// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alrawaj/rawaj-web/internal/util"
)

// maxLockout caps the exponential account lockout.
const maxLockout = 24 * time.Hour

// LoginProtection combines a per-IP rate limit on credential forms with
// a per-email lockout after repeated failed sign-ins.
type LoginProtection struct {
	ipLimiters *limiterCache

	attemptsMu     sync.Mutex
	failedAttempts map[string]*loginAttempt

	maxFailedAttempts int
	lockoutDuration   time.Duration
	attemptWindow     time.Duration

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

type loginAttempt struct {
	count       int
	firstFailed time.Time
	lockedUntil time.Time
	lockouts    int
}

// LoginProtectionConfig holds configuration for login protection.
type LoginProtectionConfig struct {
	// IPRateLimit is form posts per second per IP.
	IPRateLimit float64
	IPBurst     int
	// MaxFailedAttempts within AttemptWindow lock the email.
	MaxFailedAttempts int
	// LockoutDuration doubles with every further lockout.
	LockoutDuration time.Duration
	AttemptWindow   time.Duration
}

// DefaultLoginProtectionConfig returns the production defaults.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

// NewLoginProtection creates a LoginProtection and starts its cleanup
// loop. Call Close to stop it.
func NewLoginProtection(cfg LoginProtectionConfig) *LoginProtection {
	def := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = def.IPRateLimit
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = def.IPBurst
	}
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = def.AttemptWindow
	}

	lp := &LoginProtection{
		ipLimiters:        newLimiterCache(cfg.IPRateLimit, cfg.IPBurst),
		failedAttempts:    make(map[string]*loginAttempt),
		maxFailedAttempts: cfg.MaxFailedAttempts,
		lockoutDuration:   cfg.LockoutDuration,
		attemptWindow:     cfg.AttemptWindow,
		now:               time.Now,
		stop:              make(chan struct{}),
	}
	go lp.cleanup()
	return lp
}

// Close stops the cleanup loop.
func (lp *LoginProtection) Close() {
	lp.once.Do(func() { close(lp.stop) })
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AllowIP reports whether ip may submit another credential form.
func (lp *LoginProtection) AllowIP(ip string) bool {
	return lp.ipLimiters.get(ip).Allow()
}

// IsLocked reports whether email is locked and for how much longer.
func (lp *LoginProtection) IsLocked(email string) (bool, time.Duration) {
	lp.attemptsMu.Lock()
	defer lp.attemptsMu.Unlock()

	attempt, ok := lp.failedAttempts[normalizeEmail(email)]
	if !ok {
		return false, 0
	}
	now := lp.now()
	if now.Before(attempt.lockedUntil) {
		return true, attempt.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure counts a failed sign-in and reports whether the email
// is now locked.
func (lp *LoginProtection) RecordFailure(email string) (bool, time.Duration) {
	email = normalizeEmail(email)
	now := lp.now()

	lp.attemptsMu.Lock()
	defer lp.attemptsMu.Unlock()

	attempt, ok := lp.failedAttempts[email]
	if !ok || now.Sub(attempt.firstFailed) > lp.attemptWindow {
		if !ok {
			attempt = &loginAttempt{}
			lp.failedAttempts[email] = attempt
		}
		attempt.count = 1
		attempt.firstFailed = now
		return false, 0
	}

	attempt.count++
	if attempt.count < lp.maxFailedAttempts {
		return false, 0
	}

	lockFor := lp.lockoutDuration
	for i := 0; i < attempt.lockouts && lockFor < maxLockout; i++ {
		lockFor *= 2
	}
	lockFor = min(lockFor, maxLockout)
	attempt.lockedUntil = now.Add(lockFor)
	attempt.lockouts++
	attempt.count = 0

	slog.Warn("auth account locked after failed sign-ins",
		"email", email,
		"lockouts", attempt.lockouts,
		"duration", lockFor,
	)
	return true, lockFor
}

// RecordSuccess clears the failure history of email.
func (lp *LoginProtection) RecordSuccess(email string) {
	lp.attemptsMu.Lock()
	defer lp.attemptsMu.Unlock()
	delete(lp.failedAttempts, normalizeEmail(email))
}

// RemainingAttempts returns how many failures are left before lockout.
func (lp *LoginProtection) RemainingAttempts(email string) int {
	lp.attemptsMu.Lock()
	defer lp.attemptsMu.Unlock()

	attempt, ok := lp.failedAttempts[normalizeEmail(email)]
	if !ok || lp.now().Sub(attempt.firstFailed) > lp.attemptWindow {
		return lp.maxFailedAttempts
	}
	return max(lp.maxFailedAttempts-attempt.count, 0)
}

func (lp *LoginProtection) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lp.cleanupStaleEntries()
		case <-lp.stop:
			return
		}
	}
}

func (lp *LoginProtection) cleanupStaleEntries() {
	if lp.ipLimiters.clearIfExceeds(10000) {
		slog.Info("cleared login rate limiters due to size")
	}

	now := lp.now()
	lp.attemptsMu.Lock()
	defer lp.attemptsMu.Unlock()
	for email, attempt := range lp.failedAttempts {
		if now.After(attempt.lockedUntil) && now.Sub(attempt.firstFailed) > lp.attemptWindow {
			delete(lp.failedAttempts, email)
		}
	}
}

// Middleware rate limits POST requests per client IP.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := util.ClientIP(r)
			if !lp.AllowIP(ip) {
				slog.Warn("auth form rate limit exceeded", "ip", ip, "path", r.URL.Path)
				msg := "Too many requests"
				if v := GetVisitor(r); v != nil {
					msg = v.Language.T("auth.tooManyAttempts")
				}
				http.Error(w, msg, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limiterCache holds one token bucket per key.
type limiterCache struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newLimiterCache(rps float64, burst int) *limiterCache {
	return &limiterCache{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (lc *limiterCache) get(key string) *rate.Limiter {
	lc.mu.RLock()
	limiter, ok := lc.limiters[key]
	lc.mu.RUnlock()
	if ok {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if limiter, ok = lc.limiters[key]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

func (lc *limiterCache) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[string]*rate.Limiter)
		return true
	}
	return false
}
