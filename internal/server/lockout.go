// lockout.go - Account lockout mechanism to prevent brute-force logins
package server

import (
	"sync"
	"time"
)

// loginAttempt tracks failed login attempts for an account
type loginAttempt struct {
	count       int
	lastAttempt time.Time
	lockedUntil time.Time
}

// accountLockout locks an account after repeated failed logins.
// Keyed by email so distributed guessing against one account gets caught
// even across source IPs.
type accountLockout struct {
	mu              sync.RWMutex
	attempts        map[string]*loginAttempt
	maxAttempts     int
	lockoutDuration time.Duration
	windowDuration  time.Duration
}

func newAccountLockout(maxAttempts int, lockoutDuration, windowDuration time.Duration) *accountLockout {
	al := &accountLockout{
		attempts:        make(map[string]*loginAttempt),
		maxAttempts:     maxAttempts,
		lockoutDuration: lockoutDuration,
		windowDuration:  windowDuration,
	}

	go al.cleanup()

	return al
}

// recordFailure records a failed login attempt and reports whether the
// account just crossed into locked state.
func (al *accountLockout) recordFailure(email string) (locked bool) {
	al.mu.Lock()
	defer al.mu.Unlock()

	now := time.Now()

	attempt, exists := al.attempts[email]
	if !exists {
		attempt = &loginAttempt{}
		al.attempts[email] = attempt
	}

	// Reset count if outside window
	if now.Sub(attempt.lastAttempt) > al.windowDuration {
		attempt.count = 0
	}

	attempt.count++
	attempt.lastAttempt = now

	if attempt.count >= al.maxAttempts {
		attempt.lockedUntil = now.Add(al.lockoutDuration)
		return true
	}
	return false
}

// recordSuccess resets failed attempts for an email
func (al *accountLockout) recordSuccess(email string) {
	al.mu.Lock()
	defer al.mu.Unlock()
	delete(al.attempts, email)
}

// isLocked checks if an account is currently locked
func (al *accountLockout) isLocked(email string) bool {
	al.mu.RLock()
	defer al.mu.RUnlock()

	attempt, exists := al.attempts[email]
	if !exists {
		return false
	}
	return !attempt.lockedUntil.IsZero() && time.Now().Before(attempt.lockedUntil)
}

// cleanup removes expired lockout entries
func (al *accountLockout) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		al.mu.Lock()
		now := time.Now()

		for email, attempt := range al.attempts {
			if (attempt.lockedUntil.IsZero() || now.After(attempt.lockedUntil)) &&
				now.Sub(attempt.lastAttempt) > 2*al.windowDuration {
				delete(al.attempts, email)
			}
		}

		al.mu.Unlock()
	}
}
