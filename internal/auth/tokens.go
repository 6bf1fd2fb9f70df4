// Package auth issues the one-time tokens that gate the human-facing
// control surface. Tokens are volatile, single-use, and expire on their own;
// there is no password or identity handling here.
package auth

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tokens is an in-memory one-time token store.
type Tokens struct {
	mu     sync.Mutex
	ttl    time.Duration
	issued map[string]time.Time // token -> expiry
}

// NewTokens creates a token store with the given time-to-live.
func NewTokens(ttl time.Duration) *Tokens {
	return &Tokens{
		ttl:    ttl,
		issued: make(map[string]time.Time),
	}
}

// Issue mints a fresh single-use token.
func (t *Tokens) Issue() string {
	token := uuid.New().String()

	t.mu.Lock()
	t.issued[token] = time.Now().Add(t.ttl)
	t.mu.Unlock()

	return token
}

// Validate reports whether a token is live and consumes it on success.
// A token validates at most once; expired and unknown tokens report false.
func (t *Tokens) Validate(token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiry, exists := t.issued[token]
	if !exists {
		return false
	}

	// Invalidate-on-use: the token is gone either way
	delete(t.issued, token)

	return time.Now().Before(expiry)
}

// SweepExpired removes tokens past their expiry and returns how many were
// dropped. Called by the expiry sweeper on its fixed period.
func (t *Tokens) SweepExpired(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	swept := 0
	for token, expiry := range t.issued {
		if now.After(expiry) {
			delete(t.issued, token)
			swept++
		}
	}

	if swept > 0 {
		log.Printf("Swept %d expired auth tokens", swept)
	}
	return swept
}

// Outstanding returns how many unconsumed tokens are live, for health stats.
func (t *Tokens) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.issued)
}
