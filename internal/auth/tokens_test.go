package auth

import (
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	tokens := NewTokens(5 * time.Minute)

	token := tokens.Issue()
	if token == "" {
		t.Fatal("Expected non-empty token")
	}

	if !tokens.Validate(token) {
		t.Error("Expected freshly issued token to validate")
	}
}

func TestValidateIsSingleUse(t *testing.T) {
	tokens := NewTokens(5 * time.Minute)

	token := tokens.Issue()
	if !tokens.Validate(token) {
		t.Fatal("First validation should succeed")
	}
	if tokens.Validate(token) {
		t.Error("Second validation of the same token must fail")
	}
}

func TestValidateUnknownToken(t *testing.T) {
	tokens := NewTokens(5 * time.Minute)

	if tokens.Validate("never-issued") {
		t.Error("Expected unknown token to be rejected")
	}
}

func TestExpiredTokenRejectedAndConsumed(t *testing.T) {
	tokens := NewTokens(-time.Second) // Already expired on issue

	token := tokens.Issue()
	if tokens.Validate(token) {
		t.Error("Expected expired token to be rejected")
	}
	if tokens.Outstanding() != 0 {
		t.Error("Expected expired token consumed by the validation attempt")
	}
}

func TestSweepExpired(t *testing.T) {
	tokens := NewTokens(5 * time.Minute)

	live := tokens.Issue()
	stale := tokens.Issue()

	tokens.mu.Lock()
	tokens.issued[stale] = time.Now().Add(-time.Minute)
	tokens.mu.Unlock()

	if swept := tokens.SweepExpired(time.Now()); swept != 1 {
		t.Errorf("Expected 1 token swept, got %d", swept)
	}

	if !tokens.Validate(live) {
		t.Error("Expected live token to survive the sweep")
	}
	if tokens.Validate(stale) {
		t.Error("Expected stale token removed by the sweep")
	}
}

func TestTokensAreUnique(t *testing.T) {
	tokens := NewTokens(5 * time.Minute)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token := tokens.Issue()
		if seen[token] {
			t.Fatalf("Duplicate token issued: %s", token)
		}
		seen[token] = true
	}
}
