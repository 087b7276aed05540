package ratelimit

import (
	"encoding/json"
	"testing"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(2.0, 2) // 2 RPS, burst of 2

	if !limiter.Allow("gemini") {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow("gemini") {
		t.Error("Second request should be allowed")
	}

	if limiter.Allow("gemini") {
		t.Error("Third request should be blocked")
	}
}

func TestLimiter_IndependentKeys(t *testing.T) {
	limiter := NewLimiter(1.0, 1)

	if !limiter.Allow("gemini") {
		t.Error("First request to gemini should be allowed")
	}
	if !limiter.Allow("other") {
		t.Error("First request to other should be allowed")
	}

	if limiter.Allow("gemini") {
		t.Error("Second request to gemini should be blocked")
	}
	if limiter.Allow("other") {
		t.Error("Second request to other should be blocked")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 0)

	for i := 0; i < 100; i++ {
		if !limiter.Allow("gemini") {
			t.Fatalf("Request %d should be allowed when limiting is disabled", i)
		}
	}
}

func TestLimiter_Stats(t *testing.T) {
	limiter := NewLimiter(1.0, 1)
	limiter.Allow("gemini")

	stats := limiter.Stats()
	st, ok := stats["gemini"]
	if !ok {
		t.Fatal("Stats should include gemini")
	}
	if st.RPS != 1.0 {
		t.Errorf("RPS should be 1, got %v", st.RPS)
	}
	if st.Burst != 1 {
		t.Errorf("Burst should be 1, got %d", st.Burst)
	}
	if !st.IsThrottled() {
		t.Error("Key with no tokens left should be throttled")
	}

	// peeking must not consume the next token
	stats = limiter.Stats()
	if stats["gemini"].TokensAvailable < st.TokensAvailable {
		t.Error("Stats should not consume tokens")
	}
}

func TestLimiter_StatsUnlimited(t *testing.T) {
	limiter := NewLimiter(0, 2)
	limiter.Allow("gemini")

	st := limiter.Stats()["gemini"]
	if st.RPS != 0 {
		t.Errorf("Unlimited limiter should report RPS 0, got %v", st.RPS)
	}
	if st.TokensAvailable != 2 {
		t.Errorf("Unlimited limiter should report a full bucket, got %v", st.TokensAvailable)
	}
	if st.IsThrottled() {
		t.Error("Unlimited limiter should never be throttled")
	}
	if _, err := json.Marshal(st); err != nil {
		t.Errorf("Stats should be JSON encodable: %v", err)
	}
}
