package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterWithinLimit(t *testing.T) {
	rc, _ := newTestClient(t)
	limiter := NewRateLimiter(rc)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "send-otp", "10.0.0.1", 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow returned error: %v", err)
		}
		if !ok {
			t.Fatalf("request %d denied, limit is 3", i+1)
		}
	}

	ok, err := limiter.Allow(ctx, "send-otp", "10.0.0.1", 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("fourth request allowed, want denied")
	}
}

func TestRateLimiterIsolatesSubjects(t *testing.T) {
	rc, _ := newTestClient(t)
	limiter := NewRateLimiter(rc)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Allow(ctx, "send-otp", "10.0.0.1", 3, time.Minute); err != nil {
			t.Fatal(err)
		}
	}

	ok, err := limiter.Allow(ctx, "send-otp", "10.0.0.2", 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("other subject denied by a full window it never used")
	}

	ok, err = limiter.Allow(ctx, "verify-otp", "10.0.0.1", 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("other action denied by a full window it never used")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rc, server := newTestClient(t)
	limiter := NewRateLimiter(rc)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Allow(ctx, "send-otp", "10.0.0.1", 3, time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	if ok, _ := limiter.Allow(ctx, "send-otp", "10.0.0.1", 3, time.Minute); ok {
		t.Fatal("over-limit request allowed")
	}

	server.FastForward(time.Minute + time.Second)

	ok, err := limiter.Allow(ctx, "send-otp", "10.0.0.1", 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("request denied after the window elapsed")
	}
}

func TestRateLimiterZeroLimitDisabled(t *testing.T) {
	rc, _ := newTestClient(t)
	limiter := NewRateLimiter(rc)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		ok, err := limiter.Allow(ctx, "send-otp", "10.0.0.1", 0, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatal("zero limit denied a request")
		}
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	rc, server := newTestClient(t)
	limiter := NewRateLimiter(rc)

	server.Close()

	ok, err := limiter.Allow(context.Background(), "send-otp", "10.0.0.1", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if !ok {
		t.Error("unreachable Redis denied the request, want fail open")
	}
}
