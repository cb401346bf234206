package ratelimit_test

import (
	"testing"
	"time"

	"pcgarena/internal/ratelimit"
)

func TestLimiter_AllowsUpToMax(t *testing.T) {
	l := ratelimit.New(3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !l.Allow("client-a", now) {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow("client-a", now) {
		t.Fatal("fourth request should be rejected")
	}
}

func TestLimiter_SeparatesKeys(t *testing.T) {
	l := ratelimit.New(1, time.Minute)
	now := time.Now()

	if !l.Allow("client-a", now) {
		t.Fatal("first request for client-a should be allowed")
	}
	if !l.Allow("client-b", now) {
		t.Fatal("first request for client-b should be allowed")
	}
	if l.Allow("client-a", now) {
		t.Fatal("second request for client-a should be rejected")
	}
}

func TestLimiter_SlidesWindowForward(t *testing.T) {
	l := ratelimit.New(1, time.Minute)
	start := time.Now()

	if !l.Allow("client-a", start) {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("client-a", start.Add(30*time.Second)) {
		t.Fatal("request within the window should be rejected")
	}
	if !l.Allow("client-a", start.Add(61*time.Second)) {
		t.Fatal("request after the window elapses should be allowed")
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := ratelimit.New(1, time.Minute)
	now := time.Now()

	l.Allow("client-a", now)
	l.Reset()

	if !l.Allow("client-a", now) {
		t.Fatal("request after Reset should be allowed")
	}
}
