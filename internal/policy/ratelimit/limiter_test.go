package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	// 10 requests per second = 100ms interval, burst 1.
	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	// Consume initial token
	if err := l.Wait(ctx, "https://www.fastpeoplesearch.com/name/a"); err != nil {
		t.Fatal(err)
	}

	// Next one should wait ~100ms
	start := time.Now()
	if err := l.Wait(ctx, "https://www.fastpeoplesearch.com/name/b"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiter_DifferentHosts(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.com/1"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "https://B.com/1"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur > 500*time.Millisecond {
		t.Errorf("expected independent host budget, waited %v", dur)
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 20; i++ {
		if err := l.Wait(ctx, "https://a.com"); err != nil {
			t.Fatal(err)
		}
	}
	if dur := time.Since(start); dur > 100*time.Millisecond {
		t.Errorf("expected no throttling, took %v", dur)
	}
}

func TestLimiter_ContextCanceled(t *testing.T) {
	l := New(Config{RPS: 0.01, Burst: 1})
	if err := l.Wait(context.Background(), "https://a.com"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "https://a.com"); err == nil {
		t.Fatal("expected error when context expires before a token is available")
	}
}

func TestHostOf(t *testing.T) {
	cases := map[string]string{
		"https://Example.com/path": "example.com",
		"http://%":                 "unknown",
		"":                         "unknown",
	}
	for in, want := range cases {
		if got := hostOf(in); got != want {
			t.Errorf("hostOf(%q) = %q, want %q", in, got, want)
		}
	}
}
