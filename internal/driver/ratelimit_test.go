package driver

import (
	"context"
	"testing"
)

func TestNewRateLimiterNilWhenDisabled(t *testing.T) {
	if NewRateLimiter(0) != nil {
		t.Error("expected nil limiter for rate <= 0")
	}
	if NewRateLimiter(-1) != nil {
		t.Error("expected nil limiter for negative rate")
	}
}

func TestRateLimiterWaitNilIsNoop(t *testing.T) {
	var r *RateLimiter
	if err := r.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait: %v", err)
	}
}

func TestRateLimiterWaitRespectsCancellation(t *testing.T) {
	r := NewRateLimiter(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Wait(ctx); err == nil {
		t.Error("expected an error from a cancelled context")
	}
}
