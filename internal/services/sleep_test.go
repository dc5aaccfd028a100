package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipguard/internal/services"
)

func TestSleepNonPositiveReturnsImmediately(t *testing.T) {
	start := time.Now()
	if err := services.Sleep(context.Background(), 0); err != nil {
		t.Fatalf("services.Sleep(0): %v", err)
	}
	if err := services.Sleep(context.Background(), -time.Second); err != nil {
		t.Fatalf("services.Sleep(-1s): %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("expected no wait, took %s", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := services.Sleep(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := services.Sleep(ctx, time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
