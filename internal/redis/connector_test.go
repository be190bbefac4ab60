package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/MrSnakeDoc/marky/internal/logger"
)

func testOptions(addr string) ConnectOptions {
	return ConnectOptions{
		Addr:           addr,
		DialTimeout:    100 * time.Millisecond,
		ReadTimeout:    100 * time.Millisecond,
		WriteTimeout:   100 * time.Millisecond,
		PoolSize:       2,
		ConnectTimeout: 300 * time.Millisecond,
		RetryInterval:  20 * time.Millisecond,
		MaxWait:        50 * time.Millisecond,
		PingTimeout:    50 * time.Millisecond,
		WarnThreshold:  1,
	}
}

func TestNewConnects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), testOptions(mr.Addr()), logger.Nop())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer client.Close()

	if err := Healthy(context.Background(), client, time.Second); err != nil {
		t.Errorf("Healthy() = %v", err)
	}

	mr.Close()
	if err := Healthy(context.Background(), client, 100*time.Millisecond); err == nil {
		t.Error("Healthy() should fail once the server is gone")
	}
}

func TestNewTimesOut(t *testing.T) {
	start := time.Now()
	// nothing listens on port 1
	_, err := New(context.Background(), testOptions("127.0.0.1:1"), logger.Nop())
	if err == nil {
		t.Fatal("New() should fail without a server")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("New() ignored ConnectTimeout, took %v", time.Since(start))
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConnectOptions)
	}{
		{"connect timeout", func(o *ConnectOptions) { o.ConnectTimeout = 0 }},
		{"retry interval", func(o *ConnectOptions) { o.RetryInterval = 0 }},
		{"max wait", func(o *ConnectOptions) { o.MaxWait = 0 }},
		{"ping timeout", func(o *ConnectOptions) { o.PingTimeout = 0 }},
		{"warn threshold", func(o *ConnectOptions) { o.WarnThreshold = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions("127.0.0.1:1")
			tt.mutate(&opts)
			if _, err := New(context.Background(), opts, logger.Nop()); err == nil {
				t.Error("New() should reject invalid options")
			}
		})
	}
}

func TestHealthyWithoutClient(t *testing.T) {
	if err := Healthy(context.Background(), nil, time.Second); err == nil {
		t.Error("Healthy(nil) should fail")
	}
}
