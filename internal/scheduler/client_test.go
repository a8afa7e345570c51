package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return "test" }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

func TestClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("expected error for missing redis url")
	}
}

func TestEnqueueEmissionDrainCollapsesDuplicates(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(testSchedulerConfig{redisURL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.EnqueueEmissionDrain(ctx); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := client.EnqueueEmissionDrain(ctx); err != nil {
		t.Fatalf("duplicate enqueue should be a no-op, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if err := c.EnqueueEmissionDrain(context.Background()); err != nil {
		t.Fatalf("nil client enqueue: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil client close: %v", err)
	}
}
