package resultlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/tdtp-sink/pkg/retry"
)

func newTestPublisher(t *testing.T, ttl int) (*RedisPublisher, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, Config{Name: "orders-sink", TTL: ttl}), mr, rdb
}

func testRefs() []retry.BatchRef {
	return []retry.BatchRef{
		{Topic: "orders", Partition: 0, FirstOffset: 10, LastOffset: 19, Records: 10},
		{Topic: "orders", Partition: 1, FirstOffset: 5, LastOffset: 6, Records: 2},
	}
}

func TestPublish_SetsStateWithTTL(t *testing.T) {
	pub, mr, _ := newTestPublisher(t, 60)

	result := NewBatchResult(testRefs(), map[string]int{"orders": 12}, time.Now().Add(-time.Second), nil)
	if err := pub.Publish(context.Background(), result); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	raw, err := mr.Get("tdtp:sink:orders-sink:state")
	if err != nil {
		t.Fatalf("state key not set: %v", err)
	}

	var got BatchResult
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Status != StatusCommitted || got.Records != 12 || got.SinkName != "orders-sink" {
		t.Errorf("Unexpected result: %+v", got)
	}
	if got.Error != nil {
		t.Errorf("Committed batch must have no error, got %s", *got.Error)
	}
	if got.DurationMs < 1000 {
		t.Errorf("DurationMs = %d, want >= 1000", got.DurationMs)
	}

	if ttl := mr.TTL("tdtp:sink:orders-sink:state"); ttl != 60*time.Second {
		t.Errorf("TTL = %v, want 60s", ttl)
	}
}

func TestPublish_FailedBatchEvent(t *testing.T) {
	pub, _, rdb := newTestPublisher(t, 0)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, pub.Channel())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	result := NewBatchResult(testRefs(), nil, time.Now(), errors.New("duplicate key"))
	if err := pub.Publish(ctx, result); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got BatchResult
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Status != StatusFailed || got.Error == nil || *got.Error != "duplicate key" {
			t.Errorf("Unexpected event: %+v", got)
		}
		if got.ID != BatchID(testRefs()) {
			t.Errorf("ID = %s, want %s", got.ID, BatchID(testRefs()))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}

func TestBatchID(t *testing.T) {
	a := BatchID(testRefs())
	if len(a) != 16 {
		t.Errorf("BatchID length = %d, want 16 hex chars", len(a))
	}
	if a != BatchID(testRefs()) {
		t.Error("BatchID must be deterministic")
	}

	other := testRefs()
	other[1].LastOffset = 7
	if a == BatchID(other) {
		t.Error("Different offsets must give a different BatchID")
	}
}

func TestPublish_RedisDown(t *testing.T) {
	pub, mr, _ := newTestPublisher(t, 0)
	mr.Close()

	if err := pub.Publish(context.Background(), NewBatchResult(testRefs(), nil, time.Now(), nil)); err == nil {
		t.Error("Expected error when Redis is unavailable")
	}
}
