package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/shopspring/decimal"
)

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisBroadcaster_PublishSnapshots(t *testing.T) {
	t.Parallel()

	spread := decimal.RequireFromString("-3.5")
	fake := &fakePublisher{}
	broadcaster := NewRedisBroadcaster(fake, "", logging.NewNop())

	err := broadcaster.PublishSnapshots(context.Background(), "nfl", []oddssnapshot.Snapshot{{
		GameID:          "nfl:20261015:las-vegas-raiders@kansas-city-chiefs",
		Provider:        "theoddsapi:draftkings",
		Sport:           "nfl",
		Spread:          &spread,
		SpreadHomePrice: -110,
		SpreadAwayPrice: -110,
		CapturedAt:      time.Date(2026, 10, 15, 15, 0, 0, 0, time.UTC),
	}})
	if err != nil {
		t.Fatalf("publish snapshots: %v", err)
	}
	if fake.channel != "odds:snapshots:nfl" {
		t.Fatalf("unexpected channel got=%s want=odds:snapshots:nfl", fake.channel)
	}

	var got snapshotBatch
	if err := sonic.Unmarshal(fake.payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.Count != 1 || got.Snapshots[0].Provider != "theoddsapi:draftkings" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Snapshots[0].Spread == nil || !got.Snapshots[0].Spread.Equal(spread) {
		t.Fatalf("unexpected spread in payload: %v", got.Snapshots[0].Spread)
	}
}

func TestRedisBroadcaster_PublishErrorIsReturned(t *testing.T) {
	t.Parallel()

	fake := &fakePublisher{err: errors.New("connection refused")}
	broadcaster := NewRedisBroadcaster(fake, "live:", logging.NewNop())

	err := broadcaster.PublishSnapshots(context.Background(), "NBA", []oddssnapshot.Snapshot{{GameID: "g", Provider: "espn"}})
	if err == nil {
		t.Fatal("expected publish error")
	}
	if fake.channel != "live:nba" {
		t.Fatalf("unexpected channel got=%s want=live:nba", fake.channel)
	}
}

func TestRedisBroadcaster_EmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	fake := &fakePublisher{}
	if err := NewRedisBroadcaster(fake, "", logging.NewNop()).PublishSnapshots(context.Background(), "nfl", nil); err != nil {
		t.Fatalf("publish empty batch: %v", err)
	}
	if fake.channel != "" {
		t.Fatalf("empty batch must not publish, channel=%s", fake.channel)
	}
}
