package pubsub

import (
	"context"
	"fmt"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/shopspring/decimal"
)

const DefaultChannelPrefix = "odds:snapshots"

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// SnapshotMessage is the live-odds payload for one stored snapshot.
type SnapshotMessage struct {
	GameID          string           `json:"gameId"`
	Provider        string           `json:"provider"`
	Sport           string           `json:"sport"`
	ScheduledAt     time.Time        `json:"scheduledAt"`
	HomeTeam        string           `json:"homeTeam"`
	AwayTeam        string           `json:"awayTeam"`
	Spread          *decimal.Decimal `json:"spread,omitempty"`
	SpreadHomePrice int              `json:"spreadHomePrice,omitempty"`
	SpreadAwayPrice int              `json:"spreadAwayPrice,omitempty"`
	Total           *decimal.Decimal `json:"total,omitempty"`
	OverPrice       int              `json:"overPrice,omitempty"`
	UnderPrice      int              `json:"underPrice,omitempty"`
	HomeMoneyline   *int             `json:"homeMoneyline,omitempty"`
	AwayMoneyline   *int             `json:"awayMoneyline,omitempty"`
	CapturedAt      time.Time        `json:"capturedAt"`
}

type snapshotBatch struct {
	Sport     string            `json:"sport"`
	Count     int               `json:"count"`
	Snapshots []SnapshotMessage `json:"snapshots"`
}

// RedisBroadcaster publishes each collected batch on a per-sport channel.
type RedisBroadcaster struct {
	r      publisher
	prefix string
	logger *logging.Logger
}

func NewRedisBroadcaster(r publisher, channelPrefix string, logger *logging.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = logging.Default()
	}
	channelPrefix = strings.TrimRight(strings.TrimSpace(channelPrefix), ":")
	if channelPrefix == "" {
		channelPrefix = DefaultChannelPrefix
	}
	return &RedisBroadcaster{r: r, prefix: channelPrefix, logger: logger}
}

func (b *RedisBroadcaster) Channel(sport string) string {
	return b.prefix + ":" + strings.ToLower(strings.TrimSpace(sport))
}

func (b *RedisBroadcaster) PublishSnapshots(ctx context.Context, sport string, items []oddssnapshot.Snapshot) error {
	if len(items) == 0 {
		return nil
	}

	batch := snapshotBatch{Sport: sport, Count: len(items), Snapshots: make([]SnapshotMessage, 0, len(items))}
	for _, item := range items {
		batch.Snapshots = append(batch.Snapshots, newSnapshotMessage(item))
	}
	payload, err := sonic.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal snapshot batch: %w", err)
	}

	channel := b.Channel(sport)
	receivers, err := b.r.Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish snapshots channel=%s: %w", channel, err)
	}
	b.logger.DebugContext(ctx, "published snapshot batch", "channel", channel, "count", len(items), "receivers", receivers)
	return nil
}

func newSnapshotMessage(item oddssnapshot.Snapshot) SnapshotMessage {
	return SnapshotMessage{
		GameID:          item.GameID,
		Provider:        item.Provider,
		Sport:           item.Sport,
		ScheduledAt:     item.ScheduledAt,
		HomeTeam:        item.HomeTeam,
		AwayTeam:        item.AwayTeam,
		Spread:          item.Spread,
		SpreadHomePrice: item.SpreadHomePrice,
		SpreadAwayPrice: item.SpreadAwayPrice,
		Total:           item.Total,
		OverPrice:       item.OverPrice,
		UnderPrice:      item.UnderPrice,
		HomeMoneyline:   item.HomeMoneyline,
		AwayMoneyline:   item.AwayMoneyline,
		CapturedAt:      item.CapturedAt,
	}
}
