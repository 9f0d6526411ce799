package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/riskibarqy/odds-grading/internal/usecase"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultSettledTopic = "pick.settled"
	eventTypeSettled    = "pick.settled"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisherConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// KafkaPublisher emits one message per settled pick, keyed by capper id so a
// capper's settlements stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *logging.Logger
	now    func() time.Time
}

func NewKafkaPublisher(cfg KafkaPublisherConfig, logger *logging.Logger) (*KafkaPublisher, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, broker := range cfg.Brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = DefaultSettledTopic
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            timeout,
		WriteTimeout:           timeout,
	}
	return newKafkaPublisher(writer, topic, logger), nil
}

func newKafkaPublisher(writer messageWriter, topic string, logger *logging.Logger) *KafkaPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger, now: time.Now}
}

type settledEnvelope struct {
	Type       string                   `json:"type"`
	OccurredAt time.Time                `json:"occurredAt"`
	Data       usecase.PickSettledEvent `json:"data"`
}

func (p *KafkaPublisher) PublishSettled(ctx context.Context, events []usecase.PickSettledEvent) error {
	if len(events) == 0 {
		return nil
	}

	now := p.now().UTC()
	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := sonic.Marshal(settledEnvelope{Type: eventTypeSettled, OccurredAt: now, Data: event})
		if err != nil {
			return fmt.Errorf("marshal settled event pick=%s: %w", event.PickID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.CapperID),
			Value: value,
			Time:  now,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(eventTypeSettled)},
				{Key: "run_id", Value: []byte(event.RunID)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish settled picks", "topic", p.topic, "count", len(msgs), "error", err)
		return fmt.Errorf("write settled events topic=%s: %w", p.topic, err)
	}
	p.logger.DebugContext(ctx, "published settled picks", "topic", p.topic, "count", len(msgs))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
