package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"todo-api/internal/config"
	"todo-api/internal/models"
	"todo-api/pkg/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Publisher emits todo change events.
type Publisher interface {
	Publish(ctx context.Context, ev *models.TodoEvent) error
}

// Nop drops every event. Used when no Kafka brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, *models.TodoEvent) error { return nil }

// NewEvent builds an event for todo with a fresh id. The todo is copied.
func NewEvent(typ string, todo *models.Todo, at time.Time) *models.TodoEvent {
	return &models.TodoEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		TodoID:     todo.ID,
		Todo:       todo.Clone(),
		OccurredAt: at.UTC(),
	}
}

// EnsureTopic creates the todo events topic with configured partitions (idempotent).
// Call at startup; if it fails (e.g. no broker or topic exists), app still runs.
func EnsureTopic(ctx context.Context, cfg *config.Config) {
	if !cfg.KafkaEnabled() {
		return
	}
	conn, err := kafka.DialContext(ctx, "tcp", cfg.KafkaBrokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.KafkaTopic,
		NumPartitions:     cfg.KafkaPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Debug(ctx, "Kafka create topic failed (topic may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topic ensured", "topic", cfg.KafkaTopic, "partitions", cfg.KafkaPartitions)
}

// KafkaPublisher writes events to the configured topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds an async writer; delivery errors surface in the writer's log.
func NewKafkaPublisher(ctx context.Context, cfg *config.Config) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn(context.Background(), "Kafka delivery failed", "error", err, "messages", len(messages))
			}
		},
	}
	logger.Info(ctx, "Kafka producer initialized", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev *models.TodoEvent) error {
	msg, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// EncodeEvent keys messages by todo id so events for one todo stay ordered in a partition.
func EncodeEvent(ev *models.TodoEvent) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.TodoID, 10)),
		Value: payload,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}, nil
}

// DecodeEvent parses a message value produced by EncodeEvent.
func DecodeEvent(payload []byte) (*models.TodoEvent, error) {
	var ev models.TodoEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("decode event: missing type")
	}
	return &ev, nil
}
