package worker

import (
	"context"

	"todo-api/internal/config"
	"todo-api/internal/queue"
	"todo-api/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Invalidator drops cached state for a todo.
type Invalidator interface {
	Invalidate(ctx context.Context, id int64)
}

// Run consumes todo events and drops the matching cache keys, so writes made by
// other processes (seed jobs, other replicas) don't leave stale reads behind.
// Replicas share a consumer group; each event is handled once.
func Run(ctx context.Context, cfg *config.Config, inv Invalidator) {
	if !cfg.KafkaEnabled() {
		logger.Info(ctx, "Worker disabled (no Kafka brokers)")
		return
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	logger.Info(ctx, "Kafka consumer started", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "Worker fetch failed", "error", err)
			continue
		}
		if err := handleMessage(ctx, inv, msg.Value); err != nil {
			logger.Error(ctx, "Worker handle failed", "error", err, "payload", string(msg.Value))
			// Commit anyway to avoid poison pill blocking the partition
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "Worker commit failed", "error", err)
		}
	}
}

func handleMessage(ctx context.Context, inv Invalidator, payload []byte) error {
	ev, err := queue.DecodeEvent(payload)
	if err != nil {
		return err
	}
	if !ev.Mutates() {
		return nil
	}
	inv.Invalidate(ctx, ev.TodoID)
	logger.Debug(ctx, "Cache invalidated from event", "type", ev.Type, "id", ev.TodoID)
	return nil
}
