// Seed adds sample todos with spread-out deadlines. Run from project root: go run ./scripts/seed
// SEED_COUNT sets how many (default 100). With Kafka configured, a todo.created event is
// published per row so running servers drop their cached lists.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"todo-api/internal/config"
	"todo-api/internal/models"
	"todo-api/internal/queue"
	"todo-api/internal/repository"
)

func main() {
	config.LoadEnvFile(".env")

	ctx := context.Background()
	cfg := config.Get()
	if err := config.LoadErr(); err != nil {
		fmt.Fprintln(os.Stderr, "Config failed:", err)
		os.Exit(1)
	}

	store, closer, err := repository.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Store failed:", err)
		os.Exit(1)
	}
	defer closer.Close()

	var events queue.Publisher = queue.Nop{}
	if cfg.KafkaEnabled() {
		producer := queue.NewKafkaPublisher(ctx, cfg)
		defer producer.Close()
		events = producer
	}

	total := 100
	if v, err := strconv.Atoi(os.Getenv("SEED_COUNT")); err == nil && v > 0 {
		total = v
	}
	start := time.Now()
	for n := 1; n <= total; n++ {
		todo := sampleTodo(n, start)
		if err := store.Create(ctx, todo); err != nil {
			fmt.Fprintln(os.Stderr, "\nInsert failed:", err)
			os.Exit(1)
		}
		if err := events.Publish(ctx, queue.NewEvent(models.EventCreated, todo, time.Now())); err != nil {
			fmt.Fprintln(os.Stderr, "\nPublish failed:", err)
		}
		fmt.Printf("\rInserted %d / %d", n, total)
	}

	fmt.Printf("\nDone: %d todos in %v\n", total, time.Since(start))
}

// sampleTodo spreads deadlines from three days ago to two weeks out; every fifth todo
// has none and every third is already done.
func sampleTodo(n int, now time.Time) *models.Todo {
	title := fmt.Sprintf("Todo %d", n)
	desc := fmt.Sprintf("Description for todo %d", n)
	todo := &models.Todo{
		Title:       &title,
		Description: &desc,
		Completed:   n%3 == 0,
	}
	if n%5 != 0 {
		d := now.Add(time.Duration(n%17-3) * 24 * time.Hour).UTC().Truncate(time.Minute)
		todo.DeadlineAt = &d
	}
	return todo
}
