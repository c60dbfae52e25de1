package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"todo-api/internal/models"
	"todo-api/internal/queue"
	"todo-api/internal/repository"
	"todo-api/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Reminder periodically publishes a todo.due_soon event for each open todo whose
// deadline falls within the next window. A todo is announced once per deadline value.
type Reminder struct {
	store  repository.Store
	events queue.Publisher
	window time.Duration
	now    func() time.Time
	cron   *cron.Cron

	mu       sync.Mutex
	notified map[int64]time.Time
}

func NewReminder(store repository.Store, events queue.Publisher, window time.Duration) *Reminder {
	return &Reminder{
		store:    store,
		events:   events,
		window:   window,
		now:      time.Now,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		notified: make(map[int64]time.Time),
	}
}

// Start runs Sweep every interval until Stop.
func (r *Reminder) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	seconds := max(int(interval.Seconds()), 1)
	_, err := r.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if n, err := r.Sweep(ctx); err != nil {
			logger.Error(ctx, "Reminder sweep failed", "error", err)
		} else if n > 0 {
			logger.Info(ctx, "Reminder sweep published", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish.
func (r *Reminder) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep publishes reminders for open todos due in [now, now+window] and returns how many were sent.
func (r *Reminder) Sweep(ctx context.Context) (int, error) {
	now := r.now().UTC()
	until := now.Add(r.window)
	open := false
	todos, err := r.store.FindAll(ctx, repository.Filter{
		Completed:     &open,
		DeadlineFrom:  &now,
		DeadlineUntil: &until,
	})
	if err != nil {
		return 0, fmt.Errorf("list due todos: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sent := 0
	// Todos that left the window are forgotten; failed publishes retry next sweep.
	next := make(map[int64]time.Time, len(todos))
	for i := range todos {
		t := &todos[i]
		deadline := *t.DeadlineAt
		if prev, ok := r.notified[t.ID]; ok && prev.Equal(deadline) {
			next[t.ID] = deadline
			continue
		}
		if err := r.events.Publish(ctx, queue.NewEvent(models.EventDueSoon, t, now)); err != nil {
			logger.Warn(ctx, "Reminder publish failed", "error", err, "id", t.ID)
			continue
		}
		next[t.ID] = deadline
		sent++
	}
	r.notified = next
	return sent, nil
}
