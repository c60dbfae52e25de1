package repository

import (
	"context"
	"errors"
	"time"

	"todo-api/internal/models"
)

// ErrNotFound is returned when no todo matches the requested id.
var ErrNotFound = errors.New("todo not found")

// Filter narrows FindAll. Nil fields don't constrain the result.
// Once either deadline bound is set, todos without a deadline are excluded.
type Filter struct {
	Completed     *bool
	DeadlineFrom  *time.Time
	DeadlineUntil *time.Time
}

// IsZero reports whether the filter matches every todo.
func (f Filter) IsZero() bool {
	return f.Completed == nil && f.DeadlineFrom == nil && f.DeadlineUntil == nil
}

// Match evaluates the filter against a single todo. Both deadline bounds are inclusive.
func (f Filter) Match(t *models.Todo) bool {
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.DeadlineFrom == nil && f.DeadlineUntil == nil {
		return true
	}
	if t.DeadlineAt == nil {
		return false
	}
	if f.DeadlineFrom != nil && t.DeadlineAt.Before(*f.DeadlineFrom) {
		return false
	}
	if f.DeadlineUntil != nil && t.DeadlineAt.After(*f.DeadlineUntil) {
		return false
	}
	return true
}

// Store persists todos. Every write is a single atomic commit: once it returns nil,
// the change is visible to subsequent reads.
type Store interface {
	// FindByID returns ErrNotFound when the id is unknown.
	FindByID(ctx context.Context, id int64) (*models.Todo, error)
	// FindAll returns matching todos in ascending id order.
	FindAll(ctx context.Context, filter Filter) ([]models.Todo, error)
	// Create assigns todo.ID.
	Create(ctx context.Context, todo *models.Todo) error
	// Update overwrites every mutable field of the stored row. ErrNotFound when absent.
	Update(ctx context.Context, todo *models.Todo) error
	// Delete removes the row. ErrNotFound when absent.
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}
