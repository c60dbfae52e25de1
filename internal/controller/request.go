package controller

import (
	"encoding/json"
	"fmt"
	"time"

	"todo-api/internal/models"
)

// Optional records whether a JSON key was present, and its value (nil for JSON null).
type Optional[T any] struct {
	Set   bool
	Value *T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// createTodoRequest is the POST /todos body. A missing title is accepted and stored as null.
type createTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	DeadlineAt  *string `json:"deadline_at"`
}

func (r *createTodoRequest) toTodo() (*models.Todo, error) {
	todo := &models.Todo{
		Title:       r.Title,
		Description: r.Description,
	}
	if r.Completed != nil {
		todo.Completed = *r.Completed
	}
	if r.DeadlineAt != nil {
		d, err := models.ParseDeadline(*r.DeadlineAt)
		if err != nil {
			return nil, err
		}
		todo.DeadlineAt = &d
	}
	return todo, nil
}

// updateTodoRequest is the PUT /todos/{id} body. Only keys present in the body are applied.
type updateTodoRequest struct {
	Title       Optional[string] `json:"title"`
	Description Optional[string] `json:"description"`
	Completed   Optional[bool]   `json:"completed"`
	DeadlineAt  Optional[string] `json:"deadline_at"`
}

// apply mutates todo in place. A null completed is ignored; completed is never null.
func (r *updateTodoRequest) apply(todo *models.Todo) error {
	var deadline *time.Time
	if r.DeadlineAt.Set && r.DeadlineAt.Value != nil {
		d, err := models.ParseDeadline(*r.DeadlineAt.Value)
		if err != nil {
			return fmt.Errorf("deadline_at: %w", err)
		}
		deadline = &d
	}
	if r.Title.Set {
		todo.Title = r.Title.Value
	}
	if r.Description.Set {
		todo.Description = r.Description.Value
	}
	if r.Completed.Set && r.Completed.Value != nil {
		todo.Completed = *r.Completed.Value
	}
	if r.DeadlineAt.Set {
		todo.DeadlineAt = deadline
	}
	return nil
}
