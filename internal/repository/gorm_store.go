package repository

import (
	"context"
	"errors"
	"fmt"

	"todo-api/internal/models"

	"gorm.io/gorm"
)

// GormStore keeps todos in a SQLite file through GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (r *GormStore) FindByID(ctx context.Context, id int64) (*models.Todo, error) {
	var todo models.Todo
	err := r.db.WithContext(ctx).First(&todo, id).Error
	switch {
	case err == nil:
		normalize(&todo)
		return &todo, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("find todo %d: %w", id, err)
	}
}

func (r *GormStore) FindAll(ctx context.Context, filter Filter) ([]models.Todo, error) {
	q := r.db.WithContext(ctx).Model(&models.Todo{})
	if filter.Completed != nil {
		q = q.Where("completed = ?", *filter.Completed)
	}
	if filter.DeadlineFrom != nil {
		q = q.Where("deadline_at >= ?", filter.DeadlineFrom.UTC())
	}
	if filter.DeadlineUntil != nil {
		q = q.Where("deadline_at <= ?", filter.DeadlineUntil.UTC())
	}
	todos := []models.Todo{}
	if err := q.Order("id ASC").Find(&todos).Error; err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	for i := range todos {
		normalize(&todos[i])
	}
	return todos, nil
}

func (r *GormStore) Create(ctx context.Context, todo *models.Todo) error {
	row := *todo
	if row.DeadlineAt != nil {
		d := row.DeadlineAt.UTC()
		row.DeadlineAt = &d
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	todo.ID = row.ID
	return nil
}

func (r *GormStore) Update(ctx context.Context, todo *models.Todo) error {
	res := r.db.WithContext(ctx).Model(&models.Todo{}).Where("id = ?", todo.ID).Updates(map[string]any{
		"title":       todo.Title,
		"description": todo.Description,
		"completed":   todo.Completed,
		"deadline_at": deadlineArg(todo.DeadlineAt),
	})
	if res.Error != nil {
		return fmt.Errorf("update todo %d: %w", todo.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormStore) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&models.Todo{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete todo %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func normalize(t *models.Todo) {
	if t.DeadlineAt != nil {
		d := t.DeadlineAt.UTC()
		t.DeadlineAt = &d
	}
}
