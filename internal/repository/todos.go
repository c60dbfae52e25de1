package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"todo-api/internal/models"
	"todo-api/pkg/logger"
)

const todoColumns = `id, title, description, completed, deadline_at`

// PostgresStore keeps todos in the Postgres todos table through lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	var (
		t           models.Todo
		title, desc sql.NullString
		deadline    sql.NullTime
	)
	if err := row.Scan(&t.ID, &title, &desc, &t.Completed, &deadline); err != nil {
		return nil, err
	}
	if title.Valid {
		t.Title = &title.String
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	if deadline.Valid {
		d := deadline.Time.UTC()
		t.DeadlineAt = &d
	}
	return &t, nil
}

// deadlineArg converts a deadline to a naive UTC value for the TIMESTAMP column.
func deadlineArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Todo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1`, id)
	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Error(ctx, "Repository FindByID failed", "error", err, "id", id)
		return nil, fmt.Errorf("find todo %d: %w", id, err)
	}
	return t, nil
}

// buildListQuery renders the filter into a parameterised SELECT.
func buildListQuery(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Completed != nil {
		args = append(args, *f.Completed)
		conds = append(conds, fmt.Sprintf("completed = $%d", len(args)))
	}
	if f.DeadlineFrom != nil {
		args = append(args, f.DeadlineFrom.UTC())
		conds = append(conds, fmt.Sprintf("deadline_at >= $%d", len(args)))
	}
	if f.DeadlineUntil != nil {
		args = append(args, f.DeadlineUntil.UTC())
		conds = append(conds, fmt.Sprintf("deadline_at <= $%d", len(args)))
	}
	q := `SELECT ` + todoColumns + ` FROM todos`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	return q + ` ORDER BY id`, args
}

func (s *PostgresStore) FindAll(ctx context.Context, filter Filter) ([]models.Todo, error) {
	q, args := buildListQuery(filter)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		logger.Error(ctx, "Repository FindAll failed", "error", err)
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()
	todos := []models.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			logger.Error(ctx, "Repository scan todo failed", "error", err)
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, *t)
	}
	return todos, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, todo *models.Todo) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO todos (title, description, completed, deadline_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		todo.Title, todo.Description, todo.Completed, deadlineArg(todo.DeadlineAt)).Scan(&todo.ID)
	if err != nil {
		logger.Error(ctx, "Repository Create failed", "error", err)
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, todo *models.Todo) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET title = $1, description = $2, completed = $3, deadline_at = $4 WHERE id = $5`,
		todo.Title, todo.Description, todo.Completed, deadlineArg(todo.DeadlineAt), todo.ID)
	if err != nil {
		logger.Error(ctx, "Repository Update failed", "error", err, "id", todo.ID)
		return fmt.Errorf("update todo %d: %w", todo.ID, err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		logger.Error(ctx, "Repository Delete failed", "error", err, "id", id)
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
