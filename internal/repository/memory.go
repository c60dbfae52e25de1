package repository

import (
	"context"
	"sort"
	"sync"

	"todo-api/internal/models"
)

// MemoryStore keeps todos in process memory. Used by tests and DATABASE_URL=memory://.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	todos  map[int64]*models.Todo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{todos: make(map[int64]*models.Todo)}
}

func (s *MemoryStore) FindByID(_ context.Context, id int64) (*models.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.todos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) FindAll(_ context.Context, filter Filter) ([]models.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	todos := make([]models.Todo, 0, len(s.todos))
	for _, t := range s.todos {
		if filter.Match(t) {
			todos = append(todos, *t.Clone())
		}
	}
	sort.Slice(todos, func(i, j int) bool { return todos[i].ID < todos[j].ID })
	return todos, nil
}

func (s *MemoryStore) Create(_ context.Context, todo *models.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	todo.ID = s.nextID
	s.todos[todo.ID] = todo.Clone()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, todo *models.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.todos[todo.ID]; !ok {
		return ErrNotFound
	}
	s.todos[todo.ID] = todo.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.todos[id]; !ok {
		return ErrNotFound
	}
	delete(s.todos, id)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
