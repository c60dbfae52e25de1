package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"todo-api/internal/models"
	"todo-api/internal/queue"
	"todo-api/internal/repository"
	"todo-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

var errNotFoundBody = gin.H{"error": "Todo not found"}

// TodoController serves the /api/v1 todo endpoints over an injected store.
type TodoController struct {
	store  repository.Store
	events queue.Publisher
	now    func() time.Time
}

// NewTodoController falls back to a no-op publisher when events is nil.
func NewTodoController(store repository.Store, events queue.Publisher) *TodoController {
	if events == nil {
		events = queue.Nop{}
	}
	return &TodoController{store: store, events: events, now: time.Now}
}

// Health returns 200 if the process is alive.
func (h *TodoController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready returns 200 if the store (and cache, when enabled) answer.
func (h *TodoController) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		logger.Warn(ctx, "Readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// ListTodos returns every todo, optionally narrowed by ?completed= and ?window= (days).
func (h *TodoController) ListTodos(c *gin.Context) {
	ctx := c.Request.Context()
	var filter repository.Filter
	if raw, ok := c.GetQuery("completed"); ok {
		completed := strings.ToLower(raw) == "true"
		filter.Completed = &completed
	}
	if raw, ok := c.GetQuery("window"); ok {
		// A window that isn't an integer is ignored, like an absent one.
		if days, err := strconv.Atoi(raw); err == nil {
			now := h.now().UTC()
			until := now.AddDate(0, 0, days)
			filter.DeadlineFrom = &now
			filter.DeadlineUntil = &until
		}
	}
	todos, err := h.store.FindAll(ctx, filter)
	if err != nil {
		h.internalError(c, "ListTodos repository failed", err)
		return
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	c.JSON(http.StatusOK, todos)
}

// GetTodo returns one todo or 404.
func (h *TodoController) GetTodo(c *gin.Context) {
	todo, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, todo)
}

// CreateTodo stores a new todo and returns it with 201.
func (h *TodoController) CreateTodo(c *gin.Context) {
	ctx := c.Request.Context()
	var body createTodoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	todo, err := body.toTodo()
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.store.Create(ctx, todo); err != nil {
		h.internalError(c, "CreateTodo repository failed", err)
		return
	}
	h.publish(ctx, models.EventCreated, todo)
	c.JSON(http.StatusCreated, todo)
}

// UpdateTodo applies the keys present in the body and leaves the rest untouched.
func (h *TodoController) UpdateTodo(c *gin.Context) {
	ctx := c.Request.Context()
	todo, ok := h.lookup(c)
	if !ok {
		return
	}
	var body updateTodoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if err := body.apply(todo); err != nil {
		badRequest(c, err)
		return
	}
	if !h.save(c, todo) {
		return
	}
	h.publish(ctx, models.EventUpdated, todo)
	c.JSON(http.StatusOK, todo)
}

// DeleteTodo returns the removed todo, or {} when there was nothing to remove.
func (h *TodoController) DeleteTodo(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseID(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	todo, err := h.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	if err != nil {
		h.internalError(c, "DeleteTodo lookup failed", err)
		return
	}
	err = h.store.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	if err != nil {
		h.internalError(c, "DeleteTodo repository failed", err)
		return
	}
	h.publish(ctx, models.EventDeleted, todo)
	c.JSON(http.StatusOK, todo)
}

// CompleteTodo marks the todo completed whatever its current state.
func (h *TodoController) CompleteTodo(c *gin.Context) {
	ctx := c.Request.Context()
	todo, ok := h.lookup(c)
	if !ok {
		return
	}
	todo.Completed = true
	if !h.save(c, todo) {
		return
	}
	h.publish(ctx, models.EventCompleted, todo)
	c.JSON(http.StatusOK, todo)
}

// lookup loads the todo named by the :id path param, writing the 404/500 response itself.
func (h *TodoController) lookup(c *gin.Context) (*models.Todo, bool) {
	id, ok := parseID(c)
	if !ok {
		c.JSON(http.StatusNotFound, errNotFoundBody)
		return nil, false
	}
	todo, err := h.store.FindByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, errNotFoundBody)
		return nil, false
	}
	if err != nil {
		h.internalError(c, "Todo lookup failed", err)
		return nil, false
	}
	return todo, true
}

// save writes todo back; a row deleted since lookup answers 404.
func (h *TodoController) save(c *gin.Context, todo *models.Todo) bool {
	err := h.store.Update(c.Request.Context(), todo)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, errNotFoundBody)
		return false
	}
	if err != nil {
		h.internalError(c, "Todo update failed", err)
		return false
	}
	return true
}

func (h *TodoController) publish(ctx context.Context, typ string, todo *models.Todo) {
	if err := h.events.Publish(ctx, queue.NewEvent(typ, todo, h.now())); err != nil {
		logger.Warn(ctx, "Publish todo event failed", "error", err, "type", typ, "id", todo.ID)
	}
}

func (h *TodoController) internalError(c *gin.Context, msg string, err error) {
	logger.Error(c.Request.Context(), msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
}
