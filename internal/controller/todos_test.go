package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"todo-api/internal/models"
	"todo-api/internal/repository"

	"github.com/gin-gonic/gin"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	events []*models.TodoEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *models.TodoEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// failingStore fails every call with err.
type failingStore struct{ err error }

func (s failingStore) FindByID(context.Context, int64) (*models.Todo, error) { return nil, s.err }
func (s failingStore) FindAll(context.Context, repository.Filter) ([]models.Todo, error) {
	return nil, s.err
}
func (s failingStore) Create(context.Context, *models.Todo) error { return s.err }
func (s failingStore) Update(context.Context, *models.Todo) error { return s.err }
func (s failingStore) Delete(context.Context, int64) error        { return s.err }
func (s failingStore) Ping(context.Context) error                 { return s.err }

type harness struct {
	engine *gin.Engine
	store  repository.Store
	events *recordingPublisher
}

func newHarness(t *testing.T, store repository.Store) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	events := &recordingPublisher{}
	h := NewTodoController(store, events)
	h.now = func() time.Time { return fixedNow }

	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/health", h.Health)
	api.GET("/ready", h.Ready)
	api.GET("/todos", h.ListTodos)
	api.GET("/todos/:id", h.GetTodo)
	api.POST("/todos", h.CreateTodo)
	api.PUT("/todos/:id", h.UpdateTodo)
	api.DELETE("/todos/:id", h.DeleteTodo)
	api.POST("/todos/:id/complete", h.CompleteTodo)
	return &harness{engine: r, store: store, events: events}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

// todoJSON mirrors the wire shape, keeping nulls distinguishable.
type todoJSON struct {
	ID          int64   `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
	DeadlineAt  *string `json:"deadline_at"`
}

func decodeTodo(t *testing.T, w *httptest.ResponseRecorder) todoJSON {
	t.Helper()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	for _, key := range []string{"id", "title", "description", "completed", "deadline_at"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("response missing key %q: %s", key, w.Body.String())
		}
	}
	var todo todoJSON
	if err := json.Unmarshal(w.Body.Bytes(), &todo); err != nil {
		t.Fatalf("decode todo: %v", err)
	}
	return todo
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []todoJSON {
	t.Helper()
	var todos []todoJSON
	if err := json.Unmarshal(w.Body.Bytes(), &todos); err != nil {
		t.Fatalf("decode list %q: %v", w.Body.String(), err)
	}
	return todos
}

func (h *harness) create(t *testing.T, body string) todoJSON {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/v1/todos", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	return decodeTodo(t, w)
}

func idPath(id int64, suffix string) string {
	return "/api/v1/todos/" + strconv.FormatInt(id, 10) + suffix
}

func TestHealth(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	w := h.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK || w.Body.String() != `{"status":"ok"}` {
		t.Fatalf("unexpected health response: %d %s", w.Code, w.Body.String())
	}
}

func TestReady(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	if w := h.do(t, http.MethodGet, "/api/v1/ready", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	h = newHarness(t, failingStore{err: errors.New("down")})
	if w := h.do(t, http.MethodGet, "/api/v1/ready", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestCreateDefaults(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	todo := h.create(t, `{"title":"Buy milk"}`)
	if todo.ID == 0 {
		t.Fatal("expected generated id")
	}
	if todo.Title == nil || *todo.Title != "Buy milk" {
		t.Fatalf("unexpected title: %v", todo.Title)
	}
	if todo.Completed || todo.Description != nil || todo.DeadlineAt != nil {
		t.Fatalf("unexpected defaults: %+v", todo)
	}
	if got := h.events.types(); len(got) != 1 || got[0] != models.EventCreated {
		t.Fatalf("expected created event, got %v", got)
	}
}

func TestCreateAllFieldsAndRoundTrip(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	created := h.create(t, `{"title":"Report","description":"Q3","completed":true,"deadline_at":"2026-10-20T09:30:00"}`)
	if created.DeadlineAt == nil || *created.DeadlineAt != "2026-10-20T09:30:00Z" {
		t.Fatalf("unexpected deadline: %v", created.DeadlineAt)
	}

	w := h.do(t, http.MethodGet, idPath(created.ID, ""), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	fetched := decodeTodo(t, w)
	if *fetched.Title != "Report" || *fetched.Description != "Q3" || !fetched.Completed || *fetched.DeadlineAt != *created.DeadlineAt {
		t.Fatalf("round trip mismatch: created %+v fetched %+v", created, fetched)
	}
}

func TestCreateAcceptsMissingTitle(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	todo := h.create(t, `{"description":"untitled"}`)
	if todo.Title != nil {
		t.Fatalf("expected null title, got %q", *todo.Title)
	}
}

func TestCreateIDsAreUnique(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	seen := map[int64]bool{}
	for i := 0; i < 10; i++ {
		todo := h.create(t, `{"title":"dup"}`)
		if seen[todo.ID] {
			t.Fatalf("id %d returned twice", todo.ID)
		}
		seen[todo.ID] = true
	}
}

func TestCreateRejectsMalformedInput(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	for _, body := range []string{"", "{", `{"deadline_at":"next tuesday"}`, `{"completed":"yes"}`} {
		w := h.do(t, http.MethodPost, "/api/v1/todos", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, w.Code)
		}
	}
	all, _ := h.store.FindAll(context.Background(), repository.Filter{})
	if len(all) != 0 {
		t.Fatalf("rejected requests must not persist, found %d todos", len(all))
	}
}

func TestGetMissing(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	for _, path := range []string{"/api/v1/todos/999999", "/api/v1/todos/abc"} {
		w := h.do(t, http.MethodGet, path, "")
		if w.Code != http.StatusNotFound || w.Body.String() != `{"error":"Todo not found"}` {
			t.Fatalf("%s: unexpected response %d %s", path, w.Code, w.Body.String())
		}
	}
}

func TestUpdatePartial(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	created := h.create(t, `{"title":"a","description":"b","deadline_at":"2026-11-01T00:00:00Z"}`)

	w := h.do(t, http.MethodPut, idPath(created.ID, ""), `{"completed":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	updated := decodeTodo(t, w)
	if !updated.Completed {
		t.Fatal("expected completed=true")
	}
	if *updated.Title != "a" || *updated.Description != "b" || *updated.DeadlineAt != *created.DeadlineAt {
		t.Fatalf("partial update touched other fields: %+v", updated)
	}

	fetched := decodeTodo(t, h.do(t, http.MethodGet, idPath(created.ID, ""), ""))
	if !fetched.Completed || *fetched.Title != "a" {
		t.Fatalf("update not persisted: %+v", fetched)
	}
}

func TestUpdateParsesDeadlineAndHonoursNulls(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	created := h.create(t, `{"title":"a","description":"b","completed":true}`)

	w := h.do(t, http.MethodPut, idPath(created.ID, ""), `{"deadline_at":"2026-12-24 18:00:00","description":null,"completed":null}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	updated := decodeTodo(t, w)
	if updated.DeadlineAt == nil || *updated.DeadlineAt != "2026-12-24T18:00:00Z" {
		t.Fatalf("expected parsed deadline, got %v", updated.DeadlineAt)
	}
	if updated.Description != nil {
		t.Fatalf("expected description cleared, got %q", *updated.Description)
	}
	if !updated.Completed {
		t.Fatal("null completed must leave the flag unchanged")
	}

	w = h.do(t, http.MethodPut, idPath(created.ID, ""), `{"deadline_at":null}`)
	if cleared := decodeTodo(t, w); cleared.DeadlineAt != nil {
		t.Fatalf("expected deadline cleared, got %v", *cleared.DeadlineAt)
	}
}

func TestUpdateInvalidDeadlineLeavesRecordUntouched(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	created := h.create(t, `{"title":"keep"}`)
	w := h.do(t, http.MethodPut, idPath(created.ID, ""), `{"title":"changed","deadline_at":"soon"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	fetched := decodeTodo(t, h.do(t, http.MethodGet, idPath(created.ID, ""), ""))
	if *fetched.Title != "keep" {
		t.Fatalf("invalid update must not persist, title now %q", *fetched.Title)
	}
}

func TestUpdateMissing(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	w := h.do(t, http.MethodPut, "/api/v1/todos/999999", `{"title":"x"}`)
	if w.Code != http.StatusNotFound || w.Body.String() != `{"error":"Todo not found"}` {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestDeleteIsIdempotentSuccess(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	created := h.create(t, `{"title":"bye"}`)

	w := h.do(t, http.MethodDelete, idPath(created.ID, ""), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	deleted := decodeTodo(t, w)
	if deleted.ID != created.ID || *deleted.Title != "bye" {
		t.Fatalf("expected pre-delete snapshot, got %+v", deleted)
	}

	w = h.do(t, http.MethodDelete, idPath(created.ID, ""), "")
	if w.Code != http.StatusOK || w.Body.String() != `{}` {
		t.Fatalf("second delete: unexpected %d %s", w.Code, w.Body.String())
	}
	if w := h.do(t, http.MethodGet, idPath(created.ID, ""), ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
	if got := h.events.types(); len(got) != 2 || got[1] != models.EventDeleted {
		t.Fatalf("expected created+deleted events, got %v", got)
	}
}

func TestDeleteMissing(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	w := h.do(t, http.MethodDelete, "/api/v1/todos/999999", "")
	if w.Code != http.StatusOK || w.Body.String() != `{}` {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestCompleteIsUnconditional(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	created := h.create(t, `{"title":"finish"}`)
	for i := 0; i < 2; i++ {
		w := h.do(t, http.MethodPost, idPath(created.ID, "/complete"), "")
		if w.Code != http.StatusOK {
			t.Fatalf("complete #%d: expected 200, got %d", i+1, w.Code)
		}
		if todo := decodeTodo(t, w); !todo.Completed {
			t.Fatalf("complete #%d: expected completed=true", i+1)
		}
	}
	if w := h.do(t, http.MethodPost, "/api/v1/todos/999999/complete", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing todo, got %d", w.Code)
	}
}

func TestListFilters(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	h.create(t, `{"title":"done-soon","completed":true,"deadline_at":"2026-10-20T12:00:00Z"}`)
	h.create(t, `{"title":"done-late","completed":true,"deadline_at":"2026-11-30T12:00:00Z"}`)
	h.create(t, `{"title":"done-none","completed":true}`)
	h.create(t, `{"title":"open-soon","deadline_at":"2026-10-19T00:00:00Z"}`)
	h.create(t, `{"title":"open-past","deadline_at":"2026-10-01T00:00:00Z"}`)
	h.create(t, `{"title":"open-edge","deadline_at":"2026-10-25T12:00:00Z"}`)

	cases := []struct {
		query string
		want  []string
	}{
		{"", []string{"done-soon", "done-late", "done-none", "open-soon", "open-past", "open-edge"}},
		{"?completed=true", []string{"done-soon", "done-late", "done-none"}},
		{"?completed=TRUE", []string{"done-soon", "done-late", "done-none"}},
		{"?completed=false", []string{"open-soon", "open-past", "open-edge"}},
		{"?completed=nope", []string{"open-soon", "open-past", "open-edge"}},
		{"?window=7", []string{"done-soon", "open-soon", "open-edge"}},
		{"?completed=true&window=7", []string{"done-soon"}},
		{"?window=abc", []string{"done-soon", "done-late", "done-none", "open-soon", "open-past", "open-edge"}},
		{"?window=-1", []string{}},
		{"?window=200000", []string{"done-soon", "done-late", "open-soon", "open-edge"}},
	}
	for _, tc := range cases {
		w := h.do(t, http.MethodGet, "/api/v1/todos"+tc.query, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.query, w.Code)
		}
		todos := decodeList(t, w)
		if len(todos) != len(tc.want) {
			t.Fatalf("%s: expected %v, got %d todos (%s)", tc.query, tc.want, len(todos), w.Body.String())
		}
		for i, want := range tc.want {
			if *todos[i].Title != want {
				t.Fatalf("%s: position %d expected %q, got %q", tc.query, i, want, *todos[i].Title)
			}
		}
	}
}

func TestListEmptyIsArray(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	w := h.do(t, http.MethodGet, "/api/v1/todos", "")
	if w.Code != http.StatusOK || w.Body.String() != `[]` {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestStoreFailuresAre500(t *testing.T) {
	h := newHarness(t, failingStore{err: errors.New("db down")})
	requests := []struct{ method, path, body string }{
		{http.MethodGet, "/api/v1/todos", ""},
		{http.MethodGet, "/api/v1/todos/1", ""},
		{http.MethodPost, "/api/v1/todos", `{"title":"x"}`},
		{http.MethodPut, "/api/v1/todos/1", `{"title":"x"}`},
		{http.MethodDelete, "/api/v1/todos/1", ""},
		{http.MethodPost, "/api/v1/todos/1/complete", ""},
	}
	for _, r := range requests {
		w := h.do(t, r.method, r.path, r.body)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s %s: expected 500, got %d", r.method, r.path, w.Code)
		}
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	h.events.err = errors.New("broker down")
	h.create(t, `{"title":"still saved"}`)
}

func TestOptionalTracksPresence(t *testing.T) {
	var body updateTodoRequest
	if err := json.Unmarshal([]byte(`{"title":null,"completed":false}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.Title.Set || body.Title.Value != nil {
		t.Fatalf("expected explicit null title, got %+v", body.Title)
	}
	if !body.Completed.Set || body.Completed.Value == nil || *body.Completed.Value {
		t.Fatalf("expected completed=false present, got %+v", body.Completed)
	}
	if body.Description.Set || body.DeadlineAt.Set {
		t.Fatal("absent keys must not be marked set")
	}
}
