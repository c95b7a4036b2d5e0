package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"todosync/internal/service"
)

// Request is a request received by TodoServer.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]interface{}
}

// TodoServer is an httptest server speaking the todo REST contract.
type TodoServer struct {
	*httptest.Server

	mu       sync.Mutex
	todos    []service.Todo
	nextID   int
	requests []Request

	failStatus int
	failBody   string
}

// NewTodoServer starts a TodoServer closed at the end of the test.
func NewTodoServer(t *testing.T) *TodoServer {
	t.Helper()
	s := &TodoServer{}

	r := mux.NewRouter()
	r.Use(s.record)
	r.Methods(http.MethodGet).Path("/todos").HandlerFunc(s.list)
	r.Methods(http.MethodPost).Path("/todos").HandlerFunc(s.create)
	r.Methods(http.MethodPut).Path("/todos/{id}").HandlerFunc(s.update)
	r.Methods(http.MethodDelete).Path("/todos/{id}").HandlerFunc(s.remove)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// AddTodo seeds a todo.
func (s *TodoServer) AddTodo(todo service.Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.todos = append(s.todos, todo)
}

// Fail makes every following request answer with status and body.
// A zero status restores normal handling.
func (s *TodoServer) Fail(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
	s.failBody = body
}

// Requests returns the received requests in order.
func (s *TodoServer) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *TodoServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
		}
		if r.Body != nil && r.ContentLength != 0 {
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				req.Body = body
			}
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		fail, failBody := s.failStatus, s.failBody
		s.mu.Unlock()

		if fail != 0 {
			w.WriteHeader(fail)
			fmt.Fprint(w, failBody)
			return
		}
		// The body was consumed above; handlers read the recorded copy.
		next.ServeHTTP(w, r.WithContext(withBody(r.Context(), req.Body)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *TodoServer) list(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("createdBy")
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []service.Todo{}
	for _, t := range s.todos {
		if t.CreatedBy == user {
			out = append(out, t)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *TodoServer) create(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r.Context())
	var todo service.Todo
	if err := remarshal(body, &todo); err != nil || todo.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "title is required"})
		return
	}

	s.mu.Lock()
	s.nextID++
	todo.ID = fmt.Sprintf("%d", s.nextID)
	s.todos = append(s.todos, todo)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, todo)
}

func (s *TodoServer) update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	body := bodyFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.todos {
		if t.ID != id {
			continue
		}
		if err := remarshal(body, &t); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		t.ID = id
		s.todos[i] = t
		writeJSON(w, http.StatusOK, t)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Todo not found"})
}

func (s *TodoServer) remove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.todos {
		if t.ID == id {
			s.todos = append(s.todos[:i], s.todos[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Todo not found"})
}

// remarshal decodes a generic JSON object onto v.
func remarshal(body map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

type bodyKey struct{}

func withBody(ctx context.Context, body map[string]interface{}) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

func bodyFrom(ctx context.Context) map[string]interface{} {
	body, _ := ctx.Value(bodyKey{}).(map[string]interface{})
	return body
}
