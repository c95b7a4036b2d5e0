// Package order persists the user's local display order of todos.
//
// The order is one JSON array of todo ids kept under a single key of a kv
// store. A missing, malformed or schema-invalid value reads as an empty list.
package order

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"todosync/internal/kv"
	"todosync/internal/logging"
	"todosync/internal/service"
)

// Key is the kv key holding the order list.
const Key = "todosOrder"

const listSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {"type": "string", "minLength": 1}
}`

var schema = jsonschema.MustCompileString("todosorder.schema.json", listSchema)

// List is an ordered sequence of todo ids.
type List []string

// Index returns the position of id, or -1.
func (l List) Index(id string) int {
	for i, v := range l {
		if v == id {
			return i
		}
	}
	return -1
}

// Contains reports whether id is in the list.
func (l List) Contains(id string) bool {
	return l.Index(id) >= 0
}

// Clone returns a copy of l.
func (l List) Clone() List {
	return append(List(nil), l...)
}

// Store reads and writes the order list.
type Store struct {
	kv     kv.Store
	mu     sync.Mutex
	logger *log.Logger
}

// New creates a Store on top of a kv store.
func New(store kv.Store, logger *log.Logger) *Store {
	return &Store{
		kv:     store,
		logger: logging.OrDiscard(logger).WithPrefix("order"),
	}
}

// Load returns the persisted order, or an empty list.
func (s *Store) Load() List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() List {
	raw, ok, err := s.kv.Get(Key)
	if err != nil {
		s.logger.Warn("failed to read order", "err", err)
		return List{}
	}
	if !ok {
		return List{}
	}
	list, err := Decode([]byte(raw))
	if err != nil {
		s.logger.Warn("discarding stored order", "err", err)
		return List{}
	}
	return list
}

// Save replaces the persisted order.
func (s *Store) Save(list List) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(list)
}

func (s *Store) saveLocked(list List) error {
	if list == nil {
		list = List{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	if err := s.kv.Set(Key, string(data)); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	s.logger.Debug("saved", "count", len(list))
	return nil
}

// Append adds id at the end. An id already present is left in place.
func (s *Store) Append(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.loadLocked()
	if list.Contains(id) {
		return nil
	}
	return s.saveLocked(append(list, id))
}

// Remove drops id. An absent id is a no-op.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.loadLocked()
	i := list.Index(id)
	if i < 0 {
		return nil
	}
	return s.saveLocked(append(list[:i], list[i+1:]...))
}

// Replace swaps oldID for newID in place, used when a tentative id is
// confirmed by the server. When oldID is absent newID is appended unless
// it is already listed.
func (s *Store) Replace(oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.loadLocked()
	if list.Index(oldID) < 0 {
		if list.Contains(newID) {
			return nil
		}
		return s.saveLocked(append(list, newID))
	}
	out := make(List, 0, len(list))
	for _, id := range list {
		switch id {
		case oldID:
			out = append(out, newID)
		case newID:
		default:
			out = append(out, id)
		}
	}
	return s.saveLocked(out)
}

// Close closes the underlying key/value store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Close()
}

// Decode parses and validates a stored order value.
func Decode(data []byte) (List, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid order json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}
	var list List
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Reconcile returns todos arranged by list. Ids without a todo are skipped,
// duplicates count once, and todos missing from list follow in their given order.
func Reconcile(list List, todos []service.Todo) []service.Todo {
	byID := make(map[string]service.Todo, len(todos))
	for _, t := range todos {
		byID[t.ID] = t
	}
	out := make([]service.Todo, 0, len(todos))
	placed := make(map[string]bool, len(todos))
	for _, id := range list {
		t, ok := byID[id]
		if !ok || placed[id] {
			continue
		}
		placed[id] = true
		out = append(out, t)
	}
	for _, t := range todos {
		if !placed[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// IDs returns the ids of todos in order.
func IDs(todos []service.Todo) List {
	out := make(List, len(todos))
	for i, t := range todos {
		out[i] = t.ID
	}
	return out
}
