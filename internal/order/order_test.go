package order_test

import (
	"path/filepath"
	"reflect"
	"testing"

	"todosync/internal/kv"
	"todosync/internal/order"
	"todosync/internal/service"
)

func TestLoad_EmptyWhenMissing(t *testing.T) {
	s := order.New(kv.NewMemory(), nil)
	if got := s.Load(); len(got) != 0 || got == nil {
		t.Errorf("expected empty non-nil list, got %#v", got)
	}
}

func TestLoad_InvalidValuesReadAsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", "{oops"},
		{"object", `{"a":1}`},
		{"numbers", `[1,2,3]`},
		{"empty id", `["a",""]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := kv.NewMemory()
			store.Set(order.Key, tt.value)
			s := order.New(store, nil)

			if got := s.Load(); len(got) != 0 {
				t.Errorf("expected empty list, got %v", got)
			}
		})
	}
}

func TestSave_Load(t *testing.T) {
	store := kv.NewMemory()
	s := order.New(store, nil)

	if err := s.Save(order.List{"b", "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, _, _ := store.Get(order.Key)
	if raw != `["b","a"]` {
		t.Errorf("unexpected stored value %s", raw)
	}
	if got := s.Load(); !reflect.DeepEqual(got, order.List{"b", "a"}) {
		t.Errorf("expected [b a], got %v", got)
	}
}

func TestAppend_Idempotent(t *testing.T) {
	s := order.New(kv.NewMemory(), nil)
	s.Append("a")
	s.Append("b")
	s.Append("a")

	if got := s.Load(); !reflect.DeepEqual(got, order.List{"a", "b"}) {
		t.Errorf("expected [a b], got %v", got)
	}
}

func TestRemove_AbsentIsNoOp(t *testing.T) {
	s := order.New(kv.NewMemory(), nil)
	s.Save(order.List{"a", "b", "c"})

	if err := s.Remove("b"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove("zzz"); err != nil {
		t.Fatalf("remove absent: %v", err)
	}
	if got := s.Load(); !reflect.DeepEqual(got, order.List{"a", "c"}) {
		t.Errorf("expected [a c], got %v", got)
	}
}

func TestReplace_KeepsPosition(t *testing.T) {
	s := order.New(kv.NewMemory(), nil)
	s.Save(order.List{"a", "tmp-1", "c"})

	s.Replace("tmp-1", "srv-1")
	if got := s.Load(); !reflect.DeepEqual(got, order.List{"a", "srv-1", "c"}) {
		t.Errorf("expected [a srv-1 c], got %v", got)
	}

	s.Replace("tmp-9", "srv-9")
	if got := s.Load(); !reflect.DeepEqual(got, order.List{"a", "srv-1", "c", "srv-9"}) {
		t.Errorf("expected srv-9 appended, got %v", got)
	}
}

func TestReplace_TentativePlaceWins(t *testing.T) {
	s := order.New(kv.NewMemory(), nil)
	s.Save(order.List{"srv-1", "a", "tmp-1"})

	s.Replace("tmp-1", "srv-1")
	if got := s.Load(); !reflect.DeepEqual(got, order.List{"a", "srv-1"}) {
		t.Errorf("expected [a srv-1], got %v", got)
	}
}

func TestStore_SQLiteBackend(t *testing.T) {
	db, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "order.sqlite3"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	s := order.New(db, nil)

	s.Append("x")
	s.Append("y")
	if got := s.Load(); !reflect.DeepEqual(got, order.List{"x", "y"}) {
		t.Errorf("expected [x y], got %v", got)
	}
}

func TestReconcile(t *testing.T) {
	todos := []service.Todo{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	tests := []struct {
		name string
		list order.List
		want order.List
	}{
		{"empty list keeps given order", nil, order.List{"a", "b", "c", "d"}},
		{"full order", order.List{"d", "c", "b", "a"}, order.List{"d", "c", "b", "a"}},
		{"unknown ids dropped", order.List{"x", "c", "y", "a"}, order.List{"c", "a", "b", "d"}},
		{"duplicates once", order.List{"b", "b", "a"}, order.List{"b", "a", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := order.IDs(order.Reconcile(tt.list, todos))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
