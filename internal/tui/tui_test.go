package tui

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"todosync/internal/auth"
	"todosync/internal/kv"
	"todosync/internal/order"
	"todosync/internal/reorder"
	"todosync/internal/store"
	"todosync/internal/testutil"
)

type harness struct {
	api    *testutil.FakeAPI
	orders *order.Store
	st     *store.Store
	m      model
}

func newHarness(t *testing.T, seed bool) *harness {
	t.Helper()
	api := testutil.NewFakeAPI()
	if seed {
		api.AddTodo("a", "Alpha", false)
		api.AddTodo("b", "Bravo", false)
		api.AddTodo("c", "Charlie", true)
	}
	orders := order.New(kv.NewMemory(), nil)
	box := newInbox()
	st := store.New(api, orders, store.Options{
		Auth:     auth.Static{UserID: testutil.DefaultUserID},
		Notifier: box,
	})
	t.Cleanup(st.Close)

	h := &harness{api: api, orders: orders, st: st, m: newModel(context.Background(), st, box)}
	h.run(t, h.m.load())
	return h
}

// send delivers msg and returns the command it produced.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(model)
	return cmd
}

// run executes cmd, feeds its message back and pulls store changes.
func (h *harness) run(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	h.send(cmd())
	h.send(refreshMsg{})
}

func keys(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func titles(h *harness) []string {
	var out []string
	for _, t := range h.st.Todos() {
		out = append(out, t.Title)
	}
	return out
}

func TestView_ListsTodos(t *testing.T) {
	h := newHarness(t, true)

	out := h.m.View()
	for _, want := range []string{"> ☐ Alpha", "  ☐ Bravo", "☑ Charlie"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in view:\n%s", want, out)
		}
	}
}

func TestView_Empty(t *testing.T) {
	h := newHarness(t, false)

	if out := h.m.View(); !strings.Contains(out, "no todos yet") {
		t.Errorf("expected empty hint, got:\n%s", out)
	}
}

func TestAdd(t *testing.T) {
	h := newHarness(t, true)

	h.send(keys("a"))
	if h.m.mode != adding {
		t.Fatalf("expected adding mode, got %v", h.m.mode)
	}
	h.send(keys("Delta"))
	h.run(t, h.send(keys("enter")))

	if got := titles(h); !reflect.DeepEqual(got, []string{"Alpha", "Bravo", "Charlie", "Delta"}) {
		t.Errorf("unexpected titles %v", got)
	}
	if !h.m.celebrate || h.m.toast == "" {
		t.Errorf("expected confetti and a toast, got celebrate=%v toast=%q", h.m.celebrate, h.m.toast)
	}
	if h.m.mode != normal {
		t.Errorf("expected normal mode after submit")
	}
}

func TestAdd_EscapeCancels(t *testing.T) {
	h := newHarness(t, true)

	h.send(keys("a"))
	h.send(keys("Delta"))
	if cmd := h.send(keys("esc")); cmd != nil {
		t.Errorf("expected no command on cancel")
	}
	if h.m.mode != normal || h.api.CallCount("Create") != 0 {
		t.Errorf("expected cancel without a create call")
	}
}

func TestToggle(t *testing.T) {
	h := newHarness(t, true)

	h.run(t, h.send(keys(" ")))

	got, _ := h.st.Get("a")
	if !got.Completed {
		t.Errorf("expected Alpha completed")
	}
	if !strings.Contains(h.m.toast, "Task Completed!") && !strings.Contains(h.m.toast, "Achievement") {
		t.Errorf("unexpected toast %q", h.m.toast)
	}
}

func TestEdit(t *testing.T) {
	h := newHarness(t, true)

	h.send(keys("j"))
	h.send(keys("e"))
	if h.m.input.Value() != "Bravo" {
		t.Fatalf("expected input prefilled with Bravo, got %q", h.m.input.Value())
	}
	h.send(keys("!"))
	h.run(t, h.send(keys("enter")))

	if got, _ := h.st.Get("b"); got.Title != "Bravo!" {
		t.Errorf("expected Bravo!, got %q", got.Title)
	}
}

func TestDelete(t *testing.T) {
	h := newHarness(t, true)

	h.send(keys("j"))
	h.send(keys("j"))
	h.run(t, h.send(keys("d")))

	if got := titles(h); !reflect.DeepEqual(got, []string{"Alpha", "Bravo"}) {
		t.Errorf("unexpected titles %v", got)
	}
	if h.m.cursor != 1 {
		t.Errorf("expected cursor clamped to 1, got %d", h.m.cursor)
	}
}

func TestMove_Keyboard(t *testing.T) {
	h := newHarness(t, true)

	h.send(keys("m"))
	if h.m.mode != moving || h.m.view.Drag.State != reorder.Dragging {
		t.Fatalf("expected keyboard drag, got mode %v state %v", h.m.mode, h.m.view.Drag.State)
	}
	h.send(keys("j"))
	h.send(keys("j"))
	if got := []string(h.m.preview); !reflect.DeepEqual(got, []string{"b", "c", "a"}) {
		t.Errorf("unexpected preview %v", got)
	}
	h.send(keys("enter"))

	if got := titles(h); !reflect.DeepEqual(got, []string{"Bravo", "Charlie", "Alpha"}) {
		t.Errorf("unexpected titles %v", got)
	}
	if got := []string(h.orders.Load()); !reflect.DeepEqual(got, []string{"b", "c", "a"}) {
		t.Errorf("order not persisted, got %v", got)
	}
	if h.m.cursor != 2 {
		t.Errorf("expected cursor to follow the moved todo, got %d", h.m.cursor)
	}
}

func TestMove_EscapeRestores(t *testing.T) {
	h := newHarness(t, true)

	h.send(keys("m"))
	h.send(keys("j"))
	h.send(keys("esc"))

	if got := titles(h); !reflect.DeepEqual(got, []string{"Alpha", "Bravo", "Charlie"}) {
		t.Errorf("unexpected titles %v", got)
	}
	if h.m.view.Drag.State != reorder.Idle {
		t.Errorf("expected idle drag, got %v", h.m.view.Drag.State)
	}
	if len(h.orders.Load()) != 0 {
		t.Errorf("expected nothing saved")
	}
}

func mouse(action tea.MouseAction, y int) tea.MouseMsg {
	return tea.MouseMsg{X: 3, Y: y, Action: action, Button: tea.MouseButtonLeft}
}

func TestMouse_ClickSelects(t *testing.T) {
	h := newHarness(t, true)
	top := h.m.listTop()

	h.send(mouse(tea.MouseActionPress, top+1))
	h.send(mouse(tea.MouseActionRelease, top+1))

	if h.m.cursor != 1 {
		t.Errorf("expected cursor on Bravo, got %d", h.m.cursor)
	}
	if len(h.orders.Load()) != 0 {
		t.Errorf("a click must not reorder")
	}
}

func TestMouse_DragReorders(t *testing.T) {
	h := newHarness(t, true)
	top := h.m.listTop()

	h.send(mouse(tea.MouseActionPress, top))
	h.send(mouse(tea.MouseActionMotion, top+2))
	if h.st.View().Drag.State != reorder.Dragging {
		t.Fatalf("expected drag to activate after moving two rows")
	}
	h.send(mouse(tea.MouseActionRelease, top+2))

	if got := titles(h); !reflect.DeepEqual(got, []string{"Bravo", "Charlie", "Alpha"}) {
		t.Errorf("unexpected titles %v", got)
	}
}

func TestRefresh_ShowsError(t *testing.T) {
	h := newHarness(t, true)
	h.api.ListErr = errors.New("connection refused")

	h.run(t, h.send(keys("r")))

	if out := h.m.View(); !strings.Contains(out, "connection refused") {
		t.Errorf("expected error in view:\n%s", out)
	}
}

func TestClearToast_IgnoresStale(t *testing.T) {
	h := newHarness(t, true)
	h.m.toast = "hello"
	h.m.toastSeq = 2

	h.send(clearToastMsg{seq: 1})
	if h.m.toast != "hello" {
		t.Errorf("stale clear removed the toast")
	}
	h.send(clearToastMsg{seq: 2})
	if h.m.toast != "" {
		t.Errorf("expected toast cleared")
	}
}
