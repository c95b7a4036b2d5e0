package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"todosync/internal/achievement"
	"todosync/internal/auth"
	"todosync/internal/kv"
	"todosync/internal/mutation"
	"todosync/internal/order"
	"todosync/internal/reorder"
	"todosync/internal/service"
	"todosync/internal/store"
	"todosync/internal/testutil"
)

type fixture struct {
	api    *testutil.FakeAPI
	orders *order.Store
	rec    *store.Recorder
	store  *store.Store
}

func newFixture(t *testing.T, provider service.AuthProvider, stored ...string) *fixture {
	t.Helper()
	api := testutil.NewFakeAPI()
	api.AddTodo("a", "Alpha", false)
	api.AddTodo("b", "Bravo", false)
	api.AddTodo("c", "Charlie", true)

	orders := orderStore(t, stored...)
	rec := &store.Recorder{}
	s := store.New(api, orders, store.Options{
		Auth:     provider,
		Notifier: rec,
	})
	t.Cleanup(s.Close)
	return &fixture{api: api, orders: orders, rec: rec, store: s}
}

func orderStore(t *testing.T, ids ...string) *order.Store {
	t.Helper()
	orders := order.New(kv.NewMemory(), nil)
	if len(ids) > 0 {
		if err := orders.Save(ids); err != nil {
			t.Fatalf("save order: %v", err)
		}
	}
	return orders
}

func user() service.AuthProvider {
	return auth.Static{UserID: testutil.DefaultUserID}
}

func wait(t *testing.T, p *mutation.Pending) (service.Todo, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	todo, err := p.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("mutation did not settle")
	}
	return todo, err
}

func load(t *testing.T, f *fixture) {
	t.Helper()
	if err := f.store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func ids(todos []service.Todo) string {
	out := make([]string, len(todos))
	for i, t := range todos {
		out[i] = t.ID
	}
	return strings.Join(out, ",")
}

func hasTitle(titles []string, want string) bool {
	for _, t := range titles {
		if t == want {
			return true
		}
	}
	return false
}

func TestLoad_DisplayOrderFollowsStoredOrder(t *testing.T) {
	f := newFixture(t, user(), "c", "missing", "a")
	load(t, f)

	if got := ids(f.store.Todos()); got != "c,a,b" {
		t.Errorf("expected c,a,b, got %s", got)
	}
	v := f.store.View()
	if !v.Loaded || v.Err != nil || v.Loading.Any() {
		t.Errorf("unexpected view state %+v", v)
	}
	if f.api.CallCount("List") != 1 {
		t.Errorf("expected one List call, got %d", f.api.CallCount("List"))
	}

	load(t, f)
	if f.api.CallCount("List") != 1 {
		t.Errorf("Load on a loaded cache should not refetch")
	}
}

func TestRefresh_ErrorIsReported(t *testing.T) {
	f := newFixture(t, user())
	f.api.ListErr = service.Errorf(service.KindServerError, "list", "Internal server error")

	err := f.store.Refresh(context.Background())
	if !errors.Is(err, service.ErrServer) {
		t.Fatalf("expected server error, got %v", err)
	}
	if v := f.store.View(); v.Loaded || v.Err == nil {
		t.Errorf("expected unloaded view with error, got %+v", v)
	}
}

func TestAdd_Notifies(t *testing.T) {
	f := newFixture(t, user())
	load(t, f)

	created, err := wait(t, f.store.Add(context.Background(), "  Buy milk "))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	got := f.rec.Notifications()
	if len(got) != 3 {
		t.Fatalf("expected 3 notifications, got %+v", got)
	}
	if got[0].Title != "Todo Added" || got[0].Description != `"Buy milk" has been successfully added to your list.` {
		t.Errorf("unexpected toast %+v", got[0])
	}
	if got[1].Kind != store.Confetti {
		t.Errorf("expected confetti, got %v", got[1].Kind)
	}
	if got[2].Kind != store.Achievement || got[2].Unlocked.ID != achievement.FirstTask {
		t.Errorf("expected first task achievement, got %+v", got[2])
	}

	if !f.orders.Load().Contains(created.ID) {
		t.Errorf("expected %s in stored order", created.ID)
	}
	todos := f.store.Todos()
	if todos[len(todos)-1].ID != created.ID {
		t.Errorf("expected new todo last, got %s", ids(todos))
	}
}

func TestAdd_EmptyTitleNotifies(t *testing.T) {
	f := newFixture(t, user())
	load(t, f)

	_, err := wait(t, f.store.Add(context.Background(), "   "))
	if !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got := f.rec.Notifications()
	if len(got) != 1 || got[0].Title != "Add Todo Error" || got[0].Level != store.Failure {
		t.Fatalf("unexpected notifications %+v", got)
	}
	if got[0].Description != "Failed to add todo: title is required" {
		t.Errorf("unexpected description %q", got[0].Description)
	}
	if f.api.CallCount("Create") != 0 {
		t.Error("nothing should be sent")
	}
}

func TestAdd_Unauthenticated(t *testing.T) {
	denied := service.AuthFunc(func(context.Context) (string, error) {
		return "", &service.Error{Kind: service.KindUnauthenticated, Message: "User not authenticated"}
	})
	f := newFixture(t, denied)

	if err := f.store.Load(context.Background()); !errors.Is(err, service.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated load, got %v", err)
	}
	_, err := wait(t, f.store.Add(context.Background(), "Buy milk"))
	if !errors.Is(err, service.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if f.api.CallCount("Create") != 0 || len(f.store.Todos()) != 0 {
		t.Error("no mutation should be attempted")
	}
	titles := f.rec.Titles()
	if len(titles) != 1 || titles[0] != "Add Todo Error" {
		t.Errorf("expected one failure toast, got %v", titles)
	}
}

func TestToggleComplete(t *testing.T) {
	f := newFixture(t, user())
	load(t, f)

	todo, err := wait(t, f.store.ToggleComplete(context.Background(), "a"))
	if err != nil || !todo.Completed {
		t.Fatalf("toggle: %+v %v", todo, err)
	}
	titles := f.rec.Titles()
	if titles[0] != "Task Completed! 🎉" {
		t.Errorf("expected completion toast first, got %v", titles)
	}
	// "c" was already completed, so two are done now.
	if !hasTitle(titles, "Task Master Achieved! 🏅") {
		t.Errorf("expected Task Master toast, got %v", titles)
	}
	if !hasTitle(titles, "Complete Your First Task") {
		t.Errorf("expected achievement, got %v", titles)
	}

	todo, err = wait(t, f.store.ToggleComplete(context.Background(), "a"))
	if err != nil || todo.Completed {
		t.Fatalf("toggle back: %+v %v", todo, err)
	}
	titles = f.rec.Titles()
	if titles[len(titles)-1] != "Task Back to Pending! 🔄" {
		t.Errorf("expected pending toast last, got %v", titles)
	}
}

func TestToggleComplete_Missing(t *testing.T) {
	f := newFixture(t, user())
	load(t, f)

	_, err := wait(t, f.store.ToggleComplete(context.Background(), "nope"))
	if !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if titles := f.rec.Titles(); len(titles) != 1 || titles[0] != "Update Todo Error" {
		t.Errorf("unexpected notifications %v", titles)
	}
	if f.api.CallCount("Update") != 0 {
		t.Error("nothing should be sent")
	}
}

func TestUpdate_FailureRollsBack(t *testing.T) {
	f := newFixture(t, user())
	load(t, f)
	f.api.UpdateErr = service.Errorf(service.KindServerError, "update", "Internal server error")

	_, err := wait(t, f.store.Update(context.Background(), "a", service.TitlePatch("Renamed")))
	if !errors.Is(err, service.ErrServer) {
		t.Fatalf("expected server error, got %v", err)
	}
	if todo, _ := f.store.Get("a"); todo.Title != "Alpha" {
		t.Errorf("expected rollback to Alpha, got %q", todo.Title)
	}
	got := f.rec.Notifications()
	if len(got) != 1 || got[0].Description != "Failed to update todo: Internal server error" {
		t.Errorf("unexpected notifications %+v", got)
	}
}

func TestUpdate_TitleNotifies(t *testing.T) {
	f := newFixture(t, user())
	load(t, f)

	if _, err := wait(t, f.store.Update(context.Background(), "b", service.TitlePatch("Bravo 2"))); err != nil {
		t.Fatalf("update: %v", err)
	}
	titles := f.rec.Titles()
	if len(titles) != 2 || titles[0] != "Todo Updated" || titles[1] != "Update Your Task" {
		t.Errorf("unexpected notifications %v", titles)
	}
}

func TestDelete_RemovesFromOrder(t *testing.T) {
	f := newFixture(t, user(), "b", "a", "c")
	load(t, f)

	removed, err := wait(t, f.store.Delete(context.Background(), "a"))
	if err != nil || removed.Title != "Alpha" {
		t.Fatalf("delete: %+v %v", removed, err)
	}
	if got := strings.Join(f.orders.Load(), ","); got != "b,c" {
		t.Errorf("expected stored order b,c, got %s", got)
	}
	if got := ids(f.store.Todos()); got != "b,c" {
		t.Errorf("expected b,c, got %s", got)
	}
	titles := f.rec.Titles()
	if titles[0] != "Todo Deleted" || !hasTitle(titles, "Delete a Task") {
		t.Errorf("unexpected notifications %v", titles)
	}
}

func TestDelete_FailureKeepsTodo(t *testing.T) {
	f := newFixture(t, user())
	load(t, f)
	f.api.RemoveErr = &service.Error{Kind: service.KindNetworkError, Op: "delete", Message: "No response from the server"}

	if _, err := wait(t, f.store.Delete(context.Background(), "b")); !errors.Is(err, service.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if _, ok := f.store.Get("b"); !ok {
		t.Error("expected b to be restored")
	}
	if titles := f.rec.Titles(); len(titles) != 1 || titles[0] != "Delete Todo Error" {
		t.Errorf("unexpected notifications %v", titles)
	}
}

func TestReorder_Persists(t *testing.T) {
	f := newFixture(t, user())
	load(t, f)

	if err := f.store.Reorder("a", reorder.DropTarget{TargetID: "c", Position: reorder.After}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got := ids(f.store.Todos()); got != "b,c,a" {
		t.Errorf("expected b,c,a, got %s", got)
	}
	if got := strings.Join(f.orders.Load(), ","); got != "b,c,a" {
		t.Errorf("expected stored b,c,a, got %s", got)
	}
	if state := f.store.View().Drag.State; state != reorder.Idle {
		t.Errorf("expected idle after drop, got %v", state)
	}
}

// tentative waits for the optimistic record of an add in flight.
func tentative(t *testing.T, f *fixture) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, todo := range f.store.Todos() {
			if mutation.IsTentative(todo.ID) {
				return todo.ID
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no tentative todo appeared")
	return ""
}

func TestAdd_MovedWhilePendingKeepsPlace(t *testing.T) {
	f := newFixture(t, user(), "a", "b", "c")
	load(t, f)
	f.api.Hold = make(chan struct{})

	p := f.store.Add(context.Background(), "New")
	tmp := tentative(t, f)
	if err := f.store.Reorder(tmp, reorder.DropTarget{TargetID: "a", Position: reorder.Before}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	close(f.api.Hold)

	created, err := wait(t, p)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	want := created.ID + ",a,b,c"
	if got := strings.Join(f.orders.Load(), ","); got != want {
		t.Errorf("expected stored %s, got %s", want, got)
	}
	if got := ids(f.store.Todos()); got != want {
		t.Errorf("expected displayed %s, got %s", want, got)
	}
}

func TestAdd_FailedWhileMovedLeavesNoTentativeID(t *testing.T) {
	f := newFixture(t, user(), "a", "b", "c")
	load(t, f)
	f.api.Hold = make(chan struct{})
	f.api.CreateErr = &service.Error{Kind: service.KindServerError, Op: "create", Message: "Internal server error"}

	p := f.store.Add(context.Background(), "New")
	tmp := tentative(t, f)
	if err := f.store.Reorder(tmp, reorder.DropTarget{TargetID: "b", Position: reorder.After}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	close(f.api.Hold)

	if _, err := wait(t, p); err == nil {
		t.Fatal("expected add to fail")
	}
	if got := strings.Join(f.orders.Load(), ","); got != "a,b,c" {
		t.Errorf("expected stored a,b,c, got %s", got)
	}
	if got := ids(f.store.Todos()); got != "a,b,c" {
		t.Errorf("expected displayed a,b,c, got %s", got)
	}
}

func TestDrag_PointerBelowThresholdDoesNothing(t *testing.T) {
	f := newFixture(t, user())
	load(t, f)

	f.store.BeginDrag("a", reorder.Pointer, reorder.Point{})
	if state := f.store.MoveDrag(reorder.Point{X: 3}); state != reorder.Armed {
		t.Fatalf("expected armed, got %v", state)
	}
	if err := f.store.Drop(reorder.DropTarget{TargetID: "c", Position: reorder.After}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if got := ids(f.store.Todos()); got != "a,b,c" {
		t.Errorf("expected order unchanged, got %s", got)
	}
	if len(f.orders.Load()) != 0 {
		t.Error("nothing should be saved")
	}
}

func TestSubscribe_ReceivesViews(t *testing.T) {
	f := newFixture(t, user())
	var views []store.View
	unsubscribe := f.store.Subscribe(func(v store.View) { views = append(views, v) })

	load(t, f)
	if len(views) == 0 || !views[len(views)-1].Loaded {
		t.Fatalf("expected a loaded view, got %d views", len(views))
	}

	f.store.BeginDrag("b", reorder.Keyboard, reorder.Point{})
	last := views[len(views)-1]
	if last.Drag.State != reorder.Dragging || last.Drag.ActiveID != "b" {
		t.Errorf("expected drag view, got %+v", last.Drag)
	}
	f.store.CancelDrag()

	unsubscribe()
	n := len(views)
	f.store.Invalidate()
	if len(views) != n {
		t.Error("no views after unsubscribe")
	}
	if f.store.View().Loaded {
		t.Error("expected unloaded view after invalidate")
	}
}

func TestAchievements(t *testing.T) {
	f := newFixture(t, user())
	load(t, f)

	wait(t, f.store.Add(context.Background(), "One"))
	wait(t, f.store.Delete(context.Background(), "a"))

	got := f.store.Achievements()
	if len(got) != 2 || got[0].ID != achievement.FirstTask || got[1].ID != achievement.FirstDelete {
		t.Errorf("unexpected achievements %+v", got)
	}
}
