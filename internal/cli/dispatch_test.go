package cli_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"todosync/internal/auth"
	"todosync/internal/cli"
	"todosync/internal/commands"
	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/kv"
	"todosync/internal/order"
	"todosync/internal/service"
	"todosync/internal/store"
	"todosync/internal/testutil"
)

// testFactory creates a store factory backed by the given FakeAPI.
func testFactory(api *testutil.FakeAPI) cli.StoreFactory {
	return func(ctx context.Context, cfg *config.Config, notifier store.Notifier) (*store.Store, error) {
		return store.New(api, order.New(kv.NewMemory(), nil), store.Options{
			Auth:     auth.Static{UserID: testutil.DefaultUserID},
			Notifier: notifier,
		}), nil
	}
}

func run(t *testing.T, d *cli.Dispatcher, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	code := d.Run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeAPI()))

	code, _, stderr := run(t, dispatcher, "unknowncmd")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: unknowncmd\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeAPI()))

	code, _, stderr := run(t, dispatcher, "--quiet")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: --quiet\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_HelpCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeAPI()))

	code, stdout, stderr := run(t, dispatcher, "help")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Error("expected help output to contain 'Usage:'")
	}
}

func TestDispatcher_VersionCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeAPI()))

	code, stdout, stderr := run(t, dispatcher, "version")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "todosync 0.1.0\n" {
		t.Errorf("expected 'todosync 0.1.0\\n', got %q", stdout)
	}
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeAPI()))

	code, _, stderr := run(t, dispatcher, "help", "--unknown")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown flag: -unknown\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_NoArgsLists(t *testing.T) {
	api := testutil.NewFakeAPI()
	api.AddTodo("a", "Alpha", false)
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(api))

	code, stdout, stderr := run(t, dispatcher)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "   1  [ ] Alpha\n" {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestDispatcher_AddPrintsNotifications(t *testing.T) {
	api := testutil.NewFakeAPI()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(api))

	code, stdout, stderr := run(t, dispatcher, "add", "Buy", "milk")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if !strings.Contains(stdout, "✔ Todo Added") {
		t.Errorf("expected added toast, got %q", stdout)
	}
	if !strings.Contains(stdout, "🏆 Achievement unlocked: Create Your First Task") {
		t.Errorf("expected achievement, got %q", stdout)
	}
	if got := api.Todos(); len(got) != 1 || got[0].Title != "Buy milk" {
		t.Errorf("unexpected todos %+v", got)
	}
}

func TestDispatcher_QuietSuppressesNotifications(t *testing.T) {
	api := testutil.NewFakeAPI()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(api))

	code, stdout, _ := run(t, dispatcher, "add", "--quiet", "Buy", "milk")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no output, got %q", stdout)
	}
	if len(api.Todos()) != 1 {
		t.Errorf("expected the todo to be created")
	}
}

func TestDispatcher_FactoryErrorExitCode(t *testing.T) {
	factory := func(ctx context.Context, cfg *config.Config, notifier store.Notifier) (*store.Store, error) {
		return nil, &service.Error{Kind: service.KindUnauthenticated, Message: "not logged in"}
	}
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	code, _, stderr := run(t, dispatcher, "list")

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: not logged in\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDispatcher_DefaultFactoryPreflight(t *testing.T) {
	t.Setenv("TODOSYNC_BACKEND", "")
	t.Setenv("TODOSYNC_USER_ID", "")
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, nil)

	code, _, stderr := run(t, dispatcher, "list", "--config", t.TempDir())

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if !strings.Contains(stderr, "not logged in") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDispatcher_NoStoreForHelp(t *testing.T) {
	called := false
	factory := func(ctx context.Context, cfg *config.Config, notifier store.Notifier) (*store.Store, error) {
		called = true
		return nil, nil
	}
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	run(t, dispatcher, "help")

	if called {
		t.Error("help must not build a store")
	}
}
