package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todosync/internal/app"
	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/store"
)

func init() {
	Register(&WhoamiCmd{})
}

// WhoamiCmd prints the user the todos belong to.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string      { return "whoami" }
func (c *WhoamiCmd) Aliases() []string { return nil }
func (c *WhoamiCmd) Synopsis() string  { return "Print the signed-in user" }
func (c *WhoamiCmd) Usage() string     { return "todosync whoami" }
func (c *WhoamiCmd) NeedsStore() bool  { return false }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, cfg *config.Config, st *store.Store, args []string, out, errOut io.Writer) int {
	id, err := app.AuthProvider(cfg).CurrentUserID(ctx)
	if err != nil {
		return fail(errOut, err)
	}
	fmt.Fprintf(out, "%s (%s)\n", id, cfg.Settings.Backend)
	return exitcode.Success
}
