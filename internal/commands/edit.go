package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/service"
	"todosync/internal/store"
)

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command.
type EditCmd struct{}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return []string{"rename"} }
func (c *EditCmd) Synopsis() string  { return "Change the title of a todo" }
func (c *EditCmd) Usage() string     { return "todosync edit <n> <title...>" }
func (c *EditCmd) NeedsStore() bool  { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, st *store.Store, args []string, out, errOut io.Writer) int {
	if len(args) < 2 || strings.TrimSpace(strings.Join(args[1:], " ")) == "" {
		if len(args) == 0 {
			fmt.Fprintln(errOut, "error: todo number required")
		} else {
			fmt.Fprintln(errOut, "error: title required")
		}
		return exitcode.UserError
	}
	todo, code := resolveRef(ctx, st, args, errOut)
	if code != exitcode.Success {
		return code
	}
	title := strings.Join(args[1:], " ")
	_, code = settle(ctx, st.Update(ctx, todo.ID, service.TitlePatch(title)), errOut)
	return code
}
