package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/store"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "todosync help" }
func (c *HelpCmd) NeedsStore() bool  { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, st *store.Store, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  todosync                                  List todos
  todosync list [common flags]
  todosync add [common flags] <title...>
  todosync done [common flags] [--undo] <n>
  todosync toggle [common flags] <n>
  todosync edit [common flags] <n> <title...>
  todosync rm [common flags] <n>
  todosync move [common flags] <n> --before <m> | --after <m>
  todosync ui [common flags]
  todosync login [common flags]
  todosync logout [common flags] [--forget-order]
  todosync whoami [common flags]
  todosync help
  todosync version

<n> is the number shown by list.

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
