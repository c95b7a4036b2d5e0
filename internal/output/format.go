// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"todosync/internal/service"
	"todosync/internal/store"
)

const (
	boxChecked   = "[x]"
	boxUnchecked = "[ ]"
)

// FormatTodo formats a todo line.
// Format: "{N:>4}  {BOX} {TITLE}\n" (4-wide right-aligned number, two spaces, box, title)
func FormatTodo(w io.Writer, num int, todo service.Todo) {
	box := boxUnchecked
	if todo.Completed {
		box = boxChecked
	}
	fmt.Fprintf(w, "%4d  %s %s\n", num, box, NormalizeTitle(todo.Title))
}

// FormatTodos formats todos numbered from 1.
func FormatTodos(w io.Writer, todos []service.Todo) {
	for i, t := range todos {
		FormatTodo(w, i+1, t)
	}
}

// NormalizeTitle normalizes a todo title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func NormalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

// Styles renders notifications for one writer. Colors are dropped when the
// writer is not a terminal.
type Styles struct {
	Success lipgloss.Style
	Info    lipgloss.Style
	Failure lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
}

// NewStyles creates styles bound to w.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Success: r.NewStyle().Foreground(lipgloss.Color("42")),
		Info:    r.NewStyle().Foreground(lipgloss.Color("214")),
		Failure: r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Muted:   r.NewStyle().Faint(true),
		Accent:  r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
	}
}

// FormatNotification writes one notification line. Confetti writes nothing.
func FormatNotification(w io.Writer, st Styles, n store.Notification) {
	switch n.Kind {
	case store.Confetti:
		return
	case store.Achievement:
		fmt.Fprintf(w, "%s %s\n", st.Accent.Render("🏆 Achievement unlocked:"), n.Title)
		return
	}

	var mark string
	switch n.Level {
	case store.Failure:
		mark = st.Failure.Render("✖ " + n.Title)
	case store.Info:
		mark = st.Info.Render("• " + n.Title)
	default:
		mark = st.Success.Render("✔ " + n.Title)
	}
	if n.Description == "" {
		fmt.Fprintln(w, mark)
		return
	}
	fmt.Fprintf(w, "%s %s\n", mark, st.Muted.Render(n.Description))
}

// Notifier prints success and info notifications to w. Failures are left to
// the command, which reports them with its exit code.
func Notifier(w io.Writer) store.Notifier {
	st := NewStyles(w)
	return store.NotifierFunc(func(n store.Notification) {
		if n.Kind == store.Toast && n.Level == store.Failure {
			return
		}
		FormatNotification(w, st, n)
	})
}
