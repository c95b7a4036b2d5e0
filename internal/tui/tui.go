// Package tui is the interactive todo view.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"todosync/internal/mutation"
	"todosync/internal/order"
	"todosync/internal/reorder"
	"todosync/internal/service"
	"todosync/internal/store"
)

const toastDuration = 3 * time.Second

// Terminal cells are scaled to approximate pixels so the pointer activation
// distance keeps its meaning.
const (
	cellWidth  = 8
	cellHeight = 16
)

type mode int

const (
	normal mode = iota
	adding
	editing
	moving
)

type (
	refreshMsg    struct{}
	loadedMsg     struct{ err error }
	settledMsg    struct{ err error }
	clearToastMsg struct{ seq int }
)

type model struct {
	ctx   context.Context
	st    *store.Store
	inbox *inbox

	view    store.View
	cursor  int
	mode    mode
	editID  string
	preview order.List
	pressed int

	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    KeyMap

	toast     string
	celebrate bool
	toastSeq  int
}

func newModel(ctx context.Context, st *store.Store, box *inbox) model {
	in := textinput.New()
	in.Placeholder = "What needs to be done?"
	in.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle

	return model{
		ctx:     ctx,
		st:      st,
		inbox:   box,
		view:    st.View(),
		pressed: -1,
		input:   in,
		spinner: sp,
		help:    help.New(),
		keys:    Keys,
	}
}

// Run shows the todo view until the user quits or ctx is done.
func Run(ctx context.Context, st *store.Store, opts ...tea.ProgramOption) error {
	box := newInbox()
	st.SetNotifier(box)
	unsub := st.Subscribe(func(store.View) { box.changed() })
	defer func() {
		unsub()
		st.SetNotifier(nil)
	}()

	opts = append([]tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	}, opts...)
	_, err := tea.NewProgram(newModel(ctx, st, box), opts...).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load(), m.inbox.wait())
}

func (m model) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.st.Load(m.ctx)}
	}
}

func (m model) refresh() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.st.Refresh(m.ctx)}
	}
}

func (m model) settle(p *mutation.Pending) tea.Cmd {
	return func() tea.Msg {
		_, err := p.Wait(m.ctx)
		return settledMsg{err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case refreshMsg:
		return m.pull()

	case loadedMsg, settledMsg:
		// Failures reach the view through the store and its toasts.
		m.view = m.st.View()
		m.clamp()
		return m, nil

	case clearToastMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
			m.celebrate = false
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		return m.mouse(msg)

	case tea.KeyMsg:
		switch m.mode {
		case adding, editing:
			return m.typing(msg)
		case moving:
			return m.moving(msg)
		}
		return m.normal(msg)
	}
	return m, nil
}

// pull refreshes the view from the store and shows queued notifications.
func (m model) pull() (tea.Model, tea.Cmd) {
	m.view = m.st.View()
	m.clamp()

	cmds := []tea.Cmd{m.inbox.wait()}
	for _, n := range m.inbox.drain() {
		switch n.Kind {
		case store.Confetti:
			m.celebrate = true
		default:
			m.toast = renderToast(n)
		}
		m.toastSeq++
		cmds = append(cmds, m.expire())
	}
	return m, tea.Batch(cmds...)
}

func (m *model) clamp() {
	n := len(m.rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m model) selected() (service.Todo, bool) {
	rows := m.rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return service.Todo{}, false
	}
	return rows[m.cursor], true
}

func (m model) rows() []service.Todo {
	if m.mode == moving {
		return order.Reconcile(m.preview, m.view.Todos)
	}
	return m.view.Todos
}

func (m model) normal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows())-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Toggle):
		if t, ok := m.selected(); ok {
			return m, m.settle(m.st.ToggleComplete(m.ctx, t.ID))
		}

	case key.Matches(msg, m.keys.Add):
		m.mode = adding
		m.input.Reset()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Edit):
		if t, ok := m.selected(); ok {
			m.mode = editing
			m.editID = t.ID
			m.input.SetValue(t.Title)
			m.input.CursorEnd()
			return m, m.input.Focus()
		}

	case key.Matches(msg, m.keys.Delete):
		if t, ok := m.selected(); ok {
			return m, m.settle(m.st.Delete(m.ctx, t.ID))
		}

	case key.Matches(msg, m.keys.Move):
		if t, ok := m.selected(); ok && len(m.view.Todos) > 1 {
			m.st.BeginDrag(t.ID, reorder.Keyboard, reorder.Point{})
			m.mode = moving
			m.preview = order.IDs(m.view.Todos)
			m.view = m.st.View()
		}

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m model) typing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		m.stopTyping()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		title := m.input.Value()
		var p *mutation.Pending
		if m.mode == adding {
			p = m.st.Add(m.ctx, title)
		} else {
			p = m.st.Update(m.ctx, m.editID, service.TitlePatch(title))
		}
		m.stopTyping()
		return m, m.settle(p)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) stopTyping() {
	m.mode = normal
	m.editID = ""
	m.input.Blur()
	m.input.Reset()
}

func (m model) moving(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	active := m.view.Drag.ActiveID
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.st.CancelDrag()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
		delta := 1
		if key.Matches(msg, m.keys.Up) {
			delta = -1
		}
		if target, ok := reorder.StepTarget(m.preview, active, delta); ok {
			m.preview, _ = reorder.Move(m.preview, active, target)
			m.cursor = m.preview.Index(active)
		}

	case key.Matches(msg, m.keys.Confirm):
		m.mode = normal
		i := m.preview.Index(active)
		var target reorder.DropTarget
		switch {
		case i > 0:
			target = reorder.DropTarget{TargetID: m.preview[i-1], Position: reorder.After}
		case i == 0 && len(m.preview) > 1:
			target = reorder.DropTarget{TargetID: m.preview[1], Position: reorder.Before}
		}
		m.preview = nil
		var cmd tea.Cmd
		if target.TargetID == "" {
			m.st.CancelDrag()
		} else if err := m.st.Drop(target); err != nil {
			m, cmd = m.show(orderFailure(err))
		}
		m.view = m.st.View()
		m.cursor = order.IDs(m.view.Todos).Index(active)
		m.clamp()
		return m, cmd

	case key.Matches(msg, m.keys.Cancel):
		m.mode = normal
		m.preview = nil
		m.st.CancelDrag()
		m.view = m.st.View()
		m.clamp()
	}
	return m, nil
}

func (m model) show(text string) (model, tea.Cmd) {
	m.toast = text
	m.toastSeq++
	return m, m.expire()
}

func (m model) expire() tea.Cmd {
	seq := m.toastSeq
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return clearToastMsg{seq: seq}
	})
}

// listTop is the screen row of the first todo.
func (m model) listTop() int {
	top := 2
	if m.view.Err != nil {
		top++
	}
	return top
}

func (m model) mouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.mode != normal {
		return m, nil
	}
	at := reorder.Point{X: float64(msg.X * cellWidth), Y: float64(msg.Y * cellHeight)}
	row := msg.Y - m.listTop()
	todos := m.view.Todos

	var cmd tea.Cmd
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || row < 0 || row >= len(todos) {
			return m, nil
		}
		m.cursor = row
		m.pressed = row
		m.st.BeginDrag(todos[row].ID, reorder.Pointer, at)

	case tea.MouseActionMotion:
		if m.pressed < 0 {
			return m, nil
		}
		m.st.MoveDrag(at)
		if row >= 0 && row < len(todos) {
			m.cursor = row
		}

	case tea.MouseActionRelease:
		if m.pressed < 0 {
			return m, nil
		}
		from := m.pressed
		m.pressed = -1
		if m.st.View().Drag.State != reorder.Dragging {
			m.st.CancelDrag()
			break
		}
		if row < 0 {
			row = 0
		}
		if row >= len(todos) {
			row = len(todos) - 1
		}
		pos := reorder.After
		if row < from {
			pos = reorder.Before
		}
		if err := m.st.Drop(reorder.DropTarget{TargetID: todos[row].ID, Position: pos}); err != nil {
			m, cmd = m.show(orderFailure(err))
		}
	}
	m.view = m.st.View()
	m.clamp()
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Todos"))
	if n := len(m.st.Achievements()); n > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  🏆 %d", n)))
	}
	if m.view.Loading.Any() {
		b.WriteString("  " + m.spinner.View() + mutedStyle.Render(loadingLabel(m.view.Loading)))
	}
	b.WriteString("\n\n")
	if m.view.Err != nil {
		b.WriteString(errorStyle.Render("error: "+m.view.Err.Error()) + "\n")
	}

	rows := m.rows()
	switch {
	case !m.view.Loaded && m.view.Err == nil:
		b.WriteString(mutedStyle.Render("loading…") + "\n")
	case len(rows) == 0 && m.view.Loaded:
		b.WriteString(mutedStyle.Render("no todos yet, press a to add one") + "\n")
	}
	for i, t := range rows {
		b.WriteString(m.renderRow(i, t) + "\n")
	}

	switch m.mode {
	case adding:
		b.WriteString("\n" + accentStyle.Render("new: ") + m.input.View() + "\n")
	case editing:
		b.WriteString("\n" + accentStyle.Render("edit: ") + m.input.View() + "\n")
	case moving:
		b.WriteString("\n" + accentStyle.Render("moving: j/k to place, enter to drop, esc to cancel") + "\n")
	}

	if m.celebrate {
		b.WriteString("\n" + successStyle.Render("🎉 ✨ 🎊 ✨ 🎉") + "\n")
	}
	if m.toast != "" {
		b.WriteString("\n" + toastStyle.Render(m.toast) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m model) renderRow(i int, t service.Todo) string {
	prefix := "  "
	if i == m.cursor {
		prefix = "> "
	}
	box := boxUnchecked
	if t.Completed {
		box = successStyle.Render(boxChecked)
	}

	title := t.Title
	switch {
	case m.view.Drag.State == reorder.Dragging && t.ID == m.view.Drag.ActiveID:
		title = draggingStyle.Render(title)
	case mutation.IsTentative(t.ID):
		title = pendingStyle.Render(title)
	case t.Completed:
		title = doneStyle.Render(title)
	case i == m.cursor:
		title = selectedStyle.Render(title)
	}
	return prefix + box + " " + title
}

func renderToast(n store.Notification) string {
	switch {
	case n.Kind == store.Achievement:
		return successStyle.Render("🏆 Achievement unlocked: "+n.Title) + "\n" + mutedStyle.Render(n.Description)
	case n.Level == store.Failure:
		return errorStyle.Render("✖ "+n.Title) + "\n" + n.Description
	case n.Level == store.Success:
		return successStyle.Render("✔ "+n.Title) + "\n" + n.Description
	default:
		return accentStyle.Render("• "+n.Title) + "\n" + n.Description
	}
}

func orderFailure(err error) string {
	return errorStyle.Render("✖ Reorder Error") + "\nFailed to save order: " + err.Error()
}

func loadingLabel(l store.Loading) string {
	switch {
	case l.Fetching:
		return "fetching"
	case l.Adding:
		return "adding"
	case l.Updating:
		return "saving"
	default:
		return "deleting"
	}
}
