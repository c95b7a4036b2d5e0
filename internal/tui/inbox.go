package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"todosync/internal/store"
)

// inbox collects store changes and notifications from any goroutine.
// Senders never block; the model pulls on refreshMsg.
type inbox struct {
	mu    sync.Mutex
	notes []store.Notification
	ping  chan struct{}
}

func newInbox() *inbox {
	return &inbox{ping: make(chan struct{}, 1)}
}

func (b *inbox) changed() {
	select {
	case b.ping <- struct{}{}:
	default:
	}
}

// Notify implements store.Notifier.
func (b *inbox) Notify(n store.Notification) {
	b.mu.Lock()
	b.notes = append(b.notes, n)
	b.mu.Unlock()
	b.changed()
}

func (b *inbox) drain() []store.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notes
	b.notes = nil
	return out
}

func (b *inbox) wait() tea.Cmd {
	return func() tea.Msg {
		<-b.ping
		return refreshMsg{}
	}
}
