package store

import (
	"errors"
	"fmt"
	"sync"

	"todosync/internal/achievement"
	"todosync/internal/service"
)

// Kind is the kind of a notification.
type Kind int

const (
	Toast Kind = iota
	Confetti
	Achievement
)

func (k Kind) String() string {
	switch k {
	case Confetti:
		return "confetti"
	case Achievement:
		return "achievement"
	default:
		return "toast"
	}
}

// Level is the severity of a toast.
type Level int

const (
	Info Level = iota
	Success
	Failure
)

// Notification is a user-facing side effect of a mutation.
type Notification struct {
	Kind        Kind
	Level       Level
	Title       string
	Description string
	// Unlocked is set for Achievement notifications.
	Unlocked *achievement.Achievement
}

// Notifier receives notifications. Notify is called on the goroutine that
// settled the mutation, before the caller's handle resolves.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }

// Recorder is a Notifier that keeps everything it receives.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
}

// Notifications returns the received notifications in order.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.list...)
}

// Titles returns the titles of the received notifications.
func (r *Recorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.list))
	for i, n := range r.list {
		out[i] = n.Title
	}
	return out
}

func toast(level Level, title, format string, args ...any) Notification {
	return Notification{Kind: Toast, Level: level, Title: title, Description: fmt.Sprintf(format, args...)}
}

func addedToast(t service.Todo) Notification {
	return toast(Success, "Todo Added", "%q has been successfully added to your list.", t.Title)
}

func updatedToast(t service.Todo) Notification {
	return toast(Success, "Todo Updated", "%q has been updated successfully.", t.Title)
}

func completedToast(t service.Todo) Notification {
	return toast(Success, "Task Completed! 🎉", "Congrats! %q is now completed. Well done! 😊", t.Title)
}

func reopenedToast(t service.Todo) Notification {
	return toast(Info, "Task Back to Pending! 🔄", "%q is back to being pending. Keep going! 💪", t.Title)
}

func taskMasterToast() Notification {
	return toast(Success, "Task Master Achieved! 🏅", "You’ve unlocked an achievement! 🎉")
}

func deletedToast() Notification {
	return toast(Success, "Todo Deleted", "Todo has been deleted successfully.")
}

func failureToast(op string, err error) Notification {
	var title, verb string
	switch op {
	case "add":
		title, verb = "Add Todo Error", "add"
	case "delete":
		title, verb = "Delete Todo Error", "delete"
	default:
		title, verb = "Update Todo Error", "update"
	}
	return toast(Failure, title, "Failed to %s todo: %s", verb, errorMessage(err))
}

func achievementNotice(a achievement.Achievement) Notification {
	return Notification{
		Kind:        Achievement,
		Level:       Success,
		Title:       a.Title,
		Description: a.Description,
		Unlocked:    &a,
	}
}

// errorMessage prefers the server or validation detail over the wrapped text.
func errorMessage(err error) string {
	var e *service.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
