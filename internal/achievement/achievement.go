// Package achievement tracks milestones reached during a session.
package achievement

import (
	"sync"
	"time"

	"todosync/internal/service"
)

// ID identifies an achievement.
type ID int

const (
	FirstTask ID = iota + 1
	FirstCompletion
	FiveCompletions
	FirstUpdate
	FirstDelete
	AllCompleted
)

// Achievement describes one milestone.
type Achievement struct {
	ID          ID
	Title       string
	Description string
	Requirement string
	UnlockedAt  time.Time
}

// Catalog lists every achievement in display order.
var Catalog = []Achievement{
	{
		ID:          FirstTask,
		Title:       "Create Your First Task",
		Description: "Congratulations on creating your first todo! You've started your journey to organize your tasks.",
		Requirement: "Create your first todo item.",
	},
	{
		ID:          FirstCompletion,
		Title:       "Complete Your First Task",
		Description: "Congratulations on completing your first todo! You're one step closer to accomplishing your goals.",
		Requirement: "Mark your first todo as completed.",
	},
	{
		ID:          FiveCompletions,
		Title:       "Complete 5 Tasks",
		Description: "Amazing! You've completed 5 tasks. Keep up the great work!",
		Requirement: "Complete at least 5 tasks.",
	},
	{
		ID:          FirstUpdate,
		Title:       "Update Your Task",
		Description: "You've updated a task! Modifying your tasks helps you stay on top of your work.",
		Requirement: "Update at least one task.",
	},
	{
		ID:          FirstDelete,
		Title:       "Delete a Task",
		Description: "You've removed a task from your list. Organization is key to better task management.",
		Requirement: "Delete a todo item.",
	},
	{
		ID:          AllCompleted,
		Title:       "Complete All Tasks",
		Description: "All tasks are completed! You've successfully finished your day of work.",
		Requirement: "Complete all tasks in your list.",
	},
}

// Event is a user action that may unlock achievements.
type Event int

const (
	Created Event = iota
	Completed
	Reopened
	Renamed
	Deleted
)

// Tracker records events and unlocks achievements.
type Tracker struct {
	mu          sync.Mutex
	unlocked    map[ID]time.Time
	completions int
	now         func() time.Time
}

// NewTracker creates a Tracker with nothing unlocked.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{unlocked: make(map[ID]time.Time), now: now}
}

// Record registers ev. todos is the todo set after the event.
// It returns the achievements unlocked by this event.
func (t *Tracker) Record(ev Event, todos []service.Todo) []Achievement {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []ID
	switch ev {
	case Created:
		ids = append(ids, FirstTask)
	case Completed:
		t.completions++
		ids = append(ids, FirstCompletion)
		if t.completions >= 5 {
			ids = append(ids, FiveCompletions)
		}
		if allCompleted(todos) {
			ids = append(ids, AllCompleted)
		}
	case Renamed:
		ids = append(ids, FirstUpdate)
	case Deleted:
		ids = append(ids, FirstDelete)
	}

	var out []Achievement
	for _, id := range ids {
		if _, ok := t.unlocked[id]; ok {
			continue
		}
		at := t.now()
		t.unlocked[id] = at
		a := lookup(id)
		a.UnlockedAt = at
		out = append(out, a)
	}
	return out
}

// Completions returns the number of completion events recorded.
func (t *Tracker) Completions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completions
}

// Unlocked returns the unlocked achievements in catalog order.
func (t *Tracker) Unlocked() []Achievement {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Achievement
	for _, a := range Catalog {
		if at, ok := t.unlocked[a.ID]; ok {
			a.UnlockedAt = at
			out = append(out, a)
		}
	}
	return out
}

func lookup(id ID) Achievement {
	for _, a := range Catalog {
		if a.ID == id {
			return a
		}
	}
	return Achievement{ID: id}
}

func allCompleted(todos []service.Todo) bool {
	if len(todos) == 0 {
		return false
	}
	for _, t := range todos {
		if !t.Completed {
			return false
		}
	}
	return true
}
