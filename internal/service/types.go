// Package service defines the backend-agnostic todo model and API contract.
package service

import (
	"strings"
	"time"
)

// Todo is a single todo record as stored by the remote service.
type Todo struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Completed bool       `json:"completed"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	CreatedBy string     `json:"createdBy,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
}

// Clone returns a deep copy of t.
func (t Todo) Clone() Todo {
	out := t
	if t.CreatedAt != nil {
		v := *t.CreatedAt
		out.CreatedAt = &v
	}
	if t.UpdatedAt != nil {
		v := *t.UpdatedAt
		out.UpdatedAt = &v
	}
	return out
}

// Equal reports whether t and o carry the same field values.
func (t Todo) Equal(o Todo) bool {
	return t.ID == o.ID &&
		t.Title == o.Title &&
		t.Completed == o.Completed &&
		t.CreatedBy == o.CreatedBy &&
		t.UpdatedBy == o.UpdatedBy &&
		timeEqual(t.CreatedAt, o.CreatedAt) &&
		timeEqual(t.UpdatedAt, o.UpdatedAt)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// IsEmpty reports whether the patch carries no fields.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Completed == nil
}

// Merge returns p with the non-nil fields of later applied on top.
func (p Patch) Merge(later Patch) Patch {
	if later.Title != nil {
		p.Title = later.Title
	}
	if later.Completed != nil {
		p.Completed = later.Completed
	}
	return p
}

// ApplyTo returns t with the patch fields applied.
func (p Patch) ApplyTo(t Todo) Todo {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// TitlePatch builds a patch that only sets the title.
func TitlePatch(title string) Patch {
	return Patch{Title: &title}
}

// CompletedPatch builds a patch that only sets the completion flag.
func CompletedPatch(completed bool) Patch {
	return Patch{Completed: &completed}
}

// Filter narrows a List call. Zero value lists the current user's todos.
type Filter struct {
	CreatedBy string
}

// NormalizeTitle trims surrounding whitespace from a title.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}
