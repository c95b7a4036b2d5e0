package reorder

import "todosync/internal/order"

// Position is the half of a drop zone the dragged item was released on.
type Position int

const (
	// Before inserts ahead of the target (top half).
	Before Position = iota
	// After inserts behind the target (bottom half).
	After
)

func (p Position) String() string {
	if p == After {
		return "after"
	}
	return "before"
}

// DropTarget identifies where a dragged item was released.
type DropTarget struct {
	TargetID string
	Position Position
}

// Move returns list with activeID moved next to the target.
// The result is unchanged when activeID equals the target or either id is
// not in list. changed reports whether the order differs from list.
func Move(list order.List, activeID string, target DropTarget) (out order.List, changed bool) {
	if activeID == target.TargetID || !list.Contains(activeID) || !list.Contains(target.TargetID) {
		return list.Clone(), false
	}

	rest := make(order.List, 0, len(list))
	for _, id := range list {
		if id != activeID {
			rest = append(rest, id)
		}
	}
	at := rest.Index(target.TargetID)
	if target.Position == After {
		at++
	}

	out = make(order.List, 0, len(list))
	out = append(out, rest[:at]...)
	out = append(out, activeID)
	out = append(out, rest[at:]...)

	for i := range out {
		if out[i] != list[i] {
			return out, true
		}
	}
	return out, false
}

// StepTarget converts a keyboard move of delta slots into a drop target.
// ok is false when the step would not move the item.
func StepTarget(list order.List, activeID string, delta int) (DropTarget, bool) {
	i := list.Index(activeID)
	if i < 0 || delta == 0 {
		return DropTarget{}, false
	}
	j := i + delta
	if j < 0 {
		j = 0
	}
	if j > len(list)-1 {
		j = len(list) - 1
	}
	if j == i {
		return DropTarget{}, false
	}
	if j > i {
		return DropTarget{TargetID: list[j], Position: After}, true
	}
	return DropTarget{TargetID: list[j], Position: Before}, true
}
