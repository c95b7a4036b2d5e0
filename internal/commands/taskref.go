package commands

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"

	"todosync/internal/service"
	"todosync/internal/store"
)

// ErrTaskRefRequired indicates no todo number was provided.
var ErrTaskRefRequired = errors.New("todo number required")

// ParseTaskRef parses a todo number from args[0].
// A todo number is the 1-based position in the displayed list.
func ParseTaskRef(args []string) (int, error) {
	if len(args) == 0 {
		return 0, ErrTaskRefRequired
	}
	return parseNumber(args[0])
}

func parseNumber(s string) (int, error) {
	if !isAllDigits(s) {
		return 0, fmt.Errorf("invalid todo number: %s", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid todo number: %s", s)
	}
	return n, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// todoAt returns the todo shown at position num.
func todoAt(st *store.Store, num int) (service.Todo, error) {
	todos := st.Todos()
	if num < 1 || num > len(todos) {
		return service.Todo{}, &service.Error{
			Kind:    service.KindNotFound,
			Message: fmt.Sprintf("todo number out of range: %d", num),
		}
	}
	return todos[num-1], nil
}
