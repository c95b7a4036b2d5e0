// Package exitcode defines exit codes for the CLI.
package exitcode

import (
	"context"
	"errors"

	"todosync/internal/service"
)

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, validation, not found).
	UserError = 1

	// AuthError indicates an auth/config error.
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3
)

// FromError maps a failure to an exit code. nil maps to Success.
func FromError(err error) int {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrNotFound):
		return UserError
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrUnauthorized):
		return AuthError
	case errors.Is(err, context.Canceled):
		return UserError
	default:
		return BackendError
	}
}
