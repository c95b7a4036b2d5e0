package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by cause.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthenticated
	KindUnauthorized
	KindNotFound
	KindServerError
	KindNetworkError
	KindRequestError
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not found"
	case KindServerError:
		return "server error"
	case KindNetworkError:
		return "network error"
	case KindRequestError:
		return "request error"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per Kind. Match with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrServer          = errors.New("server error")
	ErrNetwork         = errors.New("no response from the server")
	ErrRequest         = errors.New("bad request")
)

var kindSentinels = map[Kind]error{
	KindValidation:      ErrValidation,
	KindUnauthenticated: ErrUnauthenticated,
	KindUnauthorized:    ErrUnauthorized,
	KindNotFound:        ErrNotFound,
	KindServerError:     ErrServer,
	KindNetworkError:    ErrNetwork,
	KindRequestError:    ErrRequest,
}

// Error is the typed failure returned by the API clients and the core.
type Error struct {
	Kind    Kind
	Op      string // "list", "create", "update", "remove", "add", ...
	ID      string // todo id, when the operation targets one
	Status  int    // HTTP status, 0 when there was no response
	Message string // human-readable detail, usually from the server
	Err     error  // underlying cause
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		if e.Err != nil {
			msg = e.Err.Error()
		} else {
			msg = e.Kind.String()
		}
	}
	if e.Op == "" {
		return msg
	}
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.ID, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// Errorf builds an Error of the given kind.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ValidationError reports an invalid field before any effect took place.
func ValidationError(op, field, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf("%s %s", field, message)}
}
