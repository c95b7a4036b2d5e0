// Package googletasks implements service.TodoAPI on top of one Google Tasks list.
package googletasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"todosync/internal/logging"
	"todosync/internal/service"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// Client implements service.TodoAPI using Google Tasks API.
type Client struct {
	svc    *tasks.Service
	listID string
	auth   service.AuthProvider
	logger *log.Logger
}

// Options configures a Client.
type Options struct {
	// ListID is the task list holding the todos. Defaults to @default.
	ListID string
	// Auth, when set, supplies createdBy/updatedBy for returned records.
	Auth   service.AuthProvider
	Logger *log.Logger
}

// New creates a client. httpClient must carry the OAuth credentials.
func New(ctx context.Context, httpClient *http.Client, opts Options, extra ...option.ClientOption) (*Client, error) {
	copts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, extra...)
	svc, err := tasks.NewService(ctx, copts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	if opts.ListID == "" {
		opts.ListID = DefaultListID
	}
	return &Client{
		svc:    svc,
		listID: opts.ListID,
		auth:   opts.Auth,
		logger: logging.OrDiscard(opts.Logger).WithPrefix("googletasks"),
	}, nil
}

// NewWithHTTPClient creates a client talking to endpoint (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint string, opts Options) (*Client, error) {
	return New(ctx, httpClient, opts, option.WithEndpoint(endpoint))
}

func (c *Client) userID(ctx context.Context) string {
	if c.auth == nil {
		return ""
	}
	id, err := c.auth.CurrentUserID(ctx)
	if err != nil {
		return ""
	}
	return id
}

func (c *Client) toTodo(t *tasks.Task, user string) service.Todo {
	todo := service.Todo{
		ID:        t.Id,
		Title:     t.Title,
		Completed: t.Status == statusCompleted,
		CreatedBy: user,
		UpdatedBy: user,
	}
	if updated, err := time.Parse(time.RFC3339, t.Updated); err == nil {
		todo.UpdatedAt = &updated
		created := updated
		todo.CreatedAt = &created
	}
	return todo
}

func status(completed bool) string {
	if completed {
		return statusCompleted
	}
	return statusNeedsAction
}

// List implements service.TodoAPI. Tasks of the list are returned in API
// order, completed and hidden ones included. A missing list reads as empty.
func (c *Client) List(ctx context.Context, filter service.Filter) ([]service.Todo, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	user := filter.CreatedBy
	if user == "" {
		user = c.userID(ctx)
	}

	result := []service.Todo{}
	err := c.svc.Tasks.List(c.listID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, t := range resp.Items {
				result = append(result, c.toTodo(t, user))
			}
			return nil
		})
	if err != nil {
		werr := wrapError("list", "", err)
		if errors.Is(werr, service.ErrNotFound) {
			return []service.Todo{}, nil
		}
		return nil, werr
	}
	c.logger.Debug("listed", "list", c.listID, "count", len(result))
	return result, nil
}

// Create implements service.TodoAPI.
func (c *Client) Create(ctx context.Context, todo service.Todo) (service.Todo, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	created, err := c.svc.Tasks.Insert(c.listID, &tasks.Task{
		Title:  todo.Title,
		Status: status(todo.Completed),
	}).Context(ctx).Do()
	if err != nil {
		return service.Todo{}, wrapError("create", "", err)
	}
	return c.toTodo(created, c.userID(ctx)), nil
}

// Update implements service.TodoAPI.
func (c *Client) Update(ctx context.Context, id string, patch service.Patch) (service.Todo, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	t := &tasks.Task{}
	if patch.Title != nil {
		t.Title = *patch.Title
		t.ForceSendFields = append(t.ForceSendFields, "Title")
	}
	if patch.Completed != nil {
		t.Status = status(*patch.Completed)
		if !*patch.Completed {
			// Reopening clears the completion date.
			t.NullFields = append(t.NullFields, "Completed")
		}
	}

	updated, err := c.svc.Tasks.Patch(c.listID, id, t).Context(ctx).Do()
	if err != nil {
		return service.Todo{}, wrapError("update", id, err)
	}
	return c.toTodo(updated, c.userID(ctx)), nil
}

// Remove implements service.TodoAPI.
func (c *Client) Remove(ctx context.Context, id string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if err := c.svc.Tasks.Delete(c.listID, id).Context(ctx).Do(); err != nil {
		return "", wrapError("delete", id, err)
	}
	return id, nil
}

// wrapError maps API errors to typed errors with user-friendly messages.
func wrapError(op, id string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		e := &service.Error{Op: op, ID: id, Status: gerr.Code, Err: err, Message: gerr.Message}
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			e.Kind = service.KindUnauthorized
			e.Message = "token expired or revoked (run: todosync login)"
		case gerr.Code == http.StatusNotFound:
			e.Kind = service.KindNotFound
			if e.Message == "" {
				e.Message = "not found"
			}
		case gerr.Code >= 500:
			e.Kind = service.KindServerError
		default:
			e.Kind = service.KindRequestError
		}
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "context deadline exceeded") {
		return &service.Error{Kind: service.KindNetworkError, Op: op, ID: id, Message: "request timed out", Err: err}
	}
	return &service.Error{Kind: service.KindNetworkError, Op: op, ID: id, Message: service.ErrNetwork.Error(), Err: err}
}
