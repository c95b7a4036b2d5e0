// Package rest implements service.TodoAPI against the todo REST service.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/api/googleapi"

	"todosync/internal/logging"
	"todosync/internal/service"
)

// APITimeout is the default timeout for API calls.
const APITimeout = 5 * time.Second

// Options configures a Client.
type Options struct {
	// HTTPClient performs requests. Defaults to a plain client.
	HTTPClient *http.Client
	// Timeout bounds each call. Defaults to APITimeout.
	Timeout time.Duration
	Now     func() time.Time
	Logger  *log.Logger
}

// Client talks to GET/POST /todos and PUT/DELETE /todos/{id}.
type Client struct {
	base    *url.URL
	http    *http.Client
	auth    service.AuthProvider
	timeout time.Duration
	now     func() time.Time
	logger  *log.Logger
}

// New creates a REST client for the service at baseURL.
func New(baseURL string, auth service.AuthProvider, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", baseURL)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = APITimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{
		base:    u,
		http:    opts.HTTPClient,
		auth:    auth,
		timeout: opts.Timeout,
		now:     opts.Now,
		logger:  logging.OrDiscard(opts.Logger).WithPrefix("rest"),
	}, nil
}

// createBody is the POST /todos payload.
type createBody struct {
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedBy string    `json:"createdBy"`
	UpdatedBy string    `json:"updatedBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// updateBody is the PUT /todos/{id} payload.
type updateBody struct {
	Title     *string   `json:"title,omitempty"`
	Completed *bool     `json:"completed,omitempty"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// List implements service.TodoAPI. A 404 reads as no todos.
func (c *Client) List(ctx context.Context, filter service.Filter) ([]service.Todo, error) {
	userID := filter.CreatedBy
	if userID == "" {
		id, err := c.auth.CurrentUserID(ctx)
		if err != nil {
			return nil, err
		}
		userID = id
	}

	q := url.Values{"createdBy": {userID}}
	var todos []service.Todo
	err := c.do(ctx, "list", "", http.MethodGet, "/todos?"+q.Encode(), nil, &todos)
	if errors.Is(err, service.ErrNotFound) {
		c.logger.Debug("list not found, treating as empty", "user", userID)
		return []service.Todo{}, nil
	}
	if err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []service.Todo{}
	}
	return todos, nil
}

// Create implements service.TodoAPI.
func (c *Client) Create(ctx context.Context, todo service.Todo) (service.Todo, error) {
	userID, err := c.auth.CurrentUserID(ctx)
	if err != nil {
		return service.Todo{}, err
	}
	now := c.now().UTC()
	body := createBody{
		Title:     todo.Title,
		Completed: todo.Completed,
		CreatedBy: userID,
		UpdatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var out service.Todo
	if err := c.do(ctx, "create", "", http.MethodPost, "/todos", body, &out); err != nil {
		return service.Todo{}, err
	}
	return out, nil
}

// Update implements service.TodoAPI.
func (c *Client) Update(ctx context.Context, id string, patch service.Patch) (service.Todo, error) {
	userID, err := c.auth.CurrentUserID(ctx)
	if err != nil {
		return service.Todo{}, err
	}
	body := updateBody{
		Title:     patch.Title,
		Completed: patch.Completed,
		UpdatedBy: userID,
		UpdatedAt: c.now().UTC(),
	}
	var out service.Todo
	if err := c.do(ctx, "update", id, http.MethodPut, "/todos/"+url.PathEscape(id), body, &out); err != nil {
		return service.Todo{}, err
	}
	return out, nil
}

// Remove implements service.TodoAPI.
func (c *Client) Remove(ctx context.Context, id string) (string, error) {
	if _, err := c.auth.CurrentUserID(ctx); err != nil {
		return "", err
	}
	if err := c.do(ctx, "delete", id, http.MethodDelete, "/todos/"+url.PathEscape(id), nil, nil); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) do(ctx context.Context, op, id, method, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &service.Error{Kind: service.KindRequestError, Op: op, ID: id, Message: "Error in setting up the request", Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return &service.Error{Kind: service.KindRequestError, Op: op, ID: id, Message: "Error in setting up the request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("request", "method", method, "path", path)
	res, err := c.http.Do(req)
	if err != nil {
		return &service.Error{Kind: service.KindNetworkError, Op: op, ID: id, Message: service.ErrNetwork.Error(), Err: err}
	}
	defer res.Body.Close()

	if err := googleapi.CheckResponse(res); err != nil {
		return classify(op, id, err)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &service.Error{Kind: service.KindServerError, Op: op, ID: id, Status: res.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}

// classify maps a non-2xx response to a typed error. The server's
// {"message": ...} body wins over the generic status text.
func classify(op, id string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &service.Error{Kind: service.KindServerError, Op: op, ID: id, Err: err}
	}

	e := &service.Error{Op: op, ID: id, Status: gerr.Code, Err: err}
	switch {
	case gerr.Code == http.StatusUnauthorized:
		e.Kind = service.KindUnauthorized
		e.Message = "Unauthorized access (401). Please log in."
	case gerr.Code == http.StatusForbidden:
		e.Kind = service.KindUnauthorized
		e.Message = "Forbidden access (403). You do not have permission to access this resource."
	case gerr.Code == http.StatusNotFound:
		e.Kind = service.KindNotFound
		e.Message = "Resource not found (404). Please check the URL or provided parameters."
	case gerr.Code >= 500:
		e.Kind = service.KindServerError
		e.Message = "Internal server error (500). Please try again later."
	default:
		e.Kind = service.KindRequestError
		e.Message = fmt.Sprintf("Unexpected error occurred (HTTP %d).", gerr.Code)
	}
	if msg := serverMessage(gerr); msg != "" {
		e.Message = msg
	}
	return e
}

func serverMessage(gerr *googleapi.Error) string {
	if gerr.Message != "" {
		return gerr.Message
	}
	body := strings.TrimSpace(gerr.Body)
	if body == "" {
		return ""
	}
	var reply struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &reply); err == nil {
		return reply.Message
	}
	if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "<") {
		return ""
	}
	return body
}
