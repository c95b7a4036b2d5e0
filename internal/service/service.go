package service

import "context"

// TodoAPI is the remote todo service contract.
// Commands and the store never import a backend SDK directly.
type TodoAPI interface {
	// List returns the todos matching filter. A NotFound response from the
	// remote side is reported as an empty slice.
	List(ctx context.Context, filter Filter) ([]Todo, error)

	// Create stores a new todo and returns the server's record.
	// createdBy/updatedBy and createdAt/updatedAt are stamped by the client.
	Create(ctx context.Context, todo Todo) (Todo, error)

	// Update applies a partial update and returns the server's record.
	Update(ctx context.Context, id string, patch Patch) (Todo, error)

	// Remove deletes a todo and returns its id.
	Remove(ctx context.Context, id string) (string, error)
}

// AuthProvider supplies the signed-in user.
type AuthProvider interface {
	// CurrentUserID returns the user id or an Unauthenticated error.
	CurrentUserID(ctx context.Context) (string, error)
}

// AuthFunc adapts a function to AuthProvider.
type AuthFunc func(ctx context.Context) (string, error)

// CurrentUserID implements AuthProvider.
func (f AuthFunc) CurrentUserID(ctx context.Context) (string, error) {
	return f(ctx)
}
