// Package app wires configuration into a ready-to-use todo store.
package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"todosync/internal/auth"
	"todosync/internal/backend/googletasks"
	"todosync/internal/backend/rest"
	"todosync/internal/config"
	"todosync/internal/kv"
	"todosync/internal/logging"
	"todosync/internal/order"
	"todosync/internal/service"
	"todosync/internal/store"
)

// AuthProvider returns the user id source for cfg: the stored login token,
// falling back to the configured user_id.
func AuthProvider(cfg *config.Config) service.AuthProvider {
	return &auth.TokenProvider{
		TokenPath: cfg.TokenPath(),
		Fallback:  cfg.Settings.UserID,
	}
}

// Logger builds the logger for cfg.
func Logger(cfg *config.Config) *log.Logger {
	return logging.FromSettings(cfg.Settings.LogLevel, cfg.Settings.LogFormat, cfg.Debug)
}

// Preflight reports missing credentials before any network call.
func Preflight(cfg *config.Config) error {
	switch cfg.Settings.Backend {
	case config.BackendGoogleTasks:
		if !cfg.HasOAuthClient() {
			return &service.Error{Kind: service.KindUnauthenticated, Message: fmt.Sprintf("%s not found in %s", config.OAuthClientFile, cfg.Dir)}
		}
		if !cfg.HasToken() {
			return &service.Error{Kind: service.KindUnauthenticated, Message: "not logged in (run: todosync login)"}
		}
	default:
		if !cfg.HasToken() && cfg.Settings.UserID == "" {
			return &service.Error{Kind: service.KindUnauthenticated, Message: "not logged in (run: todosync login, or set user_id)"}
		}
	}
	return nil
}

// NewAPI creates the remote client of the configured backend.
func NewAPI(ctx context.Context, cfg *config.Config, provider service.AuthProvider, logger *log.Logger) (service.TodoAPI, error) {
	hc := auth.HTTPClient(ctx, cfg.OAuthClientPath(), cfg.TokenPath(), cfg.Settings.Timeout())

	switch cfg.Settings.Backend {
	case config.BackendGoogleTasks:
		return googletasks.New(ctx, hc, googletasks.Options{
			ListID: cfg.Settings.TaskList,
			Auth:   provider,
			Logger: logger,
		})
	case config.BackendREST, "":
		return rest.New(cfg.Settings.APIURL, provider, rest.Options{
			HTTPClient: hc,
			Timeout:    cfg.Settings.Timeout(),
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Settings.Backend)
	}
}

// OpenOrder opens the persisted todo order of cfg.
func OpenOrder(cfg *config.Config, logger *log.Logger) (*order.Store, error) {
	if err := cfg.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	kvs, err := kv.Open(kv.Backend(cfg.Settings.OrderStore), cfg.OrderPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open order store: %w", err)
	}
	return order.New(kvs, logger), nil
}

// NewStore builds a store from cfg. notifier may be nil.
func NewStore(ctx context.Context, cfg *config.Config, notifier store.Notifier) (*store.Store, error) {
	if err := Preflight(cfg); err != nil {
		return nil, err
	}
	logger := Logger(cfg)
	provider := AuthProvider(cfg)

	api, err := NewAPI(ctx, cfg, provider, logger)
	if err != nil {
		return nil, err
	}
	orders, err := OpenOrder(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("store ready", "backend", cfg.Settings.Backend, "order_store", cfg.Settings.OrderStore)

	return store.New(api, orders, store.Options{
		Debounce: cfg.Settings.Debounce(),
		Auth:     provider,
		Notifier: notifier,
		Logger:   logger,
	}), nil
}
