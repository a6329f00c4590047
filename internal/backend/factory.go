package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spendguard/internal/auth"
	"spendguard/internal/ledger/memory"
	"spendguard/internal/mongostore"
	"spendguard/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MongoBackend:
		return f.createMongoBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Backend, error) {
	store, err := storage.Open(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite ledger: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &Backend{
		Type:        SQLiteBackend,
		Store:       store,
		Revocations: store,
		Alerts:      store,
		Ping:        store.Ping,
		Cleanup:     store.Close,
	}, nil
}

func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (*Backend, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := mongostore.Connect(connectCtx, config.MongoURI, config.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB ledger: %w", err)
	}
	revocations, err := store.Revocations(connectCtx)
	if err != nil {
		_ = store.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize token revocations: %w", err)
	}

	f.logger.Info("Initialized MongoDB backend", "database", config.MongoDB)

	return &Backend{
		Type:        MongoBackend,
		Store:       store,
		Revocations: revocations,
		Alerts:      store,
		Ping:        store.Ping,
		Cleanup: func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return store.Close(closeCtx)
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*Backend, error) {
	store := memory.New()

	f.logger.Info("Initialized memory backend")

	return &Backend{
		Type:        MemoryBackend,
		Store:       store,
		Revocations: auth.NewMemoryRevocations(),
		Alerts:      store,
		Ping:        func(context.Context) error { return nil },
	}, nil
}
