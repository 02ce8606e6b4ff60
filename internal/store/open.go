package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

type Options struct {
	URL              string
	MongoDatabase    string
	Migrate          bool
	FallbackToMemory bool
}

// Open picks a backend from the URL scheme. An empty URL or the memory scheme
// gives a MemoryStore. When the configured backend cannot be reached and
// FallbackToMemory is set, the error is logged and a MemoryStore is returned.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw := strings.TrimSpace(opts.URL)
	if raw == "" {
		logger.Info("store.open", "backend", "memory")
		return NewMemoryStore(), nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	var (
		backend Store
		openErr error
	)
	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "memory", "mem", "inmem":
		logger.Info("store.open", "backend", "memory")
		return NewMemoryStore(), nil
	case "mongodb", "mongodb+srv":
		backend, openErr = OpenMongo(ctx, raw, opts.MongoDatabase)
	case "postgres", "postgresql":
		backend, openErr = openPostgresStore(ctx, raw, opts.Migrate)
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", parsed.Scheme)
	}
	if openErr != nil {
		if !opts.FallbackToMemory {
			return nil, openErr
		}
		logger.Warn("store.open.fallback", "backend", scheme, "error", openErr)
		return NewMemoryStore(), nil
	}
	logger.Info("store.open", "backend", scheme)
	return backend, nil
}

func openPostgresStore(ctx context.Context, databaseURL string, migrate bool) (*PostgresStore, error) {
	db, err := OpenPostgres(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := ApplyMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return NewPostgresStore(db), nil
}
