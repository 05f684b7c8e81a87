// Package core implements the hybrid document store: a SQLite-backed
// collection of text documents indexed simultaneously for dense vector
// similarity and sparse lexical (BM25) search, queryable independently or
// fused with reciprocal rank fusion.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store owns the single database handle. Every storage operation serializes
// on mu; network-bound collaborator calls (embedding, keyword extraction)
// always complete before the lock is taken so a slow remote call never
// blocks other store operations.
type Store struct {
	db     *sql.DB
	config Config
	mu     sync.Mutex
	closed bool
	logger Logger
}

// New creates a store at path with the given embedding dimensionality and
// default configuration.
func New(path string, vectorDim int) (*Store, error) {
	config := DefaultConfig(path)
	config.VectorDim = vectorDim
	return NewWithConfig(config)
}

// NewWithConfig creates a store with custom configuration. Call Init before
// use.
func NewWithConfig(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, wrapError("init", fmt.Errorf("database path cannot be empty"))
	}
	config.applyDefaults()

	if err := validateTableName(config.Table); err != nil {
		return nil, wrapError("init", err)
	}
	if config.Mode.hasVector() && config.VectorDim <= 0 {
		return nil, wrapError("init", fmt.Errorf("%w: vector dimension must be positive, got %d", ErrSchema, config.VectorDim))
	}

	return &Store{
		config: config,
		logger: config.Logger,
	}, nil
}

// Init opens the database and creates, idempotently, the primary table, the
// shadow indexes for the configured mode and the synchronization triggers
// between them. Safe to call repeatedly; fails with ErrSchema when a prior
// table was initialized with a different dimensionality or mode.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("init", ErrStoreClosed)
	}
	if s.db != nil {
		return s.createSchema(ctx)
	}

	registerVectorFunctions()

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", s.config.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return storageError("init", err)
	}

	// One physical connection: the serialized-handle assumption holds by
	// construction, and registered functions plus in-memory databases both
	// behave predictably.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	if err := s.createSchema(ctx); err != nil {
		return err
	}

	s.logger.Info("store initialized",
		"path", s.config.Path,
		"table", s.config.Table,
		"mode", s.config.Mode.String(),
		"dim", s.config.VectorDim,
	)
	return nil
}

// Close closes the database handle. Subsequent operations fail with
// ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return storageError("close", err)
		}
	}
	return nil
}

// checkOpen must be called with mu held.
func (s *Store) checkOpen(op string) error {
	if s.closed {
		return wrapError(op, ErrStoreClosed)
	}
	if s.db == nil {
		return wrapError(op, fmt.Errorf("store not initialized, call Init first"))
	}
	return nil
}

func (s *Store) requireVector(op string) error {
	if !s.config.Mode.hasVector() {
		return wrapError(op, fmt.Errorf("%w: %s store has no vector index", ErrUnsupportedMode, s.config.Mode))
	}
	return nil
}

func (s *Store) requireLexical(op string) error {
	if !s.config.Mode.hasLexical() {
		return wrapError(op, fmt.Errorf("%w: %s store has no lexical index", ErrUnsupportedMode, s.config.Mode))
	}
	return nil
}

// table name helpers; Table is validated at construction so these are safe
// to splice into SQL text.
func (s *Store) vecTable() string  { return "vec_" + s.config.Table }
func (s *Store) bm25Table() string { return "bm25_" + s.config.Table }
