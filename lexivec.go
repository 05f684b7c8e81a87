package lexivec

import (
	"context"
	"fmt"

	"github.com/lexivec/lexivec/pkg/core"
)

// Config holds the facade-level store configuration.
type Config struct {
	// Path is the SQLite database file path.
	Path string

	// Table is the logical table name, "documents" by default.
	Table string

	// Dimensions is the embedding dimensionality. Required for vector and
	// hybrid modes.
	Dimensions int

	// Mode selects which shadow indexes the store maintains. Defaults to
	// hybrid.
	Mode core.Mode
}

// Option is a functional option for configuring the DB.
type Option func(*core.Config)

// WithEmbedder sets the store's embedding collaborator.
func WithEmbedder(e core.Embedder) Option {
	return func(c *core.Config) {
		c.Embedder = e
	}
}

// WithLLM sets the keyword-extraction model used by hybrid search to
// rewrite queries into lexical form.
func WithLLM(l core.LLM) Option {
	return func(c *core.Config) {
		c.LLM = l
	}
}

// WithLogger sets the store logger.
func WithLogger(l core.Logger) Option {
	return func(c *core.Config) {
		c.Logger = l
	}
}

// WithMetrics enables operation metrics.
func WithMetrics(m *core.Metrics) Option {
	return func(c *core.Config) {
		c.Metrics = m
	}
}

// WithBatchSize bounds how many texts go to the embedding collaborator per
// request.
func WithBatchSize(n int) Option {
	return func(c *core.Config) {
		c.BatchSize = n
	}
}

// DB is a hybrid document store instance.
type DB struct {
	store *core.Store
}

// Open creates the store, initializes its schema and returns a ready DB.
func Open(config Config, opts ...Option) (*DB, error) {
	coreConfig := core.DefaultConfig(config.Path)
	coreConfig.Table = config.Table
	coreConfig.VectorDim = config.Dimensions
	coreConfig.Mode = config.Mode
	if config.Table == "" {
		coreConfig.Table = "documents"
	}

	for _, opt := range opts {
		opt(&coreConfig)
	}

	store, err := core.NewWithConfig(coreConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return &DB{store: store}, nil
}

// Store returns the underlying core store.
func (db *DB) Store() *core.Store {
	return db.store
}

// Close closes the database.
func (db *DB) Close() error {
	return db.store.Close()
}

// AddDocuments inserts the documents as one atomic batch and returns the
// assigned identifiers in input order.
func (db *DB) AddDocuments(ctx context.Context, docs []core.Document, opt *core.Options) ([]int64, error) {
	return db.store.AddDocuments(ctx, docs, opt)
}

// AddTexts inserts plain texts, all sharing the given metadata.
func (db *DB) AddTexts(ctx context.Context, texts []string, metadata map[string]any) ([]int64, error) {
	docs := make([]core.Document, len(texts))
	for i, text := range texts {
		docs[i] = core.Document{PageContent: text, Metadata: metadata}
	}
	return db.store.AddDocuments(ctx, docs, nil)
}

// SimilaritySearch returns up to limit documents by vector relevance.
func (db *DB) SimilaritySearch(ctx context.Context, query string, limit int, opt *core.Options) ([]core.SearchResult, error) {
	return db.store.SimilaritySearch(ctx, query, limit, opt)
}

// KeywordSearch returns up to limit documents by lexical (BM25) relevance.
func (db *DB) KeywordSearch(ctx context.Context, query string, limit int, opt *core.Options) ([]core.SearchResult, error) {
	return db.store.KeywordSearch(ctx, query, limit, opt)
}

// HybridSearch fuses the vector and lexical paths with reciprocal rank
// fusion.
func (db *DB) HybridSearch(ctx context.Context, query string, limit int, opt *core.Options) ([]core.SearchResult, error) {
	return db.store.HybridSearch(ctx, query, limit, opt)
}

// DeleteByIDs removes documents by identifier. Deleting a non-existent
// identifier is a no-op success.
func (db *DB) DeleteByIDs(ctx context.Context, ids []int64) error {
	return db.store.DeleteByIDs(ctx, ids)
}

// DeleteByFilter removes documents whose metadata matches the predicate.
func (db *DB) DeleteByFilter(ctx context.Context, filter core.Filter) error {
	return db.store.DeleteByFilter(ctx, filter)
}

// DeleteAll clears the store.
func (db *DB) DeleteAll(ctx context.Context) error {
	return db.store.DeleteAll(ctx)
}
