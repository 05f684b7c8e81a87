package core

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"testing"
)

// stubEmbedder returns the mapped vector for known texts and a deterministic
// one-hot vector for everything else. No network, no flakiness.
type stubEmbedder struct {
	dim     int
	vectors map[string][]float32
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.embed(text)
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return s.embed(text), nil
}

func (s *stubEmbedder) embed(text string) []float32 {
	if v, ok := s.vectors[text]; ok {
		return v
	}
	vec := make([]float32, s.dim)
	h := fnv.New32a()
	h.Write([]byte(text))
	vec[int(h.Sum32()%uint32(s.dim))] = 1
	return vec
}

// failingEmbedder fails every call.
type failingEmbedder struct{}

func (f *failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedder unavailable")
}

func (f *failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embedder unavailable")
}

// wrongDimEmbedder returns vectors of the wrong dimensionality.
type wrongDimEmbedder struct{ dim int }

func (w *wrongDimEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, w.dim)
	}
	return out, nil
}

func (w *wrongDimEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return make([]float32, w.dim), nil
}

func newTestStore(t *testing.T, mode Mode, embedder Embedder) *Store {
	t.Helper()

	config := DefaultConfig(filepath.Join(t.TempDir(), "store_test.db"))
	config.VectorDim = 3
	config.Mode = mode
	config.Embedder = embedder

	store, err := NewWithConfig(config)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// countRows counts the rows in one of the store's tables.
func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}
	return n
}

// rowIDs returns the set of row identifiers in one of the store's tables.
func rowIDs(t *testing.T, s *Store, table string) map[int64]bool {
	t.Helper()

	rows, err := s.db.Query("SELECT rowid FROM " + table)
	if err != nil {
		t.Fatalf("Failed to query %s: %v", table, err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("Failed to scan rowid: %v", err)
		}
		ids[id] = true
	}
	return ids
}

func TestAddDocumentsAndSimilaritySearch(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{
		dim: 3,
		vectors: map[string][]float32{
			"red":           {1, 0, 0},
			"green":         {0, 1, 0},
			"blue":          {0, 0, 1},
			"reddish query": {0.9, 0.1, 0},
		},
	}
	store := newTestStore(t, ModeHybrid, embedder)

	docs := []Document{
		{PageContent: "red", Metadata: map[string]any{"color": "warm"}},
		{PageContent: "green", Metadata: map[string]any{"color": "cool"}},
		{PageContent: "blue", Metadata: map[string]any{"color": "cool"}},
	}
	ids, err := store.AddDocuments(ctx, docs, nil)
	if err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("Expected 3 ids, got %d", len(ids))
	}

	results, err := store.SimilaritySearch(ctx, "reddish query", 2, nil)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].PageContent != "red" {
		t.Errorf("Expected 'red' first, got %q", results[0].PageContent)
	}
	for _, r := range results {
		if r.Score <= 0 || r.Score > 1 {
			t.Errorf("Score %v out of (0,1] for %q", r.Score, r.PageContent)
		}
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("Results not in descending score order: %v then %v", results[0].Score, results[1].Score)
	}
	if results[0].Metadata["color"] != "warm" {
		t.Errorf("Metadata not round-tripped: %v", results[0].Metadata)
	}
}

func TestAddDocumentsEmpty(t *testing.T) {
	store := newTestStore(t, ModeHybrid, &stubEmbedder{dim: 3})

	ids, err := store.AddDocuments(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("AddDocuments with no docs should succeed, got: %v", err)
	}
	if ids != nil {
		t.Errorf("Expected nil ids, got %v", ids)
	}
}

func TestAddDocumentsAtomicity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ModeHybrid, &failingEmbedder{})

	docs := []Document{
		{PageContent: "first"},
		{PageContent: "second"},
	}
	_, err := store.AddDocuments(ctx, docs, nil)
	if err == nil {
		t.Fatal("Expected error from failing embedder")
	}
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("Expected ErrEmbedding, got: %v", err)
	}

	// Nothing may have landed in any of the three structures.
	for _, table := range []string{store.config.Table, store.vecTable(), store.bm25Table()} {
		if n := countRows(t, store, table); n != 0 {
			t.Errorf("Table %s has %d rows after failed batch, want 0", table, n)
		}
	}
}

func TestAddDocumentsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ModeHybrid, &wrongDimEmbedder{dim: 5})

	_, err := store.AddDocuments(ctx, []Document{{PageContent: "text"}}, nil)
	if err == nil {
		t.Fatal("Expected error for wrong dimensionality")
	}
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("Expected ErrEmbedding, got: %v", err)
	}

	if n := countRows(t, store, store.config.Table); n != 0 {
		t.Errorf("Expected 0 rows after rejected batch, got %d", n)
	}
}

func TestOptionsEmbedderOverride(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ModeHybrid, &failingEmbedder{})

	// The per-call embedder takes precedence over the broken store default.
	opt := &Options{Embedder: &stubEmbedder{dim: 3}}
	ids, err := store.AddDocuments(ctx, []Document{{PageContent: "text"}}, opt)
	if err != nil {
		t.Fatalf("AddDocuments with override embedder failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("Expected 1 id, got %d", len(ids))
	}

	if _, err := store.SimilaritySearch(ctx, "text", 1, opt); err != nil {
		t.Errorf("SimilaritySearch with override embedder failed: %v", err)
	}
}

func TestSimilaritySearchWithFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ModeHybrid, &stubEmbedder{dim: 3})

	docs := []Document{
		{PageContent: "english doc", Metadata: map[string]any{"lang": "en"}},
		{PageContent: "german doc", Metadata: map[string]any{"lang": "de"}},
		{PageContent: "french doc", Metadata: map[string]any{"lang": "fr"}},
	}
	if _, err := store.AddDocuments(ctx, docs, nil); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}

	t.Run("scalar equality", func(t *testing.T) {
		results, err := store.SimilaritySearch(ctx, "doc", 10, &Options{Filter: Filter{"lang": "en"}})
		if err != nil {
			t.Fatalf("SimilaritySearch failed: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("Expected 1 result, got %d", len(results))
		}
		if results[0].Metadata["lang"] != "en" {
			t.Errorf("Filter leaked lang=%v", results[0].Metadata["lang"])
		}
	})

	t.Run("membership", func(t *testing.T) {
		results, err := store.SimilaritySearch(ctx, "doc", 10, &Options{Filter: Filter{"lang": []any{"en", "fr"}}})
		if err != nil {
			t.Fatalf("SimilaritySearch failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 results, got %d", len(results))
		}
		for _, r := range results {
			if lang := r.Metadata["lang"]; lang != "en" && lang != "fr" {
				t.Errorf("Filter leaked lang=%v", lang)
			}
		}
	})

	t.Run("no match", func(t *testing.T) {
		results, err := store.SimilaritySearch(ctx, "doc", 10, &Options{Filter: Filter{"lang": "zz"}})
		if err != nil {
			t.Fatalf("SimilaritySearch failed: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("Expected 0 results, got %d", len(results))
		}
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := store.SimilaritySearch(ctx, "doc", 10, &Options{Filter: Filter{"nested": map[string]any{"a": 1}}})
		if !errors.Is(err, ErrFilter) {
			t.Errorf("Expected ErrFilter, got: %v", err)
		}
	})
}

func TestSimilaritySearchDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ModeHybrid, &stubEmbedder{dim: 3})

	// Two identical (content, metadata) pairs plus two distinct rows.
	docs := []Document{
		{PageContent: "duplicate", Metadata: map[string]any{"v": 1.0}},
		{PageContent: "duplicate", Metadata: map[string]any{"v": 1.0}},
		{PageContent: "duplicate", Metadata: map[string]any{"v": 2.0}},
		{PageContent: "unique"},
	}
	if _, err := store.AddDocuments(ctx, docs, nil); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}

	results, err := store.SimilaritySearch(ctx, "duplicate", 10, nil)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 deduplicated results, got %d", len(results))
	}

	seen := make(map[string]int)
	for _, r := range results {
		seen[fmt.Sprintf("%s|%v", r.PageContent, r.Metadata["v"])]++
	}
	for key, n := range seen {
		if n > 1 {
			t.Errorf("Pair %s appears %d times", key, n)
		}
	}
}

func TestModeRestrictions(t *testing.T) {
	ctx := context.Background()

	t.Run("vector store rejects lexical search", func(t *testing.T) {
		store := newTestStore(t, ModeVector, &stubEmbedder{dim: 3})
		if _, err := store.KeywordSearch(ctx, "query", 5, nil); !errors.Is(err, ErrUnsupportedMode) {
			t.Errorf("Expected ErrUnsupportedMode, got: %v", err)
		}
		if _, err := store.HybridSearch(ctx, "query", 5, nil); !errors.Is(err, ErrUnsupportedMode) {
			t.Errorf("Expected ErrUnsupportedMode, got: %v", err)
		}
	})

	t.Run("lexical store needs no embedder", func(t *testing.T) {
		store := newTestStore(t, ModeLexical, nil)
		if _, err := store.AddDocuments(ctx, []Document{{PageContent: "no vectors here"}}, nil); err != nil {
			t.Fatalf("AddDocuments on lexical store failed: %v", err)
		}
		results, err := store.KeywordSearch(ctx, "vectors", 5, nil)
		if err != nil {
			t.Fatalf("KeywordSearch failed: %v", err)
		}
		if len(results) != 1 {
			t.Errorf("Expected 1 result, got %d", len(results))
		}
		if _, err := store.SimilaritySearch(ctx, "query", 5, nil); !errors.Is(err, ErrUnsupportedMode) {
			t.Errorf("Expected ErrUnsupportedMode, got: %v", err)
		}
	})
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, ModeLexical, nil)

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Close is idempotent.
	if err := store.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}

	if _, err := store.AddDocuments(ctx, []Document{{PageContent: "text"}}, nil); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Expected ErrStoreClosed, got: %v", err)
	}
	if _, err := store.KeywordSearch(ctx, "text", 5, nil); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Expected ErrStoreClosed, got: %v", err)
	}
	if err := store.DeleteAll(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Expected ErrStoreClosed, got: %v", err)
	}
}

func TestNewWithConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty path", func(c *Config) { c.Path = "" }},
		{"bad table name", func(c *Config) { c.Table = "docs; DROP TABLE docs" }},
		{"zero dimension in hybrid mode", func(c *Config) { c.VectorDim = 0 }},
		{"negative dimension", func(c *Config) { c.VectorDim = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig("validation_test.db")
			config.VectorDim = 3
			tt.modify(&config)

			if _, err := NewWithConfig(config); err == nil {
				t.Error("Expected configuration error")
			}
		})
	}

	// Lexical mode has no vectors, so no dimension is required.
	config := DefaultConfig("validation_test.db")
	config.Mode = ModeLexical
	if _, err := NewWithConfig(config); err != nil {
		t.Errorf("Lexical store without dimension should be valid, got: %v", err)
	}
}
