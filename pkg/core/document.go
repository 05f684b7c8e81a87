package core

import "context"

// Document is the unit of ingest: page content plus free-form metadata.
// Documents are immutable once inserted; an update is a delete followed by a
// reinsert.
type Document struct {
	PageContent string
	Metadata    map[string]any
}

// SearchResult is produced by the query path and never persisted. Score is
// in (0, 1] for vector search, (0, 1) for keyword search, and the RRF
// combined score for hybrid search. For hybrid results the metadata carries
// the per-path sub-scores under "vec_score" and "bm25_score".
type SearchResult struct {
	ID          int64
	PageContent string
	Metadata    map[string]any
	Score       float64
}

// Filter is a metadata predicate: scalar values compile to equality tests,
// slice values to membership tests, keys are conjoined with AND. An empty
// filter matches everything. OR, negation and range operators are
// intentionally not supported.
type Filter map[string]any

// Embedder converts text to fixed-dimension vectors. Both methods may be
// slow and fallible (network); neither is called while the store lock is
// held.
type Embedder interface {
	// EmbedDocuments returns one vector per input text, in input order.
	// It fails as a batch: no partial results.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// LLM rewrites a natural-language query into keyword form for the lexical
// path of hybrid search. It is best-effort: any failure degrades to the raw
// query text.
type LLM interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Options carries per-call settings for write and query operations.
type Options struct {
	// Filter restricts the operation to rows whose metadata matches.
	Filter Filter

	// Embedder overrides the store's embedding collaborator for this call.
	Embedder Embedder
}

func (o *Options) filter() Filter {
	if o == nil {
		return nil
	}
	return o.Filter
}

func (o *Options) embedder(fallback Embedder) Embedder {
	if o != nil && o.Embedder != nil {
		return o.Embedder
	}
	return fallback
}
