// Package embedding provides embedding collaborators for the document
// store: an OpenAI-backed implementation and a retry decorator for
// transient network failures.
package embedding

import (
	"context"
	"errors"
)

// Embedder converts text into fixed-dimension float vectors. Implementations
// may be slow and fallible (network) and must preserve input order.
type Embedder interface {
	// EmbedDocuments returns one vector per input text, in input order. It
	// fails as a batch on any sub-failure.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Errors related to embedding operations
var (
	// ErrEmptyInput is returned when there is nothing to embed.
	ErrEmptyInput = errors.New("embedding: empty input")

	// ErrBadResponse is returned when the provider answers with the wrong
	// number of vectors.
	ErrBadResponse = errors.New("embedding: provider returned wrong vector count")
)
