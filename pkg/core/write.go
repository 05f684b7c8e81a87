package core

import (
	"context"
	"fmt"
	"time"

	"github.com/lexivec/lexivec/internal/encoding"
)

// AddDocuments embeds and inserts the given documents as one atomic batch
// and returns the assigned row identifiers in input order. Embedding happens
// before the store lock is taken; a failure anywhere in the batch leaves the
// store unchanged. Insert triggers propagate each row into the shadow
// indexes inside the same transaction.
func (s *Store) AddDocuments(ctx context.Context, docs []Document, opt *Options) (ids []int64, err error) {
	start := time.Now()
	defer func() { s.config.Metrics.observe("add_documents", start, err) }()

	if len(docs) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	if s.config.Mode.hasVector() {
		vectors, err = s.embedDocuments(ctx, docs, opt)
		if err != nil {
			return nil, err
		}
	}

	// Serialize rows before taking the lock; only the transaction itself
	// runs under it.
	texts := make([]string, len(docs))
	metadatas := make([]string, len(docs))
	blobs := make([][]byte, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent

		metadatas[i], err = encoding.EncodeMetadata(doc.Metadata)
		if err != nil {
			return nil, wrapError("add_documents", err)
		}

		if vectors != nil {
			blobs[i], err = encoding.EncodeVector(vectors[i])
			if err != nil {
				return nil, wrapError("add_documents", err)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.checkOpen("add_documents"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError("add_documents", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (text, metadata, text_embedding) VALUES (?, ?, ?) RETURNING rowid",
		s.config.Table,
	)
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return nil, storageError("add_documents", err)
	}
	defer func() { _ = stmt.Close() }()

	ids = make([]int64, 0, len(docs))
	for i := range docs {
		var blob any
		if blobs[i] != nil {
			blob = blobs[i]
		}

		var id int64
		if err = stmt.QueryRowContext(ctx, texts[i], metadatas[i], blob).Scan(&id); err != nil {
			return nil, storageError("add_documents", fmt.Errorf("insert %d of %d: %w", i+1, len(docs), err))
		}
		ids = append(ids, id)
	}

	if err = tx.Commit(); err != nil {
		return nil, storageError("add_documents", err)
	}

	s.logger.Debug("documents added", "count", len(ids), "table", s.config.Table)
	return ids, nil
}

// embedDocuments batches page content to the embedding collaborator in
// chunks of BatchSize and validates count and dimensionality of the result.
func (s *Store) embedDocuments(ctx context.Context, docs []Document, opt *Options) ([][]float32, error) {
	embedder := opt.embedder(s.config.Embedder)
	if embedder == nil {
		return nil, wrapError("add_documents", fmt.Errorf("%w: no embedder configured", ErrEmbedding))
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := embedder.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, wrapError("add_documents", fmt.Errorf("%w: %v", ErrEmbedding, err))
		}
		vectors = append(vectors, batch...)
	}

	if len(vectors) != len(docs) {
		return nil, wrapError("add_documents", fmt.Errorf("%w: got %d vectors for %d documents",
			ErrEmbedding, len(vectors), len(docs)))
	}
	for i, vec := range vectors {
		if err := encoding.ValidateVector(vec); err != nil {
			return nil, wrapError("add_documents", fmt.Errorf("%w: document %d: %v", ErrEmbedding, i, err))
		}
		if len(vec) != s.config.VectorDim {
			return nil, wrapError("add_documents", fmt.Errorf("%w: document %d has dimension %d, store configured for %d",
				ErrEmbedding, i, len(vec), s.config.VectorDim))
		}
	}
	return vectors, nil
}
