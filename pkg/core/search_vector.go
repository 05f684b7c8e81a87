package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lexivec/lexivec/internal/encoding"
)

// candidate is a coarse-set row shared by the query paths. raw holds the
// engine statistic (L2 distance or bm25), score the normalized relevance.
type candidate struct {
	id       int64
	content  string
	metadata map[string]any
	raw      float64
	score    float64
}

// SimilaritySearch embeds the query and returns up to limit documents
// ordered by descending vector relevance. The score is 1/(1+distance),
// bounded to (0,1]. Duplicate (content, metadata) pairs are collapsed.
func (s *Store) SimilaritySearch(ctx context.Context, query string, limit int, opt *Options) (results []SearchResult, err error) {
	start := time.Now()
	defer func() { s.config.Metrics.observe("similarity_search", start, err) }()

	if err = s.requireVector("similarity_search"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	vec, err := s.embedQuery(ctx, query, opt)
	if err != nil {
		return nil, err
	}

	candidates, err := s.vectorCandidates(ctx, vec, limit*s.config.OverFetch, opt.filter())
	if err != nil {
		return nil, err
	}

	results = finalizeCandidates(candidates, limit)
	return results, nil
}

// vectorCandidates runs the k-NN query against the vector shadow index,
// restricted by the compiled filter, ordered by ascending distance.
func (s *Store) vectorCandidates(ctx context.Context, vec []float32, fetch int, filter Filter) ([]candidate, error) {
	clause, args, err := compileFilter(filter, "e")
	if err != nil {
		return nil, wrapError("similarity_search", err)
	}

	blob, err := encoding.EncodeVector(vec)
	if err != nil {
		return nil, wrapError("similarity_search", err)
	}

	query := fmt.Sprintf(`SELECT
			e.rowid,
			e.text,
			e.metadata,
			vec_l2(v.text_embedding, ?) AS distance
		FROM %s e
		INNER JOIN %s v ON v.rowid = e.rowid
		WHERE %s
		ORDER BY distance
		LIMIT ?`, s.config.Table, s.vecTable(), clause)

	queryArgs := make([]any, 0, len(args)+2)
	queryArgs = append(queryArgs, blob)
	queryArgs = append(queryArgs, args...)
	queryArgs = append(queryArgs, fetch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("similarity_search"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, storageError("similarity_search", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []candidate
	for rows.Next() {
		var c candidate
		var metadataJSON string
		if err := rows.Scan(&c.id, &c.content, &metadataJSON, &c.raw); err != nil {
			return nil, storageError("similarity_search", err)
		}
		c.metadata, err = encoding.DecodeMetadata(metadataJSON)
		if err != nil {
			s.logger.Warn("skipping row with malformed metadata", "rowid", c.id, "error", err)
			continue
		}
		c.score = 1.0 / (1.0 + c.raw)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("similarity_search", err)
	}
	return candidates, nil
}

// embedQuery runs the embedding collaborator for a query string, outside the
// store lock.
func (s *Store) embedQuery(ctx context.Context, query string, opt *Options) ([]float32, error) {
	embedder := opt.embedder(s.config.Embedder)
	if embedder == nil {
		return nil, wrapError("similarity_search", fmt.Errorf("%w: no embedder configured", ErrEmbedding))
	}

	vec, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, wrapError("similarity_search", fmt.Errorf("%w: %v", ErrEmbedding, err))
	}
	if len(vec) != s.config.VectorDim {
		return nil, wrapError("similarity_search", fmt.Errorf("%w: query vector has dimension %d, store configured for %d",
			ErrEmbedding, len(vec), s.config.VectorDim))
	}
	return vec, nil
}

// finalizeCandidates deduplicates by (content, metadata) identity, re-sorts
// by descending score and truncates to limit.
func finalizeCandidates(candidates []candidate, limit int) []SearchResult {
	seen := make(map[string]struct{}, len(candidates))
	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		key := c.content + "\x00" + encoding.CanonicalMetadata(c.metadata)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		results = append(results, SearchResult{
			ID:          c.id,
			PageContent: c.content,
			Metadata:    c.metadata,
			Score:       c.score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
