package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const keywordPrompt = `Extract the most important search keywords from the following query.
Reply with the keywords only, separated by spaces, no punctuation and no explanation.

Query: %s`

// HybridSearch runs the vector and the lexical path for the same query and
// fuses both candidate sets with reciprocal rank fusion:
//
//	combined = 1/(K+vec_rank) + 1/(K+lex_rank)
//
// with K = Config.RRFSmoothing and a zero term for the path a candidate is
// absent from. Rank fusion is deliberately rank-based: a distance metric and
// a BM25 statistic have incompatible scales, ranks do not. Each path's
// normalized sub-score is exposed in the result metadata as vec_score and
// bm25_score.
//
// If a keyword-extraction LLM is configured, the lexical path first rewrites
// the query into keyword form; any failure there degrades to the raw query
// text and never fails the search.
func (s *Store) HybridSearch(ctx context.Context, query string, limit int, opt *Options) (results []SearchResult, err error) {
	start := time.Now()
	defer func() { s.config.Metrics.observe("hybrid_search", start, err) }()

	if err = s.requireVector("hybrid_search"); err != nil {
		return nil, err
	}
	if err = s.requireLexical("hybrid_search"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	// Both collaborator calls happen before any storage work.
	vec, err := s.embedQuery(ctx, query, opt)
	if err != nil {
		return nil, err
	}
	keywords := s.rewriteQuery(ctx, query)

	fetch := limit * s.config.OverFetch

	vecCands, err := s.vectorCandidates(ctx, vec, fetch, opt.filter())
	if err != nil {
		return nil, err
	}

	var lexCands []candidate
	if match := ftsMatchQuery(keywords); match != "" {
		lexCands, err = s.lexicalCandidates(ctx, match, fetch, opt.filter())
		if err != nil {
			return nil, err
		}
	}

	results = s.fuse(vecCands, lexCands, limit)
	return results, nil
}

type fusedCandidate struct {
	candidate
	combined  float64
	vecScore  float64
	lexScore  float64
	inVec     bool
	inLexical bool
}

// fuse joins both candidate sets on row identifier (full outer join: a
// candidate seen by only one path still participates) and orders by the
// combined RRF score, descending.
func (s *Store) fuse(vecCands, lexCands []candidate, limit int) []SearchResult {
	k := float64(s.config.RRFSmoothing)
	fusedByID := make(map[int64]*fusedCandidate, len(vecCands)+len(lexCands))

	for i, c := range vecCands {
		fusedByID[c.id] = &fusedCandidate{
			candidate: c,
			combined:  1.0 / (k + float64(i+1)),
			vecScore:  c.score,
			inVec:     true,
		}
	}
	for i, c := range lexCands {
		f, ok := fusedByID[c.id]
		if !ok {
			f = &fusedCandidate{candidate: c}
			fusedByID[c.id] = f
		}
		f.combined += 1.0 / (k + float64(i+1))
		f.lexScore = c.score
		f.inLexical = true
	}

	fused := make([]*fusedCandidate, 0, len(fusedByID))
	for _, f := range fusedByID {
		fused = append(fused, f)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].combined != fused[j].combined {
			return fused[i].combined > fused[j].combined
		}
		return fused[i].id < fused[j].id
	})
	if len(fused) > limit {
		fused = fused[:limit]
	}

	results := make([]SearchResult, 0, len(fused))
	for _, f := range fused {
		metadata := make(map[string]any, len(f.metadata)+2)
		for key, val := range f.metadata {
			metadata[key] = val
		}
		if f.inVec {
			metadata["vec_score"] = f.vecScore
		}
		if f.inLexical {
			metadata["bm25_score"] = f.lexScore
		}

		results = append(results, SearchResult{
			ID:          f.id,
			PageContent: f.content,
			Metadata:    metadata,
			Score:       f.combined,
		})
	}
	return results
}

// rewriteQuery asks the configured LLM for a keyword form of the query.
// Best-effort: no LLM, an error or an empty answer all fall back to the raw
// query text.
func (s *Store) rewriteQuery(ctx context.Context, query string) string {
	if s.config.LLM == nil {
		return query
	}

	answer, err := s.config.LLM.Invoke(ctx, fmt.Sprintf(keywordPrompt, query))
	if err != nil {
		s.logger.Warn("keyword extraction failed, using raw query", "error", err)
		return query
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return query
	}

	s.logger.Debug("query rewritten for lexical search", "keywords", answer)
	return answer
}
