package core

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lexivec/lexivec/internal/encoding"
)

// KeywordSearch runs a ranked term-match query against the lexical shadow
// index and returns up to limit documents ordered by descending relevance.
//
// SQLite's bm25() statistic is smaller-is-better and negative for strong
// matches, so its negation is the relevance fed to the logistic transform
// score = 1/(1+e^-relevance). The transform is order-preserving and bounds
// the unbounded statistic to (0,1).
func (s *Store) KeywordSearch(ctx context.Context, query string, limit int, opt *Options) (results []SearchResult, err error) {
	start := time.Now()
	defer func() { s.config.Metrics.observe("keyword_search", start, err) }()

	if err = s.requireLexical("keyword_search"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	match := ftsMatchQuery(query)
	if match == "" {
		return nil, nil
	}

	candidates, err := s.lexicalCandidates(ctx, match, limit, opt.filter())
	if err != nil {
		return nil, err
	}

	results = make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, SearchResult{
			ID:          c.id,
			PageContent: c.content,
			Metadata:    c.metadata,
			Score:       c.score,
		})
	}
	return results, nil
}

// lexicalCandidates executes the FTS5 MATCH restricted by the compiled
// filter, best match first.
func (s *Store) lexicalCandidates(ctx context.Context, match string, fetch int, filter Filter) ([]candidate, error) {
	clause, args, err := compileFilter(filter, "b")
	if err != nil {
		return nil, wrapError("keyword_search", err)
	}

	bm25Table := s.bm25Table()
	query := fmt.Sprintf(`SELECT
			b.rowid,
			b.text,
			b.metadata,
			bm25(%s) AS raw
		FROM %s b
		WHERE %s MATCH ? AND %s
		ORDER BY raw
		LIMIT ?`, bm25Table, bm25Table, bm25Table, clause)

	queryArgs := make([]any, 0, len(args)+2)
	queryArgs = append(queryArgs, match)
	queryArgs = append(queryArgs, args...)
	queryArgs = append(queryArgs, fetch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("keyword_search"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, storageError("keyword_search", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []candidate
	for rows.Next() {
		var c candidate
		var metadataJSON string
		if err := rows.Scan(&c.id, &c.content, &metadataJSON, &c.raw); err != nil {
			return nil, storageError("keyword_search", err)
		}
		c.metadata, err = encoding.DecodeMetadata(metadataJSON)
		if err != nil {
			s.logger.Warn("skipping row with malformed metadata", "rowid", c.id, "error", err)
			continue
		}
		c.score = 1.0 / (1.0 + math.Exp(c.raw))
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("keyword_search", err)
	}
	return candidates, nil
}

// ftsMatchQuery turns free text into an FTS5 MATCH expression: each token is
// quoted so punctuation in the query cannot be misread as query syntax.
// Tokens combine with FTS5's implicit AND.
func ftsMatchQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,;:!?'`)
		if f == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}
