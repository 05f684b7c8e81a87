package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// deleteChunkSize keeps IN lists under SQLite's bound-parameter limit.
const deleteChunkSize = 500

// DeleteByIDs removes the rows with the given identifiers. Idempotent:
// unknown identifiers are ignored. Delete triggers remove the shadow rows,
// and the same deletes are also issued explicitly against each shadow index
// inside the transaction, so no orphaned shadow row can survive either way.
func (s *Store) DeleteByIDs(ctx context.Context, ids []int64) (err error) {
	start := time.Now()
	defer func() { s.config.Metrics.observe("delete_by_ids", start, err) }()

	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.checkOpen("delete_by_ids"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("delete_by_ids", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := []string{s.config.Table}
	if s.config.Mode.hasVector() {
		tables = append(tables, s.vecTable())
	}
	if s.config.Mode.hasLexical() {
		tables = append(tables, s.bm25Table())
	}

	for chunkStart := 0; chunkStart < len(ids); chunkStart += deleteChunkSize {
		chunkEnd := chunkStart + deleteChunkSize
		if chunkEnd > len(ids) {
			chunkEnd = len(ids)
		}
		chunk := ids[chunkStart:chunkEnd]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		for _, table := range tables {
			query := fmt.Sprintf("DELETE FROM %s WHERE rowid IN (%s)", table, placeholders)
			if _, err = tx.ExecContext(ctx, query, args...); err != nil {
				return storageError("delete_by_ids", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return storageError("delete_by_ids", err)
	}

	s.logger.Debug("documents deleted by id", "count", len(ids), "table", s.config.Table)
	return nil
}

// DeleteByFilter removes the rows whose metadata matches the predicate and
// reconciles the shadow indexes against the surviving primary rows in the
// same transaction. An empty predicate deletes nothing: wiping the store is
// DeleteAll's job, not an accident of an empty map.
func (s *Store) DeleteByFilter(ctx context.Context, filter Filter) (err error) {
	start := time.Now()
	defer func() { s.config.Metrics.observe("delete_by_filter", start, err) }()

	if len(filter) == 0 {
		return nil
	}

	clause, args, err := compileFilter(filter, "")
	if err != nil {
		return wrapError("delete_by_filter", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.checkOpen("delete_by_filter"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("delete_by_filter", err)
	}
	defer func() { _ = tx.Rollback() }()

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s", s.config.Table, clause), args...)
	if err != nil {
		return storageError("delete_by_filter", err)
	}

	if err = s.reconcileShadows(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return storageError("delete_by_filter", err)
	}

	if n, raErr := res.RowsAffected(); raErr == nil {
		s.logger.Debug("documents deleted by filter", "count", n, "table", s.config.Table)
	}
	return nil
}

// DeleteAll clears the primary table and every shadow index.
func (s *Store) DeleteAll(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.config.Metrics.observe("delete_all", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.checkOpen("delete_all"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("delete_all", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := []string{s.config.Table}
	if s.config.Mode.hasVector() {
		tables = append(tables, s.vecTable())
	}
	if s.config.Mode.hasLexical() {
		tables = append(tables, s.bm25Table())
	}
	for _, table := range tables {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return storageError("delete_all", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return storageError("delete_all", err)
	}

	s.logger.Info("store cleared", "table", s.config.Table)
	return nil
}

// reconcileShadows drops any shadow row whose identifier no longer exists in
// the primary table. Belt for the delete triggers: bulk predicate deletes
// and shadow indexes without trigger coverage end up consistent either way.
func (s *Store) reconcileShadows(ctx context.Context, tx *sql.Tx) error {
	shadows := []string{}
	if s.config.Mode.hasVector() {
		shadows = append(shadows, s.vecTable())
	}
	if s.config.Mode.hasLexical() {
		shadows = append(shadows, s.bm25Table())
	}

	for _, shadow := range shadows {
		query := fmt.Sprintf("DELETE FROM %s WHERE rowid NOT IN (SELECT rowid FROM %s)",
			shadow, s.config.Table)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return storageError("delete_by_filter", err)
		}
	}
	return nil
}
