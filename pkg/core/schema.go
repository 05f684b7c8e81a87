package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateTableName rejects anything but plain identifiers. Table names are
// the only non-parameter fragment spliced into SQL text.
func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid table name %q", ErrSchema, name)
	}
	return nil
}

// createSchema creates the primary table, the shadow indexes for the
// configured mode, the synchronization triggers and the schema registry row.
// Idempotent; must be called with mu held.
func (s *Store) createSchema(ctx context.Context) error {
	table := s.config.Table

	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			text_embedding BLOB
		)`, table),
	}

	if s.config.Mode.hasVector() {
		ddl = append(ddl,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				rowid INTEGER PRIMARY KEY,
				text_embedding BLOB NOT NULL
			)`, s.vecTable()),
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS embed_text_%s
				AFTER INSERT ON %s
				BEGIN
					INSERT INTO %s(rowid, text_embedding)
					VALUES (new.rowid, new.text_embedding);
				END`, table, table, s.vecTable()),
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS vec_%s_delete_trigger
				AFTER DELETE ON %s
				BEGIN
					DELETE FROM %s WHERE rowid = old.rowid;
				END`, table, table, s.vecTable()),
		)
	}

	if s.config.Mode.hasLexical() {
		ddl = append(ddl,
			fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(
				text,
				metadata
			)`, s.bm25Table()),
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS bm25_%s_insert_trigger
				AFTER INSERT ON %s
				BEGIN
					INSERT INTO %s(rowid, text, metadata)
					VALUES (new.rowid, new.text, new.metadata);
				END`, table, table, s.bm25Table()),
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS bm25_%s_delete_trigger
				AFTER DELETE ON %s
				BEGIN
					DELETE FROM %s WHERE rowid = old.rowid;
				END`, table, table, s.bm25Table()),
		)
	}

	ddl = append(ddl, `CREATE TABLE IF NOT EXISTS lexivec_schema (
		tbl TEXT PRIMARY KEY,
		dim INTEGER NOT NULL,
		mode TEXT NOT NULL
	)`)

	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storageError("init", err)
		}
	}

	return s.checkRegistry(ctx)
}

// checkRegistry records the table's dimensionality and mode on first
// initialization and rejects re-initialization with an incompatible shape.
func (s *Store) checkRegistry(ctx context.Context) error {
	var dim int
	var mode string
	err := s.db.QueryRowContext(ctx,
		"SELECT dim, mode FROM lexivec_schema WHERE tbl = ?", s.config.Table,
	).Scan(&dim, &mode)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO lexivec_schema (tbl, dim, mode) VALUES (?, ?, ?)",
			s.config.Table, s.config.VectorDim, s.config.Mode.String(),
		)
		if err != nil {
			return storageError("init", err)
		}
		return nil
	case err != nil:
		return storageError("init", err)
	}

	if dim != s.config.VectorDim {
		return wrapError("init", fmt.Errorf("%w: table %q was created with dimension %d, configured %d",
			ErrSchema, s.config.Table, dim, s.config.VectorDim))
	}
	if mode != s.config.Mode.String() {
		return wrapError("init", fmt.Errorf("%w: table %q was created in %s mode, configured %s",
			ErrSchema, s.config.Table, mode, s.config.Mode))
	}
	return nil
}
