package assetstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// baseSchemaVersion is stamped by schema.sql. Additive changes ship as
// embedded migrations and leave it alone.
const baseSchemaVersion = 1

// ErrSchemaMismatch reports a database stamped with a different base version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// initSchema lays down schema.sql on an empty database, refuses one stamped
// with another base version, then applies pending migrations.
func (s *Store) initSchema(ctx context.Context) error {
	version, stamped, err := s.baseVersion(ctx)
	if err != nil {
		return err
	}
	switch {
	case !stamped:
		err = s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", baseSchemaVersion)
			return err
		})
		if err != nil {
			return fmt.Errorf("create base schema: %w", err)
		}
	case version != baseSchemaVersion:
		return fmt.Errorf("%w: %s is at base version %d but atelier expects %d; move it aside and re-import",
			ErrSchemaMismatch, s.path, version, baseSchemaVersion)
	}
	return s.applyMigrations(ctx)
}

// baseVersion reads the stamped version; stamped is false for a fresh file.
func (s *Store) baseVersion(ctx context.Context) (version int, stamped bool, err error) {
	var tables int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'")
	if err := row.Scan(&tables); err != nil {
		return 0, false, fmt.Errorf("look up schema_version: %w", err)
	}
	if tables == 0 {
		return 0, false, nil
	}
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, true, nil
}
