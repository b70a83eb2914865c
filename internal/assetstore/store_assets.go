package assetstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"atelier/internal/fingerprint"
	"atelier/internal/logging"
	"atelier/internal/services"
)

func notFound(operation, fp string) error {
	return services.Wrap(services.ErrNotFound, "assetstore", operation, "no asset with fingerprint "+fp, nil)
}

func getTx(ctx context.Context, tx *sql.Tx, fp string) (*Asset, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE fingerprint = ?`, fp)
	return scanAsset(row)
}

// UpsertFromDecomposition inserts a record for fp unless one exists. An
// existing record is returned untouched, whatever its state. The boolean
// reports whether a row was created.
func (s *Store) UpsertFromDecomposition(ctx context.Context, fp string, meta Metadata) (*Asset, bool, error) {
	fp = fingerprint.Normalize(fp)
	if fp == "" {
		return nil, false, services.Wrap(services.ErrValidation, "assetstore", "upsert", "fingerprint is required", nil)
	}
	name := strings.TrimSpace(meta.Name)
	if name == "" {
		name = fp
	}

	var (
		asset   *Asset
		created bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO assets (
                id, fingerprint, name, file_path, thumbnail_path, width, height, file_size,
                category, character_name, z_index, state, created_at, updated_at,
                name_folded, character_folded
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(fingerprint) DO NOTHING`,
			uuid.NewString(),
			fp,
			name,
			meta.FilePath,
			nullableString(meta.ThumbnailPath),
			meta.Width,
			meta.Height,
			meta.FileSize,
			nullableString(meta.Category),
			nullableString(meta.CharacterName),
			meta.ZIndex,
			StateActive,
			ts,
			ts,
			foldForSearch(name),
			foldForSearch(strings.TrimSpace(meta.CharacterName)),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n > 0
		asset, err = getTx(ctx, tx, fp)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert asset: %w", err)
	}
	if created {
		s.logger.Debug("asset recorded", logging.Fingerprint(fp), logging.String("name", name))
	}
	return asset, created, nil
}

// Get fetches the asset with fingerprint fp.
func (s *Store) Get(ctx context.Context, fp string) (*Asset, error) {
	fp = fingerprint.Normalize(fp)
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+assetColumns+` FROM assets WHERE fingerprint = ?`, fp)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("get", fp)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// Exists reports whether a record for fp exists in any state.
func (s *Store) Exists(ctx context.Context, fp string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM assets WHERE fingerprint = ?`, fingerprint.Normalize(fp),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check asset: %w", err)
	}
	return count > 0, nil
}

// PageSize returns the effective default result cap.
func (s *Store) PageSize() int {
	return s.pageSize
}

// Search returns assets matching filter, newest first. Trashed assets are
// excluded unless IncludeTrashed is set.
func (s *Store) Search(ctx context.Context, filter Filter) ([]*Asset, error) {
	var (
		clauses []string
		args    []any
	)
	if !filter.IncludeTrashed {
		clauses = append(clauses, "state = ?")
		args = append(args, StateActive)
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		clauses = append(clauses, `name_folded LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(foldForSearch(name)))
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, category)
	}
	if character := strings.TrimSpace(filter.Character); character != "" {
		clauses = append(clauses, `character_folded LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(foldForSearch(character)))
	}
	if filter.ZIndex != nil {
		clauses = append(clauses, "z_index = ?")
		args = append(args, *filter.ZIndex)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	limit = min(limit, MaxPageSize)

	query := `SELECT ` + assetColumns + ` FROM assets`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	return s.queryAssets(ctx, "search assets", query, args...)
}

// ListTrash returns trashed assets, most recently trashed first.
func (s *Store) ListTrash(ctx context.Context) ([]*Asset, error) {
	return s.queryAssets(ctx, "list trash",
		`SELECT `+assetColumns+` FROM assets WHERE state = ? ORDER BY updated_at DESC, rowid DESC`,
		StateTrashed,
	)
}

// ListFingerprints maps every recorded fingerprint to its state.
func (s *Store) ListFingerprints(ctx context.Context) (map[string]State, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT fingerprint, state FROM assets`)
	if err != nil {
		return nil, fmt.Errorf("list fingerprints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]State)
	for rows.Next() {
		var fp, state string
		if err := rows.Scan(&fp, &state); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		out[fp] = State(state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprints: %w", err)
	}
	return out, nil
}

func (s *Store) queryAssets(ctx context.Context, operation, query string, args ...any) ([]*Asset, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", operation, err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return assets, nil
}
