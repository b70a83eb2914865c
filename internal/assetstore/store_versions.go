package assetstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"atelier/internal/fingerprint"
	"atelier/internal/logging"
	"atelier/internal/services"
)

// AppendVersion records a new history entry for the asset fp. The version
// number is one past the current maximum, computed inside the insert
// transaction. Decomposition never calls this.
func (s *Store) AppendVersion(ctx context.Context, fp, versionFP, filePath string) (*Version, error) {
	fp = fingerprint.Normalize(fp)
	versionFP = fingerprint.Normalize(versionFP)
	if versionFP == "" || filePath == "" {
		return nil, services.Wrap(services.ErrValidation, "assetstore", "append version", "version fingerprint and path are required", nil)
	}

	var version *Version
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		asset, err := getTx(ctx, tx, fp)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("append version", fp)
		}
		if err != nil {
			return err
		}
		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM asset_versions WHERE asset_id = ?`, asset.ID,
		).Scan(&next); err != nil {
			return err
		}
		id := uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO asset_versions (`+versionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			id, asset.ID, next, versionFP, filePath, now(),
		); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM asset_versions WHERE id = ?`, id)
		version, err = scanVersion(row)
		return err
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("append version: %w", err)
	}
	s.logger.Info("asset version appended",
		logging.Fingerprint(fp),
		logging.Int("version", version.Version),
		logging.String("version_fingerprint", versionFP),
	)
	return version, nil
}

// ListVersions returns the asset's history, newest first.
func (s *Store) ListVersions(ctx context.Context, fp string) ([]*Version, error) {
	asset, err := s.Get(ctx, fp)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+versionColumns+` FROM asset_versions WHERE asset_id = ? ORDER BY version DESC`, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

// VersionFingerprints returns every fingerprint referenced by a history
// entry.
func (s *Store) VersionFingerprints(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT DISTINCT fingerprint FROM asset_versions`)
	if err != nil {
		return nil, fmt.Errorf("list version fingerprints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scan version fingerprint: %w", err)
		}
		out[fp] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate version fingerprints: %w", err)
	}
	return out, nil
}
