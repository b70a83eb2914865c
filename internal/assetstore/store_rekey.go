package assetstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atelier/internal/assetpool"
	"atelier/internal/fingerprint"
	"atelier/internal/services"
)

// Rekey moves the record for oldFP to newFP and rewrites its pool paths.
// It fails with ErrNotFound when oldFP has no record and ErrInvalidState
// when newFP already has one.
func (s *Store) Rekey(ctx context.Context, oldFP, newFP string) error {
	oldFP = fingerprint.Normalize(oldFP)
	newFP = fingerprint.Normalize(newFP)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getTx(ctx, tx, oldFP)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("rekey", oldFP)
		}
		if err != nil {
			return err
		}
		if _, err := getTx(ctx, tx, newFP); err == nil {
			return services.Wrap(services.ErrInvalidState, "assetstore", "rekey", "target fingerprint "+newFP+" already recorded", nil)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		var thumb any
		if current.ThumbnailPath != "" {
			thumb = assetpool.ThumbnailRelPath(newFP)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE assets SET fingerprint = ?, file_path = ?, thumbnail_path = ?, updated_at = ? WHERE id = ?`,
			newFP, assetpool.RelPath(newFP), thumb, now(), current.ID,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrInvalidState) {
			return err
		}
		return fmt.Errorf("rekey asset: %w", err)
	}
	return nil
}

// RekeyVersions rewrites history entries that point at oldFP. It returns
// the number of entries changed.
func (s *Store) RekeyVersions(ctx context.Context, oldFP, newFP string) (int64, error) {
	oldFP = fingerprint.Normalize(oldFP)
	newFP = fingerprint.Normalize(newFP)
	var changed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE asset_versions SET fingerprint = ?, file_path = ? WHERE fingerprint = ?`,
			newFP, assetpool.RelPath(newFP), oldFP,
		)
		if err != nil {
			return err
		}
		changed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("rekey versions: %w", err)
	}
	return changed, nil
}

// DeleteByFingerprint removes the record for fp regardless of state and
// reports whether one existed.
func (s *Store) DeleteByFingerprint(ctx context.Context, fp string) (bool, error) {
	fp = fingerprint.Normalize(fp)
	var removed bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE fingerprint = ?`, fp)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		removed = n > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete asset: %w", err)
	}
	return removed, nil
}

// InsertMinimal records a pool file that has no row, naming it name.
func (s *Store) InsertMinimal(ctx context.Context, fp, name string, meta Metadata) (*Asset, error) {
	meta.Name = name
	if meta.FilePath == "" {
		meta.FilePath = assetpool.RelPath(fingerprint.Normalize(fp))
	}
	asset, _, err := s.UpsertFromDecomposition(ctx, fp, meta)
	return asset, err
}

// VersionRefs counts history entries that point at fp.
func (s *Store) VersionRefs(ctx context.Context, fp string) (int64, error) {
	var count int64
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM asset_versions WHERE fingerprint = ?`,
			fingerprint.Normalize(fp),
		).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("count version refs: %w", err)
	}
	return count, nil
}
