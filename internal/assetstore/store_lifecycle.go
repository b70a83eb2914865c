package assetstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atelier/internal/fingerprint"
	"atelier/internal/logging"
	"atelier/internal/services"
)

// SoftDelete moves the asset to the trash. Trashing an already trashed
// asset is a no-op. The pool file and index references are not touched.
func (s *Store) SoftDelete(ctx context.Context, fp string) (*Asset, error) {
	return s.transition(ctx, "soft delete", fp, StateTrashed)
}

// Restore returns a trashed asset to the active state. Restoring an active
// asset is a no-op.
func (s *Store) Restore(ctx context.Context, fp string) (*Asset, error) {
	return s.transition(ctx, "restore", fp, StateActive)
}

func (s *Store) transition(ctx context.Context, operation, fp string, target State) (*Asset, error) {
	fp = fingerprint.Normalize(fp)
	var (
		asset   *Asset
		changed bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getTx(ctx, tx, fp)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(operation, fp)
		}
		if err != nil {
			return err
		}
		if current.State == target {
			asset = current
			return nil
		}
		if target == StateActive && current.PurgePending {
			return services.Wrap(services.ErrInvalidState, "assetstore", operation,
				"purge of "+fp+" was started; re-run purge to finish it", nil)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE assets SET state = ?, updated_at = ? WHERE id = ?`,
			target, now(), current.ID,
		); err != nil {
			return err
		}
		changed = true
		asset, err = getTx(ctx, tx, fp)
		return err
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrInvalidState) {
			return nil, err
		}
		return nil, fmt.Errorf("%s asset: %w", operation, err)
	}
	if changed {
		s.logger.Info("asset state changed",
			logging.Fingerprint(fp),
			logging.String("state", string(target)),
			logging.String(logging.FieldEventType, "asset_"+string(target)),
		)
	}
	return asset, nil
}

// BeginPurge marks a trashed asset as being purged, which blocks Restore
// until Purge deletes the row. It fails with ErrNotFound for an unknown
// fingerprint and ErrInvalidState for an active asset. Marking an asset
// twice is a no-op.
func (s *Store) BeginPurge(ctx context.Context, fp string) (*Asset, error) {
	fp = fingerprint.Normalize(fp)
	var asset *Asset
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getTx(ctx, tx, fp)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("purge", fp)
		}
		if err != nil {
			return err
		}
		if current.State != StateTrashed {
			return services.Wrap(services.ErrInvalidState, "assetstore", "purge",
				fmt.Sprintf("asset %s is %s; trash it before purging", fp, current.State), nil)
		}
		if !current.PurgePending {
			if _, err := tx.ExecContext(ctx, `UPDATE assets SET purge_pending = 1, updated_at = ? WHERE id = ?`, now(), current.ID); err != nil {
				return err
			}
			current.PurgePending = true
		}
		asset = current
		return nil
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrInvalidState) {
			return nil, err
		}
		return nil, fmt.Errorf("begin purge: %w", err)
	}
	return asset, nil
}

// Purge permanently deletes a trashed asset and, through the foreign key,
// its version history. Purging an active asset fails with ErrInvalidState.
func (s *Store) Purge(ctx context.Context, fp string) error {
	fp = fingerprint.Normalize(fp)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getTx(ctx, tx, fp)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("purge", fp)
		}
		if err != nil {
			return err
		}
		if current.State != StateTrashed {
			return services.Wrap(services.ErrInvalidState, "assetstore", "purge",
				fmt.Sprintf("asset %s is %s; trash it before purging", fp, current.State), nil)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, current.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrInvalidState) {
			return err
		}
		return fmt.Errorf("purge asset: %w", err)
	}
	s.logger.Info("asset purged",
		logging.Fingerprint(fp),
		logging.String(logging.FieldEventType, "asset_purged"),
	)
	return nil
}
