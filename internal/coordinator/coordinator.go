package coordinator

import (
	"context"
	"log/slog"

	"atelier/internal/assetpool"
	"atelier/internal/assetstore"
	"atelier/internal/characters"
	"atelier/internal/fingerprint"
	"atelier/internal/library"
	"atelier/internal/logging"
	"atelier/internal/services"
)

// Coordinator fans lifecycle operations out to every store.
type Coordinator struct {
	store      *assetstore.Store
	pool       *assetpool.Pool
	characters *characters.Index
	library    *library.Index
	logger     *slog.Logger
}

// New wires a coordinator over the given stores.
func New(store *assetstore.Store, pool *assetpool.Pool, chars *characters.Index, lib *library.Index, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		store:      store,
		pool:       pool,
		characters: chars,
		library:    lib,
		logger:     logging.NewComponentLogger(logger, "coordinator"),
	}
}

// SoftDelete trashes the asset. Its file and index refs are retained.
func (c *Coordinator) SoftDelete(ctx context.Context, fp string) (*assetstore.Asset, error) {
	return c.store.SoftDelete(ctx, fp)
}

// Restore returns a trashed asset to active. A trashed asset whose pool file
// is gone, such as one left by an interrupted purge, is refused with
// ErrInvalidState since an active asset must have its file.
func (c *Coordinator) Restore(ctx context.Context, fp string) (*assetstore.Asset, error) {
	fp = fingerprint.Normalize(fp)
	asset, err := c.store.Get(ctx, fp)
	if err != nil {
		return nil, err
	}
	if asset.Trashed() && !c.pool.Exists(fp) {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "restore refused",
			"restore_missing_file",
			logging.Fingerprint(fp),
			logging.String(logging.FieldErrorHint, "re-run purge to finish removing the asset"),
			logging.String(logging.FieldImpact, "asset stays in the trash"),
		)
		return nil, services.Wrap(services.ErrInvalidState, "coordinator", "restore",
			"file for "+fp+" is missing; re-run purge to finish removing it", nil)
	}
	return c.store.Restore(ctx, fp)
}

// PurgeReport records what each cascade step removed.
type PurgeReport struct {
	Fingerprint      string `json:"fingerprint"`
	FileRemoved      bool   `json:"file_removed"`
	ThumbnailRemoved bool   `json:"thumbnail_removed"`
	CharacterRefs    int    `json:"character_refs_removed"`
	LibraryRefs      int    `json:"library_refs_removed"`
	RowRemoved       bool   `json:"row_removed"`
}

// Purge permanently removes a trashed asset from every store. It fails with
// ErrNotFound for an unknown fingerprint and ErrInvalidState for an active
// asset, before anything is touched. The row is marked purge-pending first,
// so no restore can slip in while the cascade runs. On a mid-cascade failure
// the report holds the steps already applied.
func (c *Coordinator) Purge(ctx context.Context, fp string) (PurgeReport, error) {
	fp = fingerprint.Normalize(fp)
	report := PurgeReport{Fingerprint: fp}
	logger := logging.WithContext(ctx, c.logger).With(logging.Fingerprint(fp))

	if _, err := c.store.BeginPurge(ctx, fp); err != nil {
		return report, err
	}

	var err error

	if report.FileRemoved, err = c.pool.Remove(fp); err != nil {
		return report, c.cascadeFailed(logger, "remove file", err)
	}
	if report.ThumbnailRemoved, err = c.pool.RemoveThumbnail(fp); err != nil {
		return report, c.cascadeFailed(logger, "remove thumbnail", err)
	}
	if report.CharacterRefs, err = c.characters.RemoveFingerprint(ctx, fp); err != nil {
		return report, c.cascadeFailed(logger, "remove character refs", err)
	}
	if report.LibraryRefs, err = c.library.RemoveFingerprint(ctx, fp); err != nil {
		return report, c.cascadeFailed(logger, "remove library refs", err)
	}
	if err := c.store.Purge(ctx, fp); err != nil {
		return report, c.cascadeFailed(logger, "delete row", err)
	}
	report.RowRemoved = true

	logger.Info("asset purged",
		logging.String(logging.FieldEventType, "purge_completed"),
		logging.Bool("file_removed", report.FileRemoved),
		logging.Bool("thumbnail_removed", report.ThumbnailRemoved),
		logging.Int("character_refs", report.CharacterRefs),
		logging.Int("library_refs", report.LibraryRefs),
	)
	return report, nil
}

func (c *Coordinator) cascadeFailed(logger *slog.Logger, step string, err error) error {
	logging.ErrorWithContext(logger, "purge cascade interrupted",
		"purge_failed",
		logging.String("step", step),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "re-run purge; completed steps are skipped"),
	)
	return err
}
