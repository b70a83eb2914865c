package hashmigrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"atelier/internal/assetpool"
	"atelier/internal/assetstore"
	"atelier/internal/characters"
	"atelier/internal/fingerprint"
	"atelier/internal/library"
	"atelier/internal/logging"
	"atelier/internal/services"
)

// Options selects the algorithms and mode of a run.
type Options struct {
	From   fingerprint.Algorithm
	To     fingerprint.Algorithm
	DryRun bool
}

func (o Options) validate() error {
	if _, err := fingerprint.ParseAlgorithm(string(o.From)); err != nil {
		return services.Wrap(services.ErrValidation, "hashmigrate", "options", "from", err)
	}
	if _, err := fingerprint.ParseAlgorithm(string(o.To)); err != nil {
		return services.Wrap(services.ErrValidation, "hashmigrate", "options", "to", err)
	}
	if o.From == o.To {
		return services.Wrap(services.ErrValidation, "hashmigrate", "options",
			fmt.Sprintf("source and target algorithm are both %s", o.From), nil)
	}
	if o.From.HexLen() == o.To.HexLen() {
		return services.Wrap(services.ErrValidation, "hashmigrate", "options",
			fmt.Sprintf("%s and %s fingerprints have the same length and cannot be told apart", o.From, o.To), nil)
	}
	return nil
}

// Migrator runs hash migrations over one data directory.
type Migrator struct {
	store       *assetstore.Store
	pool        *assetpool.Pool
	characters  *characters.Index
	library     *library.Index
	logger      *slog.Logger
	journalPath string
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithJournal persists the pair mapping at path so a run interrupted after
// renaming files can still rewrite the indexes and rows on the next run.
func WithJournal(path string) Option {
	return func(m *Migrator) { m.journalPath = path }
}

// New wires a migrator over the given stores.
func New(store *assetstore.Store, pool *assetpool.Pool, chars *characters.Index, lib *library.Index, logger *slog.Logger, opts ...Option) *Migrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Migrator{
		store:      store,
		pool:       pool,
		characters: chars,
		library:    lib,
		logger:     logging.NewComponentLogger(logger, "hashmigrate"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type pairState struct {
	Pair
	ok bool
}

// Run executes every stage. Per-file failures are recorded in the report
// and do not abort the run; the returned error is reserved for failures
// that make the remaining stages unsafe, and for cancellation.
func (m *Migrator) Run(ctx context.Context, opts Options) (Report, error) {
	report := Report{From: opts.From, To: opts.To, DryRun: opts.DryRun}
	if err := opts.validate(); err != nil {
		return report, err
	}
	logger := logging.WithContext(ctx, m.logger).With(
		logging.String("from", opts.From.String()),
		logging.String("to", opts.To.String()),
		logging.Bool("dry_run", opts.DryRun),
	)

	pairs, err := m.collect(ctx, opts, &report, logger)
	if err != nil {
		return report, err
	}
	if !opts.DryRun {
		if err := writeJournal(m.journalPath, opts.From, opts.To, mapping(pairs)); err != nil {
			return report, services.Wrap(services.ErrIOFailure, "hashmigrate", "journal", m.journalPath, err)
		}
	}

	m.renameFiles(opts, pairs, &report, logger)
	m.renameThumbnails(opts, pairs, &report, logger)
	if err := ctx.Err(); err != nil {
		return finish(report, pairs), err
	}

	replacements := mapping(pairs)
	if report.CharacterReplacements, err = m.characters.ReplaceAll(ctx, replacements, opts.DryRun); err != nil {
		return finish(report, pairs), fmt.Errorf("rewrite character index: %w", err)
	}
	if report.LibraryReplacements, err = m.library.ReplaceAll(ctx, replacements, opts.DryRun); err != nil {
		return finish(report, pairs), fmt.Errorf("rewrite library index: %w", err)
	}

	if err := m.reconcile(ctx, opts, pairs, &report, logger); err != nil {
		return finish(report, pairs), err
	}
	report = finish(report, pairs)

	if !opts.DryRun && len(report.Failures) == 0 {
		if err := removeJournal(m.journalPath); err != nil {
			logging.WarnWithContext(logger, "migration journal not removed", "journal_cleanup_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the next run re-applies finished pairs, which is a no-op"),
			)
		}
	}

	logger.Info("hash migration finished",
		logging.String(logging.FieldEventType, "migration_completed"),
		logging.Int("pairs", len(report.Pairs)),
		logging.Int("files_renamed", report.FilesRenamed),
		logging.Int("thumbnails_renamed", report.ThumbnailsRenamed),
		logging.Int("index_replacements", report.CharacterReplacements+report.LibraryReplacements),
		logging.Int("rows_touched", report.RowsTouched()),
		logging.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// collect scans and rehashes old-format pool files, then adds journaled
// pairs whose files were already renamed by an earlier run.
func (m *Migrator) collect(ctx context.Context, opts Options, report *Report, logger *slog.Logger) ([]*pairState, error) {
	olds, err := m.pool.Scan(opts.From.Pattern())
	if err != nil {
		return nil, err
	}
	report.Scanned = len(olds)

	hasher := fingerprint.New(opts.To)
	seen := make(map[string]bool, len(olds))
	pairs := make([]*pairState, 0, len(olds))
	for _, old := range olds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		newFP, err := hasher.HashFile(m.pool.Path(old))
		if err != nil {
			report.fail(old, "hash", err)
			logging.WarnWithContext(logger, "pool file skipped", "migration_hash_failed",
				logging.Fingerprint(old),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file keeps its old name until the next run"),
			)
			continue
		}
		report.Hashed++
		seen[old] = true
		pairs = append(pairs, &pairState{Pair: Pair{Old: old, New: newFP}, ok: true})
		logger.Debug("fingerprint rehashed", logging.Fingerprint(old), logging.String("new", newFP))
	}

	journaled, err := readJournal(m.journalPath, opts.From, opts.To)
	if err != nil {
		logging.WarnWithContext(logger, "migration journal ignored", "journal_unreadable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "pairs renamed by an interrupted run are not resumed"),
		)
	}
	for _, old := range sortedKeys(journaled) {
		newFP := journaled[old]
		if seen[old] || !opts.From.Valid(old) || !opts.To.Valid(newFP) || !m.pool.Exists(newFP) {
			continue
		}
		report.Resumed++
		pairs = append(pairs, &pairState{Pair: Pair{Old: old, New: newFP, File: assetpool.RenameMissing.String()}, ok: true})
	}
	return pairs, nil
}

func (m *Migrator) renameFiles(opts Options, pairs []*pairState, report *Report, logger *slog.Logger) {
	for _, p := range pairs {
		if !p.ok || p.File != "" {
			continue
		}
		if opts.DryRun {
			outcome := assetpool.Renamed
			if m.pool.Exists(p.New) {
				outcome = assetpool.RenameDeduplicated
			}
			p.File = outcome.String()
			report.countFile(outcome)
			logger.Info("would rename asset file", logging.Fingerprint(p.Old), logging.String("new", p.New), logging.String("outcome", p.File))
			continue
		}
		outcome, err := m.pool.Rename(p.Old, p.New)
		if err != nil {
			p.ok = false
			report.fail(p.Old, "rename", err)
			logging.WarnWithContext(logger, "asset file not renamed", "migration_rename_failed",
				logging.Fingerprint(p.Old),
				logging.Error(err),
				logging.String(logging.FieldImpact, "references to this asset stay on the old fingerprint"),
			)
			continue
		}
		p.File = outcome.String()
		report.countFile(outcome)
	}
}

func (r *Report) countFile(outcome assetpool.RenameOutcome) {
	switch outcome {
	case assetpool.Renamed:
		r.FilesRenamed++
	case assetpool.RenameDeduplicated:
		r.FilesRenamed++
		r.FilesDeduplicated++
	}
}

func (m *Migrator) renameThumbnails(opts Options, pairs []*pairState, report *Report, logger *slog.Logger) {
	for _, p := range pairs {
		if !p.ok {
			continue
		}
		if opts.DryRun {
			outcome := assetpool.RenameMissing
			if m.pool.ThumbnailExists(p.Old) {
				outcome = assetpool.Renamed
				if m.pool.ThumbnailExists(p.New) {
					outcome = assetpool.RenameDeduplicated
				}
			}
			p.Thumbnail = outcome.String()
			if outcome != assetpool.RenameMissing {
				report.ThumbnailsRenamed++
			}
			continue
		}
		outcome, err := m.pool.RenameThumbnail(p.Old, p.New)
		if err != nil {
			report.fail(p.Old, "rename thumbnail", err)
			logging.WarnWithContext(logger, "thumbnail not renamed", "migration_thumbnail_failed",
				logging.Fingerprint(p.Old),
				logging.Error(err),
				logging.String(logging.FieldImpact, "thumbnail stays under the old fingerprint"),
			)
			continue
		}
		p.Thumbnail = outcome.String()
		if outcome != assetpool.RenameMissing {
			report.ThumbnailsRenamed++
		}
	}
}

// reconcile moves asset rows onto the new fingerprints: rekey when only
// the old row exists, drop the old row when both exist, create a minimal
// row when neither exists.
func (m *Migrator) reconcile(ctx context.Context, opts Options, pairs []*pairState, report *Report, logger *slog.Logger) error {
	for _, p := range pairs {
		if !p.ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.reconcilePair(ctx, opts, p, report); err != nil {
			report.fail(p.Old, "reconcile", err)
			logging.WarnWithContext(logger, "asset row not reconciled", "migration_reconcile_failed",
				logging.Fingerprint(p.Old),
				logging.String("new", p.New),
				logging.Error(err),
				logging.String(logging.FieldImpact, "asset table still refers to the old fingerprint"),
			)
			continue
		}
		if opts.DryRun && p.Row != RowUnchanged {
			logger.Info("would reconcile asset row", logging.Fingerprint(p.Old), logging.String("new", p.New), logging.String("action", p.Row))
		}
	}
	return nil
}

func (m *Migrator) reconcilePair(ctx context.Context, opts Options, p *pairState, report *Report) error {
	oldRow, err := m.store.Exists(ctx, p.Old)
	if err != nil {
		return err
	}
	newRow, err := m.store.Exists(ctx, p.New)
	if err != nil {
		return err
	}

	versions, err := m.store.VersionRefs(ctx, p.Old)
	if err != nil {
		return err
	}
	if versions > 0 && !opts.DryRun {
		if versions, err = m.store.RekeyVersions(ctx, p.Old, p.New); err != nil {
			return err
		}
	}
	report.VersionsRekeyed += versions

	switch {
	case oldRow && !newRow:
		p.Row = RowRekeyed
		report.RowsRekeyed++
		if opts.DryRun {
			return nil
		}
		return m.store.Rekey(ctx, p.Old, p.New)
	case oldRow && newRow:
		p.Row = RowDropped
		report.RowsDropped++
		if opts.DryRun {
			return nil
		}
		_, err := m.store.DeleteByFingerprint(ctx, p.Old)
		return err
	case !newRow:
		if opts.DryRun {
			p.Row = RowCreated
			report.RowsCreated++
			return nil
		}
		info, err := m.pool.Stat(p.New)
		if errors.Is(err, services.ErrNotFound) {
			p.Row = RowUnchanged
			return nil
		}
		if err != nil {
			return err
		}
		meta := assetstore.Metadata{Width: info.Width, Height: info.Height, FileSize: info.Size}
		if m.pool.ThumbnailExists(p.New) {
			meta.ThumbnailPath = assetpool.ThumbnailRelPath(p.New)
		}
		if _, err := m.store.InsertMinimal(ctx, p.New, minimalName(p.Old), meta); err != nil {
			return err
		}
		p.Row = RowCreated
		report.RowsCreated++
		return nil
	default:
		p.Row = RowUnchanged
		return nil
	}
}

func minimalName(old string) string {
	if len(old) > 8 {
		old = old[:8]
	}
	return "migrated_" + old
}

func mapping(pairs []*pairState) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p.ok {
			out[p.Old] = p.New
		}
	}
	return out
}

func finish(report Report, pairs []*pairState) Report {
	report.Pairs = make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		report.Pairs = append(report.Pairs, p.Pair)
	}
	return report
}
