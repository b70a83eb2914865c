package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"atelier/internal/assetpool"
	"atelier/internal/assetstore"
	"atelier/internal/characters"
	"atelier/internal/config"
	"atelier/internal/decompose"
	"atelier/internal/fingerprint"
	"atelier/internal/layertree"
	"atelier/internal/logging"
	"atelier/internal/services"
	"atelier/internal/textutil"
)

// Upload is one document submitted for import.
type Upload struct {
	Path string
	// DisplayName overrides the character name derived from the file name.
	DisplayName string
}

// Outcome is the per-document result of an import.
type Outcome struct {
	Document  string                   `json:"document"`
	Character *characters.Character    `json:"character,omitempty"`
	Layers    int                      `json:"layers"`
	NewAssets int                      `json:"new_assets"`
	Skipped   []decompose.SkippedLayer `json:"skipped,omitempty"`
	Duration  time.Duration            `json:"duration_ns"`
	Err       error                    `json:"-"`
	ErrorCode string                   `json:"error_code,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// OK reports whether the document imported, possibly with skipped layers.
func (o Outcome) OK() bool { return o.Err == nil }

// Warning returns a partial-extraction error when layers were skipped.
func (o Outcome) Warning() error {
	if o.Err != nil || len(o.Skipped) == 0 {
		return nil
	}
	return services.Wrap(services.ErrPartialExtraction, "ingest", "import", fmt.Sprintf("%s: %d layer(s) skipped", o.Document, len(o.Skipped)), nil)
}

func (o *Outcome) fail(err error) {
	o.Err = err
	o.ErrorCode = services.Code(err)
	o.Error = err.Error()
}

// Service imports documents into the pool, the asset store and the
// character index.
type Service struct {
	cfg        *config.Config
	store      *assetstore.Store
	pool       *assetpool.Pool
	characters *characters.Index
	decomposer *decompose.Decomposer
	logger     *slog.Logger
}

// New builds a Service fingerprinting with the configured algorithm.
func New(cfg *config.Config, store *assetstore.Store, pool *assetpool.Pool, chars *characters.Index, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	alg, err := fingerprint.ParseAlgorithm(cfg.Hashing.Algorithm)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "init", "hashing algorithm", err)
	}
	return &Service{
		cfg:        cfg,
		store:      store,
		pool:       pool,
		characters: chars,
		decomposer: decompose.New(fingerprint.New(alg), logger, decompose.WithDefaultGroup(cfg.Decompose.DefaultGroup)),
		logger:     logging.NewComponentLogger(logger, "ingest"),
	}, nil
}

// ImportBatch imports every upload on at most cfg.Decompose.Workers
// goroutines. Outcomes are returned in upload order.
func (s *Service) ImportBatch(ctx context.Context, uploads []Upload) []Outcome {
	outcomes := make([]Outcome, len(uploads))
	var g errgroup.Group
	g.SetLimit(max(s.cfg.Decompose.Workers, 1))
	for i, upload := range uploads {
		g.Go(func() error {
			outcomes[i] = s.ImportFile(ctx, upload.Path, upload.DisplayName)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// ImportFile decomposes the document at path and records every leaf. The
// character name is displayName when set, otherwise derived from the file
// name. A document that cannot be opened fails without side effects; a
// failure mid-walk keeps the leaves already committed but leaves the
// character index unchanged.
func (s *Service) ImportFile(ctx context.Context, path, displayName string) (outcome Outcome) {
	started := time.Now()
	name := filepath.Base(path)
	outcome = Outcome{Document: name}
	defer func() { outcome.Duration = time.Since(started) }()

	ctx = services.WithRequestID(ctx, uuid.NewString())
	ctx = services.WithDocument(ctx, name)
	logger := logging.WithContext(ctx, s.logger)

	character, err := s.characterName(path, displayName)
	if err != nil {
		outcome.fail(err)
		return outcome
	}
	ctx = services.WithCharacter(ctx, character)
	logger = logger.With(logging.String(logging.FieldCharacter, character))

	if err := ctx.Err(); err != nil {
		outcome.fail(err)
		return outcome
	}
	doc, err := layertree.Open(path)
	if err != nil {
		outcome.fail(err)
		logging.WarnWithContext(logger, "document rejected", "document_rejected",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no assets imported from this document"),
		)
		return outcome
	}

	sink := &poolSink{service: s, character: character}
	res, err := s.decomposer.Decompose(ctx, doc, sink)
	outcome.Layers = res.LayerCount()
	outcome.NewAssets = sink.created
	outcome.Skipped = res.Skipped
	if err != nil {
		outcome.fail(err)
		logging.ErrorWithContext(logger, "import interrupted", "import_failed",
			logging.Error(err),
			logging.Int("committed_layers", res.LayerCount()),
			logging.String(logging.FieldErrorHint, "re-import the document; committed layers deduplicate"),
		)
		return outcome
	}

	merged, err := s.characters.Merge(ctx, character, res)
	if err != nil {
		outcome.fail(err)
		return outcome
	}
	outcome.Character = &merged

	if res.Partial() {
		logging.WarnWithContext(logger, "document imported with skipped layers", "partial_extraction",
			logging.Int("skipped", len(res.Skipped)),
			logging.String(logging.FieldImpact, "skipped layers are missing from the character"),
		)
	}
	logger.Info("document imported",
		logging.String(logging.FieldEventType, "import_completed"),
		logging.Int("layers", outcome.Layers),
		logging.Int("new_assets", outcome.NewAssets),
		logging.Duration("duration", time.Since(started)),
	)
	return outcome
}

func (s *Service) characterName(path, displayName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(s.cfg.Decompose.AllowedExtensions, ext) {
		return "", services.Wrap(services.ErrValidation, "ingest", "import",
			fmt.Sprintf("%s: unsupported file type %q (allowed: %s)", filepath.Base(path), ext, strings.Join(s.cfg.Decompose.AllowedExtensions, ", ")), nil)
	}
	character := textutil.SanitizeName(textutil.NormalizeName(displayName))
	if character == "" {
		character = textutil.SanitizeName(textutil.CharacterName(path))
	}
	if character == "" {
		return "", services.Wrap(services.ErrValidation, "ingest", "import", "cannot derive a character name from "+filepath.Base(path), nil)
	}
	return character, nil
}

// poolSink persists one document's leaves. It is used by a single walk, so
// created needs no locking.
type poolSink struct {
	service   *Service
	character string
	created   int
}

func (p *poolSink) Commit(ctx context.Context, leaf decompose.Extracted) (string, error) {
	s := p.service
	path, _, err := s.pool.Store(leaf.Fingerprint, leaf.Image)
	if err != nil {
		return "", err
	}
	meta := assetstore.Metadata{
		Name:          leaf.Name,
		FilePath:      assetpool.RelPath(leaf.Fingerprint),
		Width:         leaf.Image.Bounds().Dx(),
		Height:        leaf.Image.Bounds().Dy(),
		CharacterName: p.character,
	}
	if info, err := os.Stat(path); err == nil {
		meta.FileSize = info.Size()
	}
	if s.cfg.Thumbnails.Enabled {
		if _, _, err := s.pool.StoreThumbnail(leaf.Fingerprint, leaf.Image, s.cfg.Thumbnails.MaxEdge); err != nil {
			return "", err
		}
		meta.ThumbnailPath = assetpool.ThumbnailRelPath(leaf.Fingerprint)
	}
	if _, created, err := s.store.UpsertFromDecomposition(ctx, leaf.Fingerprint, meta); err != nil {
		return "", err
	} else if created {
		p.created++
	}
	return meta.FilePath, nil
}
