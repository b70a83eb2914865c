package decompose

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/image/draw"

	"atelier/internal/fingerprint"
	"atelier/internal/layertree"
	"atelier/internal/logging"
	"atelier/internal/textutil"
)

// DefaultGroup names the group that collects leaves outside any group.
const DefaultGroup = "Root"

// Extracted is one padded leaf ready to be persisted.
type Extracted struct {
	Fingerprint string
	// Name is the sanitized leaf name.
	Name string
	// Group is the top-level group the leaf is filed under.
	Group string
	// LayerPath is the slash-joined path of the leaf inside the document.
	LayerPath string
	Strategy  string
	Image     *image.NRGBA
}

// Sink persists extracted leaves. Commit must be idempotent per fingerprint
// and returns the pool-relative path recorded in the LayerRef.
type Sink interface {
	Commit(ctx context.Context, leaf Extracted) (string, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, leaf Extracted) (string, error)

// Commit calls f.
func (f SinkFunc) Commit(ctx context.Context, leaf Extracted) (string, error) {
	return f(ctx, leaf)
}

// Option configures a Decomposer.
type Option func(*Decomposer)

// WithStrategies replaces the extraction strategy chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(d *Decomposer) {
		d.strategies = strategies
	}
}

// WithDefaultGroup sets the group used for leaves outside any group.
func WithDefaultGroup(name string) Option {
	return func(d *Decomposer) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			d.defaultGroup = trimmed
		}
	}
}

// Decomposer extracts leaf layers from documents. It holds no per-document
// state and may be shared between goroutines.
type Decomposer struct {
	hasher       *fingerprint.Hasher
	logger       *slog.Logger
	defaultGroup string
	strategies   []Strategy
}

// New builds a Decomposer that fingerprints with hasher.
func New(hasher *fingerprint.Hasher, logger *slog.Logger, opts ...Option) *Decomposer {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Decomposer{
		hasher:       hasher,
		logger:       logging.NewComponentLogger(logger, "decompose"),
		defaultGroup: DefaultGroup,
		strategies:   DefaultStrategies(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decompose walks doc and commits each extracted leaf to sink. Unreadable
// leaves are skipped and listed in Result.Skipped. A sink failure or context
// cancellation stops the walk; the returned Result then holds the leaves
// committed so far.
func (d *Decomposer) Decompose(ctx context.Context, doc *layertree.Document, sink Sink) (Result, error) {
	w := &walk{
		d:      d,
		sink:   sink,
		canvas: doc.Canvas(),
		out:    newBuilder(),
		logger: logging.WithContext(ctx, d.logger).With(logging.String(logging.FieldDocument, doc.Name)),
	}
	for _, node := range doc.Layers {
		if err := w.visit(ctx, node, nil); err != nil {
			return w.out.result(doc.Name), err
		}
	}
	res := w.out.result(doc.Name)
	w.logger.Debug("document decomposed",
		logging.Int("groups", len(res.GroupOrder)),
		logging.Int("layers", res.LayerCount()),
		logging.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

type walk struct {
	d      *Decomposer
	sink   Sink
	canvas image.Rectangle
	out    *builder
	logger *slog.Logger
}

// forceVisible makes node visible and returns the function restoring its
// original flag.
func forceVisible(node layertree.Node) func() {
	was := node.Visible()
	node.SetVisible(true)
	return func() { node.SetVisible(was) }
}

func (w *walk) visit(ctx context.Context, node layertree.Node, parts []string) error {
	restore := forceVisible(node)
	defer restore()

	name := textutil.SanitizeName(node.Name())
	if node.IsGroup() {
		if name == "" {
			name = w.d.defaultGroup
		}
		inner := append(append([]string(nil), parts...), name)
		w.out.register(inner[0])
		for _, child := range node.Children() {
			if err := w.visit(ctx, child, inner); err != nil {
				return err
			}
		}
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return w.leaf(ctx, node, name, parts)
}

func (w *walk) leaf(ctx context.Context, node layertree.Node, name string, parts []string) error {
	bounds := node.Bounds()
	if bounds.Empty() {
		return nil
	}
	layerPath := path.Join(append(append([]string(nil), parts...), name)...)
	group := w.d.defaultGroup
	if len(parts) > 0 {
		group = parts[0]
	}

	img, strategy, err := extract(w.d.strategies, node)
	if err != nil {
		w.skip(layerPath, err)
		return nil
	}
	padded := pad(img, bounds, w.canvas)
	fp, err := w.d.hasher.HashImage(padded)
	if err != nil {
		w.skip(layerPath, err)
		return nil
	}
	if w.out.has(group, fp) {
		return nil
	}

	rel, err := w.sink.Commit(ctx, Extracted{
		Fingerprint: fp,
		Name:        name,
		Group:       group,
		LayerPath:   layerPath,
		Strategy:    strategy,
		Image:       padded,
	})
	if err != nil {
		return fmt.Errorf("commit layer %q: %w", layerPath, err)
	}
	w.out.add(group, LayerRef{Name: name, Path: rel, Hash: fp})
	return nil
}

func (w *walk) skip(layerPath string, err error) {
	w.out.skip(layerPath, err.Error())
	logging.WarnWithContext(w.logger, "layer skipped",
		"layer_skipped",
		logging.String("layer", layerPath),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "re-save the document or rasterize the layer"),
		logging.String(logging.FieldImpact, "layer not imported"),
	)
}

// pad places img on a transparent canvas at the layer's offset.
func pad(img image.Image, bounds, canvas image.Rectangle) *image.NRGBA {
	dst := image.NewNRGBA(canvas)
	src := img.Bounds()
	target := image.Rectangle{Min: bounds.Min, Max: bounds.Min.Add(src.Size())}
	draw.Draw(dst, target, img, src.Min, draw.Src)
	return dst
}
