package decompose

import "slices"

// LayerRef points a character group entry at a pooled asset.
type LayerRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// SkippedLayer records a leaf that no extraction strategy could read.
type SkippedLayer struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is the outcome of one decomposition.
type Result struct {
	Document   string                `json:"document"`
	GroupOrder []string              `json:"group_order"`
	Groups     map[string][]LayerRef `json:"layer_groups"`
	Skipped    []SkippedLayer        `json:"skipped,omitempty"`
}

// Partial reports whether any leaf was skipped.
func (r Result) Partial() bool {
	return len(r.Skipped) > 0
}

// LayerCount returns the number of refs across all groups.
func (r Result) LayerCount() int {
	total := 0
	for _, refs := range r.Groups {
		total += len(refs)
	}
	return total
}

// builder accumulates a Result during one walk. It is owned by a single
// walk and never shared.
type builder struct {
	order  []string
	groups map[string][]LayerRef
	seen   map[string]map[string]struct{}
	skips  []SkippedLayer
}

func newBuilder() *builder {
	return &builder{
		groups: make(map[string][]LayerRef),
		seen:   make(map[string]map[string]struct{}),
	}
}

func (b *builder) register(group string) {
	if _, ok := b.groups[group]; ok {
		return
	}
	b.order = append(b.order, group)
	b.groups[group] = []LayerRef{}
	b.seen[group] = make(map[string]struct{})
}

func (b *builder) has(group, fp string) bool {
	_, ok := b.seen[group][fp]
	return ok
}

func (b *builder) add(group string, ref LayerRef) {
	b.register(group)
	if b.has(group, ref.Hash) {
		return
	}
	b.seen[group][ref.Hash] = struct{}{}
	b.groups[group] = append(b.groups[group], ref)
}

func (b *builder) skip(path, reason string) {
	b.skips = append(b.skips, SkippedLayer{Path: path, Reason: reason})
}

// result copies the accumulated state so later builder use cannot alias it.
func (b *builder) result(document string) Result {
	groups := make(map[string][]LayerRef, len(b.groups))
	for name, refs := range b.groups {
		groups[name] = slices.Clone(refs)
	}
	return Result{
		Document:   document,
		GroupOrder: slices.Clone(b.order),
		Groups:     groups,
		Skipped:    slices.Clone(b.skips),
	}
}
