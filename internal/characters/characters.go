// Package characters maintains the per-character JSON index of extracted
// layer groups. Each import of a document merges its decomposition result
// into the character named after the document.
package characters

import (
	"context"
	"log/slog"
	"slices"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"atelier/internal/decompose"
	"atelier/internal/fingerprint"
	"atelier/internal/jsondoc"
	"atelier/internal/logging"
	"atelier/internal/services"
)

// Character is one entry of the index.
type Character struct {
	ID          string                          `json:"id"`
	Name        string                          `json:"name"`
	GroupOrder  []string                        `json:"group_order"`
	LayerGroups map[string][]decompose.LayerRef `json:"layer_groups"`
}

// Index is the character document store.
type Index struct {
	store  *jsondoc.Store[[]Character]
	logger *slog.Logger
}

// New opens the index at path. The file is created on first write.
func New(path string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Index{
		store:  jsondoc.New(path, func() []Character { return []Character{} }, logger),
		logger: logging.NewComponentLogger(logger, "characters"),
	}
}

// Path returns the index file location.
func (i *Index) Path() string {
	return i.store.Path()
}

// List returns every character in file order.
func (i *Index) List() []Character {
	return i.store.Load()
}

// Get returns the character called name. An exact match wins; otherwise
// names are compared case-insensitively.
func (i *Index) Get(name string) (Character, error) {
	chars := i.store.Load()
	if idx := find(chars, name); idx >= 0 {
		return chars[idx], nil
	}
	return Character{}, services.Wrap(services.ErrNotFound, "characters", "get", "no character named "+name, nil)
}

func find(chars []Character, name string) int {
	if idx := slices.IndexFunc(chars, func(c Character) bool { return c.Name == name }); idx >= 0 {
		return idx
	}
	fold := cases.Fold()
	want := fold.String(name)
	return slices.IndexFunc(chars, func(c Character) bool { return fold.String(c.Name) == want })
}

// Merge folds res into the character called name, creating it when absent,
// and returns the saved character.
func (i *Index) Merge(ctx context.Context, name string, res decompose.Result) (Character, error) {
	var merged Character
	_, err := i.store.Update(ctx, func(chars *[]Character) error {
		idx := slices.IndexFunc(*chars, func(c Character) bool { return c.Name == name })
		if idx < 0 {
			merged = Merge(Character{ID: uuid.NewString(), Name: name}, res)
			*chars = append(*chars, merged)
			i.logger.Info("character created",
				logging.String(logging.FieldCharacter, name),
				logging.Int("groups", len(merged.GroupOrder)),
			)
			return nil
		}
		merged = Merge((*chars)[idx], res)
		(*chars)[idx] = merged
		i.logger.Info("character updated",
			logging.String(logging.FieldCharacter, name),
			logging.Int("groups", len(merged.GroupOrder)),
		)
		return nil
	})
	if err != nil {
		return Character{}, err
	}
	return merged, nil
}

// Merge returns existing extended by res: unseen groups are appended to the
// group order and existing groups gain only refs whose fingerprint they do
// not already hold. existing is not modified.
func Merge(existing Character, res decompose.Result) Character {
	out := Character{
		ID:          existing.ID,
		Name:        existing.Name,
		GroupOrder:  slices.Clone(existing.GroupOrder),
		LayerGroups: make(map[string][]decompose.LayerRef, len(existing.LayerGroups)+len(res.GroupOrder)),
	}
	if out.GroupOrder == nil {
		out.GroupOrder = []string{}
	}
	for name, refs := range existing.LayerGroups {
		out.LayerGroups[name] = slices.Clone(refs)
	}
	for _, group := range res.GroupOrder {
		if !slices.Contains(out.GroupOrder, group) {
			out.GroupOrder = append(out.GroupOrder, group)
		}
		refs := out.LayerGroups[group]
		if refs == nil {
			refs = []decompose.LayerRef{}
		}
		for _, ref := range res.Groups[group] {
			if slices.ContainsFunc(refs, func(r decompose.LayerRef) bool { return r.Hash == ref.Hash }) {
				continue
			}
			refs = append(refs, ref)
		}
		out.LayerGroups[group] = refs
	}
	return out
}

// RemoveFingerprint drops every ref to fp from every group of every
// character and returns how many refs were removed. Groups are kept even
// when they become empty.
func (i *Index) RemoveFingerprint(ctx context.Context, fp string) (int, error) {
	fp = fingerprint.Normalize(fp)
	removed := 0
	_, err := i.store.Update(ctx, func(chars *[]Character) error {
		for ci := range *chars {
			groups := (*chars)[ci].LayerGroups
			for name, refs := range groups {
				kept := slices.DeleteFunc(slices.Clone(refs), func(r decompose.LayerRef) bool { return r.Hash == fp })
				if n := len(refs) - len(kept); n > 0 {
					removed += n
					groups[name] = kept
				}
			}
		}
		if removed == 0 {
			return jsondoc.ErrUnchanged
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Fingerprints counts references per fingerprint across the index.
func (i *Index) Fingerprints() map[string]int {
	counts := make(map[string]int)
	for _, c := range i.store.Load() {
		for _, refs := range c.LayerGroups {
			for _, ref := range refs {
				counts[ref.Hash]++
			}
		}
	}
	return counts
}

// Names returns character names sorted alphabetically.
func (i *Index) Names() []string {
	chars := i.store.Load()
	names := make([]string, 0, len(chars))
	for _, c := range chars {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// ReplaceAll rewrites fingerprint strings in the raw index file.
func (i *Index) ReplaceAll(ctx context.Context, replacements map[string]string, dryRun bool) (int, error) {
	return i.store.ReplaceAll(ctx, replacements, dryRun)
}

// Raw returns the stored index bytes.
func (i *Index) Raw() ([]byte, error) {
	return i.store.Raw()
}
