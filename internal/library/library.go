// Package library maintains the curated category, subfolder, and asset
// reference taxonomy stored as a single JSON document.
package library

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"atelier/internal/fingerprint"
	"atelier/internal/jsondoc"
	"atelier/internal/logging"
	"atelier/internal/services"
)

// AssetRef points a subfolder entry at a pooled asset.
type AssetRef struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// Subfolder groups asset refs inside a category.
type Subfolder struct {
	Name   string     `json:"name"`
	Assets []AssetRef `json:"assets"`
}

// Category is a top-level taxonomy node.
type Category struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	ZIndex     int         `json:"z_index"`
	Subfolders []Subfolder `json:"subfolders"`
}

// Document is the whole library file.
type Document struct {
	Categories []Category `json:"categories"`
}

func emptyDocument() Document {
	return Document{Categories: []Category{}}
}

// Index is the library document store.
type Index struct {
	store  *jsondoc.Store[Document]
	logger *slog.Logger
}

// New opens the library at path. The file is created on first write.
func New(path string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Index{
		store:  jsondoc.New(path, emptyDocument, logger),
		logger: logging.NewComponentLogger(logger, "library"),
	}
}

// Path returns the library file location.
func (i *Index) Path() string {
	return i.store.Path()
}

// Get returns the whole library.
func (i *Index) Get() Document {
	return i.store.Load()
}

// Category returns one category by id.
func (i *Index) Category(id string) (Category, error) {
	doc := i.store.Load()
	idx := categoryIndex(doc, id)
	if idx < 0 {
		return Category{}, categoryNotFound("get", id)
	}
	return doc.Categories[idx], nil
}

func newCategoryID() string {
	return "cat_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func categoryIndex(doc Document, id string) int {
	return slices.IndexFunc(doc.Categories, func(c Category) bool { return c.ID == id })
}

func subfolderIndex(cat Category, name string) int {
	return slices.IndexFunc(cat.Subfolders, func(s Subfolder) bool { return s.Name == name })
}

func categoryNotFound(operation, id string) error {
	return services.Wrap(services.ErrNotFound, "library", operation, "no category "+id, nil)
}

func subfolderNotFound(operation, catID, name string) error {
	return services.Wrap(services.ErrNotFound, "library", operation, "no subfolder "+name+" in "+catID, nil)
}

func requireName(operation, field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", services.Wrap(services.ErrValidation, "library", operation, field+" is required", nil)
	}
	return trimmed, nil
}

// mutateCategory runs fn on the category with id inside one update and
// returns the saved category.
func (i *Index) mutateCategory(ctx context.Context, operation, id string, fn func(cat *Category) error) (Category, error) {
	var out Category
	_, err := i.store.Update(ctx, func(doc *Document) error {
		idx := categoryIndex(*doc, id)
		if idx < 0 {
			return categoryNotFound(operation, id)
		}
		cat := &doc.Categories[idx]
		err := fn(cat)
		out = *cat
		return err
	})
	if err != nil {
		return Category{}, err
	}
	return out, nil
}

// CreateCategory appends a new empty category.
func (i *Index) CreateCategory(ctx context.Context, name string, zIndex int) (Category, error) {
	name, err := requireName("create category", "name", name)
	if err != nil {
		return Category{}, err
	}
	cat := Category{ID: newCategoryID(), Name: name, ZIndex: zIndex, Subfolders: []Subfolder{}}
	if _, err := i.store.Update(ctx, func(doc *Document) error {
		doc.Categories = append(doc.Categories, cat)
		return nil
	}); err != nil {
		return Category{}, err
	}
	i.logger.Info("category created", logging.String("category_id", cat.ID), logging.String("name", name))
	return cat, nil
}

// UpdateCategory changes the name and/or ordering index of a category.
// Nil arguments leave the field unchanged.
func (i *Index) UpdateCategory(ctx context.Context, id string, name *string, zIndex *int) (Category, error) {
	var newName string
	if name != nil {
		var err error
		if newName, err = requireName("update category", "name", *name); err != nil {
			return Category{}, err
		}
	}
	return i.mutateCategory(ctx, "update category", id, func(cat *Category) error {
		if name == nil && zIndex == nil {
			return jsondoc.ErrUnchanged
		}
		if name != nil {
			cat.Name = newName
		}
		if zIndex != nil {
			cat.ZIndex = *zIndex
		}
		return nil
	})
}

// DeleteCategory removes a category and everything in it.
func (i *Index) DeleteCategory(ctx context.Context, id string) error {
	_, err := i.store.Update(ctx, func(doc *Document) error {
		idx := categoryIndex(*doc, id)
		if idx < 0 {
			return categoryNotFound("delete category", id)
		}
		doc.Categories = slices.Delete(doc.Categories, idx, idx+1)
		return nil
	})
	return err
}

// CreateSubfolder adds an empty subfolder. An existing subfolder with the
// same name is left as is.
func (i *Index) CreateSubfolder(ctx context.Context, catID, name string) (Category, error) {
	name, err := requireName("create subfolder", "subfolder name", name)
	if err != nil {
		return Category{}, err
	}
	return i.mutateCategory(ctx, "create subfolder", catID, func(cat *Category) error {
		if subfolderIndex(*cat, name) >= 0 {
			return jsondoc.ErrUnchanged
		}
		cat.Subfolders = append(cat.Subfolders, Subfolder{Name: name, Assets: []AssetRef{}})
		return nil
	})
}

// RenameSubfolder renames oldName to newName. Renaming onto another
// existing subfolder is rejected.
func (i *Index) RenameSubfolder(ctx context.Context, catID, oldName, newName string) (Category, error) {
	newName, err := requireName("rename subfolder", "new name", newName)
	if err != nil {
		return Category{}, err
	}
	return i.mutateCategory(ctx, "rename subfolder", catID, func(cat *Category) error {
		idx := subfolderIndex(*cat, oldName)
		if idx < 0 {
			return subfolderNotFound("rename subfolder", catID, oldName)
		}
		if oldName == newName {
			return jsondoc.ErrUnchanged
		}
		if subfolderIndex(*cat, newName) >= 0 {
			return services.Wrap(services.ErrValidation, "library", "rename subfolder",
				"subfolder "+newName+" already exists in "+catID, nil)
		}
		cat.Subfolders[idx].Name = newName
		return nil
	})
}

// DeleteSubfolder removes a subfolder and its refs.
func (i *Index) DeleteSubfolder(ctx context.Context, catID, name string) (Category, error) {
	return i.mutateCategory(ctx, "delete subfolder", catID, func(cat *Category) error {
		idx := subfolderIndex(*cat, name)
		if idx < 0 {
			return subfolderNotFound("delete subfolder", catID, name)
		}
		cat.Subfolders = slices.Delete(cat.Subfolders, idx, idx+1)
		return nil
	})
}

// AddAsset files a ref to hash under the subfolder. A ref with the same
// hash already present is left as is.
func (i *Index) AddAsset(ctx context.Context, catID, subfolder, name, hash string) (Category, error) {
	hash = fingerprint.Normalize(hash)
	if !fingerprint.LooksValid(hash) {
		return Category{}, services.Wrap(services.ErrValidation, "library", "add asset", "malformed fingerprint "+hash, nil)
	}
	return i.mutateCategory(ctx, "add asset", catID, func(cat *Category) error {
		idx := subfolderIndex(*cat, subfolder)
		if idx < 0 {
			return subfolderNotFound("add asset", catID, subfolder)
		}
		sub := &cat.Subfolders[idx]
		if slices.ContainsFunc(sub.Assets, func(a AssetRef) bool { return a.Hash == hash }) {
			return jsondoc.ErrUnchanged
		}
		sub.Assets = append(sub.Assets, AssetRef{Name: strings.TrimSpace(name), Hash: hash})
		return nil
	})
}

// RemoveAsset drops the ref to hash from one subfolder.
func (i *Index) RemoveAsset(ctx context.Context, catID, subfolder, hash string) (Category, error) {
	hash = fingerprint.Normalize(hash)
	return i.mutateCategory(ctx, "remove asset", catID, func(cat *Category) error {
		idx := subfolderIndex(*cat, subfolder)
		if idx < 0 {
			return subfolderNotFound("remove asset", catID, subfolder)
		}
		sub := &cat.Subfolders[idx]
		before := len(sub.Assets)
		sub.Assets = slices.DeleteFunc(sub.Assets, func(a AssetRef) bool { return a.Hash == hash })
		if len(sub.Assets) == before {
			return services.Wrap(services.ErrNotFound, "library", "remove asset", "no ref to "+hash+" in "+subfolder, nil)
		}
		return nil
	})
}

// RemoveFingerprint drops every ref to fp from every subfolder and returns
// how many refs were removed.
func (i *Index) RemoveFingerprint(ctx context.Context, fp string) (int, error) {
	fp = fingerprint.Normalize(fp)
	removed := 0
	_, err := i.store.Update(ctx, func(doc *Document) error {
		for ci := range doc.Categories {
			subs := doc.Categories[ci].Subfolders
			for si := range subs {
				before := len(subs[si].Assets)
				subs[si].Assets = slices.DeleteFunc(subs[si].Assets, func(a AssetRef) bool { return a.Hash == fp })
				removed += before - len(subs[si].Assets)
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

// Fingerprints counts references per fingerprint across the library.
func (i *Index) Fingerprints() map[string]int {
	counts := make(map[string]int)
	for _, cat := range i.store.Load().Categories {
		for _, sub := range cat.Subfolders {
			for _, ref := range sub.Assets {
				counts[ref.Hash]++
			}
		}
	}
	return counts
}

// ReplaceAll rewrites fingerprint strings in the raw library file.
func (i *Index) ReplaceAll(ctx context.Context, replacements map[string]string, dryRun bool) (int, error) {
	return i.store.ReplaceAll(ctx, replacements, dryRun)
}

// Raw returns the stored library bytes.
func (i *Index) Raw() ([]byte, error) {
	return i.store.Raw()
}
