// Package assetpool is the content-addressed file store for extracted
// layers. Every asset lives at assets/<fingerprint>.png and is written at
// most once; thumbnails live beside it under thumbnails/.
package assetpool

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/image/draw"

	"atelier/internal/fileutil"
	"atelier/internal/fingerprint"
	"atelier/internal/logging"
	"atelier/internal/services"
)

const (
	assetsSubdir     = "assets"
	thumbnailsSubdir = "thumbnails"
	assetExt         = ".png"
	thumbSuffix      = "_thumb.png"
)

// Pool manages the asset and thumbnail directories.
type Pool struct {
	assetsDir string
	thumbsDir string
	logger    *slog.Logger
}

// New returns a pool rooted at the given directories.
func New(assetsDir, thumbnailsDir string, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		assetsDir: assetsDir,
		thumbsDir: thumbnailsDir,
		logger:    logging.NewComponentLogger(logger, "assetpool"),
	}
}

// Path returns the absolute path of the asset file for fp.
func (p *Pool) Path(fp string) string {
	return filepath.Join(p.assetsDir, fp+assetExt)
}

// RelPath returns the data-directory relative path recorded in indexes.
func RelPath(fp string) string {
	return path.Join(assetsSubdir, fp+assetExt)
}

// ThumbnailPath returns the absolute path of the thumbnail for fp.
func (p *Pool) ThumbnailPath(fp string) string {
	return filepath.Join(p.thumbsDir, fp+thumbSuffix)
}

// ThumbnailRelPath returns the data-directory relative thumbnail path.
func ThumbnailRelPath(fp string) string {
	return path.Join(thumbnailsSubdir, fp+thumbSuffix)
}

// Exists reports whether the asset file for fp is present.
func (p *Pool) Exists(fp string) bool {
	return fileutil.Exists(p.Path(fp))
}

// ThumbnailExists reports whether the thumbnail for fp is present.
func (p *Pool) ThumbnailExists(fp string) bool {
	return fileutil.Exists(p.ThumbnailPath(fp))
}

// Store writes img under fp unless a file already exists there. The content
// is encoded with the fingerprint PNG encoder so the stored bytes are the
// bytes that were hashed.
func (p *Pool) Store(fp string, img image.Image) (string, bool, error) {
	dst := p.Path(fp)
	if fileutil.Exists(dst) {
		return dst, false, nil
	}
	err := fileutil.WriteAtomic(dst, 0o644, func(w io.Writer) error {
		return fingerprint.EncodePNG(w, img)
	})
	if err != nil {
		return "", false, services.Wrap(services.ErrIOFailure, "assetpool", "store", fp, err)
	}
	p.logger.Debug("asset stored", logging.Fingerprint(fp))
	return dst, true, nil
}

// StoreThumbnail writes a downscaled copy of img whose longest edge is at
// most maxEdge. Existing thumbnails are left untouched.
func (p *Pool) StoreThumbnail(fp string, img image.Image, maxEdge int) (string, bool, error) {
	dst := p.ThumbnailPath(fp)
	if fileutil.Exists(dst) {
		return dst, false, nil
	}
	thumb := scaleToFit(img, maxEdge)
	err := fileutil.WriteAtomic(dst, 0o644, func(w io.Writer) error {
		return png.Encode(w, thumb)
	})
	if err != nil {
		return "", false, services.Wrap(services.ErrIOFailure, "assetpool", "store thumbnail", fp, err)
	}
	return dst, true, nil
}

// Remove deletes the asset file. Removing an absent file is a no-op.
func (p *Pool) Remove(fp string) (bool, error) {
	removed, err := fileutil.RemoveIfExists(p.Path(fp))
	if err != nil {
		return false, services.Wrap(services.ErrIOFailure, "assetpool", "remove", fp, err)
	}
	return removed, nil
}

// RemoveThumbnail deletes the thumbnail file. Removing an absent file is a no-op.
func (p *Pool) RemoveThumbnail(fp string) (bool, error) {
	removed, err := fileutil.RemoveIfExists(p.ThumbnailPath(fp))
	if err != nil {
		return false, services.Wrap(services.ErrIOFailure, "assetpool", "remove thumbnail", fp, err)
	}
	return removed, nil
}

// RenameOutcome describes what a rename did.
type RenameOutcome int

const (
	// RenameMissing means the old file did not exist.
	RenameMissing RenameOutcome = iota
	// Renamed means the old file was moved to the new name.
	Renamed
	// RenameDeduplicated means a file already existed under the new name
	// and the old file was removed instead.
	RenameDeduplicated
)

func (o RenameOutcome) String() string {
	switch o {
	case Renamed:
		return "renamed"
	case RenameDeduplicated:
		return "deduplicated"
	default:
		return "missing"
	}
}

// Rename moves the asset file for oldFP to newFP. When newFP already exists
// it wins and the old file is removed.
func (p *Pool) Rename(oldFP, newFP string) (RenameOutcome, error) {
	outcome, err := renameWinning(p.Path(oldFP), p.Path(newFP))
	if err != nil {
		return outcome, services.Wrap(services.ErrIOFailure, "assetpool", "rename", oldFP+" -> "+newFP, err)
	}
	return outcome, nil
}

// RenameThumbnail is Rename for thumbnail files.
func (p *Pool) RenameThumbnail(oldFP, newFP string) (RenameOutcome, error) {
	outcome, err := renameWinning(p.ThumbnailPath(oldFP), p.ThumbnailPath(newFP))
	if err != nil {
		return outcome, services.Wrap(services.ErrIOFailure, "assetpool", "rename thumbnail", oldFP+" -> "+newFP, err)
	}
	return outcome, nil
}

func renameWinning(oldPath, newPath string) (RenameOutcome, error) {
	if !fileutil.Exists(oldPath) {
		return RenameMissing, nil
	}
	if fileutil.Exists(newPath) {
		if _, err := fileutil.RemoveIfExists(oldPath); err != nil {
			return RenameMissing, err
		}
		return RenameDeduplicated, nil
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return RenameMissing, err
	}
	return Renamed, nil
}

// Scan lists fingerprints of asset files whose stem matches pattern, sorted.
// A nil pattern lists every asset.
func (p *Pool) Scan(pattern *regexp.Regexp) ([]string, error) {
	entries, err := os.ReadDir(p.assetsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrIOFailure, "assetpool", "scan", p.assetsDir, err)
	}
	var out []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, assetExt) {
			continue
		}
		stem := strings.TrimSuffix(name, assetExt)
		if pattern != nil && !pattern.MatchString(stem) {
			continue
		}
		out = append(out, stem)
	}
	sort.Strings(out)
	return out, nil
}

// FileInfo is what the pool knows about a stored asset.
type FileInfo struct {
	Width  int
	Height int
	Size   int64
}

// Stat reads the size and pixel dimensions of the asset file for fp.
func (p *Pool) Stat(fp string) (FileInfo, error) {
	f, err := os.Open(p.Path(fp))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileInfo{}, services.Wrap(services.ErrNotFound, "assetpool", "stat", fp, err)
		}
		return FileInfo{}, services.Wrap(services.ErrIOFailure, "assetpool", "stat", fp, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return FileInfo{}, services.Wrap(services.ErrIOFailure, "assetpool", "stat", fp, err)
	}
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return FileInfo{}, services.Wrap(services.ErrCorrupt, "assetpool", "stat", fp, fmt.Errorf("decode png header: %w", err))
	}
	return FileInfo{Width: cfg.Width, Height: cfg.Height, Size: info.Size()}, nil
}

// scaleToFit downsamples img so neither edge exceeds maxEdge. Images that
// already fit, or a non-positive maxEdge, are returned unscaled.
func scaleToFit(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return img
	}
	tw, th := maxEdge, maxEdge
	if w >= h {
		th = max(1, h*maxEdge/w)
	} else {
		tw = max(1, w*maxEdge/h)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
