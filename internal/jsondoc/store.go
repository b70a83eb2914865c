package jsondoc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"atelier/internal/fileutil"
	"atelier/internal/logging"
	"atelier/internal/services"
)

// ErrUnchanged may be returned by an Update callback to skip the write
// while still reporting success.
var ErrUnchanged = errors.New("document unchanged")

const lockRetryDelay = 25 * time.Millisecond

// Store guards one JSON document of type T.
type Store[T any] struct {
	path   string
	lock   *flock.Flock
	empty  func() T
	logger *slog.Logger
	mu     sync.RWMutex
}

// New returns a store for the document at path. empty builds the value
// used when the file is missing or unreadable.
func New[T any](path string, empty func() T, logger *slog.Logger) *Store[T] {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store[T]{
		path:   path,
		lock:   flock.New(path + ".lock"),
		empty:  empty,
		logger: logging.NewComponentLogger(logger, "jsondoc").With(logging.String("path", path)),
	}
}

// Path returns the document location.
func (s *Store[T]) Path() string {
	return s.path
}

// Load returns the current document. It never fails: a missing, unreadable,
// or corrupt file yields the empty document, and corruption is logged.
func (s *Store[T]) Load() T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.read()
	if err != nil {
		s.warnCorrupt(err)
		return s.empty()
	}
	return doc
}

// Update applies fn to the latest saved document inside the single-writer
// section and saves the result. If fn fails nothing is written.
func (s *Store[T]) Update(ctx context.Context, fn func(doc *T) error) (T, error) {
	var zero T
	unlock, err := s.acquire(ctx)
	if err != nil {
		return zero, err
	}
	defer unlock()

	doc, err := s.read()
	if err != nil {
		s.warnCorrupt(err)
		if backupErr := s.backupCorrupt(); backupErr != nil {
			return zero, backupErr
		}
		doc = s.empty()
	}
	if err := fn(&doc); err != nil {
		if errors.Is(err, ErrUnchanged) {
			return doc, nil
		}
		return zero, err
	}
	if err := s.write(doc); err != nil {
		return zero, err
	}
	return doc, nil
}

// ReplaceAll rewrites every occurrence of each key of replacements with its
// value in the raw document bytes and returns how many occurrences were
// found. Replacement is a single pass, so a value is never rewritten by
// another key. With dryRun set the file is left untouched.
func (s *Store[T]) ReplaceAll(ctx context.Context, replacements map[string]string, dryRun bool) (int, error) {
	if len(replacements) == 0 {
		return 0, nil
	}
	unlock, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, services.Wrap(services.ErrIOFailure, "jsondoc", "replace", s.path, err)
	}
	content := string(raw)

	keys := make([]string, 0, len(replacements))
	for old := range replacements {
		if old != "" {
			keys = append(keys, old)
		}
	}
	// Longer keys first so a key that prefixes another cannot shadow it.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	count := 0
	pairs := make([]string, 0, len(keys)*2)
	for _, old := range keys {
		count += strings.Count(content, old)
		pairs = append(pairs, old, replacements[old])
	}
	if dryRun || count == 0 {
		return count, nil
	}
	updated := strings.NewReplacer(pairs...).Replace(content)
	if err := fileutil.WriteFileAtomic(s.path, []byte(updated), 0o644); err != nil {
		return 0, services.Wrap(services.ErrIOFailure, "jsondoc", "replace", s.path, err)
	}
	return count, nil
}

// Raw returns the document bytes as stored, or nil when the file is absent.
func (s *Store[T]) Raw() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return raw, err
}

func (s *Store[T]) acquire(ctx context.Context) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.mu.Unlock()
		return nil, services.Wrap(services.ErrIOFailure, "jsondoc", "lock", s.path, err)
	}
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		s.mu.Unlock()
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, services.Wrap(services.ErrLocked, "jsondoc", "lock", s.path, err)
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release document lock", logging.Error(err))
		}
		s.mu.Unlock()
	}, nil
}

func (s *Store[T]) read() (T, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.empty(), nil
		}
		return s.empty(), fmt.Errorf("read document: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return s.empty(), nil
	}
	doc := s.empty()
	if err := json.Unmarshal(raw, &doc); err != nil {
		return s.empty(), fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (s *Store[T]) write(doc T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, buf.Bytes(), 0o644); err != nil {
		return services.Wrap(services.ErrIOFailure, "jsondoc", "write", s.path, err)
	}
	return nil
}

// backupCorrupt keeps an unparseable document aside before it is replaced.
func (s *Store[T]) backupCorrupt() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return services.Wrap(services.ErrIOFailure, "jsondoc", "backup", s.path, err)
	}
	backup := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("20060102T150405"))
	if err := fileutil.WriteFileAtomic(backup, raw, 0o644); err != nil {
		return services.Wrap(services.ErrIOFailure, "jsondoc", "backup", s.path, err)
	}
	s.logger.Warn("corrupt document saved aside",
		logging.String("backup", backup),
		logging.String(logging.FieldEventType, "jsondoc_backup"),
	)
	return nil
}

func (s *Store[T]) warnCorrupt(err error) {
	logging.WarnWithContext(s.logger, "document unreadable; using empty document",
		"jsondoc_load_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "fix or remove the file; the next write keeps a .corrupt copy"),
		logging.String(logging.FieldImpact, "existing entries are not visible"),
	)
}
