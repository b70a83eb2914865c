package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// infoFieldLimit caps the fields printed on info and above; debug lines
// print everything.
const infoFieldLimit = 8

// consoleHandler writes one line per record:
//
//	2026-01-02 15:04:05.000 INF [ingest] hero (01-hero.ora): layer pooled fingerprint=0123456789ab
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	preset    []field
	prefix    string
}

type field struct {
	key string
	val slog.Value
}

func newConsoleHandler(w io.Writer, lvl slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]field, 0, len(h.preset)+r.NumAttrs())
	fields = append(fields, h.preset...)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, a)
		return true
	})
	fields = lastWins(fields)

	var component, character, document string
	rest := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = f.val.String()
		case FieldCharacter:
			character = f.val.String()
		case FieldDocument:
			document = f.val.String()
		default:
			rest = append(rest, f)
		}
	}

	var b strings.Builder
	b.WriteString(consoleTime(r.Time))
	b.WriteByte(' ')
	b.WriteString(levelTag(int(r.Level)))
	if component != "" {
		b.WriteString(" [" + component + "]")
	}
	if subject := subjectOf(character, document); subject != "" {
		b.WriteString(" " + subject)
	}
	b.WriteString(": ")
	if msg := strings.TrimSpace(r.Message); msg != "" {
		b.WriteString(msg)
	} else {
		b.WriteString("(no message)")
	}

	shown := rest
	if r.Level >= slog.LevelInfo && len(shown) > infoFieldLimit {
		shown = shown[:infoFieldLimit]
	}
	for _, f := range shown {
		b.WriteByte(' ')
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(consoleValue(f.key, f.val.Any()))
	}
	if hidden := len(rest) - len(shown); hidden > 0 {
		b.WriteString(" (+" + strconv.Itoa(hidden) + " more)")
	}
	if h.addSource && r.PC != 0 {
		if src := r.Source(); src != nil {
			b.WriteString(" @" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line))
		}
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = append([]field(nil), h.preset...)
	for _, a := range attrs {
		next.preset = appendAttr(next.preset, h.prefix, a)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// subjectOf names what a line is about: "hero (01-hero.ora)", "hero", or
// the bare document.
func subjectOf(character, document string) string {
	character = strings.TrimSpace(character)
	document = strings.TrimSpace(document)
	switch {
	case character != "" && document != "":
		return character + " (" + document + ")"
	case character != "":
		return character
	default:
		return document
	}
}

// appendAttr flattens groups into dotted keys.
func appendAttr(dst []field, prefix string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, member := range a.Value.Group() {
			dst = appendAttr(dst, prefix, member)
		}
		return dst
	}
	if a.Key == "" {
		return dst
	}
	return append(dst, field{key: prefix + a.Key, val: a.Value})
}

// lastWins keeps the first position of each key with its latest value, so a
// context field re-applied by WithContext does not print twice.
func lastWins(fields []field) []field {
	if len(fields) < 2 {
		return fields
	}
	at := make(map[string]int, len(fields))
	out := make([]field, 0, len(fields))
	for _, f := range fields {
		if i, ok := at[f.key]; ok {
			out[i].val = f.val
			continue
		}
		at[f.key] = len(out)
		out = append(out, f)
	}
	return out
}
