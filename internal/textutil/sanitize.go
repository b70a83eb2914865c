package textutil

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// nameReplacer replaces filesystem-unsafe characters with underscores.
var nameReplacer = strings.NewReplacer(
	"<", "_",
	">", "_",
	":", "_",
	"\"", "_",
	"/", "_",
	"\\", "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// orderPrefix matches the numeric ordering prefix studios put on document
// names (e.g. "03-villain.psd").
var orderPrefix = regexp.MustCompile(`^\d+-`)

// SanitizeName replaces filesystem-unsafe characters in a layer, group, or
// character name with underscores and trims surrounding whitespace.
func SanitizeName(name string) string {
	name = norm.NFC.String(name)
	return strings.TrimSpace(nameReplacer.Replace(name))
}

// CharacterName derives the character a document belongs to from its file
// name: directory and extension are dropped, then a leading "<digits>-"
// ordering prefix is removed.
func CharacterName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = orderPrefix.ReplaceAllString(base, "")
	return strings.TrimSpace(norm.NFC.String(base))
}

// NormalizeName returns the NFC form of a display name with surrounding
// whitespace removed.
func NormalizeName(name string) string {
	return strings.TrimSpace(norm.NFC.String(name))
}
