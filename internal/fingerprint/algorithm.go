package fingerprint

import (
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"hash"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

var patterns = map[Algorithm]*regexp.Regexp{
	MD5:    regexp.MustCompile(`^[a-f0-9]{32}$`),
	SHA256: regexp.MustCompile(`^[a-f0-9]{64}$`),
	BLAKE3: regexp.MustCompile(`^[a-f0-9]{64}$`),
}

// ParseAlgorithm resolves a configured algorithm name.
func ParseAlgorithm(value string) (Algorithm, error) {
	alg := Algorithm(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := patterns[alg]; !ok {
		return "", fmt.Errorf("unsupported fingerprint algorithm %q", value)
	}
	return alg, nil
}

func (a Algorithm) String() string { return string(a) }

// HexLen is the length of a fingerprint produced by the algorithm.
func (a Algorithm) HexLen() int {
	if a == MD5 {
		return 32
	}
	return 64
}

// Pattern returns the anchored expression matching a bare fingerprint.
func (a Algorithm) Pattern() *regexp.Regexp {
	return patterns[a]
}

// Valid reports whether fp is a well-formed fingerprint for the algorithm.
func (a Algorithm) Valid(fp string) bool {
	p, ok := patterns[a]
	return ok && p.MatchString(fp)
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case MD5:
		return md5.New()
	case BLAKE3:
		return blake3.New()
	default:
		return sha256.New()
	}
}

// Normalize lowercases and trims a caller-supplied fingerprint. Fingerprints
// are accepted case-insensitively but stored lowercase.
func Normalize(fp string) string {
	return strings.ToLower(strings.TrimSpace(fp))
}

// LooksValid reports whether fp is lowercase hex of a length any supported
// algorithm produces.
func LooksValid(fp string) bool {
	return patterns[MD5].MatchString(fp) || patterns[SHA256].MatchString(fp)
}
