// Package fsutil names and allocates the per-run output directory.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	separators  = regexp.MustCompile(`[\\/]+`)
	disallowed  = regexp.MustCompile(`[^\w\s-]`)
	dashRuns    = regexp.MustCompile(`[\s-]+`)
	defaultSlug = "site"
)

// Slugify turns a human label into a directory-safe ASCII slug: accents are
// folded, path separators become dashes, anything other than word characters,
// whitespace and dashes is dropped, and runs of whitespace or dashes collapse
// to a single dash. An empty result becomes "site".
func Slugify(label string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		label,
	)
	if err != nil {
		folded = label
	}
	ascii := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)

	slug := separators.ReplaceAllString(ascii, "-")
	slug = disallowed.ReplaceAllString(strings.ToLower(slug), "")
	slug = strings.Trim(dashRuns.ReplaceAllString(slug, "-"), "-")
	if slug == "" {
		return defaultSlug
	}
	return slug
}

// UniqueDir creates and returns a new directory named name under root. When
// the name is taken, "-2", "-3", ... are tried in turn. root is created when
// missing.
func UniqueDir(root, name string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create output root: %w", err)
	}

	candidate := filepath.Join(root, name)
	for i := 2; ; i++ {
		err := os.Mkdir(candidate, 0o755)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create output directory %s: %w", candidate, err)
		}
		candidate = filepath.Join(root, fmt.Sprintf("%s-%d", name, i))
	}
}
