// Package asset defines the asset taxonomy shared by every stage of a mirror
// run: the six categories, the per-category URL sets discovered on a page,
// and the URL to local path mapping filled in as downloads complete.
package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Category classifies a referenced resource. It decides the output folder and,
// for references found inside stylesheets, the font vs image split.
type Category string

const (
	Image      Category = "image"
	Script     Category = "script"
	Stylesheet Category = "stylesheet"
	Video      Category = "video"
	Font       Category = "font"
	Other      Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{Image, Script, Stylesheet, Video, Font, Other}

var folders = map[Category]string{
	Image:      "img",
	Script:     "js",
	Stylesheet: "css",
	Video:      "video",
	Font:       "fonts",
	Other:      "other",
}

// Folder returns the output subfolder for the category.
func (c Category) Folder() string {
	if f, ok := folders[c]; ok {
		return f
	}
	return folders[Other]
}

// ParseCategory accepts either a category name ("image") or its folder name ("img").
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if s == string(c) || s == folders[c] {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown asset category %q", s)
}

// EnsureFolders creates the six category subfolders under dir.
func EnsureFolders(dir string) error {
	for _, c := range Categories {
		if err := os.MkdirAll(filepath.Join(dir, c.Folder()), 0o755); err != nil {
			return fmt.Errorf("create %s folder: %w", c.Folder(), err)
		}
	}
	return nil
}

// Set holds the absolute URLs discovered on a page, one set per category.
// Uniqueness is by exact URL string.
type Set map[Category]map[string]struct{}

// NewSet returns an empty set with every category present.
func NewSet() Set {
	s := make(Set, len(Categories))
	for _, c := range Categories {
		s[c] = make(map[string]struct{})
	}
	return s
}

// Add records rawURL under the category.
func (s Set) Add(c Category, rawURL string) {
	urls, ok := s[c]
	if !ok {
		urls = make(map[string]struct{})
		s[c] = urls
	}
	urls[rawURL] = struct{}{}
}

// Has reports whether rawURL is recorded under the category.
func (s Set) Has(c Category, rawURL string) bool {
	_, ok := s[c][rawURL]
	return ok
}

// URLs returns the category's URLs in sorted order.
func (s Set) URLs(c Category) []string {
	urls := make([]string, 0, len(s[c]))
	for u := range s[c] {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Len returns the number of URLs in the category.
func (s Set) Len(c Category) int {
	return len(s[c])
}

// Total returns the number of URLs across all categories.
func (s Set) Total() int {
	n := 0
	for _, urls := range s {
		n += len(urls)
	}
	return n
}

// Counts returns the per-category sizes, including empty categories.
func (s Set) Counts() map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = len(s[c])
	}
	return counts
}

// Limit returns a copy keeping at most n URLs per category, chosen by sorted
// order. A non-positive n returns an unmodified copy.
func (s Set) Limit(n int) Set {
	limited := NewSet()
	for c := range s {
		urls := s.URLs(c)
		if n > 0 && len(urls) > n {
			urls = urls[:n]
		}
		for _, u := range urls {
			limited.Add(c, u)
		}
	}
	return limited
}

// Mapping records, per category, the relative output path of every URL that
// downloaded successfully. It is safe for concurrent use.
type Mapping struct {
	mu    sync.RWMutex
	paths map[Category]map[string]string
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{paths: make(map[Category]map[string]string)}
}

// Set records rel as the local path for rawURL.
func (m *Mapping) Set(c Category, rawURL, rel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byURL, ok := m.paths[c]
	if !ok {
		byURL = make(map[string]string)
		m.paths[c] = byURL
	}
	byURL[rawURL] = rel
}

// Lookup returns the local path recorded for rawURL.
func (m *Mapping) Lookup(c Category, rawURL string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rel, ok := m.paths[c][rawURL]
	return rel, ok
}

// Entries returns a snapshot of the category's URL to path pairs.
func (m *Mapping) Entries(c Category) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.paths[c]))
	for u, rel := range m.paths[c] {
		out[u] = rel
	}
	return out
}

// Len returns the number of recorded entries across all categories.
func (m *Mapping) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, byURL := range m.paths {
		n += len(byURL)
	}
	return n
}
