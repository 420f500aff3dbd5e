package mirror

import (
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lukemcguire/sitecapture/asset"
	"github.com/lukemcguire/sitecapture/urlutil"
)

// referenceSite is one attribute of one element that references an asset.
type referenceSite struct {
	sel      *goquery.Selection
	attr     string
	category asset.Category
}

func (s referenceSite) value() string {
	return s.sel.AttrOr(s.attr, "")
}

// Link relations that never produce a download, even alongside a collected rel.
var ignoredRels = []string{"preconnect", "dns-prefetch", "prefetch", "prerender", "modulepreload"}

var otherRels = []string{"icon", "apple-touch-icon", "manifest"}

// walkReferences visits every asset reference in document order per rule.
// Extraction and rewriting both go through it so they classify identically.
func walkReferences(doc *goquery.Document, visit func(referenceSite)) {
	doc.Find("img, source").Each(func(_ int, s *goquery.Selection) {
		if isVideoSource(s) {
			if _, ok := s.Attr("src"); ok {
				visit(referenceSite{sel: s, attr: "src", category: asset.Video})
			}
			return
		}
		for _, attr := range []string{"src", "srcset"} {
			if _, ok := s.Attr(attr); ok {
				visit(referenceSite{sel: s, attr: attr, category: asset.Image})
			}
		}
	})

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		visit(referenceSite{sel: s, attr: "src", category: asset.Script})
	})

	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		if category, ok := linkCategory(s); ok {
			visit(referenceSite{sel: s, attr: "href", category: category})
		}
	})

	doc.Find("video[src], track[src]").Each(func(_ int, s *goquery.Selection) {
		visit(referenceSite{sel: s, attr: "src", category: asset.Video})
	})

	doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		visit(referenceSite{sel: s, attr: "src", category: asset.Other})
	})
}

// isVideoSource reports whether a <source> belongs to a media element.
func isVideoSource(s *goquery.Selection) bool {
	if goquery.NodeName(s) != "source" {
		return false
	}
	switch goquery.NodeName(s.Parent()) {
	case "video", "audio":
		return true
	}
	typ := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
	return strings.HasPrefix(typ, "video/")
}

func linkCategory(s *goquery.Selection) (asset.Category, bool) {
	rels := strings.Fields(strings.ToLower(s.AttrOr("rel", "")))
	has := func(rel string) bool { return slices.Contains(rels, rel) }

	if has("stylesheet") {
		return asset.Stylesheet, true
	}
	if has("preload") {
		as := strings.ToLower(strings.TrimSpace(s.AttrOr("as", "")))
		return asset.Stylesheet, as == "style"
	}
	if slices.ContainsFunc(ignoredRels, has) {
		return "", false
	}
	if slices.ContainsFunc(otherRels, has) {
		return asset.Other, true
	}
	return "", false
}

// Extract collects the asset URLs referenced by doc, resolved against base.
// It does not modify doc.
func Extract(doc *goquery.Document, base *url.URL) asset.Set {
	set := asset.NewSet()
	walkReferences(doc, func(site referenceSite) {
		if site.attr == "srcset" {
			for _, c := range parseSrcset(site.value()) {
				if key, _, ok := assetKey(base, c.url); ok {
					set.Add(site.category, key)
				}
			}
			return
		}
		if key, _, ok := assetKey(base, site.value()); ok {
			set.Add(site.category, key)
		}
	})
	return set
}

// assetKey resolves ref against base and splits off the fragment.
// It reports false for empty, fragment-only and non-http(s) references.
func assetKey(base *url.URL, ref string) (key, fragment string, ok bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", "", false
	}
	abs, err := urlutil.Resolve(base, ref)
	if err != nil || !urlutil.IsHTTPScheme(abs) {
		return "", "", false
	}
	key, fragment = urlutil.SplitFragment(abs)
	return key, fragment, true
}

type srcsetCandidate struct {
	url         string
	descriptors []string
}

func (c srcsetCandidate) String() string {
	return strings.Join(append([]string{c.url}, c.descriptors...), " ")
}

// parseSrcset splits a srcset value into candidates. The first whitespace
// separated token of each comma separated entry is the URL.
func parseSrcset(value string) []srcsetCandidate {
	var candidates []srcsetCandidate
	for _, entry := range strings.Split(value, ",") {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		candidates = append(candidates, srcsetCandidate{url: fields[0], descriptors: fields[1:]})
	}
	return candidates
}

func formatSrcset(candidates []srcsetCandidate) string {
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}
