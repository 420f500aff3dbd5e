package mirror

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/lukemcguire/sitecapture/asset"
)

// Rewrite points every reference with a mapping entry at its local path.
// References without one are left exactly as written. It returns the number
// of localized references.
func Rewrite(doc *goquery.Document, base *url.URL, mapping *asset.Mapping) int {
	localized := 0
	walkReferences(doc, func(site referenceSite) {
		if site.attr == "srcset" {
			candidates := parseSrcset(site.value())
			changed := false
			for i := range candidates {
				target, ok := rewriteTarget(base, mapping, site.category, candidates[i].url)
				if !ok {
					continue
				}
				candidates[i].url = target
				changed = true
				localized++
			}
			if changed {
				site.sel.SetAttr(site.attr, formatSrcset(candidates))
			}
			return
		}

		target, ok := rewriteTarget(base, mapping, site.category, site.value())
		if !ok {
			return
		}
		site.sel.SetAttr(site.attr, target)
		localized++
	})
	return localized
}

// rewriteTarget returns the local path for ref with its fragment re-appended.
// It reports false when ref was never downloaded.
func rewriteTarget(base *url.URL, mapping *asset.Mapping, category asset.Category, ref string) (string, bool) {
	key, fragment, ok := assetKey(base, ref)
	if !ok {
		return "", false
	}
	rel, mapped := mapping.Lookup(category, key)
	if !mapped {
		return "", false
	}
	return rel + fragment, true
}
