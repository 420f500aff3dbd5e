package mirror

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/atomic"

	"github.com/lukemcguire/sitecapture/asset"
	"github.com/lukemcguire/sitecapture/stylesheet"
	"github.com/lukemcguire/sitecapture/urlutil"
)

// StylesheetResolver localizes url() and @import references inside the
// stylesheets a Scheduler downloaded.
type StylesheetResolver struct {
	fetcher *Fetcher
	maxRefs int
}

// NewStylesheetResolver creates a resolver processing at most maxRefs
// references per stylesheet (0 = unlimited).
func NewStylesheetResolver(fetcher *Fetcher, maxRefs int) *StylesheetResolver {
	return &StylesheetResolver{fetcher: fetcher, maxRefs: maxRefs}
}

type sheetPlan struct {
	url  string
	rel  string
	text string
	refs []string
}

// Resolve downloads the assets referenced by every mapped stylesheet and
// rewrites each sheet in place so those references point at the local copies.
// A cancelled context stops the pass after saving the sheet in progress.
func (r *StylesheetResolver) Resolve(ctx context.Context, mapping *asset.Mapping, outDir string) {
	log := r.fetcher.log
	observer := r.fetcher.observer

	plans, total := r.plan(mapping, outDir)
	if total > 0 {
		observer.Progress(0, total, StageStylesheetAssets)
	}
	completed := atomic.NewInt64(0)

	for _, plan := range plans {
		if ctx.Err() != nil {
			log.Infof("CANCELLED before CSS processing: %s", plan.url)
			return
		}

		text := plan.text
		for _, ref := range plan.refs {
			if ctx.Err() != nil {
				break
			}
			if local, ok := r.localize(ctx, mapping, plan, ref, outDir); ok {
				text = strings.ReplaceAll(text, ref, local)
			}
			observer.Progress(int(completed.Inc()), total, StageStylesheetAssets)
		}

		dest := filepath.Join(outDir, filepath.FromSlash(plan.rel))
		if err := os.WriteFile(dest, []byte(text), 0o644); err != nil {
			log.Warnf("Failed to save processed CSS %s: %v", plan.rel, err)
		}
		if ctx.Err() != nil {
			log.Infof("CANCELLED during CSS processing: %s", plan.url)
			return
		}
	}
}

// plan reads every stylesheet once and returns the references each will
// process along with their total, in sorted stylesheet URL order.
func (r *StylesheetResolver) plan(mapping *asset.Mapping, outDir string) ([]sheetPlan, int) {
	entries := mapping.Entries(asset.Stylesheet)
	urls := make([]string, 0, len(entries))
	for u := range entries {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	var plans []sheetPlan
	total := 0
	for _, u := range urls {
		rel := entries[u]
		data, err := os.ReadFile(filepath.Join(outDir, filepath.FromSlash(rel)))
		if err != nil {
			r.fetcher.log.Warnf("Failed to read CSS %s: %v", rel, err)
			continue
		}
		text := stylesheet.Decode(data)

		refs, err := stylesheet.References(text)
		if err != nil {
			r.fetcher.log.Debugf("CSS %s only partly parsed: %v", rel, err)
		}
		if r.maxRefs > 0 && len(refs) > r.maxRefs {
			refs = refs[:r.maxRefs]
		}
		refs = resolvableRefs(refs)

		plans = append(plans, sheetPlan{url: u, rel: rel, text: text, refs: refs})
		total += len(refs)
	}
	return plans, total
}

// resolvableRefs drops data URIs, empty and fragment-only references and
// repeats, keeping first occurrences in order.
func resolvableRefs(refs []string) []string {
	seen := make(map[string]bool, len(refs))
	out := refs[:0:0]
	for _, ref := range refs {
		if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "data:") {
			continue
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

// localize resolves ref against the stylesheet URL, downloads it if needed
// and returns the replacement text relative to the stylesheet's folder.
func (r *StylesheetResolver) localize(ctx context.Context, mapping *asset.Mapping, plan sheetPlan, ref, outDir string) (string, bool) {
	abs, err := urlutil.ResolveReference(plan.url, ref)
	if err != nil {
		r.fetcher.log.Debugf("Skipping CSS reference %q: %v", ref, err)
		return "", false
	}
	key, fragment := urlutil.SplitFragment(abs)
	if !urlutil.IsHTTPScheme(key) {
		return "", false
	}

	category := asset.Image
	if urlutil.IsFontURL(key) {
		if !urlutil.IsRelative(ref) {
			r.fetcher.log.Debugf("Leaving absolute font reference %s", ref)
			return "", false
		}
		category = asset.Font
	}

	rel, ok := mapping.Lookup(category, key)
	if !ok {
		rel, ok = r.fetcher.run(ctx, transfer{category: category, url: key, fromStylesheet: true}, outDir, mapping)
		if !ok {
			return "", false
		}
	}
	return relativeTo(path.Dir(plan.rel), rel) + fragment, true
}

// relativeTo expresses target (relative to the output folder) from dir.
func relativeTo(dir, target string) string {
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(target))
	if err != nil {
		return target
	}
	return filepath.ToSlash(rel)
}
