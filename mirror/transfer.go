package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/lukemcguire/sitecapture/asset"
	"github.com/lukemcguire/sitecapture/result"
	"github.com/lukemcguire/sitecapture/urlutil"
)

// StatusError is returned when a server answers with a non-2xx status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

var errTransferCanceled = errors.New("transfer cancelled")

// Fetcher streams single assets to disk and reports their lifecycle.
// One Fetcher is shared by every phase of a run so file names stay unique
// across the page and stylesheet passes.
type Fetcher struct {
	client        *http.Client
	limiter       *rate.Limiter
	observer      Observer
	log           logrus.FieldLogger
	userAgent     string
	referer       string
	assetCanceled func(asset.Category, string) bool
	names         *nameRegistry
}

// NewFetcher creates a Fetcher using client for every request. A nil
// observer discards events.
func NewFetcher(cfg Config, client *http.Client, observer Observer) *Fetcher {
	cfg = cfg.withDefaults()
	if observer == nil {
		observer = NopObserver{}
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}
	return &Fetcher{
		client:        client,
		limiter:       limiter,
		observer:      observer,
		log:           cfg.Logger,
		userAgent:     cfg.UserAgent,
		referer:       cfg.PageURL,
		assetCanceled: cfg.AssetCanceled,
		names:         newNameRegistry(),
	}
}

// transfer identifies one download. The category picks both the output
// folder and the mapping bucket.
type transfer struct {
	category       asset.Category
	url            string
	fromStylesheet bool
}

func (f *Fetcher) canceled(ctx context.Context, tr transfer) bool {
	if ctx.Err() != nil {
		return true
	}
	return f.assetCanceled != nil && f.assetCanceled(tr.category, tr.url)
}

// run downloads tr into outDir, records it in mapping on success and emits
// the terminal event. Failures never propagate.
func (f *Fetcher) run(ctx context.Context, tr transfer, outDir string, mapping *asset.Mapping) (string, bool) {
	ev := AssetEvent{Category: tr.category, URL: tr.url, Total: -1, FromStylesheet: tr.fromStylesheet}

	if f.canceled(ctx, tr) {
		f.log.Infof("CANCELLED before download: [%s] %s", tr.category, tr.url)
		ev.Kind = EventCancelled
		f.observer.AssetEvent(ev)
		return "", false
	}

	f.log.Infof("Downloading [%s] %s", tr.category, tr.url)
	rel, err := f.fetch(ctx, tr, outDir, &ev)

	switch {
	case errors.Is(err, errTransferCanceled):
		f.log.Infof("CANCELLED during download: [%s] %s", tr.category, tr.url)
		ev.Kind = EventCancelled
	case err != nil:
		ev.Kind = EventError
		ev.Err = err
		ev.ErrorCategory = result.ClassifyError(err, ev.StatusCode)
		detail := err.Error()
		if ev.StatusCode != 0 {
			detail = strconv.Itoa(ev.StatusCode)
		}
		f.log.Warnf("ERROR [%s] %s (%s)", tr.category, tr.url, detail)
	default:
		mapping.Set(tr.category, tr.url, rel)
		ev.Kind = EventDone
		ev.Path = rel
		f.log.Infof("Saved [%s] %s", tr.category, rel)
	}

	f.observer.AssetEvent(ev)
	return rel, ev.Kind == EventDone
}

// fetch streams the body in chunkSize pieces, checking both cancellation
// sources before every write. Partial files never survive a failure.
func (f *Fetcher) fetch(ctx context.Context, tr transfer, outDir string, ev *AssetEvent) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return "", errTransferCanceled
			}
			return "", fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tr.url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if f.canceled(ctx, tr) {
			return "", errTransferCanceled
		}
		return "", fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ev.StatusCode = resp.StatusCode
		return "", &StatusError{URL: tr.url, Code: resp.StatusCode}
	}

	ev.Total = resp.ContentLength
	ev.Kind = EventStart
	f.observer.AssetEvent(*ev)

	folder := tr.category.Folder()
	rel := f.names.claim(folder, urlutil.FileName(tr.url, resp.Header.Get("Content-Type")), tr.url)
	dest := filepath.Join(outDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create %s folder: %w", folder, err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", rel, err)
	}
	discard := func() {
		_ = out.Close()
		_ = os.Remove(dest)
	}

	buf := make([]byte, chunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if f.canceled(ctx, tr) {
				discard()
				return "", errTransferCanceled
			}
			if _, err := out.Write(buf[:n]); err != nil {
				discard()
				return "", fmt.Errorf("write %s: %w", rel, err)
			}
			ev.Read += int64(n)
			ev.Kind = EventProgress
			f.observer.AssetEvent(*ev)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			discard()
			if f.canceled(ctx, tr) {
				return "", errTransferCanceled
			}
			return "", fmt.Errorf("read body: %w", readErr)
		}
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("close %s: %w", rel, err)
	}
	return rel, nil
}

// nameRegistry hands out relative output paths for a run. When two URLs
// derive the same file name the later one gets a hash of its full URL.
type nameRegistry struct {
	mu     sync.Mutex
	owners map[string]string
}

func newNameRegistry() *nameRegistry {
	return &nameRegistry{owners: make(map[string]string)}
}

func (r *nameRegistry) claim(folder, name, rawURL string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel := path.Join(folder, name)
	if owner, taken := r.owners[rel]; taken && owner != rawURL {
		rel = path.Join(folder, urlutil.WithSuffix(name, urlutil.ShortHash(rawURL)))
	}
	r.owners[rel] = rawURL
	return rel
}
