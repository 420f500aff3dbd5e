// Package mirror captures a single web page for offline viewing. It fetches
// the page, downloads the assets it references, localizes stylesheet
// references and rewrites the markup to point at the local copies.
package mirror

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lukemcguire/sitecapture/asset"
	"github.com/lukemcguire/sitecapture/fsutil"
	"github.com/lukemcguire/sitecapture/result"
	"github.com/lukemcguire/sitecapture/urlutil"
	"github.com/lukemcguire/sitecapture/variant"
)

// ErrCanceled is returned when a run stops because its context was cancelled.
// Returned errors also match context.Canceled.
var ErrCanceled = errors.New("mirror canceled")

const (
	indexFile      = "index.html"
	localIndexFile = "local-index.html"
)

// Mirror runs one page capture.
type Mirror struct {
	cfg         Config
	pageURL     *url.URL
	pageClient  *http.Client
	assetClient *http.Client
	observer    Observer
	log         logrus.FieldLogger
}

// New creates a Mirror for cfg. The observer may be nil.
func New(cfg Config, observer Observer) (*Mirror, error) {
	cfg = cfg.withDefaults()

	pageURL, err := urlutil.ParsePageURL(cfg.PageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}
	cfg.PageURL = pageURL.String()

	if observer == nil {
		observer = NopObserver{}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = cfg.Concurrency
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for broken certificates
	}

	return &Mirror{
		cfg:         cfg,
		pageURL:     pageURL,
		pageClient:  &http.Client{Transport: transport, Timeout: cfg.PageTimeout},
		assetClient: &http.Client{Transport: transport},
		observer:    observer,
		log:         cfg.Logger,
	}, nil
}

// Run executes the capture. A failed page fetch is fatal; asset failures are
// reported through the observer and never fail the run. When ctx is cancelled
// Run returns an error wrapping ErrCanceled and leaves partial output on disk.
func (m *Mirror) Run(ctx context.Context) (*result.Result, error) {
	start := time.Now()

	if m.cfg.Render {
		m.log.Warn("Dynamic rendering is not supported; capturing the served markup")
	}

	if m.cfg.RespectRobots {
		robots := NewRobotsChecker(m.pageClient)
		allowed, robotsErr := robots.Allowed(ctx, m.pageURL, m.cfg.UserAgent)
		if robotsErr != nil {
			m.log.Warnf("robots.txt check: %v", robotsErr)
		}
		if !allowed {
			return nil, fmt.Errorf("page %s is disallowed by robots.txt", m.pageURL)
		}
	}

	slug := fsutil.Slugify(m.cfg.Label)
	folder, err := fsutil.UniqueDir(m.cfg.OutputRoot, slug)
	if err != nil {
		return nil, err
	}
	if err := asset.EnsureFolders(folder); err != nil {
		return nil, err
	}
	m.log.Infof("Output folder: %s", folder)

	m.log.Infof("Fetching page %s", m.pageURL)
	page, err := fetchPageWithRetry(ctx, m.pageClient, m.pageURL.String(), m.cfg.UserAgent, m.cfg.RetryPolicy, m.log)
	if err != nil {
		if ctx.Err() != nil {
			return nil, m.canceled(ctx, "saving page source")
		}
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	if err := m.checkpoint(ctx, "saving page source"); err != nil {
		return nil, err
	}

	indexPath := filepath.Join(folder, indexFile)
	if err := os.WriteFile(indexPath, page.Body, 0o644); err != nil {
		m.log.Warnf("Failed to write raw %s; continuing: %v", indexFile, err)
	} else {
		m.log.Infof("Saved main page source -> %s", indexFile)
	}

	doc, err := page.Document()
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	set := Extract(doc, page.URL)
	if m.cfg.MaxPerCategory > 0 {
		set = set.Limit(m.cfg.MaxPerCategory)
	}
	m.log.Infof("Collected %d primary assets", set.Total())

	if err := m.checkpoint(ctx, "asset downloads"); err != nil {
		return nil, err
	}
	fetcher := NewFetcher(m.cfg, m.assetClient, m.observer)
	mapping := NewScheduler(fetcher, m.cfg.Concurrency).FetchAll(ctx, set, folder)

	if err := m.checkpoint(ctx, "CSS processing"); err != nil {
		return nil, err
	}
	NewStylesheetResolver(fetcher, m.cfg.MaxStylesheetRefs).Resolve(ctx, mapping, folder)

	if err := m.checkpoint(ctx, "rewriting page"); err != nil {
		return nil, err
	}
	rewritten := Rewrite(doc, page.URL, mapping)
	m.log.Debugf("Rewrote %d references", rewritten)

	if err := m.checkpoint(ctx, "saving localized page"); err != nil {
		return nil, err
	}
	localIndexPath := filepath.Join(folder, localIndexFile)
	if markup, renderErr := doc.Html(); renderErr != nil {
		m.log.Warnf("Failed to render localized page: %v", renderErr)
	} else if writeErr := os.WriteFile(localIndexPath, []byte(markup), 0o644); writeErr != nil {
		m.log.Warnf("Failed to write %s: %v", localIndexFile, writeErr)
	} else {
		m.log.Infof("Saved localized page -> %s", localIndexFile)
	}

	if err := m.checkpoint(ctx, "generating "+variant.FileName); err != nil {
		return nil, err
	}
	if _, err := variant.Generate(folder, m.cfg.Label); err != nil {
		m.log.Warnf("Failed to generate %s: %v", variant.FileName, err)
	} else {
		m.log.Infof("Saved PHP content -> %s", variant.FileName)
	}

	return &result.Result{
		ProductName:    m.cfg.Label,
		Slug:           slug,
		Root:           m.cfg.OutputRoot,
		Folder:         folder,
		IndexPath:      indexPath,
		LocalIndexPath: localIndexPath,
		Counts:         set.Counts(),
		Duration:       time.Since(start),
	}, nil
}

// checkpoint returns a cancellation error when ctx is done.
func (m *Mirror) checkpoint(ctx context.Context, next string) error {
	if ctx.Err() == nil {
		return nil
	}
	return m.canceled(ctx, next)
}

func (m *Mirror) canceled(ctx context.Context, next string) error {
	m.log.Infof("CANCELLED before %s", next)
	return fmt.Errorf("%w before %s: %w", ErrCanceled, next, ctx.Err())
}
