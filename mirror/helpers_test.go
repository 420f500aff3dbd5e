package mirror

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// eventLog is a test Observer recording everything it receives.
type eventLog struct {
	mu       sync.Mutex
	events   []AssetEvent
	progress []StageProgress
}

func (l *eventLog) AssetEvent(ev AssetEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) Progress(done, total int, stage Stage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = append(l.progress, StageProgress{Stage: stage, Done: done, Total: total})
}

// terminal returns the last lifecycle event recorded for rawURL.
func (l *eventLog) terminal(rawURL string) (AssetEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		ev := l.events[i]
		if ev.URL != rawURL {
			continue
		}
		switch ev.Kind {
		case EventDone, EventError, EventCancelled:
			return ev, true
		}
	}
	return AssetEvent{}, false
}

func (l *eventLog) stageTicks(stage Stage) []StageProgress {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ticks []StageProgress
	for _, p := range l.progress {
		if p.Stage == stage {
			ticks = append(ticks, p)
		}
	}
	return ticks
}

func mustDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse URL %q: %v", raw, err)
	}
	return u
}

// testFetcher returns a Fetcher with test-friendly defaults.
func testFetcher(cfg Config, observer Observer) *Fetcher {
	return NewFetcher(cfg, &http.Client{}, observer)
}
