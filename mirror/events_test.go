package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lukemcguire/sitecapture/asset"
	"github.com/lukemcguire/sitecapture/result"
)

func TestChanObserverDropsByteProgress(t *testing.T) {
	ch := make(chan Update, 1)
	o := NewChanObserver(context.Background(), ch)

	o.AssetEvent(AssetEvent{Kind: EventStart, URL: "u"})
	// Channel is full; byte progress must not block.
	done := make(chan struct{})
	go func() {
		o.AssetEvent(AssetEvent{Kind: EventProgress, URL: "u", Read: 10})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("progress event blocked on a full channel")
	}

	u := <-ch
	if u.Asset == nil || u.Asset.Kind != EventStart {
		t.Errorf("expected start event, got %+v", u)
	}
	select {
	case extra := <-ch:
		t.Errorf("dropped progress event was delivered: %+v", extra)
	default:
	}
}

func TestChanObserverStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o := NewChanObserver(ctx, make(chan Update))

	done := make(chan struct{})
	go func() {
		o.Progress(1, 2, StageAssets)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked send did not observe cancellation")
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	img := AssetEvent{Category: asset.Image, URL: "https://example.com/a.png", Total: 4}
	js := AssetEvent{Category: asset.Script, URL: "https://example.com/app.js", Total: -1}

	for _, ev := range []AssetEvent{
		withKind(img, EventStart, 0),
		withKind(img, EventProgress, 4),
		withKind(js, EventStart, 0),
	} {
		r.AssetEvent(ev)
	}

	if got := r.Outcomes(); len(got) != 0 {
		t.Errorf("in-flight transfers must be omitted, got %v", got)
	}

	done := withKind(img, EventDone, 4)
	done.Path = "img/a.png"
	r.AssetEvent(done)

	failed := withKind(js, EventError, 0)
	failed.StatusCode = 500
	failed.Err = errors.New("boom")
	failed.ErrorCategory = result.Category5xx
	r.AssetEvent(failed)

	r.AssetEvent(AssetEvent{Kind: EventCancelled, Category: asset.Font, URL: "https://example.com/f.woff", FromStylesheet: true})
	r.Progress(3, 3, StageAssets)

	got := r.Outcomes()
	if len(got) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(got))
	}
	if got[0].Status != result.StatusSaved || got[0].Path != "img/a.png" || got[0].Bytes != 4 {
		t.Errorf("image outcome = %+v", got[0])
	}
	if got[1].Status != result.StatusFailed || got[1].StatusCode != 500 || got[1].Error != "boom" {
		t.Errorf("script outcome = %+v", got[1])
	}
	if got[2].Status != result.StatusCancelled || !got[2].Stylesheet {
		t.Errorf("font outcome = %+v", got[2])
	}

	if p, ok := r.Stage(StageAssets); !ok || p.Done != 3 {
		t.Errorf("Stage(assets) = %+v, %v", p, ok)
	}
	if _, ok := r.Stage(StageStylesheetAssets); ok {
		t.Error("no css-assets progress was reported")
	}
}

func withKind(ev AssetEvent, kind EventKind, read int64) AssetEvent {
	ev.Kind = kind
	ev.Read = read
	return ev
}
