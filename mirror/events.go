package mirror

import (
	"context"

	"github.com/lukemcguire/sitecapture/asset"
	"github.com/lukemcguire/sitecapture/result"
)

// EventKind is the lifecycle step an AssetEvent reports.
type EventKind string

const (
	EventStart     EventKind = "start"
	EventProgress  EventKind = "progress"
	EventDone      EventKind = "done"
	EventError     EventKind = "error"
	EventCancelled EventKind = "cancelled"
)

// Stage names a phase that reports aggregate progress.
type Stage string

const (
	StageAssets           Stage = "assets"
	StageStylesheetAssets Stage = "css-assets"
)

// AssetEvent reports the state of a single transfer.
type AssetEvent struct {
	Kind           EventKind
	Category       asset.Category
	URL            string
	Total          int64 // Content-Length, -1 when unknown
	Read           int64 // Bytes written so far
	Path           string
	StatusCode     int
	Err            error
	ErrorCategory  result.ErrorCategory
	FromStylesheet bool // Referenced from a downloaded stylesheet rather than the page
}

// Observer receives transfer and stage progress notifications.
// Implementations must be safe for concurrent use.
type Observer interface {
	AssetEvent(ev AssetEvent)
	Progress(done, total int, stage Stage)
}

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) AssetEvent(AssetEvent)    {}
func (NopObserver) Progress(int, int, Stage) {}

// StageProgress is an aggregate progress tick.
type StageProgress struct {
	Stage Stage `json:"stage"`
	Done  int   `json:"done"`
	Total int   `json:"total"`
}

// Update is one message delivered by a ChanObserver. Exactly one field is set.
type Update struct {
	Asset    *AssetEvent
	Progress *StageProgress
}

// ChanObserver forwards notifications onto a channel. Byte progress events
// are dropped when the channel is full; every other notification blocks until
// delivered or until the context is done.
type ChanObserver struct {
	ctx context.Context
	ch  chan<- Update
}

// NewChanObserver returns an observer sending on ch until ctx is done.
func NewChanObserver(ctx context.Context, ch chan<- Update) *ChanObserver {
	return &ChanObserver{ctx: ctx, ch: ch}
}

func (o *ChanObserver) AssetEvent(ev AssetEvent) {
	u := Update{Asset: &ev}
	if ev.Kind == EventProgress {
		select {
		case o.ch <- u:
		default:
		}
		return
	}
	o.send(u)
}

func (o *ChanObserver) Progress(done, total int, stage Stage) {
	o.send(Update{Progress: &StageProgress{Stage: stage, Done: done, Total: total}})
}

func (o *ChanObserver) send(u Update) {
	select {
	case o.ch <- u:
	case <-o.ctx.Done():
	}
}

// MultiObserver fans notifications out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) AssetEvent(ev AssetEvent) {
	for _, o := range m {
		o.AssetEvent(ev)
	}
}

func (m MultiObserver) Progress(done, total int, stage Stage) {
	for _, o := range m {
		o.Progress(done, total, stage)
	}
}
