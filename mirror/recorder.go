package mirror

import (
	"sync"

	"github.com/lukemcguire/sitecapture/asset"
	"github.com/lukemcguire/sitecapture/result"
)

type outcomeKey struct {
	category asset.Category
	url      string
}

// Recorder is an Observer that keeps the latest state of every transfer and
// the most recent progress tick per stage.
type Recorder struct {
	mu       sync.Mutex
	order    []outcomeKey
	outcomes map[outcomeKey]*result.AssetOutcome
	stages   map[Stage]StageProgress
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		outcomes: make(map[outcomeKey]*result.AssetOutcome),
		stages:   make(map[Stage]StageProgress),
	}
}

func (r *Recorder) AssetEvent(ev AssetEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := outcomeKey{category: ev.Category, url: ev.URL}
	out, ok := r.outcomes[key]
	if !ok {
		out = &result.AssetOutcome{Category: ev.Category, URL: ev.URL}
		r.outcomes[key] = out
		r.order = append(r.order, key)
	}
	out.Stylesheet = out.Stylesheet || ev.FromStylesheet
	if ev.Read > out.Bytes {
		out.Bytes = ev.Read
	}

	switch ev.Kind {
	case EventDone:
		out.Status = result.StatusSaved
		out.Path = ev.Path
	case EventError:
		out.Status = result.StatusFailed
		out.StatusCode = ev.StatusCode
		out.ErrorCategory = ev.ErrorCategory
		if ev.Err != nil {
			out.Error = ev.Err.Error()
		}
	case EventCancelled:
		out.Status = result.StatusCancelled
	}
}

func (r *Recorder) Progress(done, total int, stage Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[stage] = StageProgress{Stage: stage, Done: done, Total: total}
}

// Outcomes returns the finished transfers in first-seen order. Transfers
// still in flight are omitted.
func (r *Recorder) Outcomes() []result.AssetOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcomes := make([]result.AssetOutcome, 0, len(r.order))
	for _, key := range r.order {
		if out := r.outcomes[key]; out.Status != "" {
			outcomes = append(outcomes, *out)
		}
	}
	return outcomes
}

// Stage returns the latest progress tick for the stage.
func (r *Recorder) Stage(stage Stage) (StageProgress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.stages[stage]
	return p, ok
}

// Report combines res with the recorded outcomes.
func (r *Recorder) Report(res *result.Result) *result.Report {
	return &result.Report{Result: res, Assets: r.Outcomes()}
}
