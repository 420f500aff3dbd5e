package api

import (
	"context"
	"sync"
	"time"

	"github.com/lukemcguire/sitecapture/asset"
	"github.com/lukemcguire/sitecapture/mirror"
	"github.com/lukemcguire/sitecapture/result"
)

// JobStatus is the lifecycle state of a mirror job.
type JobStatus string

const (
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// MirrorRequest is the body of POST /mirrors.
type MirrorRequest struct {
	URL          string `json:"url" binding:"required"`
	Label        string `json:"label" binding:"required"`
	PreviewLimit int    `json:"preview_limit" binding:"gte=0"`
	CSSRefLimit  int    `json:"css_ref_limit" binding:"gte=0"`
	Insecure     bool   `json:"insecure"`
}

// AssetCancelRequest is the body of POST /mirrors/:id/assets/cancel.
type AssetCancelRequest struct {
	Category string `json:"category" binding:"required"`
	URL      string `json:"url" binding:"required"`
}

// Job is one mirror run started through the API.
type Job struct {
	ID        string
	Request   MirrorRequest
	CreatedAt time.Time

	recorder *mirror.Recorder
	cancel   context.CancelFunc
	cancels  mirror.AssetCancels

	mu        sync.Mutex
	status    JobStatus
	err       string
	result    *result.Result
	updatedAt time.Time
}

// JobView is the JSON representation of a job.
type JobView struct {
	ID        string                                `json:"id"`
	URL       string                                `json:"url"`
	Label     string                                `json:"label"`
	Status    JobStatus                             `json:"status"`
	Error     string                                `json:"error,omitempty"`
	CreatedAt time.Time                             `json:"created_at"`
	UpdatedAt time.Time                             `json:"updated_at"`
	Progress  map[mirror.Stage]mirror.StageProgress `json:"progress,omitempty"`
	Result    *result.Result                        `json:"result,omitempty"`
	Assets    []result.AssetOutcome                 `json:"assets"`
}

// cancelAsset marks one transfer of the job as cancelled.
func (j *Job) cancelAsset(category asset.Category, rawURL string) {
	j.cancels.Cancel(category, rawURL)
}

func (j *Job) assetCanceled(category asset.Category, rawURL string) bool {
	return j.cancels.Canceled(category, rawURL)
}

func (j *Job) finish(status JobStatus, res *result.Result, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.result = res
	if err != nil {
		j.err = err.Error()
	}
	j.updatedAt = time.Now()
}

// Status returns the job's current state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// View snapshots the job for rendering.
func (j *Job) View() JobView {
	j.mu.Lock()
	view := JobView{
		ID:        j.ID,
		URL:       j.Request.URL,
		Label:     j.Request.Label,
		Status:    j.status,
		Error:     j.err,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.updatedAt,
		Result:    j.result,
	}
	j.mu.Unlock()

	view.Assets = j.recorder.Outcomes()
	view.Progress = make(map[mirror.Stage]mirror.StageProgress)
	for _, stage := range []mirror.Stage{mirror.StageAssets, mirror.StageStylesheetAssets} {
		if p, ok := j.recorder.Stage(stage); ok {
			view.Progress[stage] = p
		}
	}
	return view
}
