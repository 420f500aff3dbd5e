// Package result holds the output records of a mirror run and the writers
// that turn them into reports.
package result

import (
	"time"

	"github.com/lukemcguire/sitecapture/asset"
)

// Result is the record of one successful mirror run. It is built once, after
// the last stage, and not modified afterwards.
type Result struct {
	ProductName    string                 `json:"product_name" yaml:"product_name"`
	Slug           string                 `json:"slug" yaml:"slug"`
	Root           string                 `json:"root" yaml:"root"`
	Folder         string                 `json:"folder" yaml:"folder"`
	IndexPath      string                 `json:"index_path" yaml:"index_path"`
	LocalIndexPath string                 `json:"local_index_path" yaml:"local_index_path"`
	Counts         map[asset.Category]int `json:"counts" yaml:"counts"` // discovered assets per category
	Duration       time.Duration          `json:"duration" yaml:"duration"`
}

// Total returns the number of discovered assets across all categories.
func (r *Result) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Status is the terminal state of a single asset transfer.
type Status string

const (
	StatusSaved     Status = "saved"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// AssetOutcome describes what happened to one referenced asset.
type AssetOutcome struct {
	Category      asset.Category `json:"category" yaml:"category"`
	URL           string         `json:"url" yaml:"url"`
	Status        Status         `json:"status" yaml:"status"`
	Path          string         `json:"path,omitempty" yaml:"path,omitempty"`
	Bytes         int64          `json:"bytes" yaml:"bytes"`
	StatusCode    int            `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Error         string         `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorCategory ErrorCategory  `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	Stylesheet    bool           `json:"from_stylesheet" yaml:"from_stylesheet"` // found inside a downloaded stylesheet
}

// Report pairs a run result with the per-asset outcomes observed during it.
type Report struct {
	Result *Result        `json:"result" yaml:"result"`
	Assets []AssetOutcome `json:"assets" yaml:"assets"`
}

// Tally counts outcomes by status.
func (r *Report) Tally() map[Status]int {
	tally := make(map[Status]int)
	for _, a := range r.Assets {
		tally[a.Status]++
	}
	return tally
}
