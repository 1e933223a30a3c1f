// Package models defines data structures shared across the fetch pipeline.
package models

// WorkItem is a single product page to scan, built once per input row.
type WorkItem struct {
	SourceURL  string `json:"source_url"`
	Identifier string `json:"identifier"`
}

// ImageDescriptor is a resolved, downloadable image reference. Suffix
// disambiguates multiple images belonging to the same identifier.
type ImageDescriptor struct {
	SourceURL  string `json:"source_url"`
	Identifier string `json:"identifier"`
	Suffix     string `json:"suffix"`
}

// DownloadOutcome records one attempted download. It is never mutated after
// creation.
type DownloadOutcome struct {
	Identifier string `json:"identifier"`
	Suffix     string `json:"suffix"`
	Success    bool   `json:"success"`
	SavedPath  string `json:"saved_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Stage identifies which half of the pipeline a progress event belongs to.
type Stage string

const (
	StageChecking    Stage = "checking"
	StageDownloading Stage = "downloading"
)

// ProgressEvent is pushed to the caller after every processed item. Current
// is cumulative across all execution contexts and monotonically
// non-decreasing within a stage.
type ProgressEvent struct {
	Stage   Stage  `json:"stage"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// RunStatus is the terminal status of a run, pushed exactly once.
type RunStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CheckResult is returned by the checking stage.
type CheckResult struct {
	Success     bool
	Message     string
	Descriptors []ImageDescriptor
}

// BatchStats aggregates per-item outcomes of one batch.
type BatchStats struct {
	Total     int
	Succeeded int
	Failed    int
}
