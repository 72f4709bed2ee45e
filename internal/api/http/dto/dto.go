package dto

// ApplyRequest asks for pending migrations of a graph to be applied
type ApplyRequest struct {
	Graph     string `json:"graph" binding:"required"`
	ToVersion string `json:"to_version"` // Optional, empty means all
	DryRun    bool   `json:"dry_run"`    // Optional, default false
	Async     bool   `json:"async"`      // Queue the run instead of waiting
}

// RollbackRequest asks for applied migrations of a graph to be undone
type RollbackRequest struct {
	Graph     string `json:"graph" binding:"required"`
	ToVersion string `json:"to_version"` // Roll back everything above this version
	Steps     int    `json:"steps"`      // Or this many migrations, newest first
	DryRun    bool   `json:"dry_run"`
	Async     bool   `json:"async"`
}

// RunResponse reports one apply or rollback run
type RunResponse struct {
	Graph   string   `json:"graph"`
	Action  string   `json:"action"`
	Success bool     `json:"success"`
	Applied []string `json:"applied"`
	Skipped []string `json:"skipped"`
	Errors  []string `json:"errors"`
	Queued  bool     `json:"queued,omitempty"`
	JobID   string   `json:"job_id,omitempty"`
}
