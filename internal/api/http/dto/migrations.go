package dto

// MigrationListFilters narrows the migration listing
type MigrationListFilters struct {
	Graph  string `form:"graph"`
	App    string `form:"app"`
	Status string `form:"status"` // "applied", "pending", "failed", "rolled_back"
}

// MigrationListResponse represents a list of migrations
type MigrationListResponse struct {
	Items []MigrationListItem `json:"items"`
	Total int                 `json:"total"`
}

// MigrationListItem represents a single migration in the list
type MigrationListItem struct {
	MigrationID  string `json:"migration_id"`
	Version      string `json:"version"`
	Name         string `json:"name"`
	Graph        string `json:"graph"`
	App          string `json:"app"`
	Applied      bool   `json:"applied"`
	Irreversible bool   `json:"irreversible"`
	Status       string `json:"status,omitempty"`
	AppliedAt    string `json:"applied_at,omitempty"`
	RolledBackAt string `json:"rolled_back_at,omitempty"`
}

// MigrationDetailResponse carries the full migration: scripts, console
// summary, dependencies and run history
type MigrationDetailResponse struct {
	MigrationID  string                 `json:"migration_id"`
	Version      string                 `json:"version"`
	Name         string                 `json:"name"`
	Graph        string                 `json:"graph"`
	App          string                 `json:"app"`
	Applied      bool                   `json:"applied"`
	Irreversible bool                   `json:"irreversible"`
	Status       string                 `json:"status,omitempty"`
	UpScript     string                 `json:"up_script,omitempty"`
	DownScript   string                 `json:"down_script,omitempty"`
	Console      []string               `json:"console,omitempty"`
	Dependencies []string               `json:"dependencies,omitempty"`
	Source       string                 `json:"source,omitempty"`
	History      []HistoryEntryResponse `json:"history"`
}

// HistoryEntryResponse is one recorded run attempt, newest first
type HistoryEntryResponse struct {
	ID          string `json:"id"`
	MigrationID string `json:"migration_id"`
	Action      string `json:"action"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// GraphListResponse lists the configured graph connections
type GraphListResponse struct {
	Graphs []GraphStatus `json:"graphs"`
	Total  int           `json:"total"`
}

// GraphStatus reports one configured graph and whether it answers
type GraphStatus struct {
	Name     string `json:"name"`
	Backend  string `json:"backend"`
	Endpoint string `json:"endpoint"`
	Healthy  bool   `json:"healthy"`
	Error    string `json:"error,omitempty"`
}
