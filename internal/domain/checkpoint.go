package domain

import "time"

// IngestCheckpoint is the progress of the latest ingestion run for one collection.
// Committed counts leading corpus items known to be in the backend.
type IngestCheckpoint struct {
	Collection  string    `json:"collection"`
	Fingerprint string    `json:"fingerprint"`
	RunID       string    `json:"run_id"`
	Committed   int       `json:"committed"`
	Total       int       `json:"total"`
	Complete    bool      `json:"complete"`
	UpdatedAt   time.Time `json:"updated_at"`
}
