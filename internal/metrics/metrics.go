// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Redirect metrics
	IncRedirect(outcome string) // outcome: "found", "not_found", "invalid_destination", "unavailable"
	ObserveRedirectDuration(duration time.Duration)

	// Click ledger metrics
	IncClickRecorded(status string) // status: "success" or "dropped"

	// Catalog metrics
	IncCatalogSave(status string) // status: "success" or "failed"
	IncProductSaved()
	IncProductDeleted()

	// Import metrics
	IncImportPreview(status string) // status: "accepted" or "rejected"
	IncImportCommit(status string)  // status: "success", "token_invalid", "failed"
	AddImportRows(outcome string, n int)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
