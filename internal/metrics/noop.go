package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRedirect is a no-op.
func (n *NoopRecorder) IncRedirect(outcome string) {}

// ObserveRedirectDuration is a no-op.
func (n *NoopRecorder) ObserveRedirectDuration(duration time.Duration) {}

// IncClickRecorded is a no-op.
func (n *NoopRecorder) IncClickRecorded(status string) {}

// IncCatalogSave is a no-op.
func (n *NoopRecorder) IncCatalogSave(status string) {}

// IncProductSaved is a no-op.
func (n *NoopRecorder) IncProductSaved() {}

// IncProductDeleted is a no-op.
func (n *NoopRecorder) IncProductDeleted() {}

// IncImportPreview is a no-op.
func (n *NoopRecorder) IncImportPreview(status string) {}

// IncImportCommit is a no-op.
func (n *NoopRecorder) IncImportCommit(status string) {}

// AddImportRows is a no-op.
func (n *NoopRecorder) AddImportRows(outcome string, count int) {}
