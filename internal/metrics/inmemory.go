package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Redirects               map[string]uint64
	RedirectDurationCount   uint64
	RedirectDurationTotalNs int64
	ClicksRecorded          uint64
	ClicksDropped           uint64
	CatalogSaves            map[string]uint64
	ProductsSaved           uint64
	ProductsDeleted         uint64
	ImportPreviews          map[string]uint64
	ImportCommits           map[string]uint64
	ImportRows              map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	redirectDurationCount   uint64
	redirectDurationTotalNs int64
	clicksRecorded          uint64
	clicksDropped           uint64
	productsSaved           uint64
	productsDeleted         uint64

	mu       sync.Mutex
	labelled map[string]map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{labelled: make(map[string]map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		Redirects:               m.copyOf("redirects"),
		RedirectDurationCount:   atomic.LoadUint64(&m.redirectDurationCount),
		RedirectDurationTotalNs: atomic.LoadInt64(&m.redirectDurationTotalNs),
		ClicksRecorded:          atomic.LoadUint64(&m.clicksRecorded),
		ClicksDropped:           atomic.LoadUint64(&m.clicksDropped),
		CatalogSaves:            m.copyOf("catalog_saves"),
		ProductsSaved:           atomic.LoadUint64(&m.productsSaved),
		ProductsDeleted:         atomic.LoadUint64(&m.productsDeleted),
		ImportPreviews:          m.copyOf("import_previews"),
		ImportCommits:           m.copyOf("import_commits"),
		ImportRows:              m.copyOf("import_rows"),
	}
}

func (m *InMemoryRecorder) add(name, label string, n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	values, ok := m.labelled[name]
	if !ok {
		values = make(map[string]uint64)
		m.labelled[name] = values
	}
	values[label] += n
}

func (m *InMemoryRecorder) copyOf(name string) map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.labelled[name]))
	for k, v := range m.labelled[name] {
		out[k] = v
	}
	return out
}

// IncRedirect counts a redirect by outcome.
func (m *InMemoryRecorder) IncRedirect(outcome string) {
	m.add("redirects", outcome, 1)
}

// ObserveRedirectDuration records redirect duration.
func (m *InMemoryRecorder) ObserveRedirectDuration(duration time.Duration) {
	atomic.AddUint64(&m.redirectDurationCount, 1)
	atomic.AddInt64(&m.redirectDurationTotalNs, duration.Nanoseconds())
}

// IncClickRecorded counts ledger appends.
func (m *InMemoryRecorder) IncClickRecorded(status string) {
	if status == "success" {
		atomic.AddUint64(&m.clicksRecorded, 1)
		return
	}
	atomic.AddUint64(&m.clicksDropped, 1)
}

// IncCatalogSave counts catalog writes by status.
func (m *InMemoryRecorder) IncCatalogSave(status string) {
	m.add("catalog_saves", status, 1)
}

// IncProductSaved increments the product saved counter.
func (m *InMemoryRecorder) IncProductSaved() {
	atomic.AddUint64(&m.productsSaved, 1)
}

// IncProductDeleted increments the product deleted counter.
func (m *InMemoryRecorder) IncProductDeleted() {
	atomic.AddUint64(&m.productsDeleted, 1)
}

// IncImportPreview counts uploads by status.
func (m *InMemoryRecorder) IncImportPreview(status string) {
	m.add("import_previews", status, 1)
}

// IncImportCommit counts commits by status.
func (m *InMemoryRecorder) IncImportCommit(status string) {
	m.add("import_commits", status, 1)
}

// AddImportRows counts committed rows by outcome.
func (m *InMemoryRecorder) AddImportRows(outcome string, n int) {
	if n <= 0 {
		return
	}
	m.add("import_rows", outcome, uint64(n))
}
