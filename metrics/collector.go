// Package metrics provides ingestion metrics collection.
//
// The Collector accumulates counters across requests. It is a leaf package
// with no internal dependencies; error kinds are recorded as plain strings so
// callers classify errors before recording them.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Request lifecycle
	RequestsStarted   int64
	RequestsCompleted int64
	RequestsFailed    int64
	RequestsAborted   int64
	FailedByKind      map[string]int64

	// Body
	BytesReceived int64
	FieldsParsed  int64
	FieldBytes    int64
	FilesParsed   int64
	FileBytes     int64
	Base64Parts   int64

	// Storage
	StorageWriteSuccess int64
	StorageWriteFailure int64

	// Adapter
	AdapterPublishSuccess int64
	AdapterPublishFailure int64

	// Dimensions (informational, set at construction)
	StorageBackend string
	Mode           string
}

// Collector accumulates metrics across requests.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	requestsStarted   int64
	requestsCompleted int64
	requestsFailed    int64
	requestsAborted   int64
	failedByKind      map[string]int64

	bytesReceived int64
	fieldsParsed  int64
	fieldBytes    int64
	filesParsed   int64
	fileBytes     int64
	base64Parts   int64

	storageWriteSuccess int64
	storageWriteFailure int64

	adapterPublishSuccess int64
	adapterPublishFailure int64

	storageBackend string
	mode           string
}

// NewCollector creates a Collector with dimension labels.
// mode is "ingest" or "serve".
func NewCollector(storageBackend, mode string) *Collector {
	return &Collector{
		failedByKind:   make(map[string]int64),
		storageBackend: storageBackend,
		mode:           mode,
	}
}

// --- Request lifecycle ---

// IncRequestStarted records a request whose headers were accepted or rejected.
func (c *Collector) IncRequestStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.requestsStarted++
	c.mu.Unlock()
}

// IncRequestCompleted records a request that reached end.
func (c *Collector) IncRequestCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.requestsCompleted++
	c.mu.Unlock()
}

// IncRequestFailed records a request that reached error, keyed by kind.
func (c *Collector) IncRequestFailed(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.requestsFailed++
	if kind != "" {
		c.failedByKind[kind]++
	}
	c.mu.Unlock()
}

// IncRequestAborted records a transport abort.
func (c *Collector) IncRequestAborted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.requestsAborted++
	c.mu.Unlock()
}

// --- Body ---

// AddBytesReceived records raw body bytes handed to a parser.
func (c *Collector) AddBytesReceived(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesReceived += n
	c.mu.Unlock()
}

// IncField records a completed field of size decoded bytes.
func (c *Collector) IncField(size int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fieldsParsed++
	c.fieldBytes += size
	c.mu.Unlock()
}

// IncFile records a completed file part of size decoded bytes.
func (c *Collector) IncFile(size int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesParsed++
	c.fileBytes += size
	c.mu.Unlock()
}

// IncBase64Part records a part using base64 transfer encoding.
func (c *Collector) IncBase64Part() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.base64Parts++
	c.mu.Unlock()
}

// --- Storage ---

// IncStorageWriteSuccess records a successful storage write (per object).
func (c *Collector) IncStorageWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storageWriteSuccess++
	c.mu.Unlock()
}

// IncStorageWriteFailure records a failed storage write (per object).
func (c *Collector) IncStorageWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storageWriteFailure++
	c.mu.Unlock()
}

// --- Adapter ---

// IncAdapterPublishSuccess records a delivered completion event.
func (c *Collector) IncAdapterPublishSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.adapterPublishSuccess++
	c.mu.Unlock()
}

// IncAdapterPublishFailure records a completion event that was not delivered.
func (c *Collector) IncAdapterPublishFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.adapterPublishFailure++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	failed := make(map[string]int64, len(c.failedByKind))
	for k, v := range c.failedByKind {
		failed[k] = v
	}

	return Snapshot{
		RequestsStarted:   c.requestsStarted,
		RequestsCompleted: c.requestsCompleted,
		RequestsFailed:    c.requestsFailed,
		RequestsAborted:   c.requestsAborted,
		FailedByKind:      failed,

		BytesReceived: c.bytesReceived,
		FieldsParsed:  c.fieldsParsed,
		FieldBytes:    c.fieldBytes,
		FilesParsed:   c.filesParsed,
		FileBytes:     c.fileBytes,
		Base64Parts:   c.base64Parts,

		StorageWriteSuccess: c.storageWriteSuccess,
		StorageWriteFailure: c.storageWriteFailure,

		AdapterPublishSuccess: c.adapterPublishSuccess,
		AdapterPublishFailure: c.adapterPublishFailure,

		StorageBackend: c.storageBackend,
		Mode:           c.mode,
	}
}
