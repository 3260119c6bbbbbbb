package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("fs", "ingest")

	c.IncRequestStarted()
	c.IncRequestStarted()
	c.IncRequestCompleted()
	c.IncRequestFailed("bad_content_type")
	c.IncRequestFailed("request_aborted")
	c.IncRequestAborted()
	c.AddBytesReceived(100)
	c.AddBytesReceived(28)
	c.IncField(3)
	c.IncField(4)
	c.IncFile(5)
	c.IncBase64Part()
	c.IncStorageWriteSuccess()
	c.IncStorageWriteSuccess()
	c.IncStorageWriteFailure()
	c.IncAdapterPublishSuccess()
	c.IncAdapterPublishFailure()

	s := c.Snapshot()

	if s.RequestsStarted != 2 {
		t.Errorf("RequestsStarted = %d, want 2", s.RequestsStarted)
	}
	if s.RequestsCompleted != 1 {
		t.Errorf("RequestsCompleted = %d, want 1", s.RequestsCompleted)
	}
	if s.RequestsFailed != 2 {
		t.Errorf("RequestsFailed = %d, want 2", s.RequestsFailed)
	}
	if s.RequestsAborted != 1 {
		t.Errorf("RequestsAborted = %d, want 1", s.RequestsAborted)
	}
	if s.FailedByKind["bad_content_type"] != 1 || s.FailedByKind["request_aborted"] != 1 {
		t.Errorf("FailedByKind = %v", s.FailedByKind)
	}
	if s.BytesReceived != 128 {
		t.Errorf("BytesReceived = %d, want 128", s.BytesReceived)
	}
	if s.FieldsParsed != 2 || s.FieldBytes != 7 {
		t.Errorf("fields = %d/%d bytes, want 2/7", s.FieldsParsed, s.FieldBytes)
	}
	if s.FilesParsed != 1 || s.FileBytes != 5 {
		t.Errorf("files = %d/%d bytes, want 1/5", s.FilesParsed, s.FileBytes)
	}
	if s.Base64Parts != 1 {
		t.Errorf("Base64Parts = %d, want 1", s.Base64Parts)
	}
	if s.StorageWriteSuccess != 2 {
		t.Errorf("StorageWriteSuccess = %d, want 2", s.StorageWriteSuccess)
	}
	if s.StorageWriteFailure != 1 {
		t.Errorf("StorageWriteFailure = %d, want 1", s.StorageWriteFailure)
	}
	if s.AdapterPublishSuccess != 1 || s.AdapterPublishFailure != 1 {
		t.Errorf("adapter = %d/%d, want 1/1", s.AdapterPublishSuccess, s.AdapterPublishFailure)
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("s3", "serve")
	s := c.Snapshot()

	if s.StorageBackend != "s3" {
		t.Errorf("StorageBackend = %q, want %q", s.StorageBackend, "s3")
	}
	if s.Mode != "serve" {
		t.Errorf("Mode = %q, want %q", s.Mode, "serve")
	}
}

func TestCollector_FailedWithoutKind(t *testing.T) {
	c := NewCollector("fs", "ingest")
	c.IncRequestFailed("")

	s := c.Snapshot()
	if s.RequestsFailed != 1 {
		t.Errorf("RequestsFailed = %d, want 1", s.RequestsFailed)
	}
	if len(s.FailedByKind) != 0 {
		t.Errorf("FailedByKind should be empty, got %v", s.FailedByKind)
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("fs", "ingest")
	c.IncRequestStarted()
	c.IncStorageWriteSuccess()

	s1 := c.Snapshot()

	// Mutate collector after snapshot
	c.IncRequestCompleted()
	c.IncStorageWriteSuccess()
	c.IncStorageWriteSuccess()

	if s1.RequestsCompleted != 0 {
		t.Errorf("s1.RequestsCompleted = %d, want 0 (snapshot should be frozen)", s1.RequestsCompleted)
	}
	if s1.StorageWriteSuccess != 1 {
		t.Errorf("s1.StorageWriteSuccess = %d, want 1 (snapshot should be frozen)", s1.StorageWriteSuccess)
	}

	s2 := c.Snapshot()
	if s2.RequestsCompleted != 1 {
		t.Errorf("s2.RequestsCompleted = %d, want 1", s2.RequestsCompleted)
	}
	if s2.StorageWriteSuccess != 3 {
		t.Errorf("s2.StorageWriteSuccess = %d, want 3", s2.StorageWriteSuccess)
	}
}

func TestCollector_SnapshotFailedByKindIsolation(t *testing.T) {
	c := NewCollector("fs", "ingest")
	c.IncRequestFailed("scanner_desync")

	s := c.Snapshot()
	s.FailedByKind["scanner_desync"] = 999
	s.FailedByKind["injected"] = 1

	s2 := c.Snapshot()
	if s2.FailedByKind["scanner_desync"] != 1 {
		t.Errorf("FailedByKind[scanner_desync] = %d, want 1 (collector should be isolated from snapshot mutation)",
			s2.FailedByKind["scanner_desync"])
	}
	if _, exists := s2.FailedByKind["injected"]; exists {
		t.Error("FailedByKind should not contain injected key from snapshot mutation")
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncRequestStarted()
	c.IncRequestCompleted()
	c.IncRequestFailed("other")
	c.IncRequestAborted()
	c.AddBytesReceived(10)
	c.IncField(1)
	c.IncFile(1)
	c.IncBase64Part()
	c.IncStorageWriteSuccess()
	c.IncStorageWriteFailure()
	c.IncAdapterPublishSuccess()
	c.IncAdapterPublishFailure()

	s := c.Snapshot()
	if s.RequestsStarted != 0 {
		t.Errorf("nil collector snapshot RequestsStarted = %d, want 0", s.RequestsStarted)
	}
	if s.FailedByKind != nil {
		t.Errorf("nil collector snapshot FailedByKind should be nil, got %v", s.FailedByKind)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("memory", "serve")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncRequestStarted()
				c.AddBytesReceived(2)
				c.IncRequestFailed("other")
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.RequestsStarted != want {
		t.Errorf("RequestsStarted = %d, want %d", s.RequestsStarted, want)
	}
	if s.BytesReceived != 2*want {
		t.Errorf("BytesReceived = %d, want %d", s.BytesReceived, 2*want)
	}
	if s.FailedByKind["other"] != want {
		t.Errorf("FailedByKind[other] = %d, want %d", s.FailedByKind["other"], want)
	}
}
