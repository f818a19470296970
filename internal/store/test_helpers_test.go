package store

import (
	"path/filepath"
	"testing"

	"github.com/lifeline/lifeline/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a pending record with minimal required fields.
func createTestRecord(id string, timestamp int64) ir.Record {
	return ir.NewRecord(id, ir.Draft{
		Latitude:      12.9716,
		Longitude:     77.5946,
		EmergencyType: ir.EmergencySOS,
		Message:       "need help",
		Timestamp:     timestamp,
	})
}

// createTestReport creates an upload payload with the given offline id.
func createTestReport(offlineID string) ir.Report {
	return ir.Report{
		Latitude:        12.9716,
		Longitude:       77.5946,
		EmergencyType:   ir.EmergencySOS,
		Message:         "need help",
		ClientTimestamp: 1700000000000,
		OfflineID:       offlineID,
	}
}
