package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lifeline/lifeline/internal/ir"
)

func TestInsertRecord_Basic(t *testing.T) {
	s := createTestStore(t)
	rec := createTestRecord("sos-123", 1700000000000)

	if err := s.InsertRecord(context.Background(), rec); err != nil {
		t.Fatalf("InsertRecord() failed: %v", err)
	}

	var id, emergencyType string
	var createdAt int64
	var synced, retryCount int
	err := s.db.QueryRow(`
		SELECT id, emergency_type, created_at, synced, retry_count
		FROM sos_records
		WHERE id = ?
	`, rec.ID).Scan(&id, &emergencyType, &createdAt, &synced, &retryCount)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if id != rec.ID {
		t.Errorf("id = %q, want %q", id, rec.ID)
	}
	if emergencyType != rec.EmergencyType {
		t.Errorf("emergency_type = %q, want %q", emergencyType, rec.EmergencyType)
	}
	if createdAt != rec.Timestamp {
		t.Errorf("created_at = %d, want %d", createdAt, rec.Timestamp)
	}
	if synced != 0 {
		t.Errorf("synced = %d, want 0", synced)
	}
	if retryCount != 0 {
		t.Errorf("retry_count = %d, want 0", retryCount)
	}
}

func TestInsertRecord_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.InsertRecord(ctx, createTestRecord("sos-dup", 1)); err != nil {
		t.Fatalf("first InsertRecord() failed: %v", err)
	}

	second := createTestRecord("sos-dup", 2)
	second.Message = "overwrite attempt"
	err := s.InsertRecord(ctx, second)
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("second InsertRecord() error = %v, want ErrDuplicateID", err)
	}

	got, err := s.GetRecord(ctx, "sos-dup")
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if got.Message != "need help" {
		t.Errorf("message = %q, original record was overwritten", got.Message)
	}
}

func TestInsertRecord_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	rec := createTestRecord("sos-durable", 1700000000123)
	rec.Latitude = -33.8688
	rec.Longitude = 151.2093
	rec.EmergencyType = ir.EmergencyVoiceSOS
	rec.Message = "voice note"
	if err := s1.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("InsertRecord() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetRecord(ctx, "sos-durable")
	if err != nil {
		t.Fatalf("GetRecord() after reopen failed: %v", err)
	}
	if got != rec {
		t.Errorf("record after reopen = %+v, want %+v", got, rec)
	}
}

func TestMarkSynced_SetsFlag(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.InsertRecord(ctx, createTestRecord("sos-1", 1)); err != nil {
		t.Fatalf("InsertRecord() failed: %v", err)
	}

	found, err := s.MarkSynced(ctx, "sos-1")
	if err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}
	if !found {
		t.Error("MarkSynced() found = false, want true")
	}

	got, err := s.GetRecord(ctx, "sos-1")
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if !got.Synced {
		t.Error("record not synced after MarkSynced()")
	}
}

func TestMarkSynced_UnknownIDIsNoop(t *testing.T) {
	s := createTestStore(t)

	found, err := s.MarkSynced(context.Background(), "sos-missing")
	if err != nil {
		t.Fatalf("MarkSynced() on unknown id should not error: %v", err)
	}
	if found {
		t.Error("MarkSynced() found = true for unknown id")
	}
}

func TestMarkSynced_Monotonic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.InsertRecord(ctx, createTestRecord("sos-1", 1)); err != nil {
		t.Fatalf("InsertRecord() failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		found, err := s.MarkSynced(ctx, "sos-1")
		if err != nil {
			t.Fatalf("MarkSynced() call %d failed: %v", i, err)
		}
		if !found {
			t.Errorf("MarkSynced() call %d found = false", i)
		}

		got, err := s.GetRecord(ctx, "sos-1")
		if err != nil {
			t.Fatalf("GetRecord() failed: %v", err)
		}
		if !got.Synced {
			t.Fatalf("record reverted to unsynced after call %d", i)
		}
	}
}

func TestInsertReport_NewOfflineID(t *testing.T) {
	s := createTestStore(t)

	stored, inserted, err := s.InsertReport(context.Background(), createTestReport("sos-abc"), 1700000000999)
	if err != nil {
		t.Fatalf("InsertReport() failed: %v", err)
	}
	if !inserted {
		t.Error("inserted = false for a new offline id")
	}
	if stored.ID == 0 {
		t.Error("stored report has no server id")
	}
	if stored.Status != ir.StatusPending {
		t.Errorf("status = %q, want %q", stored.Status, ir.StatusPending)
	}
	if stored.ServerTimestamp != 1700000000999 {
		t.Errorf("server_timestamp = %d, want 1700000000999", stored.ServerTimestamp)
	}
	if stored.OfflineID != "sos-abc" {
		t.Errorf("offline_id = %q, want sos-abc", stored.OfflineID)
	}
}

func TestInsertReport_DuplicateOfflineIDReturnsExisting(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, _, err := s.InsertReport(ctx, createTestReport("sos-abc"), 1)
	if err != nil {
		t.Fatalf("first InsertReport() failed: %v", err)
	}

	second, inserted, err := s.InsertReport(ctx, createTestReport("sos-abc"), 2)
	if err != nil {
		t.Fatalf("second InsertReport() failed: %v", err)
	}
	if inserted {
		t.Error("inserted = true for a repeated offline id")
	}
	if second.ID != first.ID {
		t.Errorf("second id = %d, want existing id %d", second.ID, first.ID)
	}

	count, err := s.CountReportsByOfflineID(ctx, "sos-abc")
	if err != nil {
		t.Fatalf("CountReportsByOfflineID() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestInsertReport_WithoutOfflineIDAlwaysInserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a, insertedA, err := s.InsertReport(ctx, createTestReport(""), 1)
	if err != nil {
		t.Fatalf("InsertReport() failed: %v", err)
	}
	b, insertedB, err := s.InsertReport(ctx, createTestReport(""), 2)
	if err != nil {
		t.Fatalf("InsertReport() failed: %v", err)
	}

	if !insertedA || !insertedB {
		t.Error("reports without offline id should always insert")
	}
	if a.ID == b.ID {
		t.Error("reports without offline id share a server id")
	}
}

func TestUpdateReportStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stored, _, err := s.InsertReport(ctx, createTestReport("sos-abc"), 1)
	if err != nil {
		t.Fatalf("InsertReport() failed: %v", err)
	}

	if err := s.UpdateReportStatus(ctx, stored.ID, ir.StatusDispatched); err != nil {
		t.Fatalf("UpdateReportStatus() failed: %v", err)
	}

	got, err := s.GetReport(ctx, stored.ID)
	if err != nil {
		t.Fatalf("GetReport() failed: %v", err)
	}
	if got.Status != ir.StatusDispatched {
		t.Errorf("status = %q, want %q", got.Status, ir.StatusDispatched)
	}
}

func TestUpdateReportStatus_NotFound(t *testing.T) {
	s := createTestStore(t)

	err := s.UpdateReportStatus(context.Background(), 999, ir.StatusResolved)
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("error = %v, want ErrReportNotFound", err)
	}
}
