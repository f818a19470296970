package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lifeline/lifeline/internal/ir"
)

const selectRecord = `
	SELECT id, latitude, longitude, emergency_type, message, created_at, synced, retry_count
	FROM sos_records`

const selectReport = `
	SELECT id, offline_id, latitude, longitude, emergency_type, message,
	       client_timestamp, server_timestamp, status
	FROM sos_reports`

// ListPending returns all records with synced = 0.
//
// Callers must not rely on the order; the current query returns oldest
// first so a sync pass uploads in creation order.
//
// Returns an empty slice (not nil) if nothing is pending.
func (s *Store) ListPending(ctx context.Context) ([]ir.Record, error) {
	return s.queryRecords(ctx, "list pending", selectRecord+`
		WHERE synced = 0
		ORDER BY created_at ASC, id ASC
	`)
}

// ListAll returns every record, newest first by client timestamp.
// Ties are broken by ID so the order is stable.
//
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) ListAll(ctx context.Context) ([]ir.Record, error) {
	return s.queryRecords(ctx, "list all", selectRecord+`
		ORDER BY created_at DESC, id DESC
	`)
}

// GetRecord retrieves a single record by ID.
// Returns ErrRecordNotFound if it does not exist.
func (s *Store) GetRecord(ctx context.Context, id string) (ir.Record, error) {
	db, err := s.conn()
	if err != nil {
		return ir.Record{}, fmt.Errorf("get record: %w", err)
	}

	rec, err := scanRecord(db.QueryRowContext(ctx, selectRecord+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Record{}, fmt.Errorf("get record %s: %w", id, ErrRecordNotFound)
	}
	if err != nil {
		return ir.Record{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}

// Stats counts pending and synced records in one scan.
func (s *Store) Stats(ctx context.Context) (ir.Stats, error) {
	db, err := s.conn()
	if err != nil {
		return ir.Stats{}, fmt.Errorf("stats: %w", err)
	}

	var stats ir.Stats
	err = db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN synced = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN synced = 1 THEN 1 ELSE 0 END), 0)
		FROM sos_records
	`).Scan(&stats.Pending, &stats.Synced)
	if err != nil {
		return ir.Stats{}, fmt.Errorf("stats: %w", err)
	}

	return stats, nil
}

// ListReports returns all received reports, newest first by server time.
func (s *Store) ListReports(ctx context.Context) ([]ir.ServerReport, error) {
	return s.queryReports(ctx, "list reports", selectReport+`
		ORDER BY server_timestamp DESC, id DESC
	`)
}

// ListReportsByStatus returns received reports with the given status,
// newest first by server time.
func (s *Store) ListReportsByStatus(ctx context.Context, status string) ([]ir.ServerReport, error) {
	return s.queryReports(ctx, "list reports by status", selectReport+`
		WHERE status = ?
		ORDER BY server_timestamp DESC, id DESC
	`, status)
}

// GetReport retrieves a received report by its server ID.
// Returns ErrReportNotFound if it does not exist.
func (s *Store) GetReport(ctx context.Context, id int64) (ir.ServerReport, error) {
	db, err := s.conn()
	if err != nil {
		return ir.ServerReport{}, fmt.Errorf("get report: %w", err)
	}

	rep, err := scanReport(db.QueryRowContext(ctx, selectReport+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ir.ServerReport{}, fmt.Errorf("get report %d: %w", id, ErrReportNotFound)
	}
	if err != nil {
		return ir.ServerReport{}, fmt.Errorf("get report %d: %w", id, err)
	}
	return rep, nil
}

// CountReportsByOfflineID returns how many reports carry the offline ID.
// Used to verify idempotent receive; the answer is 0 or 1.
func (s *Store) CountReportsByOfflineID(ctx context.Context, offlineID string) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}

	var count int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sos_reports WHERE offline_id = ?
	`, offlineID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return count, nil
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args ...any) ([]ir.Record, error) {
	db, err := s.conn()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	records := []ir.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}

	return records, nil
}

func (s *Store) queryReports(ctx context.Context, op, query string, args ...any) ([]ir.ServerReport, error) {
	db, err := s.conn()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	reports := []ir.ServerReport{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		reports = append(reports, rep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}

	return reports, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ir.Record, error) {
	var rec ir.Record
	var synced int
	if err := row.Scan(
		&rec.ID, &rec.Latitude, &rec.Longitude, &rec.EmergencyType,
		&rec.Message, &rec.Timestamp, &synced, &rec.RetryCount,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Record{}, err
		}
		return ir.Record{}, fmt.Errorf("scan record: %w", err)
	}
	rec.Synced = synced != 0
	return rec, nil
}

func scanReport(row rowScanner) (ir.ServerReport, error) {
	var rep ir.ServerReport
	var offlineID sql.NullString
	if err := row.Scan(
		&rep.ID, &offlineID, &rep.Latitude, &rep.Longitude, &rep.EmergencyType,
		&rep.Message, &rep.ClientTimestamp, &rep.ServerTimestamp, &rep.Status,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.ServerReport{}, err
		}
		return ir.ServerReport{}, fmt.Errorf("scan report: %w", err)
	}
	rep.OfflineID = offlineID.String
	return rep, nil
}
