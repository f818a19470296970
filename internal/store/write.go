package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lifeline/lifeline/internal/ir"
)

// InsertRecord persists a new local SOS record.
//
// Uses ON CONFLICT(id) DO NOTHING and inspects the affected row count, so a
// reused ID is reported as ErrDuplicateID instead of silently overwriting.
// The write is committed (synchronous=FULL) before InsertRecord returns.
func (s *Store) InsertRecord(ctx context.Context, rec ir.Record) error {
	db, err := s.conn()
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO sos_records
		(id, latitude, longitude, emergency_type, message, created_at, synced, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Latitude,
		rec.Longitude,
		rec.EmergencyType,
		rec.Message,
		rec.Timestamp,
		boolToInt(rec.Synced),
		rec.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert record: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("insert record %s: %w", rec.ID, ErrDuplicateID)
	}

	return nil
}

// MarkSynced sets synced = 1 for the record with the given ID.
//
// Returns found=false (and no error) when the ID does not exist, so racing or
// repeated calls are harmless. The flag is never written back to 0.
func (s *Store) MarkSynced(ctx context.Context, id string) (found bool, err error) {
	db, err := s.conn()
	if err != nil {
		return false, fmt.Errorf("mark synced: %w", err)
	}

	result, err := db.ExecContext(ctx, `
		UPDATE sos_records SET synced = 1 WHERE id = ?
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark synced %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark synced: rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// InsertReport stores a report received by the command center.
// Returns the stored report and whether a new row was inserted.
//
// Reports carrying an offline ID are deduplicated on it: if the key is
// already known, the existing report is returned with inserted=false.
// Reports without an offline ID are always inserted.
func (s *Store) InsertReport(ctx context.Context, rep ir.Report, serverTimestamp int64) (stored ir.ServerReport, inserted bool, err error) {
	db, err := s.conn()
	if err != nil {
		return ir.ServerReport{}, false, fmt.Errorf("insert report: %w", err)
	}

	// Use a transaction to ensure atomicity of insert-or-select
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ir.ServerReport{}, false, fmt.Errorf("insert report: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO sos_reports
		(offline_id, latitude, longitude, emergency_type, message, client_timestamp, server_timestamp, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(offline_id) DO NOTHING
	`,
		nullString(rep.OfflineID),
		rep.Latitude,
		rep.Longitude,
		rep.EmergencyType,
		rep.Message,
		rep.ClientTimestamp,
		serverTimestamp,
		ir.StatusPending,
	)
	if err != nil {
		return ir.ServerReport{}, false, fmt.Errorf("insert report: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return ir.ServerReport{}, false, fmt.Errorf("insert report: rows affected: %w", err)
	}

	var row *sql.Row
	if rowsAffected > 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return ir.ServerReport{}, false, fmt.Errorf("insert report: last insert id: %w", err)
		}
		row = tx.QueryRowContext(ctx, selectReport+` WHERE id = ?`, id)
		inserted = true
	} else {
		// Conflict - offline_id already received, return the existing report
		row = tx.QueryRowContext(ctx, selectReport+` WHERE offline_id = ?`, rep.OfflineID)
	}

	stored, err = scanReport(row)
	if err != nil {
		return ir.ServerReport{}, false, fmt.Errorf("insert report: select stored: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ir.ServerReport{}, false, fmt.Errorf("insert report: commit: %w", err)
	}

	return stored, inserted, nil
}

// UpdateReportStatus changes the command-center status of a report.
// Returns ErrReportNotFound if the ID does not exist.
func (s *Store) UpdateReportStatus(ctx context.Context, id int64, status string) error {
	db, err := s.conn()
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}

	result, err := db.ExecContext(ctx, `
		UPDATE sos_reports SET status = ? WHERE id = ?
	`, status, id)
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report status: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("update report %d: %w", id, ErrReportNotFound)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
