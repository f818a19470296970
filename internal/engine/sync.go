package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/lifeline/lifeline/internal/ir"
)

// Sync uploads the pending records once each and marks the accepted ones
// synced.
//
// A call while another pass is in flight returns a zero result at once, as
// does a call while offline unless force is set. Neither is an error.
//
// The pending list is read once at the start of the pass; records saved
// while the pass runs wait for the next one. Each record gets exactly one
// upload attempt. A failed upload, or a failure to mark the record synced
// afterwards, is counted in SyncResult.Failed and the record stays pending.
//
// The only error returned is a failure to read the pending list, wrapped
// in a RuntimeError with ErrCodeSnapshotFailed.
func (e *Engine) Sync(ctx context.Context, force bool) (ir.SyncResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		e.metrics.pass(OutcomeCoalesced)
		slog.Debug("sync skipped: pass already in flight")
		return ir.SyncResult{}, nil
	}
	defer e.busy.Store(false)

	if !force && !e.Online() {
		e.metrics.pass(OutcomeOffline)
		slog.Debug("sync skipped: offline")
		return ir.SyncResult{}, nil
	}

	pass := e.clock.Next()
	start := time.Now()

	pending, err := e.store.ListPending(ctx)
	if err != nil {
		e.metrics.pass(OutcomeError)
		return ir.SyncResult{}, NewSnapshotError(pass, err)
	}

	slog.Info("sync pass starting",
		"pass", pass,
		"pending", len(pending),
		"force", force,
	)

	var result ir.SyncResult
	for _, rec := range pending {
		if err := e.uploader.Upload(ctx, rec.Report()); err != nil {
			result.Failed++
			e.metrics.upload(UploadFailed)
			slog.Warn("upload failed",
				"pass", pass,
				"id", rec.ID,
				"error", err,
			)
			continue
		}

		if err := e.MarkSynced(ctx, rec.ID); err != nil {
			// The server has the report; the next pass re-uploads it and
			// the offlineId deduplicates.
			result.Failed++
			e.metrics.upload(UploadFailed)
			slog.Error("mark synced failed after upload",
				"pass", pass,
				"id", rec.ID,
				"error", err,
			)
			continue
		}

		result.Synced++
		e.metrics.upload(UploadSynced)
		slog.Debug("record synced", "pass", pass, "id", rec.ID)
	}

	e.metrics.pass(OutcomeCompleted)
	e.metrics.observePass(time.Since(start))

	slog.Info("sync pass finished",
		"pass", pass,
		"synced", result.Synced,
		"failed", result.Failed,
	)

	return result, nil
}
