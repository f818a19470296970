package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/lifeline/lifeline/internal/backend"
	"github.com/lifeline/lifeline/internal/engine"
	"github.com/lifeline/lifeline/internal/ir"
	"github.com/lifeline/lifeline/internal/receiver"
	"github.com/lifeline/lifeline/internal/store"
	"github.com/lifeline/lifeline/internal/testutil"
)

// StartMillis is the wall clock at the start of every scenario.
const StartMillis int64 = 1700000000000

// DefaultIDPrefix prefixes record ids when a scenario sets none.
const DefaultIDPrefix = "sos"

// Harness holds one scenario's device, command center and trace.
type Harness struct {
	local  *store.Store
	remote *store.Store
	engine *engine.Engine
	clock  *testutil.ManualClock
	faults *faultHandler
	server *httptest.Server
	logger *slog.Logger

	seq    int64
	result *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario gets fresh in-memory databases for the device queue and the
// command center, so scenarios are isolated and repeatable. An error means
// the harness itself could not run; scenario failures are reported in
// Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
	}

	stats, err := h.engine.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("final stats: %w", err)
	}
	h.result.Stats = stats

	actx := &AssertionContext{
		Ctx:     ctx,
		Records: h.local,
		Reports: h.remote,
	}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	local, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create device store: %w", err)
	}
	remote, err := store.Open(":memory:")
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("failed to create command-center store: %w", err)
	}

	clock := testutil.NewManualClockMillis(StartMillis)
	faults := &faultHandler{
		mode: ServerOK,
		next: receiver.New(remote, receiver.WithNow(clock.Now)).Handler(),
	}
	server := httptest.NewServer(faults)

	client, err := backend.NewClient(server.URL)
	if err != nil {
		server.Close()
		remote.Close()
		local.Close()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	h := &Harness{
		local:  local,
		remote: remote,
		clock:  clock,
		faults: faults,
		server: server,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		result: NewResult(),
	}

	prefix := scenario.IDPrefix
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	online := true
	if scenario.Online != nil {
		online = *scenario.Online
	}

	h.engine = engine.New(local, &tracingUploader{h: h, client: client},
		engine.WithIDGenerator(testutil.NewSequenceGenerator(prefix)),
		engine.WithWallClock(clock),
		engine.WithOnline(online),
	)
	return h, nil
}

func (h *Harness) close() {
	h.server.Close()
	h.remote.Close()
	h.local.Close()
}

func (h *Harness) nextSeq() int64 {
	h.seq++
	return h.seq
}

// executeStep performs one action, records it and checks its expect clause.
// Action failures are expected outcomes, not harness errors.
func (h *Harness) executeStep(ctx context.Context, i int, step Step) error {
	var (
		stepErr error
		counts  *ir.SyncResult
	)

	switch {
	case step.Save != nil:
		stepErr = h.save(ctx, *step.Save)
	case step.SetOnline != nil:
		h.result.addEvent(h.nextSeq(), ActionSetOnline, map[string]any{"online": *step.SetOnline})
		h.engine.SetOnline(*step.SetOnline)
	case step.Sync != nil:
		res, err := h.sync(ctx, step.Sync.Force)
		stepErr = err
		counts = &res
	case step.MarkSynced != "":
		idx := h.result.addEvent(h.nextSeq(), ActionMarkSynced, map[string]any{"id": step.MarkSynced})
		if err := h.engine.MarkSynced(ctx, step.MarkSynced); err != nil {
			stepErr = err
			h.result.Trace[idx].Result = map[string]any{"error": err.Error()}
		}
	case step.Server != "":
		h.result.addEvent(h.nextSeq(), ActionServer, map[string]any{"mode": step.Server})
		h.faults.setMode(step.Server)
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		h.result.addEvent(h.nextSeq(), ActionAdvance, map[string]any{"by": step.Advance})
		h.clock.Advance(d)
	default:
		return fmt.Errorf("no action")
	}

	h.logger.Info("flow step completed", "step", i, "error", stepErr)
	return h.checkExpect(ctx, i, step.Expect, stepErr, counts)
}

func (h *Harness) save(ctx context.Context, s SaveStep) error {
	idx := h.result.addEvent(h.nextSeq(), ActionSave, map[string]any{
		"lat":     s.Lat,
		"lon":     s.Lon,
		"type":    s.Type,
		"message": s.Message,
	})

	rec, err := h.engine.Save(ctx, ir.Draft{
		Latitude:      s.Lat,
		Longitude:     s.Lon,
		EmergencyType: s.Type,
		Message:       s.Message,
		Timestamp:     s.Timestamp,
	})
	if err != nil {
		h.result.Trace[idx].Result = map[string]any{"error": err.Error()}
		return err
	}
	h.result.Trace[idx].Result = map[string]any{
		"id":        rec.ID,
		"timestamp": rec.Timestamp,
	}
	return nil
}

func (h *Harness) sync(ctx context.Context, force bool) (ir.SyncResult, error) {
	idx := h.result.addEvent(h.nextSeq(), ActionSync, map[string]any{
		"force":  force,
		"online": h.engine.Online(),
	})

	res, err := h.engine.Sync(ctx, force)
	if err != nil {
		h.result.Trace[idx].Result = map[string]any{"error": err.Error()}
		return res, err
	}
	h.result.Trace[idx].Result = map[string]any{
		"synced": res.Synced,
		"failed": res.Failed,
	}
	return res, nil
}

func (h *Harness) checkExpect(ctx context.Context, i int, expect *ExpectClause, stepErr error, counts *ir.SyncResult) error {
	if expect == nil {
		return nil
	}

	switch {
	case expect.Error == "" && stepErr != nil:
		h.result.AddError(fmt.Sprintf("flow[%d]: unexpected error: %v", i, stepErr))
	case expect.Error != "" && stepErr == nil:
		h.result.AddError(fmt.Sprintf("flow[%d]: expected error containing %q, got none", i, expect.Error))
	case expect.Error != "" && !strings.Contains(stepErr.Error(), expect.Error):
		h.result.AddError(fmt.Sprintf("flow[%d]: expected error containing %q, got %v", i, expect.Error, stepErr))
	}

	if expect.Result != nil && counts != nil {
		want := ir.SyncResult{Synced: expect.Result.Synced, Failed: expect.Result.Failed}
		if *counts != want {
			h.result.AddError(fmt.Sprintf("flow[%d]: sync result = %+v, expected %+v", i, *counts, want))
		}
	}

	if expect.Stats != nil {
		stats, err := h.engine.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		want := ir.Stats{Pending: expect.Stats.Pending, Synced: expect.Stats.Synced}
		if stats != want {
			h.result.AddError(fmt.Sprintf("flow[%d]: stats = %+v, expected %+v", i, stats, want))
		}
	}
	return nil
}

// tracingUploader records every upload attempt in the trace.
type tracingUploader struct {
	h      *Harness
	client *backend.Client
}

func (u *tracingUploader) Upload(ctx context.Context, rep ir.Report) error {
	idx := u.h.result.addEvent(u.h.nextSeq(), ActionUpload, map[string]any{
		"offline_id": rep.OfflineID,
	})

	ack, err := u.client.UploadReport(ctx, rep)
	if err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) {
			u.h.result.Trace[idx].Result = map[string]any{"error": fmt.Sprintf("http %d", se.Code)}
		} else {
			u.h.result.Trace[idx].Result = map[string]any{"error": err.Error()}
		}
		return err
	}
	u.h.result.Trace[idx].Result = map[string]any{
		"status": ack.Status,
		"id":     ack.ID,
	}
	return nil
}

// faultHandler fronts the command center and injects failures.
type faultHandler struct {
	mu   sync.Mutex
	mode string
	next http.Handler
}

func (f *faultHandler) setMode(mode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = mode
}

func (f *faultHandler) current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func (f *faultHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch f.current() {
	case ServerFail:
		http.Error(w, "injected failure", http.StatusInternalServerError)
	case ServerDropAck:
		// The report is stored; only the answer is lost.
		f.next.ServeHTTP(httptest.NewRecorder(), r)
		http.Error(w, "acknowledgement lost", http.StatusBadGateway)
	default:
		f.next.ServeHTTP(w, r)
	}
}
