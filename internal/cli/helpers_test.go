package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lifeline/lifeline/internal/ir"
	"github.com/lifeline/lifeline/internal/receiver"
	"github.com/lifeline/lifeline/internal/store"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// decodeData unmarshals the data payload of a JSON CLIResponse.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "lifeline.db")
}

// seed inserts records directly, bypassing the engine.
func seed(t *testing.T, dbPath string, records ...ir.Record) {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	for _, rec := range records {
		require.NoError(t, st.InsertRecord(context.Background(), rec))
	}
}

func record(id string, ts int64) ir.Record {
	return ir.NewRecord(id, ir.Draft{
		Latitude:      12.9716,
		Longitude:     77.5946,
		EmergencyType: ir.EmergencySOS,
		Message:       "help " + id,
		Timestamp:     ts,
	})
}

func readStats(t *testing.T, dbPath string) ir.Stats {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	return stats
}

// newReceiver starts an in-process command center.
func newReceiver(t *testing.T) (*store.Store, *httptest.Server) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "receiver.db"))
	require.NoError(t, err)
	ts := httptest.NewServer(receiver.New(st).Handler())
	t.Cleanup(func() {
		ts.Close()
		st.Close()
	})
	return st, ts
}

// failingServer answers every request with 500.
func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// lockedBuffer is a bytes.Buffer safe for a writer goroutine and a polling
// reader.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
