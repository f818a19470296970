package harness

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func boolPtr(b bool) *bool { return &b }

func TestRun_SaveAndSync(t *testing.T) {
	scenario := &Scenario{
		Name:        "save_and_sync",
		Description: "one report uploads",
		Flow: []Step{
			{Save: &SaveStep{Lat: 1.5, Lon: 2.5, Type: "SOS", Message: "help"}},
			{Sync: &SyncStep{}, Expect: &ExpectClause{
				Result: &CountsClause{Synced: 1},
				Stats:  &StatsClause{Pending: 0, Synced: 1},
			}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, ActionSave, result.Trace[0].Action)
	assert.Equal(t, "sos-0001", result.Trace[0].Result["id"])
	assert.Equal(t, StartMillis, result.Trace[0].Result["timestamp"])
	assert.Equal(t, ActionSync, result.Trace[1].Action)
	assert.Equal(t, ActionUpload, result.Trace[2].Action)
	assert.Equal(t, "synced", result.Trace[2].Result["status"])

	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "wrong expectations are reported",
		Online:      boolPtr(false),
		Flow: []Step{
			{Save: &SaveStep{Lat: 1, Lon: 1, Type: "SOS"}, Expect: &ExpectClause{
				Stats: &StatsClause{Pending: 5},
			}},
			{Sync: &SyncStep{}, Expect: &ExpectClause{
				Result: &CountsClause{Synced: 1},
			}},
			{Save: &SaveStep{Lat: 1, Lon: 1, Type: "SOS"}, Expect: &ExpectClause{
				Error: "out of range",
			}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "flow[0]: stats")
	assert.Contains(t, result.Errors[1], "flow[1]: sync result")
	assert.Contains(t, result.Errors[2], "flow[2]: expected error")
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_draft",
		Description: "invalid draft without error expectation",
		Flow: []Step{
			{Save: &SaveStep{Lat: 200, Lon: 1, Type: "SOS"}, Expect: &ExpectClause{}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Contains(t, result.Trace[0].Result["error"], "latitude 200 out of range")
}

func TestRun_IDPrefixAndClock(t *testing.T) {
	scenario := &Scenario{
		Name:        "prefix",
		Description: "ids and timestamps are deterministic",
		IDPrefix:    "unit",
		Online:      boolPtr(false),
		Flow: []Step{
			{Advance: "2s"},
			{Save: &SaveStep{Lat: 1, Lon: 1, Type: "SOS"}},
			{Save: &SaveStep{Lat: 1, Lon: 1, Type: "SOS", Timestamp: 42}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	assert.Equal(t, "unit-0001", result.Trace[1].Result["id"])
	assert.Equal(t, StartMillis+2000, result.Trace[1].Result["timestamp"])
	assert.Equal(t, "unit-0002", result.Trace[2].Result["id"])
	assert.Equal(t, int64(42), result.Trace[2].Result["timestamp"])
	assert.Equal(t, 2, result.Stats.Pending)
}

func TestRun_ServerFailureRecordsStatus(t *testing.T) {
	scenario := &Scenario{
		Name:        "server_fail",
		Description: "failed uploads are traced with their status",
		Flow: []Step{
			{Server: ServerFail},
			{Save: &SaveStep{Lat: 1, Lon: 1, Type: "SOS"}},
			{Sync: &SyncStep{}, Expect: &ExpectClause{Result: &CountsClause{Failed: 1}}},
		},
		Assertions: []Assertion{
			{Type: AssertRowCount, Table: TableReports, Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	upload := result.Trace[len(result.Trace)-1]
	assert.Equal(t, ActionUpload, upload.Action)
	assert.Equal(t, "http 500", upload.Result["error"])
}

func TestRun_DropAckStoresReport(t *testing.T) {
	scenario := &Scenario{
		Name:        "drop_ack",
		Description: "lost acknowledgements leave the report stored",
		Flow: []Step{
			{Server: ServerDropAck},
			{Save: &SaveStep{Lat: 1, Lon: 1, Type: "SOS"}},
			{Sync: &SyncStep{}, Expect: &ExpectClause{
				Result: &CountsClause{Failed: 1},
				Stats:  &StatsClause{Pending: 1},
			}},
		},
		Assertions: []Assertion{
			{Type: AssertRowCount, Table: TableReports, Where: map[string]any{"offline_id": "sos-0001"}, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_AssertionFailuresReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "assert_fail",
		Description: "assertion failures become result errors",
		Flow: []Step{
			{Save: &SaveStep{Lat: 1, Lon: 1, Type: "SOS"}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Action: ActionUpload, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "trace_count")
}

func TestScenarioFiles(t *testing.T) {
	files, err := filepath.Glob("../../testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
