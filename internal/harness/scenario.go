package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines an end-to-end queue scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Online is the initial reachability. Defaults to true.
	Online *bool `yaml:"online,omitempty"`

	// IDPrefix prefixes generated record ids. Defaults to "sos".
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// Flow contains the steps, executed in order.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is a single flow action. Exactly one action field must be set.
type Step struct {
	Save       *SaveStep `yaml:"save,omitempty"`
	SetOnline  *bool     `yaml:"set_online,omitempty"`
	Sync       *SyncStep `yaml:"sync,omitempty"`
	MarkSynced string    `yaml:"mark_synced,omitempty"`
	Server     string    `yaml:"server,omitempty"`
	Advance    string    `yaml:"advance,omitempty"`

	// Expect is checked after the action. Nil skips validation.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// SaveStep is the draft to queue.
type SaveStep struct {
	Lat       float64 `yaml:"lat"`
	Lon       float64 `yaml:"lon"`
	Type      string  `yaml:"type"`
	Message   string  `yaml:"message"`
	Timestamp int64   `yaml:"timestamp,omitempty"`
}

// SyncStep configures a sync pass.
type SyncStep struct {
	Force bool `yaml:"force,omitempty"`
}

// ExpectClause specifies what a step must produce.
type ExpectClause struct {
	// Error is a substring of the expected error. Empty means success.
	Error string `yaml:"error,omitempty"`

	// Result is the expected sync pass outcome.
	Result *CountsClause `yaml:"result,omitempty"`

	// Stats are the expected queue counts after the step.
	Stats *StatsClause `yaml:"stats,omitempty"`
}

// CountsClause is an expected sync result.
type CountsClause struct {
	Synced int `yaml:"synced"`
	Failed int `yaml:"failed"`
}

// StatsClause is an expected queue state.
type StatsClause struct {
	Pending int `yaml:"pending"`
	Synced  int `yaml:"synced"`
}

// Server modes.
const (
	ServerOK      = "ok"
	ServerFail    = "fail"
	ServerDropAck = "drop_ack"
)

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state
	// or row_count.
	Type string `yaml:"type"`

	// Action is the trace action (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are matched as a subset of event args (trace_contains,
	// trace_count).
	Args map[string]any `yaml:"args,omitempty"`

	// Table is sos_records (device queue) or sos_reports (command center).
	Table string `yaml:"table,omitempty"`

	// Where filters rows by exact column values.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect is a subset of columns the matched row must contain
	// (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of events or rows.
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRowCount      = "row_count"
)

// Tables visible to final_state and row_count.
const (
	TableRecords = "sos_records"
	TableReports = "sos_reports"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	set := 0
	if s.Save != nil {
		set++
	}
	if s.SetOnline != nil {
		set++
	}
	if s.Sync != nil {
		set++
	}
	if s.MarkSynced != "" {
		set++
	}
	if s.Server != "" {
		set++
	}
	if s.Advance != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("flow[%d]: exactly one action is required, got %d", index, set)
	}

	switch s.Server {
	case "", ServerOK, ServerFail, ServerDropAck:
	default:
		return fmt.Errorf("flow[%d]: unknown server mode %q", index, s.Server)
	}

	if s.Advance != "" {
		if _, err := time.ParseDuration(s.Advance); err != nil {
			return fmt.Errorf("flow[%d]: advance: %w", index, err)
		}
	}

	if s.Save != nil && s.Save.Type == "" {
		return fmt.Errorf("flow[%d]: save.type is required", index)
	}

	if s.Expect != nil && s.Expect.Result != nil && s.Sync == nil {
		return fmt.Errorf("flow[%d].expect: result is only valid on sync steps", index)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if err := validateTable(index, a.Table); err != nil {
			return err
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if err := validateTable(index, a.Table); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validateTable(index int, table string) error {
	switch table {
	case TableRecords, TableReports:
		return nil
	case "":
		return fmt.Errorf("assertions[%d]: table is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown table %q", index, table)
	}
}
