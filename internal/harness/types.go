package harness

import "github.com/lifeline/lifeline/internal/ir"

// Trace actions.
const (
	ActionSave       = "save"
	ActionSetOnline  = "set_online"
	ActionSync       = "sync"
	ActionUpload     = "upload"
	ActionMarkSynced = "mark_synced"
	ActionServer     = "server"
	ActionAdvance    = "advance"
)

// TraceEvent is one observed step. Args describe the request, Result what
// came back.
type TraceEvent struct {
	Seq    int64          `json:"seq"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
	Result map[string]any `json:"result,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Stats are the queue counts after the last step.
	Stats ir.Stats `json:"stats"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addEvent appends an event and returns its index so the caller can fill in
// the result later.
func (r *Result) addEvent(seq int64, action string, args map[string]any) int {
	r.Trace = append(r.Trace, TraceEvent{Seq: seq, Action: action, Args: args})
	return len(r.Trace) - 1
}
