package ir

// Well-known emergency categories. EmergencyType is free-form; these are the
// tags the SOS screens emit.
const (
	EmergencySOS       = "SOS"
	EmergencySafe      = "SAFE"
	EmergencyVoiceSOS  = "VOICE_SOS"
	EmergencyManualSOS = "MANUAL_SOS"
)

// Draft is an SOS report as supplied by a caller, before the queue assigns
// identity and sync state.
type Draft struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	EmergencyType string  `json:"emergencyType"`
	Message       string  `json:"message"`
	Timestamp     int64   `json:"timestamp"` // Client clock, unix milliseconds
}

// Record is a stored SOS report.
type Record struct {
	ID            string  `json:"id"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	EmergencyType string  `json:"emergencyType"`
	Message       string  `json:"message"`
	Timestamp     int64   `json:"timestamp"`
	Synced        bool    `json:"synced"`
	RetryCount    int     `json:"retryCount"` // Persisted but never incremented
}

// NewRecord builds a pending record from a draft.
func NewRecord(id string, d Draft) Record {
	return Record{
		ID:            id,
		Latitude:      d.Latitude,
		Longitude:     d.Longitude,
		EmergencyType: d.EmergencyType,
		Message:       d.Message,
		Timestamp:     d.Timestamp,
		Synced:        false,
		RetryCount:    0,
	}
}

// Draft returns the caller-supplied portion of the record.
func (r Record) Draft() Draft {
	return Draft{
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		EmergencyType: r.EmergencyType,
		Message:       r.Message,
		Timestamp:     r.Timestamp,
	}
}

// Report returns the upload payload for the record.
// The record ID doubles as the server-side idempotency key.
func (r Record) Report() Report {
	return Report{
		Latitude:        r.Latitude,
		Longitude:       r.Longitude,
		EmergencyType:   r.EmergencyType,
		Message:         r.Message,
		ClientTimestamp: r.Timestamp,
		OfflineID:       r.ID,
	}
}

// Report is the JSON body of POST /api/sos/report.
type Report struct {
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	EmergencyType   string  `json:"emergencyType"`
	Message         string  `json:"message"`
	ClientTimestamp int64   `json:"clientTimestamp"`
	OfflineID       string  `json:"offlineId"`
}

// Stats are the aggregate queue counts broadcast to subscribers.
type Stats struct {
	Pending int `json:"pending"`
	Synced  int `json:"synced"`
}

// Total returns the number of records in the queue.
func (s Stats) Total() int {
	return s.Pending + s.Synced
}

// SyncResult is the outcome of one sync pass.
type SyncResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}
