package ir

// Command-center lifecycle of a received report.
const (
	StatusPending      = "PENDING"
	StatusAcknowledged = "ACKNOWLEDGED"
	StatusDispatched   = "DISPATCHED"
	StatusResolved     = "RESOLVED"
)

// ValidStatuses defines allowed report statuses.
var ValidStatuses = map[string]bool{
	StatusPending:      true,
	StatusAcknowledged: true,
	StatusDispatched:   true,
	StatusResolved:     true,
}

// ServerReport is a report as stored by the command center after upload.
type ServerReport struct {
	ID              int64   `json:"id"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	EmergencyType   string  `json:"emergencyType"`
	Message         string  `json:"message"`
	ClientTimestamp int64   `json:"clientTimestamp"`
	ServerTimestamp int64   `json:"serverTimestamp"`
	OfflineID       string  `json:"offlineId,omitempty"`
	Status          string  `json:"status"`
}
