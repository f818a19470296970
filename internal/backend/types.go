package backend

// Hospital is the subset of the hospital resource the client uses.
type Hospital struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name"`
	Address           string   `json:"address,omitempty"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	District          string   `json:"district,omitempty"`
	State             string   `json:"state,omitempty"`
	EmergencyNum      string   `json:"emergencyNum,omitempty"`
	HospitalCategory  string   `json:"hospitalCategory,omitempty"`
	TotalNumBeds      int      `json:"totalNumBeds,omitempty"`
	EmergencyServices string   `json:"emergencyServices,omitempty"`
}

// Page is the pagination envelope returned by list endpoints.
type Page[T any] struct {
	Content          []T   `json:"content"`
	TotalElements    int64 `json:"totalElements"`
	TotalPages       int   `json:"totalPages"`
	Size             int   `json:"size"`
	Number           int   `json:"number"` // zero-based
	First            bool  `json:"first"`
	Last             bool  `json:"last"`
	NumberOfElements int   `json:"numberOfElements"`
	Empty            bool  `json:"empty"`
}

// Bed types accepted by FindNearestHospital.
const (
	BedTypeICU        = "ICU"
	BedTypeVentilator = "VENTILATOR"
	BedTypeGeneral    = "GENERAL"
)

// AmbulanceRequest asks for the nearest hospital with a free bed.
type AmbulanceRequest struct {
	AmbulanceID     string  `json:"ambulanceId"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	RequiredBedType string  `json:"requiredBedType"`
}

// HospitalMatch is the matched hospital, with a reserved bed and, when the
// routing service answered, the road route to it.
type HospitalMatch struct {
	HospitalID      int64        `json:"hospitalId"`
	HospitalName    string       `json:"hospitalName"`
	DistanceInKm    float64      `json:"distanceInKm"`
	AvailableBeds   int          `json:"availableBeds"`
	BedID           int64        `json:"bedId"`
	ETAMinutes      int          `json:"etaMinutes,omitempty"`
	EncodedPolyline string       `json:"encodedPolyline,omitempty"`
	RouteCoords     [][2]float64 `json:"routeCoordinates,omitempty"` // [lat, lng] pairs
}

// SOSAck is the receiver's answer to an upload.
type SOSAck struct {
	Status    string `json:"status"` // "synced" or "already_synced"
	ID        int64  `json:"id"`
	OfflineID string `json:"offlineId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Upload acknowledgement statuses.
const (
	AckSynced        = "synced"
	AckAlreadySynced = "already_synced"
)
