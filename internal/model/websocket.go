package model

// WebSocket message types
const (
	WSMessageTypeState     = "state"
	WSMessageTypeTrack     = "track"
	WSMessageTypeOperation = "operation"
	WSMessageTypeRates     = "rates"
	WSMessageTypeError     = "error"
	WSMessageTypePing      = "ping"
	WSMessageTypePong      = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStateMessage announces an orchestrator state change
type WSStateMessage struct {
	Type             string `json:"type"`
	State            string `json:"state"`
	OperationVersion uint64 `json:"operationVersion"`
	Error            string `json:"error,omitempty"`
}

// WSTrackMessage carries the latest snapshot of a tracked video
type WSTrackMessage struct {
	Type  string     `json:"type"`
	JobID string     `json:"jobId"`
	Job   TrackedJob `json:"job"`
}

// WSOperationMessage reports a completed operation
type WSOperationMessage struct {
	Type             string        `json:"type"`
	Kind             OperationKind `json:"kind"`
	OperationVersion uint64        `json:"operationVersion"`
	Result           interface{}   `json:"result,omitempty"`
}

// WSRatesMessage announces freshly fetched exchange rates
type WSRatesMessage struct {
	Type      string `json:"type"`
	Base      string `json:"base"`
	Count     int    `json:"count"`
	FetchedAt int64  `json:"fetchedAt"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId,omitempty"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
