// Package apierror defines the structured failure payload exchanged with the
// recording service and turns any failure body into a display-ready Detail.
package apierror

// Well-known error keys shared by the service and the client
const (
	KeyUnauthenticated   = "unauthenticated"
	KeyScriptNotFound    = "script_not_found"
	KeyRecordingNotFound = "recording_not_found"
	KeyServerUnavailable = "server_unavailable"
	KeySessionExpired    = "session_expired"
	KeySessionInvalid    = "session_invalid"
	KeyFileTooLarge      = "file_too_large"
	KeyInvalidRequest    = "invalid_request"
	KeyInvalidDuration   = "invalid_duration"
	KeyRecordingTooShort = "recording_too_short"
	KeyNetwork           = "network_error"
	KeyTimeout           = "timeout"
	KeyDeviceUnavailable = "device_unavailable"
	KeyInternal          = "internal_error"
)

// Suggestion is an actionable hint attached to a failure
type Suggestion struct {
	Key     string         `json:"key"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

// Payload is the structured error body the service produces
type Payload struct {
	ErrorKey     string       `json:"errorKey"`
	ErrorMessage string       `json:"errorMessage"`
	Details      any          `json:"details,omitempty"`
	Suggestions  []Suggestion `json:"suggestions,omitempty"`
	RequestID    string       `json:"requestId,omitempty"`
}

// Detail is the uniform, display-ready shape of any failure
type Detail struct {
	Key         string       `json:"key,omitempty"`
	Title       string       `json:"title"`
	Details     string       `json:"details,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}
