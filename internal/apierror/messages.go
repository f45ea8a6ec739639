package apierror

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// DefaultMessages is the English message catalog keyed by error or suggestion key
var DefaultMessages = map[string]string{
	KeyUnauthenticated:   "Your sign-in has expired. Please sign in again.",
	KeyScriptNotFound:    "No script is available for this duration right now.",
	KeyServerUnavailable: "The recording service is temporarily unavailable.",
	KeyRecordingNotFound: "The recording could not be found.",
	KeySessionExpired:    "Your recording session has expired.",
	KeySessionInvalid:    "Your recording session is no longer valid.",
	KeyFileTooLarge:      "The recording is larger than {maxBytes} bytes allowed for this duration.",
	KeyInvalidRequest:    "The request was rejected by the recording service.",
	KeyInvalidDuration:   "The selected recording duration is not supported.",
	KeyRecordingTooShort: "The recording is shorter than one second.",
	KeyNetwork:           "Unable to reach the recording service.",
	KeyTimeout:           "The recording service took too long to respond.",
	KeyDeviceUnavailable: "The microphone could not be opened.",
	KeyInternal:          "Something went wrong on our side.",

	"retry":               "Try again in a moment.",
	"check_connection":    "Check your internet connection and try again.",
	"sign_in":             "Sign in and start over.",
	"choose_other_tier":   "Choose a different recording duration.",
	"allow_microphone":    "Allow microphone access and start the recording again.",
	"record_shorter_take": "Record a shorter take of at most {maxSeconds} seconds.",
	"record_longer_take":  "Record at least one second before stopping.",
}

// statusKey picks the fallback key for a bare HTTP status
func statusKey(status int) string {
	switch {
	case status == 0:
		return KeyNetwork
	case status == http.StatusUnauthorized:
		return KeyUnauthenticated
	case status == http.StatusForbidden:
		return KeySessionInvalid
	case status == http.StatusNotFound:
		return KeyScriptNotFound
	case status == http.StatusRequestEntityTooLarge:
		return KeyFileTooLarge
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KeyTimeout
	case status >= 500:
		return KeyServerUnavailable
	case status >= 400:
		return KeyInvalidRequest
	default:
		return KeyInternal
	}
}

// interpolate replaces {name} placeholders with params
func interpolate(template string, params map[string]any) string {
	if len(params) == 0 || !strings.Contains(template, "{") {
		return template
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", formatParam(v))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// formatParam prints JSON numbers without an exponent when they are integral
func formatParam(v any) string {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprint(v)
}
