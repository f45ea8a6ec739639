package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/tidwall/gjson"
)

// Kind classifies why a remote call failed
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindHTTP            Kind = "http"
	KindNetwork         Kind = "network"
	KindTimeout         Kind = "timeout"
)

// Error is returned by every Client method that fails. Status is 0 when no
// response was received.
type Error struct {
	Op     string
	Kind   Kind
	Status int
	Body   []byte
	Cause  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

// Unwrap allows errors.Is and errors.As to work
func (e *Error) Unwrap() error {
	return e.Cause
}

// Unauthenticated covers both a missing token and a 401 response
func (e *Error) Unauthenticated() bool {
	return e.Kind == KindUnauthenticated || e.Status == http.StatusUnauthorized
}

// Transient reports failures worth retrying as-is: network, timeout and 5xx
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTP:
		return e.Status >= 500 || e.Status == http.StatusRequestTimeout || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// SessionInvalid reports a rejected recording session: any 403, or a 400
// whose reason names the session
func (e *Error) SessionInvalid() bool {
	if e.Kind != KindHTTP {
		return false
	}
	switch e.Status {
	case http.StatusForbidden:
		return true
	case http.StatusBadRequest:
		return mentionsSession(e.Body)
	default:
		return false
	}
}

func mentionsSession(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	if gjson.ValidBytes(body) {
		root := gjson.ParseBytes(body)
		for _, path := range []string{"errorKey", "errorMessage", "error", "detail", "reason"} {
			if strings.Contains(strings.ToLower(root.Get(path).String()), "session") {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(string(body)), "session")
}

// AsError extracts a *Error from err
func AsError(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func transportError(op string, err error) *Error {
	kind := KindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Op: op, Kind: kind, Cause: err}
}

// Detail renders the failure for display. Transport failures never surface
// their raw text as the title.
func (e *Error) Detail(t *apierror.Translator) apierror.Detail {
	switch e.Kind {
	case KindUnauthenticated:
		if len(e.Body) > 0 {
			d := t.Translate(http.StatusUnauthorized, e.Body)
			if len(d.Suggestions) == 0 {
				d.Suggestions = t.TranslateKey(apierror.KeyUnauthenticated, nil, "sign_in").Suggestions
			}
			return d
		}
		return t.TranslateKey(apierror.KeyUnauthenticated, nil, "sign_in")
	case KindTimeout:
		return t.TranslateKey(apierror.KeyTimeout, nil, "retry")
	case KindNetwork:
		return t.TranslateKey(apierror.KeyNetwork, nil, "check_connection")
	default:
		return t.Translate(e.Status, e.Body)
	}
}
