package webhook

import (
	"errors"
	"fmt"
)

// Kind classifies why a send failed. The retry controller decides on kinds,
// never on error text.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindHTTPStatus  Kind = "http_status"
	KindCrossOrigin Kind = "cross_origin"
	KindRejected    Kind = "rejected"
	KindCanceled    Kind = "canceled"
	KindUnknown     Kind = "unknown"
)

// Error is returned by every failing Client call.
type Error struct {
	Kind       Kind
	Mode       Mode
	StatusCode int
	// Message is the server-supplied reason for KindRejected.
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("webhook: http status %d (mode=%s)", e.StatusCode, e.Mode)
	case e.Kind == KindRejected && e.Message != "":
		return fmt.Sprintf("webhook: rejected: %s", e.Message)
	case e.Err != nil:
		return fmt.Sprintf("webhook: %s (mode=%s): %v", e.Kind, e.Mode, e.Err)
	default:
		return fmt.Sprintf("webhook: %s (mode=%s)", e.Kind, e.Mode)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err. Errors that did not come from
// this package are KindUnknown; nil is the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return KindUnknown
}

// StatusCodeOf returns the HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.StatusCode
	}
	return 0
}

var (
	errUnreadableResponse  = errors.New("response is not a readable webhook envelope")
	errMissingEndpoint     = errors.New("webhook: endpoint URL is required")
	errCrossOriginRedirect = errors.New("redirect to another origin")
)
