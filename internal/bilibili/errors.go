package bilibili

import (
	"errors"
	"fmt"
)

// Sentinel error kinds classifying a failed bilibili API call, mirroring
// spec §7's taxonomy so callers can decide whether to retry, back off, or
// give up on a sub-task slot.
var (
	// ErrTransport covers network-level failures: DNS, TLS, connection
	// reset, timeout. Always retryable.
	ErrTransport = errors.New("bilibili: transport error")

	// ErrLogical is returned when the JSON envelope's code field is
	// non-zero and doesn't match a more specific sentinel below.
	ErrLogical = errors.New("bilibili: logical error")

	// ErrNotFound corresponds to code -404: resource has been deleted or
	// made private since being indexed.
	ErrNotFound = errors.New("bilibili: resource not found")

	// ErrRiskControl corresponds to codes -352/-412: the request was
	// rejected by risk control (rate limiting, captcha, geo block).
	ErrRiskControl = errors.New("bilibili: blocked by risk control")

	// ErrNeedLogin corresponds to code -101: credential missing or expired.
	ErrNeedLogin = errors.New("bilibili: credential required or expired")

	// ErrParse covers a 200 response whose body isn't the expected JSON
	// envelope shape.
	ErrParse = errors.New("bilibili: malformed response body")
)

// APIError wraps a non-zero envelope code/message pair and classifies it
// against one of the sentinels above via errors.Is.
type APIError struct {
	Code    int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: code=%d message=%s", e.kind.Error(), e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

func classifyCode(code int) error {
	switch code {
	case -404:
		return ErrNotFound
	case -352, -412:
		return ErrRiskControl
	case -101:
		return ErrNeedLogin
	default:
		return ErrLogical
	}
}

func newAPIError(code int, message string) *APIError {
	return &APIError{Code: code, Message: message, kind: classifyCode(code)}
}
