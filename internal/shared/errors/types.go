package errors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

// TransientError marks a failure worth retrying: rate limits, upstream
// outages, dropped connections.
type TransientError struct {
	Err        error
	RetryAfter int // seconds, from a Retry-After header when present
	StatusCode int
	Message    string
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that repeats on every attempt: bad
// credentials, unknown models, malformed requests.
type PermanentError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

func NewTransientError(err error, message string) *TransientError {
	return &TransientError{Err: err, Message: message}
}

func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Message: message}
}

type errorClass int

const (
	classUnknown errorClass = iota
	classTransient
	classPermanent
)

var (
	transientStatus = map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
	permanentStatus = map[int]bool{
		http.StatusBadRequest:          true,
		http.StatusUnauthorized:        true,
		http.StatusForbidden:           true,
		http.StatusNotFound:            true,
		http.StatusUnprocessableEntity: true,
	}

	networkHints   = []string{"connection refused", "connection reset", "broken pipe", "timeout", "deadline exceeded", "no such host"}
	permanentHints = []string{"not found", "permission denied", "invalid", "unauthorized", "forbidden", "bad request"}

	transientErrnos = map[syscall.Errno]bool{
		syscall.ECONNREFUSED: true,
		syscall.ECONNRESET:   true,
		syscall.EPIPE:        true,
		syscall.ETIMEDOUT:    true,
		syscall.ENETUNREACH:  true,
		syscall.EHOSTUNREACH: true,
	}
)

// classify checks, in order: explicit wrappers, an HTTP status, network
// failures, then wording that signals a permanent fault.
func classify(err error) errorClass {
	if err == nil {
		return classUnknown
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return classTransient
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return classPermanent
	}
	if code := ExtractHTTPStatusCode(err); code > 0 {
		switch {
		case transientStatus[code]:
			return classTransient
		case permanentStatus[code]:
			return classPermanent
		}
	}
	if isNetworkError(err) {
		return classTransient
	}
	if containsAny(strings.ToLower(err.Error()), permanentHints) {
		return classPermanent
	}
	return classUnknown
}

// IsTransient reports whether retrying err may succeed. Unclassified
// errors are not retried.
func IsTransient(err error) bool {
	return classify(err) == classTransient
}

// IsPermanent reports whether err is known to repeat on retry.
func IsPermanent(err error) bool {
	return classify(err) == classPermanent
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && transientErrnos[errno] {
		return true
	}
	return containsAny(strings.ToLower(err.Error()), networkHints)
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

var statusPattern = regexp.MustCompile(`(?:^|\D)(4\d\d|5\d\d)(?:\D|$)`)

// ExtractHTTPStatusCode returns the status carried by a typed error, or the
// first known 4xx/5xx code in the message ("status code: 429",
// "HTTP 503: ..."). Zero means none.
func ExtractHTTPStatusCode(err error) int {
	if err == nil {
		return 0
	}
	var transient *TransientError
	if errors.As(err, &transient) && transient.StatusCode > 0 {
		return transient.StatusCode
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) && permanent.StatusCode > 0 {
		return permanent.StatusCode
	}

	for _, match := range statusPattern.FindAllStringSubmatch(err.Error(), -1) {
		code, convErr := strconv.Atoi(match[1])
		if convErr == nil && http.StatusText(code) != "" {
			return code
		}
	}
	return 0
}

// FormatForOperator turns a decision-maker failure into one line for the
// processing log and CLI output.
func FormatForOperator(err error) string {
	if err == nil {
		return ""
	}
	var transient *TransientError
	if errors.As(err, &transient) && transient.Message != "" {
		return transient.Message
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) && permanent.Message != "" {
		return permanent.Message
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "connection refused"):
		return "Decision service is not reachable. Check llm.base_url."
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		return "Decision service rate limit reached; retried with backoff."
	case strings.Contains(lower, "deadline exceeded") || strings.Contains(lower, "timeout"):
		return "Decision service timed out."
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "401"):
		return "Decision service rejected the API key. Check llm.api_key."
	}
	return err.Error()
}
