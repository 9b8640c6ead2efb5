package overpass

import (
	"fmt"
	"strings"
)

type FailureKind int

const (
	// FailureTransport is a timeout or connection error. Another endpoint or round may succeed.
	FailureTransport FailureKind = iota

	// FailureOverload is a 429/502/503/504 status or a body complaining about load, rate limits or timeouts.
	FailureOverload

	// FailureMalformed is a 2xx response whose body is not JSON, typically an HTML error page served with status 200.
	FailureMalformed

	// FailureHTTP is any other non-2xx status. It does not alter the retry backoff, but the remaining endpoints of
	// the round are still raced.
	FailureHTTP
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransport:
		return "transport"
	case FailureOverload:
		return "overload"
	case FailureMalformed:
		return "malformed"
	case FailureHTTP:
		return "http"
	}
	return fmt.Sprintf("[!UNKNOWN FailureKind %d]", k)
}

// Retryable returns true when a later round has a realistic chance of succeeding for this kind of failure.
func (k FailureKind) Retryable() bool {
	return k == FailureTransport || k == FailureOverload || k == FailureMalformed
}

// AttemptError is the classified failure of a single endpoint attempt.
type AttemptError struct {
	Endpoint string
	Kind     FailureKind
	Err      error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("endpoint %s failed (%s): %v", e.Endpoint, e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// ExhaustedError is raised after every endpoint failed in every round. It aggregates the per-endpoint reasons of the
// last round.
type ExhaustedError struct {
	Rounds   int
	Failures []*AttemptError
}

func (e *ExhaustedError) Error() string {
	reasons := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		reasons = append(reasons, failure.Error())
	}
	return fmt.Sprintf("all endpoints failed after %d rounds: %s", e.Rounds, strings.Join(reasons, "; "))
}
