package overpass

import (
	"bytes"
	"context"
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Endpoint is one independently operated mirror of the query service.
type Endpoint struct {
	Name string
	URL  string
}

// Executor issues one logical query as a hedged race against all configured endpoints: within a round every endpoint
// is attempted simultaneously and the first structurally valid response wins, the losing attempts are cancelled. A
// fully failed round is retried with a growing backoff until MaxRounds is reached.
type Executor struct {
	endpoints   []Endpoint
	httpClient  *http.Client
	maxRounds   int
	baseBackoff time.Duration
}

// Connection pooling matters here since every round opens one connection per endpoint.
var defaultTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 4,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	ForceAttemptHTTP2:   true,
	DialContext: (&net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

func NewExecutor(endpoints []Endpoint, maxRounds int, baseBackoff time.Duration, requestTimeout time.Duration) *Executor {
	return &Executor{
		endpoints:   endpoints,
		httpClient:  &http.Client{Timeout: requestTimeout, Transport: defaultTransport.Clone()},
		maxRounds:   maxRounds,
		baseBackoff: baseBackoff,
	}
}

type attemptOutcome struct {
	endpoint Endpoint
	payload  []byte
	err      *AttemptError
}

// Execute runs the given query string against the endpoints and returns the first structurally valid payload. It
// only returns an error when the caller cancelled the context or when all endpoints failed in all rounds.
func (e *Executor) Execute(ctx context.Context, query string) ([]byte, error) {
	if len(e.endpoints) == 0 {
		return nil, errors.Errorf("No endpoints configured")
	}

	var lastRoundFailures []*AttemptError

	for round := 1; round <= e.maxRounds; round++ {
		if round > 1 {
			delay := e.baseBackoff * time.Duration(round-1)
			sigolo.Debugf("Round %d failed for all %d endpoints, waiting %s before round %d", round-1, len(e.endpoints), delay, round)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "Query cancelled while waiting for the next retry round")
			}
		}

		payload, failures, err := e.executeRound(ctx, query)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			return payload, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "Query cancelled")
		}

		for _, failure := range failures {
			sigolo.Debugf("Attempt in round %d failed: %s", round, failure.Error())
		}
		lastRoundFailures = failures
	}

	return nil, &ExhaustedError{Rounds: e.maxRounds, Failures: lastRoundFailures}
}

// executeRound races all endpoints once. It returns the winning payload, or the per-endpoint failures when every
// attempt failed, or an error when the caller cancelled. Losing in-flight attempts are cancelled internally and
// their outcomes silently discarded, this cancellation is never visible to the caller.
func (e *Executor) executeRound(ctx context.Context, query string) ([]byte, []*AttemptError, error) {
	roundCtx, cancelRound := context.WithCancel(ctx)
	defer cancelRound()

	// Buffered so the losing attempts can deliver their outcome and terminate even when nobody reads it anymore.
	outcomes := make(chan attemptOutcome, len(e.endpoints))

	for _, endpoint := range e.endpoints {
		go func(endpoint Endpoint) {
			payload, err := e.attempt(roundCtx, endpoint, query)
			outcomes <- attemptOutcome{endpoint: endpoint, payload: payload, err: err}
		}(endpoint)
	}

	var failures []*AttemptError
	for i := 0; i < len(e.endpoints); i++ {
		select {
		case outcome := <-outcomes:
			if outcome.err == nil {
				sigolo.Debugf("Endpoint %s won the race with %d bytes", outcome.endpoint.Name, len(outcome.payload))
				return outcome.payload, nil, nil
			}
			failures = append(failures, outcome.err)
		case <-ctx.Done():
			return nil, nil, errors.Wrap(ctx.Err(), "Query cancelled while waiting for endpoint attempts")
		}
	}

	return nil, failures, nil
}

func (e *Executor) attempt(ctx context.Context, endpoint Endpoint, query string) ([]byte, *AttemptError) {
	form := url.Values{}
	form.Set("data", query)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AttemptError{Endpoint: endpoint.Name, Kind: FailureTransport, Err: errors.Wrapf(err, "Unable to create request for endpoint %s", endpoint.Name)}
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := e.httpClient.Do(request)
	if err != nil {
		return nil, &AttemptError{Endpoint: endpoint.Name, Kind: FailureTransport, Err: err}
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &AttemptError{Endpoint: endpoint.Name, Kind: FailureTransport, Err: errors.Wrapf(err, "Unable to read response body from endpoint %s", endpoint.Name)}
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		kind := FailureHTTP
		if isRetryableStatus(response.StatusCode) || bodyIndicatesOverload(body) {
			kind = FailureOverload
		}
		return nil, &AttemptError{
			Endpoint: endpoint.Name,
			Kind:     kind,
			Err:      errors.Errorf("Endpoint %s returned status %d", endpoint.Name, response.StatusCode),
		}
	}

	if !isStructurallyValidJson(body) {
		return nil, &AttemptError{
			Endpoint: endpoint.Name,
			Kind:     FailureMalformed,
			Err:      errors.Errorf("Endpoint %s returned status %d with a non-JSON body", endpoint.Name, response.StatusCode),
		}
	}

	return body, nil
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

var overloadMarkers = []string{
	"timeout",
	"timed out",
	"overload",
	"too busy",
	"server load",
	"rate limit",
	"rate_limited",
	"too many requests",
}

func bodyIndicatesOverload(body []byte) bool {
	text := strings.ToLower(string(body))
	for _, marker := range overloadMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// isStructurallyValidJson checks that the body can possibly be a JSON document. Overloaded mirrors like to serve
// HTML error pages with status 200, those must count as failed attempts.
func isStructurallyValidJson(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
