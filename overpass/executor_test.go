package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"oqc/util"
	"sync/atomic"
	"testing"
	"time"
)

const validPayload = `{"elements":[]}`

func jsonServer(t *testing.T, payload string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(payload))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestExecutor(maxRounds int, servers ...*httptest.Server) *Executor {
	var endpoints []Endpoint
	for i, server := range servers {
		endpoints = append(endpoints, Endpoint{Name: string(rune('A' + i)), URL: server.URL})
	}
	return NewExecutor(endpoints, maxRounds, 5*time.Millisecond, 5*time.Second)
}

func TestExecute_htmlErrorPageLosesAgainstValidJson(t *testing.T) {
	// Arrange: endpoint A serves an HTML error page with status 200, endpoint B valid JSON with status 200.
	htmlServer := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/html")
		_, _ = writer.Write([]byte("<html><body>Something went wrong</body></html>"))
	}))
	t.Cleanup(htmlServer.Close)
	jsonResponder := jsonServer(t, validPayload)

	executor := newTestExecutor(1, htmlServer, jsonResponder)

	// Act
	payload, err := executor.Execute(context.Background(), "test query")

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, validPayload, string(payload))
}

func TestExecute_firstSuccessCancelsPendingAttempts(t *testing.T) {
	// Arrange: endpoint A answers immediately, endpoint B would take much longer.
	fastServer := jsonServer(t, `{"elements":[{"type":"way","id":1}]}`)
	slowServer := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-request.Context().Done():
			return
		}
		_, _ = writer.Write([]byte(validPayload))
	}))
	t.Cleanup(slowServer.Close)

	executor := newTestExecutor(1, fastServer, slowServer)

	// Act
	startTime := time.Now()
	payload, err := executor.Execute(context.Background(), "test query")

	// Assert: the executor must return A's payload without waiting for B.
	util.AssertNil(t, err)
	util.AssertEqual(t, `{"elements":[{"type":"way","id":1}]}`, string(payload))
	util.AssertTrue(t, time.Since(startTime) < time.Second)
}

func TestExecute_allEndpointsFailInAllRounds(t *testing.T) {
	// Arrange
	var requestCountA, requestCountB atomic.Int32
	serverA := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestCountA.Add(1)
		writer.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(serverA.Close)
	serverB := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestCountB.Add(1)
		writer.WriteHeader(http.StatusGatewayTimeout)
	}))
	t.Cleanup(serverB.Close)

	executor := newTestExecutor(2, serverA, serverB)

	// Act
	payload, err := executor.Execute(context.Background(), "test query")

	// Assert: both endpoints were tried in both rounds and the aggregate error names both reasons.
	util.AssertNotNil(t, err)
	util.AssertNil(t, payload)
	util.AssertEqual(t, int32(2), requestCountA.Load())
	util.AssertEqual(t, int32(2), requestCountB.Load())

	exhausted, ok := err.(*ExhaustedError)
	util.AssertTrue(t, ok)
	util.AssertEqual(t, 2, exhausted.Rounds)
	util.AssertEqual(t, 2, len(exhausted.Failures))
	for _, failure := range exhausted.Failures {
		util.AssertEqual(t, FailureOverload, failure.Kind)
	}
}

func TestExecute_laterRoundSucceeds(t *testing.T) {
	// Arrange: the endpoint is overloaded on the first request and recovers afterwards.
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if requestCount.Add(1) == 1 {
			writer.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = writer.Write([]byte(validPayload))
	}))
	t.Cleanup(server.Close)

	executor := newTestExecutor(3, server)

	// Act
	payload, err := executor.Execute(context.Background(), "test query")

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, validPayload, string(payload))
	util.AssertEqual(t, int32(2), requestCount.Load())
}

func TestExecute_callerCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-request.Context().Done():
			return
		}
		_, _ = writer.Write([]byte(validPayload))
	}))
	t.Cleanup(server.Close)

	executor := newTestExecutor(1, server)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	startTime := time.Now()
	_, err := executor.Execute(ctx, "test query")

	util.AssertNotNil(t, err)
	util.AssertTrue(t, time.Since(startTime) < time.Second)
}

func TestExecute_noEndpoints(t *testing.T) {
	executor := NewExecutor(nil, 3, time.Millisecond, time.Second)

	_, err := executor.Execute(context.Background(), "test query")

	util.AssertNotNil(t, err)
}

func TestIsRetryableStatus(t *testing.T) {
	util.AssertTrue(t, isRetryableStatus(http.StatusTooManyRequests))
	util.AssertTrue(t, isRetryableStatus(http.StatusBadGateway))
	util.AssertTrue(t, isRetryableStatus(http.StatusServiceUnavailable))
	util.AssertTrue(t, isRetryableStatus(http.StatusGatewayTimeout))
	util.AssertFalse(t, isRetryableStatus(http.StatusNotFound))
	util.AssertFalse(t, isRetryableStatus(http.StatusBadRequest))
}

func TestBodyIndicatesOverload(t *testing.T) {
	util.AssertTrue(t, bodyIndicatesOverload([]byte("Error: runtime error: Query timed out")))
	util.AssertTrue(t, bodyIndicatesOverload([]byte("The server is too busy right now")))
	util.AssertTrue(t, bodyIndicatesOverload([]byte("RATE LIMIT exceeded")))
	util.AssertFalse(t, bodyIndicatesOverload([]byte("not found")))
}

func TestIsStructurallyValidJson(t *testing.T) {
	util.AssertTrue(t, isStructurallyValidJson([]byte(`{"elements":[]}`)))
	util.AssertTrue(t, isStructurallyValidJson([]byte("  \n\t[1,2]")))
	util.AssertFalse(t, isStructurallyValidJson([]byte("<html></html>")))
	util.AssertFalse(t, isStructurallyValidJson([]byte("")))
	util.AssertFalse(t, isStructurallyValidJson([]byte("   ")))
}

func TestFailureKind_retryable(t *testing.T) {
	util.AssertTrue(t, FailureTransport.Retryable())
	util.AssertTrue(t, FailureOverload.Retryable())
	util.AssertTrue(t, FailureMalformed.Retryable())
	util.AssertFalse(t, FailureHTTP.Retryable())
}
