package beacon

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type capturedRequest struct {
	method      string
	path        string
	header      http.Header
	body        string
	tlsVersion  uint16
	cipherSuite uint16
}

type MockEndpoint struct {
	server *httptest.Server

	mu         sync.Mutex
	requests   []capturedRequest
	statusCode int
	response   string
	location   string
	stall      bool
}

func NewMockEndpoint(t *testing.T) *MockEndpoint {
	return newMockEndpointTLS(t, nil)
}

func newMockEndpointTLS(t *testing.T, tlsConfig *tls.Config) *MockEndpoint {
	e := &MockEndpoint{statusCode: http.StatusNoContent}
	e.server = httptest.NewUnstartedServer(http.HandlerFunc(e.handle))
	e.server.TLS = tlsConfig
	e.server.StartTLS()
	t.Cleanup(e.server.Close)
	return e
}

func (e *MockEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	e.mu.Lock()
	req := capturedRequest{
		method: r.Method,
		path:   r.URL.Path,
		header: r.Header.Clone(),
		body:   string(body),
	}
	if r.TLS != nil {
		req.tlsVersion = r.TLS.Version
		req.cipherSuite = r.TLS.CipherSuite
	}
	e.requests = append(e.requests, req)
	statusCode, response, location, stall := e.statusCode, e.response, e.location, e.stall
	e.mu.Unlock()

	if stall {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(5 * time.Second):
		}
	}

	if location != "" {
		w.Header().Set("Location", location)
	}
	w.WriteHeader(statusCode)
	_, _ = io.WriteString(w, response)
}

func (e *MockEndpoint) Respond(statusCode int, response string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statusCode = statusCode
	e.response = response
}

// Redirect answers every request with a 302 to path on the same server.
func (e *MockEndpoint) Redirect(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statusCode = http.StatusFound
	e.response = "moved"
	e.location = e.server.URL + path
}

// Stall makes the endpoint hold requests until the client gives up.
func (e *MockEndpoint) Stall() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stall = true
}

func (e *MockEndpoint) URL() string {
	return e.server.URL + "/beacon/v1/ingest-metrics"
}

func (e *MockEndpoint) RootCAs() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(e.server.Certificate())
	return pool
}

func (e *MockEndpoint) HasContent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests) > 0
}

func (e *MockEndpoint) Requests() []capturedRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]capturedRequest(nil), e.requests...)
}

func (e *MockEndpoint) Bodies() []string {
	var bodies []string
	for _, req := range e.Requests() {
		bodies = append(bodies, req.body)
	}
	return bodies
}

func testConfig(endpoint string) Config {
	config := DefaultConfig()
	config.Endpoint = endpoint
	config.Token = "test-token"
	config.SourceName = "test-source-name"
	return config
}
