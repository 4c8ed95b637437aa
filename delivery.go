package beacon

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const TokenHeader = "X-F5-Ingestion-Token"

// CipherSuites is the TLS 1.2 allow-list. AES256-SHA256 and ECDHE-RSA-AES256-SHA384 are
// not implemented by crypto/tls and cannot be offered.
var CipherSuites = []uint16{
	tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_RSA_WITH_AES_128_CBC_SHA256,
	tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
}

// Outcome classifies a delivery attempt.
type Outcome int

const (
	// NotSent is the zero Outcome, returned with errors raised before any exchange.
	NotSent Outcome = iota
	Delivered
	Rejected
	TransportFailure
)

func (o Outcome) String() string {
	switch o {
	case NotSent:
		return "not_sent"
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	case TransportFailure:
		return "transport_failure"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result describes a delivery. StatusCode, Status and Body are set when the exchange
// completed.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Status     string
	Body       string
}

// TransportError is returned when a payload could not be exchanged with the endpoint.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TLSConfig pins TLS 1.2 with peer verification and the CipherSuites allow-list. A nil
// roots uses the system pool.
func TLSConfig(roots *x509.CertPool) *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS12,
		CipherSuites: CipherSuites,
		RootCAs:      roots,
	}
}

// DeliveryClient posts line protocol payloads. It does not retry.
type DeliveryClient struct {
	endpoint   string
	token      string
	httpClient *http.Client

	logger  *zap.Logger
	metrics *Metrics
}

func NewDeliveryClient(config Config, opts ...Option) (*DeliveryClient, error) {
	o, err := newOptions(config, opts)
	if err != nil {
		return nil, err
	}
	return newDeliveryClient(config, o), nil
}

func newDeliveryClient(config Config, o *options) *DeliveryClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = TLSConfig(o.rootCAs)
	transport.ForceAttemptHTTP2 = false

	return &DeliveryClient{
		endpoint: config.Endpoint,
		token:    config.Token,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
			// Redirects are not followed; a 3xx response is Rejected.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// Deliver posts payload to the endpoint. A non-2xx response is logged and returned as
// Rejected without an error; transport failures return a *TransportError.
func (c *DeliveryClient) Deliver(ctx context.Context, payload string) (Result, error) {
	start := time.Now()
	result, err := c.deliver(ctx, payload)
	c.metrics.delivery(result.Outcome, time.Since(start))
	return result, err
}

func (c *DeliveryClient) deliver(ctx context.Context, payload string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(payload))
	if err != nil {
		return Result{Outcome: TransportFailure}, c.transportError(err)
	}
	req.Header.Set(TokenHeader, c.token)
	req.Header.Set("Content-Type", "text/plain")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Outcome: TransportFailure}, c.transportError(err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Result{Outcome: TransportFailure}, c.transportError(err)
	}

	result := Result{
		Outcome:    Delivered,
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Body:       string(body),
	}
	if res.StatusCode/100 != 2 {
		result.Outcome = Rejected
		c.logger.Warn("failed to "+http.MethodPost+" "+c.endpoint,
			zap.Int("status_code", res.StatusCode),
			zap.String("status", res.Status),
			zap.String("body", result.Body))
	}
	return result, nil
}

func (c *DeliveryClient) transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	c.logger.Warn("delivery raised an error",
		zap.String("method", http.MethodPost),
		zap.String("url", c.endpoint),
		zap.Error(err))
	return &TransportError{Method: http.MethodPost, URL: c.endpoint, Err: err}
}
