package beacon

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Option configures an Output or DeliveryClient.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *Metrics
	rootCAs *x509.CertPool
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithRootCAs replaces the certificate pool used to verify the endpoint.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(o *options) {
		o.rootCAs = pool
	}
}

func newOptions(config Config, opts []Option) (*options, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.rootCAs == nil && config.CAFile != "" {
		pem, err := os.ReadFile(config.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ca_file: %w", err)
		}
		o.rootCAs = x509.NewCertPool()
		if !o.rootCAs.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in ca_file %s", config.CAFile)
		}
	}
	return o, nil
}

// Output turns records into points and delivers them. An Output owns its sequence state
// and is not safe for concurrent use; run one Output per worker.
type Output struct {
	config     Config
	classifier *classifier
	sequence   SequenceState
	delivery   *DeliveryClient

	logger  *zap.Logger
	metrics *Metrics
}

func NewOutput(config Config, opts ...Option) (*Output, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	o, err := newOptions(config, opts)
	if err != nil {
		return nil, err
	}

	o.logger.Info("starting F5 Beacon output",
		zap.String("endpoint", config.Endpoint),
		zap.String("source_name", config.SourceName))

	return &Output{
		config:     config,
		classifier: newClassifier(config, o.logger, o.metrics),
		delivery:   newDeliveryClient(config, o),
		logger:     o.logger,
		metrics:    o.metrics,
	}, nil
}

// Format drops nil and empty fields from record and encodes it with its timestamp as a
// buffer entry. It reports false when nothing is left to send.
func (o *Output) Format(tag string, t time.Time, record Record) ([]byte, bool) {
	filtered := dropEmpty(record)
	if len(filtered) == 0 {
		o.logger.Warn("skip record because record has no values",
			zap.String("tag", tag), zap.Any("record", map[string]interface{}(record)))
		o.metrics.recordDropped(reasonEmpty)
		return nil, false
	}

	entry, err := appendEntry(nil, PrecisionTime(t), filtered)
	if err != nil {
		o.logger.Warn("skip record that cannot be encoded",
			zap.String("tag", tag), zap.Error(err))
		o.metrics.recordDropped(reasonUnsupported)
		return nil, false
	}
	return entry, true
}

// Write converts the entries of chunk into points and delivers them as one payload. The
// series is the configured measurement, or tag when none is set. A chunk that yields no
// points is not sent.
func (o *Output) Write(ctx context.Context, tag string, chunk []byte) (Result, error) {
	series := o.config.Measurement
	if series == "" {
		series = tag
	}

	var points []*Point
	for rest := chunk; len(rest) > 0; {
		timestamp, record, next, err := readEntry(rest)
		if err != nil {
			return Result{}, err
		}
		rest = next

		if point, ok := o.buildPoint(tag, series, timestamp, record); ok {
			points = append(points, point)
		}
	}

	if len(points) == 0 {
		return Result{Outcome: Delivered}, nil
	}
	return o.WritePoints(ctx, points)
}

func (o *Output) buildPoint(tag, series string, timestampNs int64, record Record) (*Point, bool) {
	timestampNs, record = o.classifier.timestamp(timestampNs, record)
	values, tags := o.classifier.split(record)

	if o.config.SequenceTag != "" {
		tags[o.config.SequenceTag] = strconv.Itoa(o.sequence.Next(timestampNs))
	}

	values, ok := o.classifier.finish(tag, values, record)
	if !ok {
		return nil, false
	}
	return NewPoint(timestampNs, series, values, tags, o.config.SourceName), true
}

// WritePoints serializes points and delivers the payload.
func (o *Output) WritePoints(ctx context.Context, points []*Point) (Result, error) {
	payload, err := Serialize(points)
	if err != nil {
		return Result{}, err
	}

	result, err := o.delivery.Deliver(ctx, payload)
	if err == nil && result.Outcome == Delivered {
		o.metrics.pointsDelivered(len(points))
	}
	return result, err
}
