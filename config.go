package beacon

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	DefaultEndpoint          = "https://ingestion.ovr.prd.f5aas.com:50443/beacon/v1/ingest-metrics"
	DefaultTimeKey           = "time"
	DefaultChunkLimitRecords = 1000
	DefaultFlushInterval     = 60 * time.Second

	chunkKeyTag = "tag"
)

var (
	ErrMissingToken     = errors.New(`missing required "token" setting`)
	ErrMissingSource    = errors.New(`missing required "source_name" setting`)
	ErrInvalidChunkKeys = errors.New(`'tag' in chunk_keys is required`)
)

// Config holds the output settings.
type Config struct {
	// Endpoint is the target URL for sending data.
	Endpoint string `mapstructure:"endpoint"`
	// Token is the Beacon access token.
	Token string `mapstructure:"token"`
	// SourceName is the source shown in Beacon and set as the beacon-fluent-source tag.
	SourceName string `mapstructure:"source_name"`
	// Measurement, when set, replaces the chunk tag as the series name.
	Measurement string `mapstructure:"measurement"`
	// TimeKey names a field whose value replaces the event timestamp.
	TimeKey string `mapstructure:"time_key"`
	// AutoTags makes every string-typed field a tag.
	AutoTags bool `mapstructure:"auto_tags"`
	// TagKeys names fields that are always tags.
	TagKeys []string `mapstructure:"tag_keys"`
	// SequenceTag is the name of the tag numbering consecutive events with the same
	// timestamp. Empty disables it.
	SequenceTag string `mapstructure:"sequence_tag"`
	// CastNumberToFloat converts integer values to floats.
	CastNumberToFloat bool `mapstructure:"cast_number_to_float"`
	// Timeout bounds each delivery. Zero leaves it to the caller's context.
	Timeout time.Duration `mapstructure:"timeout"`
	// CAFile is an optional PEM bundle used instead of the system roots.
	CAFile string `mapstructure:"ca_file"`

	Buffer BufferConfig `mapstructure:"buffer"`
}

// BufferConfig holds the settings of a Buffer.
type BufferConfig struct {
	ChunkKeys         []string      `mapstructure:"chunk_keys"`
	ChunkLimitRecords int           `mapstructure:"chunk_limit_records"`
	FlushInterval     time.Duration `mapstructure:"flush_interval"`
}

func DefaultConfig() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		TimeKey:  DefaultTimeKey,
		Buffer: BufferConfig{
			ChunkKeys:         []string{chunkKeyTag},
			ChunkLimitRecords: DefaultChunkLimitRecords,
			FlushInterval:     DefaultFlushInterval,
		},
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New(`missing required "endpoint" setting`)
	}
	endpointURL, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if endpointURL.Scheme != "https" || endpointURL.Host == "" {
		return fmt.Errorf("endpoint %q must be an https URL", c.Endpoint)
	}
	if c.Token == "" {
		return ErrMissingToken
	}
	if c.SourceName == "" {
		return ErrMissingSource
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	return c.Buffer.Validate()
}

func (c *BufferConfig) Validate() error {
	hasTag := false
	for _, k := range c.ChunkKeys {
		if k != chunkKeyTag {
			return fmt.Errorf("unsupported chunk key %q: %w", k, ErrInvalidChunkKeys)
		}
		hasTag = true
	}
	if !hasTag {
		return ErrInvalidChunkKeys
	}
	if c.ChunkLimitRecords < 0 {
		return errors.New("chunk_limit_records must not be negative")
	}
	if c.FlushInterval < 0 {
		return errors.New("flush_interval must not be negative")
	}
	return nil
}
