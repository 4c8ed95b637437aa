package beacon

import (
	"errors"
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// ErrMalformedChunk is returned when a chunk cannot be decoded into entries.
var ErrMalformedChunk = errors.New("malformed chunk")

// Record is a single event as a mapping of field name to value.
type Record map[string]interface{}

// appendEntry encodes [timestampNs, record] as a msgpack array and appends it to b.
func appendEntry(b []byte, timestampNs int64, record Record) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendInt64(b, timestampNs)
	return msgp.AppendMapStrIntf(b, map[string]interface{}(record))
}

// readEntry decodes the first entry in b and returns the remaining bytes.
func readEntry(b []byte) (int64, Record, []byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	if sz != 2 {
		return 0, nil, nil, fmt.Errorf("%w: entry has %d elements, expected 2", ErrMalformedChunk, sz)
	}

	timestamp, b, err := msgp.ReadInt64Bytes(b)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: timestamp: %v", ErrMalformedChunk, err)
	}

	m, b, err := msgp.ReadMapStrIntfBytes(b, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: record: %v", ErrMalformedChunk, err)
	}

	return timestamp, Record(m), b, nil
}
