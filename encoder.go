package beacon

import (
	"bytes"
	"fmt"

	protocol "github.com/influxdata/line-protocol"
)

// Serialize renders points as line protocol, one line per point in the given order,
// joined by newlines without a trailing newline.
func Serialize(points []*Point) (string, error) {
	var buffer bytes.Buffer
	encoder := protocol.NewEncoder(&buffer)
	for _, point := range points {
		if _, err := encoder.Encode(point); err != nil {
			return "", fmt.Errorf("failed to encode point in series %q: %w", point.Series, err)
		}
	}
	return string(bytes.TrimSuffix(buffer.Bytes(), []byte("\n"))), nil
}
