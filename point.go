package beacon

import (
	"sort"
	"strings"
	"time"

	protocol "github.com/influxdata/line-protocol"
)

// SourceTagKey is the tag carrying the configured source name on every point.
const SourceTagKey = "beacon-fluent-source"

// Point is one timestamped observation. It implements protocol.Metric.
type Point struct {
	Timestamp int64
	Series    string
	Tags      map[string]string
	Values    map[string]interface{}
}

// NewPoint builds a point and sets the source tag last, so a record field with the same
// key never overrides it. Trailing backslashes are trimmed from names, tag values and keys,
// since line protocol would read them as escaping the following separator.
func NewPoint(timestampNs int64, series string, values map[string]interface{}, tags map[string]string, source string) *Point {
	pointTags := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		key, ok := lineKey(k, tags)
		if !ok {
			continue
		}
		if v = trimBackslash(v); v != "" {
			pointTags[key] = v
		}
	}
	pointTags[SourceTagKey] = trimBackslash(source)

	pointValues := make(map[string]interface{}, len(values))
	for k, v := range values {
		if key, ok := lineKey(k, values); ok {
			pointValues[key] = v
		}
	}

	return &Point{
		Timestamp: timestampNs,
		Series:    trimBackslash(series),
		Tags:      pointTags,
		Values:    pointValues,
	}
}

func trimBackslash(s string) string {
	return strings.TrimRight(s, `\`)
}

// lineKey trims k and reports false when nothing is left or when the trimmed key is
// already present in m as written.
func lineKey[V any](k string, m map[string]V) (string, bool) {
	key := trimBackslash(k)
	if key == "" {
		return "", false
	}
	if key != k {
		if _, exists := m[key]; exists {
			return "", false
		}
	}
	return key, true
}

// PrecisionTime converts an event time to integer nanoseconds.
func PrecisionTime(t time.Time) int64 {
	return t.Unix()*int64(time.Second) + int64(t.Nanosecond())
}

func (p *Point) Name() string {
	return p.Series
}

func (p *Point) Time() time.Time {
	return time.Unix(0, p.Timestamp)
}

// TagList returns the tags sorted by key.
func (p *Point) TagList() []*protocol.Tag {
	tags := make([]*protocol.Tag, 0, len(p.Tags))
	for _, k := range sortedKeys(p.Tags) {
		tags = append(tags, &protocol.Tag{
			Key:   k,
			Value: p.Tags[k],
		})
	}
	return tags
}

// FieldList returns the values sorted by key.
func (p *Point) FieldList() []*protocol.Field {
	keys := make([]string, 0, len(p.Values))
	for k := range p.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]*protocol.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, &protocol.Field{
			Key:   k,
			Value: p.Values[k],
		})
	}
	return fields
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
