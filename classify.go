package beacon

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// classifier splits records into tag and value fields.
type classifier struct {
	autoTags    bool
	tagKeys     map[string]struct{}
	timeKey     string
	castToFloat bool

	logger  *zap.Logger
	metrics *Metrics
}

func newClassifier(config Config, logger *zap.Logger, metrics *Metrics) *classifier {
	tagKeys := make(map[string]struct{}, len(config.TagKeys))
	for _, k := range config.TagKeys {
		tagKeys[k] = struct{}{}
	}
	return &classifier{
		autoTags:    config.AutoTags,
		tagKeys:     tagKeys,
		timeKey:     config.TimeKey,
		castToFloat: config.CastNumberToFloat,
		logger:      logger,
		metrics:     metrics,
	}
}

// dropEmpty returns a copy of record without nil or empty fields.
func dropEmpty(record Record) Record {
	filtered := make(Record, len(record))
	for k, v := range record {
		if isEmpty(v) {
			continue
		}
		filtered[k] = v
	}
	return filtered
}

func isEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []byte:
		return len(x) == 0
	}
	return false
}

// timestamp removes the time key from record, if present, and returns its value as the
// point timestamp. The override is taken as nanoseconds without conversion.
func (c *classifier) timestamp(timestampNs int64, record Record) (int64, Record) {
	if c.timeKey == "" {
		return timestampNs, record
	}
	v, ok := record[c.timeKey]
	if !ok || isEmpty(v) {
		return timestampNs, record
	}

	rest := make(Record, len(record)-1)
	for k, fv := range record {
		if k != c.timeKey {
			rest[k] = fv
		}
	}

	override, ok := overrideTimestamp(v)
	if !ok {
		c.logger.Warn("ignoring time key with non-integer value",
			zap.String("key", c.timeKey), zap.Any("value", v))
		return timestampNs, rest
	}
	return override, rest
}

func overrideTimestamp(v interface{}) (int64, bool) {
	switch x := normalize(v).(type) {
	case int64:
		return x, true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float64:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// split classifies the fields of record. With neither auto tagging nor tag keys every
// field is a value.
func (c *classifier) split(record Record) (map[string]interface{}, map[string]string) {
	values := make(map[string]interface{}, len(record))
	tags := make(map[string]string)

	if !c.autoTags && len(c.tagKeys) == 0 {
		for k, v := range record {
			if !isEmpty(v) {
				values[k] = normalize(v)
			}
		}
		return values, tags
	}

	for k, v := range record {
		if isEmpty(v) {
			continue
		}
		v = normalize(v)
		_, listed := c.tagKeys[k]
		if _, isString := v.(string); (c.autoTags && isString) || listed {
			if tagValue := strings.TrimSpace(textOf(v)); tagValue != "" {
				tags[k] = tagValue
			}
			continue
		}
		values[k] = v
	}
	return values, tags
}

// finish drops composite and unsupported values and applies the float cast. It reports
// false when no value remains.
func (c *classifier) finish(tag string, values map[string]interface{}, record Record) (map[string]interface{}, bool) {
	kept := make(map[string]interface{}, len(values))
	for k, v := range values {
		switch {
		case isComposite(v):
			c.logger.Warn("array/hash field discarded; consider using a plugin to map",
				zap.String("tag", tag), zap.String("field", k))
			c.metrics.recordDropped(reasonComposite)
		case !isScalar(v):
			c.logger.Warn("field with unsupported type discarded",
				zap.String("tag", tag), zap.String("field", k), zap.String("type", fmt.Sprintf("%T", v)))
			c.metrics.recordDropped(reasonUnsupported)
		case !c.representable(v):
			c.logger.Warn("field with unrepresentable number discarded",
				zap.String("tag", tag), zap.String("field", k), zap.Any("value", v))
			c.metrics.recordDropped(reasonUnsupported)
		default:
			kept[k] = v
		}
	}

	if len(kept) == 0 {
		c.logger.Warn("skip record because one value is required",
			zap.String("tag", tag), zap.Any("record", map[string]interface{}(record)))
		c.metrics.recordDropped(reasonNoValues)
		return nil, false
	}

	if c.castToFloat {
		for k, v := range kept {
			switch x := v.(type) {
			case int64:
				kept[k] = float64(x)
			case uint64:
				kept[k] = float64(x)
			}
		}
	}
	return kept, true
}

// normalize widens numeric values to int64, uint64 or float64 and turns bytes into strings.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return uint64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return x
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	}
	return v
}

// representable reports whether a number can be written as a line protocol value. NaN and
// infinities have no encoding, and integers above MaxInt64 only fit once cast to float.
func (c *classifier) representable(v interface{}) bool {
	switch x := v.(type) {
	case float64:
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	case uint64:
		return x <= math.MaxInt64 || c.castToFloat
	}
	return true
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case int64, uint64, float64, string, bool:
		return true
	}
	return false
}

func isComposite(v interface{}) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

func textOf(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}
