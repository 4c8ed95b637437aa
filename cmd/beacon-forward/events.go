package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	beacon "github.com/itzg/beacon-sender"
)

// eventJSON keeps numbers as json.Number so integers and floats stay distinct.
var eventJSON = jsoniter.Config{UseNumber: true}.Froze()

type event struct {
	tag    string
	time   time.Time
	record beacon.Record
}

type rawEvent struct {
	Tag    string                 `json:"tag"`
	Time   json.Number            `json:"time"`
	Record map[string]interface{} `json:"record"`
}

// decodeEvents reads newline-delimited JSON events from r until EOF. Blank lines are skipped.
func decodeEvents(ctx context.Context, r io.Reader, defaultTag string, events chan<- event) error {
	reader := bufio.NewReader(r)

	for lineNumber := 1; ; lineNumber++ {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("failed to read events: %w", readErr)
		}

		if line = bytes.TrimSpace(line); len(line) > 0 {
			ev, err := parseEvent(line, defaultTag)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNumber, err)
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		}

		if readErr != nil {
			return nil
		}
	}
}

func parseEvent(line []byte, defaultTag string) (event, error) {
	var raw rawEvent
	if err := eventJSON.Unmarshal(line, &raw); err != nil {
		return event{}, fmt.Errorf("failed to decode event: %w", err)
	}

	ev := event{
		tag:    raw.Tag,
		record: beacon.Record(convertNumbers(raw.Record).(map[string]interface{})),
	}
	if ev.tag == "" {
		ev.tag = defaultTag
	}

	t, err := parseEventTime(raw.Time)
	if err != nil {
		return event{}, fmt.Errorf("invalid event time %q: %w", raw.Time, err)
	}
	ev.time = t
	return ev, nil
}

// parseEventTime reads unix seconds with an optional fraction. An absent time is now.
func parseEventTime(n json.Number) (time.Time, error) {
	s := n.String()
	if s == "" {
		return time.Now(), nil
	}

	secPart, fracPart, hasFrac := strings.Cut(s, ".")
	if !hasFrac && !strings.ContainsAny(s, "eE") {
		sec, err := strconv.ParseInt(secPart, 10, 64)
		return time.Unix(sec, 0), err
	}
	if hasFrac && !strings.ContainsAny(fracPart, "eE") && len(fracPart) > 0 {
		sec, err := strconv.ParseInt(secPart, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		nsec, err := strconv.ParseInt(fracPart+strings.Repeat("0", 9-len(fracPart)), 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		if strings.HasPrefix(secPart, "-") {
			nsec = -nsec
		}
		return time.Unix(sec, nsec), nil
	}

	f, err := n.Float64()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, int64(f*float64(time.Second))), nil
}

// convertNumbers replaces json.Number values with int64 when integral, float64 otherwise.
func convertNumbers(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		for k, fv := range x {
			x[k] = convertValue(fv)
		}
		return x
	}
	return v
}

func convertValue(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]interface{}:
		for k, fv := range x {
			x[k] = convertValue(fv)
		}
		return x
	case []interface{}:
		for i, ev := range x {
			x[i] = convertValue(ev)
		}
		return x
	}
	return v
}
