package briteverify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	listTimeLayout      = "1-2-2006 3:04 pm"
	listTimeWriteLayout = "01-02-2006 03:04 pm"
	filterDateLayout    = "2006-01-02"
)

var recordedOnLayouts = []string{
	"2006-01-02T15:04:05.999999999-0700",
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
}

// parseListTime reads the bulk API's "08-10-2021 04:03 pm" timestamps (UTC).
func parseListTime(value string) (time.Time, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	t, err := time.Parse(listTimeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse list timestamp %q: %w", value, err)
	}
	return t, nil
}

func formatListTime(t time.Time) string {
	return t.UTC().Format(listTimeWriteLayout)
}

func parseRecordedOn(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	var firstErr error
	for _, layout := range recordedOnLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("parse recorded_on %q: %w", value, firstErr)
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// optionalInt decodes a number, a numeric string or null.
func optionalInt(data json.RawMessage) (*int, error) {
	if len(data) == 0 || isNull(data) {
		return nil, nil
	}
	raw, err := decodeScalar(data)
	if err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("expected integer, got %s", data)
	}
	n := int(f)
	return &n, nil
}

// looseBool decodes true/false given either as JSON booleans or strings.
func looseBool(data json.RawMessage) (bool, error) {
	if len(data) == 0 || isNull(data) {
		return false, nil
	}
	raw, err := decodeScalar(data)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "yes", "1":
		return true, nil
	case "false", "f", "no", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("expected boolean, got %s", data)
}

// looseString decodes a string or number as text; null and blanks become "".
func looseString(data json.RawMessage) (string, error) {
	if len(data) == 0 || isNull(data) {
		return "", nil
	}
	raw, err := decodeScalar(data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// compactText renders an arbitrary JSON value as text: strings unquoted,
// objects compacted.
func compactText(data json.RawMessage) string {
	if len(data) == 0 || isNull(data) {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return strings.TrimSpace(string(data))
	}
	return buf.String()
}

func optionalListTime(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := parseListTime(*value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
