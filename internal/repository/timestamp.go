package repository

import (
	"errors"
	"time"
)

// Layouts accepted when reading timestamps. The zone-less layout covers
// documents written by older versions of the bot; fractional seconds are
// accepted after the seconds field by time.Parse.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a persisted timestamp. Zone-less values are read in
// the local zone.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// FormatTimestamp renders a timestamp for persistence.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
