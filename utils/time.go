// Package utils provides utility functions for the application.
package utils

import (
	"fmt"
	"strings"
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// IsFuture reports whether t is strictly after now.
func IsFuture(t time.Time) bool {
	return t.After(UTCNow())
}

// TimeToUTCPtr converts a time pointer to UTC if it's not already
func TimeToUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// localLayouts are accepted for schedule times that carry no offset of their own.
var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseInZone parses a wall-clock value in the given IANA zone and returns it in UTC.
// Values with an explicit offset (RFC3339) keep that offset.
func ParseInZone(value, zone string) (time.Time, *time.Location, error) {
	if strings.TrimSpace(zone) == "" {
		zone = "UTC"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("unknown timezone %q: %w", zone, err)
	}

	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), loc, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), loc, nil
		}
	}
	return time.Time{}, nil, fmt.Errorf("invalid time %q", value)
}
