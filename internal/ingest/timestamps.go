package ingest

import (
	"strings"
	"time"
)

// Epoch is the far-past time assigned to timestamps that cannot be parsed, so
// recency features stay well-defined.
var Epoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// ParseTimestamp parses the date formats ServiceNow emits. All times are
// interpreted as UTC. Unparsable input returns Epoch.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return Epoch
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC()
		}
	}
	return Epoch
}
