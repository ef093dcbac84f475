package utils

import (
	"time"

	"github.com/google/uuid"
)

// GenerateUUID returns a new random UUID string
func GenerateUUID() string {
	return uuid.NewString()
}

// FormatTimestamp formats a time.Time as RFC 3339 in UTC
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatDate formats a time.Time as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
