// Package common holds small helpers shared across the collector packages.
package common

import (
	"os"
	"time"
)

const (
	// DateFormat is the ISO calendar-date layout used on every provider API
	// and in the fact table partition key.
	DateFormat = "2006-01-02"

	DayDuration = 24 * time.Hour
)

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}
