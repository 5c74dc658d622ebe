package domain

import "strings"

// normalizeLabel lowercases and trims an ownership label, mapping empty
// values to the explicit Unknown marker.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Unknown
	}

	return s
}

// NormalizeLabel is the exported form used by adapters when resolving label
// values from provider metadata before they land on a record.
func NormalizeLabel(s string) string {
	return normalizeLabel(s)
}
