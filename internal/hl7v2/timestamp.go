package hl7v2

import (
	"strings"
	"time"
)

// ToFHIRDateTime normalizes an HL7 TS value or an already ISO-like string
// into a FHIR R4 dateTime. A date-only value becomes "YYYY-MM-DD"; a value
// with a time but no zone is treated as UTC and gets a trailing "Z". Returns
// "" if s can't be interpreted as either shape.
func ToFHIRDateTime(s string) string {
	if s == "" {
		return ""
	}
	s = strings.TrimSpace(s)
	// HL7 TS fields may carry a degraded-precision indicator as a second
	// component; only the first component is a timestamp.
	s = strings.TrimSpace(strings.SplitN(s, "^", 2)[0])

	if len(s) >= 8 && isDigits(s[:8]) {
		datePart := s[0:4] + "-" + s[4:6] + "-" + s[6:8]
		if len(s) >= 14 && isDigits(s[8:14]) {
			return datePart + "T" + s[8:10] + ":" + s[10:12] + ":" + s[12:14] + "Z"
		}
		return datePart
	}

	if len(s) == 10 && s[4] == '-' && s[7] == '-' {
		return s
	}

	if idx := strings.Index(s, "T"); idx == 10 && s[4] == '-' && s[7] == '-' {
		timePart := s[idx+1:]
		if !strings.ContainsAny(timePart, "Z+") && !strings.Contains(timePart, "-") {
			if len(timePart) == 5 { // HH:MM
				s = s[:idx+1] + timePart + ":00"
			}
			return s + "Z"
		}
		return s
	}

	return ""
}

// ToISODate returns YYYY-MM-DD from an HL7 date (YYYYMMDD) or an ISO-like
// string, or "" if d can't be interpreted as a date.
func ToISODate(d string) string {
	if d == "" {
		return ""
	}
	d = strings.TrimSpace(d)
	if len(d) == 8 && isDigits(d) {
		return d[0:4] + "-" + d[4:6] + "-" + d[6:8]
	}
	if t, err := time.Parse("2006-01-02", d); err == nil {
		return t.Format("2006-01-02")
	}
	if t, err := time.Parse(time.RFC3339, d); err == nil {
		return t.Format("2006-01-02")
	}
	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
