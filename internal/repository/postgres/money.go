package postgres

import (
	"fmt"
	"strconv"
	"strings"
)

// parseNumeric converts a NUMERIC column read as text into major units.
func parseNumeric(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty numeric string")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return f, nil
}

func parseNullableNumeric(s *string) (*float64, error) {
	if s == nil {
		return nil, nil
	}
	f, err := parseNumeric(*s)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// formatNumeric renders an amount for a NUMERIC(18,2) column without float noise.
func formatNumeric(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func formatNullableNumeric(f *float64) *string {
	if f == nil {
		return nil
	}
	s := formatNumeric(*f)
	return &s
}
