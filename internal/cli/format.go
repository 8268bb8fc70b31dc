package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"trading-gate/internal/models"
)

// FormatTime formats a time of day in loc.
func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04:05")
}

// FormatDate formats a date in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02-Jan-2006")
}

// FormatDateTime formats a datetime in loc.
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02-Jan-2006 15:04:05")
}

// FormatRiskReward formats a reward-to-risk ratio.
func FormatRiskReward(rr float64) string {
	return fmt.Sprintf("1:%.2f", rr)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// ParseConfluence parses a confluence flag value:
//
//	name            boolean, met
//	name=false      boolean, not met
//	name=58>=50     numeric, passes at or above 50
//	name=0.8<=1.0   numeric, passes at or below 1.0
func ParseConfluence(s string) (models.Confluence, error) {
	name, value, found := strings.Cut(strings.TrimSpace(s), "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Confluence{}, fmt.Errorf("confluence %q: missing name", s)
	}
	if !found {
		return models.BoolConfluence(name, true), nil
	}

	for _, op := range []string{">=", "<="} {
		lhs, rhs, ok := strings.Cut(value, op)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(lhs), 64)
		if err != nil {
			return models.Confluence{}, fmt.Errorf("confluence %q: value: %w", s, err)
		}
		threshold, err := strconv.ParseFloat(strings.TrimSpace(rhs), 64)
		if err != nil {
			return models.Confluence{}, fmt.Errorf("confluence %q: threshold: %w", s, err)
		}
		return models.NumericConfluence(name, v, threshold, op == "<="), nil
	}

	met, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return models.Confluence{}, fmt.Errorf("confluence %q: %w", s, err)
	}
	return models.BoolConfluence(name, met), nil
}

// parseTimeFlag parses an RFC 3339 timestamp; empty means zero.
func parseTimeFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, want RFC 3339", value)
	}
	return t, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
