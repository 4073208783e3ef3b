package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// isoDuration покрывает подмножество ISO-8601: PnDTnHnMnS (дни, часы, минуты, секунды).
var isoDuration = regexp.MustCompile(`^(-)?P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:[.,]\d+)?)S)?)?$`)

// ParseISODuration парсит длительность вида PT5M, P1DT2H, PT0.5S.
func ParseISODuration(s string) (time.Duration, error) {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || strings.HasSuffix(s, "P") || strings.HasSuffix(s, "T") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	var d time.Duration
	if m[2] != "" {
		days, _ := strconv.Atoi(m[2])
		d += time.Duration(days) * 24 * time.Hour
	}
	if m[3] != "" {
		hours, _ := strconv.Atoi(m[3])
		d += time.Duration(hours) * time.Hour
	}
	if m[4] != "" {
		minutes, _ := strconv.Atoi(m[4])
		d += time.Duration(minutes) * time.Minute
	}
	if m[5] != "" {
		sec, err := strconv.ParseFloat(strings.ReplaceAll(m[5], ",", "."), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		d += time.Duration(sec * float64(time.Second))
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

// FormatISODuration форматирует длительность в ISO-8601 (PT...S).
func FormatISODuration(d time.Duration) string {
	return "PT" + strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "S"
}
