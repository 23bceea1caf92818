package formatters

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tern-data/sqlport/internal/logger"
)

// DefaultTimeFormat is the user-facing layout applied to timestamp columns
// when no --time-format is given.
const DefaultTimeFormat = "yyyy-MM-dd HH:mm:ss"

var timeFormatReplacer = strings.NewReplacer(
	"yyyy", "2006",
	"yy", "06",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
	"SSS", "000", // Milliseconds
	"S", "0", // Deciseconds
)

// FormatCSVValue renders a canonical batch value as a CSV field. NULL is the
// empty string; quoting and escaping are the CSV writer's job, not ours.
func FormatCSVValue(val any, layout string, loc *time.Location) string {
	if val == nil {
		return ""
	}

	switch v := val.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return fmt.Sprintf("%.15g", v)
	case []byte:
		return string(v)
	case time.Time:
		return v.In(loc).Format(layout)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// UserTimeZoneFormat resolves a user layout and timezone into a Go time
// layout and location. An empty layout falls back to the default; an empty
// or invalid timezone falls back to local time.
func UserTimeZoneFormat(userTimefmt string, timeZone string) (string, *time.Location) {
	if userTimefmt == "" {
		userTimefmt = DefaultTimeFormat
	}
	layout := ConvertUserTimeFormat(userTimefmt)

	if timeZone == "" {
		return layout, time.Local
	}

	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		logger.Warn("Invalid timezone %q, using local time: %v", timeZone, err)
		return layout, time.Local
	}

	return layout, loc
}

// ConvertUserTimeFormat translates a yyyy-MM-dd style layout into Go's
// reference-time layout.
func ConvertUserTimeFormat(userTimefmt string) string {
	return timeFormatReplacer.Replace(userTimefmt)
}
