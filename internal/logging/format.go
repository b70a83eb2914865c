package logging

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	consoleTimeLayout = "2006-01-02 15:04:05.000"
	jsonTimeLayout    = "2006-01-02T15:04:05.000Z07:00"

	// shortFingerprint is how many fingerprint characters console lines keep.
	shortFingerprint = 12
)

func consoleTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Local().Format(consoleTimeLayout)
}

// consoleValue renders a field value for the console handler. Strings that
// would break the key=value layout are quoted.
func consoleValue(key string, v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		s = val
	case time.Duration:
		return val.Round(time.Millisecond).String()
	case time.Time:
		return val.Local().Format(consoleTimeLayout)
	case error:
		s = val.Error()
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	if (key == FieldFingerprint || strings.HasSuffix(key, "_fingerprint")) && len(s) > shortFingerprint {
		s = s[:shortFingerprint]
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelTag(level int) string {
	switch {
	case level >= 8:
		return "ERR"
	case level >= 4:
		return "WRN"
	case level >= 0:
		return "INF"
	default:
		return "DBG"
	}
}
