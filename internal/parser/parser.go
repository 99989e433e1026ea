package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/uav-shift/backend/internal/models"
)

// InputParser is implemented by every CSV input format the backend reads.
type InputParser interface {
	// Name returns the unique name of the parser.
	Name() string
	// Kind returns the kind of input the parser produces.
	Kind() models.InputKind
	// CanParse returns true if the normalised header row belongs to this format.
	CanParse(header []string) bool
}

// ParseImageTime parses an EXIF capture date ("YYYY:MM:DD", with "-" or "/"
// also accepted as separators) and clock ("HH:MM:SS") into a UTC instant.
func ParseImageTime(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	// Example: "2023:06:14" + "10:21:03"
	if len(date) != 10 || !isDateSep(date[4]) || date[7] != date[4] {
		return time.Time{}, fmt.Errorf("%w: image date %q", models.ErrMalformedTimestamp, date)
	}
	year := parseInt4(date[0:4])
	month := parseInt2(date[5:7])
	day := parseInt2(date[8:10])

	hour, min, sec, nsec, ok := parseClock(clock, false)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: image time %q", models.ErrMalformedTimestamp, clock)
	}
	t, ok := buildTime(year, month, day, hour, min, sec, nsec)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: image date %q", models.ErrMalformedTimestamp, date)
	}
	return t, nil
}

// ParsePPKTime parses a PPK log date ("MM/DD/YYYY", one or two digit month
// and day) and clock ("HH:MM:SS" with an optional fraction of up to nine
// digits) into a UTC instant. Sub-second precision is kept so that exact
// equality between fixes and images is detectable.
func ParsePPKTime(date, clock string) (time.Time, error) {
	year, month, day, ok := parseSlashDate(strings.TrimSpace(date))
	if !ok {
		return time.Time{}, fmt.Errorf("%w: ppk date %q", models.ErrMalformedTimestamp, date)
	}
	hour, min, sec, nsec, ok := parseClock(strings.TrimSpace(clock), true)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: ppk time %q", models.ErrMalformedTimestamp, clock)
	}
	t, ok := buildTime(year, month, day, hour, min, sec, nsec)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: ppk date %q", models.ErrMalformedTimestamp, date)
	}
	return t, nil
}

// ParseCorrectionTime parses a correction entry timestamp ("MM/DD/YYYY HH:MM").
func ParseCorrectionTime(s string) (time.Time, error) {
	date, clock, err := SplitDateTime(s)
	if err != nil {
		return time.Time{}, err
	}
	year, month, day, ok := parseSlashDate(date)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: correction date %q", models.ErrMalformedTimestamp, date)
	}
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("%w: correction time %q", models.ErrMalformedTimestamp, clock)
	}
	hour := parseShort(parts[0])
	min := parseInt2(parts[1])
	t, ok := buildTime(year, month, day, hour, min, 0, 0)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: correction timestamp %q", models.ErrMalformedTimestamp, s)
	}
	return t, nil
}

// SplitDateTime splits a combined "date time" column into its two halves.
func SplitDateTime(s string) (date, clock string, err error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return "", "", fmt.Errorf("%w: expected \"date time\", got %q", models.ErrMalformedTimestamp, s)
	}
	return fields[0], fields[1], nil
}

func isDateSep(c byte) bool {
	return c == ':' || c == '-' || c == '/'
}

// parseSlashDate parses "M/D/YYYY" with one or two digit month and day.
func parseSlashDate(s string) (year, month, day int, ok bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || len(parts[2]) != 4 {
		return 0, 0, 0, false
	}
	month = parseShort(parts[0])
	day = parseShort(parts[1])
	year = parseInt4(parts[2])
	return year, month, day, month >= 0 && day >= 0 && year >= 0
}

// parseClock parses "H:MM:SS" and, when allowFrac is set, a trailing
// ".fffffffff" fraction.
func parseClock(s string, allowFrac bool) (hour, min, sec, nsec int, ok bool) {
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if !allowFrac {
			return 0, 0, 0, 0, false
		}
		s, frac = s[:i], s[i+1:]
		if len(frac) == 0 || len(frac) > 9 {
			return 0, 0, 0, 0, false
		}
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, 0, 0, 0, false
	}
	hour = parseShort(parts[0])
	min = parseInt2(parts[1])
	sec = parseInt2(parts[2])
	if hour < 0 || min < 0 || sec < 0 {
		return 0, 0, 0, 0, false
	}
	if frac != "" {
		nsec = parseIntN(frac, len(frac))
		if nsec < 0 {
			return 0, 0, 0, 0, false
		}
		// Scale up to nanoseconds
		for i := len(frac); i < 9; i++ {
			nsec *= 10
		}
	}
	return hour, min, sec, nsec, true
}

// Years outside this range do not fit in int64 nanoseconds since the epoch,
// which is how DuckTrack stores fix instants.
const (
	MinYear = 1678
	MaxYear = 2261
)

// buildTime validates the components and rejects dates time.Date would
// silently normalise, such as February 30th.
func buildTime(year, month, day, hour, min, sec, nsec int) (time.Time, bool) {
	if year < MinYear || year > MaxYear || month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, min, sec, nsec, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// parseShort parses a one or two digit decimal string. Returns -1 on error.
func parseShort(s string) int {
	switch len(s) {
	case 1:
		d := s[0] - '0'
		if d > 9 {
			return -1
		}
		return int(d)
	case 2:
		return parseInt2(s)
	}
	return -1
}

// parseInt2 parses a 2-digit decimal string. Returns -1 on error.
func parseInt2(s string) int {
	if len(s) != 2 {
		return -1
	}
	d1, d2 := s[0]-'0', s[1]-'0'
	if d1 > 9 || d2 > 9 {
		return -1
	}
	return int(d1)*10 + int(d2)
}

// parseInt4 parses a 4-digit decimal string. Returns -1 on error.
func parseInt4(s string) int {
	if len(s) != 4 {
		return -1
	}
	d1, d2, d3, d4 := s[0]-'0', s[1]-'0', s[2]-'0', s[3]-'0'
	if d1 > 9 || d2 > 9 || d3 > 9 || d4 > 9 {
		return -1
	}
	return int(d1)*1000 + int(d2)*100 + int(d3)*10 + int(d4)
}

// parseIntN parses an n-digit decimal string. Returns -1 on error.
func parseIntN(s string, n int) int {
	result := 0
	for i := 0; i < n; i++ {
		d := s[i] - '0'
		if d > 9 {
			return -1
		}
		result = result*10 + int(d)
	}
	return result
}
