// Package dateutil provides date parsing and calendar arithmetic for the
// widget query pipeline. It parses the heterogeneous date encodings that show
// up in analytics datasets, derives calendar parts (year, quarter, month,
// week, day) from dates, and resolves named presets and custom ranges into
// half-open [gte, lt) date ranges for filter predicates.
package dateutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DatePart identifies a calendar component that can be derived from a date
// field as a synthetic column.
type DatePart string

// Supported date parts.
const (
	PartYear       DatePart = "Year"
	PartQuarter    DatePart = "Quarter"
	PartMonth      DatePart = "Month"
	PartMonthName  DatePart = "Month Name"
	PartMonthShort DatePart = "Month Short"
	PartWeek       DatePart = "Week"
	PartDay        DatePart = "Day"
	PartDayName    DatePart = "Day Name"
	PartDayShort   DatePart = "Day Short"
)

// knownParts is the set of all supported date parts.
var knownParts = map[DatePart]struct{}{
	PartYear:       {},
	PartQuarter:    {},
	PartMonth:      {},
	PartMonthName:  {},
	PartMonthShort: {},
	PartWeek:       {},
	PartDay:        {},
	PartDayName:    {},
	PartDayShort:   {},
}

// IsKnown reports whether p is one of the supported date parts.
func (p DatePart) IsKnown() bool {
	_, ok := knownParts[p]
	return ok
}

// epochPattern matches a 10 to 13 digit integer, i.e. epoch seconds or
// epoch milliseconds.
var epochPattern = regexp.MustCompile(`^\d{10,13}$`)

// dateLayouts are tried in order by ParseFlexibleDate. Longer layouts come
// first so that a timestamped input is not truncated by a date-only layout.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"2006-01",
	"Jan-2006",
	"January 2006",
}

// ParseFlexibleDate attempts to interpret an arbitrary sample value as a date.
// It accepts time.Time values, epoch seconds or milliseconds (numeric or as a
// 10-13 digit string), and the common textual encodings "YYYY-MM-DD[ HH:MM[:SS]]",
// "MM/DD/YYYY[ HH:MM[:SS]]", "YYYY-MM", "MMM-YYYY" and "MMMM YYYY".
// It returns ok=false when the value matches no encoding or names an invalid
// calendar date; callers treat that as "exclude from computation".
func ParseFlexibleDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, true
	case int:
		return fromEpoch(int64(v))
	case int64:
		return fromEpoch(v)
	case float64:
		return fromEpoch(int64(v))
	case string:
		return parseString(strings.TrimSpace(v))
	default:
		return time.Time{}, false
	}
}

// fromEpoch converts an epoch value to a time, treating magnitudes of 13
// digits as milliseconds and 10 digits as seconds.
func fromEpoch(n int64) (time.Time, bool) {
	s := strconv.FormatInt(n, 10)
	if !epochPattern.MatchString(s) {
		return time.Time{}, false
	}
	if len(s) > 10 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}

func parseString(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if epochPattern.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return fromEpoch(n)
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Part derives the requested calendar component from t. Numeric parts return
// an int, name parts return a string. Unknown parts return nil.
func Part(t time.Time, part DatePart) any {
	switch part {
	case PartYear:
		return t.Year()
	case PartQuarter:
		return int(t.Month()-1)/3 + 1
	case PartMonth:
		return int(t.Month())
	case PartMonthName:
		return t.Month().String()
	case PartMonthShort:
		return t.Format("Jan")
	case PartWeek:
		return WeekNumber(t)
	case PartDay:
		return t.Day()
	case PartDayName:
		return t.Weekday().String()
	case PartDayShort:
		return t.Format("Mon")
	default:
		return nil
	}
}

// WeekNumber returns the ISO-8601 week number of t: weeks start on Monday and
// week 1 is the week containing the year's first Thursday. The date is shifted
// to the Thursday of its week before counting, so dates at a year boundary
// land in the correct ISO year.
func WeekNumber(t time.Time) int {
	weekday := (int(t.Weekday()) + 6) % 7 // Monday = 0
	thursday := t.AddDate(0, 0, 3-weekday)
	return (thursday.YearDay()-1)/7 + 1
}

// Preset names a relative date range anchored at "now".
type Preset string

// Supported presets.
const (
	PresetToday       Preset = "today"
	PresetYesterday   Preset = "yesterday"
	PresetThisMonth   Preset = "this_month"
	PresetLastMonth   Preset = "last_month"
	PresetThisQuarter Preset = "this_quarter"
	PresetLastQuarter Preset = "last_quarter"
	PresetThisYear    Preset = "this_year"
	PresetLastYear    Preset = "last_year"
)

// RangeOp is a custom date range operator.
type RangeOp string

// Supported custom range operators.
const (
	RangeAfter   RangeOp = "after"
	RangeBefore  RangeOp = "before"
	RangeBetween RangeOp = "between"
)

// DateRange is a half-open date range. GTE is the inclusive start and LT the
// exclusive end, both encoded as "YYYY-MM-DD". Either side may be empty when
// the range is unbounded on that side.
type DateRange struct {
	GTE string `json:"gte,omitempty"`
	LT  string `json:"lt,omitempty"`
}

const dayFormat = "2006-01-02"

func formatDay(t time.Time) string {
	return t.Format(dayFormat)
}

// ResolvePreset computes the half-open date range named by preset, anchored at
// now. LT is always the day after the inclusive end so that downstream
// comparisons are plain >= and <.
func ResolvePreset(preset Preset, now time.Time) (DateRange, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch preset {
	case PresetToday:
		return DateRange{GTE: formatDay(day), LT: formatDay(day.AddDate(0, 0, 1))}, nil
	case PresetYesterday:
		return DateRange{GTE: formatDay(day.AddDate(0, 0, -1)), LT: formatDay(day)}, nil
	case PresetThisMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return DateRange{GTE: formatDay(start), LT: formatDay(start.AddDate(0, 1, 0))}, nil
	case PresetLastMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location()).AddDate(0, -1, 0)
		return DateRange{GTE: formatDay(start), LT: formatDay(start.AddDate(0, 1, 0))}, nil
	case PresetThisQuarter:
		start := quarterStart(day, 0)
		return DateRange{GTE: formatDay(start), LT: formatDay(start.AddDate(0, 3, 0))}, nil
	case PresetLastQuarter:
		start := quarterStart(day, -1)
		return DateRange{GTE: formatDay(start), LT: formatDay(start.AddDate(0, 3, 0))}, nil
	case PresetThisYear:
		start := time.Date(day.Year(), 1, 1, 0, 0, 0, 0, day.Location())
		return DateRange{GTE: formatDay(start), LT: formatDay(start.AddDate(1, 0, 0))}, nil
	case PresetLastYear:
		start := time.Date(day.Year()-1, 1, 1, 0, 0, 0, 0, day.Location())
		return DateRange{GTE: formatDay(start), LT: formatDay(start.AddDate(1, 0, 0))}, nil
	default:
		return DateRange{}, fmt.Errorf("unknown date preset: %s", preset)
	}
}

// quarterStart returns the first day of the quarter `offset` quarters away
// from t's quarter. A negative offset from Q1 wraps into the previous year.
func quarterStart(t time.Time, offset int) time.Time {
	quarter := int(t.Month()-1)/3 + offset
	year := t.Year()
	for quarter < 0 {
		quarter += 4
		year--
	}
	for quarter > 3 {
		quarter -= 4
		year++
	}
	return time.Date(year, time.Month(quarter*3+1), 1, 0, 0, 0, 0, t.Location())
}

// ResolveCustomRange converts a user-entered custom date rule into a half-open
// range. Inclusive end dates ("before" and the second bound of "between") are
// converted to an exclusive LT one day later, preserving the end-inclusive UX
// convention. A bound that is empty or unparseable is omitted from the result
// rather than producing a half-formed range.
func ResolveCustomRange(op RangeOp, a, b string) (DateRange, error) {
	var r DateRange
	switch op {
	case RangeAfter:
		if t, ok := ParseFlexibleDate(a); ok {
			r.GTE = formatDay(t)
		}
	case RangeBefore:
		if t, ok := ParseFlexibleDate(a); ok {
			r.LT = formatDay(t.AddDate(0, 0, 1))
		}
	case RangeBetween:
		if t, ok := ParseFlexibleDate(a); ok {
			r.GTE = formatDay(t)
		}
		if t, ok := ParseFlexibleDate(b); ok {
			r.LT = formatDay(t.AddDate(0, 0, 1))
		}
	default:
		return DateRange{}, fmt.Errorf("unknown custom range operator: %s", op)
	}
	return r, nil
}
