package service

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"
)

// DueDateLayout is the wire format of normalized due dates.
const DueDateLayout = "2006-01-02T15:04:05"

var (
	timeSuffixPattern = regexp.MustCompile(`(?i)\s+(?:at|by)\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	inPeriodPattern   = regexp.MustCompile(`^in\s+(\d+)\s+(day|days|week|weeks)$`)
	fromNowPattern    = regexp.MustCompile(`^(\d+)\s+(day|days|week|weeks)\s+from\s+now$`)

	weekdays = map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
		"saturday": time.Saturday,
	}

	errUnknownDateExpression = errors.New("unrecognised date expression")
)

// DateNormalizer turns natural language due dates into local timestamps.
type DateNormalizer struct {
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewDateNormalizer builds a normalizer for loc (UTC when nil).
func NewDateNormalizer(loc *time.Location, logger *zap.Logger) *DateNormalizer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DateNormalizer{loc: loc, now: time.Now, logger: logger}
}

// Location returns the zone used for relative expressions.
func (n *DateNormalizer) Location() *time.Location {
	return n.loc
}

// Normalize formats expr with DueDateLayout. Unparseable input falls back to tomorrow 23:59:59.
func (n *DateNormalizer) Normalize(expr string) string {
	return n.Resolve(expr).Format(DueDateLayout)
}

// Resolve returns the timestamp for expr, using the same fallback as Normalize.
func (n *DateNormalizer) Resolve(expr string) time.Time {
	t, err := n.Parse(expr)
	if err != nil {
		fallback := endOfDay(n.today().AddDate(0, 0, 1))
		n.logger.Warn("could not parse date expression, defaulting to tomorrow",
			zap.String("expression", expr),
			zap.Error(err),
		)
		return fallback
	}
	return t
}

// Parse interprets expr strictly. A result at midnight is moved to 23:59:59.
func (n *DateNormalizer) Parse(expr string) (time.Time, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return time.Time{}, errUnknownDateExpression
	}

	body, hour, minute, hasTime, err := splitTimeSuffix(raw)
	if err != nil {
		return time.Time{}, err
	}

	day, relative := n.relativeDay(strings.ToLower(body))
	if !relative {
		parsed, err := dateparse.ParseIn(body, n.loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %q: %w", expr, err)
		}
		day = parsed.In(n.loc)
	}

	if hasTime {
		day = time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, n.loc)
		// Relative days only resolve into the past via a same-day clock time.
		if now := n.now().In(n.loc); relative && !day.After(now) {
			rolled := day.AddDate(0, 0, 1)
			n.logger.Warn("relative date resolved to the past, moving to the next day",
				zap.String("expression", expr),
				zap.Time("resolved", day),
				zap.Time("rolled_to", rolled),
			)
			day = rolled
		}
	}
	if day.Hour() == 0 && day.Minute() == 0 && day.Second() == 0 {
		return endOfDay(day), nil
	}
	return day, nil
}

func (n *DateNormalizer) today() time.Time {
	now := n.now().In(n.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, n.loc)
}

// relativeDay resolves expressions anchored on the current calendar date.
func (n *DateNormalizer) relativeDay(body string) (time.Time, bool) {
	today := n.today()
	switch body {
	case "today", "tonight", "end of day", "eod":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "next week", "in a week":
		return today.AddDate(0, 0, 7), true
	}

	if m := inPeriodPattern.FindStringSubmatch(body); m != nil {
		return addPeriod(today, m[1], m[2]), true
	}
	if m := fromNowPattern.FindStringSubmatch(body); m != nil {
		return addPeriod(today, m[1], m[2]), true
	}

	name := strings.TrimPrefix(strings.TrimPrefix(body, "next "), "this ")
	if weekday, ok := weekdays[name]; ok {
		offset := int(weekday - today.Weekday())
		if offset <= 0 {
			offset += 7
		}
		return today.AddDate(0, 0, offset), true
	}
	return time.Time{}, false
}

func addPeriod(day time.Time, count, unit string) time.Time {
	value, _ := strconv.Atoi(count)
	if strings.HasPrefix(unit, "week") {
		value *= 7
	}
	return day.AddDate(0, 0, value)
}

func splitTimeSuffix(raw string) (body string, hour, minute int, ok bool, err error) {
	m := timeSuffixPattern.FindStringSubmatchIndex(raw)
	if m == nil {
		return raw, 0, 0, false, nil
	}
	body = strings.TrimSpace(raw[:m[0]])
	hour, _ = strconv.Atoi(raw[m[2]:m[3]])
	if m[4] >= 0 {
		minute, _ = strconv.Atoi(raw[m[4]:m[5]])
	}
	if m[6] >= 0 {
		switch strings.ToLower(raw[m[6]:m[7]]) {
		case "pm":
			if hour < 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
	}
	if hour > 23 || minute > 59 {
		return "", 0, 0, false, fmt.Errorf("invalid time of day in %q", raw)
	}
	return body, hour, minute, true, nil
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
