package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
//
//	"*/10 * * * *"  every 10 minutes
//	"0 21 * * *"    every day at 21:00
//	"30 6 * * 1"    every Monday at 06:30
type CronExpression struct {
	raw     string
	minute  fieldMask
	hour    fieldMask
	day     fieldMask
	month   fieldMask
	weekday fieldMask
}

// fieldMask holds the matching values of one cron field as a bit set.
type fieldMask uint64

func (m fieldMask) has(v int) bool { return m&(1<<uint(v)) != 0 }

// ParseCronExpression parses a cron expression. Each field accepts
// "*", single values, ranges ("n-m"), lists ("n,m,o") and steps
// ("*/s", "n-m/s").
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron %q: expected 5 fields, got %d", expr, len(fields))
	}

	ce := &CronExpression{raw: expr}
	specs := []struct {
		dst    *fieldMask
		name   string
		lo, hi int
	}{
		{&ce.minute, "minute", 0, 59},
		{&ce.hour, "hour", 0, 23},
		{&ce.day, "day", 1, 31},
		{&ce.month, "month", 1, 12},
		{&ce.weekday, "weekday", 0, 6},
	}
	for i, spec := range specs {
		mask, err := parseCronField(fields[i], spec.lo, spec.hi)
		if err != nil {
			return nil, fmt.Errorf("cron %q: %s field: %w", expr, spec.name, err)
		}
		*spec.dst = mask
	}
	return ce, nil
}

// parseCronField parses one comma-separated field into a bit set.
func parseCronField(field string, lo, hi int) (fieldMask, error) {
	var mask fieldMask

	for _, term := range strings.Split(field, ",") {
		step := 1
		if i := strings.IndexByte(term, '/'); i >= 0 {
			s, err := strconv.Atoi(term[i+1:])
			if err != nil || s <= 0 {
				return 0, fmt.Errorf("bad step in %q", term)
			}
			step = s
			term = term[:i]
		}

		start, end := lo, hi
		switch {
		case term == "*":
		case strings.Contains(term, "-"):
			parts := strings.SplitN(term, "-", 2)
			var err1, err2 error
			start, err1 = strconv.Atoi(parts[0])
			end, err2 = strconv.Atoi(parts[1])
			if err1 != nil || err2 != nil {
				return 0, fmt.Errorf("bad range %q", term)
			}
		default:
			v, err := strconv.Atoi(term)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", term)
			}
			start = v
			// A bare value with a step means "from v to the end".
			if step == 1 {
				end = v
			}
		}

		if start < lo || end > hi || start > end {
			return 0, fmt.Errorf("%q out of range [%d-%d]", term, lo, hi)
		}
		for v := start; v <= end; v += step {
			mask |= 1 << uint(v)
		}
	}

	if mask == 0 {
		return 0, fmt.Errorf("empty field %q", field)
	}
	return mask, nil
}

// String implements Schedule.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next implements Schedule. It scans forward from the minute after t,
// skipping whole months, days and hours that cannot match. Bounded at
// one year: a valid expression always matches within that.
func (ce *CronExpression) Next(t time.Time) time.Time {
	next := t.Truncate(time.Minute).Add(time.Minute)
	limit := next.AddDate(1, 0, 1)

	for next.Before(limit) {
		switch {
		case !ce.month.has(int(next.Month())):
			next = time.Date(next.Year(), next.Month(), 1, 0, 0, 0, 0, next.Location()).AddDate(0, 1, 0)
		case !ce.day.has(next.Day()) || !ce.weekday.has(int(next.Weekday())):
			next = time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location()).AddDate(0, 0, 1)
		case !ce.hour.has(next.Hour()):
			next = time.Date(next.Year(), next.Month(), next.Day(), next.Hour(), 0, 0, 0, next.Location()).Add(time.Hour)
		case !ce.minute.has(next.Minute()):
			next = next.Add(time.Minute)
		default:
			return next
		}
	}
	return time.Time{}
}
