package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Evaluator yields the next start instants of a cron rule within
// [start, end), at most limit, ascending. Zero matches is a valid
// outcome, not an error.
type Evaluator interface {
	NextOccurrences(rule string, start, end time.Time, limit int) ([]time.Time, error)
}

// CronEvaluator evaluates rules with robfig/cron, pinned to UTC.
//
// It accepts five-field (minute-first), six-field (second-first) and
// seven-field Quartz rules; the trailing Quartz year field is ignored
// and "?" reads as "*".
type CronEvaluator struct {
	parser cron.Parser
}

func NewCronEvaluator() *CronEvaluator {
	return &CronEvaluator{
		parser: cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

func (e *CronEvaluator) NextOccurrences(rule string, start, end time.Time, limit int) ([]time.Time, error) {
	sched, err := e.parse(rule)
	if err != nil {
		return nil, fmt.Errorf("parse cron rule %q: %w", rule, err)
	}
	if limit <= 0 || !start.Before(end) {
		return nil, nil
	}

	out := make([]time.Time, 0, limit)
	// Next is strictly-after; back off one nanosecond so a start that
	// lands exactly on a match is included in the window.
	t := start.UTC().Add(-time.Nanosecond)
	for len(out) < limit {
		t = sched.Next(t)
		if t.IsZero() || !t.Before(end) {
			break
		}
		out = append(out, t.UTC())
	}
	return out, nil
}

func (e *CronEvaluator) parse(rule string) (cron.Schedule, error) {
	fields := strings.Fields(strings.TrimSpace(rule))
	switch len(fields) {
	case 5:
		fields = append([]string{"0"}, fields...)
	case 6:
	case 7:
		fields = fields[:6]
	default:
		return nil, fmt.Errorf("expected 5-7 fields, got %d", len(fields))
	}
	// Rules are already expressed in UTC; pin evaluation there so the
	// process timezone never leaks into occurrence instants.
	return e.parser.Parse("CRON_TZ=UTC " + strings.Join(fields, " "))
}
