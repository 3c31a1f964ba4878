package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LocalSelection is a recurring-schedule choice expressed in the user's
// local wall clock.
//
// OffsetMinutes is the number of minutes to ADD to a local time to
// obtain UTC; positive for zones west of UTC. This matches the
// "minutes behind UTC" convention browsers report.
type LocalSelection struct {
	Hours         []int // local hours, 0-23
	Days          []int // local days of week, 0-6, 0=Sunday
	OffsetMinutes int
}

var dayNames = [7]string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

// Localize converts a local selection into 1-3 UTC cron rules denoting
// exactly the same wall-clock instants.
//
// When shifting pushes some hours across a UTC day boundary, the
// selection is split: the boundary day picks up the hours that wrapped,
// the opposite edge day drops them, and the days in between carry the
// full union.
//
// The caller validates input; Localize panics on empty or out-of-range
// hours/days (contract violation, not a recoverable error).
func Localize(sel LocalSelection) []string {
	mustValid(sel)

	shift := sel.OffsetMinutes / 60

	var wrapped, unwrapped []int
	crossPrev, crossNext := false, false
	for _, h := range dedupSorted(sel.Hours) {
		u := h + shift
		switch {
		case u < 0:
			crossPrev = true
			wrapped = append(wrapped, u+24)
		case u > 23:
			crossNext = true
			wrapped = append(wrapped, u-24)
		default:
			unwrapped = append(unwrapped, u)
		}
	}
	wrapped = dedupSorted(wrapped)
	unwrapped = dedupSorted(unwrapped)

	days := dedupSorted(sel.Days)

	if !crossPrev && !crossNext {
		return []string{rule(unwrapped, days)}
	}

	union := unionSorted(wrapped, unwrapped)
	exclusive := minusSorted(wrapped, unwrapped)
	remainder := minusSorted(union, wrapped)

	first, last := days[0], days[len(days)-1]

	var rules []string
	appendRule := func(hours, ruleDays []int) {
		if len(hours) > 0 && len(ruleDays) > 0 {
			rules = append(rules, rule(hours, ruleDays))
		}
	}

	if crossPrev {
		// Selection crosses into the previous UTC day: the earliest
		// selected day gains a predecessor carrying the wrapped hours.
		boundary := []int{(first + 6) % 7}
		if len(exclusive) > 0 {
			appendRule(exclusive, boundary)
			appendRule(union, days[:len(days)-1])
			appendRule(remainder, []int{last})
		} else {
			appendRule(wrapped, boundary)
			appendRule(union, days)
		}
		return rules
	}

	// Selection crosses into the next UTC day; mirror of the above.
	boundary := []int{(last + 1) % 7}
	if len(exclusive) > 0 {
		appendRule(exclusive, boundary)
		appendRule(union, days[1:])
		appendRule(remainder, []int{first})
	} else {
		appendRule(wrapped, boundary)
		appendRule(union, days)
	}
	return rules
}

func rule(hours, days []int) string {
	hs := make([]string, len(hours))
	for i, h := range hours {
		hs[i] = strconv.Itoa(h)
	}
	ds := make([]string, len(days))
	for i, d := range days {
		ds[i] = dayNames[d]
	}
	return fmt.Sprintf("0 0 %s ? * %s *", strings.Join(hs, ","), strings.Join(ds, ","))
}

func mustValid(sel LocalSelection) {
	if len(sel.Hours) == 0 {
		panic("schedule: Localize requires a non-empty hour selection")
	}
	if len(sel.Days) == 0 {
		panic("schedule: Localize requires a non-empty day selection")
	}
	for _, h := range sel.Hours {
		if h < 0 || h > 23 {
			panic(fmt.Sprintf("schedule: hour %d out of range 0-23", h))
		}
	}
	for _, d := range sel.Days {
		if d < 0 || d > 6 {
			panic(fmt.Sprintf("schedule: day %d out of range 0-6", d))
		}
	}
}

func dedupSorted(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := append([]int(nil), in...)
	sort.Ints(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

func unionSorted(a, b []int) []int {
	return dedupSorted(append(append([]int(nil), a...), b...))
}

// minusSorted returns the elements of a not present in b.
// Both inputs are sorted and deduplicated.
func minusSorted(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) {
		switch {
		case j >= len(b) || a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] == b[j]:
			i++
			j++
		default:
			j++
		}
	}
	return out
}
