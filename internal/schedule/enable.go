package schedule

import (
	"sort"
	"time"

	"plantrack/internal/model"
)

// Resolved annotates an occurrence with whether it is currently
// actionable for submission.
type Resolved struct {
	model.TaskOccurrence
	Disabled bool
}

// Resolve marks, per definition, exactly one occurrence as actionable:
// the chronologically first one that is still MISSING. Everything after
// it in the same group is superseded and stays disabled.
//
// The first MISSING occurrence is enabled even when its window has
// already passed. That is deliberate catch-up behavior: a user may
// retroactively complete an overdue checklist item once all earlier
// occurrences of the same definition are resolved.
//
// now is injected so enablement is deterministic under test. Groups are
// emitted in first-seen input order, chronological within each group.
func Resolve(occs []model.TaskOccurrence, now time.Time) []Resolved {
	groups := make(map[string][]model.TaskOccurrence, len(occs))
	var order []string
	for _, o := range occs {
		if _, ok := groups[o.DefinitionName]; !ok {
			order = append(order, o.DefinitionName)
		}
		groups[o.DefinitionName] = append(groups[o.DefinitionName], o)
	}

	out := make([]Resolved, 0, len(occs))
	for _, name := range order {
		group := groups[name]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].AvailableFrom.Before(group[j].AvailableFrom)
		})

		enabledAlready := false
		for _, o := range group {
			pending := o.Status == model.OccurrenceMissing
			touched := o.UpdatedBy != model.SystemActor
			future := now.Before(o.AvailableFrom)
			past := now.After(o.AvailableTo)
			disabled := !pending || touched || future || past

			switch {
			case enabledAlready:
				disabled = true
			case pending:
				disabled = false
				enabledAlready = true
			}
			out = append(out, Resolved{TaskOccurrence: o, Disabled: disabled})
		}
	}
	return out
}
