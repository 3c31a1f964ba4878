package schedule

import (
	"fmt"
	"time"

	"plantrack/internal/model"
)

// GenerateLimit bounds how many starts a single cron rule may
// contribute to one generation window: one per hour for a week.
const GenerateLimit = 24 * 7

// OccurrenceWindow is how long a generated occurrence stays current.
const OccurrenceWindow = 24 * time.Hour

// Plan pairs a definition with its frequency for generation.
type Plan struct {
	Definition model.Definition
	Frequency  model.Frequency
}

// Batch groups generated occurrence drafts per source definition so the
// caller can persist them with one bulk insert each.
type Batch struct {
	Definition  model.Definition
	Occurrences []model.TaskOccurrence
}

// Generate expands each plan's cron rules into occurrence drafts within
// [start, end). Drafts are born MISSING and stamped with the SYSTEM
// actor; their window is AvailableFrom plus OccurrenceWindow.
func Generate(eval Evaluator, start, end time.Time, plans []Plan) ([]Batch, error) {
	batches := make([]Batch, 0, len(plans))
	for _, p := range plans {
		batch := Batch{Definition: p.Definition}
		for _, rule := range p.Frequency.CronRules {
			starts, err := eval.NextOccurrences(rule, start, end, GenerateLimit)
			if err != nil {
				return nil, fmt.Errorf("definition %s: %w", p.Definition.ID, err)
			}
			for _, at := range starts {
				batch.Occurrences = append(batch.Occurrences, model.TaskOccurrence{
					DefinitionID:   p.Definition.ID,
					DefinitionName: p.Definition.Name,
					FrequencyID:    p.Frequency.ID,
					AvailableFrom:  at,
					AvailableTo:    at.Add(OccurrenceWindow),
					Status:         model.OccurrenceMissing,
					CreatedBy:      model.SystemActor,
					UpdatedBy:      model.SystemActor,
				})
			}
		}
		batches = append(batches, batch)
	}
	return batches, nil
}
