package careplan

import (
	"time"

	"plantcare/internal/models"
)

const unknownSpecies = "Unknown Plant"

// DueToday keeps uncompleted tasks due on or before today (in now's location),
// grouped by listing in order of first appearance. species maps listing id to a display name.
func DueToday(tasks []models.CareTask, species map[string]string, now time.Time) []models.PlantCareSummary {
	today := startOfDay(now)
	idx := make(map[string]int)
	var out []models.PlantCareSummary
	for _, t := range tasks {
		if t.Completed || startOfDay(t.DueDate.In(now.Location())).After(today) {
			continue
		}
		i, ok := idx[t.ListingID]
		if !ok {
			name := species[t.ListingID]
			if name == "" {
				name = unknownSpecies
			}
			i = len(out)
			idx[t.ListingID] = i
			out = append(out, models.PlantCareSummary{ListingID: t.ListingID, Species: name})
		}
		out[i].Tasks = append(out[i].Tasks, t)
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
