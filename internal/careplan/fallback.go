package careplan

import "time"

var fallbackTasks = []struct {
	title       string
	description string
	days        int
}{
	{"Water your new plant", "Give your new plant a good drink of water.", 1},
	{"Check the soil", "See if the soil is dry. If it is, time for more water!", 3},
	{"Turn me around!", "Rotate the plant so all its leaves get some sun.", 7},
}

// Fallback returns the generic three-task schedule used when a listing yields no essential tasks.
func Fallback(now time.Time) []ScheduledTask {
	out := make([]ScheduledTask, 0, len(fallbackTasks))
	for _, f := range fallbackTasks {
		out = append(out, ScheduledTask{
			Title:       f.title,
			Description: f.description,
			DueDate:     now.AddDate(0, 0, f.days),
		})
	}
	return out
}
