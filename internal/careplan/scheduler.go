package careplan

import "time"

// firstTaskOffsetDays makes the first task due the day before generation.
const firstTaskOffsetDays = -1

// ScheduledTask is a task with its absolute due date.
type ScheduledTask struct {
	Title       string
	Description string
	DueDate     time.Time
}

// Schedule assigns due dates in order. Each task's frequency, capped at
// MaxFrequencyDays, sets the gap to the next one.
func Schedule(tasks []EssentialTask, now time.Time) []ScheduledTask {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]ScheduledTask, 0, len(tasks))
	offset := firstTaskOffsetDays
	for _, t := range tasks {
		out = append(out, ScheduledTask{
			Title:       t.Title,
			Description: t.Description,
			DueDate:     now.AddDate(0, 0, offset),
		})
		step := t.FrequencyDays
		if step <= 0 {
			step = DefaultFrequencyDays
		}
		step = min(step, MaxFrequencyDays)
		offset += step
	}
	return out
}

// Plan schedules the essential tasks of a parse result, or the generic
// fallback when there are none. The result is never empty.
func Plan(res Result, now time.Time) []ScheduledTask {
	if len(res.Plan.EssentialTasks) > 0 {
		return Schedule(res.Plan.EssentialTasks, now)
	}
	return Fallback(now)
}
