package schedule

import "eventsim.app/dispatcher/internal/model"

// Summarize builds one display entry per event, in input order. Counts come
// from the resolved repeat rules, not from the planned sends.
func Summarize(events []model.Event) []model.ScheduleSummaryEntry {
	entries := make([]model.ScheduleSummaryEntry, 0, len(events))
	for _, ev := range events {
		repeats := ev.TotalRepeats()
		entry := model.ScheduleSummaryEntry{
			Summary:       ev.Summary,
			InitialOffset: ev.ScheduleOffset,
			TotalRepeats:  repeats,
			TotalSends:    1 + repeats,
		}
		if len(ev.Repeats) > 0 {
			next := ev.Repeats[0].RepeatOffset
			entry.NextOffset = &next
		}
		entries = append(entries, entry)
	}
	return entries
}
