package calendar

import (
	"sort"
	"time"

	"github.com/rallyhq/rally/internal/model"
)

const dateLayout = "2006-01-02"

// displayTimeLayout renders start times the way the dashboard shows them,
// without a leading zero on the hour.
const displayTimeLayout = "3:04 PM MST"

// Normalize converts a raw occurrence into the common event shape,
// rendering times in the household's display timezone. All-day events keep
// their calendar date as-is and carry no display time.
func Normalize(ev RawEvent, loc *time.Location, member string) model.NormalizedEvent {
	out := model.NormalizedEvent{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       ev.Start,
	}
	if out.Summary == "" {
		out.Summary = "Untitled Event"
	}
	if member != "" {
		out.Members = []string{member}
	}

	if ev.AllDay {
		out.Date = ev.Start.Format(dateLayout)
		return out
	}

	local := ev.Start.In(loc)
	out.Date = local.Format(dateLayout)
	out.Time = local.Format(displayTimeLayout)
	return out
}

// SortEvents orders events chronologically, breaking ties by summary so
// output is stable across runs.
func SortEvents(events []model.NormalizedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Summary < events[j].Summary
	})
}
