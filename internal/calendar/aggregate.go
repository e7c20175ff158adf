package calendar

import "github.com/rallyhq/rally/internal/model"

// SourceEvents is one adapter's output tagged with its source label and the
// contributing family member's name.
type SourceEvents struct {
	Label  string
	Member string
	Events []model.NormalizedEvent
}

// Aggregate is the merged view over all sources for a household.
type Aggregate struct {
	// Groups holds the per-source events with cross-source duplicates
	// removed: an event appears only under the first source that carried it.
	Groups []SourceEvents

	// Merged is every distinct event across all sources in chronological
	// order.
	Merged []model.NormalizedEvent
}

// AggregateEvents merges the adapters' outputs. It is a pure function of
// its inputs: two sources reporting the same (date, summary) collapse into
// one event whose member list is the union of contributors, attributed to
// the first source that reported it.
func AggregateEvents(inputs []SourceEvents) Aggregate {
	// First pass: who contributed each dedup key.
	attendance := make(map[string][]string)
	for _, in := range inputs {
		for _, ev := range in.Events {
			key := ev.DedupKey()
			members := ev.Members
			if len(members) == 0 && in.Member != "" {
				members = []string{in.Member}
			}
			for _, m := range members {
				if !contains(attendance[key], m) {
					attendance[key] = append(attendance[key], m)
				}
			}
		}
	}

	// Second pass: walk in source order, keep first sighting of each key,
	// and annotate it with the full attendee set when more than one member
	// carries the event.
	var out Aggregate
	seen := make(map[string]bool)
	for _, in := range inputs {
		var kept []model.NormalizedEvent
		for _, ev := range in.Events {
			key := ev.DedupKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			if members := attendance[key]; len(members) > 0 {
				ev.Members = members
			}
			kept = append(kept, ev)
		}
		if len(kept) == 0 {
			continue
		}
		out.Groups = append(out.Groups, SourceEvents{
			Label:  in.Label,
			Member: in.Member,
			Events: kept,
		})
	}

	for _, g := range out.Groups {
		out.Merged = append(out.Merged, g.Events...)
	}
	SortEvents(out.Merged)

	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
