package calendar

import "strings"

// IsDeclined reports whether a raw event should be dropped as declined or
// cancelled. The decision order matters: organizer cancellation always
// wins; when ownerEmail is known, that attendee's own status is
// authoritative; otherwise conservative heuristics apply.
func IsDeclined(ev RawEvent, ownerEmail string) bool {
	if strings.EqualFold(strings.TrimSpace(ev.Status), "CANCELLED") {
		return true
	}

	if len(ev.Attendees) == 0 {
		return false
	}

	if ownerEmail != "" {
		owner := strings.ToLower(strings.TrimSpace(ownerEmail))
		for _, att := range ev.Attendees {
			if normalizeAddress(att.Address) != owner {
				continue
			}
			return strings.EqualFold(att.PartStat, "DECLINED")
		}
		// Owner not listed as an attendee: presumably the organizer.
		return false
	}

	// No owner identity. A FREE busy hint plus any declined attendee is a
	// strong signal the owner's copy of the event was declined.
	if strings.EqualFold(ev.BusyStatus, "FREE") {
		for _, att := range ev.Attendees {
			if strings.EqualFold(att.PartStat, "DECLINED") {
				return true
			}
		}
	}

	for _, att := range ev.Attendees {
		if !strings.EqualFold(att.PartStat, "DECLINED") {
			return false
		}
	}
	return true
}

// normalizeAddress lowercases an attendee address and strips the mailto:
// URI scheme so it compares against plain email addresses.
func normalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = strings.TrimPrefix(addr, "mailto:")
	return strings.TrimSpace(addr)
}
