package suggest

// Reason says which tier produced a suggestion.
type Reason string

const (
	ReasonCurrentPage        Reason = "current_page"
	ReasonRecentActivity     Reason = "recent_activity"
	ReasonLastTimer          Reason = "last_timer"
	ReasonMostActiveThisWeek Reason = "most_active_this_week"
	ReasonNone               Reason = "none"
)

var reasonLabels = map[Reason]string{
	ReasonCurrentPage:        "Matter you're viewing",
	ReasonRecentActivity:     "Worked on in the last few minutes",
	ReasonLastTimer:          "Your last timer",
	ReasonMostActiveThisWeek: "Most active this week",
	ReasonNone:               "No suggestion",
}

// Valid reports whether r is one of the known reasons.
func (r Reason) Valid() bool {
	_, ok := reasonLabels[r]
	return ok
}

// ReasonLabel returns a short human-readable phrase, or "" for an unknown reason.
func ReasonLabel(r Reason) string {
	return reasonLabels[r]
}
