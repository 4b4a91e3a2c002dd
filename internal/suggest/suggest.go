// Package suggest guesses which matter a newly started timer belongs to.
//
// Every function here is pure: the clock is passed in as now, and nothing is
// retained between calls. Recent entries must be ordered newest first; the
// head-only checks do not sort or validate them.
package suggest

import (
	"regexp"
	"time"
)

// Entry is one recent time record fed to the heuristic.
type Entry struct {
	MatterID  string
	StartedAt time.Time
}

// Context is the navigation and history state for a single suggestion request.
type Context struct {
	Pathname      string
	RouteMatterID string
	RecentEntries []Entry
}

// NewContext builds a Context. A nil history becomes an empty one.
func NewContext(pathname, routeMatterID string, recent []Entry) Context {
	if recent == nil {
		recent = []Entry{}
	}
	return Context{
		Pathname:      pathname,
		RouteMatterID: routeMatterID,
		RecentEntries: recent,
	}
}

// Suggestion is the engine's answer. MatterID is empty exactly when Reason is ReasonNone.
type Suggestion struct {
	MatterID string `json:"matter_id,omitempty"`
	Reason   Reason `json:"reason"`
}

// None is the empty suggestion.
func None() Suggestion {
	return Suggestion{Reason: ReasonNone}
}

// Found reports whether a matter was suggested.
func (s Suggestion) Found() bool {
	return s.MatterID != ""
}

const (
	DefaultRecentActivityWindow = 5 * time.Minute
	DefaultLastTimerWindow      = 24 * time.Hour
	DefaultMostActiveWindow     = 7 * 24 * time.Hour
)

// Windows holds the look-back windows for the history tiers.
type Windows struct {
	RecentActivity time.Duration
	LastTimer      time.Duration
	MostActive     time.Duration
}

func DefaultWindows() Windows {
	return Windows{
		RecentActivity: DefaultRecentActivityWindow,
		LastTimer:      DefaultLastTimerWindow,
		MostActive:     DefaultMostActiveWindow,
	}
}

func (w Windows) withDefaults() Windows {
	d := DefaultWindows()
	if w.RecentActivity <= 0 {
		w.RecentActivity = d.RecentActivity
	}
	if w.LastTimer <= 0 {
		w.LastTimer = d.LastTimer
	}
	if w.MostActive <= 0 {
		w.MostActive = d.MostActive
	}
	return w
}

var matterRoute = regexp.MustCompile(`^/matters/([A-Za-z0-9-]+)(?:/(?:edit|time|tasks|billing|documents))?$`)

// ExtractMatterIDFromRoute returns the matter id of a recognized matter page,
// or "" for the list route, unknown sub-routes and non-matter routes.
func ExtractMatterIDFromRoute(pathname string) string {
	m := matterRoute.FindStringSubmatch(pathname)
	if m == nil {
		return ""
	}
	return m[1]
}

// FindRecentActivityMatter returns the newest entry's matter if it started
// within window of now (inclusive). Older entries are never consulted.
func FindRecentActivityMatter(entries []Entry, now time.Time, window time.Duration) string {
	if window <= 0 {
		window = DefaultRecentActivityWindow
	}
	return headWithin(entries, now, window)
}

// FindLastTimerMatter is FindRecentActivityMatter with the 24 hour window.
func FindLastTimerMatter(entries []Entry, now time.Time, window time.Duration) string {
	if window <= 0 {
		window = DefaultLastTimerWindow
	}
	return headWithin(entries, now, window)
}

func headWithin(entries []Entry, now time.Time, window time.Duration) string {
	if len(entries) == 0 {
		return ""
	}
	if now.Sub(entries[0].StartedAt) <= window {
		return entries[0].MatterID
	}
	return ""
}

// FindMostActiveMatterThisWeek counts entries inside window and returns the
// matter with the most of them. Ties go to the matter seen first.
func FindMostActiveMatterThisWeek(entries []Entry, now time.Time, window time.Duration) string {
	if window <= 0 {
		window = DefaultMostActiveWindow
	}

	counts := make(map[string]int)
	var order []string
	for _, e := range entries {
		if now.Sub(e.StartedAt) > window {
			continue
		}
		if _, seen := counts[e.MatterID]; !seen {
			order = append(order, e.MatterID)
		}
		counts[e.MatterID]++
	}

	best, bestCount := "", 0
	for _, id := range order {
		if counts[id] > bestCount {
			best, bestCount = id, counts[id]
		}
	}
	return best
}

// SuggestMatter runs the heuristic with the default windows.
func SuggestMatter(c Context, now time.Time) Suggestion {
	return DefaultWindows().Suggest(c, now)
}

// Suggest evaluates the tiers in priority order and stops at the first hit.
// The route always wins, even if history points at the same matter.
func (w Windows) Suggest(c Context, now time.Time) Suggestion {
	w = w.withDefaults()

	routeID := c.RouteMatterID
	if routeID == "" {
		routeID = ExtractMatterIDFromRoute(c.Pathname)
	}
	if routeID != "" {
		return Suggestion{MatterID: routeID, Reason: ReasonCurrentPage}
	}

	if id := FindRecentActivityMatter(c.RecentEntries, now, w.RecentActivity); id != "" {
		return Suggestion{MatterID: id, Reason: ReasonRecentActivity}
	}
	if id := FindLastTimerMatter(c.RecentEntries, now, w.LastTimer); id != "" {
		return Suggestion{MatterID: id, Reason: ReasonLastTimer}
	}
	if id := FindMostActiveMatterThisWeek(c.RecentEntries, now, w.MostActive); id != "" {
		return Suggestion{MatterID: id, Reason: ReasonMostActiveThisWeek}
	}
	return None()
}
