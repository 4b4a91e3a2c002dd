package suggest

import (
	"fmt"
	"testing"
	"time"
)

var now = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func ago(d time.Duration) time.Time {
	return now.Add(-d)
}

// --- ExtractMatterIDFromRoute ---

func TestExtractMatterIDFromRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/matters/abc-123", "abc-123"},
		{"/matters/abc-123/edit", "abc-123"},
		{"/matters/abc-123/time", "abc-123"},
		{"/matters/abc-123/tasks", "abc-123"},
		{"/matters/abc-123/billing", "abc-123"},
		{"/matters/abc-123/documents", "abc-123"},
		{"/matters/ABC9", "ABC9"},
		{"/matters", ""},
		{"/matters/", ""},
		{"/matters/abc.def", ""},
		{"/matters/abc_def", ""},
		{"/matters/abc-123/invoices", ""},
		{"/matters/abc-123/edit/extra", ""},
		{"/matters/abc-123/", ""},
		{"/clients/abc-123", ""},
		{"/dashboard", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractMatterIDFromRoute(tt.path); got != tt.want {
			t.Errorf("ExtractMatterIDFromRoute(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// --- FindRecentActivityMatter ---

func TestFindRecentActivityMatter_WhenEmpty_ShouldReturnEmpty(t *testing.T) {
	if got := FindRecentActivityMatter(nil, now, 0); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestFindRecentActivityMatter_WhenExactlyAtWindow_ShouldMatch(t *testing.T) {
	entries := []Entry{{MatterID: "A", StartedAt: ago(5 * time.Minute)}}
	if got := FindRecentActivityMatter(entries, now, 0); got != "A" {
		t.Errorf("expected A at inclusive boundary, got %q", got)
	}
}

func TestFindRecentActivityMatter_WhenOneSecondPastWindow_ShouldNotMatch(t *testing.T) {
	entries := []Entry{{MatterID: "A", StartedAt: ago(5*time.Minute + time.Second)}}
	if got := FindRecentActivityMatter(entries, now, 0); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestFindRecentActivityMatter_WhenHeadIsStale_ShouldNotScanFurther(t *testing.T) {
	// Unsorted on purpose: the second entry is fresh but must be ignored.
	entries := []Entry{
		{MatterID: "old", StartedAt: ago(time.Hour)},
		{MatterID: "fresh", StartedAt: ago(time.Minute)},
	}
	if got := FindRecentActivityMatter(entries, now, 0); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestFindRecentActivityMatter_WhenHeadIsFresh_ShouldIgnoreLaterAges(t *testing.T) {
	entries := []Entry{
		{MatterID: "A", StartedAt: ago(2 * time.Minute)},
		{MatterID: "B", StartedAt: ago(30 * 24 * time.Hour)},
	}
	if got := FindRecentActivityMatter(entries, now, 0); got != "A" {
		t.Errorf("expected A, got %q", got)
	}
}

func TestFindRecentActivityMatter_WhenCustomWindow_ShouldUseIt(t *testing.T) {
	entries := []Entry{{MatterID: "A", StartedAt: ago(9 * time.Minute)}}
	if got := FindRecentActivityMatter(entries, now, 10*time.Minute); got != "A" {
		t.Errorf("expected A, got %q", got)
	}
}

func TestFindRecentActivityMatter_WhenStartedInFuture_ShouldMatch(t *testing.T) {
	entries := []Entry{{MatterID: "A", StartedAt: now.Add(time.Minute)}}
	if got := FindRecentActivityMatter(entries, now, 0); got != "A" {
		t.Errorf("expected A, got %q", got)
	}
}

// --- FindLastTimerMatter ---

func TestFindLastTimerMatter_WhenExactly24Hours_ShouldMatch(t *testing.T) {
	entries := []Entry{{MatterID: "A", StartedAt: ago(24 * time.Hour)}}
	if got := FindLastTimerMatter(entries, now, 0); got != "A" {
		t.Errorf("expected A, got %q", got)
	}
}

func TestFindLastTimerMatter_WhenOlderThan24Hours_ShouldReturnEmpty(t *testing.T) {
	entries := []Entry{
		{MatterID: "A", StartedAt: ago(24*time.Hour + time.Second)},
		{MatterID: "B", StartedAt: ago(time.Hour)},
	}
	if got := FindLastTimerMatter(entries, now, 0); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

// --- FindMostActiveMatterThisWeek ---

func TestFindMostActiveMatterThisWeek_WhenTied_ShouldReturnFirstEncountered(t *testing.T) {
	entries := []Entry{
		{MatterID: "A", StartedAt: ago(time.Hour)},
		{MatterID: "B", StartedAt: ago(time.Hour)},
		{MatterID: "A", StartedAt: ago(2 * time.Hour)},
		{MatterID: "B", StartedAt: ago(2 * time.Hour)},
	}
	if got := FindMostActiveMatterThisWeek(entries, now, 0); got != "A" {
		t.Errorf("expected A, got %q", got)
	}
}

func TestFindMostActiveMatterThisWeek_WhenOneMatterDominates_ShouldReturnIt(t *testing.T) {
	entries := []Entry{
		{MatterID: "A", StartedAt: ago(time.Hour)},
		{MatterID: "B", StartedAt: ago(2 * time.Hour)},
		{MatterID: "B", StartedAt: ago(3 * time.Hour)},
	}
	if got := FindMostActiveMatterThisWeek(entries, now, 0); got != "B" {
		t.Errorf("expected B, got %q", got)
	}
}

func TestFindMostActiveMatterThisWeek_WhenEntriesOutsideWindow_ShouldNotCountThem(t *testing.T) {
	entries := []Entry{
		{MatterID: "A", StartedAt: ago(time.Hour)},
		{MatterID: "B", StartedAt: ago(8 * 24 * time.Hour)},
		{MatterID: "B", StartedAt: ago(9 * 24 * time.Hour)},
	}
	if got := FindMostActiveMatterThisWeek(entries, now, 0); got != "A" {
		t.Errorf("expected A, got %q", got)
	}
}

func TestFindMostActiveMatterThisWeek_WhenExactlySevenDays_ShouldCount(t *testing.T) {
	entries := []Entry{{MatterID: "A", StartedAt: ago(7 * 24 * time.Hour)}}
	if got := FindMostActiveMatterThisWeek(entries, now, 0); got != "A" {
		t.Errorf("expected A, got %q", got)
	}
}

func TestFindMostActiveMatterThisWeek_WhenNothingInWindow_ShouldReturnEmpty(t *testing.T) {
	entries := []Entry{{MatterID: "A", StartedAt: ago(30 * 24 * time.Hour)}}
	if got := FindMostActiveMatterThisWeek(entries, now, 0); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestFindMostActiveMatterThisWeek_WhenLargeHistory_ShouldFinishLinearly(t *testing.T) {
	entries := make([]Entry, 0, 5000)
	for i := 0; i < 5000; i++ {
		entries = append(entries, Entry{
			MatterID:  fmt.Sprintf("m-%d", i%7),
			StartedAt: ago(time.Duration(i) * time.Minute),
		})
	}
	if got := FindMostActiveMatterThisWeek(entries, now, 0); got != "m-0" {
		t.Errorf("expected m-0, got %q", got)
	}
}

// --- SuggestMatter ---

func TestSuggestMatter_WhenRouteMatches_ShouldWinOverRecentActivity(t *testing.T) {
	c := NewContext("/matters/X", "", []Entry{{MatterID: "Y", StartedAt: ago(time.Minute)}})
	got := SuggestMatter(c, now)
	want := Suggestion{MatterID: "X", Reason: ReasonCurrentPage}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestSuggestMatter_WhenRouteMatterIDSupplied_ShouldTakePrecedenceOverPath(t *testing.T) {
	c := NewContext("/matters/X", "Z", nil)
	got := SuggestMatter(c, now)
	if got.MatterID != "Z" || got.Reason != ReasonCurrentPage {
		t.Errorf("expected Z/current_page, got %+v", got)
	}
}

func TestSuggestMatter_WhenSameMatterInRouteAndHistory_ShouldReportCurrentPage(t *testing.T) {
	c := NewContext("/matters/X/time", "", []Entry{{MatterID: "X", StartedAt: ago(time.Minute)}})
	if got := SuggestMatter(c, now); got.Reason != ReasonCurrentPage {
		t.Errorf("expected current_page, got %q", got.Reason)
	}
}

func TestSuggestMatter_WhenOnlyHistory_ShouldFollowTierOrder(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    Suggestion
	}{
		{
			name:    "recent activity",
			entries: []Entry{{MatterID: "A", StartedAt: ago(3 * time.Minute)}},
			want:    Suggestion{MatterID: "A", Reason: ReasonRecentActivity},
		},
		{
			name:    "last timer",
			entries: []Entry{{MatterID: "A", StartedAt: ago(3 * time.Hour)}},
			want:    Suggestion{MatterID: "A", Reason: ReasonLastTimer},
		},
		{
			name: "most active",
			entries: []Entry{
				{MatterID: "A", StartedAt: ago(2 * 24 * time.Hour)},
				{MatterID: "B", StartedAt: ago(3 * 24 * time.Hour)},
				{MatterID: "B", StartedAt: ago(4 * 24 * time.Hour)},
			},
			want: Suggestion{MatterID: "B", Reason: ReasonMostActiveThisWeek},
		},
		{
			name:    "nothing",
			entries: []Entry{{MatterID: "A", StartedAt: ago(20 * 24 * time.Hour)}},
			want:    None(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestMatter(NewContext("/dashboard", "", tt.entries), now)
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestSuggestMatter_WhenNoRouteAndNoEntries_ShouldReturnNone(t *testing.T) {
	got := SuggestMatter(NewContext("/matters", "", nil), now)
	if got.Found() || got.Reason != ReasonNone {
		t.Errorf("expected none, got %+v", got)
	}
}

func TestWindowsSuggest_WhenCustomRecentWindow_ShouldPreferRecentOverLastTimer(t *testing.T) {
	w := Windows{RecentActivity: 15 * time.Minute}
	c := NewContext("", "", []Entry{{MatterID: "A", StartedAt: ago(10 * time.Minute)}})
	if got := w.Suggest(c, now); got.Reason != ReasonRecentActivity {
		t.Errorf("expected recent_activity, got %q", got.Reason)
	}
}

// --- ReasonLabel ---

func TestReasonLabel_WhenKnownReason_ShouldReturnPhrase(t *testing.T) {
	for _, r := range []Reason{ReasonCurrentPage, ReasonRecentActivity, ReasonLastTimer, ReasonMostActiveThisWeek, ReasonNone} {
		if ReasonLabel(r) == "" {
			t.Errorf("expected label for %q", r)
		}
		if !r.Valid() {
			t.Errorf("expected %q to be valid", r)
		}
	}
}

func TestReasonLabel_WhenUnknownReason_ShouldReturnEmpty(t *testing.T) {
	if got := ReasonLabel("bogus"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
	if got := ReasonLabel(""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

// --- NewContext ---

func TestNewContext_WhenNilHistory_ShouldUseEmptySlice(t *testing.T) {
	c := NewContext("/x", "", nil)
	if c.RecentEntries == nil || len(c.RecentEntries) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", c.RecentEntries)
	}
}
