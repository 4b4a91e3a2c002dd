// Package calendar reads iCalendar feeds to prefill session notes with the
// meetings that happened while a timer was running.
package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"
)

// Event is a timed calendar event.
type Event struct {
	Summary   string
	StartTime time.Time
	EndTime   time.Time
}

// Fetch reads an ICS feed from a URL or file path and returns the timed events
// overlapping [windowStart, windowEnd), earliest first.
func Fetch(ctx context.Context, source string, windowStart, windowEnd time.Time) ([]Event, error) {
	r, err := openSource(ctx, source)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return decode(r, windowStart, windowEnd)
}

func openSource(ctx context.Context, source string) (io.ReadCloser, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("opening calendar file: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("calendar fetch returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func decode(r io.Reader, windowStart, windowEnd time.Time) ([]Event, error) {
	dec := ical.NewDecoder(r)
	var events []Event

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing calendar: %w", err)
		}

		for _, child := range cal.Children {
			if child.Name != ical.CompEvent {
				continue
			}
			if e, ok := timedEvent(ical.Event{Component: child}); ok && e.StartTime.Before(windowEnd) && e.EndTime.After(windowStart) {
				events = append(events, e)
			}
		}
	}

	slices.SortStableFunc(events, func(a, b Event) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return events, nil
}

// timedEvent converts a VEVENT, rejecting all-day, cancelled, untitled and malformed ones.
func timedEvent(ev ical.Event) (Event, bool) {
	if p := ev.Props.Get(ical.PropDateTimeStart); p == nil || p.ValueType() == ical.ValueDate {
		return Event{}, false
	}
	if status, _ := ev.Props.Text(ical.PropStatus); strings.EqualFold(status, "CANCELLED") {
		return Event{}, false
	}
	summary, _ := ev.Props.Text(ical.PropSummary)
	if summary = strings.TrimSpace(summary); summary == "" {
		return Event{}, false
	}

	start, err := ev.DateTimeStart(nil)
	if err != nil {
		return Event{}, false
	}
	end, err := ev.DateTimeEnd(nil)
	if err != nil {
		return Event{}, false
	}
	return Event{Summary: summary, StartTime: start, EndTime: end}, true
}

// FormatNotes joins distinct event summaries with "; ".
func FormatNotes(events []Event) string {
	var summaries []string
	for _, e := range events {
		if !slices.Contains(summaries, e.Summary) {
			summaries = append(summaries, e.Summary)
		}
	}
	return strings.Join(summaries, "; ")
}
