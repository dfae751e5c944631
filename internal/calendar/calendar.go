// Package calendar wraps the Google Calendar API operations the event sync
// needs: listing upcoming events and inserting new ones.
package calendar

import (
	"context"
	"time"

	"google.golang.org/api/calendar/v3"
)

// Client is the calendar service as seen by the synchronizer.
type Client interface {
	// ListUpcomingEvents returns events starting at or after now.
	ListUpcomingEvents(ctx context.Context, calendarID string, now time.Time) ([]*calendar.Event, error)
	// InsertEvent creates event and returns the stored copy.
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
}

// FindEventsByTitle returns the events whose summary equals title exactly.
// The comparison is case-sensitive and does no normalization. It scans the
// whole list; callers checking many titles should use Titles instead.
func FindEventsByTitle(title string, events []*calendar.Event) []*calendar.Event {
	var matches []*calendar.Event
	for _, event := range events {
		if event == nil || event.Summary == "" {
			continue
		}
		if event.Summary == title {
			matches = append(matches, event)
		}
	}
	return matches
}

// Titles returns the set of non-empty summaries in events. It is the set
// form of FindEventsByTitle: a title is in the set iff FindEventsByTitle
// would return at least one event for it. The synchronizer dedups with it.
func Titles(events []*calendar.Event) map[string]struct{} {
	titles := make(map[string]struct{}, len(events))
	for _, event := range events {
		if event == nil || event.Summary == "" {
			continue
		}
		titles[event.Summary] = struct{}{}
	}
	return titles
}
