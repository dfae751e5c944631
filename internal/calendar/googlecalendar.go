package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/beekhof/eventsync/internal/errors"
	"github.com/beekhof/eventsync/internal/log"
)

// MaxListResults is the page size requested when listing events.
const MaxListResults = 500

// GoogleClient is a wrapper around the Google Calendar API service.
type GoogleClient struct {
	service *calendar.Service

	// Paginate makes ListUpcomingEvents follow nextPageToken. When false,
	// only the first page is returned even if more exist.
	Paginate bool
}

// NewClient creates a new Google Calendar API client using the provided HTTP client.
// Extra options are appended after option.WithHTTPClient.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*GoogleClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.E(errors.Op("calendar.NewClient"), errors.CalendarAPI, fmt.Errorf("failed to create calendar service: %w", err))
	}

	return &GoogleClient{service: service}, nil
}

// ListUpcomingEvents lists events starting at or after now, ordered by start
// time, with recurring events expanded to single instances.
func (c *GoogleClient) ListUpcomingEvents(ctx context.Context, calendarID string, now time.Time) ([]*calendar.Event, error) {
	const op errors.Op = "calendar.ListUpcomingEvents"
	logger := log.FromContext(ctx)

	var items []*calendar.Event
	pageToken := ""
	pages := 0
	for {
		call := c.service.Events.List(calendarID).
			Context(ctx).
			TimeMin(now.UTC().Format(time.RFC3339)).
			MaxResults(MaxListResults).
			SingleEvents(true). // Expand recurring events
			OrderBy("startTime")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		eventsList, err := call.Do()
		if err != nil {
			return nil, errors.E(op, errors.CalendarAPI, fmt.Errorf("failed to list events: %w", err))
		}
		items = append(items, eventsList.Items...)
		pages++

		pageToken = eventsList.NextPageToken
		if pageToken == "" {
			break
		}
		if !c.Paginate {
			logger.Warn("calendar has more upcoming events than one page; duplicates beyond it will not be detected",
				zap.String("calendar", calendarID),
				zap.Int("listed", len(items)))
			break
		}
	}

	logger.Debug("listed upcoming events",
		zap.String("calendar", calendarID),
		zap.Int("count", len(items)),
		zap.Int("pages", pages))
	return items, nil
}

// InsertEvent inserts a new event into a calendar.
// Important: Sets sendUpdates="none" so guests are not emailed.
func (c *GoogleClient) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	created, err := c.service.Events.Insert(calendarID, event).
		Context(ctx).
		SendUpdates("none"). // Disable notifications
		Do()
	if err != nil {
		return nil, errors.E(errors.Op("calendar.InsertEvent"), errors.CalendarAPI, fmt.Errorf("failed to insert event: %w", err))
	}

	return created, nil
}
