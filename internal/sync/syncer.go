package sync

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	calclient "github.com/beekhof/eventsync/internal/calendar"
	"github.com/beekhof/eventsync/internal/config"
	"github.com/beekhof/eventsync/internal/errors"
	"github.com/beekhof/eventsync/internal/geocode"
	"github.com/beekhof/eventsync/internal/ics"
	"github.com/beekhof/eventsync/internal/log"
	"github.com/beekhof/eventsync/internal/wizkids"
)

// StartLayout is the layout of a store event's EVENT_DATE. The marker is
// honored: 01-11 PM move to the afternoon and 12 AM becomes midnight, where a
// plain 24-hour reading would ignore it.
const StartLayout = "2006-01-02^15:04 PM"

// EventDuration is the length given to every created event.
const EventDuration = 3 * time.Hour

// calendarDateTime is the zone-less date-time sent with an explicit timeZone.
const calendarDateTime = "2006-01-02T15:04:05"

// Outcome is what CreateEvent did with a candidate.
type Outcome int

const (
	// Created means the event was inserted.
	Created Outcome = iota
	// Duplicate means an event with the same title already exists.
	Duplicate
	// DryRun means the event would have been inserted.
	DryRun
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Duplicate:
		return "duplicate"
	case DryRun:
		return "dry-run"
	}
	return "unknown"
}

// Result reports the handling of one candidate event.
type Result struct {
	Outcome Outcome
	Summary string
	// Link is the created event's htmlLink. Empty unless Outcome is Created.
	Link  string
	Event *calendar.Event
}

// Totals counts results over a run.
type Totals struct {
	Created         int
	Duplicates      int
	DryRun          int
	FailedLocations int
}

func (t *Totals) add(o Outcome) {
	switch o {
	case Created:
		t.Created++
	case Duplicate:
		t.Duplicates++
	case DryRun:
		t.DryRun++
	}
}

// Options configures a Syncer.
type Options struct {
	CalendarID  string
	TimeZone    string
	RadiusMiles int
	GuestList   []string

	// DryRun skips the insert call. Everything else still happens.
	DryRun bool

	// Out receives the human-readable status lines. Defaults to os.Stdout.
	Out io.Writer

	// Exporter, if set, receives every created (or would-be created) event.
	Exporter *ics.Exporter
}

// Syncer copies store events into a calendar, skipping titles it already holds.
type Syncer struct {
	resolver geocode.Resolver
	fetcher  wizkids.Fetcher
	client   calclient.Client
	opts     Options
	location *time.Location
	now      func() time.Time

	// titles is the dedup index. It is nil until the calendar has been
	// listed for the current run.
	titles map[string]struct{}
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(resolver geocode.Resolver, fetcher wizkids.Fetcher, client calclient.Client, opts Options) (*Syncer, error) {
	if opts.CalendarID == "" {
		opts.CalendarID = config.DefaultCalendarID
	}
	if opts.TimeZone == "" {
		opts.TimeZone = config.DefaultTimeZone
	}
	if opts.RadiusMiles == 0 {
		opts.RadiusMiles = config.DefaultRadiusMiles
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	loc, err := time.LoadLocation(opts.TimeZone)
	if err != nil {
		return nil, errors.E(errors.Op("sync.NewSyncer"), errors.Invalid, fmt.Errorf("invalid time zone %q: %w", opts.TimeZone, err))
	}

	return &Syncer{
		resolver: resolver,
		fetcher:  fetcher,
		client:   client,
		opts:     opts,
		location: loc,
		now:      time.Now,
	}, nil
}

// ParseStart parses a store event date in loc. The hour is 24-hour; a PM
// marker on an hour before noon moves it to the afternoon.
func ParseStart(raw string, loc *time.Location) (time.Time, error) {
	start, err := time.ParseInLocation(StartLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, errors.E(errors.Op("sync.ParseStart"), errors.DateParse, fmt.Errorf("event date %q does not match %q: %w", raw, StartLayout, err))
	}
	return start, nil
}

// BuildEvent assembles the calendar event for a store event starting at start.
func BuildEvent(summary, location, description string, start time.Time, timeZone string, attendees []string) *calendar.Event {
	end := start.Add(EventDuration)

	var guests []*calendar.EventAttendee
	for _, email := range attendees {
		guests = append(guests, &calendar.EventAttendee{Email: email})
	}

	return &calendar.Event{
		Summary:     summary,
		Location:    location,
		Description: description,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(calendarDateTime),
			TimeZone: timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(calendarDateTime),
			TimeZone: timeZone,
		},
		Attendees: guests,
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 10},
			},
			// UseDefault is omitted from the request body when false unless forced.
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

// ListUpcomingEvents returns the calendar's events from now on.
func (s *Syncer) ListUpcomingEvents(ctx context.Context) ([]*calendar.Event, error) {
	return s.client.ListUpcomingEvents(ctx, s.opts.CalendarID, s.now())
}

// loadTitles lists the calendar once and builds the title index.
func (s *Syncer) loadTitles(ctx context.Context) error {
	if s.titles != nil {
		return nil
	}
	events, err := s.ListUpcomingEvents(ctx)
	if err != nil {
		return err
	}
	s.titles = calclient.Titles(events)
	log.FromContext(ctx).Debug("built title index", zap.Int("titles", len(s.titles)))
	return nil
}

// EventExists reports whether the calendar already holds an event titled
// like candidate.
func (s *Syncer) EventExists(ctx context.Context, candidate *calendar.Event) (bool, error) {
	if err := s.loadTitles(ctx); err != nil {
		return false, err
	}
	_, ok := s.titles[candidate.Summary]
	return ok, nil
}

// CreateEvent inserts a store event unless its title is already present.
func (s *Syncer) CreateEvent(ctx context.Context, summary, location, description, startRaw string, attendees []string) (Result, error) {
	const op errors.Op = "sync.CreateEvent"
	logger := log.FromContext(ctx)

	start, err := ParseStart(startRaw, s.location)
	if err != nil {
		return Result{}, errors.E(op, err)
	}
	event := BuildEvent(summary, location, description, start, s.opts.TimeZone, attendees)

	exists, err := s.EventExists(ctx, event)
	if err != nil {
		return Result{}, errors.E(op, err)
	}
	if exists {
		fmt.Fprintf(s.opts.Out, "Already have '%s' in the calendar\n", summary)
		logger.Debug("skipping duplicate", zap.String("summary", summary))
		return Result{Outcome: Duplicate, Summary: summary, Event: event}, nil
	}

	result := Result{Outcome: DryRun, Summary: summary, Event: event}
	if s.opts.DryRun {
		fmt.Fprintf(s.opts.Out, "Would create: %s\n", summary)
	} else {
		created, err := s.client.InsertEvent(ctx, s.opts.CalendarID, event)
		if err != nil {
			return Result{}, errors.E(op, err)
		}
		result = Result{Outcome: Created, Summary: summary, Link: created.HtmlLink, Event: created}
		fmt.Fprintf(s.opts.Out, "Event created: %s\n", created.HtmlLink)
		logger.Info("inserted event",
			zap.String("summary", summary),
			zap.String("id", created.Id),
			zap.String("start", event.Start.DateTime))
	}

	// A record repeated later in the run is now a duplicate.
	s.titles[summary] = struct{}{}

	if s.opts.Exporter != nil {
		if err := s.opts.Exporter.Add(event); err != nil {
			logger.Warn("failed to export event", zap.String("summary", summary), zap.Error(err))
		}
	}

	return result, nil
}

// SyncLocation resolves, fetches and creates events for one location. The
// first failure stops the location.
func (s *Syncer) SyncLocation(ctx context.Context, loc config.Location) (Totals, error) {
	const op errors.Op = "sync.SyncLocation"
	logger := log.FromContext(ctx).With(zap.String("city", loc.City), zap.String("country", loc.Country))
	ctx = log.ToContext(ctx, logger)

	var totals Totals

	coords, err := s.resolver.Resolve(ctx, loc.City)
	if err != nil {
		return totals, errors.E(op, errors.Loc(loc.City), err)
	}

	query := wizkids.NewQuery(loc.City, loc.Country, s.opts.RadiusMiles, coords)
	records, err := s.fetcher.Fetch(ctx, query)
	if err != nil {
		return totals, errors.E(op, errors.Loc(loc.City), err)
	}
	logger.Info("fetched store events", zap.Int("count", len(records)))

	fmt.Fprintln(s.opts.Out, strings.ToUpper(loc.City))
	for _, record := range records {
		result, err := s.CreateEvent(ctx,
			record.Summary(),
			string(record.Address),
			record.Description(),
			string(record.EventDate),
			s.opts.GuestList)
		if err != nil {
			return totals, errors.E(op, errors.Loc(loc.City), err)
		}
		totals.add(result.Outcome)
	}

	return totals, nil
}

// Run syncs every location. A failing location is logged and skipped; the
// returned error joins every location failure. The calendar is listed once
// per Run.
func (s *Syncer) Run(ctx context.Context, locations []config.Location) (Totals, error) {
	logger := log.FromContext(ctx)
	logger.Info("starting sync", zap.Int("locations", len(locations)), zap.Bool("dry_run", s.opts.DryRun))

	s.titles = nil

	var totals Totals
	var failures []error
	for _, loc := range locations {
		locTotals, err := s.SyncLocation(ctx, loc)
		totals.Created += locTotals.Created
		totals.Duplicates += locTotals.Duplicates
		totals.DryRun += locTotals.DryRun
		if err != nil {
			totals.FailedLocations++
			logger.Error("location failed",
				zap.String("city", loc.City),
				zap.String("kind", errors.KindOf(err).String()),
				zap.Error(err))
			failures = append(failures, err)
		}
	}

	logger.Info("sync complete",
		zap.Int("created", totals.Created),
		zap.Int("duplicates", totals.Duplicates),
		zap.Int("dry_run", totals.DryRun),
		zap.Int("failed_locations", totals.FailedLocations))

	return totals, stderrors.Join(failures...)
}
