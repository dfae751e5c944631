// Package ics writes synced events to an iCalendar file.
package ics

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
)

const productID = "-//eventsync//EN"

// Exporter accumulates events and encodes them as one VCALENDAR.
type Exporter struct {
	cal *ical.Calendar
	now func() time.Time
}

// NewExporter returns an empty Exporter.
func NewExporter() *Exporter {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	return &Exporter{cal: cal, now: time.Now}
}

// Len returns the number of events added so far.
func (x *Exporter) Len() int {
	return len(x.cal.Children)
}

// Add converts a calendar event to a VEVENT. The event's start and end must
// carry RFC 3339 or zone-local date-times. Both are written in UTC since the
// file carries no VTIMEZONE components.
func (x *Exporter) Add(event *calendar.Event) error {
	vevent := ical.NewComponent(ical.CompEvent)

	uid := event.ICalUID
	if uid == "" {
		uid = uuid.NewString() + "@eventsync"
	}
	vevent.Props.SetText(ical.PropUID, uid)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, x.now().UTC())

	if event.Summary != "" {
		vevent.Props.SetText(ical.PropSummary, event.Summary)
	}
	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		vevent.Props.SetText(ical.PropLocation, event.Location)
	}

	start, err := eventTime(event.Start)
	if err != nil {
		return fmt.Errorf("failed to convert start of %q: %w", event.Summary, err)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())

	end, err := eventTime(event.End)
	if err != nil {
		return fmt.Errorf("failed to convert end of %q: %w", event.Summary, err)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())

	for _, attendee := range event.Attendees {
		if attendee == nil || attendee.Email == "" {
			continue
		}
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = "mailto:" + attendee.Email
		vevent.Props.Add(prop)
	}

	x.cal.Children = append(x.cal.Children, vevent)
	return nil
}

// Encode writes the calendar to w.
func (x *Exporter) Encode(w io.Writer) error {
	if err := ical.NewEncoder(w).Encode(x.cal); err != nil {
		return fmt.Errorf("failed to encode iCalendar: %w", err)
	}
	return nil
}

// WriteFile encodes the calendar to path, replacing any existing file.
func (x *Exporter) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := x.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// eventTime resolves a Google event date-time. DateTime values without an
// offset are interpreted in TimeZone.
func eventTime(dt *calendar.EventDateTime) (time.Time, error) {
	if dt == nil || dt.DateTime == "" {
		return time.Time{}, fmt.Errorf("missing date-time")
	}
	if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
		return t.UTC(), nil
	}

	loc := time.UTC
	if dt.TimeZone != "" {
		var err error
		if loc, err = time.LoadLocation(dt.TimeZone); err != nil {
			return time.Time{}, fmt.Errorf("unknown time zone %q: %w", dt.TimeZone, err)
		}
	}
	return time.ParseInLocation("2006-01-02T15:04:05", dt.DateTime, loc)
}
