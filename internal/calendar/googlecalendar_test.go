package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/beekhof/eventsync/internal/errors"
)

// fakeCalendarAPI serves events.list from pages and records events.insert.
type fakeCalendarAPI struct {
	t          *testing.T
	pages      [][]*calendar.Event
	listCalls  []map[string]string
	inserted   []*calendar.Event
	insertCode int
}

func (f *fakeCalendarAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/calendars/primary/events") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		f.listCalls = append(f.listCalls, map[string]string{
			"timeMin":      q.Get("timeMin"),
			"maxResults":   q.Get("maxResults"),
			"singleEvents": q.Get("singleEvents"),
			"orderBy":      q.Get("orderBy"),
			"pageToken":    q.Get("pageToken"),
		})
		page := 0
		if tok := q.Get("pageToken"); tok != "" {
			page = int(tok[len(tok)-1] - '0')
		}
		resp := &calendar.Events{Items: f.pages[page]}
		if page+1 < len(f.pages) {
			resp.NextPageToken = "page-" + string(rune('0'+page+1))
		}
		json.NewEncoder(w).Encode(resp)

	case http.MethodPost:
		assert.Equal(f.t, "none", r.URL.Query().Get("sendUpdates"))
		if f.insertCode != 0 {
			w.WriteHeader(f.insertCode)
			w.Write([]byte(`{"error": {"code": 403, "message": "forbidden"}}`))
			return
		}
		var event calendar.Event
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&event))
		f.inserted = append(f.inserted, &event)
		event.Id = "created-1"
		event.HtmlLink = "https://calendar.google.com/event?eid=created-1"
		json.NewEncoder(w).Encode(&event)
	}
}

func newTestGoogleClient(t *testing.T, api *fakeCalendarAPI) *GoogleClient {
	t.Helper()
	api.t = t
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), server.Client(), option.WithEndpoint(server.URL+"/"))
	require.NoError(t, err)
	return client
}

func twoPages() [][]*calendar.Event {
	return [][]*calendar.Event{
		{{Summary: "First"}, {Summary: "Second"}},
		{{Summary: "Third"}},
	}
}

func TestListUpcomingEvents_SinglePage(t *testing.T) {
	api := &fakeCalendarAPI{pages: twoPages()}
	client := newTestGoogleClient(t, api)

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("PST", -8*3600))
	events, err := client.ListUpcomingEvents(context.Background(), "primary", now)
	require.NoError(t, err)

	require.Len(t, api.listCalls, 1, "single-page mode must issue exactly one request")
	assert.Len(t, events, 2)
	call := api.listCalls[0]
	assert.Equal(t, "2024-03-01T17:00:00Z", call["timeMin"])
	assert.Equal(t, "500", call["maxResults"])
	assert.Equal(t, "true", call["singleEvents"])
	assert.Equal(t, "startTime", call["orderBy"])
}

func TestListUpcomingEvents_Paginate(t *testing.T) {
	api := &fakeCalendarAPI{pages: twoPages()}
	client := newTestGoogleClient(t, api)
	client.Paginate = true

	events, err := client.ListUpcomingEvents(context.Background(), "primary", time.Now())
	require.NoError(t, err)

	require.Len(t, api.listCalls, 2)
	assert.Equal(t, "page-1", api.listCalls[1]["pageToken"])
	assert.Len(t, events, 3)
	assert.Equal(t, "Third", events[2].Summary)
}

func TestInsertEvent(t *testing.T) {
	api := &fakeCalendarAPI{pages: twoPages()}
	client := newTestGoogleClient(t, api)

	created, err := client.InsertEvent(context.Background(), "primary", &calendar.Event{Summary: "New"})
	require.NoError(t, err)
	assert.Equal(t, "https://calendar.google.com/event?eid=created-1", created.HtmlLink)
	require.Len(t, api.inserted, 1)
	assert.Equal(t, "New", api.inserted[0].Summary)
}

func TestInsertEvent_Error(t *testing.T) {
	api := &fakeCalendarAPI{pages: twoPages(), insertCode: http.StatusForbidden}
	client := newTestGoogleClient(t, api)

	_, err := client.InsertEvent(context.Background(), "primary", &calendar.Event{Summary: "New"})
	require.Error(t, err)
	assert.True(t, errors.Is(errors.CalendarAPI, err), "got %v", err)
}
