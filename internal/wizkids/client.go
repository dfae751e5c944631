// Package wizkids fetches store event listings from the WizKids "Win" store
// locator.
//
// The endpoint answers a form-encoded POST with a JSON envelope whose
// "results" field is itself a JSON document, encoded as a string, holding
// the event array. Decoding therefore happens in two stages: first the
// envelope, then the string payload. Both stages must succeed or the fetch
// fails as a whole.
package wizkids

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beekhof/eventsync/internal/errors"
	"github.com/beekhof/eventsync/internal/geocode"
	"github.com/beekhof/eventsync/internal/log"
)

// DefaultURL is the store event search endpoint.
const DefaultURL = "https://win.wizkids.com/actions/doSearch.php"

// PageSize is the number of records requested. Only the first page is ever
// fetched.
const PageSize = 12

// searchTimestamp is the dateTime value the store locator's own page sends.
// The endpoint does not filter on it.
const searchTimestamp = "2019-12-16+21:3:54"

// Query is the search for one location. It is built once and not modified.
type Query struct {
	City        string
	Country     string
	RadiusMiles int
	Latitude    float64
	Longitude   float64
	Timestamp   string
}

// NewQuery builds the search for a resolved location.
func NewQuery(city, country string, radiusMiles int, at geocode.Coordinates) Query {
	return Query{
		City:        city,
		Country:     country,
		RadiusMiles: radiusMiles,
		Latitude:    at.Latitude,
		Longitude:   at.Longitude,
		Timestamp:   searchTimestamp,
	}
}

// Form returns the POST body parameters. The filter fields carry the
// "any" sentinels the store locator uses.
func (q Query) Form() url.Values {
	return url.Values{
		"start":        {"0"},
		"count":        {strconv.Itoa(PageSize)},
		"cLatitude":    {strconv.FormatFloat(q.Latitude, 'f', -1, 64)},
		"cLongitude":   {strconv.FormatFloat(q.Longitude, 'f', -1, 64)},
		"dateTime":     {q.Timestamp},
		"storeevent":   {"1"},
		"addressevent": {""},
		"zipevent":     {q.City},
		"country":      {q.Country},
		"miles":        {strconv.Itoa(q.RadiusMiles)},
		"gameType":     {"0"},
		"gameUniverse": {"0"},
		"format":       {"-1"},
		"eventType":    {"0"},
		"program":      {"0"},
	}
}

// Fetcher retrieves the events for a query.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) ([]Record, error)
}

// Client is a Fetcher for the WizKids endpoint.
type Client struct {
	HTTP *http.Client
	URL  string
}

// NewClient returns a Client for DefaultURL.
func NewClient() *Client {
	return &Client{
		HTTP: &http.Client{Timeout: 30 * time.Second},
		URL:  DefaultURL,
	}
}

// envelope is the outer response document.
type envelope struct {
	Results *json.RawMessage `json:"results"`
}

// Fetch performs one search and returns the first page of records verbatim.
func (c *Client) Fetch(ctx context.Context, q Query) ([]Record, error) {
	const op errors.Op = "wizkids.Fetch"
	logger := log.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, strings.NewReader(q.Form().Encode()))
	if err != nil {
		return nil, errors.E(op, errors.Loc(q.City), errors.RemoteFetch, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.E(op, errors.Loc(q.City), errors.RemoteFetch, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.E(op, errors.Loc(q.City), errors.RemoteFetch, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.E(op, errors.Loc(q.City), errors.RemoteFetch, fmt.Sprintf("endpoint returned HTTP %d", resp.StatusCode))
	}

	records, err := Decode(raw)
	if err != nil {
		return nil, errors.E(op, errors.Loc(q.City), err)
	}

	logger.Debug("fetched store events",
		zap.String("city", q.City),
		zap.Int("count", len(records)))
	return records, nil
}

// Decode parses a response body: the envelope first, then the string-encoded
// "results" payload. A missing or non-string "results" is an error.
func Decode(body []byte) ([]Record, error) {
	const op errors.Op = "wizkids.Decode"

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.E(op, errors.RemoteFetch, fmt.Errorf("response is not a JSON object: %w", err))
	}
	if env.Results == nil {
		return nil, errors.E(op, errors.RemoteFetch, "response has no results field")
	}

	var payload string
	if err := json.Unmarshal(*env.Results, &payload); err != nil {
		return nil, errors.E(op, errors.RemoteFetch, fmt.Errorf("results field is not a string: %w", err))
	}

	var records []Record
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, errors.E(op, errors.RemoteFetch, fmt.Errorf("results payload is not an event array: %w", err))
	}
	return records, nil
}
