// Package geocode resolves city names to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beekhof/eventsync/internal/errors"
	"github.com/beekhof/eventsync/internal/log"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// DefaultUserAgent identifies this tool to Nominatim, which rejects
// anonymous clients.
const DefaultUserAgent = "eventsync/1.0 (+https://github.com/beekhof/eventsync)"

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Resolver turns a human-readable place name into coordinates.
type Resolver interface {
	Resolve(ctx context.Context, city string) (Coordinates, error)
}

// Nominatim is a Resolver backed by the Nominatim search API.
type Nominatim struct {
	HTTP      *http.Client
	BaseURL   string
	UserAgent string
}

// NewNominatim returns a Nominatim resolver against the public instance.
func NewNominatim() *Nominatim {
	return &Nominatim{
		HTTP:      &http.Client{Timeout: 15 * time.Second},
		BaseURL:   DefaultBaseURL,
		UserAgent: DefaultUserAgent,
	}
}

// searchResult is one entry of a Nominatim search response. Coordinates
// come back as strings.
type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve returns the coordinates of the best match for city. An empty
// result is reported as errors.LocationNotFound.
func (n *Nominatim) Resolve(ctx context.Context, city string) (Coordinates, error) {
	const op errors.Op = "geocode.Resolve"

	q := url.Values{}
	q.Set("q", city)
	q.Set("format", "json")
	q.Set("limit", "1")
	endpoint := strings.TrimSuffix(n.BaseURL, "/") + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return Coordinates{}, errors.E(op, errors.Loc(city), errors.RemoteFetch, err)
	}
	req.Header.Set("User-Agent", n.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.HTTP.Do(req)
	if err != nil {
		return Coordinates{}, errors.E(op, errors.Loc(city), errors.RemoteFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, errors.E(op, errors.Loc(city), errors.RemoteFetch, fmt.Sprintf("geocoder returned HTTP %d", resp.StatusCode))
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Coordinates{}, errors.E(op, errors.Loc(city), errors.RemoteFetch, fmt.Errorf("failed to decode geocoder response: %w", err))
	}
	if len(results) == 0 {
		return Coordinates{}, errors.E(op, errors.Loc(city), errors.LocationNotFound)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Coordinates{}, errors.E(op, errors.Loc(city), errors.RemoteFetch, fmt.Errorf("bad latitude %q: %w", results[0].Lat, err))
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Coordinates{}, errors.E(op, errors.Loc(city), errors.RemoteFetch, fmt.Errorf("bad longitude %q: %w", results[0].Lon, err))
	}

	log.FromContext(ctx).Debug("resolved location",
		zap.String("city", city),
		zap.String("match", results[0].DisplayName),
		zap.Float64("lat", lat),
		zap.Float64("lon", lon))

	return Coordinates{Latitude: lat, Longitude: lon}, nil
}
