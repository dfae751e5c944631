package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beekhof/eventsync/internal/errors"
)

func newTestResolver(t *testing.T, h http.HandlerFunc) *Nominatim {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return &Nominatim{HTTP: server.Client(), BaseURL: server.URL, UserAgent: "test-agent"}
}

func TestResolve(t *testing.T) {
	n := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "portland", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"lat":"45.5202471","lon":"-122.674194","display_name":"Portland, Oregon"}]`))
	})

	got, err := n.Resolve(context.Background(), "portland")
	require.NoError(t, err)
	assert.InDelta(t, 45.5202471, got.Latitude, 1e-9)
	assert.InDelta(t, -122.674194, got.Longitude, 1e-9)
}

func TestResolve_NoMatch(t *testing.T) {
	n := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := n.Resolve(context.Background(), "atlantis")
	require.Error(t, err)
	assert.True(t, errors.Is(errors.LocationNotFound, err), "got %v", err)
}

func TestResolve_BadStatus(t *testing.T) {
	n := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := n.Resolve(context.Background(), "portland")
	assert.True(t, errors.Is(errors.RemoteFetch, err), "got %v", err)
}

func TestResolve_BadCoordinates(t *testing.T) {
	n := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat":"north","lon":"0"}]`))
	})

	_, err := n.Resolve(context.Background(), "portland")
	assert.True(t, errors.Is(errors.RemoteFetch, err), "got %v", err)
}
