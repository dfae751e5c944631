package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestE_PullsUpKind(t *testing.T) {
	inner := E(Op("wizkids.decode"), RemoteFetch, "missing results key")
	outer := E(Op("sync.SyncLocation"), Loc("portland"), inner)

	assert.True(t, Is(RemoteFetch, outer))
	assert.False(t, Is(Auth, outer))
	assert.Equal(t, RemoteFetch, KindOf(outer))
}

func TestError_Message(t *testing.T) {
	err := E(Op("geocode.Resolve"), Loc("atlantis"), LocationNotFound)
	assert.Equal(t, "geocode.Resolve, location atlantis: location not found", err.Error())

	wrapped := E(Op("wizkids.Fetch"), RemoteFetch, io.ErrUnexpectedEOF)
	assert.Equal(t, "wizkids.Fetch: remote fetch failed: unexpected EOF", wrapped.Error())
}

func TestError_NoDuplicateKind(t *testing.T) {
	inner := E(Op("calendar.InsertEvent"), CalendarAPI, "boom")
	outer := E(Op("sync.CreateEvent"), CalendarAPI, inner)
	assert.Equal(t, "sync.CreateEvent: calendar api error: calendar.InsertEvent: boom", outer.Error())
}

func TestError_UnwrapThroughStdlib(t *testing.T) {
	err := E(Op("wizkids.Fetch"), RemoteFetch, io.EOF)
	assert.True(t, stderrors.Is(err, io.EOF))

	wrapped := fmt.Errorf("context: %w", err)
	assert.True(t, Is(RemoteFetch, wrapped))
}

func TestIs_Nil(t *testing.T) {
	assert.False(t, Is(Auth, nil))
	assert.Equal(t, Other, KindOf(nil))
	assert.Equal(t, Other, KindOf(io.EOF))
}

func TestMatch(t *testing.T) {
	got := E(Op("sync.CreateEvent"), DateParse, "bad layout")
	assert.True(t, Match(E(DateParse), got))
	assert.True(t, Match(E(Op("sync.CreateEvent"), DateParse), got))
	assert.False(t, Match(E(Op("sync.Other")), got))
	assert.False(t, Match(io.EOF, got))
}
