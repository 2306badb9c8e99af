package events

import (
	"errors"
	"testing"

	goevents "github.com/docker/go-events"
	"github.com/stretchr/testify/require"
)

func TestNopSinkDiscards(t *testing.T) {
	var s Sink = NopSink{}
	require.NoError(t, s.Write(Published(ActionAdded, "sha256new_abc", "/store")))
	require.NoError(t, s.Close())
}

func TestPublishedEventFields(t *testing.T) {
	ev := Published(ActionAdded, "sha256new_abc", "/store")
	require.Equal(t, ActionAdded, ev.Action)
	require.Equal(t, "sha256new_abc", ev.Digest)
	require.Equal(t, "/store", ev.StorePath)
	require.Empty(t, ev.Err)
	require.False(t, ev.Timestamp.IsZero())
}

func TestFailedEventCarriesErrorMessage(t *testing.T) {
	ev := Failed(ActionVerifyFailed, "sha256new_abc", "/store", errors.New("digest mismatch"))
	require.Equal(t, ActionVerifyFailed, ev.Action)
	require.Equal(t, "digest mismatch", ev.Err)
}

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Write(ev goevents.Event) error {
	r.events = append(r.events, ev.(Event))
	return nil
}

func (r *recordingSink) Close() error { return nil }

func TestSinkRecordsWrites(t *testing.T) {
	sink := &recordingSink{}
	var s Sink = sink
	require.NoError(t, s.Write(Published(ActionRemoved, "sha1new=deadbeef", "/store")))
	require.Len(t, sink.events, 1)
	require.Equal(t, ActionRemoved, sink.events[0].Action)
}
