package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/pkg/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorderNeverBlocks(t *testing.T) {
	recorder := NewRecorder(2, discardLogger())

	testutil.Given(t, "an inbox that is already full", func(t *testing.T) {
		require.NoError(t, recorder.Emit(context.Background(), Event{SessionID: "s1", Action: "a"}))
		require.NoError(t, recorder.Emit(context.Background(), Event{SessionID: "s1", Action: "b"}))

		testutil.When(t, "another event is emitted", func(t *testing.T) {
			done := make(chan error, 1)
			go func() {
				done <- recorder.Emit(context.Background(), Event{SessionID: "s1", Action: "c"})
			}()

			testutil.Then(t, "emit returns without blocking and the overflow is dropped", func(t *testing.T) {
				select {
				case err := <-done:
					assert.NoError(t, err)
				case <-time.After(time.Second):
					t.Fatal("Emit blocked on a full inbox")
				}
				assert.Len(t, recorder.Inbox(), 2)
			})
		})
	})
}

func TestWorkerForwardsToSink(t *testing.T) {
	store := NewInMemoryStore()
	sink := NewStorePublisher(store)
	recorder := NewRecorder(16, discardLogger())
	worker := NewWorker(sink, recorder.Inbox(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() { finished <- worker.Run(ctx) }()

	require.NoError(t, recorder.Emit(ctx, Event{SessionID: "s1", Action: EventSessionCreated}))
	require.NoError(t, recorder.Emit(ctx, Event{SessionID: "s1", Action: EventCodeIssued}))

	assert.Eventually(t, func() bool {
		events, err := store.ListBySession(context.Background(), "s1")
		return err == nil && len(events) == 2
	}, time.Second, 5*time.Millisecond)

	events, err := store.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, EventSessionCreated, events[0].Action)
	assert.Equal(t, EventCodeIssued, events[1].Action)
	assert.False(t, events[0].Timestamp.IsZero(), "sink stamps events without a timestamp")

	cancel()
	select {
	case err := <-finished:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

type failingSink struct{ calls int }

func (s *failingSink) Emit(context.Context, Event) error {
	s.calls++
	return errors.New("sink down")
}

func TestWorkerSurvivesSinkFailures(t *testing.T) {
	sink := &failingSink{}
	recorder := NewRecorder(16, discardLogger())
	worker := NewWorker(sink, recorder.Inbox(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	require.NoError(t, recorder.Emit(ctx, Event{SessionID: "s1", Action: "a"}))
	require.NoError(t, recorder.Emit(ctx, Event{SessionID: "s1", Action: "b"}))

	assert.Eventually(t, func() bool { return sink.calls == 2 }, time.Second, 5*time.Millisecond)
}
