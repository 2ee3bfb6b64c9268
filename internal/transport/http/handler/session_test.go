package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-client/internal/session"
)

func TestEventQueueKeepsEveryTransitionInOrder(t *testing.T) {
	q := newEventQueue(maxPendingSessionEvents)
	states := []session.State{session.StateAuthenticated, session.StateUnauthenticated, session.StateAuthenticated}
	for i := 0; i < 10; i++ {
		q.push(session.Event{State: states[i%len(states)], Origin: session.OriginRemote})
	}

	require.Len(t, q.ready, 1)
	<-q.ready
	events, overflowed := q.drain()

	assert.False(t, overflowed)
	require.Len(t, events, 10)
	for i, ev := range events {
		assert.Equal(t, states[i%len(states)], ev.State)
	}
	events, _ = q.drain()
	assert.Empty(t, events)
}

func TestEventQueueReportsOverflow(t *testing.T) {
	q := newEventQueue(2)
	q.push(session.Event{State: session.StateAuthenticated})
	q.push(session.Event{State: session.StateUnauthenticated})
	q.push(session.Event{State: session.StateAuthenticated})

	events, overflowed := q.drain()

	assert.True(t, overflowed)
	assert.Len(t, events, 2)
}
