package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func watching(b *MemoryBackend) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, chans := range b.watchers {
		n += len(chans)
	}
	return n
}

func TestCheckStatusStartsUnknown(t *testing.T) {
	b := NewBroadcaster(NewMemoryBackend().Store(), nil)

	snap := b.Snapshot()
	assert.Equal(t, StateUnknown, snap.State)
	assert.False(t, snap.Resolved)

	assert.Equal(t, StateUnauthenticated, b.CheckStatus(context.Background()))
	snap = b.Snapshot()
	assert.True(t, snap.Resolved)
	assert.False(t, snap.Authenticated)
}

func TestCheckStatusClearsBlankCredential(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBackend().Store()
	require.NoError(t, store.Save(ctx, "   "))

	b := NewBroadcaster(store, nil)

	assert.Equal(t, StateUnauthenticated, b.CheckStatus(ctx))
	value, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestCheckStatusIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBackend().Store()
	require.NoError(t, store.Save(ctx, "abc"))
	b := NewBroadcaster(store, nil)
	rec := &recorder{}
	b.Subscribe(rec.observe)

	for i := 0; i < 3; i++ {
		assert.Equal(t, StateAuthenticated, b.CheckStatus(ctx))
	}
	assert.Len(t, rec.all(), 1)
	assert.Equal(t, "abc", b.Token())
}

func TestLoginThenCheckStatus(t *testing.T) {
	ctx := context.Background()
	b := NewBroadcaster(NewMemoryBackend().Store(), nil)
	rec := &recorder{}
	b.Subscribe(rec.observe)

	require.NoError(t, b.Login(ctx, "abc"))

	assert.Equal(t, StateAuthenticated, b.CheckStatus(ctx))
	assert.Equal(t, []Event{{State: StateAuthenticated, Origin: OriginLocal}}, rec.all())
}

func TestLoginRejectsEmptyCredential(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBackend().Store()
	b := NewBroadcaster(store, nil)
	rec := &recorder{}
	b.Subscribe(rec.observe)

	for _, cred := range []string{"", "  ", "\n\t"} {
		assert.ErrorIs(t, b.Login(ctx, cred), ErrEmptyCredential)
	}
	assert.Empty(t, rec.all())
	assert.Equal(t, StateUnknown, b.State())
}

func TestLogoutFromEveryState(t *testing.T) {
	ctx := context.Background()
	setups := map[string]func(b *Broadcaster){
		"unknown": func(*Broadcaster) {},
		"authenticated": func(b *Broadcaster) {
			require.NoError(t, b.Login(ctx, "abc"))
		},
		"unauthenticated": func(b *Broadcaster) {
			b.CheckStatus(ctx)
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			store := NewMemoryBackend().Store()
			b := NewBroadcaster(store, nil)
			setup(b)

			require.NoError(t, b.Logout(ctx))

			assert.Equal(t, StateUnauthenticated, b.CheckStatus(ctx))
			value, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, value)
		})
	}
}

func TestLogoutTwiceNotifiesSameState(t *testing.T) {
	ctx := context.Background()
	b := NewBroadcaster(NewMemoryBackend().Store(), nil)
	require.NoError(t, b.Login(ctx, "abc"))
	rec := &recorder{}
	b.Subscribe(rec.observe)

	require.NoError(t, b.Logout(ctx))
	require.NoError(t, b.Logout(ctx))

	want := Event{State: StateUnauthenticated, Origin: OriginLocal}
	assert.Equal(t, []Event{want, want}, rec.all())
	assert.Equal(t, StateUnauthenticated, b.State())
}

func TestUnauthorizedResponseRedirects(t *testing.T) {
	ctx := context.Background()
	b := NewBroadcaster(NewMemoryBackend().Store(), nil)
	require.NoError(t, b.Login(ctx, "abc"))
	rec := &recorder{}
	b.Subscribe(rec.observe)

	b.OnUnauthorizedResponse(ctx)

	assert.Equal(t, []Event{{State: StateUnauthenticated, Origin: OriginLocal, Redirect: true}}, rec.all())
	assert.Empty(t, b.Token())
}

func TestObserversNotifiedOncePerTransition(t *testing.T) {
	ctx := context.Background()
	b := NewBroadcaster(NewMemoryBackend().Store(), nil)
	first, second, late := &recorder{}, &recorder{}, &recorder{}
	b.Subscribe(first.observe)
	unsubscribe := b.Subscribe(second.observe)

	require.NoError(t, b.Login(ctx, "abc"))
	unsubscribe()
	unsubscribe()
	b.Subscribe(late.observe)
	require.NoError(t, b.Logout(ctx))

	assert.Len(t, first.all(), 2)
	assert.Len(t, second.all(), 1)
	assert.Equal(t, []Event{{State: StateUnauthenticated, Origin: OriginLocal}}, late.all())
}

func TestObserverSeesStateDuringNotification(t *testing.T) {
	ctx := context.Background()
	b := NewBroadcaster(NewMemoryBackend().Store(), nil)
	var seen State
	b.Subscribe(func(Event) { seen = b.State() })

	require.NoError(t, b.Login(ctx, "abc"))

	assert.Equal(t, StateAuthenticated, seen)
}

func TestCrossClientPropagation(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	backend := NewMemoryBackend()
	tabA := NewBroadcaster(backend.Store(), nil)
	tabB := NewBroadcaster(backend.Store(), nil)
	tabA.CheckStatus(ctx)
	tabB.CheckStatus(ctx)

	recA, recB := &recorder{}, &recorder{}
	tabA.Subscribe(recA.observe)
	tabB.Subscribe(recB.observe)
	tabA.Start(ctx)
	tabB.Start(ctx)
	defer tabA.Close()
	defer tabB.Close()
	require.Eventually(t, func() bool { return watching(backend) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, tabA.Login(ctx, "abc"))

	require.Eventually(t, func() bool { return tabB.State() == StateAuthenticated }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "abc", tabB.Token())
	assert.Equal(t, []Event{{State: StateAuthenticated, Origin: OriginRemote}}, recB.all())

	tabB.OnUnauthorizedResponse(ctx)

	require.Eventually(t, func() bool { return tabA.State() == StateUnauthenticated }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Event{
		{State: StateAuthenticated, Origin: OriginLocal},
		{State: StateUnauthenticated, Origin: OriginRemote},
	}, recA.all())
}
