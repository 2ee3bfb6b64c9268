// Package session owns the process-wide authentication state and fans every
// change out to subscribers, whether the change was made in this process or
// arrived through the shared credential store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var ErrEmptyCredential = errors.New("credential is empty")

type State int

const (
	StateUnknown State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Event describes one transition. Redirect is set when the transition was
// forced by a rejected request and the caller should return to the entry screen.
type Event struct {
	State    State  `json:"state"`
	Origin   Origin `json:"origin"`
	Redirect bool   `json:"redirect"`
}

type Observer func(Event)

type Snapshot struct {
	State         State  `json:"state"`
	Authenticated bool   `json:"authenticated"`
	Resolved      bool   `json:"resolved"`
	Token         string `json:"-"`
}

type Broadcaster struct {
	store  CredentialStore
	logger *zap.Logger

	mu        sync.Mutex
	state     State
	token     string
	observers map[uint64]Observer
	nextID    uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBroadcaster(store CredentialStore, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		store:     store,
		logger:    logger,
		observers: make(map[uint64]Observer),
	}
}

// Start listens for credential changes written by other processes until
// Close is called or ctx is done.
func (b *Broadcaster) Start(ctx context.Context) {
	b.mu.Lock()
	if b.cancel != nil {
		b.mu.Unlock()
		return
	}
	watchCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.store.Watch(watchCtx, func() { b.remoteChanged(watchCtx) }); err != nil {
			b.logger.Error("credential watch stopped", zap.Error(err))
		}
	}()
}

func (b *Broadcaster) Close() {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
}

// Subscribe registers obs for every later transition. There is no replay:
// a new subscriber reads the current state itself.
func (b *Broadcaster) Subscribe(obs Observer) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.observers[id] = obs
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.observers, id)
			b.mu.Unlock()
		})
	}
}

func (b *Broadcaster) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:         b.state,
		Authenticated: b.state == StateAuthenticated,
		Resolved:      b.state != StateUnknown,
		Token:         b.token,
	}
}

func (b *Broadcaster) State() State {
	return b.Snapshot().State
}

// Token returns the credential for outgoing requests, empty when signed out.
func (b *Broadcaster) Token() string {
	return b.Snapshot().Token
}

// CheckStatus re-derives the state from the persisted credential. A blank
// credential is removed from the store. Observers hear about it only when
// the state actually changes.
func (b *Broadcaster) CheckStatus(ctx context.Context) State {
	token, err := b.store.Load(ctx)
	if err != nil {
		b.logger.Warn("load credential failed", zap.Error(err))
		token = ""
	}

	if strings.TrimSpace(token) == "" {
		token = ""
		if err == nil {
			if clearErr := b.store.Clear(ctx); clearErr != nil {
				b.logger.Warn("clear stale credential failed", zap.Error(clearErr))
			}
		}
	}

	next := derive(token)
	changed := b.set(next, token)
	if changed {
		b.notify(Event{State: next, Origin: OriginLocal})
	}
	return next
}

func (b *Broadcaster) Login(ctx context.Context, credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return ErrEmptyCredential
	}
	if err := b.store.Save(ctx, credential); err != nil {
		return fmt.Errorf("persist credential failed: %w", err)
	}
	b.set(StateAuthenticated, credential)
	b.logger.Info("session authenticated")
	b.notify(Event{State: StateAuthenticated, Origin: OriginLocal})
	return nil
}

// Logout always ends in the unauthenticated state, even when the store
// could not be cleared; that error is still returned.
func (b *Broadcaster) Logout(ctx context.Context) error {
	return b.signOut(ctx, false)
}

// OnUnauthorizedResponse is Logout for a request the server rejected; the
// event asks subscribers to go back to the entry screen.
func (b *Broadcaster) OnUnauthorizedResponse(ctx context.Context) {
	if err := b.signOut(ctx, true); err != nil {
		b.logger.Warn("clear credential after unauthorized response failed", zap.Error(err))
	}
}

func (b *Broadcaster) signOut(ctx context.Context, redirect bool) error {
	clearErr := b.store.Clear(ctx)
	b.set(StateUnauthenticated, "")
	if redirect {
		b.logger.Info("session rejected by server, signed out")
	} else {
		b.logger.Info("session signed out")
	}
	b.notify(Event{State: StateUnauthenticated, Origin: OriginLocal, Redirect: redirect})
	if clearErr != nil {
		return fmt.Errorf("clear credential failed: %w", clearErr)
	}
	return nil
}

func (b *Broadcaster) remoteChanged(ctx context.Context) {
	token, err := b.store.Load(ctx)
	if err != nil {
		b.logger.Warn("load credential after remote change failed", zap.Error(err))
		return
	}
	if strings.TrimSpace(token) == "" {
		token = ""
	}

	b.mu.Lock()
	prevState, prevToken := b.state, b.token
	b.mu.Unlock()

	next := derive(token)
	if next == prevState && token == prevToken {
		return
	}
	b.set(next, token)
	b.logger.Debug("session changed by another client", zap.Stringer("state", next))
	b.notify(Event{State: next, Origin: OriginRemote})
}

func (b *Broadcaster) set(state State, token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	changed := b.state != state
	b.state = state
	b.token = token
	return changed
}

func (b *Broadcaster) notify(ev Event) {
	b.mu.Lock()
	ids := make([]uint64, 0, len(b.observers))
	for id := range b.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, b.observers[id])
	}
	b.mu.Unlock()

	for _, obs := range observers {
		obs(ev)
	}
}

func derive(token string) State {
	if strings.TrimSpace(token) != "" {
		return StateAuthenticated
	}
	return StateUnauthenticated
}
