// Package poller tracks server-side processing jobs and polls their status on
// one shared timer until each reaches a terminal state.
package poller

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docqa-client/internal/model"
)

const DefaultInterval = 2 * time.Second

type StatusFetcher interface {
	DocumentStatus(ctx context.Context, id uint) (model.JobStatus, error)
}

// Listener receives every merged status. It runs on the polling goroutine and
// must not block for long.
type Listener func(model.StatusUpdate)

type Option func(*Poller)

// WithConcurrency caps the number of status fetches in flight within one round.
func WithConcurrency(n int) Option {
	return func(p *Poller) { p.concurrency = n }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) { p.logger = logger }
}

type Poller struct {
	fetcher     StatusFetcher
	interval    time.Duration
	concurrency int
	logger      *zap.Logger

	mu        sync.Mutex
	jobs      map[uint]*model.ProcessingJob
	listeners map[uint64]Listener
	nextID    uint64
	stop      chan struct{}
	closed    bool

	wg sync.WaitGroup
}

func New(fetcher StatusFetcher, interval time.Duration, opts ...Option) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{
		fetcher:   fetcher,
		interval:  interval,
		logger:    zap.NewNop(),
		jobs:      make(map[uint]*model.ProcessingJob),
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register starts tracking doc unless it is already done, failed or tracked.
// The first tracked job starts the timer.
func (p *Poller) Register(doc model.Document) bool {
	if doc.Phase() != model.PhaseActive {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if _, ok := p.jobs[doc.ID]; ok {
		return false
	}
	p.jobs[doc.ID] = &model.ProcessingJob{
		DocumentID: doc.ID,
		Status:     doc.Status(),
		UpdatedAt:  time.Now(),
	}
	p.logger.Debug("tracking document", zap.Uint("document_id", doc.ID))
	p.startTimerLocked()
	return true
}

// Unregister stops tracking id, for documents deleted by the user. The timer
// stops when nothing is left to track.
func (p *Poller) Unregister(id uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.jobs[id]; !ok {
		return false
	}
	delete(p.jobs, id)
	if len(p.jobs) == 0 {
		p.stopTimerLocked()
	}
	return true
}

func (p *Poller) Subscribe(l Listener) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = l
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// Tracked returns a copy of the tracked set ordered by document ID.
func (p *Poller) Tracked() []model.ProcessingJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.ProcessingJob, 0, len(p.jobs))
	for _, job := range p.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}

// Running reports whether the shared timer is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

type fetched struct {
	id     uint
	status model.JobStatus
}

// Tick runs one polling round: one fetch per tracked job, all issued
// concurrently. A failed fetch leaves that job untouched. Terminal jobs are
// retired once every fetch of the round has finished.
func (p *Poller) Tick(ctx context.Context) {
	ids := p.trackedIDs()
	if len(ids) == 0 {
		return
	}

	results := make([]*fetched, len(ids))
	var g errgroup.Group
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			st, err := p.fetcher.DocumentStatus(ctx, id)
			if err != nil {
				p.logger.Warn("fetch document status failed", zap.Uint("document_id", id), zap.Error(err))
				return nil
			}
			results[i] = &fetched{id: id, status: st}
			return nil
		})
	}
	_ = g.Wait()

	updates := p.merge(results)
	for _, u := range updates {
		p.publish(u)
	}
}

func (p *Poller) merge(results []*fetched) []model.StatusUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	updates := make([]model.StatusUpdate, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		job, ok := p.jobs[r.id]
		if !ok {
			// Retired or torn down while the fetch was in flight.
			continue
		}
		job.Status = r.status
		job.UpdatedAt = now

		update := model.StatusUpdate{DocumentID: r.id, Status: r.status}
		if r.status.Terminal() {
			delete(p.jobs, r.id)
			update.Retired = true
			p.logger.Info("document processing finished",
				zap.Uint("document_id", r.id),
				zap.String("phase", string(r.status.Phase())))
		}
		updates = append(updates, update)
	}

	if len(p.jobs) == 0 {
		p.stopTimerLocked()
	}
	return updates
}

func (p *Poller) publish(u model.StatusUpdate) {
	p.mu.Lock()
	ids := make([]uint64, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, p.listeners[id])
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(u)
	}
}

// Close stops the timer and forgets every tracked job. In-flight fetches are
// left to finish; their results are dropped.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	p.stopTimerLocked()
	p.jobs = make(map[uint]*model.ProcessingJob)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) trackedIDs() []uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]uint, 0, len(p.jobs))
	for id := range p.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *Poller) startTimerLocked() {
	if p.stop != nil {
		return
	}
	stop := make(chan struct{})
	p.stop = stop
	p.wg.Add(1)
	go p.loop(stop)
}

func (p *Poller) stopTimerLocked() {
	if p.stop == nil {
		return
	}
	close(p.stop)
	p.stop = nil
}

// loop fires a round every interval without waiting for the previous round,
// so rounds overlap when fetches are slower than the interval.
func (p *Poller) loop(stop <-chan struct{}) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.Tick(context.Background())
			}()
		}
	}
}
