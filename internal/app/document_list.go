package app

import (
	"sync"

	"docqa-client/internal/model"
)

// DocumentList is the caller-visible document collection, newest first.
// Watchers see it as a sequence of snapshots; a slow watcher only misses
// intermediate snapshots, never the latest one.
type DocumentList struct {
	mu       sync.Mutex
	docs     []model.Document
	watchers map[chan []model.Document]struct{}
}

func NewDocumentList() *DocumentList {
	return &DocumentList{watchers: make(map[chan []model.Document]struct{})}
}

func (l *DocumentList) Snapshot() []model.Document {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *DocumentList) Get(id uint) (model.Document, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexLocked(id); i >= 0 {
		return l.docs[i], true
	}
	return model.Document{}, false
}

// Prepend puts doc at the head of the list, replacing an older copy.
func (l *DocumentList) Prepend(doc model.Document) {
	l.mu.Lock()
	if i := l.indexLocked(doc.ID); i >= 0 {
		l.docs = append(l.docs[:i], l.docs[i+1:]...)
	}
	l.docs = append([]model.Document{doc}, l.docs...)
	l.broadcastLocked()
	l.mu.Unlock()
}

func (l *DocumentList) Remove(id uint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(id)
	if i < 0 {
		return false
	}
	l.docs = append(l.docs[:i], l.docs[i+1:]...)
	l.broadcastLocked()
	return true
}

// Apply merges a polled status into the matching document. Documents that
// already finished keep their values.
func (l *DocumentList) Apply(u model.StatusUpdate) (model.Document, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(u.DocumentID)
	if i < 0 {
		return model.Document{}, false
	}
	if l.docs[i].ApplyStatus(u.Status) {
		l.broadcastLocked()
	}
	return l.docs[i], true
}

// Reconcile replaces the list with the canonical server list. A local copy
// that already reached done or failed wins over a server copy still active,
// so a document never moves back to active. It returns the IDs that were
// dropped because the server no longer has them.
func (l *DocumentList) Reconcile(canonical []model.Document) []uint {
	l.mu.Lock()
	defer l.mu.Unlock()

	local := make(map[uint]model.Document, len(l.docs))
	for _, doc := range l.docs {
		local[doc.ID] = doc
	}

	merged := make([]model.Document, 0, len(canonical))
	for _, doc := range canonical {
		if prev, ok := local[doc.ID]; ok {
			if prev.Phase() != model.PhaseActive && doc.Phase() == model.PhaseActive {
				doc.Processed = prev.Processed
				doc.ProcessingStatus = prev.ProcessingStatus
				doc.ProcessingProgress = prev.ProcessingProgress
			}
			delete(local, doc.ID)
		}
		merged = append(merged, doc)
	}

	dropped := make([]uint, 0, len(local))
	for id := range local {
		dropped = append(dropped, id)
	}
	l.docs = merged
	l.broadcastLocked()
	return dropped
}

// Watch returns a channel that first yields the current snapshot and then
// the latest snapshot after every change. The stop function closes it.
func (l *DocumentList) Watch() (<-chan []model.Document, func()) {
	ch := make(chan []model.Document, 1)
	l.mu.Lock()
	l.watchers[ch] = struct{}{}
	ch <- l.snapshotLocked()
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.watchers, ch)
			close(ch)
			l.mu.Unlock()
		})
	}
}

func (l *DocumentList) broadcastLocked() {
	for ch := range l.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- l.snapshotLocked()
	}
}

func (l *DocumentList) snapshotLocked() []model.Document {
	out := make([]model.Document, len(l.docs))
	copy(out, l.docs)
	return out
}

func (l *DocumentList) indexLocked(id uint) int {
	for i := range l.docs {
		if l.docs[i].ID == id {
			return i
		}
	}
	return -1
}
