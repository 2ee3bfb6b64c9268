package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-client/internal/model"
)

func TestApplyNeverRegressesFinishedDocument(t *testing.T) {
	l := NewDocumentList()
	l.Prepend(model.Document{ID: 1, Processed: true})
	l.Prepend(model.Document{ID: 2, ProcessingStatus: model.StatusError})

	doc, ok := l.Apply(model.StatusUpdate{DocumentID: 1, Status: model.JobStatus{ProcessingStatus: model.StatusProcessing, ProcessingProgress: model.IntPtr(10)}})
	require.True(t, ok)
	assert.True(t, doc.Processed)

	doc, _ = l.Apply(model.StatusUpdate{DocumentID: 2, Status: model.JobStatus{Processed: true}})
	assert.Equal(t, model.PhaseFailed, doc.Phase())

	_, ok = l.Apply(model.StatusUpdate{DocumentID: 9})
	assert.False(t, ok)
}

func TestReconcileKeepsLocalTerminalState(t *testing.T) {
	l := NewDocumentList()
	l.Prepend(model.Document{ID: 1, Filename: "a.pdf", Processed: true})
	l.Prepend(model.Document{ID: 2, Filename: "gone.pdf", ProcessingStatus: model.StatusPending})

	dropped := l.Reconcile([]model.Document{
		{ID: 3, Filename: "new.pdf", ProcessingStatus: model.StatusPending},
		{ID: 1, Filename: "a-renamed.pdf", ProcessingStatus: model.StatusProcessing, ProcessingProgress: model.IntPtr(90)},
	})

	assert.Equal(t, []uint{2}, dropped)
	docs := l.Snapshot()
	require.Len(t, docs, 2)
	assert.Equal(t, uint(3), docs[0].ID)
	assert.Equal(t, "a-renamed.pdf", docs[1].Filename)
	assert.Equal(t, model.PhaseDone, docs[1].Phase())
}

func TestWatchYieldsLatestSnapshot(t *testing.T) {
	l := NewDocumentList()
	snapshots, stop := l.Watch()

	assert.Empty(t, <-snapshots)

	l.Prepend(model.Document{ID: 1})
	l.Prepend(model.Document{ID: 2})
	l.Remove(1)

	latest := <-snapshots
	require.Len(t, latest, 1)
	assert.Equal(t, uint(2), latest[0].ID)

	stop()
	stop()
	_, open := <-snapshots
	assert.False(t, open)
}
