package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"docqa-client/internal/api"
	"docqa-client/internal/model"
	"docqa-client/internal/poller"
)

func newDocumentFixture(t *testing.T) (*DocumentService, *fakeBackend, *poller.Poller, *memoryEvents) {
	t.Helper()
	backend := newFakeBackend()
	p := poller.New(backend, time.Hour)
	events := &memoryEvents{}
	svc := NewDocumentService(backend, p, NewDirectPublisher(events), nil)
	t.Cleanup(func() {
		svc.Close()
		p.Close()
	})
	return svc, backend, p, events
}

func TestUploadTrackProcessToCompletion(t *testing.T) {
	ctx := context.Background()
	svc, backend, p, events := newDocumentFixture(t)

	uploaded, err := svc.Upload(ctx, []UploadInput{{Name: "notes.txt", Data: []byte("hello world")}})
	require.NoError(t, err)
	require.Len(t, uploaded, 1)
	doc := uploaded[0]
	assert.False(t, doc.Processed)
	require.NotNil(t, doc.ProcessingProgress)
	assert.Equal(t, 0, *doc.ProcessingProgress)
	assert.Equal(t, "text/plain", doc.ContentType)
	assert.Len(t, p.Tracked(), 1)

	backend.statuses[doc.ID] = []model.JobStatus{
		{ProcessingStatus: model.StatusProcessing, ProcessingProgress: model.IntPtr(50)},
		{Processed: true, ProcessingProgress: model.IntPtr(100)},
	}

	p.Tick(ctx)
	current, ok := svc.list.Get(doc.ID)
	require.True(t, ok)
	assert.Equal(t, 50, current.Status().Progress())

	p.Tick(ctx)
	current, ok = svc.list.Get(doc.ID)
	require.True(t, ok)
	assert.True(t, current.Processed)
	assert.Equal(t, model.PhaseDone, current.Phase())
	assert.Empty(t, p.Tracked())

	require.Len(t, events.events, 1)
	assert.Equal(t, model.PhaseDone, events.events[0].Phase)
	assert.Equal(t, "notes.txt", events.events[0].Filename)
	assert.Equal(t, 100, events.events[0].Progress)
}

func TestUploadValidationNeverReachesNetwork(t *testing.T) {
	ctx := context.Background()
	svc, backend, _, _ := newDocumentFixture(t)

	tests := []struct {
		name  string
		files []UploadInput
	}{
		{name: "empty batch"},
		{name: "too many", files: []UploadInput{
			{Name: "1.txt", Data: []byte("a")}, {Name: "2.txt", Data: []byte("a")}, {Name: "3.txt", Data: []byte("a")},
			{Name: "4.txt", Data: []byte("a")}, {Name: "5.txt", Data: []byte("a")}, {Name: "6.txt", Data: []byte("a")},
		}},
		{name: "wrong type", files: []UploadInput{{Name: "image.png", Data: []byte("png")}}},
		{name: "one bad file rejects batch", files: []UploadInput{{Name: "ok.txt", Data: []byte("a")}, {Name: "bad.docx", Data: []byte("a")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.files)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, backend.uploads)
}

func TestUploadLeavesContentChecksToServer(t *testing.T) {
	backend := newFakeBackend()
	p := poller.New(backend, time.Hour)
	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewDocumentService(backend, p, nil, zap.New(core))
	t.Cleanup(func() {
		svc.Close()
		p.Close()
	})

	big := make([]byte, 11<<20)
	uploaded, err := svc.Upload(context.Background(), []UploadInput{
		{Name: "big.txt", Data: big},
		{Name: "empty.txt"},
		{Name: "scanned.pdf", Data: []byte("not a pdf")},
	})

	require.NoError(t, err)
	assert.Len(t, uploaded, 3)
	assert.Equal(t, []string{"big.txt", "empty.txt", "scanned.pdf"}, backend.uploads)
	warned := logs.FilterField(zap.String("filename", "scanned.pdf")).All()
	require.Len(t, warned, 1)
	assert.Equal(t, "pdf does not parse locally", warned[0].Message)
}

func TestUploadStopsAtFirstFailure(t *testing.T) {
	svc, backend, _, _ := newDocumentFixture(t)
	backend.err = &api.DomainError{Status: 400, Detail: "Only PDF and TXT files are supported"}

	uploaded, err := svc.Upload(context.Background(), []UploadInput{{Name: "a.txt", Data: []byte("a")}})

	var domainErr *api.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Empty(t, uploaded)
	assert.Empty(t, svc.Documents())
}

func TestUploadPathsReadsFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o600))
	svc, backend, _, _ := newDocumentFixture(t)

	docs, err := svc.UploadPaths(context.Background(), []string{path})

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []string{"guide.txt"}, backend.uploads)

	_, err = svc.UploadPaths(context.Background(), []string{filepath.Join(dir, "missing.txt")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRefreshTracksActiveAndDropsDeleted(t *testing.T) {
	ctx := context.Background()
	svc, backend, p, _ := newDocumentFixture(t)
	backend.docs[1] = model.Document{ID: 1, Filename: "done.pdf", Processed: true}
	backend.docs[2] = model.Document{ID: 2, Filename: "busy.pdf", ProcessingStatus: model.StatusProcessing, ProcessingProgress: model.IntPtr(10)}
	backend.nextID = 3

	docs, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	tracked := p.Tracked()
	require.Len(t, tracked, 1)
	assert.Equal(t, uint(2), tracked[0].DocumentID)

	delete(backend.docs, 2)
	docs, err = svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Empty(t, p.Tracked())
	assert.False(t, p.Running())
}

func TestDeleteRemovesLocallyAndStopsTracking(t *testing.T) {
	ctx := context.Background()
	svc, backend, p, _ := newDocumentFixture(t)
	uploaded, err := svc.Upload(ctx, []UploadInput{{Name: "a.txt", Data: []byte("a")}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, uploaded[0].ID))

	assert.Empty(t, svc.Documents())
	assert.Empty(t, p.Tracked())
	assert.Equal(t, []uint{uploaded[0].ID}, backend.deleted)
	assert.ErrorIs(t, svc.Delete(ctx, 0), ErrInvalidInput)
}

func TestGetKeepsFinishedLocalCopy(t *testing.T) {
	ctx := context.Background()
	svc, backend, p, _ := newDocumentFixture(t)
	uploaded, err := svc.Upload(ctx, []UploadInput{{Name: "a.txt", Data: []byte("a")}})
	require.NoError(t, err)
	id := uploaded[0].ID
	backend.statuses[id] = []model.JobStatus{{Processed: true, ProcessingProgress: model.IntPtr(100)}}
	p.Tick(ctx)

	backend.docs[id] = model.Document{ID: id, Filename: "a.txt", ProcessingStatus: model.StatusProcessing, ProcessingProgress: model.IntPtr(40)}
	doc, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDone, doc.Phase())

	backend.docs[99] = model.Document{ID: 99, Filename: "remote.pdf", Processed: true}
	doc, err = svc.Get(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, "remote.pdf", doc.Filename)

	_, err = svc.Get(ctx, 100)
	var domainErr *api.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, 404, domainErr.Status)
	_, err = svc.Get(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestWaitSettled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	svc, backend, p, _ := newDocumentFixture(t)
	uploaded, err := svc.Upload(ctx, []UploadInput{{Name: "a.txt", Data: []byte("a")}})
	require.NoError(t, err)
	id := uploaded[0].ID
	backend.statuses[id] = []model.JobStatus{{ProcessingStatus: model.StatusError}}

	go p.Tick(ctx)
	settled, err := svc.WaitSettled(ctx, []uint{id})

	require.NoError(t, err)
	require.Len(t, settled, 1)
	assert.Equal(t, model.PhaseFailed, settled[0].Phase())
}
