package app

import (
	"context"
	"io"
	"sync"

	"docqa-client/internal/api"
	"docqa-client/internal/model"
)

type fakeBackend struct {
	mu       sync.Mutex
	nextID   uint
	docs     map[uint]model.Document
	statuses map[uint][]model.JobStatus
	uploads  []string
	deleted  []uint
	answer   *model.AnswerResult
	history  []model.QueryRecord
	listed   int
	err      error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nextID: 1, docs: make(map[uint]model.Document), statuses: make(map[uint][]model.JobStatus)}
}

func (f *fakeBackend) UploadDocument(_ context.Context, file api.UploadFile) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	_, _ = io.ReadAll(file.Body)
	doc := model.Document{
		ID:                 f.nextID,
		Filename:           file.Name,
		ContentType:        file.ContentType,
		ProcessingStatus:   model.StatusPending,
		ProcessingProgress: model.IntPtr(0),
	}
	f.nextID++
	f.docs[doc.ID] = doc
	f.uploads = append(f.uploads, file.Name)
	return &doc, nil
}

func (f *fakeBackend) ListDocuments(context.Context) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Document, 0, len(f.docs))
	for id := f.nextID; id > 0; id-- {
		if doc, ok := f.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetDocument(_ context.Context, id uint) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, &api.DomainError{Status: 404, Detail: "Document not found"}
	}
	return &doc, nil
}

func (f *fakeBackend) DeleteDocument(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.docs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) DocumentStatus(_ context.Context, id uint) (model.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.statuses[id]
	if len(queue) == 0 {
		return f.docs[id].Status(), nil
	}
	st := queue[0]
	f.statuses[id] = queue[1:]
	doc := f.docs[id]
	doc.ApplyStatus(st)
	f.docs[id] = doc
	return st, nil
}

func (f *fakeBackend) SubmitQuery(context.Context, string) (*model.AnswerResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func (f *fakeBackend) ListQueries(context.Context) ([]model.QueryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

func (f *fakeBackend) GetQuery(_ context.Context, id uint) (*model.QueryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.history {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, &api.DomainError{Status: 404, Detail: "Query not found"}
}

type memoryEvents struct {
	mu     sync.Mutex
	events []model.DocumentEvent
}

func (m *memoryEvents) Create(event *model.DocumentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = uint(len(m.events) + 1)
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryEvents) List(limit int) ([]model.DocumentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.events) {
		limit = len(m.events)
	}
	return append([]model.DocumentEvent(nil), m.events[:limit]...), nil
}
