package app

import (
	"context"

	"docqa-client/internal/model"
)

type EventStore interface {
	Create(event *model.DocumentEvent) error
	List(limit int) ([]model.DocumentEvent, error)
}

// DirectPublisher writes document events straight to the store when no
// broker is configured.
type DirectPublisher struct {
	store EventStore
}

func NewDirectPublisher(store EventStore) *DirectPublisher {
	return &DirectPublisher{store: store}
}

func (p *DirectPublisher) Publish(_ context.Context, event model.DocumentEvent) error {
	return p.store.Create(&event)
}

type JournalService struct {
	store EventStore
}

func NewJournalService(store EventStore) *JournalService {
	return &JournalService{store: store}
}

func (s *JournalService) Recent(limit int) ([]model.DocumentEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.List(limit)
}
