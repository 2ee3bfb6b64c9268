package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docqa-client/internal/model"
)

const maxListLimit = 500

type DocumentEventRepository struct {
	db *gorm.DB
}

func NewDocumentEventRepository(db *gorm.DB) *DocumentEventRepository {
	return &DocumentEventRepository{db: db}
}

func (r *DocumentEventRepository) Create(event *model.DocumentEvent) error {
	if err := r.db.Create(event).Error; err != nil {
		return fmt.Errorf("create document event failed: %w", err)
	}
	return nil
}

// List returns the newest events first.
func (r *DocumentEventRepository) List(limit int) ([]model.DocumentEvent, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = 100
	}

	var events []model.DocumentEvent
	if err := r.db.Order("observed_at DESC").Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list document events failed: %w", err)
	}
	return events, nil
}

func (r *DocumentEventRepository) ListByDocumentID(documentID uint) ([]model.DocumentEvent, error) {
	var events []model.DocumentEvent
	if err := r.db.Where("document_id = ?", documentID).Order("observed_at ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list document events by document failed: %w", err)
	}
	return events, nil
}
