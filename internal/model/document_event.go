package model

import "time"

// DocumentEvent is a journal row written when a document leaves the tracked set.
type DocumentEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"not null;index" json:"document_id"`
	Filename   string    `gorm:"size:256" json:"filename"`
	Phase      Phase     `gorm:"size:16;not null;index" json:"phase"`
	Progress   int       `json:"progress"`
	ObservedAt time.Time `gorm:"not null" json:"observed_at"`
	CreatedAt  time.Time `json:"created_at"`
}
