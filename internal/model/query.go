package model

import (
	"strconv"
	"time"
)

// Source is one retrieved passage backing an answer.
type Source struct {
	DocumentID   uint   `json:"document_id,omitempty"`
	DocumentName string `json:"document_name"`
	PageNumber   *int   `json:"page_number,omitempty"`
	Section      string `json:"section,omitempty"`
	ChunkID      string `json:"chunk_id,omitempty"`
	Content      string `json:"content"`
}

// Label is the composite label used inside answer citations:
// name, then " - Page N" and " - section" when present.
func (s Source) Label() string {
	label := s.DocumentName
	if s.PageNumber != nil && *s.PageNumber != 0 {
		label += " - Page " + strconv.Itoa(*s.PageNumber)
	}
	if s.Section != "" {
		label += " - " + s.Section
	}
	return label
}

type AnswerResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

type QuerySourceRef struct {
	ID         uint   `json:"id"`
	ChunkID    string `json:"chunk_id"`
	DocumentID uint   `json:"document_id"`
	QueryID    uint   `json:"query_id"`
}

type QueryRecord struct {
	ID        uint             `json:"id"`
	QueryText string           `json:"query_text"`
	Response  string           `json:"response"`
	CreatedAt time.Time        `json:"created_at"`
	UserID    uint             `json:"user_id"`
	Sources   []QuerySourceRef `json:"sources"`
}
