package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"docqa-client/internal/api"
	"docqa-client/internal/model"
	"docqa-client/internal/pkg/pdfcheck"
	"docqa-client/internal/poller"
)

const MaxBatchFiles = 5

var contentTypes = map[string]string{
	".pdf": "application/pdf",
	".txt": "text/plain",
}

type DocumentGateway interface {
	UploadDocument(ctx context.Context, file api.UploadFile) (*model.Document, error)
	ListDocuments(ctx context.Context) ([]model.Document, error)
	GetDocument(ctx context.Context, id uint) (*model.Document, error)
	DeleteDocument(ctx context.Context, id uint) error
}

type JobTracker interface {
	Register(doc model.Document) bool
	Unregister(id uint) bool
	Subscribe(l poller.Listener) func()
}

// EventPublisher records documents that left the tracked set.
type EventPublisher interface {
	Publish(ctx context.Context, event model.DocumentEvent) error
}

type UploadInput struct {
	Name string
	Data []byte
}

// DocumentService keeps the local document list in step with uploads, the
// canonical server list and the status poller.
type DocumentService struct {
	gateway   DocumentGateway
	tracker   JobTracker
	publisher EventPublisher
	list      *DocumentList
	logger    *zap.Logger

	unsubscribe func()
}

func NewDocumentService(gateway DocumentGateway, tracker JobTracker, publisher EventPublisher, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DocumentService{
		gateway:   gateway,
		tracker:   tracker,
		publisher: publisher,
		list:      NewDocumentList(),
		logger:    logger,
	}
	s.unsubscribe = tracker.Subscribe(s.onStatus)
	return s
}

func (s *DocumentService) Documents() []model.Document {
	return s.list.Snapshot()
}

func (s *DocumentService) Watch() (<-chan []model.Document, func()) {
	return s.list.Watch()
}

// Refresh loads the canonical list, reconciles it with the local one and
// starts tracking any document the server still reports as active.
func (s *DocumentService) Refresh(ctx context.Context) ([]model.Document, error) {
	docs, err := s.gateway.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range s.list.Reconcile(docs) {
		s.tracker.Unregister(id)
	}
	for _, doc := range s.list.Snapshot() {
		s.tracker.Register(doc)
	}
	return s.list.Snapshot(), nil
}

// Upload validates the whole batch locally, then uploads files one by one.
// It stops at the first failed upload and returns what was uploaded so far.
func (s *DocumentService) Upload(ctx context.Context, files []UploadInput) ([]model.Document, error) {
	if err := validateBatch(files); err != nil {
		return nil, err
	}

	uploaded := make([]model.Document, 0, len(files))
	for _, f := range files {
		s.inspectPDF(f)
		doc, err := s.gateway.UploadDocument(ctx, api.UploadFile{
			Name:        filepath.Base(f.Name),
			ContentType: contentTypes[strings.ToLower(filepath.Ext(f.Name))],
			Body:        bytes.NewReader(f.Data),
		})
		if err != nil {
			return uploaded, err
		}
		s.list.Prepend(*doc)
		if s.tracker.Register(*doc) {
			s.logger.Info("document uploaded, tracking processing", zap.Uint("document_id", doc.ID), zap.String("filename", doc.Filename))
		} else {
			s.logger.Info("document uploaded", zap.Uint("document_id", doc.ID), zap.String("phase", string(doc.Phase())))
		}
		uploaded = append(uploaded, *doc)
	}
	return uploaded, nil
}

// UploadPaths reads files from disk and uploads them as one batch.
func (s *DocumentService) UploadPaths(ctx context.Context, paths []string) ([]model.Document, error) {
	if len(paths) > MaxBatchFiles {
		return nil, fmt.Errorf("%w: at most %d files per upload", ErrInvalidInput, MaxBatchFiles)
	}
	files := make([]UploadInput, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s failed: %w", path, err)
		}
		files = append(files, UploadInput{Name: path, Data: data})
	}
	return s.Upload(ctx, files)
}

// Get fetches one document and merges its status into the local copy, so a
// document the list already saw finish is never reported as active again.
func (s *DocumentService) Get(ctx context.Context, id uint) (*model.Document, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.gateway.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if local, ok := s.list.Apply(model.StatusUpdate{DocumentID: id, Status: doc.Status()}); ok {
		return &local, nil
	}
	return doc, nil
}

func (s *DocumentService) Delete(ctx context.Context, id uint) error {
	if id == 0 {
		return ErrInvalidInput
	}
	if err := s.gateway.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.tracker.Unregister(id)
	s.list.Remove(id)
	return nil
}

// WaitSettled blocks until none of ids is active in the local list.
func (s *DocumentService) WaitSettled(ctx context.Context, ids []uint) ([]model.Document, error) {
	snapshots, stop := s.list.Watch()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case docs := <-snapshots:
			settled := make([]model.Document, 0, len(ids))
			for _, doc := range docs {
				for _, id := range ids {
					if doc.ID == id && doc.Phase() != model.PhaseActive {
						settled = append(settled, doc)
					}
				}
			}
			if len(settled) == len(ids) {
				return settled, nil
			}
		}
	}
}

// inspectPDF warns about PDFs the server will most likely fail to index.
// They are still uploaded; the poller reports the server's verdict.
func (s *DocumentService) inspectPDF(f UploadInput) {
	if strings.ToLower(filepath.Ext(f.Name)) != ".pdf" {
		return
	}
	name := filepath.Base(f.Name)
	pages, err := pdfcheck.PageCount(f.Data)
	if err != nil {
		s.logger.Warn("pdf does not parse locally", zap.String("filename", name), zap.Error(err))
		return
	}
	text, err := pdfcheck.ExtractText(f.Data)
	if err != nil || strings.TrimSpace(text) == "" {
		s.logger.Warn("pdf has no extractable text", zap.String("filename", name), zap.Int("pages", pages), zap.Error(err))
	}
}

func (s *DocumentService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *DocumentService) onStatus(u model.StatusUpdate) {
	doc, ok := s.list.Apply(u)
	if !ok || !u.Retired || s.publisher == nil {
		return
	}
	event := model.DocumentEvent{
		DocumentID: u.DocumentID,
		Filename:   doc.Filename,
		Phase:      u.Status.Phase(),
		Progress:   u.Status.Progress(),
		ObservedAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish document event failed", zap.Uint("document_id", u.DocumentID), zap.Error(err))
	}
}

func validateBatch(files []UploadInput) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no files to upload", ErrInvalidInput)
	}
	if len(files) > MaxBatchFiles {
		return fmt.Errorf("%w: at most %d files per upload", ErrInvalidInput, MaxBatchFiles)
	}
	for _, f := range files {
		name := filepath.Base(f.Name)
		if _, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; !ok {
			return fmt.Errorf("%w: %s: only PDF and TXT files are supported", ErrInvalidInput, name)
		}
	}
	return nil
}
