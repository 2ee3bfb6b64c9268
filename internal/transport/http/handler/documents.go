package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa-client/internal/app"
	"docqa-client/internal/transport/http/response"
)

type DocumentHandler struct {
	documents *app.DocumentService
}

func NewDocumentHandler(documents *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// List refreshes from the server unless ?cached=true is given.
func (h *DocumentHandler) List(c *gin.Context) {
	if c.Query("cached") == "true" {
		response.OK(c, h.documents.Documents())
		return
	}
	docs, err := h.documents.Refresh(c.Request.Context())
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}
	headers := append(form.File["files"], form.File["file"]...)
	if len(headers) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if len(headers) > app.MaxBatchFiles {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, fmt.Sprintf("at most %d files per upload", app.MaxBatchFiles))
		return
	}

	inputs := make([]app.UploadInput, 0, len(headers))
	for _, fh := range headers {
		data, err := readFormFile(fh)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read uploaded file failed")
			return
		}
		inputs = append(inputs, app.UploadInput{Name: fh.Filename, Data: data})
	}

	docs, err := h.documents.Upload(c.Request.Context(), inputs)
	if err != nil {
		writeError(c, err, "upload failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "invalid document id")
	if !ok {
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "get document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "invalid document id")
	if !ok {
		return
	}

	if err := h.documents.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": id})
}

// Events streams the document list as it changes, starting with the
// current snapshot.
func (h *DocumentHandler) Events(c *gin.Context) {
	flusher, ok := startSSE(c)
	if !ok {
		return
	}

	snapshots, stop := h.documents.Watch()
	defer stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case docs, open := <-snapshots:
			if !open {
				return
			}
			payload, err := json.Marshal(docs)
			if err != nil {
				return
			}
			if err := writeSSE(c, flusher, "documents", payload); err != nil {
				return
			}
		}
	}
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
