package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"docqa-client/internal/model"
)

// UploadFile is one file in an upload batch.
type UploadFile struct {
	Name        string
	ContentType string
	Body        io.Reader
}

func (c *Client) UploadDocument(ctx context.Context, file UploadFile) (*model.Document, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", file.ContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create multipart part failed: %w", err)
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return nil, fmt.Errorf("copy upload body failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer failed: %w", err)
	}

	var doc model.Document
	if err := c.do(ctx, http.MethodPost, "/documents/upload", &buf, writer.FormDataContentType(), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	if err := c.getJSON(ctx, "/documents/", &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) GetDocument(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	if err := c.getJSON(ctx, fmt.Sprintf("/documents/%d", id), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/documents/%d", id), nil, "", nil)
}

// DocumentStatus fetches the processing status of one document.
func (c *Client) DocumentStatus(ctx context.Context, id uint) (model.JobStatus, error) {
	var st model.JobStatus
	if err := c.getJSON(ctx, fmt.Sprintf("/documents/%d/status", id), &st); err != nil {
		return model.JobStatus{}, err
	}
	return st, nil
}
