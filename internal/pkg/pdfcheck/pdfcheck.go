// Package pdfcheck inspects PDFs locally to flag files the backend is
// unlikely to index.
package pdfcheck

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

var ErrNoPages = errors.New("pdf has no pages")

// PageCount parses data as a PDF and returns its number of pages.
func PageCount(data []byte) (n int, err error) {
	if len(data) == 0 {
		return 0, ErrNoPages
	}
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf failed: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf failed: %w", err)
	}
	n = reader.NumPage()
	if n == 0 {
		return 0, ErrNoPages
	}
	return n, nil
}

// ExtractText returns the plain text of every page.
func ExtractText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract pdf text failed: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf failed: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return string(out), nil
}
