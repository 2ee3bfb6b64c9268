package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTransport means no response came back. It is safe to retry by hand.
	ErrTransport = errors.New("service unreachable")
	// ErrUnauthorized is returned after the session has already been cleared.
	ErrUnauthorized = errors.New("unauthorized")
)

// UnauthorizedDetail returns the server's message for a rejected request.
func UnauthorizedDetail(err error) (string, bool) {
	if !errors.Is(err, ErrUnauthorized) {
		return "", false
	}
	return strings.TrimPrefix(err.Error(), ErrUnauthorized.Error()+": "), true
}

// DomainError is a non-2xx response carrying the server's detail message.
type DomainError struct {
	Status int
	Detail string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Detail)
}

// decodeDetail extracts the "detail" field, which is a string for handled
// errors and a list of {msg} objects for request validation failures.
func decodeDetail(status int, body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Detail, &text); err == nil && text != "" {
			return text
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return http.StatusText(status)
}
