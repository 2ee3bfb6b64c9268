package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-client/internal/model"
	"docqa-client/internal/session"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens TokenSource, unauthorized UnauthorizedHandler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/v1", 5*time.Second, tokens, unauthorized)
}

func TestRequestsCarryBearerToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/v1/documents/", r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	}, staticToken(" abc "), nil)

	docs, err := client.ListDocuments(context.Background())

	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestRequestsWithoutTokenOmitHeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Authorization"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`[]`))
	}, staticToken(""), nil)

	_, err := client.ListQueries(context.Background())
	require.NoError(t, err)
}

func TestUnauthorizedClearsSessionBeforeReturning(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryBackend().Store()
	broadcaster := session.NewBroadcaster(store, nil)
	require.NoError(t, broadcaster.Login(ctx, "expired"))

	var redirected bool
	broadcaster.Subscribe(func(ev session.Event) { redirected = ev.Redirect })

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}, broadcaster, broadcaster)

	_, err := client.DocumentStatus(ctx, 7)

	require.ErrorIs(t, err, ErrUnauthorized)
	detail, ok := UnauthorizedDetail(err)
	assert.True(t, ok)
	assert.Equal(t, "Could not validate credentials", detail)
	assert.Equal(t, session.StateUnauthenticated, broadcaster.State())
	assert.True(t, redirected)
	value, loadErr := store.Load(ctx)
	require.NoError(t, loadErr)
	assert.Empty(t, value)
}

func TestDomainErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "string detail", status: 400, body: `{"detail":"Email already registered"}`, want: "Email already registered"},
		{name: "validation list", status: 422, body: `{"detail":[{"msg":"field required"},{"msg":"value is not a valid email"}]}`, want: "field required; value is not a valid email"},
		{name: "no body", status: 404, body: ``, want: "Not Found"},
		{name: "html body", status: 502, body: `<html>bad gateway</html>`, want: "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, nil, nil)

			_, err := client.Register(context.Background(), "a@b.c", "password1")

			var domainErr *DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, tt.status, domainErr.Status)
			assert.Equal(t, tt.want, domainErr.Detail)
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client := NewClient(url, time.Second, nil, nil)

	_, err := client.ListDocuments(context.Background())

	assert.ErrorIs(t, err, ErrTransport)
}

func TestLoginSendsForm(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "user@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "secret-pass", r.PostForm.Get("password"))
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	}, nil, nil)

	resp, err := client.Login(context.Background(), "user@example.com", "secret-pass")

	require.NoError(t, err)
	assert.Equal(t, "tok", resp.AccessToken)
}

func TestUploadDocumentMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/documents/upload", r.URL.Path)
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "text/plain", header.Header.Get("Content-Type"))
		assert.Equal(t, "hello", string(body))
		_ = json.NewEncoder(w).Encode(model.Document{
			ID:                 3,
			Filename:           header.Filename,
			ProcessingStatus:   model.StatusPending,
			ProcessingProgress: model.IntPtr(0),
		})
	}, staticToken("abc"), nil)

	doc, err := client.UploadDocument(context.Background(), UploadFile{
		Name:        "notes.txt",
		ContentType: "text/plain",
		Body:        strings.NewReader("hello"),
	})

	require.NoError(t, err)
	assert.Equal(t, uint(3), doc.ID)
	assert.Equal(t, model.PhaseActive, doc.Phase())
	require.NotNil(t, doc.ProcessingProgress)
	assert.Equal(t, 0, *doc.ProcessingProgress)
}

func TestSubmitQueryDecodesSources(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "what is x?", in["query_text"])
		_, _ = w.Write([]byte(`{"answer":"x is y [A.pdf - Page 2]","sources":[{"document_name":"A.pdf","page_number":2,"content":"x is y"}]}`))
	}, staticToken("abc"), nil)

	result, err := client.SubmitQuery(context.Background(), "what is x?")

	require.NoError(t, err)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "A.pdf - Page 2", result.Sources[0].Label())
}
