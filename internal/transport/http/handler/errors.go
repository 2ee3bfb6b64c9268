package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docqa-client/internal/api"
	"docqa-client/internal/app"
	"docqa-client/internal/transport/http/response"
)

// writeError maps service and gateway errors onto the response envelope.
func writeError(c *gin.Context, err error, fallback string) {
	var domainErr *api.DomainError
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, api.ErrUnauthorized):
		response.Unauthorized(c, "session expired")
	case errors.As(err, &domainErr):
		switch {
		case domainErr.Status == http.StatusNotFound:
			response.Error(c, http.StatusNotFound, response.CodeNotFound, domainErr.Detail)
		case domainErr.Status < http.StatusInternalServerError:
			response.Error(c, domainErr.Status, response.CodeBadRequest, domainErr.Detail)
		default:
			response.Error(c, http.StatusBadGateway, response.CodeUpstreamRejected, domainErr.Detail)
		}
	case errors.Is(err, api.ErrTransport):
		response.Error(c, http.StatusServiceUnavailable, response.CodeUpstreamDown, "document service unreachable")
	case errors.Is(err, app.ErrMissingToken):
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamRejected, err.Error())
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func pathID(c *gin.Context, message string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, message)
		return 0, false
	}
	return uint(id), true
}

func writeSSE(c *gin.Context, flusher http.Flusher, event string, data []byte) error {
	if _, err := c.Writer.Write([]byte("event: " + event + "\ndata: " + sanitizeSSE(string(data)) + "\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}

func startSSE(c *gin.Context) (http.Flusher, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return nil, false
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	flusher.Flush()
	return flusher, true
}
