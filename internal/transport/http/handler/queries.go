package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa-client/internal/app"
	"docqa-client/internal/transport/http/response"
)

type QueryHandler struct {
	queries *app.QueryService
}

type AskRequest struct {
	QueryText string `json:"query_text" binding:"required"`
}

func NewQueryHandler(queries *app.QueryService) *QueryHandler {
	return &QueryHandler{queries: queries}
}

func (h *QueryHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "query_text is required")
		return
	}

	answer, err := h.queries.Ask(c.Request.Context(), req.QueryText)
	if err != nil {
		writeError(c, err, "query failed")
		return
	}
	response.OK(c, answer)
}

func (h *QueryHandler) History(c *gin.Context) {
	records, err := h.queries.History(c.Request.Context())
	if err != nil {
		writeError(c, err, "get history failed")
		return
	}
	response.OK(c, records)
}

func (h *QueryHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "invalid query id")
	if !ok {
		return
	}
	record, err := h.queries.Record(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "get query failed")
		return
	}
	response.OK(c, record)
}
