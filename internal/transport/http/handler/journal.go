package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"docqa-client/internal/app"
	"docqa-client/internal/transport/http/response"
)

type JournalHandler struct {
	journal *app.JournalService
}

func NewJournalHandler(journal *app.JournalService) *JournalHandler {
	return &JournalHandler{journal: journal}
}

func (h *JournalHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	events, err := h.journal.Recent(limit)
	if err != nil {
		writeError(c, err, "list journal failed")
		return
	}
	response.OK(c, events)
}
