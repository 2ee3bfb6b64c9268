package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"docqa-client/internal/api"
	"docqa-client/internal/app"
	"docqa-client/internal/session"
	"docqa-client/internal/transport/http/response"
)

type SessionHandler struct {
	session *session.Broadcaster
	auth    *app.AuthService
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func NewSessionHandler(sessions *session.Broadcaster, auth *app.AuthService) *SessionHandler {
	return &SessionHandler{session: sessions, auth: auth}
}

func (h *SessionHandler) Status(c *gin.Context) {
	snap := h.session.Snapshot()
	data := gin.H{
		"state":         snap.State,
		"authenticated": snap.Authenticated,
		"resolved":      snap.Resolved,
	}
	if snap.Token != "" {
		if info, err := session.Describe(snap.Token, time.Now()); err == nil {
			data["token"] = info
		}
	}
	response.OK(c, data)
}

func (h *SessionHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "email and password are required")
		return
	}

	if err := h.auth.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
			return
		}
		if detail, ok := rejectedCredentials(err); ok {
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, detail)
			return
		}
		writeError(c, err, "login failed")
		return
	}

	response.OK(c, gin.H{"state": h.session.State()})
}

func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		writeError(c, err, "logout failed")
		return
	}
	response.OK(c, gin.H{"state": h.session.State(), "redirect": response.LoginPath})
}

func (h *SessionHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "email and password are required")
		return
	}

	user, err := h.auth.Register(c.Request.Context(), app.RegisterInput{Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(c, err, "register failed")
		return
	}
	response.OK(c, user)
}

// Events streams session transitions until the client disconnects.
func (h *SessionHandler) Events(c *gin.Context) {
	flusher, ok := startSSE(c)
	if !ok {
		return
	}

	queue := newEventQueue(maxPendingSessionEvents)
	unsubscribe := h.session.Subscribe(queue.push)
	defer unsubscribe()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-queue.ready:
			events, overflowed := queue.drain()
			for _, ev := range events {
				payload, err := json.Marshal(ev)
				if err != nil {
					return
				}
				if err := writeSSE(c, flusher, "session", payload); err != nil {
					return
				}
			}
			// the client lost events; it reconnects and reads /session
			if overflowed {
				return
			}
		}
	}
}

const maxPendingSessionEvents = 64

// eventQueue hands session events from the broadcaster to one stream in
// order without ever blocking the broadcaster.
type eventQueue struct {
	mu         sync.Mutex
	pending    []session.Event
	overflowed bool
	limit      int
	ready      chan struct{}
}

func newEventQueue(limit int) *eventQueue {
	return &eventQueue{limit: limit, ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev session.Event) {
	q.mu.Lock()
	if len(q.pending) >= q.limit {
		q.overflowed = true
	} else {
		q.pending = append(q.pending, ev)
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// drain returns the pending events and whether any were refused since the
// queue was created.
func (q *eventQueue) drain() ([]session.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := q.pending
	q.pending = nil
	return events, q.overflowed
}

func rejectedCredentials(err error) (string, bool) {
	return api.UnauthorizedDetail(err)
}
