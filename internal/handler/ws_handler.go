package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	ws "github.com/stemsi/exstem-assessment/internal/websocket"
)

const snapshotTimeout = 5 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live session events to monitors.
type WSHandler struct {
	svc      *service.AssessmentService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(svc *service.AssessmentService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		svc:      svc,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionEvents godoc
// WS /ws/v1/sessions/:id/events
// Sends a snapshot of the session, then relays every event published for it.
func (h *WSHandler) SessionEvents(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snapCtx, cancel := context.WithTimeout(c.Request.Context(), snapshotTimeout)
	snap, err := h.svc.Monitor(snapCtx, sessionID)
	cancel()
	if err != nil {
		if errors.Is(err, service.ErrInvitationNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrInvitationNotFound)
			return
		}
		h.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Monitor snapshot failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", sessionID.String()).Logger()
	wsLog.Info().Msg("Monitor connected")

	ctx, stop := context.WithCancel(c.Request.Context())
	defer stop()

	// Subscribe before the snapshot goes out so no event falls in between.
	pubsub := h.svc.Subscribe(ctx, sessionID)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		wsLog.Error().Err(err).Msg("Subscribe failed")
		_ = ws.WriteError(conn, "subscribe failed")
		return
	}

	if err := ws.WriteTyped(conn, ws.SnapshotResponse{
		Event:     ws.EventSnapshot,
		SessionID: snap.SessionID,
		Status:    string(snap.Status),
		StartedAt: snap.StartedAt,
		Answered:  snap.Answered,
	}); err != nil {
		return
	}

	// One reader and one writer at a time: pongs are written by the loop below.
	pings := make(chan struct{}, 1)
	go func() {
		defer stop()
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			if msg.Action == ws.ActionPing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	events := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			wsLog.Info().Msg("Monitor disconnected")
			return
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			// Events are published as JSON already; forward them untouched.
			if err := ws.WriteRaw(conn, []byte(msg.Payload)); err != nil {
				return
			}
		}
	}
}
