package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/poornimax/crushline/internal/audit"
	"github.com/poornimax/crushline/internal/config"
	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/internal/hub"
	"github.com/poornimax/crushline/internal/service"
	"github.com/poornimax/crushline/pkg/apperr"
	pkglog "github.com/poornimax/crushline/pkg/log"
	"github.com/poornimax/crushline/pkg/middleware"
)

// WSHandler upgrades authenticated requests into conversation sockets.
type WSHandler struct {
	hub            *hub.Hub
	conversations  service.ConversationService
	authMiddleware *middleware.AuthMiddleware
	upgrader       websocket.Upgrader
	wsCfg          config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, conversations service.ConversationService, authMiddleware *middleware.AuthMiddleware, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:            h,
		conversations:  conversations,
		authMiddleware: authMiddleware,
		wsCfg:          wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsCfg.ReadBufferSize,
			WriteBufferSize: wsCfg.WriteBufferSize,
			CheckOrigin:     originChecker(wsCfg.AllowedOrigins),
		},
	}
}

// RegisterRoutes mounts GET /api/v1/conversations/:peer_id/ws.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/v1/conversations/:peer_id/ws", h.authMiddleware.RequireAuth(), h.HandleWebSocket)
}

// HandleWebSocket resolves the peer before upgrading, so a bad peer gets
// a plain HTTP error and no socket is opened.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	userID := middleware.GetUserID(c)
	peerID := c.Param("peer_id")

	if err := h.conversations.ResolvePeer(c.Request.Context(), userID, peerID); err != nil {
		fail(c, err, "resolve peer failed")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := pkglog.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := domain.NewSession(uuid.New().String(), userID, middleware.GetUsername(c), peerID)
	logger := pkglog.L().With().
		Str(pkglog.FieldClientID, session.ID).
		Str(pkglog.FieldUserID, userID).
		Str(pkglog.FieldPeerID, peerID).
		Logger()
	ctx := pkglog.WithLogger(context.Background(), logger)

	client := hub.NewClient(session.ID, h.hub, conn, session, h.wsCfg)
	h.hub.Register(client)
	h.hub.Subscribe(session.ChannelKey, client)
	audit.Log(ctx, audit.ActionChatConnect, userID, peerID, "conversation socket opened")

	go client.WritePump()
	go func() {
		client.ReadPump(func(c *hub.Client, message []byte) {
			h.handleMessage(ctx, c, message)
		})
		audit.Log(ctx, audit.ActionChatDisconnect, userID, peerID, "conversation socket closed")
	}()
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	l := pkglog.Ctx(ctx)
	session := client.Session

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypeChatMessage:
		var msg domain.ChatMessageIn
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid chat_message"))
			return
		}
		// The stored message comes back to this client through the hub.
		if _, err := h.conversations.AppendMessage(ctx, session.UserID, session.PeerID, msg.Content); err != nil {
			l.Warn().Err(err).Msg("chat message failed")
			client.SendMessage(wsError(err))
		}

	case domain.MsgTypeMarkRead:
		if _, err := h.conversations.MarkRead(ctx, session.UserID, session.PeerID); err != nil {
			l.Warn().Err(err).Msg("mark read failed")
			client.SendMessage(wsError(err))
		}

	case domain.MsgTypePing:
		client.SendMessage(&domain.PongMessage{Type: domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}

func wsError(err error) *domain.ErrorMessage {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return domain.NewErrorMessage(domain.ErrCodeInternalError, "Internal error")
	}

	switch appErr.Code {
	case apperr.CodeValidation, apperr.CodeNotFound:
		return domain.NewErrorMessage(domain.ErrCodeBadRequest, appErr.Message)
	case apperr.CodeTransient:
		return domain.NewErrorMessage(domain.ErrCodeUnavailable, "Service unavailable, try again")
	default:
		return domain.NewErrorMessage(domain.ErrCodeInternalError, "Internal error")
	}
}

// originChecker allows any origin when the list is empty, and requests
// without an Origin header, which do not come from browsers.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
