package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/internal/service"
	"github.com/poornimax/crushline/pkg/apperr"
	pkglog "github.com/poornimax/crushline/pkg/log"
	"github.com/poornimax/crushline/pkg/middleware"
	"github.com/poornimax/crushline/pkg/response"
)

// Handler handles HTTP requests for relationships and conversations.
type Handler struct {
	relationships  service.RelationshipService
	compatibility  service.CompatibilityService
	conversations  service.ConversationService
	sync           service.SyncService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	relationships service.RelationshipService,
	compatibility service.CompatibilityService,
	conversations service.ConversationService,
	sync service.SyncService,
	authMiddleware *middleware.AuthMiddleware,
) *Handler {
	return &Handler{
		relationships:  relationships,
		compatibility:  compatibility,
		conversations:  conversations,
		sync:           sync,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes onto the Gin engine. Every API route
// requires a valid access token.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1", h.authMiddleware.RequireAuth())
	{
		users := api.Group("/users")
		{
			users.POST("/:user_id/crush", h.ExpressInterest)
			users.DELETE("/:user_id/crush", h.WithdrawInterest)
			users.GET("/:user_id/crush/status", h.CrushStatus)
			users.GET("/:user_id/compatibility", h.Compatibility)
		}

		me := api.Group("/me")
		{
			me.GET("/stats", h.Stats)
			me.GET("/hearts/sent", h.HeartsSent)
			me.GET("/hearts/received", h.HeartsReceived)
			me.GET("/friends", h.Friends)
			me.GET("/matches", h.Matches)
		}

		inbox := api.Group("/inbox")
		{
			inbox.GET("", h.Inbox)
			inbox.GET("/unread", h.UnreadPeers)
			inbox.GET("/updates", h.InboxUpdates)
		}

		conversations := api.Group("/conversations")
		{
			conversations.GET("/:peer_id", h.OpenConversation)
			conversations.POST("/:peer_id/messages", h.SendMessage)
			conversations.POST("/:peer_id/read", h.MarkRead)
			conversations.DELETE("/:peer_id", h.ClearConversation)
			conversations.GET("/:peer_id/poll", h.PollMessages)
		}
	}
}

func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// ExpressInterest handles POST /api/v1/users/:user_id/crush.
func (h *Handler) ExpressInterest(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	targetID := c.Param("user_id")

	status, err := h.relationships.ExpressInterest(ctx, userID, targetID)
	if err != nil {
		fail(c, err, "express interest failed")
		return
	}

	response.Created(c, gin.H{"status": status})
}

// WithdrawInterest handles DELETE /api/v1/users/:user_id/crush.
func (h *Handler) WithdrawInterest(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	if err := h.relationships.WithdrawInterest(ctx, userID, c.Param("user_id")); err != nil {
		fail(c, err, "withdraw interest failed")
		return
	}

	c.Status(http.StatusNoContent)
}

// CrushStatus handles GET /api/v1/users/:user_id/crush/status.
func (h *Handler) CrushStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	peerID := c.Param("user_id")

	status, err := h.relationships.Status(ctx, userID, peerID)
	if err != nil {
		fail(c, err, "crush status failed")
		return
	}
	friends, err := h.relationships.AreFriends(ctx, userID, peerID)
	if err != nil {
		fail(c, err, "friendship lookup failed")
		return
	}

	response.Success(c, domain.PairView{
		UserID:     userID,
		PeerID:     peerID,
		Status:     status,
		AreFriends: friends,
	})
}

// Compatibility handles GET /api/v1/users/:user_id/compatibility. The
// score is null when either user has not filled in the questionnaire.
func (h *Handler) Compatibility(c *gin.Context) {
	ctx := c.Request.Context()
	peerID := c.Param("user_id")

	score, ok, err := h.compatibility.Score(ctx, middleware.GetUserID(c), peerID)
	if err != nil {
		fail(c, err, "compatibility failed")
		return
	}

	var value *int
	if ok {
		value = &score
	}
	response.Success(c, gin.H{"user_id": peerID, "score": value})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.relationships.Stats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "stats failed")
		return
	}
	response.Success(c, stats)
}

func (h *Handler) HeartsSent(c *gin.Context) {
	edges, err := h.relationships.HeartsSent(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "hearts sent failed")
		return
	}
	response.Success(c, gin.H{"hearts": edges})
}

func (h *Handler) HeartsReceived(c *gin.Context) {
	edges, err := h.relationships.HeartsReceived(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "hearts received failed")
		return
	}
	response.Success(c, gin.H{"hearts": edges})
}

func (h *Handler) Friends(c *gin.Context) {
	ids, err := h.relationships.Friends(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "friends failed")
		return
	}
	response.Success(c, gin.H{"friends": ids})
}

func (h *Handler) Matches(c *gin.Context) {
	candidates, err := h.compatibility.RankCandidates(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "matches failed")
		return
	}
	response.Success(c, gin.H{"matches": candidates})
}

// Inbox handles GET /api/v1/inbox.
func (h *Handler) Inbox(c *gin.Context) {
	convs, err := h.conversations.ActiveConversations(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "inbox failed")
		return
	}
	response.Success(c, gin.H{"conversations": convs})
}

func (h *Handler) UnreadPeers(c *gin.Context) {
	peers, err := h.conversations.UnreadPeers(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err, "unread peers failed")
		return
	}
	response.Success(c, gin.H{"peers": peers})
}

// InboxUpdates handles GET /api/v1/inbox/updates?after=.
func (h *Handler) InboxUpdates(c *gin.Context) {
	after, err := parseAfter(c)
	if err != nil {
		fail(c, err, "bad cursor")
		return
	}

	changes, err := h.sync.ChangesSince(c.Request.Context(), middleware.GetUserID(c), after)
	if err != nil {
		fail(c, err, "inbox updates failed")
		return
	}
	response.Success(c, changes)
}

// OpenConversation handles GET /api/v1/conversations/:peer_id. Opening a
// chat marks the peer's messages read.
func (h *Handler) OpenConversation(c *gin.Context) {
	msgs, err := h.conversations.OpenConversation(c.Request.Context(), middleware.GetUserID(c), c.Param("peer_id"))
	if err != nil {
		fail(c, err, "open conversation failed")
		return
	}
	response.Success(c, gin.H{"messages": msgs})
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessage handles POST /api/v1/conversations/:peer_id/messages.
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Msg("invalid send message request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.conversations.AppendMessage(ctx, middleware.GetUserID(c), c.Param("peer_id"), req.Content)
	if err != nil {
		fail(c, err, "send message failed")
		return
	}
	response.Created(c, msg)
}

func (h *Handler) MarkRead(c *gin.Context) {
	n, err := h.conversations.MarkRead(c.Request.Context(), middleware.GetUserID(c), c.Param("peer_id"))
	if err != nil {
		fail(c, err, "mark read failed")
		return
	}
	response.Success(c, gin.H{"marked": n})
}

// ClearConversation handles DELETE /api/v1/conversations/:peer_id. Only
// the caller's view is cleared.
func (h *Handler) ClearConversation(c *gin.Context) {
	if err := h.conversations.ClearConversation(c.Request.Context(), middleware.GetUserID(c), c.Param("peer_id")); err != nil {
		fail(c, err, "clear conversation failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// PollMessages handles GET /api/v1/conversations/:peer_id/poll?after=.
func (h *Handler) PollMessages(c *gin.Context) {
	after, err := parseAfter(c)
	if err != nil {
		fail(c, err, "bad cursor")
		return
	}

	msgs, err := h.sync.MessagesSince(c.Request.Context(), middleware.GetUserID(c), c.Param("peer_id"), after)
	if err != nil {
		fail(c, err, "poll messages failed")
		return
	}
	response.Success(c, gin.H{"messages": msgs})
}

var errBadCursor = apperr.Validation("after must be an RFC 3339 timestamp")

func parseAfter(c *gin.Context) (time.Time, error) {
	raw := c.Query("after")
	if raw == "" {
		return time.Time{}, errBadCursor
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, errBadCursor
	}
	return t.UTC(), nil
}

// fail logs server-side failures and writes the error envelope.
func fail(c *gin.Context, err error, msg string) {
	switch apperr.CodeOf(err) {
	case apperr.CodeInternal, apperr.CodeTransient:
		l := pkglog.Ctx(c.Request.Context())
		l.Error().Err(err).
			Str(pkglog.FieldUserID, middleware.GetUserID(c)).
			Str(pkglog.FieldPath, c.FullPath()).
			Msg(msg)
	}
	response.FromError(c, err)
}
