package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Hojaeaga/replyguy-monorepo/internal/domain"
	"github.com/Hojaeaga/replyguy-monorepo/internal/producer"
	"github.com/Hojaeaga/replyguy-monorepo/internal/user"
	pkglog "github.com/Hojaeaga/replyguy-monorepo/pkg/log"
	"github.com/Hojaeaga/replyguy-monorepo/pkg/response"
)

// Handler exposes the ingestion API: the cast webhook and the
// subscription endpoints. It is thin glue over the producer and the
// user service.
type Handler struct {
	producer *producer.Producer
	users    *user.Service
}

// NewHandler creates an ingestion HTTP handler.
func NewHandler(p *producer.Producer, users *user.Service) *Handler {
	return &Handler{producer: p, users: users}
}

// RegisterRoutes registers the ingestion routes on the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/farcaster/webhook/receiveCast", h.ReceiveCast)
	r.POST("/user/register", h.RegisterUser)
	r.POST("/user/unsubscribe", h.UnsubscribeUser)
}

// Health reports service liveness.
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok", "service": "ingestion"})
}

// webhookPayload is the social protocol's webhook envelope.
type webhookPayload struct {
	Type string       `json:"type"`
	Data *domain.Cast `json:"data"`
}

// ReceiveCast accepts cast.created webhook deliveries and enqueues a
// processing job. Other event types and empty casts are acknowledged
// without queueing.
func (h *Handler) ReceiveCast(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "invalid webhook payload")
		return
	}

	if payload.Type != domain.EventTypeCastCreated || payload.Data == nil {
		response.Success(c, gin.H{"queued": false})
		return
	}

	queued, err := h.producer.EnqueueCast(ctx, payload.Data)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldCastHash, payload.Data.Hash).Msg("failed to enqueue cast")
		response.InternalError(c, "failed to queue cast")
		return
	}

	response.Success(c, gin.H{"queued": queued})
}

type fidRequest struct {
	FID int64 `json:"fid" binding:"required"`
}

// RegisterUser opts a fid into auto-replies.
func (h *Handler) RegisterUser(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	var req fidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "fid is required")
		return
	}

	status, err := h.users.Register(ctx, req.FID)
	if err != nil {
		l.Error().Err(err).Int64(pkglog.FieldFID, req.FID).Msg("failed to register user")
		response.InternalError(c, "failed to register user")
		return
	}

	response.Success(c, gin.H{"fid": req.FID, "status": status})
}

// UnsubscribeUser opts a fid out of auto-replies.
func (h *Handler) UnsubscribeUser(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	var req fidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "fid is required")
		return
	}

	if err := h.users.Unsubscribe(ctx, req.FID); err != nil {
		l.Error().Err(err).Int64(pkglog.FieldFID, req.FID).Msg("failed to unsubscribe user")
		response.InternalError(c, "failed to unsubscribe user")
		return
	}

	response.Success(c, gin.H{"fid": req.FID, "status": "unsubscribed"})
}
