package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weappkit/server/internal/shared/response"
)

// Handler handles HTTP requests for payment sessions.
type Handler struct {
	service *Service
}

// NewHandler creates a new payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the payment routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		payments.POST("/:provider/sessions", h.CreateSession)
		payments.GET("/sessions/:id", h.GetSession)
		payments.GET("/sessions/:id/status", h.SyncStatus)
		payments.POST("/sessions/:id/authorize", h.AuthorizeSession)
		payments.POST("/sessions/:id/cancel", h.CancelSession)
		payments.POST("/sessions/:id/refund", h.RefundSession)
	}
}

// CreateSession starts a payment session with the named provider.
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), c.Param("provider"), CreateSessionInput{
		Amount:       req.Amount,
		CurrencyCode: req.CurrencyCode,
		Description:  req.Description,
		OpenID:       req.OpenID,
	})
	if err != nil {
		response.Error(c, toAppError(err))
		return
	}

	c.JSON(http.StatusCreated, session.ToResponse())
}

// GetSession returns a payment session by ID.
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, session.ToResponse())
}

// SyncStatus polls the provider for the session's status.
func (h *Handler) SyncStatus(c *gin.Context) {
	session, err := h.service.SyncStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, StatusResponse{ID: session.ID, Status: session.Status})
}

// AuthorizeSession confirms a paid session.
func (h *Handler) AuthorizeSession(c *gin.Context) {
	session, err := h.service.AuthorizeSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, session.ToResponse())
}

// CancelSession closes a pending session.
func (h *Handler) CancelSession(c *gin.Context) {
	session, err := h.service.CancelSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, session.ToResponse())
}

// RefundSession refunds a captured session.
func (h *Handler) RefundSession(c *gin.Context) {
	var req RefundSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	session, err := h.service.RefundSession(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		response.Error(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, session.ToResponse())
}
