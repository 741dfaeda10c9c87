package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weappkit/server/internal/shared/errors"
	"github.com/weappkit/server/internal/shared/response"
)

// LoginRequest is the body posted by the mini program.
type LoginRequest struct {
	PhoneCode string `json:"phoneCode" binding:"required"`
	LoginCode string `json:"loginCode" binding:"required"`
}

// Handler handles HTTP requests for WeChat login.
type Handler struct {
	exchange *Exchange
}

// NewHandler creates a new auth handler.
func NewHandler(exchange *Exchange) *Handler {
	return &Handler{exchange: exchange}
}

// RegisterRoutes registers the auth routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/weapp_auth/:type/:actor_type", h.Login)
}

// Login exchanges mini program codes for a session token.
// POST /weapp_auth/:type/:actor_type
func (h *Handler) Login(c *gin.Context) {
	authType := c.Param("type")
	if authType != AuthTypeMini {
		response.BadRequest(c, "Invalid auth type")
		return
	}
	actorType := c.Param("actor_type")
	if actorType != ActorCustomer {
		response.BadRequest(c, "Invalid actor_type")
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.exchange.Login(c.Request.Context(), LoginInput{
		Type:      authType,
		ActorType: actorType,
		Credentials: AuthenticationInput{
			PhoneCode: req.PhoneCode,
			LoginCode: req.LoginCode,
		},
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidAuthType):
		response.BadRequest(c, "Invalid auth type")
	case errors.Is(err, ErrInvalidActorType):
		response.BadRequest(c, "Invalid actor_type")
	case errors.Is(err, ErrCustomerLink):
		response.Error(c, apperrors.Internal("failed to link customer", err))
	default:
		response.Error(c, err)
	}
}
