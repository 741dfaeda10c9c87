package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxNotifyBody bounds the notification body read from the wire.
const maxNotifyBody = 1 << 20

// WebhookHandler handles WeChat Pay notifications.
type WebhookHandler struct {
	service *Service
	logger  *zap.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service *Service, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, logger: logger}
}

// RegisterRoutes registers the notify route. The path segment is the
// provider's notify id, e.g. weapp-mini_weapp-payment.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/payment/:provider", h.HandleNotify)
}

// HandleNotify handles an incoming WeChat Pay notification.
func (h *WebhookHandler) HandleNotify(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotifyBody))
	if err != nil {
		h.logger.Error("failed to read wechat notification body", zap.Error(err))
		c.JSON(http.StatusBadRequest, NotifyResponse{Code: "FAIL", Message: "failed to read body"})
		return
	}

	hookID := c.Param("provider")
	outcome, err := h.service.HandleWebhook(c.Request.Context(), hookID, WebhookPayload{
		RawData: payload,
		Headers: c.Request.Header,
	})
	status, reply := NotifyReply(err)
	if err != nil {
		h.logger.Warn("wechat notification rejected",
			zap.String("provider", hookID),
			zap.Int("status", status),
			zap.Error(err),
		)
		c.JSON(status, reply)
		return
	}

	h.logger.Info("wechat notification handled",
		zap.String("provider", hookID),
		zap.String("event_id", outcome.EventID),
		zap.String("action", string(outcome.Result.Action)),
		zap.Bool("duplicate", outcome.Duplicate),
	)
	c.JSON(status, reply)
}

// NotifyReply builds the acknowledgement for a handled notification.
// WeChat Pay retries on anything but 2xx.
func NotifyReply(err error) (int, NotifyResponse) {
	if err == nil {
		return http.StatusOK, NotifyResponse{Code: "SUCCESS", Message: "OK"}
	}
	fail := func(status int, message string) (int, NotifyResponse) {
		return status, NotifyResponse{Code: "FAIL", Message: message}
	}
	switch {
	case errors.Is(err, ErrProviderNotFound):
		return fail(http.StatusNotFound, "unknown provider")
	case errors.Is(err, ErrInvalidSignature):
		return fail(http.StatusUnauthorized, "invalid signature")
	case errors.Is(err, ErrDecryption):
		return fail(http.StatusBadRequest, "decryption failed")
	case errors.Is(err, ErrValidation):
		return fail(http.StatusBadRequest, "invalid notification")
	default:
		return fail(http.StatusInternalServerError, "internal error")
	}
}
