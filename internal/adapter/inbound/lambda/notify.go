// Package lambda exposes the WeChat Pay notification receiver as an AWS
// Lambda handler behind API Gateway.
package lambda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/weappkit/server/internal/module/payment"
	"go.uber.org/zap"
)

// WebhookProcessor consumes a provider notification.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, hookID string, payload payment.WebhookPayload) (*payment.WebhookOutcome, error)
}

// NotifyHandler adapts API Gateway proxy events to WebhookProcessor.
type NotifyHandler struct {
	processor WebhookProcessor
	logger    *zap.Logger
}

// NewNotifyHandler creates a new notification handler.
func NewNotifyHandler(processor WebhookProcessor, logger *zap.Logger) *NotifyHandler {
	return &NotifyHandler{processor: processor, logger: logger}
}

// Handle implements the AWS Lambda handler entry point. Notification
// failures are reported through the status code so WeChat Pay retries;
// the returned error is reserved for responses that cannot be encoded.
func (h *NotifyHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	hookID := req.PathParameters["provider"]
	log := h.logger.With(
		zap.String("provider", hookID),
		zap.String("request_id", req.RequestContext.RequestID),
	)

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			log.Warn("undecodable notification body", zap.Error(err))
			return reply(http.StatusBadRequest, payment.NotifyResponse{Code: "FAIL", Message: "failed to read body"})
		}
		body = decoded
	}

	outcome, err := h.processor.HandleWebhook(ctx, hookID, payment.WebhookPayload{
		RawData: body,
		Headers: headersOf(req),
	})
	status, ack := payment.NotifyReply(err)
	if err != nil {
		log.Warn("wechat notification rejected", zap.Int("status", status), zap.Error(err))
		return reply(status, ack)
	}

	log.Info("wechat notification handled",
		zap.String("event_id", outcome.EventID),
		zap.String("action", string(outcome.Result.Action)),
		zap.Bool("duplicate", outcome.Duplicate),
	)
	return reply(status, ack)
}

func headersOf(req events.APIGatewayProxyRequest) http.Header {
	h := make(http.Header, len(req.Headers)+len(req.MultiValueHeaders))
	for k, values := range req.MultiValueHeaders {
		for _, v := range values {
			h.Add(k, v)
		}
	}
	for k, v := range req.Headers {
		if h.Get(k) == "" {
			h.Set(k, v)
		}
	}
	return h
}

func reply(status int, body payment.NotifyResponse) (events.APIGatewayProxyResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(raw),
	}, nil
}
