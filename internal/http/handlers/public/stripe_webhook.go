package public

import (
	"io"
	"strings"

	handlershared "github.com/storefront-next/internal/http/handlers/shared"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/payment/stripe"

	"github.com/gin-gonic/gin"
)

const (
	webhookMaxBodyBytes  = 1 << 20
	webhookLogValueLimit = 512
)

// StripeWebhook Stripe 回调，验签必须使用未经解析的原始请求体
func (h *Handler) StripeWebhook(c *gin.Context) {
	log := handlershared.RequestLog(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookMaxBodyBytes))
	if err != nil {
		log.Warnw("stripe_webhook_body_read_failed", "error", err)
		respondError(c, response.CodeBadRequest, "Invalid request body", nil)
		return
	}
	signature := strings.TrimSpace(c.GetHeader(stripe.SignatureHeader))
	log.Infow("stripe_webhook_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"stripe_signature", truncateLogValue(signature),
	)

	result, err := h.ReconciliationService.HandleNotification(c.Request.Context(), body, signature)
	if err != nil {
		log.Warnw("stripe_webhook_handle_failed", "error", err, "raw_body", truncateLogValue(string(body)))
		respondWebhookError(c, err)
		return
	}

	log.Infow("stripe_webhook_processed",
		"event_id", result.EventID,
		"event_type", result.EventType,
		"order_id", result.OrderID,
		"outcome", result.Outcome,
	)
	response.Success(c, gin.H{
		"received":   true,
		"event_id":   result.EventID,
		"event_type": result.EventType,
		"outcome":    result.Outcome,
	})
}

func truncateLogValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) <= webhookLogValueLimit {
		return raw
	}
	return raw[:webhookLogValueLimit] + "...(truncated)"
}
