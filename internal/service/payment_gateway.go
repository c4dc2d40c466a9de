package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/payment/stripe"
)

// PaymentGateway 支付网关能力
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*GatewayIntent, error)
	CancelIntent(ctx context.Context, intentID string) error
	VerifyNotification(payload []byte, signatureHeader string) (*GatewayEvent, error)
}

const gatewayObjectPaymentIntent = "payment_intent"

// GatewayIntent 网关支付意图
type GatewayIntent struct {
	ID           string
	ClientSecret string
}

// GatewayEvent 验签后的网关事件
type GatewayEvent struct {
	ID          string
	Type        string
	ObjectType  string
	IntentID    string
	Status      string // 归一化后的支付状态（success/failed/cancelled/pending），缺失为空
	Currency    string
	AmountMinor int64
	Amount      string
	Metadata    map[string]string
	Raw         map[string]interface{}
}

// ConfirmsOutcome 事件携带的支付对象与目标订单状态一致
func (e *GatewayEvent) ConfirmsOutcome(target string) bool {
	if e == nil {
		return false
	}
	if e.ObjectType != "" && e.ObjectType != gatewayObjectPaymentIntent {
		return false
	}
	if e.Status == "" {
		return true
	}
	return e.Status == paymentStatusForOrder(target)
}

// OrderID 从 metadata.orderId 解析订单 ID，缺失或非法返回 0
func (e *GatewayEvent) OrderID() uint {
	if e == nil {
		return 0
	}
	raw := strings.TrimSpace(e.Metadata["orderId"])
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// StripeGateway Stripe PaymentIntents 适配器
type StripeGateway struct {
	client *stripe.Client
	now    func() time.Time
}

// NewStripeGateway 根据配置创建 Stripe 适配器
func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &StripeGateway{
		client: stripe.NewClient(stripe.Config{
			SecretKey:               cfg.SecretKey,
			WebhookSecret:           cfg.WebhookSecret,
			APIBaseURL:              cfg.APIBaseURL,
			WebhookToleranceSeconds: cfg.WebhookToleranceSeconds,
			Timeout:                 timeout,
		}),
		now: time.Now,
	}
}

// CreateIntent 创建支付意图
func (g *StripeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*GatewayIntent, error) {
	intent, err := g.client.CreatePaymentIntent(ctx, stripe.CreateIntentInput{
		AmountMinor: amountMinor,
		Currency:    currency,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, mapStripeGatewayError(err)
	}
	return &GatewayIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// CancelIntent 取消支付意图
func (g *StripeGateway) CancelIntent(ctx context.Context, intentID string) error {
	if _, err := g.client.CancelPaymentIntent(ctx, intentID); err != nil {
		return mapStripeGatewayError(err)
	}
	return nil
}

// VerifyNotification 校验并解析回调，payload 必须是原始请求体
func (g *StripeGateway) VerifyNotification(payload []byte, signatureHeader string) (*GatewayEvent, error) {
	event, err := g.client.VerifyAndParseWebhook(signatureHeader, payload, g.now())
	if err != nil {
		return nil, mapStripeGatewayError(err)
	}
	return &GatewayEvent{
		ID:          event.ID,
		Type:        event.Type,
		ObjectType:  event.ObjectType,
		IntentID:    event.PaymentIntentID,
		Status:      event.Status,
		Currency:    event.Currency,
		AmountMinor: event.AmountMinor,
		Amount:      event.Amount,
		Metadata:    event.Metadata,
		Raw:         event.Raw,
	}, nil
}

func mapStripeGatewayError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stripe.ErrSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, stripe.ErrPayloadMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	case errors.Is(err, stripe.ErrConfigInvalid) && strings.Contains(err.Error(), "webhook_secret"):
		// 未配置回调密钥时所有回调均视为验签失败
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
}
