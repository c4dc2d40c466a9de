package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid    = errors.New("stripe config invalid")
	ErrAmountInvalid    = errors.New("stripe amount invalid")
	ErrRequestFailed    = errors.New("stripe request failed")
	ErrResponseInvalid  = errors.New("stripe response invalid")
	ErrSignatureInvalid = errors.New("stripe signature invalid")
	ErrPayloadMalformed = errors.New("stripe payload malformed")
)

const (
	defaultAPIBaseURL        = "https://api.stripe.com"
	defaultTimeout           = 12 * time.Second
	defaultWebhookToleranceS = 300

	// SignatureHeader Stripe webhook 签名头
	SignatureHeader = "Stripe-Signature"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {},
	"CLP": {},
	"DJF": {},
	"GNF": {},
	"JPY": {},
	"KMF": {},
	"KRW": {},
	"MGA": {},
	"PYG": {},
	"RWF": {},
	"UGX": {},
	"VND": {},
	"VUV": {},
	"XAF": {},
	"XOF": {},
	"XPF": {},
}

// Config Stripe 网关配置。
type Config struct {
	SecretKey               string
	WebhookSecret           string
	APIBaseURL              string
	WebhookToleranceSeconds int
	Timeout                 time.Duration
}

// CreateIntentInput 创建 PaymentIntent 输入，金额为最小货币单位。
type CreateIntentInput struct {
	AmountMinor int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// PaymentIntent PaymentIntent 接口返回。
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
	Raw          map[string]interface{}
}

// WebhookEvent 验签后的 webhook 事件。
type WebhookEvent struct {
	ID              string
	Type            string
	ObjectType      string
	PaymentIntentID string
	Status          string
	AmountMinor     int64
	Amount          string
	Currency        string
	Metadata        map[string]string
	Raw             map[string]interface{}
}

// Client Stripe PaymentIntents 客户端。
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建客户端，未设置的字段使用默认值。
func NewClient(cfg Config) *Client {
	cfg.normalize()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ValidateConfig 校验调用网关所需配置。
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return fmt.Errorf("%w: api_base_url is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(cfg.APIBaseURL)); err != nil {
		return fmt.Errorf("%w: api_base_url is invalid", ErrConfigInvalid)
	}
	return nil
}

// CreatePaymentIntent 创建 PaymentIntent，仅允许无跳转的自动支付方式。
func (c *Client) CreatePaymentIntent(ctx context.Context, input CreateIntentInput) (*PaymentIntent, error) {
	if err := ValidateConfig(c.cfg); err != nil {
		return nil, err
	}
	if input.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrAmountInvalid)
	}
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrConfigInvalid)
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(input.AmountMinor, 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")
	if description := strings.TrimSpace(input.Description); description != "" {
		form.Set("description", description)
	}
	keys := make([]string, 0, len(input.Metadata))
	for key := range input.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		form.Set("metadata["+key+"]", input.Metadata[key])
	}

	respBody, statusCode, err := c.doFormRequest(ctx, http.MethodPost, "/v1/payment_intents", form)
	if err != nil {
		return nil, err
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: create payment intent status %d: %s", ErrResponseInvalid, statusCode, readErrorMessage(respBody))
	}
	intent, err := decodePaymentIntent(respBody)
	if err != nil {
		return nil, err
	}
	if intent.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", ErrResponseInvalid)
	}
	return intent, nil
}

// CancelPaymentIntent 取消 PaymentIntent。
func (c *Client) CancelPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	if err := ValidateConfig(c.cfg); err != nil {
		return nil, err
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, fmt.Errorf("%w: intent id is required", ErrConfigInvalid)
	}
	path := fmt.Sprintf("/v1/payment_intents/%s/cancel", url.PathEscape(intentID))
	respBody, statusCode, err := c.doFormRequest(ctx, http.MethodPost, path, url.Values{})
	if err != nil {
		return nil, err
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: cancel payment intent status %d: %s", ErrResponseInvalid, statusCode, readErrorMessage(respBody))
	}
	return decodePaymentIntent(respBody)
}

// VerifyAndParseWebhook 使用原始请求体校验签名并解析事件。
func (c *Client) VerifyAndParseWebhook(signatureHeader string, body []byte, now time.Time) (*WebhookEvent, error) {
	return VerifyAndParseWebhook(c.cfg.WebhookSecret, c.cfg.WebhookToleranceSeconds, signatureHeader, body, now)
}

// VerifyAndParseWebhook 校验 t=...,v1=... 签名（HMAC-SHA256 覆盖 "t." + body）后解析事件。
func VerifyAndParseWebhook(secret string, toleranceSeconds int, signatureHeader string, body []byte, now time.Time) (*WebhookEvent, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: body is empty", ErrPayloadMalformed)
	}
	if now.IsZero() {
		now = time.Now()
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrSignatureInvalid, SignatureHeader)
	}
	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, err
	}
	if toleranceSeconds > 0 {
		delta := math.Abs(float64(now.Unix() - timestamp))
		if delta > float64(toleranceSeconds) {
			return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
		}
	}

	expected := computeSignature(secret, timestamp, body)
	matched := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}

	eventRaw, err := decodeRawMap(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadMalformed, err)
	}
	event := &WebhookEvent{
		ID:   strings.TrimSpace(readString(eventRaw, "id")),
		Type: strings.TrimSpace(readString(eventRaw, "type")),
		Raw:  eventRaw,
	}
	if event.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrPayloadMalformed)
	}
	objectRaw := readMap(readMap(eventRaw, "data"), "object")
	if objectRaw == nil {
		return nil, fmt.Errorf("%w: missing event object", ErrPayloadMalformed)
	}
	fillWebhookEvent(event, objectRaw)
	return event, nil
}

// SignPayload 生成 Stripe-Signature 头，用于本地联调与测试。
func SignPayload(secret string, timestamp int64, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, computeSignature(secret, timestamp, body))
}

// FromMinorAmount 最小货币单位转换为金额字符串。
func FromMinorAmount(minor int64, currency string) string {
	scale := currencyScale(currency)
	return decimal.NewFromInt(minor).Shift(int32(-scale)).StringFixed(int32(scale))
}

func fillWebhookEvent(event *WebhookEvent, objectRaw map[string]interface{}) {
	event.ObjectType = strings.TrimSpace(readString(objectRaw, "object"))
	event.Metadata = readStringMap(readMap(objectRaw, "metadata"))
	if event.ObjectType == "payment_intent" {
		event.PaymentIntentID = strings.TrimSpace(readString(objectRaw, "id"))
	}
	event.Currency = strings.ToLower(strings.TrimSpace(readString(objectRaw, "currency")))
	event.AmountMinor = readInt64(objectRaw, "amount_received")
	if event.AmountMinor <= 0 {
		event.AmountMinor = readInt64(objectRaw, "amount")
	}
	if event.AmountMinor > 0 && event.Currency != "" {
		event.Amount = FromMinorAmount(event.AmountMinor, event.Currency)
	}
	event.Status = mapPaymentIntentStatus(readString(objectRaw, "status"))
}

// mapPaymentIntentStatus 状态缺失时返回空串
func mapPaymentIntentStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "":
		return ""
	case "succeeded":
		return "success"
	case "canceled":
		return "cancelled"
	case "requires_payment_method":
		return "failed"
	default:
		return "pending"
	}
}

func (c *Config) normalize() {
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.WebhookToleranceSeconds <= 0 {
		c.WebhookToleranceSeconds = defaultWebhookToleranceS
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

func currencyScale(currency string) int {
	upper := strings.ToUpper(strings.TrimSpace(currency))
	if _, ok := zeroDecimalCurrencies[upper]; ok {
		return 0
	}
	return 2
}

func (c *Client) doFormRequest(ctx context.Context, method, path string, form url.Values) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.cfg.APIBaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	return body, resp.StatusCode, nil
}

func decodePaymentIntent(body []byte) (*PaymentIntent, error) {
	raw, err := decodeRawMap(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	intent := &PaymentIntent{
		ID:           strings.TrimSpace(readString(raw, "id")),
		ClientSecret: strings.TrimSpace(readString(raw, "client_secret")),
		Status:       strings.TrimSpace(readString(raw, "status")),
		AmountMinor:  readInt64(raw, "amount"),
		Currency:     strings.ToLower(strings.TrimSpace(readString(raw, "currency"))),
		Raw:          raw,
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("%w: missing payment intent id", ErrResponseInvalid)
	}
	return intent, nil
}

func readErrorMessage(body []byte) string {
	raw, err := decodeRawMap(body)
	if err != nil {
		return "unreadable error body"
	}
	if message := readString(readMap(raw, "error"), "message"); message != "" {
		return message
	}
	return "unknown error"
}

func decodeRawMap(body []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.New("decode json failed")
	}
	return raw, nil
}

func computeSignature(secret string, timestamp int64, body []byte) string {
	payload := strconv.FormatInt(timestamp, 10) + "." + string(body)
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(payload))
	return strings.ToLower(hex.EncodeToString(h.Sum(nil)))
}

func parseSignatureHeader(signatureHeader string) (int64, []string, error) {
	timestamp := int64(0)
	signatures := make([]string, 0)
	parts := strings.Split(signatureHeader, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil || parsed <= 0 {
				return 0, nil, fmt.Errorf("%w: invalid timestamp", ErrSignatureInvalid)
			}
			timestamp = parsed
		case "v1":
			if value != "" {
				signatures = append(signatures, strings.ToLower(value))
			}
		}
	}
	if timestamp <= 0 {
		return 0, nil, fmt.Errorf("%w: timestamp is missing", ErrSignatureInvalid)
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: v1 signature is missing", ErrSignatureInvalid)
	}
	return timestamp, signatures, nil
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil || strings.TrimSpace(key) == "" {
		return ""
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	case int64:
		return strconv.FormatInt(typed, 10)
	case int:
		return strconv.Itoa(typed)
	default:
		return ""
	}
}

func readMap(raw map[string]interface{}, key string) map[string]interface{} {
	if raw == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	mapped, ok := raw[key].(map[string]interface{})
	if !ok {
		return nil
	}
	return mapped
}

func readStringMap(raw map[string]interface{}) map[string]string {
	result := make(map[string]string, len(raw))
	for key := range raw {
		if value := readString(raw, key); value != "" {
			result[key] = value
		}
	}
	return result
}

func readInt64(raw map[string]interface{}, key string) int64 {
	if raw == nil || strings.TrimSpace(key) == "" {
		return 0
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return 0
	}
	switch typed := value.(type) {
	case int64:
		return typed
	case int:
		return int64(typed)
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatVal, err := typed.Float64()
		if err != nil {
			return 0
		}
		return int64(floatVal)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
