package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestCreatePaymentIntentSendsFormAndParsesResult(t *testing.T) {
	var captured url.Values
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		authHeader = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		captured, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret_abc","status":"requires_payment_method","amount":2599,"currency":"usd"}`))
	}))
	defer server.Close()

	client := NewClient(Config{SecretKey: "sk_test_123", APIBaseURL: server.URL})
	intent, err := client.CreatePaymentIntent(context.Background(), CreateIntentInput{
		AmountMinor: 2599,
		Currency:    "USD",
		Metadata:    map[string]string{"orderId": "42", "userId": "7"},
	})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if intent.ID != "pi_123" || intent.ClientSecret != "pi_123_secret_abc" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if authHeader != "Bearer sk_test_123" {
		t.Fatalf("unexpected auth header: %s", authHeader)
	}
	expected := map[string]string{
		"amount":                                     "2599",
		"currency":                                   "usd",
		"automatic_payment_methods[enabled]":         "true",
		"automatic_payment_methods[allow_redirects]": "never",
		"metadata[orderId]":                          "42",
		"metadata[userId]":                           "7",
	}
	for key, want := range expected {
		if got := captured.Get(key); got != want {
			t.Fatalf("form %s want %q got %q", key, want, got)
		}
	}
}

func TestCreatePaymentIntentRejectsNonPositiveAmount(t *testing.T) {
	client := NewClient(Config{SecretKey: "sk_test_123"})
	_, err := client.CreatePaymentIntent(context.Background(), CreateIntentInput{AmountMinor: 0, Currency: "usd"})
	if !errors.Is(err, ErrAmountInvalid) {
		t.Fatalf("expected ErrAmountInvalid, got %v", err)
	}
}

func TestCreatePaymentIntentSurfacesGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"Your card was declined."}}`))
	}))
	defer server.Close()

	client := NewClient(Config{SecretKey: "sk_test_123", APIBaseURL: server.URL})
	_, err := client.CreatePaymentIntent(context.Background(), CreateIntentInput{AmountMinor: 100, Currency: "usd"})
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid, got %v", err)
	}
}

func TestCreatePaymentIntentRequiresSecretKey(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.CreatePaymentIntent(context.Background(), CreateIntentInput{AmountMinor: 100, Currency: "usd"})
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestCancelPaymentIntentHitsCancelEndpoint(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"id":"pi_9","status":"canceled"}`))
	}))
	defer server.Close()

	client := NewClient(Config{SecretKey: "sk_test_123", APIBaseURL: server.URL})
	intent, err := client.CancelPaymentIntent(context.Background(), "pi_9")
	if err != nil {
		t.Fatalf("cancel intent failed: %v", err)
	}
	if path != "/v1/payment_intents/pi_9/cancel" {
		t.Fatalf("unexpected path: %s", path)
	}
	if intent.Status != "canceled" {
		t.Fatalf("unexpected status: %s", intent.Status)
	}
}

func buildIntentEvent(t *testing.T, eventType string) []byte {
	t.Helper()
	payload := map[string]interface{}{
		"id":   "evt_test_1",
		"type": eventType,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"object":   "payment_intent",
				"id":       "pi_test_123",
				"status":   "succeeded",
				"currency": "usd",
				"amount":   1288,
				"metadata": map[string]interface{}{
					"orderId": "1001",
					"userId":  "5",
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	return body
}

func TestVerifyAndParseWebhookPaymentIntentSucceeded(t *testing.T) {
	now := time.Unix(1760000000, 0)
	body := buildIntentEvent(t, "payment_intent.succeeded")
	header := SignPayload("whsec_test_abc", now.Unix(), body)

	event, err := VerifyAndParseWebhook("whsec_test_abc", 300, header, body, now)
	if err != nil {
		t.Fatalf("verify webhook failed: %v", err)
	}
	if event.ID != "evt_test_1" || event.Type != "payment_intent.succeeded" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.PaymentIntentID != "pi_test_123" {
		t.Fatalf("unexpected intent id: %s", event.PaymentIntentID)
	}
	if event.Metadata["orderId"] != "1001" {
		t.Fatalf("unexpected metadata: %+v", event.Metadata)
	}
	if event.Amount != "12.88" || event.Status != "success" {
		t.Fatalf("unexpected amount/status: %s %s", event.Amount, event.Status)
	}
}

func TestVerifyAndParseWebhookRejectsTamperedBody(t *testing.T) {
	now := time.Unix(1760000000, 0)
	body := buildIntentEvent(t, "payment_intent.succeeded")
	header := SignPayload("whsec_test_abc", now.Unix(), body)
	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = ' '

	_, err := VerifyAndParseWebhook("whsec_test_abc", 300, header, tampered, now)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifyAndParseWebhookRejectsWrongSecretAndStaleTimestamp(t *testing.T) {
	now := time.Unix(1760000000, 0)
	body := buildIntentEvent(t, "payment_intent.succeeded")

	header := SignPayload("whsec_other", now.Unix(), body)
	if _, err := VerifyAndParseWebhook("whsec_test_abc", 300, header, body, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for wrong secret, got %v", err)
	}

	stale := SignPayload("whsec_test_abc", now.Add(-10*time.Minute).Unix(), body)
	if _, err := VerifyAndParseWebhook("whsec_test_abc", 300, stale, body, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for stale timestamp, got %v", err)
	}

	if _, err := VerifyAndParseWebhook("whsec_test_abc", 300, "", body, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for missing header, got %v", err)
	}
}

func TestVerifyAndParseWebhookMalformedPayload(t *testing.T) {
	now := time.Unix(1760000000, 0)
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	header := SignPayload("whsec_test_abc", now.Unix(), body)

	_, err := VerifyAndParseWebhook("whsec_test_abc", 300, header, body, now)
	if !errors.Is(err, ErrPayloadMalformed) {
		t.Fatalf("expected ErrPayloadMalformed, got %v", err)
	}

	notJSON := []byte("not-json")
	header = SignPayload("whsec_test_abc", now.Unix(), notJSON)
	if _, err := VerifyAndParseWebhook("whsec_test_abc", 300, header, notJSON, now); !errors.Is(err, ErrPayloadMalformed) {
		t.Fatalf("expected ErrPayloadMalformed for invalid json, got %v", err)
	}
}

func TestMapPaymentIntentStatus(t *testing.T) {
	if got := mapPaymentIntentStatus("succeeded"); got != "success" {
		t.Fatalf("expected success, got %s", got)
	}
	if got := mapPaymentIntentStatus("processing"); got != "pending" {
		t.Fatalf("expected pending, got %s", got)
	}
	if got := mapPaymentIntentStatus("requires_payment_method"); got != "failed" {
		t.Fatalf("expected failed, got %s", got)
	}
	if got := mapPaymentIntentStatus(" "); got != "" {
		t.Fatalf("expected empty status for missing value, got %s", got)
	}
}

func TestFromMinorAmountZeroDecimalCurrency(t *testing.T) {
	if got := FromMinorAmount(1500, "jpy"); got != "1500" {
		t.Fatalf("expected 1500, got %s", got)
	}
	if got := FromMinorAmount(1500, "usd"); got != "15.00" {
		t.Fatalf("expected 15.00, got %s", got)
	}
}
