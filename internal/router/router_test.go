package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/payment/stripe"
	"github.com/storefront-next/internal/provider"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	flowJWTSecret     = "router-flow-secret"
	flowWebhookSecret = "whsec_router_flow"
)

// flowGateway 保留真实的回调验签，只替换创建/取消意图的网络调用
type flowGateway struct {
	*service.StripeGateway
	seq int64
}

func (g *flowGateway) CreateIntent(_ context.Context, amountMinor int64, currency string, metadata map[string]string) (*service.GatewayIntent, error) {
	n := atomic.AddInt64(&g.seq, 1)
	id := fmt.Sprintf("pi_flow_%d", n)
	return &service.GatewayIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *flowGateway) CancelIntent(context.Context, string) error {
	return nil
}

type flowEnv struct {
	engine    *gin.Engine
	container *provider.Container
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	cfg := &config.Config{
		JWT:    config.JWTConfig{SecretKey: flowJWTSecret},
		Redis:  config.RedisConfig{Prefix: "sf"},
		Stripe: config.StripeConfig{WebhookSecret: flowWebhookSecret, WebhookToleranceSeconds: 300, Currency: "usd"},
		Security: config.SecurityConfig{
			CheckoutRateLimit: config.RateLimitConfig{WindowSeconds: 60, MaxRequests: 5},
		},
	}
	gateway := &flowGateway{StripeGateway: service.NewStripeGateway(cfg.Stripe)}
	container, err := provider.NewContainer(cfg, db, provider.WithPaymentGateway(gateway))
	if err != nil {
		t.Fatalf("new container failed: %v", err)
	}
	t.Cleanup(func() {
		container.Close()
		_ = models.CloseDB(db)
	})
	return &flowEnv{engine: SetupRouter(cfg, container), container: container}
}

func (e *flowEnv) token(t *testing.T, userID uint, role string) string {
	t.Helper()
	token, _, err := service.SignUserToken(flowJWTSecret, userID, role, 1)
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	return token
}

func (e *flowEnv) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s response failed: %v body=%s", method, path, err, w.Body.String())
	}
	return w.Code, env
}

func (e *flowEnv) webhook(t *testing.T, body []byte, signature string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(stripe.SignatureHeader, signature)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode webhook response failed: %v body=%s", err, w.Body.String())
	}
	return w.Code, env
}

func TestCheckoutAndReconcileFlow(t *testing.T) {
	e := newFlowEnv(t)
	product := &models.Product{Name: "Desk Lamp", Price: models.MustMoney("19.99"), Stock: 10}
	if err := e.container.ProductRepo.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	owner := e.token(t, 1, constants.RoleUser)
	stranger := e.token(t, 2, constants.RoleUser)

	if code, _ := e.do(t, http.MethodGet, "/api/v1/products", "", nil); code != http.StatusOK {
		t.Fatalf("list products want 200 got %d", code)
	}
	if code, _ := e.do(t, http.MethodPost, "/api/v1/cart/add", "", gin.H{"productId": product.ID, "quantity": 1}); code != http.StatusUnauthorized {
		t.Fatalf("anonymous add want 401 got %d", code)
	}
	if code, env := e.do(t, http.MethodPost, "/api/v1/cart/add", owner, gin.H{"productId": product.ID, "quantity": 2}); code != http.StatusOK {
		t.Fatalf("add to cart want 200 got %d msg=%s", code, env.Msg)
	}

	code, env := e.do(t, http.MethodPost, "/api/v1/orders", owner, nil)
	if code != http.StatusCreated {
		t.Fatalf("checkout want 201 got %d msg=%s", code, env.Msg)
	}
	var checkout struct {
		Order struct {
			ID     uint   `json:"id"`
			Status string `json:"status"`
			Total  string `json:"total"`
		} `json:"order"`
		ClientSecret    string `json:"clientSecret"`
		PaymentIntentID string `json:"paymentIntentId"`
	}
	if err := json.Unmarshal(env.Data, &checkout); err != nil {
		t.Fatalf("decode checkout failed: %v", err)
	}
	if checkout.Order.Total != "39.98" || checkout.Order.Status != constants.OrderStatusPending || checkout.ClientSecret == "" {
		t.Fatalf("unexpected checkout result: %+v", checkout)
	}

	code, env = e.do(t, http.MethodGet, "/api/v1/cart", owner, nil)
	var cart struct {
		Items []interface{} `json:"items"`
	}
	_ = json.Unmarshal(env.Data, &cart)
	if code != http.StatusOK || len(cart.Items) != 0 {
		t.Fatalf("cart should be cleared after checkout, code=%d items=%d", code, len(cart.Items))
	}

	orderPath := fmt.Sprintf("/api/v1/orders/%d", checkout.Order.ID)
	if code, _ := e.do(t, http.MethodGet, orderPath, stranger, nil); code != http.StatusNotFound {
		t.Fatalf("stranger read want 404 got %d", code)
	}
	if code, _ := e.do(t, http.MethodPut, orderPath, stranger, gin.H{"status": "cancelled"}); code != http.StatusForbidden {
		t.Fatalf("stranger cancel want 403 got %d", code)
	}

	event := []byte(fmt.Sprintf(`{"id":"evt_flow_1","type":"payment_intent.succeeded","data":{"object":{"id":%q,"object":"payment_intent","amount":3998,"currency":"usd","status":"succeeded","metadata":{"orderId":"%d","userId":"1"}}}}`,
		checkout.PaymentIntentID, checkout.Order.ID))
	if code, env := e.webhook(t, event, "t=1,v1=deadbeef"); code != http.StatusBadRequest {
		t.Fatalf("forged webhook want 400 got %d msg=%s", code, env.Msg)
	}
	signature := stripe.SignPayload(flowWebhookSecret, time.Now().Unix(), event)
	if code, env := e.webhook(t, event, signature); code != http.StatusOK {
		t.Fatalf("webhook want 200 got %d msg=%s", code, env.Msg)
	}
	if code, _ := e.webhook(t, event, signature); code != http.StatusOK {
		t.Fatalf("replayed webhook want 200 got %d", code)
	}

	code, env = e.do(t, http.MethodGet, orderPath, owner, nil)
	var order struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(env.Data, &order)
	if code != http.StatusOK || order.Status != constants.OrderStatusPaid {
		t.Fatalf("order should be paid, code=%d status=%s", code, order.Status)
	}

	code, env = e.do(t, http.MethodPut, orderPath, owner, gin.H{"status": "cancelled"})
	if code != http.StatusForbidden || env.StatusCode != http.StatusForbidden {
		t.Fatalf("cancel paid order want 403 got %d (body %d)", code, env.StatusCode)
	}
	code, env = e.do(t, http.MethodGet, orderPath, owner, nil)
	_ = json.Unmarshal(env.Data, &order)
	if code != http.StatusOK || order.Status != constants.OrderStatusPaid {
		t.Fatalf("rejected cancel must leave order paid, code=%d status=%s", code, order.Status)
	}

	code, env = e.do(t, http.MethodGet, "/api/v1/orders?status=paid", owner, nil)
	var paidOrders []struct {
		ID uint `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &paidOrders)
	if code != http.StatusOK || len(paidOrders) != 1 || paidOrders[0].ID != checkout.Order.ID {
		t.Fatalf("status filter should return the paid order, code=%d orders=%+v", code, paidOrders)
	}
	if code, _ := e.do(t, http.MethodGet, "/api/v1/orders?status=shipped", owner, nil); code != http.StatusBadRequest {
		t.Fatalf("unknown status filter want 400 got %d", code)
	}

	code, env = e.do(t, http.MethodGet, orderPath+"/history", owner, nil)
	var history []struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Source string `json:"source"`
	}
	_ = json.Unmarshal(env.Data, &history)
	if code != http.StatusOK || len(history) != 2 || history[1].Source != constants.TransitionSourceGateway {
		t.Fatalf("unexpected history code=%d entries=%+v", code, history)
	}
}

func TestCheckoutEmptyCartAndUnknownProduct(t *testing.T) {
	e := newFlowEnv(t)
	owner := e.token(t, 3, constants.RoleUser)

	if code, _ := e.do(t, http.MethodPost, "/api/v1/orders", owner, nil); code != http.StatusBadRequest {
		t.Fatalf("empty cart checkout want 400 got %d", code)
	}
	if code, _ := e.do(t, http.MethodPost, "/api/v1/cart/add", owner, gin.H{"productId": 999, "quantity": 1}); code != http.StatusNotFound {
		t.Fatalf("unknown product want 404 got %d", code)
	}
	if code, _ := e.do(t, http.MethodPut, "/api/v1/cart/item/999", owner, gin.H{"quantity": 1}); code != http.StatusNotFound {
		t.Fatalf("update on missing cart want 404 got %d", code)
	}
	if code, _ := e.do(t, http.MethodGet, "/api/v1/orders/abc", owner, nil); code != http.StatusBadRequest {
		t.Fatalf("invalid order id want 400 got %d", code)
	}
}

func TestAdminOverridesOrderStatus(t *testing.T) {
	e := newFlowEnv(t)
	product := &models.Product{Name: "Chair", Price: models.MustMoney("50.00"), Stock: 3}
	if err := e.container.ProductRepo.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	owner := e.token(t, 4, constants.RoleUser)
	admin := e.token(t, 100, constants.RoleAdmin)
	if code, _ := e.do(t, http.MethodPost, "/api/v1/cart/add", owner, gin.H{"productId": product.ID, "quantity": 1}); code != http.StatusOK {
		t.Fatalf("add to cart failed: %d", code)
	}
	code, env := e.do(t, http.MethodPost, "/api/v1/orders", owner, nil)
	if code != http.StatusCreated {
		t.Fatalf("checkout failed: %d %s", code, env.Msg)
	}
	var checkout struct {
		Order struct {
			ID uint `json:"id"`
		} `json:"order"`
	}
	_ = json.Unmarshal(env.Data, &checkout)
	orderPath := fmt.Sprintf("/api/v1/orders/%d", checkout.Order.ID)

	if code, _ := e.do(t, http.MethodGet, orderPath, admin, nil); code != http.StatusOK {
		t.Fatalf("admin read want 200 got %d", code)
	}
	if code, _ := e.do(t, http.MethodPut, orderPath, owner, gin.H{"status": "paid"}); code != http.StatusForbidden {
		t.Fatalf("user set paid want 403 got %d", code)
	}
	if code, _ := e.do(t, http.MethodPut, orderPath, admin, gin.H{"status": "shipped"}); code != http.StatusBadRequest {
		t.Fatalf("unknown status want 400 got %d", code)
	}
	code, env = e.do(t, http.MethodPut, orderPath, admin, gin.H{"status": "paid"})
	if code != http.StatusOK {
		t.Fatalf("admin override want 200 got %d msg=%s", code, env.Msg)
	}
}
