package service

import (
	"errors"
	"testing"

	"github.com/storefront-next/internal/constants"
)

func TestUserCancelsOwnPendingOrder(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Bag", "30.00", 5)
	order := env.createPendingOrder(t, 1, product, 1)

	updated, err := env.orders.UpdateStatus(Actor{ID: 1, Role: constants.RoleUser}, order.ID, constants.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if updated.Status != constants.OrderStatusCancelled || updated.CancelledAt == nil {
		t.Fatalf("expected cancelled order with timestamp, got %+v", updated)
	}

	logs, err := env.orders.ListStatusLogs(Actor{ID: 1, Role: constants.RoleUser}, order.ID)
	if err != nil {
		t.Fatalf("list logs failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected creation and cancel logs, got %+v", logs)
	}
	last := logs[1]
	if last.FromStatus != constants.OrderStatusPending || last.ToStatus != constants.OrderStatusCancelled || last.Source != constants.TransitionSourceUser {
		t.Fatalf("unexpected log: %+v", last)
	}
}

func TestUserCannotCancelForeignOrder(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Bag", "30.00", 5)
	order := env.createPendingOrder(t, 1, product, 1)

	_, err := env.orders.UpdateStatus(Actor{ID: 2, Role: constants.RoleUser}, order.ID, constants.OrderStatusCancelled)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if got := env.reloadOrder(t, order.ID).Status; got != constants.OrderStatusPending {
		t.Fatalf("status must stay pending, got %s", got)
	}
}

func TestUserCannotRequestNonCancelStatus(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Bag", "30.00", 5)
	order := env.createPendingOrder(t, 1, product, 1)

	_, err := env.orders.UpdateStatus(Actor{ID: 1, Role: constants.RoleUser}, order.ID, constants.OrderStatusPaid)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestUserCannotCancelTerminalOrder(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Bag", "30.00", 5)
	order := env.createPendingOrder(t, 1, product, 1)
	if _, err := env.orders.ApplyGatewayOutcome(order.ID, constants.OrderStatusPaid, "test"); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	_, err := env.orders.UpdateStatus(Actor{ID: 1, Role: constants.RoleUser}, order.ID, constants.OrderStatusCancelled)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if got := env.reloadOrder(t, order.ID).Status; got != constants.OrderStatusPaid {
		t.Fatalf("status must stay paid, got %s", got)
	}
}

func TestUnknownStatusIsInvalidInput(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Bag", "30.00", 5)
	order := env.createPendingOrder(t, 1, product, 1)

	_, err := env.orders.UpdateStatus(Actor{ID: 1, Role: constants.RoleAdmin}, order.ID, "shipped")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAdminOverridesAnyStatus(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Bag", "30.00", 5)
	order := env.createPendingOrder(t, 1, product, 1)
	admin := Actor{ID: 99, Role: constants.RoleAdmin}

	if _, err := env.orders.UpdateStatus(admin, order.ID, constants.OrderStatusFailed); err != nil {
		t.Fatalf("admin set failed: %v", err)
	}
	updated, err := env.orders.UpdateStatus(admin, order.ID, constants.OrderStatusPaid)
	if err != nil {
		t.Fatalf("admin override from terminal failed: %v", err)
	}
	if updated.Status != constants.OrderStatusPaid {
		t.Fatalf("expected paid, got %s", updated.Status)
	}

	logs, _ := env.orders.ListStatusLogs(admin, order.ID)
	if logs[len(logs)-1].Source != constants.TransitionSourceAdmin || logs[len(logs)-1].ActorID != 99 {
		t.Fatalf("unexpected admin log: %+v", logs[len(logs)-1])
	}
}

func TestGatewayOutcomeIsIdempotent(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Bag", "30.00", 5)
	order := env.createPendingOrder(t, 1, product, 1)

	first, err := env.orders.ApplyGatewayOutcome(order.ID, constants.OrderStatusPaid, "evt")
	if err != nil || !first.Applied {
		t.Fatalf("first apply failed: result=%+v err=%v", first, err)
	}
	if first.Order.PaidAt == nil {
		t.Fatalf("expected paid_at to be set")
	}
	second, err := env.orders.ApplyGatewayOutcome(order.ID, constants.OrderStatusPaid, "evt")
	if err != nil {
		t.Fatalf("replay should be a no-op, got %v", err)
	}
	if second.Applied {
		t.Fatalf("replay must not apply again")
	}

	_, err = env.orders.ApplyGatewayOutcome(order.ID, constants.OrderStatusFailed, "evt2")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for conflicting outcome, got %v", err)
	}
	_, err = env.orders.ApplyGatewayOutcome(order.ID, constants.OrderStatusCancelled, "evt3")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("gateway must not cancel, got %v", err)
	}
}

func TestGatewayActorCannotUseUpdateStatus(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Bag", "30.00", 5)
	order := env.createPendingOrder(t, 1, product, 1)

	if _, err := env.orders.UpdateStatus(GatewayActor(), order.ID, constants.OrderStatusPaid); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGetForActorHidesForeignOrders(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Bag", "30.00", 5)
	order := env.createPendingOrder(t, 1, product, 2)

	if _, err := env.orders.GetForActor(Actor{ID: 2, Role: constants.RoleUser}, order.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign user, got %v", err)
	}
	loaded, err := env.orders.GetForActor(Actor{ID: 50, Role: constants.RoleAdmin}, order.ID)
	if err != nil {
		t.Fatalf("admin read failed: %v", err)
	}
	if loaded.Total.String() != "60.00" || len(loaded.Items) != 1 {
		t.Fatalf("unexpected order: %+v", loaded)
	}
	if _, err := env.orders.GetForActor(Actor{ID: 1, Role: constants.RoleUser}, order.ID+10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing order, got %v", err)
	}
}

func TestGetForActorRequiresReadOwnPolicy(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Bag", "30.00", 5)
	order := env.createPendingOrder(t, 8, product, 1)

	if _, err := env.orders.GetForActor(Actor{ID: 8, Role: constants.RoleUser}, order.ID); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
	// 角色没有 read_own 授权时，即使是本人订单也视为不存在
	for _, role := range []string{"GUEST", ""} {
		if _, err := env.orders.GetForActor(Actor{ID: 8, Role: role}, order.ID); !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("role %q: expected ErrOrderNotFound, got %v", role, err)
		}
		if _, err := env.orders.ListStatusLogs(Actor{ID: 8, Role: role}, order.ID); !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("role %q: expected history hidden, got %v", role, err)
		}
	}
}

func TestListByUserPaginatesNewestFirst(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Bag", "30.00", 5)
	var ids []uint
	for i := 0; i < 3; i++ {
		ids = append(ids, env.createPendingOrder(t, 4, product, 1).ID)
	}

	orders, total, err := env.orders.ListByUser(4, OrderListInput{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 || len(orders) != 2 {
		t.Fatalf("unexpected page: total=%d len=%d", total, len(orders))
	}
	if orders[0].ID != ids[2] || orders[1].ID != ids[1] {
		t.Fatalf("expected newest first, got %d, %d", orders[0].ID, orders[1].ID)
	}
}

func TestListByUserFiltersByStatus(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Bag", "30.00", 5)
	pending := env.createPendingOrder(t, 5, product, 1)
	cancelled := env.createPendingOrder(t, 5, product, 1)
	if _, err := env.orders.UpdateStatus(Actor{ID: 5, Role: constants.RoleUser}, cancelled.ID, constants.OrderStatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	orders, total, err := env.orders.ListByUser(5, OrderListInput{Status: " Cancelled "})
	if err != nil {
		t.Fatalf("list cancelled failed: %v", err)
	}
	if total != 1 || len(orders) != 1 || orders[0].ID != cancelled.ID {
		t.Fatalf("expected only cancelled order, got total=%d orders=%+v", total, orders)
	}
	orders, _, err = env.orders.ListByUser(5, OrderListInput{Status: constants.OrderStatusPending})
	if err != nil || len(orders) != 1 || orders[0].ID != pending.ID {
		t.Fatalf("expected only pending order, got orders=%+v err=%v", orders, err)
	}
	if _, _, err := env.orders.ListByUser(5, OrderListInput{Status: "shipped"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown status, got %v", err)
	}
}
