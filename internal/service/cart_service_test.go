package service

import (
	"errors"
	"testing"
)

func TestCartGetReturnsEmptyCartWhenMissing(t *testing.T) {
	env := newServiceTestEnv(t)
	view, err := env.carts.Get(1)
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(view.Items) != 0 || view.Total.String() != "0.00" {
		t.Fatalf("expected empty cart, got %+v", view)
	}
}

func TestCartAddItemAccumulatesQuantity(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Notebook", "4.25", 3)

	if _, err := env.carts.AddItem(1, product.ID, 2); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	// 加购不校验库存
	view, err := env.carts.AddItem(1, product.ID, 5)
	if err != nil {
		t.Fatalf("add item again failed: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Quantity != 7 {
		t.Fatalf("expected single line with quantity 7, got %+v", view.Items)
	}
	if view.Items[0].Product == nil || view.Items[0].Product.Name != "Notebook" {
		t.Fatalf("expected resolved product, got %+v", view.Items[0].Product)
	}
	if view.Total.String() != "29.75" {
		t.Fatalf("unexpected total: %s", view.Total.String())
	}
}

func TestCartAddItemValidation(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Cup", "2.00", 3)

	if _, err := env.carts.AddItem(1, product.ID, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero quantity, got %v", err)
	}
	if _, err := env.carts.AddItem(1, product.ID+99, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}
}

func TestCartSetQuantityRespectsStock(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Tea", "3.00", 4)
	if _, err := env.carts.AddItem(1, product.ID, 1); err != nil {
		t.Fatalf("add item failed: %v", err)
	}

	_, err := env.carts.SetQuantity(1, product.ID, 5)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	view, _ := env.carts.Get(1)
	if view.Items[0].Quantity != 1 {
		t.Fatalf("line must stay unchanged, got %d", view.Items[0].Quantity)
	}

	view, err = env.carts.SetQuantity(1, product.ID, 4)
	if err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	if view.Items[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", view.Items[0].Quantity)
	}
}

func TestCartSetQuantityZeroRemovesLine(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Jam", "6.00", 4)
	if _, err := env.carts.AddItem(1, product.ID, 2); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	view, err := env.carts.SetQuantity(1, product.ID, 0)
	if err != nil {
		t.Fatalf("set zero quantity failed: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected line removed, got %+v", view.Items)
	}
}

func TestCartMutationsOnMissingCartOrLine(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Salt", "1.00", 4)

	if _, err := env.carts.SetQuantity(1, product.ID, 1); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
	if _, err := env.carts.RemoveItem(1, product.ID); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound on remove, got %v", err)
	}
	if _, err := env.carts.Clear(1); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound on clear, got %v", err)
	}

	other := env.createProduct(t, "Pepper", "1.00", 4)
	if _, err := env.carts.AddItem(1, other.ID, 1); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if _, err := env.carts.RemoveItem(1, product.ID); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
	if _, err := env.carts.SetQuantity(1, product.ID, 1); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound on set, got %v", err)
	}
}

func TestCartClearKeepsCart(t *testing.T) {
	env := newServiceTestEnv(t)
	product := env.createProduct(t, "Rice", "9.00", 4)
	if _, err := env.carts.AddItem(1, product.ID, 2); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	view, err := env.carts.Clear(1)
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected no items, got %+v", view.Items)
	}
	// 已清空的购物车再次清空仍然成功
	if _, err := env.carts.Clear(1); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}
}
