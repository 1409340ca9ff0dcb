package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storage"
	"github.com/shopspring/decimal"
)

func TestNotifier_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	n := NewNotifier(kv, nil)
	n.now = func() time.Time { return time.UnixMilli(1700000000000) }

	if err := n.ItemAdded(ctx, model.Product{ID: 7, Title: "Lipstick"}); err != nil {
		t.Fatalf("ItemAdded() error: %v", err)
	}

	note, ok := n.Consume(ctx)
	if !ok {
		t.Fatal("expected notification")
	}
	if note.ID != 7 || note.Message != "Lipstick added to cart" || note.Timestamp != 1700000000000 {
		t.Errorf("unexpected notification: %+v", note)
	}

	if _, ok := n.Consume(ctx); ok {
		t.Error("expected notification to be consumed")
	}
}

func TestNotifier_ConsumeMalformedIsDiscarded(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	_ = kv.Set(ctx, NotificationKey, []byte("not json"))

	n := NewNotifier(kv, nil)
	if _, ok := n.Consume(ctx); ok {
		t.Error("expected no notification")
	}
	if _, err := kv.Get(ctx, NotificationKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected malformed notification deleted, got %v", err)
	}
}

func TestAddProduct_AddsDiscountedItemAndNotifies(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s := NewStore(kv, nil)
	n := NewNotifier(kv, nil)

	p := model.Product{ID: 1, Title: "Mascara", Price: 20, DiscountPercentage: 10, Category: "beauty", Stock: 10}
	c, err := AddProduct(ctx, s, n, p, 3)
	if err != nil {
		t.Fatalf("AddProduct() error: %v", err)
	}

	if len(c.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(c.Items))
	}
	if !c.Items[0].Price.Equal(decimal.NewFromInt(18)) {
		t.Errorf("price = %s, want 18", c.Items[0].Price)
	}
	if c.Items[0].Quantity != 3 || c.ItemCount != 3 {
		t.Errorf("quantity = %d, itemCount = %d, want 3 and 3", c.Items[0].Quantity, c.ItemCount)
	}
	if !c.Total.Equal(decimal.NewFromInt(54)) {
		t.Errorf("total = %s, want 54", c.Total)
	}
	if note, ok := n.Consume(ctx); !ok || note.Message != "Mascara added to cart" {
		t.Errorf("unexpected notification: %+v, %v", note, ok)
	}
}

func TestAddProduct_NotificationFailureKeepsItem(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemoryStore(), nil)
	n := NewNotifier(&mockKV{
		setFn: func(ctx context.Context, key string, value []byte) error {
			return errors.New("full")
		},
	}, nil)

	c, err := AddProduct(ctx, s, n, model.Product{ID: 2, Title: "x", Price: 5, Stock: 1}, 1)
	if err != nil {
		t.Fatalf("AddProduct() error: %v", err)
	}
	if c.ItemCount != 1 {
		t.Errorf("itemCount = %d, want 1", c.ItemCount)
	}
}

func TestAddProduct_OutOfStockLeavesCartUnchanged(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s := NewStore(kv, nil)
	n := NewNotifier(kv, nil)

	c, err := AddProduct(ctx, s, n, model.Product{ID: 9, Title: "Sold out", Price: 5}, 2)
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if len(c.Items) != 0 || c.ItemCount != 0 {
		t.Errorf("expected empty cart, got %+v", c)
	}
	if _, ok := n.Consume(ctx); ok {
		t.Error("expected no notification")
	}
}
