package cart

import (
	"testing"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/shopspring/decimal"
)

func TestSummarize(t *testing.T) {
	c := Reduce(model.EmptyCart(), AddItem{Item: item(1, "10", 2)})
	c = Reduce(c, AddItem{Item: item(2, "5", 1)})

	s := Summarize(c)
	checks := map[string]struct {
		got  decimal.Decimal
		want string
	}{
		"subtotal": {s.Subtotal, "25"},
		"tax":      {s.Tax, "2.5"},
		"shipping": {s.Shipping, "10"},
		"total":    {s.Total, "37.5"},
	}
	for name, c := range checks {
		if !c.got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("%s = %s, want %s", name, c.got, c.want)
		}
	}
}

func TestSummarize_EmptyCartHasNoShipping(t *testing.T) {
	s := Summarize(model.EmptyCart())
	if !s.Total.IsZero() || !s.Shipping.IsZero() {
		t.Errorf("expected zero summary, got %+v", s)
	}
}

func TestItemFromProduct(t *testing.T) {
	p := model.Product{
		ID:                 3,
		Title:              "Perfume",
		Price:              9.99,
		DiscountPercentage: 7.17,
		Thumbnail:          "https://cdn.example.com/3.png",
		Category:           "fragrances",
		Stock:              5,
	}
	got := ItemFromProduct(p, 1)

	// 9.99 * 0.9283 = 9.273717
	if !got.Price.Equal(decimal.RequireFromString("9.27")) {
		t.Errorf("price = %s, want 9.27", got.Price)
	}
	if got.Quantity != 1 || got.ProductID != 3 || got.Category != "fragrances" || got.Thumbnail != p.Thumbnail {
		t.Errorf("unexpected item: %+v", got)
	}
}

func TestItemFromProduct_ClampsQuantityToStock(t *testing.T) {
	p := model.Product{ID: 4, Title: "Sofa", Price: 499, Stock: 3}

	tests := []struct {
		quantity int
		want     int
	}{
		{quantity: 2, want: 2},
		{quantity: 3, want: 3},
		{quantity: 10, want: 3},
		{quantity: 0, want: 1},
		{quantity: -4, want: 1},
	}
	for _, tt := range tests {
		if got := ItemFromProduct(p, tt.quantity).Quantity; got != tt.want {
			t.Errorf("ItemFromProduct(quantity=%d).Quantity = %d, want %d", tt.quantity, got, tt.want)
		}
	}
}

func TestClampQuantity_NoStockStillOne(t *testing.T) {
	if got := ClampQuantity(5, 0); got != 1 {
		t.Errorf("ClampQuantity(5, 0) = %d, want 1", got)
	}
}
