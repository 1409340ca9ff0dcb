package model

import "github.com/shopspring/decimal"

// CartItem はカート内の1商品を表す。
// 同一カート内でProductIDは一意。
type CartItem struct {
	ProductID int             `json:"productId"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Thumbnail string          `json:"thumbnail"`
	Category  string          `json:"category"`
}

// LineTotal は単価×数量を返す。
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart はカートの状態を表す。
// TotalとItemCountはItemsから導出される値で、load以外では常に再計算される。
type Cart struct {
	Items     []CartItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

// EmptyCart は空のカートを返す。
func EmptyCart() Cart {
	return Cart{
		Items:     []CartItem{},
		Total:     decimal.Zero,
		ItemCount: 0,
	}
}

// Clone はItemsを複製したカートを返す。
func (c Cart) Clone() Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}
