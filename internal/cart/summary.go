package cart

import (
	"github.com/hitoshi/storefront/internal/model"
	"github.com/shopspring/decimal"
)

var (
	// TaxRate は小計に対する税率。
	TaxRate = decimal.RequireFromString("0.1")
	// ShippingFee は小計が0より大きい場合の送料。
	ShippingFee = decimal.NewFromInt(10)

	hundred = decimal.NewFromInt(100)
)

// Summary は注文サマリー。
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Summarize はカートの小計・税・送料・合計を計算する。
// 小計はItemsから計算し、カートのTotalは使わない。
func Summarize(c model.Cart) Summary {
	subtotal := decimal.Zero
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	tax := subtotal.Mul(TaxRate)
	shipping := decimal.Zero
	if subtotal.IsPositive() {
		shipping = ShippingFee
	}
	return Summary{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

// ClampQuantity は購入数量を1以上かつ在庫数以下に収める。
// 在庫が0の場合も1を返すので、追加可否はInStockで判定する。
func ClampQuantity(quantity, stock int) int {
	return max(1, min(stock, quantity))
}

// InStock は商品をカートに追加できるかを返す。
func InStock(p model.Product) bool {
	return p.Stock > 0
}

// ItemFromProduct は商品から指定数量のカート項目を生成する。
// 数量はClampQuantityで在庫の範囲に収め、単価は割引後の価格を小数点以下2桁に丸めたもの。
func ItemFromProduct(p model.Product, quantity int) model.CartItem {
	discount := decimal.NewFromFloat(p.DiscountPercentage).Div(hundred)
	price := decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(1).Sub(discount)).Round(2)
	return model.CartItem{
		ProductID: p.ID,
		Title:     p.Title,
		Price:     price,
		Quantity:  ClampQuantity(quantity, p.Stock),
		Thumbnail: p.Thumbnail,
		Category:  p.Category,
	}
}
