// Package cart はクライアント側のカート状態を管理する。
//
// 状態遷移はReduceが純粋関数として定義し、Storeがそれを直列化して適用・永続化する。
package cart

import (
	"github.com/hitoshi/storefront/internal/model"
	"github.com/shopspring/decimal"
)

// Action はカートに対する操作。
type Action interface {
	apply(c model.Cart) model.Cart
}

// AddItem は商品を追加する。同じ商品が既にあれば数量を加算する。
// 数量の妥当性は検証しない。
type AddItem struct {
	Item model.CartItem
}

// RemoveItem は商品を削除する。存在しない場合は何もしない。
type RemoveItem struct {
	ProductID int
}

// SetQuantity は商品の数量を設定する。0以下は削除として扱う。
// 存在しない商品は何もしない。
type SetQuantity struct {
	ProductID int
	Quantity  int
}

// Clear はカートを空にする。
type Clear struct{}

// Load はスナップショットでカートを置き換える。
// TotalとItemCountを含めて検証も再計算もせずそのまま採用する。
type Load struct {
	Snapshot model.Cart
}

// Reduce はstateにactionを適用した新しい状態を返す。stateは変更しない。
func Reduce(state model.Cart, action Action) model.Cart {
	if action == nil {
		return state
	}
	return action.apply(state)
}

func (a AddItem) apply(c model.Cart) model.Cart {
	next := c.Clone()
	if i := indexOf(next.Items, a.Item.ProductID); i >= 0 {
		next.Items[i].Quantity += a.Item.Quantity
	} else {
		next.Items = append(next.Items, a.Item)
	}
	return recompute(next)
}

func (a RemoveItem) apply(c model.Cart) model.Cart {
	i := indexOf(c.Items, a.ProductID)
	if i < 0 {
		return recompute(c.Clone())
	}
	return recompute(without(c, i))
}

func (a SetQuantity) apply(c model.Cart) model.Cart {
	i := indexOf(c.Items, a.ProductID)
	if i < 0 {
		return c
	}
	if a.Quantity <= 0 {
		return recompute(without(c, i))
	}
	next := c.Clone()
	next.Items[i].Quantity = a.Quantity
	return recompute(next)
}

func (Clear) apply(model.Cart) model.Cart {
	return model.EmptyCart()
}

func (a Load) apply(model.Cart) model.Cart {
	return a.Snapshot.Clone()
}

func indexOf(items []model.CartItem, productID int) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// without はi番目の商品を除いたカートを返す。
func without(c model.Cart, i int) model.Cart {
	items := make([]model.CartItem, 0, len(c.Items)-1)
	items = append(items, c.Items[:i]...)
	items = append(items, c.Items[i+1:]...)
	c.Items = items
	return c
}

// recompute はItemsからTotalとItemCountを再計算する。
func recompute(c model.Cart) model.Cart {
	total := decimal.Zero
	count := 0
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
		count += item.Quantity
	}
	if c.Items == nil {
		c.Items = []model.CartItem{}
	}
	c.Total = total
	c.ItemCount = count
	return c
}
