package model

// Product はカタログの商品を表す。
type Product struct {
	ID                 int      `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	Price              float64  `json:"price"`
	DiscountPercentage float64  `json:"discountPercentage"`
	Rating             float64  `json:"rating"`
	Stock              int      `json:"stock"`
	Tags               []string `json:"tags,omitempty"`
	Brand              string   `json:"brand,omitempty"`
	SKU                string   `json:"sku,omitempty"`
	Thumbnail          string   `json:"thumbnail"`
	Images             []string `json:"images,omitempty"`
}

// ProductsPage はページングされた商品一覧。
type ProductsPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Skip     int       `json:"skip"`
	Limit    int       `json:"limit"`
}

// Category は商品カテゴリ。
type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// ProductQuery は商品一覧・検索のクエリ条件。
// SortByとOrderは両方指定された場合のみ上流へ転送する。
type ProductQuery struct {
	Limit    int
	Skip     int
	SortBy   string
	Order    string
	Category string
}

// 商品一覧のデフォルトページング値
const (
	DefaultProductLimit = 10
	DefaultProductSkip  = 0
)

// DefaultProductQuery はデフォルトのページング値を持つクエリを返す。
func DefaultProductQuery() ProductQuery {
	return ProductQuery{
		Limit: DefaultProductLimit,
		Skip:  DefaultProductSkip,
	}
}

// HasSort はソート条件が転送対象かどうかを返す。
func (q ProductQuery) HasSort() bool {
	return q.SortBy != "" && q.Order != ""
}
