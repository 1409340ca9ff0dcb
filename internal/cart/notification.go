package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storage"
)

// NotificationKey は「カートに追加しました」通知を保存するキー。
const NotificationKey = "cartNotification"

// Notification は一度だけ表示される追加通知。
type Notification struct {
	ID        int    `json:"id"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // Unixミリ秒
}

// Notifier は追加通知を保存し、一度だけ取り出せるようにする。
type Notifier struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time
}

// NewNotifier はNotifierを生成する。
func NewNotifier(kv KV, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{kv: kv, logger: logger, now: time.Now}
}

// ItemAdded は商品の追加通知を保存する。既存の通知は上書きする。
func (n *Notifier) ItemAdded(ctx context.Context, p model.Product) error {
	data, err := json.Marshal(Notification{
		ID:        p.ID,
		Message:   fmt.Sprintf("%s added to cart", p.Title),
		Timestamp: n.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := n.kv.Set(ctx, NotificationKey, data); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// Consume は保存された通知を取り出して削除する。
// 通知がない場合や解釈できない場合はfalseを返す。解釈できない通知も削除する。
func (n *Notifier) Consume(ctx context.Context) (Notification, bool) {
	data, err := n.kv.Get(ctx, NotificationKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			n.logger.Warn("failed to read cart notification", slog.String("error", err.Error()))
		}
		return Notification{}, false
	}

	if err := n.kv.Delete(ctx, NotificationKey); err != nil {
		n.logger.Warn("failed to delete cart notification", slog.String("error", err.Error()))
	}

	var note Notification
	if err := json.Unmarshal(data, &note); err != nil || note.Message == "" {
		return Notification{}, false
	}
	return note, true
}

// ErrOutOfStock は在庫のない商品を追加しようとしたことを示す。
var ErrOutOfStock = errors.New("product is out of stock")

// AddProduct は商品を指定数量だけカートに追加し、追加通知を保存する。
// 在庫がない場合はカートを変更せずErrOutOfStockを返す。
// 通知の保存に失敗してもカートへの追加は維持する。
func AddProduct(ctx context.Context, s *Store, n *Notifier, p model.Product, quantity int) (model.Cart, error) {
	if !InStock(p) {
		return s.State(), ErrOutOfStock
	}
	c := s.AddItem(ctx, ItemFromProduct(p, quantity))
	if n != nil {
		if err := n.ItemAdded(ctx, p); err != nil {
			n.logger.Warn("failed to save cart notification",
				slog.Int("product_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return c, nil
}
