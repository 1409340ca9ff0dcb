package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storage"
)

// StorageKey はカートのスナップショットを保存するキー。
const StorageKey = "cart"

// KV はカートの永続化先。storage.Storeが満たす。
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Listener はディスパッチ後の状態を受け取る。
type Listener func(model.Cart)

// Store はカートの状態コンテナ。
// ディスパッチはミューテックスで直列化され、各ディスパッチ後にスナップショットを永続化する。
type Store struct {
	mu        sync.Mutex
	state     model.Cart
	kv        KV
	logger    *slog.Logger
	listeners map[int]Listener
	nextID    int
}

// NewStore は空のカートを持つStoreを生成する。
// 永続化済みの状態を読み込むにはHydrateを呼ぶ。
func NewStore(kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		state:     model.EmptyCart(),
		kv:        kv,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
}

// Hydrate は永続化済みのスナップショットを読み込み、現在の状態とする。
// キーがない場合、JSONとして解釈できない場合、itemsが配列でない場合は空のカートになる。
func (s *Store) Hydrate(ctx context.Context) model.Cart {
	snapshot := s.readSnapshot(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = snapshot
	return s.state.Clone()
}

func (s *Store) readSnapshot(ctx context.Context) model.Cart {
	if s.kv == nil {
		return model.EmptyCart()
	}
	data, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to read cart snapshot", slog.String("error", err.Error()))
		}
		return model.EmptyCart()
	}
	snapshot, ok := decodeSnapshot(data)
	if !ok {
		s.logger.Warn("discarding malformed cart snapshot")
		return model.EmptyCart()
	}
	return snapshot
}

// decodeSnapshot は永続化されたJSONをカートに変換する。
func decodeSnapshot(data []byte) (model.Cart, bool) {
	var shape struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return model.Cart{}, false
	}
	if !bytes.HasPrefix(bytes.TrimSpace(shape.Items), []byte("[")) {
		return model.Cart{}, false
	}
	var c model.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return model.Cart{}, false
	}
	return c, true
}

// Dispatch はactionを適用し、スナップショットを永続化して購読者に通知する。
// 永続化に失敗してもメモリ上の変更は維持する。
func (s *Store) Dispatch(ctx context.Context, action Action) model.Cart {
	s.mu.Lock()
	s.state = Reduce(s.state, action)
	next := s.state.Clone()
	s.persist(ctx, next)
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next.Clone())
	}
	return next
}

func (s *Store) persist(ctx context.Context, c model.Cart) {
	if s.kv == nil {
		return
	}
	data, err := json.Marshal(c)
	if err != nil {
		s.logger.Warn("failed to encode cart snapshot", slog.String("error", err.Error()))
		return
	}
	if err := s.kv.Set(ctx, StorageKey, data); err != nil {
		s.logger.Warn("failed to persist cart snapshot",
			slog.Int("item_count", c.ItemCount),
			slog.String("error", err.Error()),
		)
	}
}

// AddItem はAddItemをディスパッチする。
func (s *Store) AddItem(ctx context.Context, item model.CartItem) model.Cart {
	return s.Dispatch(ctx, AddItem{Item: item})
}

// RemoveItem はRemoveItemをディスパッチする。
func (s *Store) RemoveItem(ctx context.Context, productID int) model.Cart {
	return s.Dispatch(ctx, RemoveItem{ProductID: productID})
}

// SetQuantity はSetQuantityをディスパッチする。
func (s *Store) SetQuantity(ctx context.Context, productID, quantity int) model.Cart {
	return s.Dispatch(ctx, SetQuantity{ProductID: productID, Quantity: quantity})
}

// Clear はClearをディスパッチする。
func (s *Store) Clear(ctx context.Context) model.Cart {
	return s.Dispatch(ctx, Clear{})
}

// Load はLoadをディスパッチする。
func (s *Store) Load(ctx context.Context, snapshot model.Cart) model.Cart {
	return s.Dispatch(ctx, Load{Snapshot: snapshot})
}

// State は現在の状態のコピーを返す。
func (s *Store) State() model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe はディスパッチごとに呼ばれるリスナーを登録する。
// 戻り値の関数で登録を解除する。
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

type storeKey struct{}

// WithStore はStoreを格納したコンテキストを返す。
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// FromContext はコンテキストからStoreを取り出す。
func FromContext(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(storeKey{}).(*Store)
	return s, ok && s != nil
}
