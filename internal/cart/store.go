package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/s-rangarajan/festicart/internal/logger"
)

const DefaultKey = "cart-storage"

var defaultUpdateTimeout = 2 * time.Second

// Store is the persisted cart. Every mutation is a read-modify-write of the
// whole cart under one key.
type Store struct {
	reader        Reader
	updater       Updater
	key           string
	updateTimeout time.Duration
	log           *logger.Logger
}

type StoreOption func(*Store)

func WithKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithUpdateTimeout(timeout time.Duration) StoreOption {
	return func(s *Store) {
		if timeout > 0 {
			s.updateTimeout = timeout
		}
	}
}

func WithLogger(log *logger.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

func NewStore(reader Reader, updater Updater, opts ...StoreOption) *Store {
	s := &Store{
		reader:        reader,
		updater:       updater,
		key:           DefaultKey,
		updateTimeout: defaultUpdateTimeout,
		log:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ForOwner returns a store scoped to a per-owner key under the same namespace.
func (s *Store) ForOwner(owner string) *Store {
	if owner == "" {
		return s
	}
	scoped := *s
	scoped.key = s.key + ":" + owner
	return &scoped
}

func (s *Store) Key() string {
	return s.key
}

func (s *Store) Cart(ctx context.Context) (Cart, error) {
	return s.reader.ReadCartWithContext(ctx, s.key)
}

func (s *Store) AddItem(ctx context.Context, item Item) (Cart, error) {
	ctx = s.log.WithEventID(ctx, item.ID.String())
	cart, err := s.mutate(ctx, func(c *Cart) { c.AddItem(item) })
	if err == nil {
		s.log.Debug(ctx, "item added to cart")
	}
	return cart, err
}

func (s *Store) RemoveItem(ctx context.Context, id ID) (Cart, error) {
	return s.mutate(ctx, func(c *Cart) { c.RemoveItem(id) })
}

func (s *Store) UpdateQuantity(ctx context.Context, id ID, quantity int) (Cart, error) {
	return s.mutate(ctx, func(c *Cart) { c.UpdateQuantity(id, quantity) })
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.mutate(ctx, func(c *Cart) { c.Clear() })
	return err
}

// RemoveLines drops what was reserved in one locked update, so lines added
// meanwhile survive.
func (s *Store) RemoveLines(ctx context.Context, reserved []Item) (Cart, error) {
	return s.mutate(ctx, func(c *Cart) { c.RemoveLines(reserved) })
}

func (s *Store) Total(ctx context.Context) (decimal.Decimal, error) {
	cart, err := s.Cart(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return cart.Total(), nil
}

func (s *Store) mutate(ctx context.Context, apply func(*Cart)) (Cart, error) {
	ctx, cancelFunc := context.WithTimeout(ctx, s.updateTimeout)
	defer cancelFunc()

	var final Cart
	err := s.updater.UpdateCartWithContext(ctx, s.key, func(current Cart) Cart {
		apply(&current)
		final = current
		return current
	})
	if err != nil {
		s.log.Error(ctx, "failed to persist cart", err)
		return Cart{}, err
	}
	return final, nil
}
