// Copyright (c) 2023 BVK Chaitanya

package history

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/bvkgo/kv"
)

// Order is one journaled accumulation buy.
type Order struct {
	Time time.Time

	Asset  string
	Amount float64

	Price      float64
	QuoteAsset string
}

// Value returns the order's cost in its quote asset.
func (v *Order) Value() float64 {
	return v.Amount * v.Price
}

// OrderLog is the append-only trade history of one bot, stored at
// /bots/<name>/orders/<index>.
type OrderLog struct {
	db kv.Database

	name string
}

// NewOrderLog creates the order log view for the named bot.
func NewOrderLog(db kv.Database, name string) *OrderLog {
	return &OrderLog{db: db, name: name}
}

func (l *OrderLog) dir() string {
	return path.Join(Keyspace, l.name, "orders")
}

// Index values are fixed width so that key order matches append order.
func (l *OrderLog) key(index int) string {
	return path.Join(l.dir(), fmt.Sprintf("%08d", index))
}

// Orders returns all journaled orders, oldest first. A bot with no
// history gets an empty slice.
func (l *OrderLog) Orders(ctx context.Context) ([]*Order, error) {
	var orders []*Order
	err := ascend(ctx, l.db, l.dir(), func(key string, v *Order) error {
		orders = append(orders, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not list orders of bot %q: %w", l.name, err)
	}
	return orders, nil
}

// Append journals a new order after the existing ones.
func (l *OrderLog) Append(ctx context.Context, order *Order) error {
	orders, err := l.Orders(ctx)
	if err != nil {
		return err
	}
	if err := Set(ctx, l.db, l.key(len(orders)), order); err != nil {
		return fmt.Errorf("could not append order for bot %q: %w", l.name, err)
	}
	return nil
}
