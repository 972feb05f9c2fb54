// Copyright (c) 2023 BVK Chaitanya

package exchange

import "time"

// OrderID is the venue-assigned order identifier.
type OrderID int64

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// IsDone is true for terminal order statuses.
func (s OrderStatus) IsDone() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// Order is the common shape of a venue order. The core holds orders
// only for the duration of a placement call; the venue remains the
// source of truth for their lifecycle.
type Order struct {
	OrderID OrderID

	Symbol Symbol

	Side   Side
	Type   OrderType
	Status OrderStatus

	Amount float64
	Price  float64

	ExecutedBaseAmount    float64
	CumulativeQuoteAmount float64

	CreationTime time.Time
	UpdateTime   time.Time
}
