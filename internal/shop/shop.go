// Copyright (c) 2026 Atrium. All rights reserved.

// Package shop implements the on-chain integrated store.
//
// # Architecture
//
// Products and orders live off-chain in PostgreSQL; payments and status
// changes happen on-chain against the shop contract. Every order row is a
// shadow of an on-chain order, and every status transition past "created"
// must be backed by a mined transaction whose decoded event matches the
// order. The server never submits transactions itself; it only reconciles
// receipts that clients or admins hand it.
package shop

import "time"

// OrderStatus enumerates the lifecycle states of an order.
type OrderStatus string

const (
	StatusCreated   OrderStatus = "created"
	StatusPaid      OrderStatus = "paid"
	StatusShipped   OrderStatus = "shipped"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
	StatusRefunded  OrderStatus = "refunded"
)

// # Status Codes
//
// Numeric codes shared with the shop contract's OrderStatusChanged event.
// "created" has no code: it exists only off-chain.

var statusCodes = map[OrderStatus]uint8{
	StatusPaid:      1,
	StatusShipped:   2,
	StatusCompleted: 3,
	StatusCancelled: 4,
	StatusRefunded:  5,
}

// Code returns the on-chain numeric code for the status, or 0 for states
// that never appear on-chain.
func (status OrderStatus) Code() uint8 {
	return statusCodes[status]
}

// Valid reports whether the status is one of the known lifecycle states.
func (status OrderStatus) Valid() bool {
	switch status {
	case StatusCreated, StatusPaid, StatusShipped, StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// # Transition Matrix
//
// The forward path is created→paid→shipped→completed, with two exception
// exits: created→cancelled and paid→refunded. Each target has exactly one
// allowed predecessor, so a transition is a single guarded UPDATE.

var predecessors = map[OrderStatus]OrderStatus{
	StatusPaid:      StatusCreated,
	StatusShipped:   StatusPaid,
	StatusCompleted: StatusShipped,
	StatusCancelled: StatusCreated,
	StatusRefunded:  StatusPaid,
}

// Predecessor returns the only status an order may hold before moving to
// the target, and whether the target is reachable at all.
func Predecessor(target OrderStatus) (OrderStatus, bool) {
	previous, ok := predecessors[target]
	return previous, ok
}

// Restocks reports whether reaching the status returns the order's quantity
// to product inventory.
func (status OrderStatus) Restocks() bool {
	return status == StatusCancelled || status == StatusRefunded
}

// Product is a purchasable item mirrored by an on-chain SKU.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceWei    string    `json:"price_wei"`
	Stock       int       `json:"stock"`
	OnchainSKU  string    `json:"onchain_sku"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Order is the off-chain shadow of an on-chain purchase.
//
// # Rules
//   - OnchainOrderID is set exactly once, during payment confirmation, and
//     never changes afterwards.
//   - Transition timestamps are set when the matching status is reached and
//     are never cleared.
type Order struct {
	ID             int64       `json:"id"`
	BuyerUID       string      `json:"buyer_uid"`
	ProductID      int64       `json:"product_id"`
	Quantity       int         `json:"quantity"`
	AmountWei      string      `json:"amount_wei"`
	Status         OrderStatus `json:"status"`
	OnchainOrderID *string     `json:"onchain_order_id,omitempty"`
	MetadataHash   string      `json:"metadata_hash"`
	LastEventTx    *string     `json:"last_event_tx,omitempty"`
	Note           *string     `json:"note,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	PaidAt         *time.Time  `json:"paid_at,omitempty"`
	ShippedAt      *time.Time  `json:"shipped_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	CancelledAt    *time.Time  `json:"cancelled_at,omitempty"`
	RefundedAt     *time.Time  `json:"refunded_at,omitempty"`
}

// timestampColumn maps a status to the order column recording when it was
// reached.
func timestampColumn(status OrderStatus) string {
	switch status {
	case StatusPaid:
		return "paidat"
	case StatusShipped:
		return "shippedat"
	case StatusCompleted:
		return "completedat"
	case StatusCancelled:
		return "cancelledat"
	case StatusRefunded:
		return "refundedat"
	}
	return ""
}

// # Limits

const (
	// MaxOrderQuantity bounds a single order.
	MaxOrderQuantity = 100

	// MaxProductNameLength bounds product names.
	MaxProductNameLength = 120
)
