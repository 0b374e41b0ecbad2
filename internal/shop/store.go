// Copyright (c) 2026 Atrium. All rights reserved.

package shop

import "context"

// ProductRepository defines the data access contract for products.
type ProductRepository interface {
	// Create persists a new product.
	Create(ctx context.Context, product *Product) error

	// FindByID returns the product with the given id.
	//
	// Returns [apperr.NotFound] if it does not exist.
	FindByID(ctx context.Context, id int64) (*Product, error)

	// List returns products, newest first. When activeOnly is set, inactive
	// products are hidden (the public storefront view).
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Product, int, error)

	// Update persists changes to an existing product.
	Update(ctx context.Context, product *Product) error

	// Delete removes a product. Products referenced by orders cannot be
	// removed; callers receive [apperr.Conflict] instead.
	Delete(ctx context.Context, id int64) error

	// DecrementStock reserves quantity units. Returns false when stock is
	// insufficient; the row is left unchanged in that case.
	DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error)

	// Restock returns quantity units to inventory.
	Restock(ctx context.Context, productID int64, quantity int) error
}

// OrderRepository defines the data access contract for orders.
type OrderRepository interface {
	// Create persists a new order in the created state.
	Create(ctx context.Context, order *Order) error

	// FindByID returns the order with the given id.
	//
	// Returns [apperr.NotFound] if it does not exist.
	FindByID(ctx context.Context, id int64) (*Order, error)

	// ListByBuyer returns the buyer's orders, newest first.
	ListByBuyer(ctx context.Context, buyerUID string, limit, offset int) ([]*Order, int, error)

	// SetMetadataHash records the order's metadata hash. The hash covers the
	// order id, so it can only be computed after the insert assigned one.
	SetMetadataHash(ctx context.Context, orderID int64, hash string) error

	// List returns all orders, newest first, optionally filtered by status.
	List(ctx context.Context, status OrderStatus, limit, offset int) ([]*Order, int, error)

	// Transition moves the order to a new status in one UPDATE guarded by
	// WHERE status = <predecessor>, recording the transition timestamp and
	// the transaction hash that proved it. When onchainOrderID is non-empty
	// it is written as well (confirmation sets it for the first time).
	//
	// Returns [apperr.Conflict] when the order is not in the predecessor
	// state, including when a concurrent call won the race.
	Transition(ctx context.Context, orderID int64, target OrderStatus, txHash, onchainOrderID string, note *string) error
}
