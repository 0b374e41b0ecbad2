// Copyright (c) 2026 Atrium. All rights reserved.

package shop

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/atriumhq/atrium/internal/platform/apperr"
)

// Service implements the shop use cases.
type Service struct {
	products ProductRepository
	orders   OrderRepository
	receipts Receipts
	logger   *slog.Logger
}

// NewService constructs a new shop [Service] with its dependencies.
func NewService(
	products ProductRepository,
	orders OrderRepository,
	receipts Receipts,
	logger *slog.Logger,
) *Service {
	return &Service{
		products: products,
		orders:   orders,
		receipts: receipts,
		logger:   logger,
	}
}

// # Products

// ListProducts returns one storefront or admin page of products.
func (service *Service) ListProducts(ctx context.Context, activeOnly bool, limit, offset int) ([]*Product, int, error) {
	return service.products.List(ctx, activeOnly, limit, offset)
}

// GetProduct returns a single product.
func (service *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return service.products.FindByID(ctx, id)
}

// CreateProduct adds a product to the catalog.
func (service *Service) CreateProduct(ctx context.Context, product *Product) error {
	if err := service.products.Create(ctx, product); err != nil {
		return err
	}
	service.logger.Info("product_created",
		slog.Int64("product_id", product.ID),
		slog.String("onchain_sku", product.OnchainSKU),
	)
	return nil
}

// UpdateProduct persists catalog changes.
func (service *Service) UpdateProduct(ctx context.Context, product *Product) error {
	return service.products.Update(ctx, product)
}

// DeleteProduct removes a product. Products referenced by orders cannot be
// deleted and report a conflict instead.
func (service *Service) DeleteProduct(ctx context.Context, id int64) error {
	return service.products.Delete(ctx, id)
}

// # Orders

// CreateOrderInput holds the data for a new order reservation.
type CreateOrderInput struct {
	BuyerUID  string
	ProductID int64
	Quantity  int
}

// CreateOrder reserves an off-chain order row in the created state.
//
// # Flow
//  1. Load the product; inactive products cannot be ordered.
//  2. Reserve stock with a guarded decrement (no overselling under load).
//  3. Insert the order, then record the metadata hash. The hash commits to
//     the order id, the product's on-chain SKU and the quantity, and is what
//     the purchase transaction signs on-chain.
func (service *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if input.Quantity < 1 || input.Quantity > MaxOrderQuantity {
		return nil, apperr.ValidationError(fmt.Sprintf("quantity must be between 1 and %d", MaxOrderQuantity))
	}

	product, err := service.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, apperr.NotFound("Product")
	}

	reserved, err := service.products.DecrementStock(ctx, input.ProductID, input.Quantity)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, apperr.Conflict("Insufficient stock")
	}

	order := &Order{
		BuyerUID:  input.BuyerUID,
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
		AmountWei: totalWei(product.PriceWei, input.Quantity),
		Status:    StatusCreated,
	}

	if err := service.orders.Create(ctx, order); err != nil {
		// The reservation must not leak when the insert fails.
		if restockErr := service.products.Restock(ctx, input.ProductID, input.Quantity); restockErr != nil {
			service.logger.Error("order_restock_failed",
				slog.Int64("product_id", input.ProductID), slog.Any("error", restockErr))
		}
		return nil, err
	}

	order.MetadataHash = MetadataHash(order.ID, product.OnchainSKU, input.Quantity)
	if err := service.orders.SetMetadataHash(ctx, order.ID, order.MetadataHash); err != nil {
		return nil, err
	}

	service.logger.Info("order_created",
		slog.Int64("order_id", order.ID),
		slog.String("buyer_uid", input.BuyerUID),
		slog.Int64("product_id", input.ProductID),
		slog.Int("quantity", input.Quantity),
	)

	return order, nil
}

// MetadataHash commits an order to its on-chain purchase parameters.
func MetadataHash(orderID int64, onchainSKU string, quantity int) string {
	payload := fmt.Sprintf("%d|%s|%d", orderID, onchainSKU, quantity)
	return crypto.Keccak256Hash([]byte(payload)).Hex()
}

// totalWei multiplies a wei price string by the quantity. Prices come from
// our own catalog rows, so a malformed value degrades to "0" rather than
// failing the order.
func totalWei(priceWei string, quantity int) string {
	price, ok := new(big.Int).SetString(priceWei, 10)
	if !ok {
		return "0"
	}
	return new(big.Int).Mul(price, big.NewInt(int64(quantity))).String()
}

// GetOrder returns one order, restricted to its buyer.
func (service *Service) GetOrder(ctx context.Context, orderID int64, buyerUID string) (*Order, error) {
	order, err := service.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerUID != buyerUID {
		// Hide the existence of other buyers' orders.
		return nil, apperr.NotFound("Order")
	}
	return order, nil
}

// ListMyOrders returns the buyer's orders, newest first.
func (service *Service) ListMyOrders(ctx context.Context, buyerUID string, limit, offset int) ([]*Order, int, error) {
	return service.orders.ListByBuyer(ctx, buyerUID, limit, offset)
}

// ListOrders returns orders for the admin panel, optionally by status.
func (service *Service) ListOrders(ctx context.Context, status OrderStatus, limit, offset int) ([]*Order, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperr.ValidationError("Unknown order status")
	}
	return service.orders.List(ctx, status, limit, offset)
}

// ConfirmInput holds the data for payment confirmation.
type ConfirmInput struct {
	BuyerUID       string
	OrderID        int64
	TxHash         string
	OnchainOrderID string
}

// Confirm reconciles the buyer's payment transaction and moves the order
// from created to paid.
//
// # Guards
//  1. The order must belong to the caller and still be in created.
//  2. The on-chain order id is set exactly once; a different value on a
//     later call is a conflict.
//  3. The transaction must be mined, successful, and carry a paid status
//     event for this on-chain order id.
func (service *Service) Confirm(ctx context.Context, input ConfirmInput) (*Order, error) {
	order, err := service.GetOrder(ctx, input.OrderID, input.BuyerUID)
	if err != nil {
		return nil, err
	}

	if order.OnchainOrderID != nil && *order.OnchainOrderID != input.OnchainOrderID {
		return nil, apperr.Conflict("On-chain order id cannot change once set")
	}
	if order.Status != StatusCreated {
		return nil, apperr.Conflict("Order is not awaiting payment")
	}

	if err := service.requireStatusEvent(ctx, input.TxHash, input.OnchainOrderID, StatusPaid); err != nil {
		return nil, err
	}

	if err := service.orders.Transition(ctx, order.ID, StatusPaid, input.TxHash, input.OnchainOrderID, nil); err != nil {
		return nil, err
	}

	service.logger.Info("order_paid",
		slog.Int64("order_id", order.ID),
		slog.String("onchain_order_id", input.OnchainOrderID),
		slog.String("tx_hash", input.TxHash),
	)

	return service.orders.FindByID(ctx, order.ID)
}

// UpdateStatusInput holds the data for an admin-driven status transition.
type UpdateStatusInput struct {
	OrderID int64
	TxHash  string
	Status  OrderStatus
	Note    *string

	// OnchainOrderID is required only for created→cancelled, where the
	// order never went through confirmation and has no stored id yet.
	OnchainOrderID string
}

// UpdateStatus reconciles an admin-reported on-chain status change.
//
// # Guards (checked in order)
//  1. The order's current status must be the exact predecessor of the
//     target, otherwise 409 and nothing changes.
//  2. The transaction must resolve to a successful, mined receipt.
//  3. The receipt must carry a status event matching the order's on-chain
//     id and the numeric code of the target status.
//
// Cancellation and refund additionally restock the product. The restock is
// a separate statement and can be lost if the process dies between the two
// writes; the admin panel surfaces stock for manual correction.
func (service *Service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*Order, error) {
	if !input.Status.Valid() || input.Status == StatusCreated || input.Status == StatusPaid {
		return nil, apperr.ValidationError("status must be one of shipped, completed, cancelled, refunded")
	}

	order, err := service.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	previous, _ := Predecessor(input.Status)
	if order.Status != previous {
		return nil, apperr.Conflict(fmt.Sprintf("Order is %s, expected %s", order.Status, previous))
	}

	onchainOrderID, err := resolveOnchainOrderID(order, input.OnchainOrderID)
	if err != nil {
		return nil, err
	}

	if err := service.requireStatusEvent(ctx, input.TxHash, onchainOrderID, input.Status); err != nil {
		return nil, err
	}

	if err := service.orders.Transition(ctx, order.ID, input.Status, input.TxHash, onchainOrderID, input.Note); err != nil {
		return nil, err
	}

	if input.Status.Restocks() {
		// Best effort: the status change is already durable, a failed
		// restock only understates inventory.
		if err := service.products.Restock(ctx, order.ProductID, order.Quantity); err != nil {
			service.logger.Error("order_restock_failed",
				slog.Int64("order_id", order.ID),
				slog.Int64("product_id", order.ProductID),
				slog.Any("error", err))
		}
	}

	service.logger.Info("order_status_updated",
		slog.Int64("order_id", order.ID),
		slog.String("from", string(order.Status)),
		slog.String("to", string(input.Status)),
		slog.String("tx_hash", input.TxHash),
	)

	return service.orders.FindByID(ctx, order.ID)
}

// resolveOnchainOrderID picks the id the receipt must match: the stored one
// when present, the supplied one otherwise. A mismatch between the two is a
// conflict because the stored id is immutable.
func resolveOnchainOrderID(order *Order, supplied string) (string, error) {
	if order.OnchainOrderID != nil {
		if supplied != "" && supplied != *order.OnchainOrderID {
			return "", apperr.Conflict("On-chain order id cannot change once set")
		}
		return *order.OnchainOrderID, nil
	}
	if supplied == "" {
		return "", apperr.ValidationError("onchain_order_id is required for this order")
	}
	return supplied, nil
}

// requireStatusEvent verifies that the transaction emitted a shop-contract
// status event matching the on-chain order id and the target status code.
func (service *Service) requireStatusEvent(ctx context.Context, txHash, onchainOrderID string, target OrderStatus) error {
	events, err := service.receipts.StatusEvents(ctx, txHash)
	if err != nil {
		return err
	}

	for _, event := range events {
		if event.OrderID == onchainOrderID && event.Code == target.Code() {
			return nil
		}
	}
	return apperr.ValidationError("no matching status event")
}
