// Copyright (c) 2026 Atrium. All rights reserved.

package shop_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/shop"
	"github.com/atriumhq/atrium/pkg/pointer"
)

// fakeStore is an in-memory implementation of the shop repositories.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*shop.Product
	orders   map[int64]*shop.Order
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:   1,
		products: make(map[int64]*shop.Product),
		orders:   make(map[int64]*shop.Order),
	}
}

func (store *fakeStore) Create(_ context.Context, product *shop.Product) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	product.ID = store.nextID
	store.nextID++
	clone := *product
	store.products[product.ID] = &clone
	return nil
}

func (store *fakeStore) FindByID(_ context.Context, id int64) (*shop.Product, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	product, ok := store.products[id]
	if !ok {
		return nil, apperr.NotFound("Product")
	}
	clone := *product
	return &clone, nil
}

func (store *fakeStore) List(_ context.Context, activeOnly bool, limit, offset int) ([]*shop.Product, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var result []*shop.Product
	for _, product := range store.products {
		if activeOnly && !product.Active {
			continue
		}
		clone := *product
		result = append(result, &clone)
	}
	return result, len(result), nil
}

func (store *fakeStore) Update(_ context.Context, product *shop.Product) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.products[product.ID]; !ok {
		return apperr.NotFound("Product")
	}
	clone := *product
	store.products[product.ID] = &clone
	return nil
}

func (store *fakeStore) Delete(_ context.Context, id int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.products[id]; !ok {
		return apperr.NotFound("Product")
	}
	for _, order := range store.orders {
		if order.ProductID == id {
			return apperr.Conflict("Product is referenced by orders")
		}
	}
	delete(store.products, id)
	return nil
}

func (store *fakeStore) DecrementStock(_ context.Context, productID int64, quantity int) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	product, ok := store.products[productID]
	if !ok || !product.Active || product.Stock < quantity {
		return false, nil
	}
	product.Stock -= quantity
	return true, nil
}

func (store *fakeStore) Restock(_ context.Context, productID int64, quantity int) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if product, ok := store.products[productID]; ok {
		product.Stock += quantity
	}
	return nil
}

func (store *fakeStore) CreateOrder(_ context.Context, order *shop.Order) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	order.ID = store.nextID
	store.nextID++
	order.CreatedAt = time.Now()
	clone := *order
	store.orders[order.ID] = &clone
	return nil
}

func (store *fakeStore) SetMetadataHash(_ context.Context, orderID int64, hash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	order, ok := store.orders[orderID]
	if !ok {
		return apperr.NotFound("Order")
	}
	order.MetadataHash = hash
	return nil
}

func (store *fakeStore) FindOrderByID(_ context.Context, id int64) (*shop.Order, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	order, ok := store.orders[id]
	if !ok {
		return nil, apperr.NotFound("Order")
	}
	clone := *order
	return &clone, nil
}

func (store *fakeStore) ListByBuyer(_ context.Context, buyerUID string, limit, offset int) ([]*shop.Order, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var result []*shop.Order
	for _, order := range store.orders {
		if order.BuyerUID == buyerUID {
			clone := *order
			result = append(result, &clone)
		}
	}
	return pageOrders(result, limit, offset)
}

func (store *fakeStore) ListOrders(_ context.Context, status shop.OrderStatus, limit, offset int) ([]*shop.Order, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var result []*shop.Order
	for _, order := range store.orders {
		if status != "" && order.Status != status {
			continue
		}
		clone := *order
		result = append(result, &clone)
	}
	return pageOrders(result, limit, offset)
}

// pageOrders applies newest-first ordering and limit/offset the way the
// repository queries do. The total is always the full match count.
func pageOrders(matched []*shop.Order, limit, offset int) ([]*shop.Order, int, error) {
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (store *fakeStore) Transition(_ context.Context, orderID int64, target shop.OrderStatus, txHash, onchainOrderID string, note *string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	previous, ok := shop.Predecessor(target)
	if !ok {
		return apperr.ValidationError("Unknown target status")
	}

	order, exists := store.orders[orderID]
	if !exists {
		return apperr.NotFound("Order")
	}
	if order.Status != previous {
		return apperr.Conflict("Order is not in the expected state")
	}

	now := time.Now()
	order.Status = target
	order.LastEventTx = &txHash
	if onchainOrderID != "" && order.OnchainOrderID == nil {
		order.OnchainOrderID = &onchainOrderID
	}
	if note != nil {
		order.Note = note
	}

	switch target {
	case shop.StatusPaid:
		order.PaidAt = &now
	case shop.StatusShipped:
		order.ShippedAt = &now
	case shop.StatusCompleted:
		order.CompletedAt = &now
	case shop.StatusCancelled:
		order.CancelledAt = &now
	case shop.StatusRefunded:
		order.RefundedAt = &now
	}
	return nil
}

func (store *fakeStore) stock(productID int64) int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.products[productID].Stock
}

func (store *fakeStore) orderStatus(orderID int64) shop.OrderStatus {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.orders[orderID].Status
}

// orderRepo adapts fakeStore to shop.OrderRepository, whose Create and
// FindByID collide with the product methods of the same name.
type orderRepo struct{ *fakeStore }

func (repo orderRepo) Create(ctx context.Context, order *shop.Order) error {
	return repo.CreateOrder(ctx, order)
}

func (repo orderRepo) FindByID(ctx context.Context, id int64) (*shop.Order, error) {
	return repo.FindOrderByID(ctx, id)
}

func (repo orderRepo) List(ctx context.Context, status shop.OrderStatus, limit, offset int) ([]*shop.Order, int, error) {
	return repo.ListOrders(ctx, status, limit, offset)
}

// fakeReceipts maps transaction hashes to decoded status events.
type fakeReceipts struct {
	events map[string][]shop.StatusEvent
	err    error
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{events: make(map[string][]shop.StatusEvent)}
}

func (receipts *fakeReceipts) emit(txHash, onchainOrderID string, status shop.OrderStatus) {
	receipts.events[txHash] = append(receipts.events[txHash], shop.StatusEvent{
		OrderID: onchainOrderID,
		Code:    status.Code(),
	})
}

func (receipts *fakeReceipts) StatusEvents(_ context.Context, txHash string) ([]shop.StatusEvent, error) {
	if receipts.err != nil {
		return nil, receipts.err
	}
	events, ok := receipts.events[txHash]
	if !ok {
		return nil, apperr.ValidationError("Transaction receipt not found")
	}
	return events, nil
}

const (
	buyer     = "buyer-1"
	txPaid    = "0x" + "11" + "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	txShipped = "0x" + "22" + "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	txDone    = "0x" + "33" + "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	chainID   = "7001"
)

func newTestService(t *testing.T) (*shop.Service, *fakeStore, *fakeReceipts) {
	t.Helper()

	store := newFakeStore()
	receipts := newFakeReceipts()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return shop.NewService(store, orderRepo{store}, receipts, logger), store, receipts
}

func seedProduct(t *testing.T, service *shop.Service, stock int) *shop.Product {
	t.Helper()

	product := &shop.Product{
		Name:       "Atrium Hoodie",
		PriceWei:   "50000000000000000",
		Stock:      stock,
		OnchainSKU: "HOODIE-01",
		Active:     true,
	}
	require.NoError(t, service.CreateProduct(context.Background(), product))
	return product
}

func createOrder(t *testing.T, service *shop.Service, productID int64, quantity int) *shop.Order {
	t.Helper()

	order, err := service.CreateOrder(context.Background(), shop.CreateOrderInput{
		BuyerUID:  buyer,
		ProductID: productID,
		Quantity:  quantity,
	})
	require.NoError(t, err)
	return order
}

func payOrder(t *testing.T, service *shop.Service, receipts *fakeReceipts, orderID int64) *shop.Order {
	t.Helper()

	receipts.emit(txPaid, chainID, shop.StatusPaid)
	order, err := service.Confirm(context.Background(), shop.ConfirmInput{
		BuyerUID:       buyer,
		OrderID:        orderID,
		TxHash:         txPaid,
		OnchainOrderID: chainID,
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrder_ReservesStockAndHashesMetadata(t *testing.T) {
	service, store, _ := newTestService(t)

	product := seedProduct(t, service, 10)
	order := createOrder(t, service, product.ID, 3)

	assert.Equal(t, shop.StatusCreated, order.Status)
	assert.Equal(t, 7, store.stock(product.ID))
	assert.Equal(t, "150000000000000000", order.AmountWei)
	assert.Nil(t, order.OnchainOrderID)

	// keccak256 hex: 0x + 64 nibbles, deterministic for the same inputs.
	assert.True(t, strings.HasPrefix(order.MetadataHash, "0x"))
	assert.Len(t, order.MetadataHash, 66)
	assert.Equal(t, shop.MetadataHash(order.ID, product.OnchainSKU, 3), order.MetadataHash)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	service, store, _ := newTestService(t)

	product := seedProduct(t, service, 2)

	_, err := service.CreateOrder(context.Background(), shop.CreateOrderInput{
		BuyerUID:  buyer,
		ProductID: product.ID,
		Quantity:  3,
	})
	require.Error(t, err)
	assert.Equal(t, 409, apperr.As(err).HTTPStatus)
	assert.Equal(t, 2, store.stock(product.ID))
}

func TestCreateOrder_InactiveProductHidden(t *testing.T) {
	service, _, _ := newTestService(t)

	product := seedProduct(t, service, 5)
	product.Active = false
	require.NoError(t, service.UpdateProduct(context.Background(), product))

	_, err := service.CreateOrder(context.Background(), shop.CreateOrderInput{
		BuyerUID:  buyer,
		ProductID: product.ID,
		Quantity:  1,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestListOrders_TotalSpansPages(t *testing.T) {
	service, _, receipts := newTestService(t)

	product := seedProduct(t, service, 10)
	first := createOrder(t, service, product.ID, 1)
	createOrder(t, service, product.ID, 1)
	createOrder(t, service, product.ID, 1)
	payOrder(t, service, receipts, first.ID)

	// The buyer listing reports the full order count, not the page length.
	page, total, err := service.ListMyOrders(context.Background(), buyer, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, 3, total)

	rest, total, err := service.ListMyOrders(context.Background(), buyer, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
	assert.Equal(t, 3, total)

	// Same contract on the admin listing with a status filter applied.
	created, total, err := service.ListOrders(context.Background(), shop.StatusCreated, 1, 0)
	require.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Equal(t, 2, total)
}

func TestConfirm_MovesCreatedToPaid(t *testing.T) {
	service, store, receipts := newTestService(t)

	product := seedProduct(t, service, 5)
	order := createOrder(t, service, product.ID, 1)

	paid := payOrder(t, service, receipts, order.ID)

	assert.Equal(t, shop.StatusPaid, paid.Status)
	require.NotNil(t, paid.OnchainOrderID)
	assert.Equal(t, chainID, *paid.OnchainOrderID)
	require.NotNil(t, paid.LastEventTx)
	assert.Equal(t, txPaid, *paid.LastEventTx)
	assert.NotNil(t, paid.PaidAt)
	assert.Equal(t, shop.StatusPaid, store.orderStatus(order.ID))
}

func TestConfirm_NoMatchingEvent(t *testing.T) {
	service, store, receipts := newTestService(t)

	product := seedProduct(t, service, 5)
	order := createOrder(t, service, product.ID, 1)

	// Event for a different on-chain order id.
	receipts.emit(txPaid, "9999", shop.StatusPaid)

	_, err := service.Confirm(context.Background(), shop.ConfirmInput{
		BuyerUID:       buyer,
		OrderID:        order.ID,
		TxHash:         txPaid,
		OnchainOrderID: chainID,
	})
	require.Error(t, err)
	assert.Equal(t, 400, apperr.As(err).HTTPStatus)
	assert.Contains(t, err.Error(), "no matching status event")
	assert.Equal(t, shop.StatusCreated, store.orderStatus(order.ID))
}

func TestConfirm_MissingReceipt(t *testing.T) {
	service, store, _ := newTestService(t)

	product := seedProduct(t, service, 5)
	order := createOrder(t, service, product.ID, 1)

	_, err := service.Confirm(context.Background(), shop.ConfirmInput{
		BuyerUID:       buyer,
		OrderID:        order.ID,
		TxHash:         txPaid,
		OnchainOrderID: chainID,
	})
	require.Error(t, err)
	assert.Equal(t, 400, apperr.As(err).HTTPStatus)
	assert.Equal(t, shop.StatusCreated, store.orderStatus(order.ID))
}

func TestConfirm_OnchainOrderIDImmutable(t *testing.T) {
	service, _, receipts := newTestService(t)

	product := seedProduct(t, service, 5)
	order := createOrder(t, service, product.ID, 1)
	payOrder(t, service, receipts, order.ID)

	receipts.emit(txShipped, "4242", shop.StatusPaid)
	_, err := service.Confirm(context.Background(), shop.ConfirmInput{
		BuyerUID:       buyer,
		OrderID:        order.ID,
		TxHash:         txShipped,
		OnchainOrderID: "4242",
	})
	require.Error(t, err)
	assert.Equal(t, 409, apperr.As(err).HTTPStatus)
}

func TestConfirm_OtherBuyerHidden(t *testing.T) {
	service, _, receipts := newTestService(t)

	product := seedProduct(t, service, 5)
	order := createOrder(t, service, product.ID, 1)
	receipts.emit(txPaid, chainID, shop.StatusPaid)

	_, err := service.Confirm(context.Background(), shop.ConfirmInput{
		BuyerUID:       "someone-else",
		OrderID:        order.ID,
		TxHash:         txPaid,
		OnchainOrderID: chainID,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestUpdateStatus_ForwardPath(t *testing.T) {
	service, store, receipts := newTestService(t)
	ctx := context.Background()

	product := seedProduct(t, service, 5)
	order := createOrder(t, service, product.ID, 1)
	payOrder(t, service, receipts, order.ID)

	receipts.emit(txShipped, chainID, shop.StatusShipped)
	shipped, err := service.UpdateStatus(ctx, shop.UpdateStatusInput{
		OrderID: order.ID,
		TxHash:  txShipped,
		Status:  shop.StatusShipped,
	})
	require.NoError(t, err)
	assert.Equal(t, shop.StatusShipped, shipped.Status)
	assert.NotNil(t, shipped.ShippedAt)

	receipts.emit(txDone, chainID, shop.StatusCompleted)
	completed, err := service.UpdateStatus(ctx, shop.UpdateStatusInput{
		OrderID: order.ID,
		TxHash:  txDone,
		Status:  shop.StatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, shop.StatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.LastEventTx)
	assert.Equal(t, txDone, *completed.LastEventTx)

	// Stock was never returned on the happy path.
	assert.Equal(t, 4, store.stock(product.ID))
}

func TestUpdateStatus_WrongPredecessor(t *testing.T) {
	service, store, receipts := newTestService(t)

	product := seedProduct(t, service, 5)
	order := createOrder(t, service, product.ID, 1)

	// Shipping a created order must conflict before any chain call.
	receipts.emit(txShipped, chainID, shop.StatusShipped)
	_, err := service.UpdateStatus(context.Background(), shop.UpdateStatusInput{
		OrderID:        order.ID,
		TxHash:         txShipped,
		Status:         shop.StatusShipped,
		OnchainOrderID: chainID,
	})
	require.Error(t, err)
	assert.Equal(t, 409, apperr.As(err).HTTPStatus)
	assert.Equal(t, shop.StatusCreated, store.orderStatus(order.ID))
}

func TestUpdateStatus_RefundRestocks(t *testing.T) {
	service, store, receipts := newTestService(t)

	product := seedProduct(t, service, 5)
	order := createOrder(t, service, product.ID, 2)
	payOrder(t, service, receipts, order.ID)
	assert.Equal(t, 3, store.stock(product.ID))

	receipts.emit(txShipped, chainID, shop.StatusRefunded)
	refunded, err := service.UpdateStatus(context.Background(), shop.UpdateStatusInput{
		OrderID: order.ID,
		TxHash:  txShipped,
		Status:  shop.StatusRefunded,
		Note:    pointer.To("buyer requested a refund"),
	})
	require.NoError(t, err)
	assert.Equal(t, shop.StatusRefunded, refunded.Status)
	assert.NotNil(t, refunded.RefundedAt)
	assert.Equal(t, "buyer requested a refund", pointer.Val(refunded.Note))
	assert.Equal(t, 5, store.stock(product.ID))
}

func TestUpdateStatus_CancelRestocks(t *testing.T) {
	service, store, receipts := newTestService(t)

	product := seedProduct(t, service, 5)
	order := createOrder(t, service, product.ID, 2)
	assert.Equal(t, 3, store.stock(product.ID))

	// A never-confirmed order has no stored on-chain id; the admin supplies it.
	receipts.emit(txShipped, chainID, shop.StatusCancelled)
	cancelled, err := service.UpdateStatus(context.Background(), shop.UpdateStatusInput{
		OrderID:        order.ID,
		TxHash:         txShipped,
		Status:         shop.StatusCancelled,
		OnchainOrderID: chainID,
	})
	require.NoError(t, err)
	assert.Equal(t, shop.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, store.stock(product.ID))
}

func TestUpdateStatus_CancelRequiresOnchainID(t *testing.T) {
	service, _, receipts := newTestService(t)

	product := seedProduct(t, service, 5)
	order := createOrder(t, service, product.ID, 1)
	receipts.emit(txShipped, chainID, shop.StatusCancelled)

	_, err := service.UpdateStatus(context.Background(), shop.UpdateStatusInput{
		OrderID: order.ID,
		TxHash:  txShipped,
		Status:  shop.StatusCancelled,
	})
	require.Error(t, err)
	assert.Equal(t, 400, apperr.As(err).HTTPStatus)
}

func TestUpdateStatus_EventCodeMismatch(t *testing.T) {
	service, store, receipts := newTestService(t)

	product := seedProduct(t, service, 5)
	order := createOrder(t, service, product.ID, 1)
	payOrder(t, service, receipts, order.ID)

	// The transaction emitted a completed event, not the requested shipped.
	receipts.emit(txShipped, chainID, shop.StatusCompleted)
	_, err := service.UpdateStatus(context.Background(), shop.UpdateStatusInput{
		OrderID: order.ID,
		TxHash:  txShipped,
		Status:  shop.StatusShipped,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching status event")
	assert.Equal(t, shop.StatusPaid, store.orderStatus(order.ID))
}

func TestUpdateStatus_RejectsConfirmTargets(t *testing.T) {
	service, _, _ := newTestService(t)

	for _, target := range []shop.OrderStatus{shop.StatusCreated, shop.StatusPaid, shop.OrderStatus("bogus")} {
		_, err := service.UpdateStatus(context.Background(), shop.UpdateStatusInput{
			OrderID: 1,
			TxHash:  txPaid,
			Status:  target,
		})
		require.Error(t, err, "target %s", target)
		assert.Equal(t, 400, apperr.As(err).HTTPStatus)
	}
}

func TestTransitionMatrix(t *testing.T) {
	tests := []struct {
		target      shop.OrderStatus
		predecessor shop.OrderStatus
		code        uint8
	}{
		{shop.StatusPaid, shop.StatusCreated, 1},
		{shop.StatusShipped, shop.StatusPaid, 2},
		{shop.StatusCompleted, shop.StatusShipped, 3},
		{shop.StatusCancelled, shop.StatusCreated, 4},
		{shop.StatusRefunded, shop.StatusPaid, 5},
	}

	for _, test := range tests {
		previous, ok := shop.Predecessor(test.target)
		require.True(t, ok, "target %s", test.target)
		assert.Equal(t, test.predecessor, previous)
		assert.Equal(t, test.code, test.target.Code())
	}

	_, ok := shop.Predecessor(shop.StatusCreated)
	assert.False(t, ok, "created is the initial state")
}

func TestDeleteProduct_ReferencedByOrders(t *testing.T) {
	service, _, _ := newTestService(t)

	product := seedProduct(t, service, 5)
	createOrder(t, service, product.ID, 1)

	err := service.DeleteProduct(context.Background(), product.ID)
	require.Error(t, err)
	assert.Equal(t, 409, apperr.As(err).HTTPStatus)
}
