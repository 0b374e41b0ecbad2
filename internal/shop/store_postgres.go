// Copyright (c) 2026 Atrium. All rights reserved.

package shop

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/dberr"
)

// # Product Repository

// PostgresProductRepository implements [ProductRepository] using pgx.
type PostgresProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository creates the PostgreSQL implementation of [ProductRepository].
func NewProductRepository(pool *pgxpool.Pool) *PostgresProductRepository {
	return &PostgresProductRepository{pool: pool}
}

const productColumns = `
	id, name, description, pricewei, stock, onchainsku, active, createdat, updatedat`

func scanProduct(row interface{ Scan(dest ...any) error }) (*Product, error) {
	product := &Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.PriceWei,
		&product.Stock,
		&product.OnchainSKU,
		&product.Active,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

/*
Create persists a new product.

Parameters:
  - context: context.Context
  - product: *Product (ID, CreatedAt and UpdatedAt are populated)

Returns:
  - error: apperr.Conflict on a duplicate on-chain SKU, or connectivity errors
*/
func (repository *PostgresProductRepository) Create(context context.Context, product *Product) error {
	const query = `
		INSERT INTO shop.product (name, description, pricewei, stock, onchainsku, active, createdat, updatedat)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`

	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now

	err := repository.pool.QueryRow(context, query,
		product.Name,
		product.Description,
		product.PriceWei,
		product.Stock,
		product.OnchainSKU,
		product.Active,
		now,
	).Scan(&product.ID)
	if err != nil {
		return dberr.Wrap(err, "create_product")
	}
	return nil
}

// FindByID retrieves a single product by its identifier.
func (repository *PostgresProductRepository) FindByID(context context.Context, id int64) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM shop.product WHERE id = $1`

	product, err := scanProduct(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "find_product")
	}
	return product, nil
}

/*
List retrieves one page of products, newest first.

Parameters:
  - context: context.Context
  - activeOnly: bool (hide inactive products for the public storefront)
  - limit, offset: int

Returns:
  - []*Product: One page of products
  - int: Total matching rows
  - error: Execution or scanning errors
*/
func (repository *PostgresProductRepository) List(context context.Context, activeOnly bool, limit, offset int) ([]*Product, int, error) {
	where := ``
	if activeOnly {
		where = `WHERE active`
	}

	var total int
	err := repository.pool.QueryRow(context,
		`SELECT count(*) FROM shop.product `+where,
	).Scan(&total)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "count_products")
	}

	query := fmt.Sprintf(`SELECT %s
		FROM shop.product
		%s
		ORDER BY createdat DESC, id DESC
		LIMIT $1 OFFSET $2`, productColumns, where)

	rows, err := repository.pool.Query(context, query, limit, offset)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_products")
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "scan_product")
		}
		products = append(products, product)
	}

	return products, total, nil
}

// Update persists changes to an existing product.
func (repository *PostgresProductRepository) Update(context context.Context, product *Product) error {
	const query = `
		UPDATE shop.product
		SET name = $2, description = $3, pricewei = $4, stock = $5, onchainsku = $6, active = $7, updatedat = $8
		WHERE id = $1`

	product.UpdatedAt = time.Now()

	tag, err := repository.pool.Exec(context, query,
		product.ID,
		product.Name,
		product.Description,
		product.PriceWei,
		product.Stock,
		product.OnchainSKU,
		product.Active,
		product.UpdatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "update_product")
	}
	if tag.RowsAffected() == 0 {
		return dberr.Wrap(dberr.ErrNotFound, "update_product")
	}
	return nil
}

// Delete removes a product. Foreign key references from orders surface as
// apperr.Conflict through the dberr mapping.
func (repository *PostgresProductRepository) Delete(context context.Context, id int64) error {
	tag, err := repository.pool.Exec(context, `DELETE FROM shop.product WHERE id = $1`, id)
	if err != nil {
		return dberr.Wrap(err, "delete_product")
	}
	if tag.RowsAffected() == 0 {
		return dberr.Wrap(dberr.ErrNotFound, "delete_product")
	}
	return nil
}

/*
DecrementStock reserves quantity units in one guarded UPDATE.

Description: The stock >= $2 predicate makes overselling impossible under
concurrency; the losing request simply matches zero rows.

Returns:
  - bool: true when the reservation succeeded
  - error: Execution errors
*/
func (repository *PostgresProductRepository) DecrementStock(context context.Context, productID int64, quantity int) (bool, error) {
	const query = `
		UPDATE shop.product
		SET stock = stock - $2, updatedat = now()
		WHERE id = $1 AND active AND stock >= $2`

	tag, err := repository.pool.Exec(context, query, productID, quantity)
	if err != nil {
		return false, dberr.Wrap(err, "decrement_stock")
	}
	return tag.RowsAffected() > 0, nil
}

// Restock returns quantity units to inventory.
func (repository *PostgresProductRepository) Restock(context context.Context, productID int64, quantity int) error {
	const query = `
		UPDATE shop.product
		SET stock = stock + $2, updatedat = now()
		WHERE id = $1`

	if _, err := repository.pool.Exec(context, query, productID, quantity); err != nil {
		return dberr.Wrap(err, "restock_product")
	}
	return nil
}

// # Order Repository

// PostgresOrderRepository implements [OrderRepository] using pgx.
type PostgresOrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository creates the PostgreSQL implementation of [OrderRepository].
func NewOrderRepository(pool *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{pool: pool}
}

const orderColumns = `
	id, buyeruid, productid, quantity, amountwei, status, onchainorderid,
	metadatahash, lasteventtx, note, createdat, paidat, shippedat, completedat,
	cancelledat, refundedat`

func scanOrder(row interface{ Scan(dest ...any) error }) (*Order, error) {
	order := &Order{}
	err := row.Scan(
		&order.ID,
		&order.BuyerUID,
		&order.ProductID,
		&order.Quantity,
		&order.AmountWei,
		&order.Status,
		&order.OnchainOrderID,
		&order.MetadataHash,
		&order.LastEventTx,
		&order.Note,
		&order.CreatedAt,
		&order.PaidAt,
		&order.ShippedAt,
		&order.CompletedAt,
		&order.CancelledAt,
		&order.RefundedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

/*
Create persists a new order in the created state.

Parameters:
  - context: context.Context
  - order: *Order (ID and CreatedAt are populated)

Returns:
  - error: Foreign key violations or connectivity errors
*/
func (repository *PostgresOrderRepository) Create(context context.Context, order *Order) error {
	const query = `
		INSERT INTO shop."order" (buyeruid, productid, quantity, amountwei, status, metadatahash, createdat)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	order.CreatedAt = time.Now()

	err := repository.pool.QueryRow(context, query,
		order.BuyerUID,
		order.ProductID,
		order.Quantity,
		order.AmountWei,
		order.Status,
		order.MetadataHash,
		order.CreatedAt,
	).Scan(&order.ID)
	if err != nil {
		return dberr.Wrap(err, "create_order")
	}
	return nil
}

// SetMetadataHash records the metadata hash once the insert assigned an id.
func (repository *PostgresOrderRepository) SetMetadataHash(context context.Context, orderID int64, hash string) error {
	const query = `UPDATE shop."order" SET metadatahash = $2 WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, orderID, hash)
	if err != nil {
		return dberr.Wrap(err, "set_metadata_hash")
	}
	if tag.RowsAffected() == 0 {
		return dberr.Wrap(dberr.ErrNotFound, "set_metadata_hash")
	}
	return nil
}

// FindByID retrieves a single order by its identifier.
func (repository *PostgresOrderRepository) FindByID(context context.Context, id int64) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM shop."order" WHERE id = $1`

	order, err := scanOrder(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "find_order")
	}
	return order, nil
}

// ListByBuyer retrieves the buyer's orders, newest first, with total.
func (repository *PostgresOrderRepository) ListByBuyer(context context.Context, buyerUID string, limit, offset int) ([]*Order, int, error) {
	var total int
	err := repository.pool.QueryRow(context,
		`SELECT count(*) FROM shop."order" WHERE buyeruid = $1`, buyerUID,
	).Scan(&total)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "count_orders_by_buyer")
	}

	query := `SELECT ` + orderColumns + `
		FROM shop."order"
		WHERE buyeruid = $1
		ORDER BY createdat DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := repository.pool.Query(context, query, buyerUID, limit, offset)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_orders_by_buyer")
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// List retrieves orders for the admin panel, optionally filtered by status.
func (repository *PostgresOrderRepository) List(context context.Context, status OrderStatus, limit, offset int) ([]*Order, int, error) {
	where := ``
	args := []any{}
	if status != "" {
		where = `WHERE status = $1`
		args = append(args, status)
	}

	var total int
	err := repository.pool.QueryRow(context,
		`SELECT count(*) FROM shop."order" `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "count_orders")
	}

	query := fmt.Sprintf(`SELECT %s
		FROM shop."order"
		%s
		ORDER BY createdat DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := repository.pool.Query(context, query, args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_orders")
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func collectOrders(rows interface {
	Next() bool
	Scan(dest ...any) error
}) ([]*Order, error) {
	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_order")
		}
		orders = append(orders, order)
	}
	return orders, nil
}

/*
Transition moves the order to the target status in one guarded UPDATE.

Description: The WHERE status = <predecessor> predicate is the concurrency
control for the whole reconciliation flow. Two racing calls cannot both
apply; the loser matches zero rows and reports a conflict. The on-chain
order id is written through COALESCE so a value, once set, never changes.

Parameters:
  - context: context.Context
  - orderID: int64
  - target: OrderStatus (must have a defined predecessor)
  - txHash: string (recorded as lasteventtx)
  - onchainOrderID: string (written only when non-empty and still unset)
  - note: *string (optional admin note)

Returns:
  - error: apperr.Conflict when the order left the predecessor state
*/
func (repository *PostgresOrderRepository) Transition(context context.Context, orderID int64, target OrderStatus, txHash, onchainOrderID string, note *string) error {
	previous, ok := Predecessor(target)
	if !ok {
		return apperr.ValidationError("Unknown target status")
	}

	column := timestampColumn(target)

	query := fmt.Sprintf(`
		UPDATE shop."order"
		SET status = $2,
			%s = now(),
			lasteventtx = $3,
			onchainorderid = COALESCE(onchainorderid, NULLIF($4, '')),
			note = COALESCE($5, note)
		WHERE id = $1 AND status = $6`, column)

	tag, err := repository.pool.Exec(context, query,
		orderID, target, txHash, onchainOrderID, note, previous)
	if err != nil {
		return dberr.Wrap(err, "transition_order")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict(fmt.Sprintf("Order is not in the %s state", previous))
	}
	return nil
}
