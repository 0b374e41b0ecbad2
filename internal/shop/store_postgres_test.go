// Copyright (c) 2026 Atrium. All rights reserved.

package shop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orderRows replays a canned page of orders through the rows interface
// consumed by collectOrders.
type orderRows struct {
	orders []*Order
	cursor int
}

func (rows *orderRows) Next() bool {
	return rows.cursor < len(rows.orders)
}

func (rows *orderRows) Scan(dest ...any) error {
	order := rows.orders[rows.cursor]
	rows.cursor++

	*dest[0].(*int64) = order.ID
	*dest[1].(*string) = order.BuyerUID
	*dest[2].(*int64) = order.ProductID
	*dest[3].(*int) = order.Quantity
	*dest[4].(*string) = order.AmountWei
	*dest[5].(*OrderStatus) = order.Status
	*dest[6].(**string) = order.OnchainOrderID
	*dest[7].(*string) = order.MetadataHash
	*dest[8].(**string) = order.LastEventTx
	*dest[9].(**string) = order.Note
	*dest[10].(*time.Time) = order.CreatedAt
	*dest[11].(**time.Time) = order.PaidAt
	*dest[12].(**time.Time) = order.ShippedAt
	*dest[13].(**time.Time) = order.CompletedAt
	*dest[14].(**time.Time) = order.CancelledAt
	*dest[15].(**time.Time) = order.RefundedAt
	return nil
}

/*
TestCollectOrders_ReadsPageOnly pins down the contract of the row collector:
it materializes exactly the page it is handed and carries no count. The list
totals come from the separate count(*) query in List and ListByBuyer, never
from the page length.
*/
func TestCollectOrders_ReadsPageOnly(t *testing.T) {
	page := []*Order{
		{ID: 7, BuyerUID: "buyer-a", ProductID: 1, Quantity: 2, AmountWei: "100", Status: StatusCreated, CreatedAt: time.Now()},
		{ID: 6, BuyerUID: "buyer-a", ProductID: 1, Quantity: 1, AmountWei: "50", Status: StatusPaid, CreatedAt: time.Now()},
	}

	orders, err := collectOrders(&orderRows{orders: page})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, int64(7), orders[0].ID)
	assert.Equal(t, int64(6), orders[1].ID)
	assert.Equal(t, StatusPaid, orders[1].Status)
}
