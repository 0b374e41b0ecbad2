// Copyright (c) 2026 Atrium. All rights reserved.

package shop

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/constants"
)

// StatusEvent is a decoded OrderStatusChanged emission from the shop contract.
type StatusEvent struct {
	// OrderID is the on-chain order identifier as a decimal string.
	OrderID string

	// Code is the numeric status code carried by the event.
	Code uint8
}

// Receipts resolves a transaction hash into the shop-contract status events
// it emitted. The production implementation talks to an Ethereum node; tests
// substitute a fake.
type Receipts interface {
	// StatusEvents returns the OrderStatusChanged events the transaction
	// emitted from the configured shop contract.
	//
	// Returns a 400-class [apperr.AppError] when the receipt is missing or
	// the transaction reverted, and [apperr.Upstream] on RPC failure.
	StatusEvents(ctx context.Context, txHash string) ([]StatusEvent, error)
}

// shopContractABI covers the single event the reconciliation flow decodes.
const shopContractABI = `[
	{
		"type": "event",
		"name": "OrderStatusChanged",
		"inputs": [
			{"name": "orderId", "type": "uint256", "indexed": true},
			{"name": "status", "type": "uint8", "indexed": false}
		]
	}
]`

// EthereumReceipts implements [Receipts] against a JSON-RPC Ethereum node.
//
// The client connection lives for the whole process; each call carries its
// own timeout so a hanging node cannot stall request handlers forever.
type EthereumReceipts struct {
	client   *ethclient.Client
	contract common.Address
	abi      abi.ABI
	eventID  common.Hash
}

// NewEthereumReceipts dials the RPC endpoint and prepares the event decoder
// for the given shop contract address.
func NewEthereumReceipts(rpcURL, contractAddress string) (*EthereumReceipts, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, apperr.Upstream("chain_rpc", err)
	}

	parsed, err := abi.JSON(strings.NewReader(shopContractABI))
	if err != nil {
		return nil, err
	}

	return &EthereumReceipts{
		client:   client,
		contract: common.HexToAddress(contractAddress),
		abi:      parsed,
		eventID:  parsed.Events["OrderStatusChanged"].ID,
	}, nil
}

// Close releases the underlying RPC connection.
func (receipts *EthereumReceipts) Close() {
	receipts.client.Close()
}

/*
StatusEvents fetches the receipt for txHash and decodes the shop contract's
OrderStatusChanged emissions.

Description: Logs from other contracts and other event types in the same
transaction are skipped, not rejected; a purchase transaction may interact
with several contracts.

Parameters:
  - ctx: context.Context (bounded per call by constants.ChainCallTimeout)
  - txHash: string (0x-prefixed transaction hash)

Returns:
  - []StatusEvent: Decoded events, possibly empty
  - error: 400-class error for missing or reverted receipts, Upstream for RPC failures
*/
func (receipts *EthereumReceipts) StatusEvents(ctx context.Context, txHash string) ([]StatusEvent, error) {
	callCtx, cancel := context.WithTimeout(ctx, constants.ChainCallTimeout)
	defer cancel()

	receipt, err := receipts.client.TransactionReceipt(callCtx, common.HexToHash(txHash))
	if err == ethereum.NotFound {
		return nil, apperr.ValidationError("Transaction receipt not found")
	}
	if err != nil {
		return nil, apperr.Upstream("chain_rpc", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, apperr.ValidationError("Transaction was not successful")
	}

	var events []StatusEvent
	for _, entry := range receipt.Logs {
		if entry.Address != receipts.contract {
			continue
		}
		if len(entry.Topics) < 2 || entry.Topics[0] != receipts.eventID {
			continue
		}

		orderID := new(big.Int).SetBytes(entry.Topics[1].Bytes())

		decoded, err := receipts.abi.Unpack("OrderStatusChanged", entry.Data)
		if err != nil || len(decoded) != 1 {
			continue
		}
		code, ok := decoded[0].(uint8)
		if !ok {
			continue
		}

		events = append(events, StatusEvent{
			OrderID: orderID.String(),
			Code:    code,
		})
	}

	return events, nil
}
