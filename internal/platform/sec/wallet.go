// Copyright (c) 2026 Atrium. All rights reserved.

package sec

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// IsWalletAddress reports whether the value is a well-formed 0x-prefixed,
// 20-byte hex account identifier.
func IsWalletAddress(value string) bool {
	return common.IsHexAddress(value)
}

// NormalizeWallet lowercases a wallet address for storage and comparison.
// Addresses are compared case-insensitively everywhere in the system.
func NormalizeWallet(address string) string {
	return strings.ToLower(address)
}

// RecoverWalletSigner recovers the account that produced an EIP-191
// personal-sign signature over the given message.
//
// # Signature Format
//
// The signature is the 65-byte [R || S || V] hex string produced by
// eth_sign / personal_sign. Wallets disagree on the recovery id convention:
// geth emits V in {0, 1} while MetaMask and most browser wallets emit
// {27, 28}. Both are accepted.
func RecoverWalletSigner(message, signature string) (string, error) {
	sigBytes, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("sec: malformed signature encoding: %w", err)
	}

	if len(sigBytes) != crypto.SignatureLength {
		return "", fmt.Errorf("sec: signature must be %d bytes, got %d", crypto.SignatureLength, len(sigBytes))
	}

	// Normalize the recovery id for crypto.SigToPub, which expects {0, 1}.
	if sigBytes[crypto.RecoveryIDOffset] >= 27 {
		sigBytes[crypto.RecoveryIDOffset] -= 27
	}
	if sigBytes[crypto.RecoveryIDOffset] > 1 {
		return "", fmt.Errorf("sec: invalid signature recovery id")
	}

	// EIP-191: the signed digest is keccak256 over the prefixed message.
	digest := personalSignDigest(message)

	publicKey, err := crypto.SigToPub(digest, sigBytes)
	if err != nil {
		return "", fmt.Errorf("sec: signature recovery failed: %w", err)
	}

	return NormalizeWallet(crypto.PubkeyToAddress(*publicKey).Hex()), nil
}

// VerifyWalletSignature reports whether signature over message was produced
// by the claimed address (compared case-insensitively).
func VerifyWalletSignature(address, message, signature string) (bool, error) {
	recovered, err := RecoverWalletSigner(message, signature)
	if err != nil {
		return false, err
	}
	return recovered == NormalizeWallet(address), nil
}

// personalSignDigest computes keccak256("\x19Ethereum Signed Message:\n" + len + message).
func personalSignDigest(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}
