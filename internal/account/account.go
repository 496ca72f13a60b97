// Package account manages signing identities, per-account nonce state,
// and per-account submission gates.
package account

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account holds a signing credential and its derived address.
// Immutable after load; shared read-only across all profile loops.
type Account struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
}

// NewAccount creates an account from a private key.
func NewAccount(privateKey *ecdsa.PrivateKey) *Account {
	return &Account{
		PrivateKey: privateKey,
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// NewAccountFromHex creates an account from a hex-encoded private key.
// A leading "0x" prefix is accepted.
func NewAccountFromHex(hexKey string) (*Account, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, err
	}
	return NewAccount(privateKey), nil
}

// LoadAccount creates an account from a hex key and verifies that the
// expected address (as configured) matches the key-derived one. The
// expected address must pass the EIP-55 mixed-case checksum when it
// carries mixed case.
func LoadAccount(hexKey, expectedAddr string) (*Account, error) {
	acc, err := NewAccountFromHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	expected := strings.TrimSpace(expectedAddr)
	if !common.IsHexAddress(expected) {
		return nil, fmt.Errorf("invalid address %q", expectedAddr)
	}
	parsed := common.HexToAddress(expected)

	// Mixed-case input must be a valid EIP-55 checksum; all-lower and
	// all-upper inputs are treated as unchecksummed.
	digits := strings.TrimPrefix(expected, "0x")
	if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) {
		if parsed.Hex() != "0x"+digits {
			return nil, fmt.Errorf("address %q fails checksum (expected %s)", expectedAddr, parsed.Hex())
		}
	}

	if parsed != acc.Address {
		return nil, fmt.Errorf("address %s does not match key-derived address %s", parsed.Hex(), acc.Address.Hex())
	}
	return acc, nil
}
