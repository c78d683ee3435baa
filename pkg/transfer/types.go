// Package transfer defines the shared cross-chain transfer types and the
// deterministic transfer identifier scheme. Both sides of a bridge compute
// identifiers with this package; the values must agree bit for bit or the
// destination-side withdrawal can never be matched to a real deposit.
package transfer

import (
	"github.com/ethereum/go-ethereum/common"
)

// ChainCode is the short fixed-size identifier of a registered chain.
// Code 0 is reserved and never assignable.
type ChainCode uint32

// Account is a chain-agnostic 32-byte account identifier. EVM-style 20-byte
// addresses are left-padded into the low bytes, matching ABI bytes32 packing.
type Account [32]byte

// TokenID is a chain-agnostic 32-byte token identifier. The all-zero value
// means "unset" and blocks transfers.
type TokenID [32]byte

var zeroTokenID TokenID

// IsZero reports whether the token identifier is unset.
func (t TokenID) IsZero() bool {
	return t == zeroTokenID
}

// AccountFromAddress widens a 20-byte address into an Account.
func AccountFromAddress(addr common.Address) Account {
	var a Account
	copy(a[12:], addr.Bytes())
	return a
}

// Address narrows an Account back to a 20-byte address, dropping the padding.
func (a Account) Address() common.Address {
	return common.BytesToAddress(a[12:])
}

// TokenIDFromAddress widens a 20-byte token address into a TokenID.
func TokenIDFromAddress(addr common.Address) TokenID {
	var t TokenID
	copy(t[12:], addr.Bytes())
	return t
}

// Address narrows a TokenID back to a 20-byte address.
func (t TokenID) Address() common.Address {
	return common.BytesToAddress(t[12:])
}

// CustodyType selects which custody primitive moves funds for a token.
type CustodyType string

const (
	// CustodyLockUnlock locks deposits in a vault and unlocks on withdrawal.
	CustodyLockUnlock CustodyType = "lock_unlock"
	// CustodyMintBurn burns deposits and mints on withdrawal.
	CustodyMintBurn CustodyType = "mint_burn"
)

// Valid reports whether the custody type is one of the two known kinds.
func (c CustodyType) Valid() bool {
	return c == CustodyLockUnlock || c == CustodyMintBurn
}
