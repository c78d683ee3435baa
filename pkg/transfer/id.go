package transfer

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// idPayloadLen is the fixed width of the identifier preimage:
// 4 + 4 (chain codes) + 32 + 32 (accounts) + 32 (token) + 32 (amount) + 8 (nonce).
const idPayloadLen = 144

// ComputeID derives the transfer identifier binding a single cross-chain
// transfer. All seven inputs are packed at fixed widths, big-endian, with no
// implicit defaults, then hashed with keccak256. The source ledger computes
// it when a deposit is recorded; the destination ledger recomputes it from
// caller-supplied parameters at withdrawal submission. Identical inputs
// always yield the identical identifier.
//
// The amount must fit in 256 bits and must not be negative.
func ComputeID(
	srcChain, destChain ChainCode,
	srcAccount, destAccount Account,
	destToken TokenID,
	amount *big.Int,
	nonce uint64,
) (common.Hash, error) {
	if amount == nil || amount.Sign() < 0 {
		return common.Hash{}, fmt.Errorf("transfer id: amount must be non-negative")
	}
	if amount.BitLen() > 256 {
		return common.Hash{}, fmt.Errorf("transfer id: amount exceeds 256 bits")
	}

	buf := make([]byte, 0, idPayloadLen)
	buf = binary.BigEndian.AppendUint32(buf, uint32(srcChain))
	buf = binary.BigEndian.AppendUint32(buf, uint32(destChain))
	buf = append(buf, srcAccount[:]...)
	buf = append(buf, destAccount[:]...)
	buf = append(buf, destToken[:]...)

	var amt [32]byte
	amount.FillBytes(amt[:])
	buf = append(buf, amt[:]...)
	buf = binary.BigEndian.AppendUint64(buf, nonce)

	return crypto.Keccak256Hash(buf), nil
}
