package bridge

import (
	"math/big"
)

// Normalize rescales an amount between decimal precisions. Down-scaling
// integer-divides and rounds toward zero; the precision loss is expected and
// not reversible. Applied exactly once per transfer, at execution time —
// never at submission, so the transfer identifier is computed over the raw
// source-decimals amount.
func Normalize(amount *big.Int, srcDecimals, destDecimals uint8) *big.Int {
	out := new(big.Int).Set(amount)
	switch {
	case srcDecimals == destDecimals:
		return out
	case srcDecimals > destDecimals:
		return out.Div(out, pow10(srcDecimals-destDecimals))
	default:
		return out.Mul(out, pow10(destDecimals-srcDecimals))
	}
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
