package bridge

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		src    uint8
		dest   uint8
		want   string
	}{
		{name: "identity", amount: "123456789", src: 18, dest: 18, want: "123456789"},
		{name: "up-scale 6 to 18", amount: "1500000", src: 6, dest: 18, want: "1500000000000000000"},
		{name: "down-scale exact", amount: "1500000000000000000", src: 18, dest: 6, want: "1500000"},
		{name: "down-scale truncates dust", amount: "1500000999999999999", src: 18, dest: 6, want: "1500000"},
		{name: "down-scale below grid to zero", amount: "999999999999", src: 18, dest: 6, want: "0"},
		{name: "zero", amount: "0", src: 18, dest: 6, want: "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			amount, ok := new(big.Int).SetString(tc.amount, 10)
			assert.True(t, ok)
			got := Normalize(amount, tc.src, tc.dest)
			assert.Equal(t, tc.want, got.String())
			// The input is never mutated.
			assert.Equal(t, tc.amount, amount.String())
		})
	}
}

func TestNormalize_RoundTripLosesDust(t *testing.T) {
	amount, _ := new(big.Int).SetString("1500000999999999999", 10)
	down := Normalize(amount, 18, 6)
	back := Normalize(down, 6, 18)
	assert.Equal(t, "1500000000000000000", back.String())
	assert.Equal(t, -1, back.Cmp(amount))
}
