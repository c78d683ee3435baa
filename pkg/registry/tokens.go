package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/transfer"
)

var (
	// ErrTokenExists is returned when registering an already-known token.
	ErrTokenExists = errors.New("token already registered")
	// ErrTokenNotFound is returned for lookups of unregistered tokens.
	ErrTokenNotFound = errors.New("token not registered")
	// ErrDestinationUnset is returned when a token has no (non-zero)
	// destination mapping for the requested chain. An unset mapping blocks
	// transfers to that chain.
	ErrDestinationUnset = errors.New("destination token mapping unset")
	// ErrInvalidCustodyType is returned for unknown custody kinds.
	ErrInvalidCustodyType = errors.New("invalid custody type")
)

// TokenRecord describes a locally registered token.
type TokenRecord struct {
	Address  common.Address
	Custody  transfer.CustodyType
	Decimals uint8
}

// Destination is the per-chain mapping of a local token: the token's
// identifier and decimal precision on the other chain.
type Destination struct {
	TokenID  transfer.TokenID
	Decimals uint8
}

type destKey struct {
	token common.Address
	chain transfer.ChainCode
}

// TokenRegistry maintains local token records and their per-chain
// destination mappings. The same mapping serves both directions: on the
// source side it supplies the destination token identifier entering the
// transfer id; on the destination side it supplies the source-chain decimals
// a submitted withdrawal is denominated in.
type TokenRegistry struct {
	mu           sync.RWMutex
	tokens       map[common.Address]TokenRecord
	destinations map[destKey]Destination
}

// NewTokenRegistry creates an empty token registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		tokens:       make(map[common.Address]TokenRecord),
		destinations: make(map[destKey]Destination),
	}
}

// Register adds a local token with its custody type and decimal precision.
func (r *TokenRegistry) Register(token common.Address, custody transfer.CustodyType, decimals uint8) error {
	if !custody.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCustodyType, custody)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token]; ok {
		return fmt.Errorf("%w: %s", ErrTokenExists, token.Hex())
	}
	r.tokens[token] = TokenRecord{Address: token, Custody: custody, Decimals: decimals}
	return nil
}

// SetDestination maps a local token to its identifier and decimals on
// another chain. Setting the zero TokenID clears the mapping.
func (r *TokenRegistry) SetDestination(token common.Address, chain transfer.ChainCode, destToken transfer.TokenID, destDecimals uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token]; !ok {
		return fmt.Errorf("%w: %s", ErrTokenNotFound, token.Hex())
	}
	key := destKey{token: token, chain: chain}
	if destToken.IsZero() {
		delete(r.destinations, key)
		return nil
	}
	r.destinations[key] = Destination{TokenID: destToken, Decimals: destDecimals}
	return nil
}

// DestinationOf returns the mapping of a local token on the given chain.
func (r *TokenRegistry) DestinationOf(token common.Address, chain transfer.ChainCode) (Destination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.tokens[token]; !ok {
		return Destination{}, fmt.Errorf("%w: %s", ErrTokenNotFound, token.Hex())
	}
	dest, ok := r.destinations[destKey{token: token, chain: chain}]
	if !ok {
		return Destination{}, fmt.Errorf("%w: token %s chain %d", ErrDestinationUnset, token.Hex(), chain)
	}
	return dest, nil
}

// SourceDecimals returns the decimal precision a token has on the given
// source chain, resolved from the same destination mapping.
func (r *TokenRegistry) SourceDecimals(srcChain transfer.ChainCode, token common.Address) (uint8, error) {
	dest, err := r.DestinationOf(token, srcChain)
	if err != nil {
		return 0, err
	}
	return dest.Decimals, nil
}

// IsRegistered reports whether a token is locally registered.
func (r *TokenRegistry) IsRegistered(token common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tokens[token]
	return ok
}

// Record returns the local registration of a token.
func (r *TokenRegistry) Record(token common.Address) (TokenRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.tokens[token]
	if !ok {
		return TokenRecord{}, fmt.Errorf("%w: %s", ErrTokenNotFound, token.Hex())
	}
	return rec, nil
}

// CustodyTypeOf returns the custody kind a token was registered with.
func (r *TokenRegistry) CustodyTypeOf(token common.Address) (transfer.CustodyType, error) {
	rec, err := r.Record(token)
	if err != nil {
		return "", err
	}
	return rec.Custody, nil
}

// LocalDecimals returns the local decimal precision of a token.
func (r *TokenRegistry) LocalDecimals(token common.Address) (uint8, error) {
	rec, err := r.Record(token)
	if err != nil {
		return 0, err
	}
	return rec.Decimals, nil
}

// Tokens enumerates all registered tokens, ordered by address.
func (r *TokenRegistry) Tokens() []TokenRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TokenRecord, 0, len(r.tokens))
	for _, rec := range r.tokens {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Cmp(out[j].Address) < 0
	})
	return out
}
