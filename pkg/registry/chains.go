// Package registry holds the shared reference data the bridge consults on
// every transfer: the chain registry (code <-> label-hash bijection) and the
// token registry (custody type, decimals, per-destination mappings).
// Registries are mutated only by administrative calls, never by the transfer
// path.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/transfer"
)

var (
	// ErrZeroChainCode is returned for the reserved code 0.
	ErrZeroChainCode = errors.New("chain code 0 is reserved")
	// ErrChainExists is returned when a code or label hash is already taken.
	ErrChainExists = errors.New("chain already registered")
	// ErrChainNotFound is returned for lookups of unregistered chains.
	ErrChainNotFound = errors.New("chain not registered")
)

// ChainRecord pairs a chain code with the keccak256 hash of its
// human-readable label.
type ChainRecord struct {
	Code      transfer.ChainCode
	Label     string
	LabelHash common.Hash
}

// ChainRegistry maintains a bijection between chain codes and label hashes.
type ChainRegistry struct {
	mu     sync.RWMutex
	byCode map[transfer.ChainCode]ChainRecord
	byHash map[common.Hash]transfer.ChainCode
}

// NewChainRegistry creates an empty chain registry.
func NewChainRegistry() *ChainRegistry {
	return &ChainRegistry{
		byCode: make(map[transfer.ChainCode]ChainRecord),
		byHash: make(map[common.Hash]transfer.ChainCode),
	}
}

// LabelHash derives the collision-resistant key of a human-readable chain
// label.
func LabelHash(label string) common.Hash {
	return crypto.Keccak256Hash([]byte(label))
}

// Add registers a chain under the given code. Both the code and the label
// hash must be globally unique; code 0 is never assignable.
func (r *ChainRegistry) Add(code transfer.ChainCode, label string) (ChainRecord, error) {
	if code == 0 {
		return ChainRecord{}, ErrZeroChainCode
	}
	hash := LabelHash(label)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byCode[code]; ok {
		return ChainRecord{}, fmt.Errorf("%w: code %d is %q", ErrChainExists, code, existing.Label)
	}
	if existingCode, ok := r.byHash[hash]; ok {
		return ChainRecord{}, fmt.Errorf("%w: label %q is code %d", ErrChainExists, label, existingCode)
	}

	rec := ChainRecord{Code: code, Label: label, LabelHash: hash}
	r.byCode[code] = rec
	r.byHash[hash] = code
	return rec, nil
}

// Remove deregisters a chain, freeing both its code and its label hash.
func (r *ChainRegistry) Remove(code transfer.ChainCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byCode[code]
	if !ok {
		return fmt.Errorf("%w: code %d", ErrChainNotFound, code)
	}
	delete(r.byCode, code)
	delete(r.byHash, rec.LabelHash)
	return nil
}

// IsRegistered reports whether a chain code is registered.
func (r *ChainRegistry) IsRegistered(code transfer.ChainCode) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byCode[code]
	return ok
}

// ByCode returns the record registered under a code.
func (r *ChainRegistry) ByCode(code transfer.ChainCode) (ChainRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byCode[code]
	if !ok {
		return ChainRecord{}, fmt.Errorf("%w: code %d", ErrChainNotFound, code)
	}
	return rec, nil
}

// CodeOf resolves a label hash back to its chain code.
func (r *ChainRegistry) CodeOf(hash common.Hash) (transfer.ChainCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.byHash[hash]
	if !ok {
		return 0, fmt.Errorf("%w: hash %s", ErrChainNotFound, hash.Hex())
	}
	return code, nil
}

// Chains enumerates all registered chains, ordered by code.
func (r *ChainRegistry) Chains() []ChainRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ChainRecord, 0, len(r.byCode))
	for _, rec := range r.byCode {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
