package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ringdex/ringdex/pkg/storage"
)

// Info describes one allow-listed token.
type Info struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// Registry is the settlement token allow-list: only rings whose sell tokens
// are all registered here may settle. Thread-safe; optionally persisted in
// Pebble and reloaded on startup.
type Registry struct {
	mu     sync.RWMutex
	tokens map[common.Address]*Info
	store  *storage.Store // nil = in-memory only (tests)
}

// NewRegistry creates a registry, loading any persisted allow-list from
// store. store may be nil.
func NewRegistry(store *storage.Store) (*Registry, error) {
	r := &Registry{
		tokens: make(map[common.Address]*Info),
		store:  store,
	}
	if store != nil {
		records, err := store.LoadTokens()
		if err != nil {
			return nil, fmt.Errorf("failed to load token allow-list: %w", err)
		}
		for _, rec := range records {
			r.tokens[rec.Address] = &Info{
				Address:  rec.Address,
				Symbol:   rec.Symbol,
				Decimals: rec.Decimals,
			}
		}
	}
	return r, nil
}

// Register adds a token to the allow-list.
// Returns an error if the address is already registered.
func (r *Registry) Register(info *Info) error {
	if info == nil {
		return fmt.Errorf("cannot register nil token")
	}
	if info.Address == (common.Address{}) {
		return fmt.Errorf("cannot register zero token address")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[info.Address]; exists {
		return fmt.Errorf("token %s already registered", info.Address.Hex())
	}
	r.tokens[info.Address] = info
	if r.store != nil {
		return r.store.SaveToken(storage.TokenRecord{
			Address:  info.Address,
			Symbol:   info.Symbol,
			Decimals: info.Decimals,
		})
	}
	return nil
}

// Unregister removes a token from the allow-list.
func (r *Registry) Unregister(addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[addr]; !exists {
		return fmt.Errorf("token %s not registered", addr.Hex())
	}
	delete(r.tokens, addr)
	if r.store != nil {
		return r.store.DeleteToken(addr)
	}
	return nil
}

// IsRegistered checks one address.
func (r *Registry) IsRegistered(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tokens[addr]
	return exists
}

// AreAllRegistered implements ring.TokenRegistry: true only if every address
// in tokens is allow-listed.
func (r *Registry) AreAllRegistered(ctx context.Context, tokens []common.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, addr := range tokens {
		if _, exists := r.tokens[addr]; !exists {
			return false, nil
		}
	}
	return true, nil
}

// List returns all registered tokens.
func (r *Registry) List() []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Info, 0, len(r.tokens))
	for _, info := range r.tokens {
		out = append(out, info)
	}
	return out
}

// Count returns the number of registered tokens.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
