package storage

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// BalanceRecord is the persisted form of one (owner, token) balance. The
// amount is kept as a decimal string so it survives JSON round-trips at any
// magnitude.
type BalanceRecord struct {
	Owner  common.Address `json:"owner"`
	Token  common.Address `json:"token"`
	Amount string         `json:"amount"`
}

// TokenRecord is the persisted form of one allow-listed token.
type TokenRecord struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// Store provides Pebble-based persistence for balances and the token
// allow-list. Thread safety is the caller's concern: the balance manager and
// token registry serialize access through their own mutexes.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20), // 64MB cache
		MemTableSize: 32 << 20,
		MaxOpenFiles: 1000,
	}
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBalance persists one (owner, token) balance.
func (s *Store) SaveBalance(owner, token common.Address, amount *big.Int) error {
	rec := BalanceRecord{Owner: owner, Token: token, Amount: amount.String()}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal balance: %w", err)
	}
	if err := s.db.Set(balanceKey(owner, token), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// LoadBalance loads one (owner, token) balance.
// Returns nil if no balance has been recorded.
func (s *Store) LoadBalance(owner, token common.Address) (*big.Int, error) {
	data, closer, err := s.db.Get(balanceKey(owner, token))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	defer closer.Close()

	var rec BalanceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal balance: %w", err)
	}
	amount, ok := new(big.Int).SetString(rec.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt balance amount %q for %s", rec.Amount, owner.Hex())
	}
	return amount, nil
}

// LoadBalances loads every recorded token balance for an owner.
func (s *Store) LoadBalances(owner common.Address) (map[common.Address]*big.Int, error) {
	prefix := balancePrefix(owner)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}
	defer iter.Close()

	balances := make(map[common.Address]*big.Int)
	for iter.First(); iter.Valid(); iter.Next() {
		var rec BalanceRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // skip invalid entries
		}
		amount, ok := new(big.Int).SetString(rec.Amount, 10)
		if !ok {
			continue
		}
		balances[rec.Token] = amount
	}
	return balances, nil
}

// SaveToken persists an allow-listed token.
func (s *Store) SaveToken(rec TokenRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := s.db.Set(tokenKey(rec.Address), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// DeleteToken removes a token from the allow-list store.
func (s *Store) DeleteToken(addr common.Address) error {
	if err := s.db.Delete(tokenKey(addr), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// LoadTokens loads the full token allow-list.
func (s *Store) LoadTokens() ([]TokenRecord, error) {
	prefix := tokenPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate tokens: %w", err)
	}
	defer iter.Close()

	var tokens []TokenRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec TokenRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // skip invalid entries
		}
		tokens = append(tokens, rec)
	}
	return tokens, nil
}
