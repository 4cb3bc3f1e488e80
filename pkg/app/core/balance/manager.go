package balance

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ringdex/ringdex/pkg/ring"
	"github.com/ringdex/ringdex/pkg/storage"
)

// Manager tracks per-owner, per-token balances in a thread-safe manner.
// Uses an in-memory cache with optional Pebble persistence. It is the
// spendable-amount scaler consumed by the ring fitter: before a ring is
// fitted, every order's fill amounts are capped by what its owner can fund.
type Manager struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*big.Int // owner -> token -> amount
	store    *storage.Store                                 // nil = in-memory only (tests)
}

// NewManager creates a balance manager. store may be nil, in which case
// balances live only in memory.
func NewManager(store *storage.Store) *Manager {
	return &Manager{
		balances: make(map[common.Address]map[common.Address]*big.Int),
		store:    store,
	}
}

// Credit adds amount of token to an owner's balance (deposits arriving from
// the bridge). Amount must be positive.
func (m *Manager) Credit(owner, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("credit amount must be positive: %v", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balanceLocked(owner, token)
	bal.Add(bal, amount)
	return m.persistLocked(owner, token, bal)
}

// Debit removes amount of token from an owner's balance.
// Returns an error if the balance is insufficient.
func (m *Manager) Debit(owner, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("debit amount must be positive: %v", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balanceLocked(owner, token)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance: have %s, need %s", bal, amount)
	}
	bal.Sub(bal, amount)
	return m.persistLocked(owner, token, bal)
}

// Spendable returns a copy of the owner's balance in token. The caller may
// mutate the result freely.
func (m *Manager) Spendable(owner, token common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balanceLocked(owner, token))
}

// Balances returns a snapshot of every token balance recorded for owner.
func (m *Manager) Balances(owner common.Address) map[common.Address]*big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadOwnerLocked(owner)
	out := make(map[common.Address]*big.Int, len(m.balances[owner]))
	for token, bal := range m.balances[owner] {
		out[token] = new(big.Int).Set(bal)
	}
	return out
}

// ScaleOrder implements ring.SpendableScaler. The order's fill amounts are
// initialized from its nominal amounts, capped by the owner's spendable
// balance in the sell token; buy and fee sides are rescaled at the order's
// own declared price (truncating division). An owner who cannot fund any
// amount invalidates the order.
func (m *Manager) ScaleOrder(ctx context.Context, o *ring.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	spendable := m.Spendable(o.Owner, o.TokenS)

	fill := new(big.Int).Set(o.AmountS)
	if spendable.Cmp(fill) < 0 {
		fill.Set(spendable)
	}

	o.FillAmountS = fill
	o.FillAmountB = new(big.Int).Div(new(big.Int).Mul(fill, o.AmountB), o.AmountS)
	o.FillAmountFee = new(big.Int).Div(new(big.Int).Mul(o.FeeAmount, fill), o.AmountS)

	if fill.Sign() == 0 {
		o.Valid = false
	}
	return nil
}

// balanceLocked returns the live balance entry, loading it from Pebble on
// first touch. Assumes the write lock is held.
func (m *Manager) balanceLocked(owner, token common.Address) *big.Int {
	tokens, ok := m.balances[owner]
	if !ok {
		tokens = make(map[common.Address]*big.Int)
		m.balances[owner] = tokens
	}
	bal, ok := tokens[token]
	if ok {
		return bal
	}

	bal = big.NewInt(0)
	if m.store != nil {
		stored, err := m.store.LoadBalance(owner, token)
		if err != nil {
			fmt.Printf("[balance] failed to load %s/%s: %v\n", owner.Hex(), token.Hex(), err)
		} else if stored != nil {
			bal = stored
		}
	}
	tokens[token] = bal
	return bal
}

// loadOwnerLocked pulls all persisted balances for owner into the cache.
func (m *Manager) loadOwnerLocked(owner common.Address) {
	if m.store == nil {
		return
	}
	stored, err := m.store.LoadBalances(owner)
	if err != nil {
		fmt.Printf("[balance] failed to load balances for %s: %v\n", owner.Hex(), err)
		return
	}
	tokens, ok := m.balances[owner]
	if !ok {
		tokens = make(map[common.Address]*big.Int)
		m.balances[owner] = tokens
	}
	for token, bal := range stored {
		if _, ok := tokens[token]; !ok {
			tokens[token] = bal
		}
	}
}

func (m *Manager) persistLocked(owner, token common.Address, bal *big.Int) error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveBalance(owner, token, bal)
}
