package ring

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrTooFewOrders rejects rings that cannot form a cycle.
	ErrTooFewOrders = errors.New("ring: need at least two orders")
	// ErrNilOrder rejects rings built from a slice with nil entries.
	ErrNilOrder = errors.New("ring: nil order in sequence")
)

// SpendableScaler caps an order's fill amounts by what the owner can actually
// fund. Implementations may hit storage or the network; they are called once
// per order before fitting begins.
type SpendableScaler interface {
	ScaleOrder(ctx context.Context, o *Order) error
}

// TokenRegistry answers whether every address in tokens is allow-listed for
// settlement.
type TokenRegistry interface {
	AreAllRegistered(ctx context.Context, tokens []common.Address) (bool, error)
}

// Ring is a cyclic sequence of orders: order i sells the token order i+1
// buys, and the last order closes the loop. A Ring is built fresh per
// settlement attempt, mutated only by its own fitter, and discarded after
// one validate -> fit -> plan pass.
type Ring struct {
	orders       []*Order
	owner        common.Address // the relay/miner that assembled the ring
	feeRecipient common.Address

	hash   common.Hash
	hashed bool
	valid  bool
}

// New constructs a ring over an ordered, already-hashed order sequence. The
// sequence defines the transfer cycle and is never reordered.
func New(orders []*Order, owner, feeRecipient common.Address) (*Ring, error) {
	if len(orders) < 2 {
		return nil, ErrTooFewOrders
	}
	for _, o := range orders {
		if o == nil {
			return nil, ErrNilOrder
		}
	}
	return &Ring{
		orders:       orders,
		owner:        owner,
		feeRecipient: feeRecipient,
		valid:        true,
	}, nil
}

func (r *Ring) Orders() []*Order             { return r.orders }
func (r *Ring) Size() int                    { return len(r.orders) }
func (r *Ring) Owner() common.Address        { return r.owner }
func (r *Ring) FeeRecipient() common.Address { return r.feeRecipient }

// Valid reports the aggregate verdict accumulated so far. It only ever moves
// from true to false within one Ring instance.
func (r *Ring) Valid() bool { return r.valid }

// Hash derives the ring identity: keccak256 over the order hashes
// concatenated in sequence order. Permuting the sequence changes the
// identity. The digest is cached after the first call.
func (r *Ring) Hash() common.Hash {
	if r.hashed {
		return r.hash
	}
	h := sha3.NewLegacyKeccak256()
	for _, o := range r.orders {
		h.Write(o.Hash[:])
	}
	copy(r.hash[:], h.Sum(nil))
	r.hashed = true
	return r.hash
}

// CheckOrdersValid ANDs every member order's own validity flag into the ring
// verdict. Each order is inspected even after the verdict is already false so
// that diagnostics see the full picture.
func (r *Ring) CheckOrdersValid() bool {
	ok := true
	for _, o := range r.orders {
		if !o.Valid {
			ok = false
		}
	}
	if !ok {
		r.valid = false
	}
	return r.valid
}

// CheckTokensRegistered collects every order's sell token and asks the
// registry whether all of them are allow-listed, ANDing the answer into the
// ring verdict.
func (r *Ring) CheckTokensRegistered(ctx context.Context, reg TokenRegistry) (bool, error) {
	tokens := make([]common.Address, len(r.orders))
	for i, o := range r.orders {
		tokens[i] = o.TokenS
	}
	ok, err := reg.AreAllRegistered(ctx, tokens)
	if err != nil {
		return false, err
	}
	if !ok {
		r.valid = false
	}
	return r.valid, nil
}

// invalidate is used by the fitter when the ring turns out unsettleable.
func (r *Ring) invalidate() { r.valid = false }

// prevIndex and nextIndex give cyclic adjacency over the order sequence.
func (r *Ring) prevIndex(i int) int { return (i - 1 + len(r.orders)) % len(r.orders) }
func (r *Ring) nextIndex(i int) int { return (i + 1) % len(r.orders) }
