package ring

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	tokenLRC  = common.HexToAddress("0x1100000000000000000000000000000000000000")
	tokenWETH = common.HexToAddress("0x2200000000000000000000000000000000000000")
	tokenUSDT = common.HexToAddress("0x3300000000000000000000000000000000000000")

	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	carol = common.HexToAddress("0xCC00000000000000000000000000000000000000")

	relay     = common.HexToAddress("0xDD00000000000000000000000000000000000000")
	feeHolder = common.HexToAddress("0xFE00000000000000000000000000000000000000")
)

// newOrder builds a valid, hashed order at the given price expressed as
// amountS sold for amountB bought.
func newOrder(owner common.Address, tokenS, tokenB common.Address, amountS, amountB, fee int64) *Order {
	o := &Order{
		Owner:     owner,
		TokenS:    tokenS,
		TokenB:    tokenB,
		FeeToken:  tokenLRC,
		AmountS:   big.NewInt(amountS),
		AmountB:   big.NewInt(amountB),
		FeeAmount: big.NewInt(fee),
		Valid:     true,
	}
	// deterministic per-order hash so ring identities are stable in tests
	copy(o.Hash[:], owner[:])
	copy(o.Hash[20:], tokenS[:12])
	return o
}

// fullScaler fills every order at its full nominal amounts, as if each owner
// had unlimited funds.
type fullScaler struct{}

func (fullScaler) ScaleOrder(_ context.Context, o *Order) error {
	o.FillAmountS = new(big.Int).Set(o.AmountS)
	o.FillAmountB = new(big.Int).Set(o.AmountB)
	o.FillAmountFee = new(big.Int).Set(o.FeeAmount)
	return nil
}

// cappedScaler caps selected owners' sell amounts at a fixed spendable.
type cappedScaler struct {
	spendable map[common.Address]*big.Int
}

func (s cappedScaler) ScaleOrder(_ context.Context, o *Order) error {
	fill := new(big.Int).Set(o.AmountS)
	if cap, ok := s.spendable[o.Owner]; ok && cap.Cmp(fill) < 0 {
		fill = new(big.Int).Set(cap)
	}
	o.FillAmountS = fill
	o.FillAmountB = new(big.Int).Div(new(big.Int).Mul(fill, o.AmountB), o.AmountS)
	o.FillAmountFee = new(big.Int).Div(new(big.Int).Mul(o.FeeAmount, fill), o.AmountS)
	if fill.Sign() == 0 {
		o.Valid = false
	}
	return nil
}

type stubRegistry struct {
	unlisted map[common.Address]bool
}

func (s stubRegistry) AreAllRegistered(_ context.Context, tokens []common.Address) (bool, error) {
	for _, t := range tokens {
		if s.unlisted[t] {
			return false, nil
		}
	}
	return true, nil
}

func TestNewRejectsShortAndNilSequences(t *testing.T) {
	a := newOrder(alice, tokenLRC, tokenWETH, 100, 100, 0)

	_, err := New([]*Order{a}, relay, feeHolder)
	require.ErrorIs(t, err, ErrTooFewOrders)

	_, err = New([]*Order{a, nil}, relay, feeHolder)
	require.ErrorIs(t, err, ErrNilOrder)
}

func TestHashDependsOnOrderSequence(t *testing.T) {
	a := newOrder(alice, tokenLRC, tokenWETH, 100, 100, 0)
	b := newOrder(bob, tokenWETH, tokenLRC, 100, 100, 0)

	r1, err := New([]*Order{a, b}, relay, feeHolder)
	require.NoError(t, err)
	r2, err := New([]*Order{b, a}, relay, feeHolder)
	require.NoError(t, err)

	require.NotEqual(t, r1.Hash(), r2.Hash(), "permuted sequence must change ring identity")

	// cached digest is stable
	require.Equal(t, r1.Hash(), r1.Hash())

	// same sequence, same identity
	r3, err := New([]*Order{a, b}, relay, feeHolder)
	require.NoError(t, err)
	require.Equal(t, r1.Hash(), r3.Hash())
}

func TestCheckOrdersValidAggregates(t *testing.T) {
	a := newOrder(alice, tokenLRC, tokenWETH, 100, 100, 0)
	b := newOrder(bob, tokenWETH, tokenLRC, 100, 100, 0)

	r, err := New([]*Order{a, b}, relay, feeHolder)
	require.NoError(t, err)
	require.True(t, r.CheckOrdersValid())
	require.True(t, r.Valid())

	b.Valid = false
	r2, err := New([]*Order{a, b}, relay, feeHolder)
	require.NoError(t, err)
	require.False(t, r2.CheckOrdersValid())
	require.False(t, r2.Valid())

	// the verdict never recovers within one ring
	b.Valid = true
	require.False(t, r2.CheckOrdersValid())
}

func TestCheckTokensRegistered(t *testing.T) {
	a := newOrder(alice, tokenLRC, tokenWETH, 100, 100, 0)
	b := newOrder(bob, tokenWETH, tokenLRC, 100, 100, 0)

	r, err := New([]*Order{a, b}, relay, feeHolder)
	require.NoError(t, err)

	ok, err := r.CheckTokensRegistered(context.Background(), stubRegistry{})
	require.NoError(t, err)
	require.True(t, ok)

	r2, err := New([]*Order{a, b}, relay, feeHolder)
	require.NoError(t, err)
	ok, err = r2.CheckTokensRegistered(context.Background(), stubRegistry{
		unlisted: map[common.Address]bool{tokenWETH: true},
	})
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, r2.Valid())
}
