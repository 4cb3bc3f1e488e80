package settle

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ringdex/ringdex/pkg/app/core/balance"
	"github.com/ringdex/ringdex/pkg/app/core/token"
	"github.com/ringdex/ringdex/pkg/crypto"
	"github.com/ringdex/ringdex/pkg/ring"
	"github.com/ringdex/ringdex/pkg/util"
)

var (
	tokenLRC  = common.HexToAddress("0x1100000000000000000000000000000000000000")
	tokenWETH = common.HexToAddress("0x2200000000000000000000000000000000000000")

	relay     = common.HexToAddress("0xDD00000000000000000000000000000000000000")
	feeHolder = common.HexToAddress("0xFE00000000000000000000000000000000000000")

	testNow = time.Unix(1_700_000_000, 0)
)

type fixture struct {
	app    *App
	hasher *crypto.OrderHasher
	alice  *crypto.Signer
	bob    *crypto.Signer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	balances := balance.NewManager(nil)
	tokens, err := token.NewRegistry(nil)
	require.NoError(t, err)
	require.NoError(t, tokens.Register(&token.Info{Address: tokenLRC, Symbol: "LRC", Decimals: 18}))
	require.NoError(t, tokens.Register(&token.Info{Address: tokenWETH, Symbol: "WETH", Decimals: 18}))

	cfg := Config{ChainID: 1337, FeeHolder: feeHolder, WalletSplitPct: 20}
	app := NewApp(cfg, balances, tokens, nil)
	app.SetClock(util.FixedClock{T: testNow})

	alice, err := crypto.GenerateKey()
	require.NoError(t, err)
	bob, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &fixture{
		app:    app,
		hasher: crypto.NewOrderHasher(crypto.DefaultDomain(cfg.ChainID)),
		alice:  alice,
		bob:    bob,
	}
}

func (f *fixture) signedOrder(t *testing.T, signer *crypto.Signer, tokenS, tokenB common.Address, amountS, amountB, fee int64) *SignedOrder {
	t.Helper()
	order := &crypto.OrderTyped{
		TokenS:     tokenS,
		TokenB:     tokenB,
		FeeToken:   tokenLRC,
		AmountS:    big.NewInt(amountS),
		AmountB:    big.NewInt(amountB),
		FeeAmount:  big.NewInt(fee),
		ValidSince: big.NewInt(testNow.Unix() - 60),
		ValidUntil: big.NewInt(testNow.Unix() + 3600),
		Owner:      signer.Address(),
	}
	sig, err := f.hasher.SignOrder(signer, order)
	require.NoError(t, err)
	return &SignedOrder{Order: order, Signature: sig}
}

func (f *fixture) fund(t *testing.T, owner common.Address, tok common.Address, amount int64) {
	t.Helper()
	require.NoError(t, f.app.Balances().Credit(owner, tok, big.NewInt(amount)))
}

func TestSettleRingHappyPath(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.alice.Address(), tokenLRC, 1000)
	f.fund(t, f.bob.Address(), tokenWETH, 1000)

	cand := &Candidate{
		Orders: []*SignedOrder{
			f.signedOrder(t, f.alice, tokenLRC, tokenWETH, 100, 100, 10),
			f.signedOrder(t, f.bob, tokenWETH, tokenLRC, 100, 100, 0),
		},
		Owner: relay,
	}

	res, err := f.app.SettleRing(context.Background(), cand)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.NotEqual(t, common.Hash{}, res.RingHash)
	require.Len(t, res.Fills, 2)

	// principal both ways plus alice's fee
	require.Len(t, res.Transfers, 3)
	require.Equal(t, ring.TransferItem{
		Token: tokenLRC, From: f.alice.Address(), To: f.bob.Address(), Amount: big.NewInt(100),
	}, res.Transfers[0])
	require.Equal(t, ring.TransferItem{
		Token: tokenLRC, From: f.alice.Address(), To: feeHolder, Amount: big.NewInt(10),
	}, res.Transfers[1])
	require.Equal(t, ring.TransferItem{
		Token: tokenWETH, From: f.bob.Address(), To: f.alice.Address(), Amount: big.NewInt(100),
	}, res.Transfers[2])
}

func TestSettleRingForgedSignatureInvalidatesRing(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.alice.Address(), tokenLRC, 1000)
	f.fund(t, f.bob.Address(), tokenWETH, 1000)

	good := f.signedOrder(t, f.alice, tokenLRC, tokenWETH, 100, 100, 0)
	forged := f.signedOrder(t, f.bob, tokenWETH, tokenLRC, 100, 100, 0)
	forged.Order.Owner = f.alice.Address() // signature no longer matches owner

	res, err := f.app.SettleRing(context.Background(), &Candidate{
		Orders: []*SignedOrder{good, forged},
		Owner:  relay,
	})
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Empty(t, res.Transfers)
}

func TestSettleRingExpiredOrderInvalidatesRing(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.alice.Address(), tokenLRC, 1000)
	f.fund(t, f.bob.Address(), tokenWETH, 1000)

	a := f.signedOrder(t, f.alice, tokenLRC, tokenWETH, 100, 100, 0)
	b := f.signedOrder(t, f.bob, tokenWETH, tokenLRC, 100, 100, 0)

	res, err := f.app.SettleRing(context.Background(), &Candidate{
		Orders: []*SignedOrder{a, b},
		Owner:  relay,
	})
	require.NoError(t, err)
	require.True(t, res.Valid)

	// jump past b's expiry; signatures are unchanged but the window closed
	f.app.SetClock(util.FixedClock{T: testNow.Add(2 * time.Hour)})
	res, err = f.app.SettleRing(context.Background(), &Candidate{
		Orders: []*SignedOrder{a, b},
		Owner:  relay,
	})
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Empty(t, res.Transfers)
}

func TestSettleRingNotYetValidOrder(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.alice.Address(), tokenLRC, 1000)
	f.fund(t, f.bob.Address(), tokenWETH, 1000)

	a := f.signedOrder(t, f.alice, tokenLRC, tokenWETH, 100, 100, 0)
	b := f.signedOrder(t, f.bob, tokenWETH, tokenLRC, 100, 100, 0)

	f.app.SetClock(util.FixedClock{T: testNow.Add(-time.Hour)})
	res, err := f.app.SettleRing(context.Background(), &Candidate{
		Orders: []*SignedOrder{a, b},
		Owner:  relay,
	})
	require.NoError(t, err)
	require.False(t, res.Valid)
}

func TestSettleRingUnregisteredTokenInvalidatesRing(t *testing.T) {
	f := newFixture(t)
	unlisted := common.HexToAddress("0x9900000000000000000000000000000000000000")
	f.fund(t, f.alice.Address(), unlisted, 1000)
	f.fund(t, f.bob.Address(), tokenWETH, 1000)

	res, err := f.app.SettleRing(context.Background(), &Candidate{
		Orders: []*SignedOrder{
			f.signedOrder(t, f.alice, unlisted, tokenWETH, 100, 100, 0),
			f.signedOrder(t, f.bob, tokenWETH, unlisted, 100, 100, 0),
		},
		Owner: relay,
	})
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Empty(t, res.Transfers)
}

func TestSettleRingUnsettleablePrices(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.alice.Address(), tokenLRC, 1000)
	f.fund(t, f.bob.Address(), tokenWETH, 1000)

	res, err := f.app.SettleRing(context.Background(), &Candidate{
		Orders: []*SignedOrder{
			f.signedOrder(t, f.alice, tokenLRC, tokenWETH, 100, 100, 0),
			f.signedOrder(t, f.bob, tokenWETH, tokenLRC, 100, 150, 0),
		},
		Owner: relay,
	})
	require.ErrorIs(t, err, ring.ErrUnsettleable)
	require.NotNil(t, res)
	require.False(t, res.Valid)
	require.Empty(t, res.Transfers)
}

func TestSettleRingScalesToSpendable(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.alice.Address(), tokenLRC, 1000)
	f.fund(t, f.bob.Address(), tokenWETH, 40) // bob can only cover 40%

	res, err := f.app.SettleRing(context.Background(), &Candidate{
		Orders: []*SignedOrder{
			f.signedOrder(t, f.alice, tokenLRC, tokenWETH, 100, 100, 10),
			f.signedOrder(t, f.bob, tokenWETH, tokenLRC, 100, 100, 0),
		},
		Owner: relay,
	})
	require.NoError(t, err)
	require.True(t, res.Valid)

	require.Equal(t, int64(40), res.Fills[0].FillAmountS.Int64())
	require.Equal(t, int64(40), res.Fills[1].FillAmountS.Int64())
	require.Equal(t, int64(4), res.Fills[0].FillAmountFee.Int64())
}

func TestSettleRingFeeRecipientOverride(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.alice.Address(), tokenLRC, 1000)
	f.fund(t, f.bob.Address(), tokenWETH, 1000)

	wallet := common.HexToAddress("0x7700000000000000000000000000000000000000")
	res, err := f.app.SettleRing(context.Background(), &Candidate{
		Orders: []*SignedOrder{
			f.signedOrder(t, f.alice, tokenLRC, tokenWETH, 100, 100, 10),
			f.signedOrder(t, f.bob, tokenWETH, tokenLRC, 100, 100, 0),
		},
		Owner:        relay,
		FeeRecipient: wallet,
	})
	require.NoError(t, err)
	require.Equal(t, wallet, res.Transfers[1].To)
}

func TestSettleRingRejectsBadCandidates(t *testing.T) {
	f := newFixture(t)

	_, err := f.app.SettleRing(context.Background(), nil)
	require.Error(t, err)

	_, err = f.app.SettleRing(context.Background(), &Candidate{Owner: relay})
	require.Error(t, err)

	one := f.signedOrder(t, f.alice, tokenLRC, tokenWETH, 100, 100, 0)
	_, err = f.app.SettleRing(context.Background(), &Candidate{
		Orders: []*SignedOrder{one},
		Owner:  relay,
	})
	require.ErrorIs(t, err, ring.ErrTooFewOrders)
}

func TestSettleRingEmitsSettlementEvent(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.alice.Address(), tokenLRC, 1000)
	f.fund(t, f.bob.Address(), tokenWETH, 1000)

	var seen *Result
	f.app.OnSettlement = func(res *Result) { seen = res }

	res, err := f.app.SettleRing(context.Background(), &Candidate{
		Orders: []*SignedOrder{
			f.signedOrder(t, f.alice, tokenLRC, tokenWETH, 100, 100, 0),
			f.signedOrder(t, f.bob, tokenWETH, tokenLRC, 100, 100, 0),
		},
		Owner: relay,
	})
	require.NoError(t, err)
	require.Same(t, res, seen)
}

func TestSettleRingIdentityIsSequenceSensitive(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.alice.Address(), tokenLRC, 1000)
	f.fund(t, f.bob.Address(), tokenWETH, 1000)

	a := f.signedOrder(t, f.alice, tokenLRC, tokenWETH, 100, 100, 0)
	b := f.signedOrder(t, f.bob, tokenWETH, tokenLRC, 100, 100, 0)

	res1, err := f.app.SettleRing(context.Background(), &Candidate{
		Orders: []*SignedOrder{a, b}, Owner: relay,
	})
	require.NoError(t, err)
	res2, err := f.app.SettleRing(context.Background(), &Candidate{
		Orders: []*SignedOrder{b, a}, Owner: relay,
	})
	require.NoError(t, err)
	require.NotEqual(t, res1.RingHash, res2.RingHash)
}
