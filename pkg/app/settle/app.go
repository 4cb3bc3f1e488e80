package settle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ringdex/ringdex/pkg/app/core/balance"
	"github.com/ringdex/ringdex/pkg/app/core/token"
	"github.com/ringdex/ringdex/pkg/crypto"
	"github.com/ringdex/ringdex/pkg/ring"
	"github.com/ringdex/ringdex/pkg/util"
)

// SignedOrder pairs an order's typed data with its owner's signature, as
// submitted by a relay client.
type SignedOrder struct {
	Order     *crypto.OrderTyped
	Signature []byte
}

// Candidate is one proposed ring: an ordered cycle of signed orders plus the
// relay that assembled it. FeeRecipient may be zero, in which case the
// configured fee holder receives fees and spread.
type Candidate struct {
	Orders       []*SignedOrder
	Owner        common.Address
	FeeRecipient common.Address
}

// OrderFill reports the fitted amounts for one ring leg.
type OrderFill struct {
	Hash          common.Hash
	Owner         common.Address
	Valid         bool
	FillAmountS   *big.Int
	FillAmountB   *big.Int
	FillAmountFee *big.Int
	SplitS        *big.Int
}

// Result is the outcome of one settlement attempt. When Valid is false the
// transfer list is empty and nothing settles.
type Result struct {
	RingHash  common.Hash
	Valid     bool
	Fills     []OrderFill
	Transfers []ring.TransferItem
}

// Config carries the execution-context inputs of the settlement engine.
type Config struct {
	ChainID        int64
	FeeHolder      common.Address
	WalletSplitPct int
}

// App wires the ring engine to its collaborator services: the balance
// manager (spendable scaling), the token allow-list, the order hasher and
// the fee holder account. One App serves many settlement attempts; each
// attempt builds its own Ring.
type App struct {
	balances *balance.Manager
	tokens   *token.Registry
	hasher   *crypto.OrderHasher
	clock    util.Clock
	cfg      Config
	log      *zap.SugaredLogger

	// OnSettlement is invoked after every successful settlement attempt
	// (valid or not). Used by the API layer to broadcast events.
	OnSettlement func(*Result)
}

// NewApp constructs the settlement app.
func NewApp(cfg Config, balances *balance.Manager, tokens *token.Registry, log *zap.SugaredLogger) *App {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &App{
		balances: balances,
		tokens:   tokens,
		hasher:   crypto.NewOrderHasher(crypto.DefaultDomain(cfg.ChainID)),
		clock:    util.RealClock{},
		cfg:      cfg,
		log:      log,
	}
}

// SetClock overrides the time source, primarily used in tests.
func (a *App) SetClock(c util.Clock) {
	if c == nil {
		a.clock = util.RealClock{}
		return
	}
	a.clock = c
}

// Balances exposes the balance manager to the API layer.
func (a *App) Balances() *balance.Manager { return a.balances }

// Tokens exposes the token registry to the API layer.
func (a *App) Tokens() *token.Registry { return a.tokens }

// SettleRing runs one full settlement attempt: stamp per-order validity,
// aggregate ring validity, fit fill amounts, plan transfers. An invalid ring
// yields a Result with an empty transfer list and no error; an unsettleable
// ring yields both the Result and ring.ErrUnsettleable.
func (a *App) SettleRing(ctx context.Context, cand *Candidate) (*Result, error) {
	orders, err := a.buildOrders(cand)
	if err != nil {
		return nil, err
	}

	feeRecipient := cand.FeeRecipient
	if feeRecipient == (common.Address{}) {
		feeRecipient = a.cfg.FeeHolder
	}
	r, err := ring.New(orders, cand.Owner, feeRecipient)
	if err != nil {
		return nil, err
	}

	r.CheckOrdersValid()
	if _, err := r.CheckTokensRegistered(ctx, a.tokens); err != nil {
		return nil, fmt.Errorf("token registry: %w", err)
	}

	var fitErr error
	if r.Valid() {
		fitter := ring.NewFitter(a.balances, a.log)
		if err := fitter.Fit(ctx, r); err != nil {
			if !errors.Is(err, ring.ErrUnsettleable) {
				return nil, err
			}
			fitErr = err
			a.log.Warnw("ring_unsettleable", "ring", r.Hash().Hex(), "err", err)
		}
	}

	transfers, err := r.PlanTransfers(a.cfg.WalletSplitPct)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RingHash:  r.Hash(),
		Valid:     r.Valid(),
		Fills:     collectFills(r),
		Transfers: transfers,
	}

	a.log.Infow("ring_settled",
		"ring", result.RingHash.Hex(),
		"orders", len(orders),
		"valid", result.Valid,
		"transfers", len(transfers))

	if a.OnSettlement != nil {
		a.OnSettlement(result)
	}
	return result, fitErr
}

// buildOrders stamps each submitted order with its identity hash and its
// validity verdict: the signature must recover the owner and the current
// time must fall inside the order's validity window.
func (a *App) buildOrders(cand *Candidate) ([]*ring.Order, error) {
	if cand == nil || len(cand.Orders) == 0 {
		return nil, fmt.Errorf("settle: empty candidate")
	}

	now := a.clock.Now().Unix()
	orders := make([]*ring.Order, len(cand.Orders))
	for i, so := range cand.Orders {
		if so == nil || so.Order == nil {
			return nil, fmt.Errorf("settle: nil order at position %d", i)
		}
		if so.Order.ValidSince == nil || so.Order.ValidUntil == nil {
			return nil, fmt.Errorf("settle: order %d missing validity window", i)
		}
		hash, err := a.hasher.HashOrder(so.Order)
		if err != nil {
			return nil, fmt.Errorf("settle: hash order %d: %w", i, err)
		}

		valid, err := a.hasher.VerifyOrderSignature(so.Order, so.Signature)
		if err != nil {
			a.log.Debugw("order_signature_rejected", "order", hash.Hex(), "err", err)
			valid = false
		}
		if so.Order.ValidSince.Sign() > 0 && now < so.Order.ValidSince.Int64() {
			valid = false
		}
		if so.Order.ValidUntil.Sign() > 0 && now > so.Order.ValidUntil.Int64() {
			valid = false
		}

		orders[i] = &ring.Order{
			Hash:      hash,
			Owner:     so.Order.Owner,
			TokenS:    so.Order.TokenS,
			TokenB:    so.Order.TokenB,
			FeeToken:  so.Order.FeeToken,
			AmountS:   so.Order.AmountS,
			AmountB:   so.Order.AmountB,
			FeeAmount: so.Order.FeeAmount,
			Valid:     valid,
		}
	}
	return orders, nil
}

func collectFills(r *ring.Ring) []OrderFill {
	fills := make([]OrderFill, 0, r.Size())
	for _, o := range r.Orders() {
		fills = append(fills, OrderFill{
			Hash:          o.Hash,
			Owner:         o.Owner,
			Valid:         o.Valid,
			FillAmountS:   o.FillAmountS,
			FillAmountB:   o.FillAmountB,
			FillAmountFee: o.FillAmountFee,
			SplitS:        o.SplitS,
		})
	}
	return fills
}
