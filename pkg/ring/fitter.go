package ring

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrUnsettleable is returned when no consistent fill assignment exists: after
// both tightening passes some order still cannot deliver what its ring
// successor needs. The ring is marked invalid and must not be retried as-is.
var ErrUnsettleable = errors.New("ring: unsettleable")

// Fitter computes a globally consistent fill assignment for a ring. Scaling
// each order's spendable amount is delegated to the injected scaler; the
// resize algorithm itself is single-threaded and deterministic.
type Fitter struct {
	scaler SpendableScaler
	log    *zap.SugaredLogger
}

// NewFitter builds a fitter around the given spendable scaler. The logger may
// be nil; it is only used for informational per-order diagnostics.
func NewFitter(scaler SpendableScaler, log *zap.SugaredLogger) *Fitter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Fitter{scaler: scaler, log: log}
}

// Fit scales every order by its owner's spendable balance, then tightens fill
// amounts around the cycle until the smallest order caps every other order's
// fill at its own declared price. On success every forward edge is exact:
// orders[i+1].FillAmountS == orders[i].FillAmountB, with any surplus moved
// into SplitS. Fitting either completes for the whole ring or fails without
// exposing partial state to the planner (the ring is invalidated).
func (f *Fitter) Fit(ctx context.Context, r *Ring) error {
	orders := r.orders

	for _, o := range orders {
		if err := o.checkAmounts(); err != nil {
			return err
		}
	}

	// Scaling may block on storage; run all orders concurrently and wait for
	// every result, since resize reads every order's fill fields.
	g, gctx := errgroup.WithContext(ctx)
	for _, o := range orders {
		g.Go(func() error {
			return f.scaler.ScaleOrder(gctx, o)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("ring %s: scale orders: %w", r.Hash().Hex(), err)
	}
	for _, o := range orders {
		if o.FillAmountS == nil || o.FillAmountB == nil || o.FillAmountFee == nil {
			return fmt.Errorf("order %s: fill amounts not initialized by scaler", o.Hash.Hex())
		}
	}

	f.log.Debugw("ring_rate", "ring", r.Hash().Hex(), "rate", ringRate(orders).FloatString(8))

	// Backward sweep: wherever a predecessor wants to buy more than the
	// current order can sell, shrink the predecessor to the current order's
	// capacity. Remember the last position that forced a shrink.
	smallest := 0
	for i := len(orders) - 1; i >= 0; i-- {
		smallest = f.resize(r, i, smallest)
	}
	// One sweep may miss a fixed point: a shrink late in the sweep can
	// retroactively break an edge visited earlier. Re-propagate from the end
	// down to the recorded position.
	for i := len(orders) - 1; i >= smallest; i-- {
		f.resize(r, i, smallest)
	}

	// Forward pass: make every edge exact. The next order must be able to
	// sell at least what the current order buys; whatever it would sell
	// beyond that is captured as spread.
	for i, o := range orders {
		next := orders[r.nextIndex(i)]
		if next.FillAmountS.Cmp(o.FillAmountB) < 0 {
			r.invalidate()
			return fmt.Errorf("edge %d->%d: fillAmountS %s < required %s: %w",
				i, r.nextIndex(i), next.FillAmountS, o.FillAmountB, ErrUnsettleable)
		}
		next.SplitS = new(big.Int).Sub(next.FillAmountS, o.FillAmountB)
		next.FillAmountS = new(big.Int).Set(o.FillAmountB)
	}
	return nil
}

// resize inspects the edge between order i and its ring predecessor. If the
// predecessor currently buys more than order i sells, the predecessor
// shrinks: its buy side is clamped to order i's sell capacity and its sell
// and fee sides are rescaled at its own declared price. All divisions
// truncate toward zero, so rescaling can only ever shrink amounts.
func (f *Fitter) resize(r *Ring, i, smallest int) int {
	o := r.orders[i]
	prev := r.orders[r.prevIndex(i)]

	if prev.FillAmountB.Cmp(o.FillAmountS) > 0 {
		smallest = i
		prev.FillAmountB = new(big.Int).Set(o.FillAmountS)
		prev.FillAmountS = new(big.Int).Div(
			new(big.Int).Mul(prev.FillAmountB, prev.AmountS), prev.AmountB)
		prev.FillAmountFee = new(big.Int).Div(
			new(big.Int).Mul(prev.FeeAmount, prev.FillAmountS), prev.AmountS)

		f.log.Debugw("order_resized",
			"order", prev.Hash.Hex(),
			"fill_amount_s", prev.FillAmountS.String(),
			"fill_amount_b", prev.FillAmountB.String(),
			"fill_amount_fee", prev.FillAmountFee.String())
	}
	return smallest
}

// ringRate is the product of every order's declared price around the cycle.
// A rate above 1 means the ring as a whole trades better than requested. It
// is diagnostic only and never gates settlement.
func ringRate(orders []*Order) *big.Rat {
	rate := new(big.Rat).SetInt64(1)
	for _, o := range orders {
		rate.Mul(rate, new(big.Rat).SetFrac(o.AmountS, o.AmountB))
	}
	return rate
}
