package ring

import (
	"errors"
	"fmt"
)

var (
	// ErrBadSplitPercentage rejects a wallet split outside [0,100] before any
	// planning work happens.
	ErrBadSplitPercentage = errors.New("ring: wallet split percentage out of range")
	// ErrInvariant flags a post-fit bound violation. This is a bug in the
	// fitter, not a property of the submitted ring, and is never swallowed.
	ErrInvariant = errors.New("ring: fill invariant violated")
)

// PlanTransfers turns the fitted fill amounts into the ordered transfer list
// that implements the settlement. For each order the principal goes to its
// ring predecessor's owner; fee and captured spread go to the ring's fee
// recipient. An invalid ring produces an empty plan and no error. Planning
// reads but never mutates the ring, so re-planning an unchanged ring yields
// an identical list.
//
// walletSplitPercentage is validated but currently unused: splitting fee and
// spread with a wallet referrer is disabled, and 100% routes to the fee
// recipient.
func (r *Ring) PlanTransfers(walletSplitPercentage int) ([]TransferItem, error) {
	if walletSplitPercentage < 0 || walletSplitPercentage > 100 {
		return nil, fmt.Errorf("%w: %d", ErrBadSplitPercentage, walletSplitPercentage)
	}
	if !r.valid {
		return []TransferItem{}, nil
	}

	items := make([]TransferItem, 0, 3*len(r.orders))
	for i, o := range r.orders {
		if err := o.checkFillBounds(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvariant, err)
		}
		if o.FillAmountS.Sign() == 0 {
			continue
		}
		to := r.orders[r.prevIndex(i)].Owner

		items = append(items, TransferItem{
			Token:  o.TokenS,
			From:   o.Owner,
			To:     to,
			Amount: o.FillAmountS,
		})
		if o.FillAmountFee.Sign() > 0 {
			items = append(items, TransferItem{
				Token:  o.FeeToken,
				From:   o.Owner,
				To:     r.feeRecipient,
				Amount: o.FillAmountFee,
			})
		}
		if o.SplitS.Sign() > 0 {
			items = append(items, TransferItem{
				Token:  o.TokenS,
				From:   o.Owner,
				To:     r.feeRecipient,
				Amount: o.SplitS,
			})
		}
	}
	return items, nil
}
