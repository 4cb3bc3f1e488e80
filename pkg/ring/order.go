package ring

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Order is one leg of a settlement ring. AmountS/AmountB define the owner's
// requested price (AmountS per AmountB); the Fill* fields are what actually
// settles and are rewritten in place by the fitter. An Order must not be
// shared between two rings that are being fitted concurrently.
type Order struct {
	Hash     common.Hash    // identity digest stamped by the order subsystem
	Owner    common.Address
	TokenS   common.Address // token being sold
	TokenB   common.Address // token being bought
	FeeToken common.Address

	AmountS   *big.Int // nominal sell amount, immutable
	AmountB   *big.Int // nominal buy amount, immutable
	FeeAmount *big.Int // maximum fee the owner will pay

	FillAmountS   *big.Int // actual sell amount after fitting
	FillAmountB   *big.Int // actual buy amount after fitting
	FillAmountFee *big.Int // fee scaled by FillAmountS/AmountS
	SplitS        *big.Int // surplus sell amount captured as spread

	Valid bool // signature, validity window and funding, set by the order subsystem
}

// checkAmounts verifies the fitter precondition that the nominal amounts are
// all positive. A zero AmountS or AmountB would make the price ratio
// undefined.
func (o *Order) checkAmounts() error {
	if o.AmountS == nil || o.AmountS.Sign() <= 0 {
		return fmt.Errorf("order %s: amountS must be positive", o.Hash.Hex())
	}
	if o.AmountB == nil || o.AmountB.Sign() <= 0 {
		return fmt.Errorf("order %s: amountB must be positive", o.Hash.Hex())
	}
	if o.FeeAmount == nil || o.FeeAmount.Sign() < 0 {
		return fmt.Errorf("order %s: feeAmount must not be negative", o.Hash.Hex())
	}
	return nil
}

// checkFillBounds verifies the post-fit sanity bounds before any transfer is
// emitted. A violation here means the fitter produced inconsistent amounts.
func (o *Order) checkFillBounds() error {
	if o.FillAmountS == nil || o.FillAmountS.Sign() < 0 {
		return fmt.Errorf("order %s: negative fillAmountS", o.Hash.Hex())
	}
	if o.SplitS == nil || o.SplitS.Sign() < 0 {
		return fmt.Errorf("order %s: negative splitS", o.Hash.Hex())
	}
	if o.FillAmountFee == nil || o.FillAmountFee.Sign() < 0 {
		return fmt.Errorf("order %s: negative fillAmountFee", o.Hash.Hex())
	}
	spent := new(big.Int).Add(o.FillAmountS, o.SplitS)
	if spent.Cmp(o.AmountS) > 0 {
		return fmt.Errorf("order %s: fillAmountS+splitS %s exceeds amountS %s",
			o.Hash.Hex(), spent, o.AmountS)
	}
	if o.FillAmountFee.Cmp(o.FeeAmount) > 0 {
		return fmt.Errorf("order %s: fillAmountFee %s exceeds feeAmount %s",
			o.Hash.Hex(), o.FillAmountFee, o.FeeAmount)
	}
	return nil
}

// TransferItem is one elementary settlement instruction: move Amount of Token
// from From to To. The planner's output is an ordered list of these; the
// downstream executor moves the actual value.
type TransferItem struct {
	Token  common.Address `json:"token"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}
