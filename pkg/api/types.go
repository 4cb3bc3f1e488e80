package api

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ringdex/ringdex/pkg/app/settle"
	"github.com/ringdex/ringdex/pkg/crypto"
	"github.com/ringdex/ringdex/pkg/ring"
)

// ==============================
// REST Request/Response Types
// ==============================

// SignedOrderPayload is the wire form of one signed ring leg. Amounts are
// decimal strings; the signature is 0x-prefixed hex over the order's EIP-712
// digest.
type SignedOrderPayload struct {
	TokenS     string `json:"tokenS"`
	TokenB     string `json:"tokenB"`
	FeeToken   string `json:"feeToken"`
	AmountS    string `json:"amountS"`
	AmountB    string `json:"amountB"`
	FeeAmount  string `json:"feeAmount"`
	ValidSince string `json:"validSince"`
	ValidUntil string `json:"validUntil"`
	Owner      string `json:"owner"`
	Signature  string `json:"signature"`
}

// SubmitRingRequest proposes one ring candidate: orders in cycle order.
type SubmitRingRequest struct {
	Orders       []SignedOrderPayload `json:"orders"`
	Owner        string               `json:"owner"`
	FeeRecipient string               `json:"feeRecipient,omitempty"`
}

// FillInfo reports the fitted amounts of one leg.
type FillInfo struct {
	OrderHash     string `json:"orderHash"`
	Owner         string `json:"owner"`
	Valid         bool   `json:"valid"`
	FillAmountS   string `json:"fillAmountS"`
	FillAmountB   string `json:"fillAmountB"`
	FillAmountFee string `json:"fillAmountFee"`
	SplitS        string `json:"splitS"`
}

// TransferInfo is the wire form of one settlement instruction.
type TransferInfo struct {
	Token  string `json:"token"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// SubmitRingResponse is the outcome of one settlement attempt.
type SubmitRingResponse struct {
	RingHash  string         `json:"ringHash"`
	Valid     bool           `json:"valid"`
	Fills     []FillInfo     `json:"fills"`
	Transfers []TransferInfo `json:"transfers"`
}

// TokenInfo describes one allow-listed token.
type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// BalanceInfo reports one owner's balance in one token.
type BalanceInfo struct {
	Owner  string `json:"owner"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// CreditRequest credits a deposit to an owner's balance.
type CreditRequest struct {
	Owner  string `json:"owner"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest subscribes or unsubscribes a client to channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// SettlementEvent is broadcast on the "settlements" channel after every
// settlement attempt.
type SettlementEvent struct {
	Type      string `json:"type"` // always "settlement"
	RingHash  string `json:"ringHash"`
	Valid     bool   `json:"valid"`
	Transfers int    `json:"transfers"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}

// ==============================
// Conversions
// ==============================

func parseAmount(name, s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q", name, s)
	}
	return v, nil
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", name, s)
	}
	return common.HexToAddress(s), nil
}

// ToSignedOrder parses the payload into the settle-layer form.
func (p *SignedOrderPayload) ToSignedOrder() (*settle.SignedOrder, error) {
	tokenS, err := parseAddress("tokenS", p.TokenS)
	if err != nil {
		return nil, err
	}
	tokenB, err := parseAddress("tokenB", p.TokenB)
	if err != nil {
		return nil, err
	}
	feeToken, err := parseAddress("feeToken", p.FeeToken)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	amountS, err := parseAmount("amountS", p.AmountS)
	if err != nil {
		return nil, err
	}
	amountB, err := parseAmount("amountB", p.AmountB)
	if err != nil {
		return nil, err
	}
	feeAmount, err := parseAmount("feeAmount", p.FeeAmount)
	if err != nil {
		return nil, err
	}
	validSince, err := parseAmount("validSince", p.ValidSince)
	if err != nil {
		return nil, err
	}
	validUntil, err := parseAmount("validUntil", p.ValidUntil)
	if err != nil {
		return nil, err
	}
	signature, err := hexutil.Decode(p.Signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}

	return &settle.SignedOrder{
		Order: &crypto.OrderTyped{
			TokenS:     tokenS,
			TokenB:     tokenB,
			FeeToken:   feeToken,
			AmountS:    amountS,
			AmountB:    amountB,
			FeeAmount:  feeAmount,
			ValidSince: validSince,
			ValidUntil: validUntil,
			Owner:      owner,
		},
		Signature: signature,
	}, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func fillInfos(fills []settle.OrderFill) []FillInfo {
	out := make([]FillInfo, len(fills))
	for i, f := range fills {
		out[i] = FillInfo{
			OrderHash:     f.Hash.Hex(),
			Owner:         f.Owner.Hex(),
			Valid:         f.Valid,
			FillAmountS:   bigString(f.FillAmountS),
			FillAmountB:   bigString(f.FillAmountB),
			FillAmountFee: bigString(f.FillAmountFee),
			SplitS:        bigString(f.SplitS),
		}
	}
	return out
}

func transferInfos(items []ring.TransferItem) []TransferInfo {
	out := make([]TransferInfo, len(items))
	for i, it := range items {
		out[i] = TransferInfo{
			Token:  it.Token.Hex(),
			From:   it.From.Hex(),
			To:     it.To.Hex(),
			Amount: bigString(it.Amount),
		}
	}
	return out
}
