package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema for Pebble storage:
//
//   bal:<owner>:<token> → BalanceRecord
//   tok:<address>       → TokenRecord

const (
	prefixBalance = "bal:"
	prefixToken   = "tok:"
)

// balanceKey returns the key for one (owner, token) balance.
// Format: "bal:{owner}:{token}"
func balanceKey(owner, token common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, owner.Hex(), token.Hex()))
}

// balancePrefix returns the prefix for all balances of an owner.
// Format: "bal:{owner}:"
func balancePrefix(owner common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixBalance, owner.Hex()))
}

// tokenKey returns the key for a registered token.
// Format: "tok:{address}"
func tokenKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixToken, addr.Hex()))
}

// tokenPrefix returns the prefix for all registered tokens.
func tokenPrefix() []byte {
	return []byte(prefixToken)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
