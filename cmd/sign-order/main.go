package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ringdex/ringdex/pkg/api"
	"github.com/ringdex/ringdex/pkg/crypto"
)

func main() {
	// Step 1: Generate or load key
	fmt.Println("Generating new keypair...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	// Step 2: Create a ring order leg (sell LRC, buy WETH)
	now := time.Now().Unix()
	order := &crypto.OrderTyped{
		TokenS:     common.HexToAddress("0xBBbbCA6A901c926F240b89EacB641d8Aec7AEafD"), // LRC
		TokenB:     common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), // WETH
		FeeToken:   common.HexToAddress("0xBBbbCA6A901c926F240b89EacB641d8Aec7AEafD"),
		AmountS:    big.NewInt(1000),
		AmountB:    big.NewInt(1),
		FeeAmount:  big.NewInt(10),
		ValidSince: big.NewInt(now),
		ValidUntil: big.NewInt(now + 3600),
		Owner:      signer.Address(),
	}

	fmt.Println("Order Details:")
	fmt.Printf("  TokenS: %s\n", order.TokenS.Hex())
	fmt.Printf("  TokenB: %s\n", order.TokenB.Hex())
	fmt.Printf("  AmountS: %s\n", order.AmountS.String())
	fmt.Printf("  AmountB: %s\n", order.AmountB.String())
	fmt.Printf("  FeeAmount: %s\n", order.FeeAmount.String())
	fmt.Printf("  Owner: %s\n\n", order.Owner.Hex())

	// Step 3: Sign order with EIP-712
	hasher := crypto.NewOrderHasher(crypto.DefaultDomain(1337))
	signature, err := hasher.SignOrder(signer, order)
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	digest, err := hasher.HashOrder(order)
	if err != nil {
		fmt.Printf("Error hashing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Order Hash: %s\n", digest.Hex())
	fmt.Printf("Signature: 0x%x\n\n", signature)

	// Step 4: Serialize the submit payload
	payload := api.SignedOrderPayload{
		TokenS:     order.TokenS.Hex(),
		TokenB:     order.TokenB.Hex(),
		FeeToken:   order.FeeToken.Hex(),
		AmountS:    order.AmountS.String(),
		AmountB:    order.AmountB.String(),
		FeeAmount:  order.FeeAmount.String(),
		ValidSince: order.ValidSince.String(),
		ValidUntil: order.ValidUntil.String(),
		Owner:      order.Owner.Hex(),
		Signature:  fmt.Sprintf("0x%x", signature),
	}

	payloadJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed Order (JSON):")
	fmt.Println(string(payloadJSON))
	fmt.Println()

	// Step 5: Verify signature
	fmt.Println("Verifying signature...")
	valid, err := hasher.VerifyOrderSignature(order, signature)
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}

	if !valid {
		fmt.Println("✗ Signature INVALID")
		os.Exit(1)
	}
	fmt.Println("✓ Signature VALID")
	fmt.Printf("  Signer: %s\n\n", signer.Address().Hex())

	// Step 6: Show how to submit to the relay
	fmt.Println("To submit a ring to Ringdex, pair this with a matching")
	fmt.Println("counter-order and POST:")
	fmt.Println("  POST http://localhost:8080/api/v1/rings")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body: {\"orders\": [<order>, <counter-order>], \"owner\": \"0x...\"}")
}
