package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"swapvault/crypto"
)

func runEscrowCommand(args []string) {
	if len(args) < 1 {
		printUsage()
		return
	}
	switch args[0] {
	case "create":
		if len(args) < 7 {
			fmt.Println("Error: escrow create requires <key-file> <seed> <asset-a> <asset-b> <deposit> <receive>")
			return
		}
		escrowCreate(args[1], args[2], args[3], args[4], args[5], args[6])
	case "fulfill":
		if len(args) < 3 {
			fmt.Println("Error: escrow fulfill requires <key-file> <record> <maker> [asset-a asset-b]")
			return
		}
		assetA, assetB := "", ""
		if len(args) >= 6 {
			assetA, assetB = args[4], args[5]
		}
		escrowFulfill(args[1], args[2], args[3], assetA, assetB)
	case "cancel":
		if len(args) < 3 {
			fmt.Println("Error: escrow cancel requires <key-file> <record>")
			return
		}
		escrowCancel(args[1], args[2])
	case "get":
		if len(args) < 2 {
			fmt.Println("Error: escrow get requires <record>")
			return
		}
		escrowGet(args[1])
	default:
		fmt.Printf("Unknown escrow command: %s\n", args[0])
		printUsage()
	}
}

func loadAddress(keyFile string) (string, bool) {
	key, err := crypto.LoadFromFile(keyFile)
	if err != nil {
		fmt.Printf("Error loading key file: %v\n", err)
		return "", false
	}
	return key.PubKey().Address().String(), true
}

func escrowCreate(keyFile, seedArg, assetA, assetB, deposit, receive string) {
	maker, ok := loadAddress(keyFile)
	if !ok {
		return
	}
	seed, err := strconv.ParseUint(seedArg, 10, 64)
	if err != nil {
		fmt.Println("Error: seed must be an unsigned integer.")
		return
	}
	result, rpcErr := call("escrow_create", map[string]interface{}{
		"maker":         maker,
		"seed":          seed,
		"assetA":        assetA,
		"assetB":        assetB,
		"depositAmount": deposit,
		"receiveAmount": receive,
	})
	if rpcErr != nil {
		fmt.Printf("Error: %s\n", rpcErr)
		return
	}
	var created struct {
		Record string `json:"record"`
		Vault  string `json:"vault"`
	}
	if err := json.Unmarshal(result, &created); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	fmt.Printf("Escrow created.\n  Record: %s\n  Vault:  %s\n", created.Record, created.Vault)
}

func escrowFulfill(keyFile, record, maker, assetA, assetB string) {
	taker, ok := loadAddress(keyFile)
	if !ok {
		return
	}
	params := map[string]interface{}{
		"record": record,
		"taker":  taker,
		"maker":  maker,
	}
	if assetA != "" {
		params["assetA"] = assetA
	}
	if assetB != "" {
		params["assetB"] = assetB
	}
	if _, rpcErr := call("escrow_fulfill", params); rpcErr != nil {
		fmt.Printf("Error: %s\n", rpcErr)
		return
	}
	fmt.Println("Escrow fulfilled.")
}

func escrowCancel(keyFile, record string) {
	caller, ok := loadAddress(keyFile)
	if !ok {
		return
	}
	if _, rpcErr := call("escrow_cancel", map[string]interface{}{
		"record": record,
		"caller": caller,
	}); rpcErr != nil {
		fmt.Printf("Error: %s\n", rpcErr)
		return
	}
	fmt.Println("Escrow cancelled.")
}

func escrowGet(record string) {
	result, rpcErr := call("escrow_get", map[string]interface{}{
		"record": record,
	})
	if rpcErr != nil {
		fmt.Printf("Error: %s\n", rpcErr)
		return
	}
	var pretty map[string]interface{}
	if err := json.Unmarshal(result, &pretty); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	encoded, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Printf("Error formatting response: %v\n", err)
		return
	}
	fmt.Println(string(encoded))
}
