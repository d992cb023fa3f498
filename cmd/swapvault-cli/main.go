package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"swapvault/crypto"
)

var rpcEndpoint = defaultRPCEndpoint()
var rpcAuthToken = os.Getenv("SWAPVAULT_RPC_TOKEN")

func defaultRPCEndpoint() string {
	if url := strings.TrimSpace(os.Getenv("RPC_URL")); url != "" {
		return url
	}
	return "http://127.0.0.1:8545"
}

func main() {
	args := os.Args[1:]
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "generate-key":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an output file.")
			printUsage()
			return
		}
		generateKey(args[1])
	case "balance":
		if len(args) < 3 {
			fmt.Println("Error: Please provide an address and a token symbol.")
			printUsage()
			return
		}
		getBalance(args[1], args[2])
	case "tokens":
		listTokens()
	case "escrow":
		runEscrowCommand(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := args[:0]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--rpc requires a URL")
			}
			i++
			rpcEndpoint = args[i]
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func printUsage() {
	fmt.Println("Usage: swapvault-cli [--rpc <url>] <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  generate-key <file>                       Create a new key and save it")
	fmt.Println("  balance <address> <token>                 Query a token balance")
	fmt.Println("  tokens                                    List registered tokens")
	fmt.Println("  escrow create <key-file> <seed> <asset-a> <asset-b> <deposit> <receive>")
	fmt.Println("  escrow fulfill <key-file> <record> <maker> [asset-a asset-b]")
	fmt.Println("  escrow cancel <key-file> <record>")
	fmt.Println("  escrow get <record>")
}

func generateKey(path string) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Printf("Error generating key: %v\n", err)
		return
	}
	if err := key.SaveToFile(path); err != nil {
		fmt.Printf("Error saving key: %v\n", err)
		return
	}
	fmt.Printf("New key saved to %s\n", path)
	fmt.Printf("Address: %s\n", key.PubKey().Address().String())
}

func getBalance(address, token string) {
	result, rpcErr := call("bank_balance", map[string]string{
		"address": address,
		"token":   token,
	})
	if rpcErr != nil {
		fmt.Printf("Error: %s\n", rpcErr)
		return
	}
	var balance struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(result, &balance); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	fmt.Printf("Balance of %s in %s: %s\n", address, strings.ToUpper(token), balance.Balance)
}

func listTokens() {
	result, rpcErr := call("token_list", nil)
	if rpcErr != nil {
		fmt.Printf("Error: %s\n", rpcErr)
		return
	}
	var tokens []string
	if err := json.Unmarshal(result, &tokens); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	for _, token := range tokens {
		fmt.Println(token)
	}
}

// call performs a single JSON-RPC request and returns the raw result.
func call(method string, params interface{}) (json.RawMessage, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if rpcAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+rpcAuthToken)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int         `json:"code"`
			Message string      `json:"message"`
			Data    interface{} `json:"data"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%s (%v)", decoded.Error.Message, decoded.Error.Data)
	}
	return decoded.Result, nil
}
