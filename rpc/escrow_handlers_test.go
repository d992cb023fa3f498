package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"swapvault/core"
	"swapvault/crypto"
	"swapvault/native/escrow"
	"swapvault/storage"
)

type rpcTestEnv struct {
	server *httptest.Server
	node   *core.Node
	maker  [20]byte
	taker  [20]byte
}

func bech32Of(addr [20]byte) string {
	return crypto.NewAddress(crypto.SwapPrefix, addr[:]).String()
}

func fillAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newRPCTestEnv(t *testing.T) *rpcTestEnv {
	t.Helper()
	node := core.NewNode(storage.NewMemDB())
	node.SetNowFunc(func() int64 { return 1_700_000_000 })
	require.NoError(t, node.RegisterToken("USDX", "Test Dollar", 6))
	require.NoError(t, node.RegisterToken("WBTX", "Wrapped Test Bitcoin", 8))

	env := &rpcTestEnv{
		node:  node,
		maker: fillAddr(0x01),
		taker: fillAddr(0x02),
	}
	require.NoError(t, node.Mint(env.maker, "USDX", big.NewInt(50)))
	require.NoError(t, node.Mint(env.taker, "WBTX", big.NewInt(100)))

	srv := httptest.NewServer(NewServer(node).Handler())
	t.Cleanup(srv.Close)
	env.server = srv
	return env
}

func (env *rpcTestEnv) call(t *testing.T, token, method string, params interface{}) *RPCResponse {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, env.server.URL, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	decoded := new(RPCResponse)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(decoded))
	return decoded
}

func decodeResult(t *testing.T, resp *RPCResponse, out interface{}) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected rpc error: %+v", resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func (env *rpcTestEnv) createEscrow(t *testing.T, seed uint64) escrowCreateResult {
	t.Helper()
	resp := env.call(t, "", "escrow_create", escrowCreateParams{
		Maker:         bech32Of(env.maker),
		Seed:          seed,
		AssetA:        "USDX",
		AssetB:        "WBTX",
		DepositAmount: "50",
		ReceiveAmount: "100",
	})
	var result escrowCreateResult
	decodeResult(t, resp, &result)
	return result
}

func TestRPCEscrowCreateAndGet(t *testing.T) {
	env := newRPCTestEnv(t)
	created := env.createEscrow(t, 1)

	wantRecord, _ := escrow.DeriveRecordAddress(env.maker, 1)
	require.Equal(t, bech32Of(wantRecord), created.Record)
	wantVault, _ := escrow.DeriveVaultAddress(wantRecord)
	require.Equal(t, bech32Of(wantVault), created.Vault)

	resp := env.call(t, "", "escrow_get", escrowGetParams{Record: created.Record})
	var rec escrowJSON
	decodeResult(t, resp, &rec)
	require.Equal(t, bech32Of(env.maker), rec.Maker)
	require.Equal(t, uint64(1), rec.Seed)
	require.Equal(t, "USDX", rec.AssetA)
	require.Equal(t, "WBTX", rec.AssetB)
	require.Equal(t, "100", rec.ReceiveAmount)
	require.Equal(t, created.Vault, rec.Vault)
	require.Equal(t, int64(1_700_000_000), rec.CreatedAt)
}

func TestRPCEscrowFulfillMovesBothLegs(t *testing.T) {
	env := newRPCTestEnv(t)
	created := env.createEscrow(t, 1)

	resp := env.call(t, "", "escrow_fulfill", escrowFulfillParams{
		Record: created.Record,
		Taker:  bech32Of(env.taker),
		Maker:  bech32Of(env.maker),
	})
	var result map[string]bool
	decodeResult(t, resp, &result)
	require.True(t, result["fulfilled"])

	var balance bankBalanceResult
	decodeResult(t, env.call(t, "", "bank_balance", bankBalanceParams{
		Address: bech32Of(env.maker), Token: "WBTX",
	}), &balance)
	require.Equal(t, "100", balance.Balance)
	decodeResult(t, env.call(t, "", "bank_balance", bankBalanceParams{
		Address: bech32Of(env.taker), Token: "USDX",
	}), &balance)
	require.Equal(t, "50", balance.Balance)

	resp = env.call(t, "", "escrow_get", escrowGetParams{Record: created.Record})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeEscrowNotFound, resp.Error.Code)
}

func TestRPCEscrowCancel(t *testing.T) {
	env := newRPCTestEnv(t)
	created := env.createEscrow(t, 1)

	resp := env.call(t, "", "escrow_cancel", escrowCancelParams{
		Record: created.Record,
		Caller: bech32Of(env.taker),
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeEscrowForbidden, resp.Error.Code)

	resp = env.call(t, "", "escrow_cancel", escrowCancelParams{
		Record: created.Record,
		Caller: bech32Of(env.maker),
	})
	var result map[string]bool
	decodeResult(t, resp, &result)
	require.True(t, result["cancelled"])

	var balance bankBalanceResult
	decodeResult(t, env.call(t, "", "bank_balance", bankBalanceParams{
		Address: bech32Of(env.maker), Token: "USDX",
	}), &balance)
	require.Equal(t, "50", balance.Balance)
}

func TestRPCEscrowErrorCodes(t *testing.T) {
	env := newRPCTestEnv(t)
	created := env.createEscrow(t, 1)

	resp := env.call(t, "", "escrow_create", escrowCreateParams{
		Maker: bech32Of(env.maker), Seed: 1,
		AssetA: "USDX", AssetB: "WBTX",
		DepositAmount: "50", ReceiveAmount: "100",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeEscrowInsufficientFunds, resp.Error.Code)

	require.NoError(t, env.node.Mint(env.maker, "USDX", big.NewInt(50)))
	resp = env.call(t, "", "escrow_create", escrowCreateParams{
		Maker: bech32Of(env.maker), Seed: 1,
		AssetA: "USDX", AssetB: "WBTX",
		DepositAmount: "50", ReceiveAmount: "100",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeEscrowConflict, resp.Error.Code)

	resp = env.call(t, "", "escrow_create", escrowCreateParams{
		Maker: "not-an-address", Seed: 2,
		AssetA: "USDX", AssetB: "WBTX",
		DepositAmount: "50", ReceiveAmount: "100",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeEscrowInvalidParams, resp.Error.Code)

	resp = env.call(t, "", "escrow_fulfill", escrowFulfillParams{
		Record: created.Record,
		Taker:  bech32Of(env.taker),
		Maker:  bech32Of(env.taker),
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeEscrowForbidden, resp.Error.Code)

	resp = env.call(t, "", "escrow_get", escrowGetParams{Record: bech32Of(fillAddr(0x42))})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeEscrowNotFound, resp.Error.Code)
}

func TestRPCMethodAndRequestValidation(t *testing.T) {
	env := newRPCTestEnv(t)

	resp := env.call(t, "", "escrow_burn", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	httpResp, err := env.server.Client().Get(env.server.URL)
	require.NoError(t, err)
	defer httpResp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, httpResp.StatusCode)

	resp = env.call(t, "", "escrow_get", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeEscrowInvalidParams, resp.Error.Code)
}

func TestRPCTokenList(t *testing.T) {
	env := newRPCTestEnv(t)
	resp := env.call(t, "", "token_list", nil)
	var tokens []string
	decodeResult(t, resp, &tokens)
	require.Equal(t, []string{"USDX", "WBTX"}, tokens)
}

func TestRPCBearerTokenGuardsMutations(t *testing.T) {
	t.Setenv("SWAPVAULT_RPC_TOKEN", "sekret")
	node := core.NewNode(storage.NewMemDB())
	require.NoError(t, node.RegisterToken("USDX", "Test Dollar", 6))
	require.NoError(t, node.RegisterToken("WBTX", "Wrapped Test Bitcoin", 8))
	maker := fillAddr(0x01)
	require.NoError(t, node.Mint(maker, "USDX", big.NewInt(50)))

	srv := httptest.NewServer(NewServer(node).Handler())
	t.Cleanup(srv.Close)
	env := &rpcTestEnv{server: srv, node: node, maker: maker}

	params := escrowCreateParams{
		Maker: bech32Of(maker), Seed: 1,
		AssetA: "USDX", AssetB: "WBTX",
		DepositAmount: "50", ReceiveAmount: "100",
	}
	resp := env.call(t, "", "escrow_create", params)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = env.call(t, "wrong", "escrow_create", params)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = env.call(t, "sekret", "escrow_create", params)
	require.Nil(t, resp.Error)

	resp = env.call(t, "", "token_list", nil)
	require.Nil(t, resp.Error)
}
