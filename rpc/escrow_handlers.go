package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"swapvault/crypto"
	"swapvault/native/escrow"
)

const (
	codeEscrowInvalidParams     = -32021
	codeEscrowNotFound          = -32022
	codeEscrowForbidden         = -32023
	codeEscrowConflict          = -32024
	codeEscrowInternal          = -32025
	codeEscrowInsufficientFunds = -32026
)

type escrowCreateParams struct {
	Maker         string `json:"maker"`
	Seed          uint64 `json:"seed"`
	AssetA        string `json:"assetA"`
	AssetB        string `json:"assetB"`
	DepositAmount string `json:"depositAmount"`
	ReceiveAmount string `json:"receiveAmount"`
}

type escrowFulfillParams struct {
	Record string `json:"record"`
	Taker  string `json:"taker"`
	Maker  string `json:"maker"`
	AssetA string `json:"assetA,omitempty"`
	AssetB string `json:"assetB,omitempty"`
}

type escrowCancelParams struct {
	Record string `json:"record"`
	Caller string `json:"caller"`
}

type escrowGetParams struct {
	Record string `json:"record"`
}

type escrowJSON struct {
	Address       string `json:"address"`
	Seed          uint64 `json:"seed"`
	Maker         string `json:"maker"`
	AssetA        string `json:"assetA"`
	AssetB        string `json:"assetB"`
	ReceiveAmount string `json:"receiveAmount"`
	Vault         string `json:"vault"`
	CreatedAt     int64  `json:"createdAt"`
}

type escrowCreateResult struct {
	Record string `json:"record"`
	Vault  string `json:"vault"`
}

func escrowToJSON(rec *escrow.Escrow) escrowJSON {
	vault, _ := escrow.DeriveVaultAddress(rec.Address)
	return escrowJSON{
		Address:       crypto.NewAddress(crypto.SwapPrefix, rec.Address[:]).String(),
		Seed:          rec.Seed,
		Maker:         crypto.NewAddress(crypto.SwapPrefix, rec.Maker[:]).String(),
		AssetA:        rec.AssetA,
		AssetB:        rec.AssetB,
		ReceiveAmount: rec.ReceiveAmount.String(),
		Vault:         crypto.NewAddress(crypto.SwapPrefix, vault[:]).String(),
		CreatedAt:     rec.CreatedAt,
	}
}

// writeEscrowError translates engine sentinels into stable RPC error codes.
func writeEscrowError(w http.ResponseWriter, id json.RawMessage, err error) {
	switch {
	case errors.Is(err, escrow.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeEscrowNotFound, "not_found", err.Error())
	case errors.Is(err, escrow.ErrInvalidMaker), errors.Is(err, escrow.ErrAuthorityMismatch):
		writeError(w, http.StatusForbidden, id, codeEscrowForbidden, "forbidden", err.Error())
	case errors.Is(err, escrow.ErrDuplicateEscrow):
		writeError(w, http.StatusConflict, id, codeEscrowConflict, "conflict", err.Error())
	case errors.Is(err, escrow.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, id, codeEscrowInsufficientFunds, "insufficient_funds", err.Error())
	case errors.Is(err, escrow.ErrInvalidAmount), errors.Is(err, escrow.ErrInvalidAsset):
		writeError(w, http.StatusBadRequest, id, codeEscrowInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeEscrowInternal, "internal_error", err.Error())
	}
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleEscrowCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params escrowCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	maker, err := parseBech32Address(params.Maker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	deposit, err := parsePositiveBigInt(params.DepositAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	receive, err := parsePositiveBigInt(params.ReceiveAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	rec, err := s.node.EscrowCreate(maker, params.Seed, params.AssetA, params.AssetB, deposit, receive)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	vault, _ := escrow.DeriveVaultAddress(rec.Address)
	writeResult(w, req.ID, escrowCreateResult{
		Record: crypto.NewAddress(crypto.SwapPrefix, rec.Address[:]).String(),
		Vault:  crypto.NewAddress(crypto.SwapPrefix, vault[:]).String(),
	})
}

func (s *Server) handleEscrowFulfill(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params escrowFulfillParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := parseBech32Address(params.Record)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	taker, err := parseBech32Address(params.Taker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	maker, err := parseBech32Address(params.Maker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.EscrowFulfill(record, taker, maker, params.AssetA, params.AssetB); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"fulfilled": true})
}

func (s *Server) handleEscrowCancel(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params escrowCancelParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := parseBech32Address(params.Record)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.EscrowCancel(record, caller); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"cancelled": true})
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowGetParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := parseBech32Address(params.Record)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	rec, err := s.node.EscrowGet(record)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowToJSON(rec))
}

type bankBalanceParams struct {
	Address string `json:"address"`
	Token   string `json:"token"`
}

type bankBalanceResult struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

func (s *Server) handleBankBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bankBalanceParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.node.Balance(addr, params.Token)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bankBalanceResult{
		Address: params.Address,
		Token:   params.Token,
		Balance: balance.String(),
	})
}

func (s *Server) handleTokenList(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	tokens, err := s.node.Tokens()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeEscrowInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, tokens)
}
