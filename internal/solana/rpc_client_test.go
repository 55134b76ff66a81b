package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func rpcServer(t *testing.T, method string, result interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != method {
			t.Errorf("expected method %s, got %s", method, req.Method)
		}
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetBalance(t *testing.T) {
	server := rpcServer(t, "getBalance", map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value":   uint64(2500000000),
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	balance, err := client.GetBalance(context.Background(), "wallet123")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 2500000000 {
		t.Errorf("expected 2500000000 lamports, got %d", balance)
	}
}

func TestHTTPClient_GetTokenAccountsByOwner(t *testing.T) {
	account := func(mint, amount string, decimals uint8, ui float64) map[string]interface{} {
		return map[string]interface{}{
			"pubkey": "acct-" + mint,
			"account": map[string]interface{}{
				"data": map[string]interface{}{
					"parsed": map[string]interface{}{
						"info": map[string]interface{}{
							"mint": mint,
							"tokenAmount": map[string]interface{}{
								"amount":   amount,
								"decimals": decimals,
								"uiAmount": ui,
							},
						},
					},
				},
			},
		}
	}

	server := rpcServer(t, "getTokenAccountsByOwner", map[string]interface{}{
		"value": []interface{}{
			account("mintA", "1000000", 6, 1.0),
			account("mintB", "not-a-number", 6, 2.0), // malformed, must be skipped
			account("mintC", "500", 2, 5.0),
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	accounts, err := client.GetTokenAccountsByOwner(context.Background(), "owner")
	if err != nil {
		t.Fatalf("GetTokenAccountsByOwner: %v", err)
	}

	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts (malformed skipped), got %d", len(accounts))
	}
	if accounts[0].Mint != "mintA" || accounts[0].RawAmount != 1000000 {
		t.Errorf("unexpected first account: %+v", accounts[0])
	}
	if accounts[1].Mint != "mintC" || accounts[1].UIAmount != 5.0 {
		t.Errorf("unexpected second account: %+v", accounts[1])
	}
}

func TestHTTPClient_GetLatestBlockhash(t *testing.T) {
	server := rpcServer(t, "getLatestBlockhash", map[string]interface{}{
		"value": map[string]interface{}{
			"blockhash":            "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
			"lastValidBlockHeight": uint64(286734021),
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	bh, err := client.GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if bh.Blockhash != "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N" {
		t.Errorf("unexpected blockhash: %s", bh.Blockhash)
	}
	if bh.LastValidBlockHeight != 286734021 {
		t.Errorf("unexpected expiry height: %d", bh.LastValidBlockHeight)
	}
}

func TestHTTPClient_SendTransaction_SkipsPreflight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "sendTransaction" {
			t.Errorf("expected sendTransaction, got %s", req.Method)
		}
		opts, ok := req.Params[1].(map[string]interface{})
		if !ok {
			t.Fatalf("expected options map, got %T", req.Params[1])
		}
		if opts["skipPreflight"] != true {
			t.Error("expected skipPreflight=true")
		}
		if opts["encoding"] != "base64" {
			t.Errorf("expected base64 encoding, got %v", opts["encoding"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID, "result": "sig123",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	sig, err := client.SendTransaction(context.Background(), "dGVzdA==")
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != "sig123" {
		t.Errorf("expected sig123, got %s", sig)
	}
}

func TestHTTPClient_GetSignatureStatuses_UnknownIsNil(t *testing.T) {
	server := rpcServer(t, "getSignatureStatuses", map[string]interface{}{
		"value": []interface{}{
			map[string]interface{}{
				"slot":               uint64(100),
				"confirmations":      uint64(5),
				"confirmationStatus": "confirmed",
				"err":                nil,
			},
			nil,
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	statuses, err := client.GetSignatureStatuses(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Confirmed() {
		t.Error("expected first signature confirmed")
	}
	if statuses[1] != nil {
		t.Errorf("expected nil for unknown signature, got %+v", statuses[1])
	}
}

func TestHTTPClient_RPCErrorIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID,
			"error": map[string]interface{}{"code": -32602, "message": "invalid params"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.GetBalance(context.Background(), "bad")
	if err == nil {
		t.Fatal("expected error")
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
}

func TestHTTPClient_RateLimitedIsRotatable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.GetBlockHeight(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRotatable(err) {
		t.Errorf("expected 429 to be rotatable, got %v", err)
	}
}
