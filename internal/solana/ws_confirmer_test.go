package solana

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsTestServer(t *testing.T, txErr interface{}) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if req.Method != "signatureSubscribe" {
			t.Errorf("expected signatureSubscribe, got %s", req.Method)
		}

		// Subscription confirmation, then the notification.
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": int64(42)})
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "signatureNotification",
			"params": map[string]interface{}{
				"result": map[string]interface{}{
					"value": map[string]interface{}{"err": txErr},
				},
				"subscription": int64(42),
			},
		})
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSConfirmer_ConfirmsSignature(t *testing.T) {
	server := wsTestServer(t, nil)
	defer server.Close()

	confirmer := NewWSConfirmer(wsURL(server), nil)
	txErr, err := confirmer.WaitForSignature(context.Background(), "sig123")
	if err != nil {
		t.Fatalf("WaitForSignature: %v", err)
	}
	if txErr != nil {
		t.Errorf("expected no on-chain error, got %v", txErr)
	}
}

func TestWSConfirmer_SurfacesOnChainError(t *testing.T) {
	server := wsTestServer(t, map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}})
	defer server.Close()

	confirmer := NewWSConfirmer(wsURL(server), nil)
	txErr, err := confirmer.WaitForSignature(context.Background(), "sig123")
	if err != nil {
		t.Fatalf("WaitForSignature: %v", err)
	}
	if txErr == nil {
		t.Error("expected on-chain error to surface")
	}
}

func TestWSConfirmer_CancellationUnblocks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req wsRequest
		conn.ReadJSON(&req)
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": int64(1)})
		// Never send the notification.
		time.Sleep(5 * time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	confirmer := NewWSConfirmer(wsURL(server), nil)
	start := time.Now()
	_, err := confirmer.WaitForSignature(ctx, "sig123")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("cancellation took too long: %v", time.Since(start))
	}
}
