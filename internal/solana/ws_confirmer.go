package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSConfirmer waits for transaction confirmation through a WebSocket
// signatureSubscribe instead of polling getSignatureStatuses. One
// connection per confirmation: the subscription auto-cancels after the
// cluster delivers the notification, and swaps are executed sequentially
// so there is nothing to multiplex.
type WSConfirmer struct {
	endpoint     string
	handshake    time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewWSConfirmer creates a confirmer for one WebSocket RPC endpoint.
func NewWSConfirmer(endpoint string, logger *zap.Logger) *WSConfirmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSConfirmer{
		endpoint:     endpoint,
		handshake:    10 * time.Second,
		writeTimeout: 10 * time.Second,
		logger:       logger.Named("ws_confirmer"),
	}
}

// wsRequest is a JSON-RPC 2.0 request over the socket.
type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// wsMessage covers both the subscription confirmation and the notification.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params *struct {
		Result struct {
			Value struct {
				Err interface{} `json:"err"`
			} `json:"value"`
		} `json:"result"`
		Subscription int64 `json:"subscription"`
	} `json:"params"`
	Error *RPCError `json:"error"`
}

// WaitForSignature blocks until the cluster confirms the signature, the
// transaction fails on-chain (returned as txErr), or ctx is cancelled.
func (w *WSConfirmer) WaitForSignature(ctx context.Context, signature string) (txErr interface{}, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: w.handshake}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": "confirmed"},
		},
	}
	conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("write subscribe: %w", err)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read notification: %w", err)
		}

		if msg.Error != nil {
			return nil, msg.Error
		}

		if msg.Method == "signatureNotification" && msg.Params != nil {
			w.logger.Debug("signature notification received",
				zap.String("signature", signature),
				zap.Any("err", msg.Params.Result.Value.Err))
			return msg.Params.Result.Value.Err, nil
		}
		// Anything else is the subscription confirmation; keep reading.
	}
}
