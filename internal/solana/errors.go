package solana

import (
	"errors"
	"fmt"
	"net/http"
)

// RPCError is a JSON-RPC 2.0 error returned by an endpoint.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// HTTPStatusError is a non-2xx HTTP response from an endpoint.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// ErrInvalidAddress is returned when an address fails base58/curve
// validation. Permanent; never retried.
var ErrInvalidAddress = errors.New("invalid address")

// ErrNoEndpoints is returned when failover exhausts every attempt.
var ErrNoEndpoints = errors.New("no endpoint reachable")

// IsRotatable reports whether an error should rotate to the next endpoint
// immediately, without consuming a failover attempt. Auth and rate-limit
// responses fall in this class: a different endpoint is assumed unaffected.
func IsRotatable(err error) bool {
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		switch httpErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
			return true
		}
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		// -32429 is used by some providers for request throttling.
		return rpcErr.Code == -32429
	}
	return false
}
