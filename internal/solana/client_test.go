package solana

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memetrend/internal/source"
)

// System program id, a valid 32-byte key.
const wallet = "11111111111111111111111111111111"

type captured struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

func rpcServer(t *testing.T, reply string, got *captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		_, _ = w.Write([]byte(reply))
	}))
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress(wallet))
	assert.NoError(t, ValidateAddress("So11111111111111111111111111111111111111112"))
	assert.ErrorIs(t, ValidateAddress(""), ErrInvalidAddress)
	assert.ErrorIs(t, ValidateAddress("0OIl"), ErrInvalidAddress)
	assert.ErrorIs(t, ValidateAddress("abc"), ErrInvalidAddress)
}

func TestGetBalance(t *testing.T) {
	var got captured
	srv := rpcServer(t, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":2500000000}}`, &got)
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL})
	defer c.Close()
	lamports, err := c.GetBalance(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500000000), lamports)
	assert.Equal(t, "getBalance", got.Method)
	assert.Equal(t, wallet, got.Params[0])
}

func TestGetBalanceInvalidAddressSkipsRPC(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	_, err := NewClient(Config{URL: srv.URL}).GetBalance(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.False(t, called)
}

func TestGetBalanceRPCError(t *testing.T) {
	srv := rpcServer(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid param"}}`, nil)
	defer srv.Close()

	_, err := NewClient(Config{URL: srv.URL}).GetBalance(context.Background(), wallet)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32602, rpcErr.Code)
}

func TestGetBalanceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(Config{URL: srv.URL}).GetBalance(context.Background(), wallet)
	assert.Error(t, err)
}

func TestSendTransaction(t *testing.T) {
	var got captured
	srv := rpcServer(t, `{"jsonrpc":"2.0","id":1,"result":"5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"}`, &got)
	defer srv.Close()

	sig, err := NewClient(Config{URL: srv.URL}).SendTransaction(context.Background(), "AQID")
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
	assert.Equal(t, "sendTransaction", got.Method)
	opts, ok := got.Params[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "base64", opts["encoding"])

	_, err = NewClient(Config{URL: srv.URL}).SendTransaction(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestBrokenNodeOpensBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{
		URL:  srv.URL,
		HTTP: source.ClientConfig{RatePerSecond: 100, FailureThreshold: 2, OpenTimeout: time.Minute},
	})
	defer c.Close()
	for i := 0; i < 4; i++ {
		_, err := c.GetBalance(context.Background(), wallet)
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
}
