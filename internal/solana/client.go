// Package solana is a minimal JSON-RPC client for a Solana node.
package solana

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/mr-tron/base58"

	"memetrend/internal/logging"
	"memetrend/internal/source"
)

// DefaultRPCURL is the public mainnet endpoint.
const DefaultRPCURL = "https://api.mainnet-beta.solana.com"

// Validation errors, returned before any RPC call is made.
var (
	ErrInvalidAddress     = errors.New("solana: invalid address")
	ErrInvalidTransaction = errors.New("solana: invalid transaction")
)

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("solana rpc error %d: %s", e.Code, e.Message)
}

type Config struct {
	URL        string
	Commitment string
	Timeout    time.Duration
	// HTTP tunes rate limiting and the circuit breaker in front of the node.
	HTTP source.ClientConfig
}

// Client talks to a single RPC endpoint.
type Client struct {
	url        string
	commitment string
	client     *source.Client
	nextID     atomic.Uint64
}

func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultRPCURL
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = cfg.Timeout
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = 15 * time.Second
	}
	if cfg.HTTP.RatePerSecond <= 0 {
		cfg.HTTP.RatePerSecond = 10
	}
	return &Client{
		url:        cfg.URL,
		commitment: cfg.Commitment,
		client:     source.NewClient("solana", cfg.HTTP),
	}
}

// ValidateAddress checks that addr is a base58-encoded 32-byte public key.
func ValidateAddress(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return nil
}

// GetBalance returns the balance of address in lamports.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	if err := ValidateAddress(address); err != nil {
		return 0, err
	}
	var result struct {
		Value uint64 `json:"value"`
	}
	params := []any{address, map[string]any{"commitment": c.commitment}}
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	logging.Ctx(ctx).Debug().Str("address", address).Uint64("lamports", result.Value).Msg("balance fetched")
	return result.Value, nil
}

// SendTransaction submits an already signed, base64-encoded transaction and
// returns its signature.
func (c *Client) SendTransaction(ctx context.Context, signedTx string) (string, error) {
	if signedTx == "" {
		return "", ErrInvalidTransaction
	}
	var sig string
	params := []any{signedTx, map[string]any{
		"encoding":            "base64",
		"preflightCommitment": c.commitment,
	}}
	if err := c.call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}
	logging.Ctx(ctx).Info().Str("signature", sig).Msg("transaction sent")
	return sig, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.Close()
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	data, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return err
	}
	body, err := c.client.Post(ctx, c.url, data, nil)
	if err != nil {
		return fmt.Errorf("solana %s: %w", method, err)
	}

	var r rpcResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return fmt.Errorf("solana %s: decode response: %w", method, err)
	}
	if r.Error != nil {
		return r.Error
	}
	if len(r.Result) == 0 || string(r.Result) == "null" {
		return fmt.Errorf("solana %s: empty result", method)
	}
	return json.Unmarshal(r.Result, out)
}
