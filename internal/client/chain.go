package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// ChainClient reads balances from and broadcasts transactions to an EVM
// JSON-RPC node.
type ChainClient struct {
	http   *HTTPClient
	nextID atomic.Int64
}

// NewChainClient creates a chain client against the node at rpcURL.
func NewChainClient(rpcURL string, log *zap.Logger) *ChainClient {
	return &ChainClient{http: NewHTTPClient(rpcURL, log)}
}

type rpcCall struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ChainClient) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	res, err := c.http.Post(ctx, "", rpcCall{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("node returned status %d", res.Status)
	}
	var reply rpcReply
	if err := json.Unmarshal(res.Body, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode node response: %w", err)
	}
	if reply.Error != nil {
		return nil, fmt.Errorf("node error %d: %s", reply.Error.Code, reply.Error.Message)
	}
	return reply.Result, nil
}

func (c *ChainClient) quantity(ctx context.Context, method string, params ...any) (*big.Int, error) {
	raw, err := c.call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	var hex hexutil.Big
	if err := json.Unmarshal(raw, &hex); err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return (*big.Int)(&hex), nil
}

// BalanceAt returns the native balance of addr at the latest block.
func (c *ChainClient) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.quantity(ctx, "eth_getBalance", addr.Hex(), "latest")
}

// balanceOf(address) selector.
var balanceOfSelector = hexutil.MustDecode("0x70a08231")

// TokenBalance returns the ERC-20 balance of holder on token.
func (c *ChainClient) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	data := make([]byte, 0, 36)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(holder.Bytes(), 32)...)
	call := map[string]any{
		"to":   token.Hex(),
		"data": hexutil.Encode(data),
	}
	return c.quantity(ctx, "eth_call", call, "latest")
}

// SendRawTransaction broadcasts a signed raw transaction and returns its
// hash.
func (c *ChainClient) SendRawTransaction(ctx context.Context, signed []byte) (common.Hash, error) {
	raw, err := c.call(ctx, "eth_sendRawTransaction", hexutil.Encode(signed))
	if err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return common.Hash{}, fmt.Errorf("failed to decode transaction hash: %w", err)
	}
	return hash, nil
}
