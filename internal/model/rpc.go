package model

import "encoding/json"

// JSON-RPC error codes per EIP-1193/EIP-1474.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902

	CodeResourceUnavailable = -32002

	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeParseError     = -32700
)

// RPCRequest is an inbound EIP-1193 request.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      int64             `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// RPCResponse is the JSON-RPC shaped reply returned to the dApp. Exactly
// one of Result and Error is set.
type RPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int64     `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// NewRPCResult builds a success response for req.
func NewRPCResult(req RPCRequest, result any) RPCResponse {
	return RPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

// NewRPCError builds an error response for req.
func NewRPCError(req RPCRequest, code int, message string) RPCResponse {
	return RPCResponse{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: code, Message: message}}
}
