package signflow

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"connectkit/internal/model"
)

// Intent is a signing request exactly as the dApp issued it: method name
// plus raw parameters. Pending intents are retained verbatim and replayed
// once a session is ready, preserving the original signing intent.
type Intent struct {
	Method string
	Params []json.RawMessage
}

// Signing methods accepted by the flow.
const (
	MethodSendTransaction = "eth_sendTransaction"
	MethodSign            = "eth_sign"
	MethodPersonalSign    = "personal_sign"
	MethodSignTypedDataV4 = "eth_signTypedData_v4"
)

// txParams is the transaction object of an eth_sendTransaction call.
type txParams struct {
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                *hexutil.Uint64 `json:"nonce"`
	Data                 *hexutil.Bytes  `json:"data"`
	Input                *hexutil.Bytes  `json:"input"`
}

// validators holds the method-specific parameter-shape predicates. An
// intent that fails its predicate is rejected up front, before any device
// interaction and before being recorded as pending.
var validators = map[string]func([]json.RawMessage) error{
	MethodSendTransaction: validateSendTransaction,
	MethodSign:            validateAddressThenData,
	MethodPersonalSign:    validateDataThenAddress,
	MethodSignTypedDataV4: validateTypedData,
}

// Supported reports whether method is a signing method this flow handles.
func Supported(method string) bool {
	_, ok := validators[method]
	return ok
}

// Validate checks the intent's parameters against the predicate for its
// method.
func Validate(intent Intent) error {
	validate, ok := validators[intent.Method]
	if !ok {
		return fmt.Errorf("unsupported signing method %q", intent.Method)
	}
	return validate(intent.Params)
}

func validateSendTransaction(params []json.RawMessage) error {
	if len(params) < 1 {
		return fmt.Errorf("eth_sendTransaction needs a transaction object")
	}
	var p txParams
	if err := json.Unmarshal(params[0], &p); err != nil {
		return fmt.Errorf("malformed transaction object: %w", err)
	}
	if p.From == nil {
		return fmt.Errorf("transaction object missing from")
	}
	if p.GasPrice != nil && p.MaxFeePerGas != nil {
		return fmt.Errorf("transaction object mixes gasPrice and maxFeePerGas")
	}
	return nil
}

func validateAddressThenData(params []json.RawMessage) error {
	if len(params) < 2 {
		return fmt.Errorf("expected [address, data]")
	}
	var addr common.Address
	if err := json.Unmarshal(params[0], &addr); err != nil {
		return fmt.Errorf("malformed address: %w", err)
	}
	var data hexutil.Bytes
	if err := json.Unmarshal(params[1], &data); err != nil {
		return fmt.Errorf("malformed data: %w", err)
	}
	return nil
}

func validateDataThenAddress(params []json.RawMessage) error {
	if len(params) < 2 {
		return fmt.Errorf("expected [data, address]")
	}
	var data hexutil.Bytes
	if err := json.Unmarshal(params[0], &data); err != nil {
		return fmt.Errorf("malformed data: %w", err)
	}
	var addr common.Address
	if err := json.Unmarshal(params[1], &addr); err != nil {
		return fmt.Errorf("malformed address: %w", err)
	}
	return nil
}

func validateTypedData(params []json.RawMessage) error {
	if len(params) < 2 {
		return fmt.Errorf("expected [address, typedData]")
	}
	var addr common.Address
	if err := json.Unmarshal(params[0], &addr); err != nil {
		return fmt.Errorf("malformed address: %w", err)
	}
	// The typed data document is passed through opaque, but it must at
	// least be a JSON document or a string holding one.
	var asString string
	if err := json.Unmarshal(params[1], &asString); err == nil {
		if !json.Valid([]byte(asString)) {
			return fmt.Errorf("typed data is not valid JSON")
		}
		return nil
	}
	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(params[1], &asObject); err != nil {
		return fmt.Errorf("malformed typed data: %w", err)
	}
	return nil
}

// resolve turns a validated intent into the device sign request and the
// broadcast decision.
func resolve(intent Intent, chainID uint64) (model.SignRequest, bool, error) {
	if err := Validate(intent); err != nil {
		return model.SignRequest{}, false, err
	}

	switch intent.Method {
	case MethodSendTransaction:
		var p txParams
		if err := json.Unmarshal(intent.Params[0], &p); err != nil {
			return model.SignRequest{}, false, err
		}
		raw, err := buildRawTransaction(chainID, p)
		if err != nil {
			return model.SignRequest{}, false, err
		}
		return model.SignRequest{
			Type:    model.SignTypeTransaction,
			Address: *p.From,
			Payload: raw,
		}, true, nil

	case MethodSign:
		var addr common.Address
		var data hexutil.Bytes
		_ = json.Unmarshal(intent.Params[0], &addr)
		_ = json.Unmarshal(intent.Params[1], &data)
		return model.SignRequest{Type: model.SignTypePersonalSign, Address: addr, Payload: data}, false, nil

	case MethodPersonalSign:
		var addr common.Address
		var data hexutil.Bytes
		_ = json.Unmarshal(intent.Params[0], &data)
		_ = json.Unmarshal(intent.Params[1], &addr)
		return model.SignRequest{Type: model.SignTypePersonalSign, Address: addr, Payload: data}, false, nil

	case MethodSignTypedDataV4:
		var addr common.Address
		_ = json.Unmarshal(intent.Params[0], &addr)
		payload := []byte(intent.Params[1])
		var asString string
		if err := json.Unmarshal(intent.Params[1], &asString); err == nil {
			payload = []byte(asString)
		}
		return model.SignRequest{Type: model.SignTypeTypedMessage, Address: addr, Payload: payload}, false, nil
	}
	return model.SignRequest{}, false, fmt.Errorf("unsupported signing method %q", intent.Method)
}

// buildRawTransaction encodes the request into raw unsigned transaction
// bytes. The codec itself is opaque to the flow.
func buildRawTransaction(chainID uint64, p txParams) ([]byte, error) {
	data := []byte{}
	if p.Input != nil {
		data = *p.Input
	} else if p.Data != nil {
		data = *p.Data
	}

	var (
		nonce uint64
		gas   uint64 = 21000
		value        = new(big.Int)
	)
	if p.Nonce != nil {
		nonce = uint64(*p.Nonce)
	}
	if p.Gas != nil {
		gas = uint64(*p.Gas)
	}
	if p.Value != nil {
		value = (*big.Int)(p.Value)
	}

	var tx *types.Transaction
	if p.MaxFeePerGas != nil {
		tip := new(big.Int)
		if p.MaxPriorityFeePerGas != nil {
			tip = (*big.Int)(p.MaxPriorityFeePerGas)
		}
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(chainID),
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: (*big.Int)(p.MaxFeePerGas),
			Gas:       gas,
			To:        p.To,
			Value:     value,
			Data:      data,
		})
	} else {
		gasPrice := new(big.Int)
		if p.GasPrice != nil {
			gasPrice = (*big.Int)(p.GasPrice)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       p.To,
			Value:    value,
			Data:     data,
		})
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return raw, nil
}
