package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"connectkit/internal/client"
	"connectkit/internal/model"
)

// Bridge talks to an out-of-process device bridge over HTTP: the hardware
// management SDK runs next to the browser (WebUSB/WebHID context) and
// exposes connect/sign primitives to this core. It implements both the
// Transport interface and the signing flow's Signer contract.
type Bridge struct {
	http *client.HTTPClient
	log  *zap.Logger

	// PollInterval is how often a pending sign operation is polled.
	PollInterval time.Duration
}

// NewBridge creates a bridge client against baseURL.
func NewBridge(baseURL string, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		http:         client.NewHTTPClient(baseURL, log),
		log:          log,
		PollInterval: 500 * time.Millisecond,
	}
}

func (b *Bridge) Connect(ctx context.Context, connType model.ConnectionType) (model.Device, error) {
	res, err := b.http.Post(ctx, "/v1/devices/connect", map[string]string{"type": string(connType)})
	if err != nil {
		return model.Device{}, err
	}
	if !res.OK() {
		return model.Device{}, fmt.Errorf("bridge refused connect: status %d", res.Status)
	}
	var dev model.Device
	if err := json.Unmarshal(res.Body, &dev); err != nil {
		return model.Device{}, &model.ResponseValidationError{What: "bridge connect", Err: err}
	}
	if dev.SessionID == "" {
		return model.Device{}, &model.ResponseValidationError{What: "bridge connect", Err: fmt.Errorf("missing sessionId")}
	}
	return dev, nil
}

func (b *Bridge) Disconnect(ctx context.Context, sessionID string) error {
	res, err := b.http.Post(ctx, "/v1/devices/disconnect", map[string]string{"sessionId": sessionID})
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("bridge refused disconnect: status %d", res.Status)
	}
	return nil
}

func (b *Bridge) ListAvailable(ctx context.Context) ([]model.Device, error) {
	res, err := b.http.Get(ctx, "/v1/devices")
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("bridge discovery failed: status %d", res.Status)
	}
	var devices []model.Device
	if err := json.Unmarshal(res.Body, &devices); err != nil {
		return nil, &model.ResponseValidationError{What: "bridge device list", Err: err}
	}
	return devices, nil
}

type bridgeSignRequest struct {
	Type           model.SignType `json:"type"`
	Address        string         `json:"address"`
	DerivationPath string         `json:"derivationPath,omitempty"`
	Payload        hexutil.Bytes  `json:"payload"`
}

type bridgeSignState struct {
	OperationID string            `json:"operationId"`
	Interaction model.Interaction `json:"interaction,omitempty"`
	Signature   hexutil.Bytes     `json:"signature,omitempty"`
	Rejected    bool              `json:"rejected"`
	Done        bool              `json:"done"`
}

// Sign submits a signing operation to the bridge and polls it to
// completion. Each pending physical confirmation reported by the bridge
// is forwarded through notify.
func (b *Bridge) Sign(ctx context.Context, req model.SignRequest, notify func(model.Interaction)) ([]byte, error) {
	res, err := b.http.Post(ctx, "/v1/sign", bridgeSignRequest{
		Type:           req.Type,
		Address:        req.Address.Hex(),
		DerivationPath: req.DerivationPath,
		Payload:        req.Payload,
	})
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("bridge refused sign: status %d", res.Status)
	}

	var state bridgeSignState
	if err := json.Unmarshal(res.Body, &state); err != nil {
		return nil, &model.ResponseValidationError{What: "bridge sign", Err: err}
	}

	lastInteraction := model.Interaction("")
	for {
		if state.Rejected {
			return nil, model.ErrUserRejected
		}
		if state.Done {
			if len(state.Signature) == 0 {
				return nil, &model.ResponseValidationError{What: "bridge sign", Err: fmt.Errorf("done without signature")}
			}
			return state.Signature, nil
		}
		if state.Interaction != "" && state.Interaction != lastInteraction {
			lastInteraction = state.Interaction
			notify(state.Interaction)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.PollInterval):
		}

		res, err := b.http.Get(ctx, "/v1/sign/"+state.OperationID)
		if err != nil {
			return nil, err
		}
		if !res.OK() {
			return nil, fmt.Errorf("bridge sign poll failed: status %d", res.Status)
		}
		if err := json.Unmarshal(res.Body, &state); err != nil {
			return nil, &model.ResponseValidationError{What: "bridge sign", Err: err}
		}
	}
}

var _ Transport = (*Bridge)(nil)
