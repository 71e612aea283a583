package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"connectkit/internal/model"
)

// AuthResult is what the trustchain returns for a successful
// authentication: the identifiers addressing the user's synced data and
// the session credential.
type AuthResult struct {
	TrustChainID    string        `json:"trustChainId"`
	ApplicationPath string        `json:"applicationPath"`
	Credential      hexutil.Bytes `json:"credential"`
}

// SyncClient talks to the cloud key-recovery/sync service.
type SyncClient struct {
	http *HTTPClient
}

// NewSyncClient creates a sync client against baseURL.
func NewSyncClient(baseURL string, log *zap.Logger) *SyncClient {
	return &SyncClient{http: NewHTTPClient(baseURL, log)}
}

type authRequest struct {
	PublicKey hexutil.Bytes `json:"publicKey"`
	SessionID string        `json:"sessionId"`
}

// Authenticate exchanges the local public key and the open device session
// for a trustchain membership. Failures are wrapped by the keyring; this
// layer only distinguishes transport failure from a rejecting response.
func (c *SyncClient) Authenticate(ctx context.Context, publicKey []byte, sessionID string) (AuthResult, error) {
	res, err := c.http.Post(ctx, "/v1/trustchain/authenticate", authRequest{
		PublicKey: publicKey,
		SessionID: sessionID,
	})
	if err != nil {
		return AuthResult{}, err
	}
	if !res.OK() {
		return AuthResult{}, fmt.Errorf("trustchain rejected authentication: status %d", res.Status)
	}

	var out AuthResult
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return AuthResult{}, &model.ResponseValidationError{What: "trustchain authenticate", Err: err}
	}
	if out.TrustChainID == "" || len(out.Credential) == 0 {
		return AuthResult{}, &model.ResponseValidationError{What: "trustchain authenticate", Err: fmt.Errorf("missing trustChainId or credential")}
	}
	return out, nil
}

type payloadResponse struct {
	Payload hexutil.Bytes `json:"payload"`
	Version int           `json:"version"`
}

// FetchPayload retrieves the encrypted account blob addressed by
// (applicationPath, trustChainID, version). The second return is false
// when the backend holds no payload for that key.
func (c *SyncClient) FetchPayload(ctx context.Context, applicationPath, trustChainID string, version int) ([]byte, bool, error) {
	path := fmt.Sprintf("/v1/sync/%s/%s?version=%d", applicationPath, trustChainID, version)
	res, err := c.http.Get(ctx, path)
	if err != nil {
		return nil, false, err
	}
	if res.Status == http.StatusNotFound {
		return nil, false, nil
	}
	if !res.OK() {
		return nil, false, fmt.Errorf("cloud sync fetch failed: status %d", res.Status)
	}

	var out payloadResponse
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return nil, false, &model.ResponseValidationError{What: "cloud sync payload", Err: err}
	}
	if len(out.Payload) == 0 {
		return nil, false, nil
	}
	return out.Payload, true, nil
}
