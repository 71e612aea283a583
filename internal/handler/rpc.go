package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"connectkit/internal/model"
	"connectkit/internal/provider"
)

// WidgetHandler exposes the provider facade over local HTTP.
type WidgetHandler struct {
	provider *provider.Provider
	log      *zap.Logger
}

// NewWidgetHandler creates a new WidgetHandler over the provider facade.
func NewWidgetHandler(p *provider.Provider, log *zap.Logger) *WidgetHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WidgetHandler{provider: p, log: log}
}

// PairingResponse carries the receive address with its QR rendering.
type PairingResponse struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	QRCode  string `json:"qrCode"`
}

// AccountResponse is one synced account as the HTTP surface reports it.
type AccountResponse struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Balance  string `json:"balance,omitempty"`
	Fiat     string `json:"fiat,omitempty"`
}

// Rpc handles POST /rpc: one EIP-1193 request in, one JSON-RPC response
// out. Provider-level failures come back as JSON-RPC error objects with
// HTTP 200, never as transport errors.
func (h *WidgetHandler) Rpc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(model.NewRPCError(req, model.CodeParseError, err.Error()))
		return
	}

	resp := h.provider.Request(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Pairing handles GET /pairing: the selected account address rendered as
// a base64 PNG QR code.
func (h *WidgetHandler) Pairing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	account, ok := h.provider.GetSelectedAccount()
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no account selected"})
		return
	}

	qr, err := qrcode.New(account.FreshAddress.Hex(), qrcode.Medium)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	png, err := qr.PNG(256)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(PairingResponse{
		Address: account.FreshAddress.Hex(),
		Name:    account.Name,
		QRCode:  base64.StdEncoding.EncodeToString(png),
	})
}

// Accounts handles GET /accounts
func (h *WidgetHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	synced := h.provider.HydrateBalances(r.Context())
	out := make([]AccountResponse, 0, len(synced))
	for _, account := range synced {
		resp := AccountResponse{
			Address:  account.FreshAddress.Hex(),
			Name:     account.Name,
			Currency: account.CurrencyID,
		}
		if account.Balance != nil && account.Balance.Known && account.Balance.Native != nil {
			resp.Balance = account.Balance.Native.String()
			resp.Fiat = account.Balance.Fiat
		}
		out = append(out, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(out)
}

// SelectAccount handles POST /accounts/select
func (h *WidgetHandler) SelectAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Address) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid address"})
		return
	}

	if err := h.provider.SelectAccount(common.HexToAddress(req.Address)); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// Disconnect handles POST /disconnect
func (h *WidgetHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	if err := h.provider.Disconnect(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// Healthz handles GET /healthz
func (h *WidgetHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
