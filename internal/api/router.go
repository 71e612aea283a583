package api

import (
	"net/http"

	"go.uber.org/zap"

	"connectkit/internal/handler"
	"connectkit/internal/provider"
)

// SetupRouter sets up router with handlers
func SetupRouter(p *provider.Provider, log *zap.Logger) http.Handler {
	widgetHandler := handler.NewWidgetHandler(p, log)

	mux := http.NewServeMux()

	// Provider endpoints
	mux.HandleFunc("/rpc", widgetHandler.Rpc)
	mux.HandleFunc("/pairing", widgetHandler.Pairing)
	mux.HandleFunc("/accounts", widgetHandler.Accounts)
	mux.HandleFunc("/accounts/select", widgetHandler.SelectAccount)
	mux.HandleFunc("/disconnect", widgetHandler.Disconnect)
	mux.HandleFunc("/healthz", widgetHandler.Healthz)

	return mux
}
