package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// RatesClient fetches fiat exchange rates for balance valuation.
type RatesClient struct {
	http *HTTPClient
}

// NewRatesClient creates a rates client against a coingecko-compatible
// API at baseURL.
func NewRatesClient(baseURL string, log *zap.Logger) *RatesClient {
	return &RatesClient{http: NewHTTPClient(baseURL, log)}
}

// Rate returns the fiat price of one unit of currencyID in vs (e.g.
// "ethereum", "usd"), formatted as a decimal string.
func (c *RatesClient) Rate(ctx context.Context, currencyID, vs string) (string, error) {
	path := fmt.Sprintf("/simple/price?ids=%s&vs_currencies=%s", currencyID, vs)
	res, err := c.http.Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to get rate: %w", err)
	}
	if !res.OK() {
		return "", fmt.Errorf("failed to get rate: status %d", res.Status)
	}

	var priceResp map[string]map[string]float64
	if err := json.Unmarshal(res.Body, &priceResp); err != nil {
		return "", fmt.Errorf("failed to decode rate: %w", err)
	}
	price, ok := priceResp[currencyID][vs]
	if !ok {
		return "", fmt.Errorf("no %s/%s rate in response", currencyID, vs)
	}
	return strconv.FormatFloat(price, 'f', 2, 64), nil
}
