package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gunta/skypilot/internal/config"
	"github.com/gunta/skypilot/internal/model"
)

// RatesFetcher loads a fresh conversion table for a base currency
type RatesFetcher interface {
	FetchRates(ctx context.Context, base string) (*model.CurrencyRates, error)
}

// ExchangeClient implements RatesFetcher against an open.er-api.com compatible service
type ExchangeClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewExchangeClient creates a new exchange rate client
func NewExchangeClient(cfg *config.CurrencyConfig) *ExchangeClient {
	return &ExchangeClient{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: cfg.RatesURL,
	}
}

type latestRatesResponse struct {
	Result             string             `json:"result"`
	BaseCode           string             `json:"base_code"`
	Rates              map[string]float64 `json:"rates"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
}

// FetchRates retrieves the latest rates. FetchedAt is the provider's own
// update time when it reports one.
func (c *ExchangeClient) FetchRates(ctx context.Context, base string) (*model.CurrencyRates, error) {
	base = strings.ToUpper(base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/latest/"+base, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	log.Printf("[Exchange API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exchange rates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Exchange API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("exchange rate API error (status %d): %s", resp.StatusCode, string(body))
	}

	var data latestRatesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if data.Rates == nil {
		return nil, fmt.Errorf("unexpected currency API response")
	}

	fetchedAt := time.Now()
	if data.TimeLastUpdateUnix > 0 {
		fetchedAt = time.Unix(data.TimeLastUpdateUnix, 0)
	}

	return &model.CurrencyRates{
		Base:      base,
		Rates:     data.Rates,
		FetchedAt: fetchedAt,
	}, nil
}
