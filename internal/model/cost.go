package model

import "time"

// CostBreakdown is the USD pricing of one video. A nil ActualUSD means the
// video has not reached a terminal status yet.
type CostBreakdown struct {
	PricePerSecondUSD float64  `json:"pricePerSecondUsd"`
	EstimatedUSD      float64  `json:"estimatedUsd"`
	ActualUSD         *float64 `json:"actualUsd"`
}

// CostDisplay holds an amount rendered in USD and in the preferred currency.
type CostDisplay struct {
	USD       string `json:"usd"`
	Preferred string `json:"preferred"`
}

// CostSummary is a breakdown plus display strings.
type CostSummary struct {
	EstimatedUSD      float64      `json:"estimatedUsd"`
	ActualUSD         *float64     `json:"actualUsd"`
	EstimatedDisplay  CostDisplay  `json:"estimatedDisplay"`
	ActualDisplay     *CostDisplay `json:"actualDisplay"`
	PricePerSecondUSD float64      `json:"pricePerSecondUsd"`
	PreferredCurrency string       `json:"preferredCurrency"`
}

// CurrencyRates is the conversion table for one base currency.
type CurrencyRates struct {
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetchedAt"`
}
