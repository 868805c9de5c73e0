package service

import (
	"github.com/gunta/skypilot/internal/currency"
	"github.com/gunta/skypilot/internal/model"
)

// OperationResult is the outcome of the last completed operation. The
// concrete type is one of the *Result types below and matches Kind.
type OperationResult interface {
	Kind() model.OperationKind
}

type RefreshResult struct {
	Videos          []model.Video                 `json:"videos"`
	Summaries       map[string]*model.CostSummary `json:"summaries"`
	Formatter       *currency.Formatter           `json:"-"`
	Currency        string                        `json:"currency,omitempty"`
	CurrencyWarning string                        `json:"currencyWarning,omitempty"`

	usd *currency.Formatter
}

func (*RefreshResult) Kind() model.OperationKind { return model.OpRefresh }

type CreateResult struct {
	Request        model.CreateRequest     `json:"request"`
	Initial        model.Video             `json:"initial"`
	Final          *model.Video            `json:"final,omitempty"`
	Downloads      *model.DownloadedAssets `json:"downloads,omitempty"`
	WatchCancelled bool                    `json:"watchCancelled,omitempty"`
}

func (*CreateResult) Kind() model.OperationKind { return model.OpCreate }

type RemixResult struct {
	Request        model.RemixRequest      `json:"request"`
	Initial        model.Video             `json:"initial"`
	Final          *model.Video            `json:"final,omitempty"`
	Downloads      *model.DownloadedAssets `json:"downloads,omitempty"`
	WatchCancelled bool                    `json:"watchCancelled,omitempty"`
}

func (*RemixResult) Kind() model.OperationKind { return model.OpRemix }

type DownloadResult struct {
	Request   model.DownloadRequest  `json:"request"`
	Downloads model.DownloadedAssets `json:"downloads"`
}

func (*DownloadResult) Kind() model.OperationKind { return model.OpDownload }

type DeleteResult struct {
	Request    model.DeleteRequest `json:"request"`
	Deleted    bool                `json:"deleted"`
	ResponseID string              `json:"responseId"`
}

func (*DeleteResult) Kind() model.OperationKind { return model.OpDelete }

type CurrencyResult struct {
	Formatter *currency.Formatter `json:"-"`
	Currency  string              `json:"currency"`
	Rate      float64             `json:"rate"`
	Warning   string              `json:"warning,omitempty"`

	usd *currency.Formatter
}

func (*CurrencyResult) Kind() model.OperationKind { return model.OpCurrency }
