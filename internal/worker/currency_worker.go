package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/gunta/skypilot/internal/model"
)

const TaskTypeCurrencyRefresh = "currency:refresh"

// CurrencyRefreshPayload is the body of a currency:refresh task
type CurrencyRefreshPayload struct {
	RequestID string `json:"requestId"`
	Base      string `json:"base"`
}

// RatesRefresher forces a fetch of the rate table for base
type RatesRefresher interface {
	Refresh(ctx context.Context, base string) (*model.CurrencyRates, error)
}

// RatesBroadcaster pushes refreshed rates to connected clients
type RatesBroadcaster interface {
	BroadcastRates(rates *model.CurrencyRates)
}

// NewCurrencyRefreshTask builds a task refreshing the rates of base
func NewCurrencyRefreshTask(base string) (*asynq.Task, error) {
	data, err := json.Marshal(CurrencyRefreshPayload{
		RequestID: uuid.New().String(),
		Base:      strings.ToUpper(base),
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeCurrencyRefresh, data, asynq.MaxRetry(3)), nil
}

// CurrencyWorker keeps the persisted exchange rate table warm
type CurrencyWorker struct {
	rates     RatesRefresher
	hub       RatesBroadcaster
	onRefresh func(ctx context.Context, rates *model.CurrencyRates)
}

// NewCurrencyWorker creates a new currency worker. hub may be nil.
func NewCurrencyWorker(rates RatesRefresher, hub RatesBroadcaster) *CurrencyWorker {
	return &CurrencyWorker{
		rates: rates,
		hub:   hub,
	}
}

// OnRefresh registers a hook run after every successful refresh
func (w *CurrencyWorker) OnRefresh(fn func(ctx context.Context, rates *model.CurrencyRates)) *CurrencyWorker {
	w.onRefresh = fn
	return w
}

// ProcessTask handles currency refresh task processing
func (w *CurrencyWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload CurrencyRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.Base == "" {
		return fmt.Errorf("currency refresh without base: %w", asynq.SkipRetry)
	}

	log.Printf("[Currency] Refreshing %s rates (request %s)", payload.Base, payload.RequestID)

	rates, err := w.rates.Refresh(ctx, payload.Base)
	if err != nil {
		log.Printf("[Currency] Refresh of %s failed: %v", payload.Base, err)
		return err
	}

	if w.hub != nil {
		w.hub.BroadcastRates(rates)
	}
	if w.onRefresh != nil {
		w.onRefresh(ctx, rates)
	}

	log.Printf("[Currency] %s rates refreshed: %d currencies", rates.Base, len(rates.Rates))
	return nil
}

// NewServeMux routes every task type handled by skypilot workers
func NewServeMux(currencyWorker *CurrencyWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeCurrencyRefresh, currencyWorker.ProcessTask)
	return mux
}

// RegisterCurrencySchedule enqueues a refresh of base on every cron tick
func RegisterCurrencySchedule(scheduler *asynq.Scheduler, cronspec, base string) (string, error) {
	task, err := NewCurrencyRefreshTask(base)
	if err != nil {
		return "", fmt.Errorf("failed to create currency task: %w", err)
	}
	entryID, err := scheduler.Register(cronspec, task)
	if err != nil {
		return "", fmt.Errorf("failed to register currency schedule %q: %w", cronspec, err)
	}
	return entryID, nil
}
