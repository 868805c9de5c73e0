package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gunta/skypilot/internal/model"
)

type stubRefresher struct {
	bases []string
	err   error
}

func (s *stubRefresher) Refresh(ctx context.Context, base string) (*model.CurrencyRates, error) {
	s.bases = append(s.bases, base)
	if s.err != nil {
		return nil, s.err
	}
	return &model.CurrencyRates{Base: base, Rates: map[string]float64{"EUR": 0.9, "JPY": 150}, FetchedAt: time.Now()}, nil
}

type recordingHub struct {
	rates []*model.CurrencyRates
}

func (h *recordingHub) BroadcastRates(rates *model.CurrencyRates) {
	h.rates = append(h.rates, rates)
}

func TestNewCurrencyRefreshTask(t *testing.T) {
	task, err := NewCurrencyRefreshTask("usd")
	if err != nil {
		t.Fatalf("NewCurrencyRefreshTask: %v", err)
	}
	if task.Type() != TaskTypeCurrencyRefresh {
		t.Errorf("unexpected task type %q", task.Type())
	}
	var payload CurrencyRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Base != "USD" || payload.RequestID == "" {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestProcessTaskRefreshesAndBroadcasts(t *testing.T) {
	refresher := &stubRefresher{}
	hub := &recordingHub{}
	var hooked *model.CurrencyRates
	w := NewCurrencyWorker(refresher, hub).OnRefresh(func(ctx context.Context, rates *model.CurrencyRates) {
		hooked = rates
	})

	task, _ := NewCurrencyRefreshTask("USD")
	if err := w.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(refresher.bases) != 1 || refresher.bases[0] != "USD" {
		t.Errorf("unexpected refresh calls %v", refresher.bases)
	}
	if len(hub.rates) != 1 || hooked == nil {
		t.Error("expected broadcast and hook")
	}
}

func TestProcessTaskErrors(t *testing.T) {
	w := NewCurrencyWorker(&stubRefresher{err: errors.New("offline")}, nil)

	task, _ := NewCurrencyRefreshTask("USD")
	if err := w.ProcessTask(context.Background(), task); err == nil {
		t.Error("expected refresh error to be returned for retry")
	}

	bad := asynq.NewTask(TaskTypeCurrencyRefresh, []byte("{"))
	if err := w.ProcessTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("expected SkipRetry for bad payload, got %v", err)
	}
}
