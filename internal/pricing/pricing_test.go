package pricing

import (
	"fmt"
	"math"
	"testing"

	"github.com/gunta/skypilot/internal/model"
)

type stubFormatter struct {
	code string
	rate float64
}

func (f stubFormatter) Currency() string { return f.code }

func (f stubFormatter) Format(amountUSD float64) string {
	return fmt.Sprintf("%s %.2f", f.code, amountUSD*f.rate)
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCalculateTable(t *testing.T) {
	tests := []struct {
		model, size string
		price       float64
	}{
		{model.ModelSora2, model.SizePortrait, 0.10},
		{model.ModelSora2, model.SizeLandscape, 0.10},
		{model.ModelSora2Pro, model.SizePortrait, 0.30},
		{model.ModelSora2Pro, model.SizeLandscape, 0.30},
		{model.ModelSora2Pro, model.SizeTallPortrait, 0.50},
		{model.ModelSora2Pro, model.SizeWideLandscape, 0.50},
	}
	for _, tt := range tests {
		for _, seconds := range []string{"4", "8", "12"} {
			v := model.Video{Model: tt.model, Size: tt.size, Seconds: seconds, Status: model.StatusInProgress}
			b := Calculate(v)
			if b == nil {
				t.Fatalf("Calculate(%s, %s) = nil", tt.model, tt.size)
			}
			var s float64
			fmt.Sscan(seconds, &s)
			if !almostEqual(b.EstimatedUSD, tt.price*s) {
				t.Errorf("%s %s %ss: estimated = %v, want %v", tt.model, tt.size, seconds, b.EstimatedUSD, tt.price*s)
			}
			if b.ActualUSD != nil {
				t.Errorf("%s %s: actual should be undetermined while in progress", tt.model, tt.size)
			}
		}
	}
}

func TestCalculateUnknownPair(t *testing.T) {
	if b := Calculate(model.Video{Model: model.ModelSora2, Size: model.SizeWideLandscape, Seconds: "4"}); b != nil {
		t.Errorf("expected nil for sora-2 1792x1024, got %+v", b)
	}
	if b := Calculate(model.Video{Model: "sora-3", Size: model.SizePortrait, Seconds: "4"}); b != nil {
		t.Errorf("expected nil for unknown model, got %+v", b)
	}
}

func TestCalculateQueuedSora2(t *testing.T) {
	b := Calculate(model.Video{Model: model.ModelSora2, Size: model.SizePortrait, Seconds: "4", Status: model.StatusQueued})
	if b == nil {
		t.Fatal("expected a breakdown")
	}
	if !almostEqual(b.EstimatedUSD, 0.40) {
		t.Errorf("estimated = %v, want 0.40", b.EstimatedUSD)
	}
	if b.ActualUSD != nil {
		t.Errorf("actual = %v, want nil", *b.ActualUSD)
	}
}

func TestCalculateCompletedPro(t *testing.T) {
	b := Calculate(model.Video{Model: model.ModelSora2Pro, Size: model.SizeWideLandscape, Seconds: "12", Status: model.StatusCompleted})
	if b == nil {
		t.Fatal("expected a breakdown")
	}
	if !almostEqual(b.EstimatedUSD, 6.00) {
		t.Errorf("estimated = %v, want 6.00", b.EstimatedUSD)
	}
	if b.ActualUSD == nil || !almostEqual(*b.ActualUSD, 6.00) {
		t.Errorf("actual = %v, want 6.00", b.ActualUSD)
	}
}

func TestCalculateFailedCostsNothing(t *testing.T) {
	b := Calculate(model.Video{Model: model.ModelSora2, Size: model.SizeLandscape, Seconds: "8", Status: model.StatusFailed})
	if b == nil || b.ActualUSD == nil || *b.ActualUSD != 0 {
		t.Fatalf("expected actual 0 for failed video, got %+v", b)
	}
	if !almostEqual(b.EstimatedUSD, 0.80) {
		t.Errorf("estimated = %v, want 0.80", b.EstimatedUSD)
	}
}

func TestParseSecondsLeadingNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"8", 8},
		{"8s", 8},
		{" 12 seconds", 12},
		{"8.5", 8.5},
		{".5s", 0.5},
		{"4.", 4},
		{"1e1", 10},
		{"4e", 4},
		{"-4", -4},
		{"abc", 0},
		{"s8", 0},
		{".", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseSeconds(tt.raw); got != tt.want {
			t.Errorf("parseSeconds(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	b := Calculate(model.Video{Model: model.ModelSora2, Size: model.SizePortrait, Seconds: "8 seconds", Status: model.StatusQueued})
	if b == nil || !almostEqual(b.EstimatedUSD, 0.80) {
		t.Errorf("estimate for \"8 seconds\" = %+v, want 0.80", b)
	}
}

func TestCalculateBadDuration(t *testing.T) {
	for _, seconds := range []string{"", "abc", "0", "-4"} {
		queued := Calculate(model.Video{Model: model.ModelSora2, Size: model.SizePortrait, Seconds: seconds, Status: model.StatusQueued})
		if queued == nil || queued.EstimatedUSD != 0 || queued.ActualUSD != nil {
			t.Errorf("seconds=%q queued: got %+v, want zero estimate and nil actual", seconds, queued)
		}
		done := Calculate(model.Video{Model: model.ModelSora2, Size: model.SizePortrait, Seconds: seconds, Status: model.StatusCompleted})
		if done == nil || done.ActualUSD == nil || *done.ActualUSD != 0 {
			t.Errorf("seconds=%q completed: got %+v, want actual 0", seconds, done)
		}
	}
}

func TestBuildSummary(t *testing.T) {
	usd := stubFormatter{code: "USD", rate: 1}
	eur := stubFormatter{code: "EUR", rate: 0.5}

	b := Calculate(model.Video{Model: model.ModelSora2Pro, Size: model.SizeWideLandscape, Seconds: "12", Status: model.StatusCompleted})
	s := BuildSummary(*b, usd, eur)
	if s.PreferredCurrency != "EUR" {
		t.Errorf("preferred currency = %q, want EUR", s.PreferredCurrency)
	}
	if s.EstimatedDisplay.USD != "USD 6.00" || s.EstimatedDisplay.Preferred != "EUR 3.00" {
		t.Errorf("estimated display = %+v", s.EstimatedDisplay)
	}
	if s.ActualDisplay == nil || s.ActualDisplay.Preferred != "EUR 3.00" {
		t.Errorf("actual display = %+v", s.ActualDisplay)
	}

	queued := Calculate(model.Video{Model: model.ModelSora2, Size: model.SizePortrait, Seconds: "4", Status: model.StatusQueued})
	if s := BuildSummary(*queued, usd, eur); s.ActualDisplay != nil {
		t.Errorf("expected no actual display while queued, got %+v", s.ActualDisplay)
	}
}

func TestSummarizeWithoutFormatter(t *testing.T) {
	videos := []model.Video{{ID: "a", Model: model.ModelSora2, Size: model.SizePortrait, Seconds: "4"}}
	got := Summarize(videos, nil, nil)
	if s, ok := got["a"]; !ok || s != nil {
		t.Errorf("expected nil summary entry for a, got %v (present=%v)", s, ok)
	}
}
