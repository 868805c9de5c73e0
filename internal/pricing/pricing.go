// Package pricing estimates what a video costs to generate.
package pricing

import (
	"strconv"
	"strings"

	"github.com/gunta/skypilot/internal/model"
)

// rates maps model then size to a USD price per second of video.
var rates = map[string]map[string]float64{
	model.ModelSora2: {
		model.SizePortrait:  0.10,
		model.SizeLandscape: 0.10,
	},
	model.ModelSora2Pro: {
		model.SizePortrait:      0.30,
		model.SizeLandscape:     0.30,
		model.SizeTallPortrait:  0.50,
		model.SizeWideLandscape: 0.50,
	},
}

// Formatter renders a USD amount in some display currency.
type Formatter interface {
	Currency() string
	Format(amountUSD float64) string
}

// PricePerSecond returns the USD rate for a model and size.
func PricePerSecond(modelName, size string) (float64, bool) {
	bySize, ok := rates[modelName]
	if !ok {
		return 0, false
	}
	price, ok := bySize[size]
	return price, ok
}

// parseSeconds reads the leading number of raw, so "8", "8s", "8.5" and
// "8 seconds" all parse. Anything without a leading number is zero.
func parseSeconds(raw string) float64 {
	v, err := strconv.ParseFloat(numericPrefix(strings.TrimSpace(raw)), 64)
	if err != nil {
		return 0
	}
	return v
}

// numericPrefix returns the longest prefix of s that is a decimal number
// with an optional sign, fraction and exponent.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		start := j
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j > start {
			i = j
		}
	}
	return s[:i]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Calculate prices a video. It returns nil for an unpriced model/size pair.
func Calculate(v model.Video) *model.CostBreakdown {
	price, ok := PricePerSecond(v.Model, v.Size)
	if !ok {
		return nil
	}

	seconds := parseSeconds(v.Seconds)
	if seconds <= 0 {
		b := &model.CostBreakdown{PricePerSecondUSD: price}
		if v.Status == model.StatusCompleted {
			zero := 0.0
			b.ActualUSD = &zero
		}
		return b
	}

	estimated := price * seconds
	b := &model.CostBreakdown{PricePerSecondUSD: price, EstimatedUSD: estimated}
	switch v.Status {
	case model.StatusCompleted:
		actual := estimated
		b.ActualUSD = &actual
	case model.StatusFailed:
		actual := 0.0
		b.ActualUSD = &actual
	}
	return b
}

// BuildSummary renders a breakdown in USD and through f.
func BuildSummary(b model.CostBreakdown, usd, f Formatter) model.CostSummary {
	summary := model.CostSummary{
		EstimatedUSD: b.EstimatedUSD,
		ActualUSD:    b.ActualUSD,
		EstimatedDisplay: model.CostDisplay{
			USD:       usd.Format(b.EstimatedUSD),
			Preferred: f.Format(b.EstimatedUSD),
		},
		PricePerSecondUSD: b.PricePerSecondUSD,
		PreferredCurrency: f.Currency(),
	}
	if b.ActualUSD != nil {
		summary.ActualDisplay = &model.CostDisplay{
			USD:       usd.Format(*b.ActualUSD),
			Preferred: f.Format(*b.ActualUSD),
		}
	}
	return summary
}

// Summarize prices every video. Entries are nil when the video is unpriced
// or when no formatter is available.
func Summarize(videos []model.Video, usd, f Formatter) map[string]*model.CostSummary {
	out := make(map[string]*model.CostSummary, len(videos))
	for _, v := range videos {
		out[v.ID] = SummarizeOne(v, usd, f)
	}
	return out
}

// SummarizeOne is Summarize for a single video.
func SummarizeOne(v model.Video, usd, f Formatter) *model.CostSummary {
	if f == nil || usd == nil {
		return nil
	}
	b := Calculate(v)
	if b == nil {
		return nil
	}
	s := BuildSummary(*b, usd, f)
	return &s
}
