package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gunta/skypilot/internal/currency"
	"github.com/gunta/skypilot/internal/model"
	"github.com/gunta/skypilot/internal/pricing"
)

var Headers = []string{
	"id",
	"status",
	"status_label",
	"progress_percent",
	"model",
	"duration_seconds",
	"resolution",
	"created_at_iso",
	"created_at_local",
	"estimated_cost_preferred",
	"estimated_cost_usd",
	"actual_cost_preferred",
	"actual_cost_usd",
	"preferred_currency",
}

const localLayout = "2006-01-02 15:04:05"

// Row is one exported video. Cost columns are empty when the video has no
// known price.
type Row struct {
	ID                 string
	Status             model.VideoStatus
	StatusLabel        string
	Progress           float64
	Model              string
	DurationSeconds    float64
	Resolution         string
	CreatedAtISO       string
	CreatedAtLocal     string
	EstimatedPreferred string
	EstimatedUSD       string
	ActualPreferred    string
	ActualUSD          string
	PreferredCurrency  string
}

func (r Row) record() []string {
	return []string{
		r.ID,
		string(r.Status),
		r.StatusLabel,
		strconv.FormatFloat(r.Progress, 'f', -1, 64),
		r.Model,
		strconv.FormatFloat(r.DurationSeconds, 'f', -1, 64),
		r.Resolution,
		r.CreatedAtISO,
		r.CreatedAtLocal,
		r.EstimatedPreferred,
		r.EstimatedUSD,
		r.ActualPreferred,
		r.ActualUSD,
		r.PreferredCurrency,
	}
}

// BuildRows pairs videos with their summaries. A missing summary is computed
// on the fly when formatters are available.
func BuildRows(videos []model.Video, summaries map[string]*model.CostSummary, usd, preferred *currency.Formatter, loc *time.Location) []Row {
	if loc == nil {
		loc = time.Local
	}
	rows := make([]Row, 0, len(videos))
	for _, v := range videos {
		summary := summaries[v.ID]
		if summary == nil && usd != nil && preferred != nil {
			summary = pricing.SummarizeOne(v, usd, preferred)
		}

		created := time.Unix(v.CreatedAt, 0)
		seconds, _ := strconv.ParseFloat(v.Seconds, 64)
		row := Row{
			ID:              v.ID,
			Status:          v.Status,
			StatusLabel:     v.Status.Label(),
			Progress:        float64(v.Progress),
			Model:           v.Model,
			DurationSeconds: seconds,
			Resolution:      v.Size,
			CreatedAtISO:    created.UTC().Format("2006-01-02T15:04:05.000Z"),
			CreatedAtLocal:  created.In(loc).Format(localLayout),
		}
		if preferred != nil {
			row.PreferredCurrency = preferred.Currency()
		}
		if summary != nil {
			row.EstimatedPreferred = summary.EstimatedDisplay.Preferred
			row.EstimatedUSD = summary.EstimatedDisplay.USD
			if summary.ActualDisplay != nil {
				row.ActualPreferred = summary.ActualDisplay.Preferred
				row.ActualUSD = summary.ActualDisplay.USD
			}
			row.PreferredCurrency = summary.PreferredCurrency
		}
		rows = append(rows, row)
	}
	return rows
}

// Write serialises rows with a header line.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DefaultPath names an export file after the current local time.
func DefaultPath(dir string, now time.Time) string {
	name := fmt.Sprintf("skypilot_videos_%s.csv", now.Format("20060102_150405"))
	path, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return filepath.Join(dir, name)
	}
	return path
}

// ToFile writes rows to destination, or to DefaultPath in the working
// directory when destination is empty. It returns the absolute path written.
func ToFile(destination string, rows []Row) (string, error) {
	path := destination
	if path == "" {
		path = DefaultPath(".", time.Now())
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve export path: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	if err := Write(f, rows); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}
	return path, nil
}
