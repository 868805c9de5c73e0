package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gunta/skypilot/internal/export"
	"github.com/gunta/skypilot/internal/model"
	"github.com/gunta/skypilot/internal/store"
)

func runCurrency(args []string) error {
	fs := flag.NewFlagSet("currency", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := context.Background()

	if code := strings.TrimSpace(fs.Arg(0)); code != "" {
		if _, err := a.Settings.SetCurrency(ctx, code); err != nil {
			return err
		}
	}

	result, err := a.Orchestrator.LoadCurrency(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"currency":        result.Currency,
			"base":            a.Currency.Base(),
			"rate":            result.Rate,
			"defaultCurrency": a.Settings.DefaultCurrency(),
			"warning":         result.Warning,
		})
	}

	fmt.Printf("currency: %s\n", titleStyle.Render(result.Currency))
	if result.Currency != a.Currency.Base() {
		fmt.Printf("rate: 1 %s = %s %s\n", a.Currency.Base(), formatRate(result.Rate), result.Currency)
	}
	if result.Warning != "" {
		fmt.Println(errorStyle.Render("warning: " + result.Warning))
	}
	return nil
}

func formatRate(rate float64) string {
	s := fmt.Sprintf("%.6f", rate)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func runLanguage(args []string) error {
	fs := flag.NewFlagSet("language", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := context.Background()

	var lang string
	if code := strings.TrimSpace(fs.Arg(0)); code != "" {
		lang, err = a.Settings.SetLanguage(ctx, code)
	} else {
		lang, err = a.Settings.Language(ctx)
	}
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(map[string]any{
			"language":  lang,
			"languages": store.SupportedLanguages,
		})
	}
	fmt.Printf("language: %s\n", titleStyle.Render(lang))
	fmt.Println(mutedStyle.Render("available: " + strings.Join(store.SupportedLanguages, ", ")))
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	output := fs.String("output", "", "CSV file, directory, or - for stdout (default: ./skypilot_videos_<time>.csv)")
	status := fs.String("status", "", "comma-separated statuses to keep")
	limit := fs.Int("limit", 0, "page size used while walking the remote list")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	statuses, err := model.ParseStatuses(*status)
	if err != nil {
		return err
	}
	params := model.ListParams{Limit: *limit}
	if err := checkRequest(&params); err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := context.Background()

	res, err := a.Orchestrator.Refresh(ctx, params)
	if err != nil {
		return err
	}
	videos := model.FilterByStatus(res.Videos, statuses)
	rows := export.BuildRows(videos, res.Summaries, a.Currency.USD(ctx), res.Formatter, time.Local)

	dest := strings.TrimSpace(*output)
	if dest == "-" {
		return export.Write(os.Stdout, rows)
	}
	if dest == "" {
		dest = export.DefaultPath(".", time.Now())
	} else if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = export.DefaultPath(dest, time.Now())
	}

	path, err := export.ToFile(dest, rows)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d videos to %s\n", len(rows), filepath.Clean(path))
	if res.CurrencyWarning != "" {
		fmt.Println(mutedStyle.Render("currency: " + res.CurrencyWarning))
	}
	return nil
}
