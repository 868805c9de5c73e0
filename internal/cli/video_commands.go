package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/gunta/skypilot/internal/app"
	"github.com/gunta/skypilot/internal/model"
	"github.com/gunta/skypilot/internal/pricing"
)

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	status := fs.String("status", "", "comma-separated statuses to keep (queued,in_progress,completed,failed)")
	limit := fs.Int("limit", 0, "page size used while walking the remote list")
	order := fs.String("order", "", "asc or desc")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	statuses, err := model.ParseStatuses(*status)
	if err != nil {
		return err
	}
	params := model.ListParams{Limit: *limit, Order: strings.TrimSpace(*order)}
	if err := checkRequest(&params); err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Orchestrator.Refresh(context.Background(), params)
	if err != nil {
		return err
	}
	videos := model.FilterByStatus(res.Videos, statuses)

	if *jsonOut {
		return printJSON(map[string]any{
			"videos":            videos,
			"costSummaries":     res.Summaries,
			"preferredCurrency": res.Currency,
			"currencyError":     res.CurrencyWarning,
		})
	}

	if len(videos) == 0 {
		fmt.Println(mutedStyle.Render("no videos"))
	} else {
		printVideoTable(videos, res.Summaries)
	}
	if res.CurrencyWarning != "" {
		fmt.Println(mutedStyle.Render("currency: " + res.CurrencyWarning))
	}
	return nil
}

func printVideoTable(videos []model.Video, summaries map[string]*model.CostSummary) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("%-28s %-12s %-11s %-10s %4s %5s  %-14s %-14s %s",
		"ID", "STATUS", "MODEL", "SIZE", "SEC", "PROG", "ESTIMATED", "ACTUAL", "PROMPT")))
	for _, v := range videos {
		estimated, actual := "-", "-"
		if s := summaries[v.ID]; s != nil {
			estimated = s.EstimatedDisplay.Preferred
			if s.ActualDisplay != nil {
				actual = s.ActualDisplay.Preferred
			}
		}
		status := statusStyle(v.Status).Render(fmt.Sprintf("%-12s", v.Status.Label()))
		fmt.Printf("%-28s %s %-11s %-10s %4s %4d%%  %-14s %-14s %s\n",
			v.ID, status, v.Model, v.Size, v.Seconds, v.Progress, estimated, actual, truncate(v.Prompt, 40))
	}
}

func runRetrieve(args []string) error {
	fs := flag.NewFlagSet("retrieve", flag.ContinueOnError)
	id := fs.String("id", "", "video id")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	videoID, err := requireID(*id, fs.Args())
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	video, err := a.Videos.RetrieveVideo(ctx, videoID)
	if err != nil {
		return err
	}
	summary := costSummary(ctx, a, *video)

	if *jsonOut {
		return printJSON(map[string]any{
			"video":       video,
			"costSummary": summary,
		})
	}
	printVideo(*video, summary)
	return nil
}

func printVideo(v model.Video, summary *model.CostSummary) {
	fmt.Println(titleStyle.Render(v.ID))
	fmt.Printf("status:   %s (%d%%)\n", statusStyle(v.Status).Render(v.Status.Label()), v.Progress)
	fmt.Printf("model:    %s\n", v.Model)
	fmt.Printf("size:     %s\n", v.Size)
	fmt.Printf("seconds:  %s\n", v.Seconds)
	if v.CreatedAt > 0 {
		fmt.Printf("created:  %s\n", time.Unix(v.CreatedAt, 0).Local().Format("2006-01-02 15:04:05"))
	}
	if v.CompletedAt != nil {
		fmt.Printf("finished: %s\n", time.Unix(*v.CompletedAt, 0).Local().Format("2006-01-02 15:04:05"))
	}
	if v.RemixedFromVideoID != nil {
		fmt.Printf("remix of: %s\n", *v.RemixedFromVideoID)
	}
	if v.Prompt != "" {
		fmt.Printf("prompt:   %s\n", v.Prompt)
	}
	if summary != nil {
		fmt.Printf("estimate: %s (%s)\n", summary.EstimatedDisplay.Preferred, summary.EstimatedDisplay.USD)
		if summary.ActualDisplay != nil {
			fmt.Printf("actual:   %s (%s)\n", summary.ActualDisplay.Preferred, summary.ActualDisplay.USD)
		}
	}
	if v.Error != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("error:    %s: %s", v.Error.Code, v.Error.Message)))
	}
}

// costSummary prices a single video in the preferred currency.
func costSummary(ctx context.Context, a *app.App, v model.Video) *model.CostSummary {
	res := a.Currency.Resolve(ctx)
	if res.Formatter == nil {
		return nil
	}
	return pricing.SummarizeOne(v, a.Currency.USD(ctx), res.Formatter)
}

// watchFlags are shared by create and remix.
type watchFlags struct {
	watch      *bool
	interval   *time.Duration
	download   *string
	output     *string
	noDownload *bool
	noSound    *bool
}

func bindWatchFlags(fs *flag.FlagSet) watchFlags {
	return watchFlags{
		watch:      fs.Bool("watch", false, "poll until the video finishes"),
		interval:   fs.Duration("interval", 0, "poll interval (default from settings)"),
		download:   fs.String("download", "", "assets to fetch when done (implies --watch)"),
		output:     fs.String("output", "", "download destination directory (implies --watch)"),
		noDownload: fs.Bool("no-download", false, "skip the automatic download"),
		noSound:    fs.Bool("no-sound", false, "skip the completion chime"),
	}
}

type watchOptions struct {
	watch        bool
	interval     time.Duration
	autoDownload *bool
	playSound    *bool
	download     *model.DownloadTarget
}

func (w watchFlags) resolve() (watchOptions, error) {
	opts := watchOptions{
		watch:    *w.watch,
		interval: *w.interval,
	}
	if opts.interval != 0 && opts.interval < model.MinPollInterval {
		return opts, fmt.Errorf("--interval must be at least %s", model.MinPollInterval)
	}
	choice := model.AssetChoice(strings.TrimSpace(*w.download))
	output := strings.TrimSpace(*w.output)
	if choice != "" && !choice.IsValid() {
		return opts, fmt.Errorf("invalid --download %q", choice)
	}
	if *w.noDownload && (choice != "" || output != "") {
		return opts, errors.New("--no-download cannot be combined with --download or --output")
	}
	if choice != "" || output != "" {
		opts.watch = true
		opts.download = &model.DownloadTarget{Choice: choice, Destination: output}
	}
	if *w.noDownload {
		off := false
		opts.autoDownload = &off
	}
	if *w.noSound {
		off := false
		opts.playSound = &off
	}
	return opts, nil
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	prompt := fs.String("prompt", "", "what the video should show")
	modelName := fs.String("model", "", "sora-2 or sora-2-pro (default from settings)")
	size := fs.String("size", "", "resolution WxH (default from settings)")
	seconds := fs.String("seconds", "", "duration: 4, 8 or 12 (default from settings)")
	input := fs.String("input", "", "reference image or video file")
	wf := bindWatchFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	text := strings.TrimSpace(*prompt)
	if text == "" {
		text = strings.TrimSpace(strings.Join(fs.Args(), " "))
	}
	opts, err := wf.resolve()
	if err != nil {
		return err
	}
	req := model.CreateRequest{
		Prompt:         text,
		Model:          strings.TrimSpace(*modelName),
		Size:           strings.TrimSpace(*size),
		Seconds:        strings.TrimSpace(*seconds),
		InputReference: strings.TrimSpace(*input),
		Watch:          opts.watch,
		PollInterval:   opts.interval,
		AutoDownload:   opts.autoDownload,
		PlaySound:      opts.playSound,
		Download:       opts.download,
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	defaults := a.Orchestrator.Snapshot().Defaults
	if req.Download != nil && req.Download.Choice == "" {
		req.Download.Choice = defaults.DownloadChoice
	}
	if err := checkRequest(&req); err != nil {
		return err
	}
	if err := req.FitResolution(defaults); err != nil {
		return err
	}

	var display watchDisplay
	if req.Watch && !*jsonOut {
		display = newWatchDisplay(func() { _ = a.Orchestrator.CancelPolling(context.Background()) })
		req.OnProgress = display.Update
	}
	stop := stopOnInterrupt(a)
	result, err := a.Orchestrator.Create(context.Background(), req)
	stop()
	if display != nil {
		display.Done()
	}
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(result)
	}
	printSubmitted(context.Background(), a, "created", result.Initial, result.Final, result.Downloads, result.WatchCancelled)
	return nil
}

func runRemix(args []string) error {
	fs := flag.NewFlagSet("remix", flag.ContinueOnError)
	id := fs.String("id", "", "video id to remix")
	prompt := fs.String("prompt", "", "what to change")
	wf := bindWatchFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	videoID, err := requireID(*id, rest)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(*prompt)
	if text == "" {
		if *id == "" && len(rest) > 0 {
			rest = rest[1:]
		}
		text = strings.TrimSpace(strings.Join(rest, " "))
	}
	opts, err := wf.resolve()
	if err != nil {
		return err
	}
	req := model.RemixRequest{
		VideoID:      videoID,
		Prompt:       text,
		Watch:        opts.watch,
		PollInterval: opts.interval,
		AutoDownload: opts.autoDownload,
		PlaySound:    opts.playSound,
		Download:     opts.download,
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if req.Download != nil && req.Download.Choice == "" {
		req.Download.Choice = a.Orchestrator.Snapshot().Defaults.DownloadChoice
	}
	if err := checkRequest(&req); err != nil {
		return err
	}

	var display watchDisplay
	if req.Watch && !*jsonOut {
		display = newWatchDisplay(func() { _ = a.Orchestrator.CancelPolling(context.Background()) })
		req.OnProgress = display.Update
	}
	stop := stopOnInterrupt(a)
	result, err := a.Orchestrator.Remix(context.Background(), req)
	stop()
	if display != nil {
		display.Done()
	}
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(result)
	}
	printSubmitted(context.Background(), a, "remixed", result.Initial, result.Final, result.Downloads, result.WatchCancelled)
	return nil
}

func printSubmitted(ctx context.Context, a *app.App, verb string, initial model.Video, final *model.Video, downloads *model.DownloadedAssets, cancelled bool) {
	fmt.Printf("%s %s (%s, %s, %ss)\n", verb, titleStyle.Render(initial.ID), initial.Model, initial.Size, initial.Seconds)
	latest := initial
	if final != nil {
		latest = *final
	}
	if s := costSummary(ctx, a, latest); s != nil {
		line := "estimate: " + s.EstimatedDisplay.Preferred
		if s.ActualDisplay != nil {
			line = "cost: " + s.ActualDisplay.Preferred
		}
		fmt.Println(mutedStyle.Render(line))
	}
	switch {
	case cancelled:
		fmt.Println(busyStyle.Render("stopped watching; the job keeps running remotely"))
	case final != nil:
		fmt.Printf("status: %s\n", statusStyle(final.Status).Render(final.Status.Label()))
		if final.Error != nil {
			fmt.Println(errorStyle.Render(final.Error.Message))
		}
	}
	printDownloads(downloads)
}

func printDownloads(downloads *model.DownloadedAssets) {
	if downloads == nil {
		return
	}
	for _, e := range downloads.Entries {
		line := fmt.Sprintf("  %-11s %s", e.Variant, e.Path)
		if e.MirrorURL != "" {
			line += mutedStyle.Render("  " + e.MirrorURL)
		}
		fmt.Println(line)
	}
}

func runDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	id := fs.String("id", "", "video id")
	choice := fs.String("choice", "", "video, thumbnail, spritesheet, video_and_thumbnail or all (default from settings)")
	output := fs.String("output", "", "destination directory (default: current directory)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	videoID, err := requireID(*id, fs.Args())
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	req := model.DownloadRequest{
		VideoID:     videoID,
		Choice:      model.AssetChoice(strings.TrimSpace(*choice)),
		Destination: strings.TrimSpace(*output),
	}
	if req.Choice == "" {
		req.Choice = a.Orchestrator.Snapshot().Defaults.DownloadChoice
	}
	if err := checkRequest(&req); err != nil {
		return err
	}

	result, err := a.Orchestrator.Download(context.Background(), req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(result)
	}
	fmt.Printf("downloaded %s (%s)\n", titleStyle.Render(videoID), result.Downloads.Choice)
	printDownloads(&result.Downloads)
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.String("id", "", "video id")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	videoID, err := requireID(*id, fs.Args())
	if err != nil {
		return err
	}

	if !*yes {
		ok, err := promptConfirm(fmt.Sprintf("Delete %s? [y/N]: ", videoID))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Orchestrator.Delete(context.Background(), model.DeleteRequest{VideoID: videoID})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(result)
	}
	if !result.Deleted {
		return fmt.Errorf("%s was not deleted by the service", videoID)
	}
	fmt.Printf("deleted %s\n", videoID)
	return nil
}
