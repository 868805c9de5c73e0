package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gunta/skypilot/internal/client"
	"github.com/gunta/skypilot/internal/currency"
	"github.com/gunta/skypilot/internal/model"
	"github.com/gunta/skypilot/internal/pricing"
)

// summarizeOne guards against typed-nil formatters reaching pricing.
func summarizeOne(v model.Video, usd, f *currency.Formatter) *model.CostSummary {
	if usd == nil || f == nil {
		return nil
	}
	return pricing.SummarizeOne(v, usd, f)
}

func summarize(videos []model.Video, usd, f *currency.Formatter) map[string]*model.CostSummary {
	if usd == nil || f == nil {
		return pricing.Summarize(videos, nil, nil)
	}
	return pricing.Summarize(videos, usd, f)
}

func (o *Orchestrator) refreshFlow(fc flowContext, params model.ListParams) (OperationResult, error) {
	type resolved struct {
		res currency.Resolution
		usd *currency.Formatter
	}
	resCh := make(chan resolved, 1)
	go func() {
		var r resolved
		if o.deps.Currency != nil {
			r.res = o.deps.Currency.Resolve(fc.ctx)
			r.usd = o.deps.Currency.USD(fc.ctx)
		}
		resCh <- r
	}()

	videos, err := o.deps.Videos.ListVideos(fc.ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	r := <-resCh

	result := &RefreshResult{
		Videos:    videos,
		Summaries: summarize(videos, r.usd, r.res.Formatter),
		Formatter: r.res.Formatter,
		usd:       r.usd,
	}
	if r.res.Formatter != nil {
		result.Currency = r.res.Formatter.Currency()
	}
	if r.res.Warning != nil {
		log.Printf("[Currency] Warning: %v", r.res.Warning)
		result.CurrencyWarning = r.res.Warning.Error()
	}
	return result, nil
}

// watchPlan is the merged watch part of a create or remix request.
type watchPlan struct {
	watch        bool
	interval     time.Duration
	autoDownload bool
	playSound    bool
	download     *model.DownloadTarget
	defaultAsset model.AssetChoice
	onProgress   model.ProgressFunc
}

func mergeBool(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}

func (o *Orchestrator) createFlow(fc flowContext, req model.CreateRequest) (OperationResult, error) {
	d := fc.defaults
	params := &client.CreateVideoParams{
		Prompt:         req.Prompt,
		Model:          firstNonEmpty(req.Model, d.Model),
		Seconds:        firstNonEmpty(req.Seconds, d.Seconds),
		Size:           firstNonEmpty(req.Size, d.Size),
		InputReference: req.InputReference,
	}
	req.Model, req.Seconds, req.Size = params.Model, params.Seconds, params.Size

	created, err := o.deps.Videos.CreateVideo(fc.ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create video: %w", err)
	}

	plan := watchPlan{
		watch:        req.Watch,
		interval:     firstPositive(req.Interval(), d.PollInterval),
		autoDownload: mergeBool(req.AutoDownload, d.AutoDownload),
		playSound:    mergeBool(req.PlaySound, d.PlaySound),
		download:     req.Download,
		defaultAsset: d.DownloadChoice,
		onProgress:   req.OnProgress,
	}
	out, err := o.follow(fc, *created, model.TrackSourceCreate, plan)
	if err != nil {
		return nil, err
	}
	return &CreateResult{
		Request:        req,
		Initial:        *created,
		Final:          out.final,
		Downloads:      out.downloads,
		WatchCancelled: out.cancelled,
	}, nil
}

func (o *Orchestrator) remixFlow(fc flowContext, req model.RemixRequest) (OperationResult, error) {
	d := fc.defaults
	created, err := o.deps.Videos.RemixVideo(fc.ctx, req.VideoID, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to remix video %s: %w", req.VideoID, err)
	}

	plan := watchPlan{
		watch:        req.Watch,
		interval:     firstPositive(req.Interval(), d.PollInterval),
		autoDownload: mergeBool(req.AutoDownload, d.AutoDownload),
		playSound:    mergeBool(req.PlaySound, d.PlaySound),
		download:     req.Download,
		defaultAsset: d.DownloadChoice,
		onProgress:   req.OnProgress,
	}
	out, err := o.follow(fc, *created, model.TrackSourceRemix, plan)
	if err != nil {
		return nil, err
	}
	return &RemixResult{
		Request:        req,
		Initial:        *created,
		Final:          out.final,
		Downloads:      out.downloads,
		WatchCancelled: out.cancelled,
	}, nil
}

type followed struct {
	final     *model.Video
	downloads *model.DownloadedAssets
	cancelled bool
}

// follow tracks a freshly submitted video and, when asked, waits for it,
// downloads its assets and plays the chime.
func (o *Orchestrator) follow(fc flowContext, initial model.Video, source model.TrackSource, plan watchPlan) (followed, error) {
	o.post(trackStart{video: initial, source: source})
	if plan.onProgress != nil {
		plan.onProgress(initial)
	}
	if !plan.watch {
		return followed{}, nil
	}

	final, err := client.WaitForCompletion(fc.watchCtx, o.deps.Videos, initial.ID, client.PollOptions{
		Interval: plan.interval,
		OnUpdate: func(v model.Video) {
			if plan.onProgress != nil {
				plan.onProgress(v)
			}
			o.post(trackUpdate{video: v})
		},
	})
	if errors.Is(err, client.ErrPollingCancelled) {
		log.Printf("[Orchestrator] Stopped watching video %s", initial.ID)
		return followed{cancelled: true}, nil
	}
	if err != nil {
		return followed{}, fmt.Errorf("failed to watch video %s: %w", initial.ID, err)
	}
	o.post(trackComplete{video: *final})

	out := followed{final: final}
	if final.Status != model.StatusCompleted {
		return out, nil
	}

	if o.deps.Downloader != nil {
		var target *model.DownloadTarget
		switch {
		case plan.download != nil:
			target = plan.download
		case plan.autoDownload:
			target = &model.DownloadTarget{Choice: plan.defaultAsset}
		}
		if target != nil {
			assets, err := o.deps.Downloader.Download(fc.ctx, final.ID, target.Choice, target.Destination)
			if err != nil {
				return followed{}, fmt.Errorf("failed to download video %s: %w", final.ID, err)
			}
			out.downloads = assets
		}
	}

	if plan.playSound && o.deps.Notifier != nil {
		o.deps.Notifier.Play(fc.ctx)
	}
	return out, nil
}

func (o *Orchestrator) downloadFlow(fc flowContext, req model.DownloadRequest) (OperationResult, error) {
	if o.deps.Downloader == nil {
		return nil, errors.New("downloads are not configured")
	}
	assets, err := o.deps.Downloader.Download(fc.ctx, req.VideoID, req.Choice, req.Destination)
	if err != nil {
		return nil, fmt.Errorf("failed to download video %s: %w", req.VideoID, err)
	}
	return &DownloadResult{Request: req, Downloads: *assets}, nil
}

func (o *Orchestrator) deleteFlow(fc flowContext, req model.DeleteRequest) (OperationResult, error) {
	res, err := o.deps.Videos.DeleteVideo(fc.ctx, req.VideoID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete video %s: %w", req.VideoID, err)
	}
	if res.Deleted && o.deps.Downloader != nil {
		if err := o.deps.Downloader.ForgetMirror(fc.ctx, req.VideoID); err != nil {
			log.Printf("[Orchestrator] Warning: failed to remove mirrored assets of %s: %v", req.VideoID, err)
		}
	}
	return &DeleteResult{Request: req, Deleted: res.Deleted, ResponseID: res.ID}, nil
}

func (o *Orchestrator) currencyFlow(fc flowContext) (OperationResult, error) {
	if o.deps.Currency == nil {
		return nil, errors.New("currency is not configured")
	}
	res := o.deps.Currency.Resolve(fc.ctx)
	result := &CurrencyResult{
		Formatter: res.Formatter,
		Currency:  res.Formatter.Currency(),
		Rate:      res.Formatter.Rate(),
		usd:       o.deps.Currency.USD(fc.ctx),
	}
	if res.Warning != nil {
		log.Printf("[Currency] Warning: %v", res.Warning)
		result.Warning = res.Warning.Error()
	}
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
