package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gunta/skypilot/internal/model"
)

// DefaultPollInterval is used when PollOptions.Interval is not set.
const DefaultPollInterval = 3 * time.Second

// ErrPollingCancelled means the caller stopped waiting. It says nothing about
// the video itself, which keeps running remotely.
var ErrPollingCancelled = errors.New("polling cancelled")

// VideoRetriever is the slice of VideoService the poller needs
type VideoRetriever interface {
	RetrieveVideo(ctx context.Context, videoID string) (*model.Video, error)
}

// PollOptions configures WaitForCompletion
type PollOptions struct {
	Interval time.Duration
	OnUpdate func(model.Video)
}

// WaitForCompletion reports the current snapshot immediately and then keeps
// polling at a fixed interval until the video is completed or failed.
func WaitForCompletion(ctx context.Context, svc VideoRetriever, videoID string, opts PollOptions) (*model.Video, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	attempt := 1
	video, err := svc.RetrieveVideo(ctx, videoID)
	if err != nil {
		return nil, pollError(ctx, videoID, err)
	}
	report(opts, attempt, video)

	for !video.Status.IsTerminal() {
		if ctx.Err() != nil {
			return nil, cancelled(ctx, videoID)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, cancelled(ctx, videoID)
		case <-timer.C:
		}

		if ctx.Err() != nil {
			return nil, cancelled(ctx, videoID)
		}

		attempt++
		video, err = svc.RetrieveVideo(ctx, videoID)
		if err != nil {
			return nil, pollError(ctx, videoID, err)
		}
		report(opts, attempt, video)
	}

	return video, nil
}

func report(opts PollOptions, attempt int, video *model.Video) {
	log.Printf("[OpenAI API] Poll video #%d (id=%s): status %s (%d%%)", attempt, video.ID, video.Status, video.Progress)
	if opts.OnUpdate != nil {
		opts.OnUpdate(*video)
	}
}

func pollError(ctx context.Context, videoID string, err error) error {
	if ctx.Err() != nil {
		return cancelled(ctx, videoID)
	}
	return err
}

func cancelled(ctx context.Context, videoID string) error {
	log.Printf("[OpenAI API] Poll video (id=%s): context cancelled", videoID)
	return fmt.Errorf("%w: %w", ErrPollingCancelled, ctx.Err())
}
