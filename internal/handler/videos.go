package handler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/gunta/skypilot/internal/client"
	"github.com/gunta/skypilot/internal/currency"
	"github.com/gunta/skypilot/internal/export"
	"github.com/gunta/skypilot/internal/model"
	"github.com/gunta/skypilot/internal/pricing"
	"github.com/gunta/skypilot/internal/service"
	"github.com/gunta/skypilot/pkg/response"
)

type VideoHandler struct {
	orchestrator *service.Orchestrator
	videos       client.VideoService
	currency     *currency.Service
	downloadRoot string
	validator    *validator.Validate
}

// NewVideoHandler serves the video routes. Every file written on behalf of a
// request lands under downloadRoot.
func NewVideoHandler(orch *service.Orchestrator, videos client.VideoService, currencySvc *currency.Service, downloadRoot string, v *validator.Validate) *VideoHandler {
	return &VideoHandler{
		orchestrator: orch,
		videos:       videos,
		currency:     currencySvc,
		downloadRoot: downloadRoot,
		validator:    v,
	}
}

// VideoListResponse is returned by List
type VideoListResponse struct {
	Videos            []model.Video                 `json:"videos"`
	CostSummaries     map[string]*model.CostSummary `json:"costSummaries"`
	PreferredCurrency string                        `json:"preferredCurrency,omitempty"`
	CurrencyError     string                        `json:"currencyError,omitempty"`
}

// VideoResponse is returned by Get
type VideoResponse struct {
	Video       *model.Video       `json:"video"`
	CostSummary *model.CostSummary `json:"costSummary,omitempty"`
}

func (h *VideoHandler) listParams(c *fiber.Ctx) (model.ListParams, []model.VideoStatus, error) {
	var params model.ListParams
	if err := c.QueryParser(&params); err != nil {
		return params, nil, err
	}
	if err := h.validator.Struct(&params); err != nil {
		return params, nil, err
	}

	statuses, err := model.ParseStatuses(c.Query("status"))
	if err != nil {
		return params, nil, err
	}
	return params, statuses, nil
}

// List handles GET /api/videos
func (h *VideoHandler) List(c *fiber.Ctx) error {
	params, statuses, err := h.listParams(c)
	if err != nil {
		return response.ValidationError(c, "Invalid query", formatValidationErrors(err))
	}

	result, err := h.orchestrator.Refresh(c.Context(), params)
	if err != nil {
		return operationError(c, err)
	}

	return response.OK(c, VideoListResponse{
		Videos:            model.FilterByStatus(result.Videos, statuses),
		CostSummaries:     result.Summaries,
		PreferredCurrency: result.Currency,
		CurrencyError:     result.CurrencyWarning,
	})
}

// Get handles GET /api/videos/:id
func (h *VideoHandler) Get(c *fiber.Ctx) error {
	videoID := c.Params("id")
	if videoID == "" {
		return response.ValidationError(c, "Video ID is required", nil)
	}

	video, err := h.videos.RetrieveVideo(c.Context(), videoID)
	if err != nil {
		return operationError(c, err)
	}

	resp := VideoResponse{Video: video}
	if h.currency != nil {
		res := h.currency.Resolve(c.Context())
		resp.CostSummary = summarize(*video, h.currency.USD(c.Context()), res.Formatter)
	}
	return response.OK(c, resp)
}

// Create handles POST /api/videos. With "watch" the job keeps running after
// the response, which carries the freshly submitted video.
func (h *VideoHandler) Create(c *fiber.Ctx) error {
	var req model.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	if req.InputReference != "" {
		return response.ValidationError(c, "Input references are only accepted from the command line", fiber.Map{"InputReference": "unsupported"})
	}
	defaults := h.orchestrator.Snapshot().Defaults
	if err := req.FitResolution(defaults); err != nil {
		return response.ValidationError(c, err.Error(), fiber.Map{"Size": "resolution"})
	}
	if err := h.confineTarget(&req.Download, req.Watch, req.AutoDownload, defaults); err != nil {
		return destinationError(c, err)
	}

	if !req.Watch {
		result, err := h.orchestrator.Create(c.Context(), req)
		if err != nil {
			return operationError(c, err)
		}
		return response.Created(c, result)
	}

	return h.detach(c, func(onProgress model.ProgressFunc) error {
		req.OnProgress = onProgress
		_, err := h.orchestrator.Create(context.Background(), req)
		return err
	})
}

// Remix handles POST /api/videos/:id/remix
func (h *VideoHandler) Remix(c *fiber.Ctx) error {
	var req model.RemixRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	req.VideoID = c.Params("id")

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	if err := h.confineTarget(&req.Download, req.Watch, req.AutoDownload, h.orchestrator.Snapshot().Defaults); err != nil {
		return destinationError(c, err)
	}

	if !req.Watch {
		result, err := h.orchestrator.Remix(c.Context(), req)
		if err != nil {
			return operationError(c, err)
		}
		return response.Created(c, result)
	}

	return h.detach(c, func(onProgress model.ProgressFunc) error {
		req.OnProgress = onProgress
		_, err := h.orchestrator.Remix(context.Background(), req)
		return err
	})
}

// confineTarget keeps the downloads of a request inside the download root.
// A watched job that downloads automatically gets an explicit target so its
// files do not land in the working directory of the server.
func (h *VideoHandler) confineTarget(target **model.DownloadTarget, watch bool, autoDownload *bool, defaults model.Defaults) error {
	if *target == nil {
		auto := defaults.AutoDownload
		if autoDownload != nil {
			auto = *autoDownload
		}
		if !watch || !auto {
			return nil
		}
		*target = &model.DownloadTarget{Choice: defaults.DownloadChoice}
	}
	dest, err := confinePath(h.downloadRoot, (*target).Destination)
	if err != nil {
		return err
	}
	(*target).Destination = dest
	return nil
}

// detach starts a watched operation and answers as soon as the submitted
// video is known. Progress is then pushed over the websocket.
func (h *VideoHandler) detach(c *fiber.Ctx, run func(model.ProgressFunc) error) error {
	first := make(chan model.Video, 1)
	errCh := make(chan error, 1)

	go func() {
		errCh <- run(func(v model.Video) {
			select {
			case first <- v:
			default:
			}
		})
	}()

	select {
	case v := <-first:
		return response.Accepted(c, v)
	case err := <-errCh:
		if err != nil {
			return operationError(c, err)
		}
		select {
		case v := <-first:
			return response.Accepted(c, v)
		default:
			return response.ServiceError(c, "operation finished without a video")
		}
	}
}

// Download handles POST /api/videos/:id/download
func (h *VideoHandler) Download(c *fiber.Ctx) error {
	var req model.DownloadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	req.VideoID = c.Params("id")
	if req.Choice == "" {
		req.Choice = h.orchestrator.Snapshot().Defaults.DownloadChoice
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	dest, err := confinePath(h.downloadRoot, req.Destination)
	if err != nil {
		return destinationError(c, err)
	}
	req.Destination = dest

	result, err := h.orchestrator.Download(c.Context(), req)
	if err != nil {
		return operationError(c, err)
	}
	return response.OK(c, result)
}

// Delete handles DELETE /api/videos/:id
func (h *VideoHandler) Delete(c *fiber.Ctx) error {
	req := model.DeleteRequest{VideoID: c.Params("id")}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Video ID is required", nil)
	}

	result, err := h.orchestrator.Delete(c.Context(), req)
	if err != nil {
		return operationError(c, err)
	}
	return response.OK(c, result)
}

// CancelWatch handles POST /api/videos/watch/cancel
func (h *VideoHandler) CancelWatch(c *fiber.Ctx) error {
	if err := h.orchestrator.CancelPolling(c.Context()); err != nil {
		return operationError(c, err)
	}
	return response.Accepted(c, fiber.Map{"cancelled": true})
}

// Export handles GET /api/videos/export
func (h *VideoHandler) Export(c *fiber.Ctx) error {
	params, statuses, err := h.listParams(c)
	if err != nil {
		return response.ValidationError(c, "Invalid query", formatValidationErrors(err))
	}

	result, err := h.orchestrator.Refresh(c.Context(), params)
	if err != nil {
		return operationError(c, err)
	}

	var usd *currency.Formatter
	if h.currency != nil {
		usd = h.currency.USD(c.Context())
	}
	rows := export.BuildRows(model.FilterByStatus(result.Videos, statuses), result.Summaries, usd, result.Formatter, time.Local)

	filename := filepath.Base(export.DefaultPath(".", time.Now()))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return export.Write(c, rows)
}

func summarize(v model.Video, usd, f *currency.Formatter) *model.CostSummary {
	if usd == nil || f == nil {
		return nil
	}
	return pricing.SummarizeOne(v, usd, f)
}
