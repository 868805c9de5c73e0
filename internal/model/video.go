package model

import (
	"fmt"
	"strings"
)

// Video is a remote generation job as last reported by the video service.
// It is never patched locally, only replaced by a newer snapshot.
type Video struct {
	ID                 string      `json:"id"`
	Object             string      `json:"object,omitempty"`
	Model              string      `json:"model"`
	Status             VideoStatus `json:"status"`
	Progress           int         `json:"progress"`
	Prompt             string      `json:"prompt,omitempty"`
	Size               string      `json:"size"`
	Seconds            string      `json:"seconds"`
	Quality            string      `json:"quality,omitempty"`
	CreatedAt          int64       `json:"created_at"`
	CompletedAt        *int64      `json:"completed_at,omitempty"`
	ExpiresAt          *int64      `json:"expires_at,omitempty"`
	RemixedFromVideoID *string     `json:"remixed_from_video_id,omitempty"`
	Error              *VideoError `json:"error,omitempty"`
}

// VideoError describes why the service failed a video.
type VideoError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// VideoPage is one page of the list endpoint.
type VideoPage struct {
	Object  string  `json:"object"`
	Data    []Video `json:"data"`
	FirstID string  `json:"first_id,omitempty"`
	LastID  string  `json:"last_id,omitempty"`
	HasMore bool    `json:"has_more"`
}

// DeleteResult is the service acknowledgement for a delete.
type DeleteResult struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	Deleted bool   `json:"deleted"`
}

// ListParams controls listing. A zero Limit lists everything.
type ListParams struct {
	Limit int    `json:"limit,omitempty" query:"limit" validate:"omitempty,min=1,max=100"`
	Order string `json:"order,omitempty" query:"order" validate:"omitempty,oneof=asc desc"`
}

// ParseStatuses reads a comma separated status filter such as
// "completed,failed". An empty string means no filter.
func ParseStatuses(raw string) ([]VideoStatus, error) {
	var statuses []VideoStatus
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	for _, s := range strings.Split(raw, ",") {
		status := VideoStatus(strings.TrimSpace(s))
		switch status {
		case StatusQueued, StatusInProgress, StatusCompleted, StatusFailed:
			statuses = append(statuses, status)
		default:
			return nil, fmt.Errorf("unknown status %q", s)
		}
	}
	return statuses, nil
}

// FilterByStatus keeps the videos whose status is listed, in order.
func FilterByStatus(videos []Video, statuses []VideoStatus) []Video {
	if len(statuses) == 0 {
		return videos
	}
	out := make([]Video, 0, len(videos))
	for _, v := range videos {
		for _, s := range statuses {
			if v.Status == s {
				out = append(out, v)
				break
			}
		}
	}
	return out
}
