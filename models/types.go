package models

import "time"

// RenderRequest represents the input from a client submitting a render job
type RenderRequest struct {
	AudioPath     string `json:"audio_path" binding:"required"`
	MediaDir      string `json:"media_dir" binding:"required"`
	Mode          string `json:"mode"`           // "quality" or "fast"
	SelectionMode string `json:"selection_mode"` // "sequential" or "random"
	Seed          int64  `json:"seed"`           // 0 = derive from job ID
}

// RenderResponse returns the job ID
type RenderResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// StatusResponse returns current progress
type StatusResponse struct {
	State       string    `json:"state"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"current_step"`
	Warnings    []Warning `json:"warnings,omitempty"`
	VideoURL    *string   `json:"video_url,omitempty"`
	Error       *string   `json:"error,omitempty"`
}

// BatchRequest submits multiple render jobs at once
type BatchRequest struct {
	Jobs []RenderRequest `json:"jobs" binding:"required"`
}

// BatchResponse returns one job ID per submitted request
type BatchResponse struct {
	JobIDs []string `json:"job_ids"`
}

// JobTracker tracks processing status in memory
type JobTracker struct {
	JobID       string
	State       JobState
	Progress    int
	CurrentStep string
	VideoPath   string
	Warnings    []Warning
	Err         error
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
