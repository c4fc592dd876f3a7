package models

import "time"

// AssetKind distinguishes still images from video files
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetVideo AssetKind = "video"
)

// Asset is one validated media file from the inventory
type Asset struct {
	ID       string
	Kind     AssetKind
	Path     string
	Duration float64 // seconds, videos only
}

// ClipSlot is one planned position on the output timeline
type ClipSlot struct {
	Index    int
	Start    float64
	Duration float64
}

// VariationDescriptor parameterizes a visual transform applied to a reused
// asset so repeated appearances read as distinct clips
type VariationDescriptor struct {
	ZoomStart  float64
	ZoomEnd    float64
	PanX       float64
	PanY       float64
	Brightness float64
	FlipH      bool
}

// Assignment binds a slot to an asset, optionally with a variation (image
// reuse) or a segment offset into a longer video
type Assignment struct {
	SlotIndex    int
	Asset        Asset
	SegmentStart float64
	LoopTrim     bool
	Variation    *VariationDescriptor
}

// EncodedClip is the result of encoding one assignment
type EncodedClip struct {
	SlotIndex      int
	Path           string
	ActualDuration float64
	Codec          string
	Fallback       bool
}

// WarningKind classifies non-fatal conditions surfaced to the caller
type WarningKind string

const (
	WarnInsufficientMedia WarningKind = "insufficient_media"
	WarnLoopTrim          WarningKind = "loop_trim"
	WarnHardwareFallback  WarningKind = "hardware_fallback"
	WarnDurationClamped   WarningKind = "duration_clamped"
)

// Warning is a non-fatal condition recorded during processing
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// JobState tracks a job through the render pipeline
type JobState string

const (
	StatePending    JobState = "pending"
	StatePlanning   JobState = "planning"
	StateSelecting  JobState = "selecting"
	StateEncoding   JobState = "encoding"
	StateAssembling JobState = "assembling"
	StateDone       JobState = "done"
	StateFailed     JobState = "failed"
)

// Job is the immutable description of one render
type Job struct {
	ID            string
	AudioPath     string
	MediaDir      string
	OutputPath    string
	Mode          string
	SelectionMode string
	Seed          int64
}

// JobResult summarizes a finished job
type JobResult struct {
	JobID         string
	State         JobState
	Success       bool
	OutputPath    string
	FailureReason string
	Warnings      []Warning
	ClipCount     int
	AudioDuration float64
	StageTimings  map[string]time.Duration
}
