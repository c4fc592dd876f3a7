package services

import "errors"

// Sentinel errors for the render pipeline. Callers classify failures with
// errors.Is; wrapped messages carry the diagnostic detail.
var (
	// ErrInvalidRange indicates a nonsensical clip duration range
	ErrInvalidRange = errors.New("invalid clip duration range")

	// ErrInfeasible indicates the audio is too short for even one minimum
	// duration clip
	ErrInfeasible = errors.New("audio shorter than minimum clip duration")

	// ErrPlanning indicates the planner could not converge on a slot
	// partition within its iteration bound
	ErrPlanning = errors.New("duration planning failed to converge")

	// ErrEmptyInventory indicates no usable media assets were found
	ErrEmptyInventory = errors.New("media inventory is empty")

	// ErrEncoderUnavailable indicates the requested codec is not present
	// in the local ffmpeg build
	ErrEncoderUnavailable = errors.New("encoder unavailable")

	// ErrEncodeFailed indicates a clip encode failed after fallback
	ErrEncodeFailed = errors.New("clip encode failed")

	// ErrAssembly indicates concatenation, sync correction, or muxing failed
	ErrAssembly = errors.New("assembly failed")
)
