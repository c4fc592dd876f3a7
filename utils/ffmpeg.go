package utils

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner abstracts the ffmpeg/ffprobe process boundary so the encode and
// assembly paths can be exercised in tests without the binaries installed
type Runner interface {
	// Run executes ffmpeg with the given arguments, returning captured
	// stderr alongside any error
	Run(ctx context.Context, args []string) (string, error)
	// Probe returns the container duration of a media file in seconds
	Probe(path string) (float64, error)
	// Encoders returns the raw output of `ffmpeg -encoders`
	Encoders(ctx context.Context) (string, error)
}

// ExecRunner drives the real ffmpeg and ffprobe binaries on PATH
type ExecRunner struct{}

// Run executes an FFmpeg command
func (ExecRunner) Run(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return stderr.String(), fmt.Errorf("ffmpeg error: %w, stderr: %s", err, tailLines(stderr.String(), 6))
	}

	return stderr.String(), nil
}

// Probe returns the duration of a media file in seconds
func (ExecRunner) Probe(path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe error: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return duration, nil
}

// Encoders lists the encoders the local ffmpeg build supports
func (ExecRunner) Encoders(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -encoders failed: %w", err)
	}
	return string(output), nil
}

// tailLines keeps the last n lines of ffmpeg stderr, which is where the
// actionable failure message lives
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// HardwareFailureSignatures are stderr fragments that indicate a hardware
// encoder initialized but could not be used on this machine
var HardwareFailureSignatures = []string{
	"Cannot load",
	"No capable devices found",
	"Device creation failed",
	"InitializeEncoder failed",
	"Failed to initialise",
	"Error while opening encoder",
}

// IsHardwareFailure reports whether ffmpeg stderr matches a known hardware
// encoder failure, as opposed to a bad input or filter error
func IsHardwareFailure(stderr string) bool {
	for _, sig := range HardwareFailureSignatures {
		if strings.Contains(stderr, sig) {
			return true
		}
	}
	return false
}

// ParseResolution splits "1920x1080" into width and height
func ParseResolution(res string) (int, int, error) {
	parts := strings.SplitN(res, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid resolution %q", res)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution width: %w", err)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution height: %w", err)
	}
	return w, h, nil
}
