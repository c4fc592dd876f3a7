package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"math/rand"
	"path/filepath"
	"time"

	"clipforge/config"
	"clipforge/models"
	"clipforge/utils"
)

// ProgressFunc receives serialized progress updates during a run
type ProgressFunc func(state models.JobState, step string, percent int)

// Engine drives one job through the render pipeline:
// pending -> planning -> selecting -> encoding -> assembling -> done|failed
type Engine struct {
	cfg    *config.Config
	runner utils.Runner
	codecs *utils.CodecPool
}

// NewEngine creates a render engine
func NewEngine(cfg *config.Config, runner utils.Runner, codecs *utils.CodecPool) *Engine {
	return &Engine{
		cfg:    cfg,
		runner: runner,
		codecs: codecs,
	}
}

// Run executes one job to completion. Failures are reported in the result,
// never panicked; temp files are cleaned on every path
func (e *Engine) Run(ctx context.Context, job models.Job, progress ProgressFunc) models.JobResult {
	result := models.JobResult{
		JobID:        job.ID,
		State:        models.StatePending,
		StageTimings: make(map[string]time.Duration),
	}

	report := func(state models.JobState, step string, pct int) {
		result.State = state
		if progress != nil {
			progress(state, step, pct)
		}
		log.Printf("[Job %s] %s: %s (%d%%)", job.ID, state, step, pct)
	}

	fail := func(reason error) models.JobResult {
		log.Printf("[Job %s] FAILED: %v", job.ID, reason)
		result.State = models.StateFailed
		result.Success = false
		result.FailureReason = reason.Error()
		if progress != nil {
			progress(models.StateFailed, reason.Error(), 100)
		}
		return result
	}

	// Validation
	if !utils.FileExists(job.AudioPath) {
		return fail(fmt.Errorf("audio file not found: %s", job.AudioPath))
	}

	audioDuration, err := e.runner.Probe(job.AudioPath)
	if err != nil {
		return fail(fmt.Errorf("failed to probe audio: %w", err))
	}
	result.AudioDuration = audioDuration

	if err := e.codecs.Detect(ctx, e.runner); err != nil {
		return fail(fmt.Errorf("encoder capability detection failed: %w", err))
	}
	if !e.codecs.SoftwareAvailable() {
		return fail(fmt.Errorf("%w: %s missing from ffmpeg build", ErrEncoderUnavailable, e.codecs.Software()))
	}

	jobDir, err := utils.CreateTempDir(e.cfg.TempDir, job.ID)
	if err != nil {
		return fail(fmt.Errorf("failed to create temp dir: %w", err))
	}
	defer func() {
		if err := utils.CleanupJobFiles(e.cfg.TempDir, job.ID); err != nil {
			log.Printf("[Job %s] cleanup failed: %v", job.ID, err)
		}
	}()

	seed := job.Seed
	if seed == 0 {
		seed = deriveSeed(job.ID)
	}
	rng := rand.New(rand.NewSource(seed))

	// Planning
	report(models.StatePlanning, "Partitioning audio into clip slots", 10)
	planStart := time.Now()

	planner := NewPlanner(e.cfg.MinClipDuration, e.cfg.MaxClipDuration, e.cfg.DurationJitter, job.Mode)
	slots, err := planner.Plan(audioDuration, rng)
	if err != nil {
		return fail(fmt.Errorf("planning: %w", err))
	}
	result.StageTimings["planning"] = time.Since(planStart)
	result.ClipCount = len(slots)
	log.Printf("[Job %s] Planned %d slots for %s of audio", job.ID, len(slots), utils.FormatTimecode(audioDuration))

	// Selection
	report(models.StateSelecting, fmt.Sprintf("Assigning media to %d slots", len(slots)), 25)
	selectStart := time.Now()

	assets, err := NewInventory(e.runner).Scan(job.MediaDir)
	if err != nil {
		return fail(fmt.Errorf("inventory: %w", err))
	}

	variation := NewVariationEngine(VariationParams{
		ZoomMin:         e.cfg.ZoomMin,
		ZoomMax:         e.cfg.ZoomMax,
		PanAmount:       e.cfg.PanAmount,
		BrightnessDelta: e.cfg.BrightnessDelta,
		FlipProbability: e.cfg.FlipProbability,
	})
	selector := NewSelector(SelectorOptions{
		Mode:            job.SelectionMode,
		AntiConsecutive: e.cfg.AntiConsecutive,
		MinMediaFiles:   e.cfg.MinMediaFiles,
	}, variation)

	assignments, warnings, err := selector.Select(slots, assets, rng)
	if err != nil {
		return fail(fmt.Errorf("selection: %w", err))
	}
	result.Warnings = append(result.Warnings, warnings...)
	result.StageTimings["selecting"] = time.Since(selectStart)

	// Encoding
	report(models.StateEncoding, fmt.Sprintf("Encoding %d clips", len(assignments)), 35)
	encodeStart := time.Now()

	width, height, err := utils.ParseResolution(e.cfg.VideoResolution)
	if err != nil {
		return fail(err)
	}

	encoder := NewEncoder(e.runner, e.codecs, EncoderSettings{
		Width:       width,
		Height:      height,
		FPS:         e.cfg.VideoFPS,
		CRF:         e.cfg.VideoCRF,
		Preset:      e.cfg.VideoPreset,
		ClipTimeout: time.Duration(e.cfg.ClipTimeoutSec) * time.Second,
		MaxWorkers:  e.cfg.MaxWorkers,
	}, filepath.Join(jobDir, "clips"))

	clips, err := encoder.EncodeAll(ctx, assignments, slots, func(done, total int) {
		pct := 35 + int(float64(done)/float64(total)*50)
		report(models.StateEncoding, fmt.Sprintf("Encoded clip %d/%d", done, total), pct)
	})
	result.Warnings = append(result.Warnings, encoder.Warnings()...)
	if err != nil {
		return fail(fmt.Errorf("encoding: %w", err))
	}
	result.StageTimings["encoding"] = time.Since(encodeStart)

	// Assembly
	report(models.StateAssembling, "Concatenating clips and muxing audio", 90)
	assembleStart := time.Now()

	assembler := NewAssembler(e.runner, e.cfg.FrameDuration(), e.cfg.VideoCRF, e.cfg.VideoPreset,
		e.cfg.AudioBitrate, time.Duration(e.cfg.AssembleTimeoutSec)*time.Second)

	asmWarnings, err := assembler.Assemble(ctx, clips, job.AudioPath, filepath.Join(jobDir, "output"), job.OutputPath)
	result.Warnings = append(result.Warnings, asmWarnings...)
	if err != nil {
		return fail(fmt.Errorf("assembly: %w", err))
	}
	result.StageTimings["assembling"] = time.Since(assembleStart)

	report(models.StateDone, "Complete", 100)
	result.State = models.StateDone
	result.Success = true
	result.OutputPath = job.OutputPath

	if size, err := utils.GetFileSize(job.OutputPath); err == nil {
		log.Printf("[Job %s] Wrote %s (%.1f MB)", job.ID, job.OutputPath, float64(size)/(1024*1024))
	}

	return result
}

// RunBatch processes jobs in order. A failed job never aborts its siblings
func (e *Engine) RunBatch(ctx context.Context, jobs []models.Job, progress func(jobID string, state models.JobState, step string, percent int)) []models.JobResult {
	results := make([]models.JobResult, 0, len(jobs))

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}

		var pf ProgressFunc
		if progress != nil {
			id := job.ID
			pf = func(state models.JobState, step string, pct int) {
				progress(id, state, step, pct)
			}
		}

		results = append(results, e.Run(ctx, job, pf))
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	log.Printf("[batch] %d/%d jobs succeeded", succeeded, len(results))

	return results
}

// deriveSeed hashes a job ID into a deterministic rng seed
func deriveSeed(jobID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(jobID))
	return int64(h.Sum64())
}
