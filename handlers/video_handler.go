package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clipforge/config"
	"clipforge/models"
	"clipforge/services"
	"clipforge/store"
	"clipforge/utils"
)

// VideoHandler handles render job requests
type VideoHandler struct {
	cfg    *config.Config
	engine *services.Engine
	codecs *utils.CodecPool
	store  *store.Store

	// In-memory job tracking
	jobs    map[string]*models.JobTracker
	jobsMux sync.RWMutex
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(cfg *config.Config, db *store.Store) *VideoHandler {
	codecs := utils.NewCodecPool(cfg.HardwareEncoders, cfg.SoftwareEncoder)
	engine := services.NewEngine(cfg, utils.ExecRunner{}, codecs)

	return &VideoHandler{
		cfg:    cfg,
		engine: engine,
		codecs: codecs,
		store:  db,
		jobs:   make(map[string]*models.JobTracker),
	}
}

// Render handles POST /api/render
func (h *VideoHandler) Render(c *gin.Context) {
	var req models.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	job, err := h.buildJob(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.track(job.ID)
	go h.process(job)

	c.JSON(http.StatusOK, models.RenderResponse{
		JobID:  job.ID,
		Status: string(models.StatePending),
	})
}

// RenderBatch handles POST /api/batch
func (h *VideoHandler) RenderBatch(c *gin.Context) {
	var req models.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if len(req.Jobs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one job is required"})
		return
	}

	// Validate the whole batch before tracking anything, so a rejected
	// request leaves no permanently-pending trackers behind
	jobs := make([]models.Job, 0, len(req.Jobs))
	ids := make([]string, 0, len(req.Jobs))
	for i, r := range req.Jobs {
		job, err := h.buildJob(r)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("job %d: %s", i, err.Error())})
			return
		}
		jobs = append(jobs, job)
		ids = append(ids, job.ID)
	}
	for _, id := range ids {
		h.track(id)
	}

	go func() {
		results := h.engine.RunBatch(context.Background(), jobs, func(jobID string, state models.JobState, step string, pct int) {
			h.updateProgress(jobID, state, step, pct)
		})
		for _, result := range results {
			h.finish(result)
		}
	}()

	c.JSON(http.StatusOK, models.BatchResponse{JobIDs: ids})
}

// buildJob validates a request into an immutable job description
func (h *VideoHandler) buildJob(req models.RenderRequest) (models.Job, error) {
	if !utils.FileExists(req.AudioPath) {
		return models.Job{}, fmt.Errorf("audio file not found: %s", req.AudioPath)
	}
	if info, err := os.Stat(req.MediaDir); err != nil || !info.IsDir() {
		return models.Job{}, fmt.Errorf("media directory not found: %s", req.MediaDir)
	}

	mode := req.Mode
	if mode == "" {
		mode = h.cfg.Mode
	}
	if mode != "quality" && mode != "fast" {
		return models.Job{}, fmt.Errorf("mode must be 'quality' or 'fast'")
	}

	selectionMode := req.SelectionMode
	if selectionMode == "" {
		selectionMode = h.cfg.SelectionMode
	}
	if selectionMode != "sequential" && selectionMode != "random" {
		return models.Job{}, fmt.Errorf("selection_mode must be 'sequential' or 'random'")
	}

	jobID := uuid.New().String()
	outputDir := filepath.Join(h.cfg.TempDir, "outputs")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return models.Job{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	return models.Job{
		ID:            jobID,
		AudioPath:     req.AudioPath,
		MediaDir:      req.MediaDir,
		OutputPath:    filepath.Join(outputDir, jobID+".mp4"),
		Mode:          mode,
		SelectionMode: selectionMode,
		Seed:          req.Seed,
	}, nil
}

func (h *VideoHandler) track(jobID string) {
	h.jobsMux.Lock()
	h.jobs[jobID] = &models.JobTracker{
		JobID:     jobID,
		State:     models.StatePending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	h.jobsMux.Unlock()
}

// process runs a single job in the background
func (h *VideoHandler) process(job models.Job) {
	result := h.engine.Run(context.Background(), job, func(state models.JobState, step string, pct int) {
		h.updateProgress(job.ID, state, step, pct)
	})
	h.finish(result)
}

func (h *VideoHandler) updateProgress(jobID string, state models.JobState, step string, pct int) {
	h.jobsMux.Lock()
	if t, exists := h.jobs[jobID]; exists {
		t.State = state
		t.CurrentStep = step
		t.Progress = pct
		t.UpdatedAt = time.Now()
	}
	h.jobsMux.Unlock()
}

func (h *VideoHandler) finish(result models.JobResult) {
	h.jobsMux.Lock()
	if t, exists := h.jobs[result.JobID]; exists {
		t.State = result.State
		t.Warnings = result.Warnings
		t.Progress = 100
		t.UpdatedAt = time.Now()
		if result.Success {
			t.VideoPath = result.OutputPath
		} else {
			t.Err = fmt.Errorf("%s", result.FailureReason)
		}
	}
	h.jobsMux.Unlock()

	if err := h.store.SaveResult(result); err != nil {
		log.Printf("[Job %s] failed to persist result: %v", result.JobID, err)
	}
}

// GetStatus handles GET /api/status/:job_id
func (h *VideoHandler) GetStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	h.jobsMux.RLock()
	t, exists := h.jobs[jobID]
	h.jobsMux.RUnlock()

	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	resp := models.StatusResponse{
		State:       string(t.State),
		Progress:    t.Progress,
		CurrentStep: t.CurrentStep,
		Warnings:    t.Warnings,
	}

	if t.State == models.StateDone && t.VideoPath != "" {
		videoURL := fmt.Sprintf("/api/download/%s", jobID)
		resp.VideoURL = &videoURL
	}

	if t.Err != nil {
		errMsg := t.Err.Error()
		resp.Error = &errMsg
	}

	c.JSON(http.StatusOK, resp)
}

// Download handles GET /api/download/:job_id
func (h *VideoHandler) Download(c *gin.Context) {
	jobID := c.Param("job_id")

	h.jobsMux.RLock()
	t, exists := h.jobs[jobID]
	h.jobsMux.RUnlock()

	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	if t.State != models.StateDone {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job not completed yet"})
		return
	}

	if t.VideoPath == "" || !utils.FileExists(t.VideoPath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video file not found"})
		return
	}

	c.Header("Content-Type", "video/mp4")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=video_%s.mp4", jobID))
	c.File(t.VideoPath)

	utils.ScheduleFileRemoval(t.VideoPath, 1*time.Hour)
}

// GetCodecStats handles GET /api/codecs
func (h *VideoHandler) GetCodecStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.codecs.GetStats())
}

// GetHistory handles GET /api/history
func (h *VideoHandler) GetHistory(c *gin.Context) {
	records, err := h.store.RecentResults(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []store.JobRecord{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": records})
}
