package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"clipforge/config"
	"clipforge/models"
)

func testHandler(t *testing.T) *VideoHandler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		TempDir:          t.TempDir(),
		Mode:             "quality",
		SelectionMode:    "sequential",
		HardwareEncoders: []string{"h264_nvenc"},
		SoftwareEncoder:  "libx264",
	}
	return NewVideoHandler(cfg, nil)
}

func writeTestInputs(t *testing.T) (audioPath, mediaDir string) {
	t.Helper()
	dir := t.TempDir()

	audioPath = filepath.Join(dir, "voice.mp3")
	if err := os.WriteFile(audioPath, []byte("audio"), 0644); err != nil {
		t.Fatalf("writing audio file: %v", err)
	}

	mediaDir = filepath.Join(dir, "media")
	if err := os.Mkdir(mediaDir, 0755); err != nil {
		t.Fatalf("creating media dir: %v", err)
	}
	return audioPath, mediaDir
}

func postBatch(t *testing.T, h *VideoHandler, req models.BatchRequest) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}

	router := gin.New()
	router.POST("/api/batch", h.RenderBatch)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/batch", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, r)
	return w
}

func trackedJobs(h *VideoHandler) int {
	h.jobsMux.RLock()
	defer h.jobsMux.RUnlock()
	return len(h.jobs)
}

func TestRenderBatchRejectedMidwayTracksNothing(t *testing.T) {
	h := testHandler(t)
	audioPath, mediaDir := writeTestInputs(t)

	w := postBatch(t, h, models.BatchRequest{
		Jobs: []models.RenderRequest{
			{AudioPath: audioPath, MediaDir: mediaDir},
			{AudioPath: filepath.Join(mediaDir, "missing.mp3"), MediaDir: mediaDir},
		},
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want %d", w.Code, http.StatusBadRequest)
	}
	// The first job validated before the second was rejected; it must not
	// linger as a permanently pending tracker
	if n := trackedJobs(h); n != 0 {
		t.Errorf("%d trackers after rejected batch, want 0", n)
	}
}

func TestRenderBatchAcceptedTracksEveryJob(t *testing.T) {
	h := testHandler(t)
	audioPath, mediaDir := writeTestInputs(t)

	w := postBatch(t, h, models.BatchRequest{
		Jobs: []models.RenderRequest{
			{AudioPath: audioPath, MediaDir: mediaDir},
			{AudioPath: audioPath, MediaDir: mediaDir, Mode: "fast"},
		},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp models.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshaling response: %v", err)
	}
	if len(resp.JobIDs) != 2 {
		t.Fatalf("%d job ids, want 2", len(resp.JobIDs))
	}

	h.jobsMux.RLock()
	defer h.jobsMux.RUnlock()
	for _, id := range resp.JobIDs {
		if _, ok := h.jobs[id]; !ok {
			t.Errorf("job %s not tracked", id)
		}
	}
}

func TestRenderBatchEmpty(t *testing.T) {
	h := testHandler(t)

	w := postBatch(t, h, models.BatchRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status %d, want %d", w.Code, http.StatusBadRequest)
	}
}
