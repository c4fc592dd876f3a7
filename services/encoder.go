package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"clipforge/models"
	"clipforge/utils"
)

// blacklistRetryAfter keeps a failed hardware codec out of rotation long
// enough that sibling clips in the same job skip it
const blacklistRetryAfter = 10 * time.Minute

// EncoderSettings holds the output parameters shared by every clip
type EncoderSettings struct {
	Width       int
	Height      int
	FPS         int
	CRF         int
	Preset      string
	ClipTimeout time.Duration
	MaxWorkers  int
}

// Encoder renders assignments into normalized clip files
type Encoder struct {
	runner   utils.Runner
	codecs   *utils.CodecPool
	settings EncoderSettings
	clipDir  string

	mu        sync.Mutex
	tempFiles []string
	warnings  []models.Warning
}

// NewEncoder creates a clip encoder writing into clipDir
func NewEncoder(runner utils.Runner, codecs *utils.CodecPool, settings EncoderSettings, clipDir string) *Encoder {
	return &Encoder{
		runner:   runner,
		codecs:   codecs,
		settings: settings,
		clipDir:  clipDir,
	}
}

// Warnings returns warnings accumulated across EncodeAll
func (e *Encoder) Warnings() []models.Warning {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Warning, len(e.warnings))
	copy(out, e.warnings)
	return out
}

// TempFiles returns every file the encoder created, for cleanup even on
// failure paths
func (e *Encoder) TempFiles() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.tempFiles))
	copy(out, e.tempFiles)
	return out
}

func (e *Encoder) registerTemp(path string) {
	e.mu.Lock()
	e.tempFiles = append(e.tempFiles, path)
	e.mu.Unlock()
}

func (e *Encoder) addWarning(w models.Warning) {
	e.mu.Lock()
	e.warnings = append(e.warnings, w)
	e.mu.Unlock()
}

// EncodeAll encodes every assignment with bounded parallelism and returns
// clips ordered by slot index. The first error cancels outstanding work
func (e *Encoder) EncodeAll(ctx context.Context, assignments []models.Assignment, slots []models.ClipSlot, progress func(done, total int)) ([]models.EncodedClip, error) {
	clips := make([]models.EncodedClip, len(assignments))
	errs := make([]error, len(assignments))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, e.settings.MaxWorkers)
	var wg sync.WaitGroup
	var doneCount int
	var progressMu sync.Mutex

	for i := range assignments {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				errs[idx] = ctx.Err()
				return
			}

			clip, err := e.Encode(ctx, assignments[idx], slots[idx])
			if err != nil {
				errs[idx] = err
				cancel()
				return
			}
			clips[idx] = clip

			if progress != nil {
				progressMu.Lock()
				doneCount++
				progress(doneCount, len(assignments))
				progressMu.Unlock()
			}
		}(i)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("slot %d: %w", assignments[i].SlotIndex, err)
		}
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return clips, nil
}

// Encode renders one assignment. The preferred hardware codec is tried
// first; on unavailability or a hardware failure signature the clip is
// retried once on the software codec before the error becomes fatal
func (e *Encoder) Encode(ctx context.Context, a models.Assignment, slot models.ClipSlot) (models.EncodedClip, error) {
	outPath := filepath.Join(e.clipDir, fmt.Sprintf("clip_%03d.mp4", slot.Index))
	e.registerTemp(outPath)

	codec, isHardware := e.codecs.Acquire()

	err := e.encodeWith(ctx, a, slot, codec, outPath)
	if err != nil && isHardware {
		e.codecs.MarkFailed(codec, blacklistRetryAfter)
		software := e.codecs.Software()
		log.Printf("[encode] slot %d: %s failed, retrying with %s: %v", slot.Index, codec, software, err)
		e.addWarning(models.Warning{
			Kind:    models.WarnHardwareFallback,
			Message: fmt.Sprintf("slot %d: %s failed, fell back to %s", slot.Index, codec, software),
		})

		if fbErr := e.encodeWith(ctx, a, slot, software, outPath); fbErr != nil {
			return models.EncodedClip{}, fmt.Errorf("%w: %v", ErrEncodeFailed, fbErr)
		}
		return e.finishClip(a, slot, outPath, software, true)
	}
	if err != nil {
		return models.EncodedClip{}, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	return e.finishClip(a, slot, outPath, codec, false)
}

func (e *Encoder) finishClip(a models.Assignment, slot models.ClipSlot, outPath, codec string, fallback bool) (models.EncodedClip, error) {
	actual, err := e.runner.Probe(outPath)
	if err != nil {
		return models.EncodedClip{}, fmt.Errorf("%w: probing encoded clip: %v", ErrEncodeFailed, err)
	}

	return models.EncodedClip{
		SlotIndex:      slot.Index,
		Path:           outPath,
		ActualDuration: actual,
		Codec:          codec,
		Fallback:       fallback,
	}, nil
}

// encodeWith runs one ffmpeg invocation under the per-clip timeout.
// A timeout is reported as a plain encode failure so the fallback path
// applies uniformly
func (e *Encoder) encodeWith(ctx context.Context, a models.Assignment, slot models.ClipSlot, codec string, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, e.settings.ClipTimeout)
	defer cancel()

	args := e.buildArgs(a, slot, codec, outPath)
	stderr, err := e.runner.Run(ctx, args)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("encode timed out after %s", e.settings.ClipTimeout)
		}
		if utils.IsHardwareFailure(stderr) {
			return fmt.Errorf("hardware encoder failure: %w", err)
		}
		return err
	}
	return nil
}

// buildArgs assembles the ffmpeg argument slice for one clip. Images loop
// for the slot duration; videos seek to their planned segment. Every clip
// is normalized to the shared resolution, fps, and pixel format so concat
// can stream-copy
func (e *Encoder) buildArgs(a models.Assignment, slot models.ClipSlot, codec string, outPath string) []string {
	s := e.settings
	var args []string

	if a.Asset.Kind == models.AssetImage {
		args = append(args, "-loop", "1", "-i", a.Asset.Path)
	} else {
		if a.SegmentStart > 0 {
			args = append(args, "-ss", fmt.Sprintf("%.3f", a.SegmentStart))
		}
		if a.LoopTrim {
			args = append(args, "-stream_loop", "-1")
		}
		args = append(args, "-i", a.Asset.Path)
	}

	filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,format=yuv420p",
		s.Width, s.Height, s.Width, s.Height, s.FPS)
	if vf := BuildFilter(a.Variation, a.Asset.Kind, s.Width, s.Height, slot.Duration, s.FPS); vf != "" {
		filter = vf + "," + filter
	}

	args = append(args,
		"-t", fmt.Sprintf("%.3f", slot.Duration),
		"-vf", filter,
		"-an",
		"-c:v", codec,
	)

	if codec == "libx264" {
		args = append(args,
			"-crf", strconv.Itoa(s.CRF),
			"-preset", s.Preset,
		)
	}

	args = append(args, "-y", outPath)
	return args
}
