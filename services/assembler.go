package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"time"

	"clipforge/models"
	"clipforge/utils"
)

// Assembler concatenates encoded clips, corrects tail drift against the
// audio, and muxes the audio track into the final output
type Assembler struct {
	runner        utils.Runner
	syncTolerance float64
	crf           int
	preset        string
	audioBitrate  string
	timeout       time.Duration
}

// NewAssembler creates an assembler. syncTolerance is the allowed A/V
// duration drift in seconds, normally one frame (config.FrameDuration)
func NewAssembler(runner utils.Runner, syncTolerance float64, crf int, preset, audioBitrate string, timeout time.Duration) *Assembler {
	return &Assembler{
		runner:        runner,
		syncTolerance: syncTolerance,
		crf:           crf,
		preset:        preset,
		audioBitrate:  audioBitrate,
		timeout:       timeout,
	}
}

// Assemble concatenates clips in slot order, reconciles the concatenated
// duration with the audio duration by adjusting only the tail, then muxes
// the audio. Interior clip timing is never touched
func (asm *Assembler) Assemble(ctx context.Context, clips []models.EncodedClip, audioPath, workDir, outputPath string) ([]models.Warning, error) {
	if len(clips) == 0 {
		return nil, fmt.Errorf("%w: no clips to assemble", ErrAssembly)
	}

	ctx, cancel := context.WithTimeout(ctx, asm.timeout)
	defer cancel()

	audioDuration, err := asm.runner.Probe(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: probing audio: %v", ErrAssembly, err)
	}

	var warnings []models.Warning

	// Clips are normalized at encode time, so concat can stream-copy
	files := make([]string, len(clips))
	for i, clip := range clips {
		files[i] = clip.Path
	}

	listPath := filepath.Join(workDir, "concat_list.txt")
	if err := utils.WriteConcatList(listPath, files); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
	}

	concatPath := filepath.Join(workDir, "concat.mp4")
	if _, err := asm.runner.Run(ctx, []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y", concatPath,
	}); err != nil {
		return nil, fmt.Errorf("%w: concat: %v", ErrAssembly, err)
	}

	videoDuration, err := asm.runner.Probe(concatPath)
	if err != nil {
		return nil, fmt.Errorf("%w: probing concat: %v", ErrAssembly, err)
	}

	// One frame of drift is within tolerance; beyond that the tail is
	// trimmed or frozen to meet the audio exactly
	syncedPath := concatPath
	drift := videoDuration - audioDuration

	if math.Abs(drift) > asm.syncTolerance {
		syncedPath = filepath.Join(workDir, "synced.mp4")
		if drift > 0 {
			log.Printf("[assemble] trimming %.3fs of tail drift", drift)
			if err := asm.trimTail(ctx, concatPath, syncedPath, audioDuration); err != nil {
				return nil, err
			}
		} else {
			log.Printf("[assemble] extending tail by %.3fs with freeze frame", -drift)
			if err := asm.extendTail(ctx, concatPath, syncedPath, videoDuration, audioDuration); err != nil {
				return nil, err
			}
		}
		warnings = append(warnings, models.Warning{
			Kind:    models.WarnDurationClamped,
			Message: fmt.Sprintf("final clip adjusted by %.3fs to match audio", -drift),
		})
	}

	if _, err := asm.runner.Run(ctx, []string{
		"-i", syncedPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", asm.audioBitrate,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		"-y", outputPath,
	}); err != nil {
		return nil, fmt.Errorf("%w: mux: %v", ErrAssembly, err)
	}

	return warnings, nil
}

// trimTail cuts the concatenated video down to the target duration
func (asm *Assembler) trimTail(ctx context.Context, inputPath, outputPath string, target float64) error {
	if _, err := asm.runner.Run(ctx, []string{
		"-i", inputPath,
		"-t", fmt.Sprintf("%.3f", target),
		"-c", "copy",
		"-y", outputPath,
	}); err != nil {
		return fmt.Errorf("%w: trim: %v", ErrAssembly, err)
	}
	return nil
}

// extendTail freezes the last frame until the target duration is reached,
// re-encoding only because tpad cannot stream-copy
func (asm *Assembler) extendTail(ctx context.Context, inputPath, outputPath string, current, target float64) error {
	freeze := target - current

	filter := fmt.Sprintf(
		"[0:v]trim=duration=%.3f,setpts=PTS-STARTPTS[v1];[0:v]trim=start=%.3f,setpts=PTS-STARTPTS,tpad=stop_duration=%.3f:stop_mode=clone[v2];[v1][v2]concat=n=2:v=1:a=0[vout]",
		current, math.Max(0, current-0.1), freeze)

	if _, err := asm.runner.Run(ctx, []string{
		"-i", inputPath,
		"-filter_complex", filter,
		"-map", "[vout]",
		"-c:v", "libx264",
		"-crf", fmt.Sprintf("%d", asm.crf),
		"-preset", asm.preset,
		"-y", outputPath,
	}); err != nil {
		return fmt.Errorf("%w: extend: %v", ErrAssembly, err)
	}
	return nil
}
