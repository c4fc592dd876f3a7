package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"clipforge/models"
	"clipforge/utils"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
}

// Inventory scans a media directory into validated assets
type Inventory struct {
	runner utils.Runner
}

// NewInventory creates an inventory scanner
func NewInventory(runner utils.Runner) *Inventory {
	return &Inventory{runner: runner}
}

// Scan enumerates mediaDir into assets sorted by filename. Video durations
// are probed up front so the selector can plan segments without touching
// ffprobe again
func (inv *Inventory) Scan(mediaDir string) ([]models.Asset, error) {
	entries, err := os.ReadDir(mediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read media directory %s: %w", mediaDir, err)
	}

	assets := make([]models.Asset, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		path := filepath.Join(mediaDir, name)

		switch {
		case imageExtensions[ext]:
			assets = append(assets, models.Asset{
				ID:   name,
				Kind: models.AssetImage,
				Path: path,
			})
		case videoExtensions[ext]:
			duration, err := inv.runner.Probe(path)
			if err != nil {
				return nil, fmt.Errorf("failed to probe %s: %w", path, err)
			}
			assets = append(assets, models.Asset{
				ID:       name,
				Kind:     models.AssetVideo,
				Path:     path,
				Duration: duration,
			})
		}
	}

	sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })

	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyInventory, mediaDir)
	}

	return assets, nil
}
