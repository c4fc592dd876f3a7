package services

import (
	"fmt"
	"math/rand"

	"clipforge/models"
)

// segment is a half-open [start, end) range of a video already used
type segment struct {
	start float64
	end   float64
}

// assetState tracks per-asset bookkeeping during one selection run
type assetState struct {
	reuseCount   int
	usedSegments []segment
}

// SelectorOptions configures a selection run
type SelectorOptions struct {
	Mode            string // "sequential" or "random"
	AntiConsecutive bool
	MinMediaFiles   int
}

// Selector assigns assets to planned slots. All mutable state lives on the
// struct and is scoped to a single job; a fresh Selector is built per run
type Selector struct {
	opts      SelectorOptions
	variation *VariationEngine

	cursor  int
	recent  []int // indices of recently drawn assets, random mode
	lastIdx int   // index of previously assigned asset, -1 before first
	states  []assetState
}

// NewSelector creates a selector for one job
func NewSelector(opts SelectorOptions, variation *VariationEngine) *Selector {
	return &Selector{
		opts:      opts,
		variation: variation,
		lastIdx:   -1,
	}
}

// Select assigns one asset per slot. Identical unmodified assets never fill
// adjacent slots unless the pool has a single entry; forced reuse carries a
// variation (images) or a distinct segment offset (videos)
func (s *Selector) Select(slots []models.ClipSlot, assets []models.Asset, rng *rand.Rand) ([]models.Assignment, []models.Warning, error) {
	if len(assets) == 0 {
		return nil, nil, ErrEmptyInventory
	}

	var warnings []models.Warning
	if len(assets) < len(slots) {
		warnings = append(warnings, models.Warning{
			Kind: models.WarnInsufficientMedia,
			Message: fmt.Sprintf("%d media files for %d slots; assets will be reused with variations",
				len(assets), len(slots)),
		})
	}
	if len(assets) < s.opts.MinMediaFiles {
		warnings = append(warnings, models.Warning{
			Kind:    models.WarnInsufficientMedia,
			Message: fmt.Sprintf("%d media files is below the recommended minimum of %d", len(assets), s.opts.MinMediaFiles),
		})
	}

	s.states = make([]assetState, len(assets))

	assignments := make([]models.Assignment, len(slots))
	for i, slot := range slots {
		var idx int
		if s.opts.Mode == "random" {
			idx = s.pickRandom(assets, rng)
		} else {
			idx = s.pickSequential(assets)
		}

		asset := assets[idx]
		state := &s.states[idx]
		state.reuseCount++

		a := models.Assignment{SlotIndex: slot.Index, Asset: asset}

		if asset.Kind == models.AssetVideo {
			start, loopTrim, distinct := s.planSegment(asset, slot.Duration, state, rng)
			a.SegmentStart = start
			a.LoopTrim = loopTrim
			if loopTrim {
				warnings = append(warnings, models.Warning{
					Kind: models.WarnLoopTrim,
					Message: fmt.Sprintf("video %s (%.1fs) shorter than slot %d (%.1fs); looping",
						asset.ID, asset.Duration, slot.Index, slot.Duration),
				})
			}
			// No unused footage left: the repeat needs a visual
			// transform to read as a distinct clip
			if !distinct {
				v := s.variation.Vary(asset.ID, rng)
				a.Variation = &v
			}
		}

		// Image reuse reads as a duplicate without a visual transform
		if asset.Kind == models.AssetImage && state.reuseCount > 1 {
			v := s.variation.Vary(asset.ID, rng)
			a.Variation = &v
		}

		assignments[i] = a
		s.lastIdx = idx
	}

	return assignments, warnings, nil
}

// pickSequential walks the inventory cyclically, skipping the previous
// asset when anti-consecutive is on. Wraps indefinitely
func (s *Selector) pickSequential(assets []models.Asset) int {
	n := len(assets)
	for attempts := 0; attempts < n; attempts++ {
		idx := s.cursor
		s.cursor = (s.cursor + 1) % n

		if s.opts.AntiConsecutive && n > 1 && idx == s.lastIdx {
			continue
		}
		return idx
	}

	// Single asset, nothing to avoid
	idx := s.cursor
	s.cursor = (s.cursor + 1) % n
	return idx
}

// pickRandom draws without replacement against a recent-history window of
// k = min(3, n-1), so short pools cannot repeat immediately
func (s *Selector) pickRandom(assets []models.Asset, rng *rand.Rand) int {
	n := len(assets)
	if n == 1 {
		return 0
	}

	k := 3
	if n-1 < k {
		k = n - 1
	}

	candidates := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if s.inRecent(i) {
			continue
		}
		if s.opts.AntiConsecutive && i == s.lastIdx {
			continue
		}
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		// Window covers the whole pool; fall back to anything but the last
		for i := 0; i < n; i++ {
			if i != s.lastIdx {
				candidates = append(candidates, i)
			}
		}
	}

	idx := candidates[rng.Intn(len(candidates))]

	s.recent = append(s.recent, idx)
	if len(s.recent) > k {
		s.recent = s.recent[len(s.recent)-k:]
	}

	return idx
}

func (s *Selector) inRecent(idx int) bool {
	for _, r := range s.recent {
		if r == idx {
			return true
		}
	}
	return false
}

// planSegment picks a start offset into a video. First use starts at a
// random position; reuse searches the gaps between already used segments
// before falling back to a random overlap. loopTrim reports a video shorter
// than the slot; distinct reports whether the segment avoids footage already
// shown, so callers know when a repeat needs a variation instead
func (s *Selector) planSegment(asset models.Asset, slotDuration float64, state *assetState, rng *rand.Rand) (start float64, loopTrim, distinct bool) {
	if asset.Duration <= slotDuration {
		distinct = len(state.usedSegments) == 0
		state.usedSegments = append(state.usedSegments, segment{0, asset.Duration})
		return 0, asset.Duration < slotDuration, distinct
	}

	maxStart := asset.Duration - slotDuration

	if len(state.usedSegments) == 0 {
		start = rng.Float64() * maxStart
		distinct = true
	} else {
		start = findGap(asset.Duration, slotDuration, state.usedSegments)
		distinct = start >= 0
		if start < 0 {
			start = rng.Float64() * maxStart
		}
	}

	state.usedSegments = append(state.usedSegments, segment{start, start + slotDuration})
	return start, false, distinct
}

// findGap returns the start of the first unused stretch long enough for
// needed, or -1 when every gap is too small
func findGap(total, needed float64, used []segment) float64 {
	sorted := make([]segment, len(used))
	copy(sorted, used)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].start < sorted[j-1].start; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	lastEnd := 0.0
	for _, seg := range sorted {
		if seg.start-lastEnd >= needed {
			return lastEnd
		}
		if seg.end > lastEnd {
			lastEnd = seg.end
		}
	}

	if total-lastEnd >= needed {
		return lastEnd
	}
	return -1
}
