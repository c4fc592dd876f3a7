package services

import (
	"errors"
	"math/rand"
	"testing"

	"clipforge/models"
)

func testVariationEngine() *VariationEngine {
	return NewVariationEngine(VariationParams{
		ZoomMin:         0.95,
		ZoomMax:         1.15,
		PanAmount:       0.1,
		BrightnessDelta: 0.1,
		FlipProbability: 0.2,
	})
}

func makeSlots(durations ...float64) []models.ClipSlot {
	slots := make([]models.ClipSlot, len(durations))
	start := 0.0
	for i, d := range durations {
		slots[i] = models.ClipSlot{Index: i, Start: start, Duration: d}
		start += d
	}
	return slots
}

func makeImages(ids ...string) []models.Asset {
	assets := make([]models.Asset, len(ids))
	for i, id := range ids {
		assets[i] = models.Asset{ID: id, Kind: models.AssetImage, Path: "/media/" + id}
	}
	return assets
}

func TestSelectEmptyInventory(t *testing.T) {
	s := NewSelector(SelectorOptions{Mode: "sequential"}, testVariationEngine())
	_, _, err := s.Select(makeSlots(3.0), nil, rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrEmptyInventory) {
		t.Errorf("got %v, want ErrEmptyInventory", err)
	}
}

func TestSelectSequentialCycles(t *testing.T) {
	s := NewSelector(SelectorOptions{Mode: "sequential", AntiConsecutive: true, MinMediaFiles: 3}, testVariationEngine())
	assets := makeImages("a.jpg", "b.jpg", "c.jpg")
	slots := makeSlots(3, 3, 3, 3, 3, 3, 3)

	assignments, _, err := s.Select(slots, assets, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a.jpg", "b.jpg", "c.jpg", "a.jpg", "b.jpg", "c.jpg", "a.jpg"}
	for i, a := range assignments {
		if a.Asset.ID != want[i] {
			t.Errorf("slot %d: got %s, want %s", i, a.Asset.ID, want[i])
		}
	}
}

func TestSelectAssignsEverySlot(t *testing.T) {
	modes := []string{"sequential", "random"}

	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			s := NewSelector(SelectorOptions{Mode: mode, AntiConsecutive: true, MinMediaFiles: 3}, testVariationEngine())
			assets := makeImages("a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg")
			slots := makeSlots(2, 3, 4, 2, 3, 4, 2, 3, 4, 2)

			assignments, _, err := s.Select(slots, assets, rand.New(rand.NewSource(42)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(assignments) != len(slots) {
				t.Fatalf("got %d assignments, want %d", len(assignments), len(slots))
			}
			for i, a := range assignments {
				if a.SlotIndex != i {
					t.Errorf("assignment %d has slot index %d", i, a.SlotIndex)
				}
				if a.Asset.ID == "" {
					t.Errorf("slot %d is unassigned", i)
				}
			}
		})
	}
}

func TestSelectNoAdjacentDuplicates(t *testing.T) {
	for _, mode := range []string{"sequential", "random"} {
		t.Run(mode, func(t *testing.T) {
			for seed := int64(1); seed <= 10; seed++ {
				s := NewSelector(SelectorOptions{Mode: mode, AntiConsecutive: true, MinMediaFiles: 3}, testVariationEngine())
				assets := makeImages("a.jpg", "b.jpg", "c.jpg")
				slots := makeSlots(3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3)

				assignments, _, err := s.Select(slots, assets, rand.New(rand.NewSource(seed)))
				if err != nil {
					t.Fatalf("seed %d: unexpected error: %v", seed, err)
				}

				for i := 1; i < len(assignments); i++ {
					prev, cur := assignments[i-1], assignments[i]
					if prev.Asset.ID == cur.Asset.ID && cur.Variation == nil {
						t.Errorf("seed %d: slots %d and %d share unmodified asset %s",
							seed, i-1, i, cur.Asset.ID)
					}
				}
			}
		})
	}
}

func TestSelectInsufficientMediaWarning(t *testing.T) {
	s := NewSelector(SelectorOptions{Mode: "sequential", AntiConsecutive: true, MinMediaFiles: 3}, testVariationEngine())
	assets := makeImages("a.jpg", "b.jpg")
	slots := makeSlots(3, 3, 3, 3, 3)

	_, warnings, err := s.Select(slots, assets, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, w := range warnings {
		if w.Kind == models.WarnInsufficientMedia {
			found = true
		}
	}
	if !found {
		t.Error("expected insufficient_media warning")
	}
}

func TestSelectImageReuseGetsVariation(t *testing.T) {
	s := NewSelector(SelectorOptions{Mode: "sequential", MinMediaFiles: 3}, testVariationEngine())
	assets := makeImages("only.jpg")
	slots := makeSlots(3, 3, 3)

	assignments, _, err := s.Select(slots, assets, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if assignments[0].Variation != nil {
		t.Error("first use should not carry a variation")
	}
	for i := 1; i < len(assignments); i++ {
		if assignments[i].Variation == nil {
			t.Errorf("reuse at slot %d missing variation", i)
		}
	}
}

func TestSelectVideoSegmentsDoNotOverlap(t *testing.T) {
	s := NewSelector(SelectorOptions{Mode: "sequential", MinMediaFiles: 1}, testVariationEngine())
	assets := []models.Asset{
		{ID: "long.mp4", Kind: models.AssetVideo, Path: "/media/long.mp4", Duration: 30.0},
	}
	slots := makeSlots(5, 5, 5)

	assignments, _, err := s.Select(slots, assets, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 30s of video fits three 5s segments; the gap search must keep them
	// disjoint
	type span struct{ start, end float64 }
	var spans []span
	for i, a := range assignments {
		spans = append(spans, span{a.SegmentStart, a.SegmentStart + slots[i].Duration})
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[i].start < spans[j].end && spans[j].start < spans[i].end {
				t.Errorf("segments %d and %d overlap: [%.1f,%.1f) vs [%.1f,%.1f)",
					i, j, spans[i].start, spans[i].end, spans[j].start, spans[j].end)
			}
		}
	}
}

func TestSelectShortVideoLoops(t *testing.T) {
	s := NewSelector(SelectorOptions{Mode: "sequential", MinMediaFiles: 1}, testVariationEngine())
	assets := []models.Asset{
		{ID: "short.mp4", Kind: models.AssetVideo, Path: "/media/short.mp4", Duration: 2.0},
	}
	slots := makeSlots(5)

	assignments, warnings, err := s.Select(slots, assets, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !assignments[0].LoopTrim {
		t.Error("expected loop trim for video shorter than slot")
	}

	found := false
	for _, w := range warnings {
		if w.Kind == models.WarnLoopTrim {
			found = true
		}
	}
	if !found {
		t.Error("expected loop_trim warning")
	}
}

func TestSelectExhaustedVideoReuseGetsVariation(t *testing.T) {
	// A video exactly as long as every slot has no unused footage to offer,
	// so each repeat must carry a visual transform instead of a fresh offset
	s := NewSelector(SelectorOptions{Mode: "sequential", MinMediaFiles: 1}, testVariationEngine())
	assets := []models.Asset{
		{ID: "exact.mp4", Kind: models.AssetVideo, Path: "/media/exact.mp4", Duration: 3.0},
	}
	slots := makeSlots(3, 3, 3)

	assignments, _, err := s.Select(slots, assets, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if assignments[0].Variation != nil {
		t.Error("first use should not carry a variation")
	}
	if assignments[0].LoopTrim {
		t.Error("video matching the slot duration should not loop")
	}
	for i := 1; i < len(assignments); i++ {
		a := assignments[i]
		if a.SegmentStart != 0 {
			t.Errorf("slot %d: segment start %.1f, want 0", i, a.SegmentStart)
		}
		if a.Variation == nil {
			t.Errorf("slot %d repeats the full video without a variation", i)
		}
	}
}

func TestSelectVideoOverlapReuseGetsVariation(t *testing.T) {
	// Four 5s slots against 12s of footage: once the gap search runs dry,
	// overlapping repeats must be visually distinguished
	s := NewSelector(SelectorOptions{Mode: "sequential", MinMediaFiles: 1}, testVariationEngine())
	assets := []models.Asset{
		{ID: "long.mp4", Kind: models.AssetVideo, Path: "/media/long.mp4", Duration: 12.0},
	}
	slots := makeSlots(5, 5, 5, 5)

	assignments, _, err := s.Select(slots, assets, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	varied := 0
	for _, a := range assignments {
		if a.Variation != nil {
			varied++
		}
	}
	// 12s holds at most two disjoint 5s segments
	if varied < 2 {
		t.Errorf("%d varied assignments, want at least 2", varied)
	}
}

func TestFindGap(t *testing.T) {
	tests := []struct {
		name   string
		total  float64
		needed float64
		used   []segment
		want   float64
	}{
		{"gap before first segment", 30, 5, []segment{{10, 15}}, 0},
		{"gap between segments", 30, 5, []segment{{0, 10}, {15, 20}}, 10},
		{"gap at end", 30, 5, []segment{{0, 10}, {10, 20}}, 20},
		{"no gap large enough", 30, 12, []segment{{0, 10}, {15, 25}}, -1},
		{"unsorted input", 30, 5, []segment{{15, 20}, {0, 10}}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findGap(tt.total, tt.needed, tt.used)
			if got != tt.want {
				t.Errorf("got %.1f, want %.1f", got, tt.want)
			}
		})
	}
}
