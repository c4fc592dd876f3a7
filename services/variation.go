package services

import (
	"fmt"
	"math"
	"math/rand"

	"clipforge/models"
)

// minVariationDistance is the smallest L1 distance across
// (zoomStart, panX, panY, brightness) allowed between consecutive
// variations of the same asset
const minVariationDistance = 0.05

// maxVariationDraws bounds the redraw loop before falling back to a
// deterministic perturbation
const maxVariationDraws = 8

// VariationParams holds the configured ranges for visual variations
type VariationParams struct {
	ZoomMin         float64
	ZoomMax         float64
	PanAmount       float64
	BrightnessDelta float64
	FlipProbability float64
}

// VariationEngine generates per-reuse visual transforms so a repeated asset
// reads as a distinct clip. Seeded per slot for reproducibility
type VariationEngine struct {
	params VariationParams
	last   map[string]models.VariationDescriptor
}

// NewVariationEngine creates a variation engine
func NewVariationEngine(params VariationParams) *VariationEngine {
	return &VariationEngine{
		params: params,
		last:   make(map[string]models.VariationDescriptor),
	}
}

// Vary produces a variation for assetID. Consecutive descriptors for the
// same asset are guaranteed to differ by at least minVariationDistance
func (ve *VariationEngine) Vary(assetID string, rng *rand.Rand) models.VariationDescriptor {
	prev, hasPrev := ve.last[assetID]

	var v models.VariationDescriptor
	for attempt := 0; attempt < maxVariationDraws; attempt++ {
		v = ve.draw(rng)
		if !hasPrev || variationDistance(v, prev) >= minVariationDistance {
			ve.last[assetID] = v
			return v
		}
	}

	// Redraws collided with the previous variation; shift the zoom far
	// enough that the distance bound holds without spinning. The shift
	// exceeds twice the threshold, so even a collision at maximum
	// closeness ends up past it
	v.ZoomStart = clampRange(v.ZoomStart+2.5*minVariationDistance, ve.params.ZoomMin, ve.params.ZoomMax+2.5*minVariationDistance)
	ve.last[assetID] = v
	return v
}

func (ve *VariationEngine) draw(rng *rand.Rand) models.VariationDescriptor {
	p := ve.params
	zoomA := p.ZoomMin + rng.Float64()*(p.ZoomMax-p.ZoomMin)
	zoomB := p.ZoomMin + rng.Float64()*(p.ZoomMax-p.ZoomMin)

	return models.VariationDescriptor{
		ZoomStart:  zoomA,
		ZoomEnd:    zoomB,
		PanX:       (rng.Float64()*2 - 1) * p.PanAmount,
		PanY:       (rng.Float64()*2 - 1) * p.PanAmount,
		Brightness: (rng.Float64()*2 - 1) * p.BrightnessDelta,
		FlipH:      rng.Float64() < p.FlipProbability,
	}
}

func variationDistance(a, b models.VariationDescriptor) float64 {
	return math.Abs(a.ZoomStart-b.ZoomStart) +
		math.Abs(a.PanX-b.PanX) +
		math.Abs(a.PanY-b.PanY) +
		math.Abs(a.Brightness-b.Brightness)
}

func clampRange(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// BuildFilter renders a descriptor into an ffmpeg video filter chain.
// Images get zoompan drift plus optional brightness shift and horizontal
// flip, with expressions interpolating linearly over the clip's frames.
// Videos skip zoompan (it duplicates frames on real footage) and vary
// through the brightness shift and flip alone
func BuildFilter(v *models.VariationDescriptor, kind models.AssetKind, width, height int, duration float64, fps int) string {
	if v == nil {
		return ""
	}

	if kind == models.AssetVideo {
		filter := fmt.Sprintf("eq=brightness=%.4f", v.Brightness)
		if v.FlipH {
			filter += ",hflip"
		}
		return filter
	}

	frames := int(duration * float64(fps))
	if frames < 1 {
		frames = 1
	}

	zoomExpr := fmt.Sprintf("'%.4f+(%.4f-%.4f)*on/%d'", v.ZoomStart, v.ZoomEnd, v.ZoomStart, frames)
	xExpr := fmt.Sprintf("'(iw/2-(iw/zoom/2))+%.4f*iw*(2*on/%d-1)'", v.PanX, frames)
	yExpr := fmt.Sprintf("'(ih/2-(ih/zoom/2))+%.4f*ih*(2*on/%d-1)'", v.PanY, frames)

	filter := fmt.Sprintf("zoompan=z=%s:x=%s:y=%s:d=%d:s=%dx%d:fps=%d",
		zoomExpr, xExpr, yExpr, frames, width, height, fps)

	if v.Brightness != 0 {
		filter += fmt.Sprintf(",eq=brightness=%.4f", v.Brightness)
	}
	if v.FlipH {
		filter += ",hflip"
	}

	return filter
}
