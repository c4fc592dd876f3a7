package services

import (
	"fmt"
	"math"
	"math/rand"

	"clipforge/models"
)

// sumEpsilon is the tolerance for the planned total matching the audio
// duration exactly
const sumEpsilon = 0.001

// maxAbsorbIterations bounds the error redistribution loop
const maxAbsorbIterations = 10

// Planner partitions an audio duration into clip slots within a duration
// range, biased by processing mode
type Planner struct {
	minClip float64
	maxClip float64
	jitter  float64
	mode    string
}

// NewPlanner creates a duration planner. jitter is the soft budget tolerance
// around the target duration (0.25 = ±25%)
func NewPlanner(minClip, maxClip, jitter float64, mode string) *Planner {
	return &Planner{
		minClip: minClip,
		maxClip: maxClip,
		jitter:  jitter,
		mode:    mode,
	}
}

// targetDuration returns the per-clip target within [min, max]. Quality mode
// pulls toward shorter clips (more cuts), fast mode toward longer ones
// (fewer encodes)
func (p *Planner) targetDuration() float64 {
	frac := 0.5
	switch p.mode {
	case "quality":
		frac = 0.35
	case "fast":
		frac = 0.65
	}
	return p.minClip + frac*(p.maxClip-p.minClip)
}

// Plan partitions total seconds into ordered slots. Slot durations all fall
// within [minClip, maxClip] and sum to total within 1ms. The same rng seed
// always yields the same plan
func (p *Planner) Plan(total float64, rng *rand.Rand) ([]models.ClipSlot, error) {
	if p.minClip <= 0 || p.maxClip <= 0 || p.minClip > p.maxClip {
		return nil, fmt.Errorf("%w: min=%.2f max=%.2f", ErrInvalidRange, p.minClip, p.maxClip)
	}
	if total < p.minClip-sumEpsilon {
		return nil, fmt.Errorf("%w: audio=%.2fs min=%.2fs", ErrInfeasible, total, p.minClip)
	}

	n := p.estimateCount(total)
	if n == 1 {
		return []models.ClipSlot{{Index: 0, Start: 0, Duration: total}}, nil
	}

	durations := p.drawDurations(total, n, rng)
	durations = p.smoothAdjacent(durations)

	durations, err := p.absorbError(durations, total)
	if err != nil {
		return nil, err
	}

	slots := make([]models.ClipSlot, n)
	current := 0.0
	for i, d := range durations {
		slots[i] = models.ClipSlot{Index: i, Start: current, Duration: d}
		current += d
	}

	return slots, nil
}

// estimateCount picks the slot count from the mode-biased target, then
// corrects it so the even split stays inside the duration range
func (p *Planner) estimateCount(total float64) int {
	target := p.targetDuration()

	n := int(math.Round(total / target))
	if n < 1 {
		n = 1
	}

	d := total / float64(n)
	if d > p.maxClip {
		n = int(math.Ceil(total / p.maxClip))
	} else if d < p.minClip {
		n = int(math.Floor(total / p.minClip))
		if n < 1 {
			n = 1
		}
	}

	return n
}

// drawDurations samples each slot uniformly inside the jitter window around
// the even split, clamped to the duration range
func (p *Planner) drawDurations(total float64, n int, rng *rand.Rand) []float64 {
	avg := total / float64(n)

	lo := math.Max(p.minClip, avg*(1-p.jitter))
	hi := math.Min(p.maxClip, avg*(1+p.jitter))
	if lo > hi {
		lo, hi = p.minClip, p.maxClip
	}

	durations := make([]float64, n)
	for i := range durations {
		durations[i] = lo + rng.Float64()*(hi-lo)
	}

	return durations
}

// smoothAdjacent blends adjacent pairs whose difference exceeds half their
// average, so pacing never lurches between extremes
func (p *Planner) smoothAdjacent(durations []float64) []float64 {
	if len(durations) <= 1 {
		return durations
	}

	for i := 0; i < len(durations)-1; i++ {
		a, b := durations[i], durations[i+1]
		avg := (a + b) / 2

		if math.Abs(a-b) > avg*0.5 {
			durations[i] = p.clamp(a*0.7 + b*0.3)
			durations[i+1] = p.clamp(a*0.3 + b*0.7)
		}
	}

	return durations
}

// absorbError adjusts durations so they sum to total exactly. The residual
// lands on the last slot; if clamping it violates the range, the overflow is
// redistributed evenly and the loop repeats up to maxAbsorbIterations
func (p *Planner) absorbError(durations []float64, total float64) ([]float64, error) {
	n := len(durations)

	for iter := 0; iter < maxAbsorbIterations; iter++ {
		sum := 0.0
		for _, d := range durations {
			sum += d
		}
		err := total - sum

		if math.Abs(err) <= sumEpsilon {
			return durations, nil
		}

		// Spread the bulk of the error evenly, clamped per slot
		perClip := err / float64(n)
		for i := range durations {
			durations[i] = p.clamp(durations[i] + perClip)
		}

		// Pin the final slot to whatever keeps the sum exact
		sum = 0.0
		for _, d := range durations[:n-1] {
			sum += d
		}
		last := total - sum
		if last >= p.minClip-sumEpsilon && last <= p.maxClip+sumEpsilon {
			durations[n-1] = last
			return durations, nil
		}
		durations[n-1] = p.clamp(last)
	}

	return nil, fmt.Errorf("%w: total=%.3fs slots=%d", ErrPlanning, total, n)
}

func (p *Planner) clamp(d float64) float64 {
	return math.Max(p.minClip, math.Min(p.maxClip, d))
}
