package utils

import (
	"context"
	"strings"
	"sync"
	"time"
)

// CodecPool manages encoder selection with capability caching and
// blacklisting of hardware codecs that failed at runtime
type CodecPool struct {
	preferred []string // hardware codecs in preference order
	software  string   // always-available fallback

	detected  bool
	available map[string]bool
	blacklist map[string]time.Time
	failures  map[string]int
	mu        sync.RWMutex
}

// NewCodecPool creates a codec pool. The software codec is assumed present
// until capability detection says otherwise
func NewCodecPool(preferred []string, software string) *CodecPool {
	return &CodecPool{
		preferred: preferred,
		software:  software,
		available: make(map[string]bool),
		blacklist: make(map[string]time.Time),
		failures:  make(map[string]int),
	}
}

// Detect queries the local ffmpeg build for supported encoders.
// The result is cached; subsequent calls are no-ops
func (p *CodecPool) Detect(ctx context.Context, runner Runner) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.detected {
		return nil
	}

	output, err := runner.Encoders(ctx)
	if err != nil {
		return err
	}

	for _, codec := range p.preferred {
		p.available[codec] = containsEncoder(output, codec)
	}
	p.available[p.software] = containsEncoder(output, p.software)
	p.detected = true

	return nil
}

// containsEncoder checks an `ffmpeg -encoders` listing for a codec name.
// Listing lines look like " V....D h264_nvenc  NVIDIA NVENC H.264 encoder"
func containsEncoder(listing, codec string) bool {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == codec {
			return true
		}
	}
	return false
}

// Acquire returns the best codec to try: the first preferred hardware codec
// that is available and not blacklisted, otherwise the software fallback.
// The second return reports whether the codec is a hardware encoder
func (p *CodecPool) Acquire() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cleanBlacklist()

	for _, codec := range p.preferred {
		if !p.available[codec] {
			continue
		}
		if expire, ok := p.blacklist[codec]; ok && time.Now().Before(expire) {
			continue
		}
		return codec, true
	}

	return p.software, false
}

// Software returns the fallback codec
func (p *CodecPool) Software() string {
	return p.software
}

// SoftwareAvailable reports whether the fallback codec exists in the local
// ffmpeg build. Only meaningful after Detect
func (p *CodecPool) SoftwareAvailable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.available[p.software]
}

// MarkFailed blacklists a codec after a runtime failure so subsequent clips
// skip it without paying the failure cost again
func (p *CodecPool) MarkFailed(codec string, retryAfter time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failures[codec]++
	p.blacklist[codec] = time.Now().Add(retryAfter)
}

// cleanBlacklist removes expired entries
// Must be called with lock held
func (p *CodecPool) cleanBlacklist() {
	now := time.Now()
	for codec, expire := range p.blacklist {
		if now.After(expire) {
			delete(p.blacklist, codec)
		}
	}
}

// GetStats returns codec availability and failure counts
func (p *CodecPool) GetStats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	avail := make([]string, 0)
	for _, codec := range p.preferred {
		if p.available[codec] {
			avail = append(avail, codec)
		}
	}

	return map[string]interface{}{
		"hardware_available": avail,
		"software":           p.software,
		"blacklisted":        len(p.blacklist),
		"failure_counts":     p.failures,
	}
}
