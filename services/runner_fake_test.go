package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// fakeRunner simulates the ffmpeg boundary. It records every invocation,
// tracks output durations from -t flags, and can fail selectively based on
// the requested codec
type fakeRunner struct {
	mu        sync.Mutex
	runCalls  [][]string
	durations map[string]float64

	// probeOverrides wins over tracked durations
	probeOverrides map[string]float64

	// failCodecs maps codec name to the stderr returned alongside an error
	failCodecs map[string]string

	// blockCodecs never finish; the call waits out the context like a
	// hung encoder process
	blockCodecs map[string]bool

	encodersOut string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		durations:      make(map[string]float64),
		probeOverrides: make(map[string]float64),
		failCodecs:     make(map[string]string),
		blockCodecs:    make(map[string]bool),
		encodersOut:    " V..... libx264              libx264 H.264 / AVC / MPEG-4 AVC\n",
	}
}

func (f *fakeRunner) Run(ctx context.Context, args []string) (string, error) {
	f.mu.Lock()
	call := make([]string, len(args))
	copy(call, args)
	f.runCalls = append(f.runCalls, call)
	f.mu.Unlock()

	if codec := argValue(args, "-c:v"); codec != "" {
		if f.blockCodecs[codec] {
			<-ctx.Done()
			return "", ctx.Err()
		}
		if stderr, ok := f.failCodecs[codec]; ok {
			return stderr, fmt.Errorf("exit status 1")
		}
	}

	out := outputPath(args)
	if out == "" {
		return "", nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Concat demuxer: output duration is the sum of the listed inputs
	if argValue(args, "-f") == "concat" {
		listPath := argValue(args, "-i")
		total := 0.0
		if data, err := os.ReadFile(listPath); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				line = strings.TrimSpace(line)
				if !strings.HasPrefix(line, "file '") {
					continue
				}
				path := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
				total += f.durations[path]
			}
		}
		f.durations[out] = total
		return "", nil
	}

	if t := argValue(args, "-t"); t != "" {
		if d, err := strconv.ParseFloat(t, 64); err == nil {
			f.durations[out] = d
			return "", nil
		}
	}

	// Copy or filter without explicit -t keeps the input duration
	if in := argValue(args, "-i"); in != "" {
		f.durations[out] = f.durations[in]
	}
	return "", nil
}

func (f *fakeRunner) Probe(path string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if d, ok := f.probeOverrides[path]; ok {
		return d, nil
	}
	if d, ok := f.durations[path]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown file: %s", path)
}

func (f *fakeRunner) Encoders(context.Context) (string, error) {
	return f.encodersOut, nil
}

func (f *fakeRunner) calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.runCalls))
	copy(out, f.runCalls)
	return out
}

// argValue returns the value following the first occurrence of flag
func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// outputPath returns the value after -y, the conventional final argument
func outputPath(args []string) string {
	return argValue(args, "-y")
}
