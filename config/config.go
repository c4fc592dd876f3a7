package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port    string
	TempDir string

	// Optional integrations
	DatabaseURL string
	JWTSecret   string

	// Planning
	MinClipDuration float64
	MaxClipDuration float64
	DurationJitter  float64
	Mode            string // "quality" or "fast"

	// Selection
	SelectionMode   string // "sequential" or "random"
	MinMediaFiles   int
	AntiConsecutive bool

	// Variation (Ken Burns style drift on reused images)
	ZoomMin         float64
	ZoomMax         float64
	PanAmount       float64
	BrightnessDelta float64
	FlipProbability float64

	// Encoding
	VideoResolution    string
	VideoFPS           int
	VideoCRF           int
	VideoPreset        string
	HardwareEncoders   []string
	SoftwareEncoder    string
	MaxWorkers         int
	ClipTimeoutSec     int
	AssembleTimeoutSec int

	// Audio
	AudioBitrate string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		TempDir: getEnv("TEMP_DIR", "./temp"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("API_JWT_SECRET", ""),

		// Planning
		MinClipDuration: getEnvAsFloat("MIN_CLIP_DURATION", 2.0),
		MaxClipDuration: getEnvAsFloat("MAX_CLIP_DURATION", 5.0),
		DurationJitter:  getEnvAsFloat("DURATION_JITTER", 0.25),
		Mode:            getEnv("PROCESSING_MODE", "quality"),

		// Selection
		SelectionMode:   getEnv("SELECTION_MODE", "sequential"),
		MinMediaFiles:   getEnvAsInt("MIN_MEDIA_FILES", 3),
		AntiConsecutive: getEnvAsBool("ANTI_CONSECUTIVE", true),

		// Variation
		ZoomMin:         getEnvAsFloat("VARIATION_ZOOM_MIN", 0.95),
		ZoomMax:         getEnvAsFloat("VARIATION_ZOOM_MAX", 1.15),
		PanAmount:       getEnvAsFloat("VARIATION_PAN_AMOUNT", 0.1),
		BrightnessDelta: getEnvAsFloat("VARIATION_BRIGHTNESS_DELTA", 0.1),
		FlipProbability: getEnvAsFloat("VARIATION_FLIP_PROBABILITY", 0.2),

		// Encoding
		VideoResolution:    getEnv("VIDEO_RESOLUTION", "1920x1080"),
		VideoFPS:           getEnvAsInt("VIDEO_FPS", 30),
		VideoCRF:           getEnvAsInt("VIDEO_CRF", 23),
		VideoPreset:        getEnv("VIDEO_PRESET", "medium"),
		HardwareEncoders:   parseList(getEnv("HARDWARE_ENCODERS", "h264_nvenc,h264_amf")),
		SoftwareEncoder:    getEnv("SOFTWARE_ENCODER", "libx264"),
		MaxWorkers:         getEnvAsInt("MAX_WORKERS", runtime.NumCPU()),
		ClipTimeoutSec:     getEnvAsInt("CLIP_TIMEOUT_SECONDS", 300),
		AssembleTimeoutSec: getEnvAsInt("ASSEMBLE_TIMEOUT_SECONDS", 600),

		AudioBitrate: getEnv("AUDIO_BITRATE", "192k"),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.MinClipDuration <= 0 || c.MaxClipDuration <= 0 {
		return errors.New("clip duration bounds must be positive")
	}
	if c.MinClipDuration > c.MaxClipDuration {
		return errors.New("MIN_CLIP_DURATION must not exceed MAX_CLIP_DURATION")
	}
	if c.Mode != "quality" && c.Mode != "fast" {
		return errors.New("PROCESSING_MODE must be 'quality' or 'fast'")
	}
	if c.SelectionMode != "sequential" && c.SelectionMode != "random" {
		return errors.New("SELECTION_MODE must be 'sequential' or 'random'")
	}
	if c.VideoFPS <= 0 {
		return errors.New("VIDEO_FPS must be positive")
	}
	if c.MaxWorkers <= 0 {
		return errors.New("MAX_WORKERS must be positive")
	}
	if c.SoftwareEncoder == "" {
		return errors.New("SOFTWARE_ENCODER is required")
	}
	return nil
}

// FrameDuration returns the duration of one output frame in seconds,
// used as the sync tolerance during assembly
func (c *Config) FrameDuration() float64 {
	return 1.0 / float64(c.VideoFPS)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %s, ClipRange: [%.1f, %.1f], Mode: %s, Workers: %d}",
		c.Port, c.MinClipDuration, c.MaxClipDuration, c.Mode, c.MaxWorkers)
}
