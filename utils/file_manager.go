package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CreateTempDir creates temporary directories for a job
func CreateTempDir(baseDir, jobID string) (string, error) {
	jobDir := filepath.Join(baseDir, jobID)

	// Create subdirectories
	dirs := []string{
		jobDir,
		filepath.Join(jobDir, "clips"),
		filepath.Join(jobDir, "output"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return jobDir, nil
}

// CleanupJobFiles removes all temporary files for a job
func CleanupJobFiles(baseDir, jobID string) error {
	jobDir := filepath.Join(baseDir, jobID)
	return os.RemoveAll(jobDir)
}

// ScheduleFileRemoval removes a single file after a delay
func ScheduleFileRemoval(path string, delay time.Duration) {
	go func() {
		time.Sleep(delay)
		_ = os.Remove(path)
	}()
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetFileSize returns file size in bytes
func GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// WriteConcatList writes an ffmpeg concat demuxer list file
func WriteConcatList(listPath string, files []string) error {
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer f.Close()

	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		if _, err := fmt.Fprintf(f, "file '%s'\n", abs); err != nil {
			return fmt.Errorf("failed to write concat list: %w", err)
		}
	}

	return nil
}
