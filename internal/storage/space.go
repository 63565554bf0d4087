//go:build !windows

package storage

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// CheckStorageSpace checks if there is enough free disk space.
func CheckStorageSpace(path string, minFreeBytes uint64) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Errorf("failed to check storage space: %w", err)
	}
	availableBytes := stat.Bavail * uint64(stat.Bsize)
	if availableBytes < minFreeBytes {
		return fmt.Errorf("insufficient storage space: %d bytes available, %d bytes required",
			availableBytes, minFreeBytes)
	}
	return nil
}

// CheckFreeSpaceWithRetry checks available disk space with retries.
func CheckFreeSpaceWithRetry(path string, minFreeBytes uint64, retries int, retryDelay time.Duration) error {
	var lastErr error
	for i := 0; i < retries; i++ {
		if i > 0 {
			time.Sleep(retryDelay)
		}
		err := CheckStorageSpace(path, minFreeBytes)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warnf("Storage space check attempt %d/%d failed: %v", i+1, retries, err)
	}
	return fmt.Errorf("storage space check failed after %d attempts: %v", retries, lastErr)
}
