//go:build windows

package storage

import "time"

// CheckStorageSpace is a no-op on Windows.
func CheckStorageSpace(path string, minFreeBytes uint64) error {
	return nil
}

// CheckFreeSpaceWithRetry is a no-op on Windows.
func CheckFreeSpaceWithRetry(path string, minFreeBytes uint64, retries int, retryDelay time.Duration) error {
	return nil
}
