// Package storage implements the per-user file namespace and the flat
// shared pool.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"git.uuxo.net/uuxo/fileshare-server/internal/utils"
)

var log = logrus.New()

// SetLogger replaces the package-level logger.
func SetLogger(l *logrus.Logger) { log = l }

// ErrNotFound is returned when a requested file is absent.
var ErrNotFound = errors.New("file not found")

// metadataFile is the per-owner side table recording original names.
const metadataFile = "metadata.json"

// FileInfo describes one entry of an owner's directory.
type FileInfo struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	IsDirectory bool      `json:"isDirectory"`
}

// SharedInfo describes one entry of the shared pool. SharedBy and
// OriginalName are recovered by splitting the stored name on its first
// dash.
type SharedInfo struct {
	Name         string    `json:"name"`
	OriginalName string    `json:"originalName"`
	SharedBy     string    `json:"sharedBy"`
	Size         int64     `json:"size"`
	Modified     time.Time `json:"modified"`
}

// FileMeta is the metadata recorded for one stored file.
type FileMeta struct {
	OriginalName string `json:"originalName"`
	UploadDate   string `json:"uploadDate"`
	Size         int64  `json:"size"`
}

// FileStore manages the uploads and shared directories.
type FileStore struct {
	uploadsDir   string
	sharedDir    string
	minFreeBytes uint64
}

// New creates a FileStore rooted at the given directories. minFreeBytes
// of zero disables the free-space check.
func New(uploadsDir, sharedDir string, minFreeBytes uint64) *FileStore {
	return &FileStore{
		uploadsDir:   uploadsDir,
		sharedDir:    sharedDir,
		minFreeBytes: minFreeBytes,
	}
}

// InitDirectories creates the uploads and shared directories plus one
// directory per known owner.
func (fs *FileStore) InitDirectories(ownerIDs []string) error {
	if err := os.MkdirAll(fs.uploadsDir, 0750); err != nil {
		return fmt.Errorf("failed to create uploads directory: %w", err)
	}
	if err := os.MkdirAll(fs.sharedDir, 0750); err != nil {
		return fmt.Errorf("failed to create shared directory: %w", err)
	}
	for _, id := range ownerIDs {
		if err := os.MkdirAll(filepath.Join(fs.uploadsDir, id), 0750); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", id, err)
		}
	}
	log.Infof("Storage directories initialized under %s and %s", fs.uploadsDir, fs.sharedDir)
	return nil
}

// ownerDir returns the directory holding one owner's files.
func (fs *FileStore) ownerDir(ownerID string) string {
	return filepath.Join(fs.uploadsDir, filepath.Base(ownerID))
}

// Save writes content under a generated unique name and records the
// original name in the owner's metadata table. The unique name is the
// upload timestamp plus the original extension, so the original name
// never reaches the filesystem path.
func (fs *FileStore) Save(ownerID, originalName string, content []byte) (string, error) {
	if err := fs.checkFreeSpace(); err != nil {
		return "", err
	}

	safeName := utils.SanitizeFilename(originalName)
	// Nanosecond resolution keeps rapid successive uploads from
	// colliding on the same generated name.
	uniqueName := fmt.Sprintf("%d%s", time.Now().UnixNano(), filepath.Ext(safeName))

	dir := fs.ownerDir(ownerID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create owner directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, uniqueName), content, 0640); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	if err := fs.recordMeta(ownerID, uniqueName, FileMeta{
		OriginalName: safeName,
		UploadDate:   time.Now().UTC().Format(time.RFC3339),
		Size:         int64(len(content)),
	}); err != nil {
		// The file itself landed; a broken side table is survivable and
		// logged rather than failing the upload.
		log.Warnf("Failed to update metadata for %s/%s: %v", ownerID, uniqueName, err)
	}

	log.Infof("Saved %s as %s for %s (%s)", safeName, uniqueName, ownerID, utils.FormatBytes(int64(len(content))))
	return uniqueName, nil
}

// recordMeta read-modify-writes the owner's metadata table.
func (fs *FileStore) recordMeta(ownerID, uniqueName string, meta FileMeta) error {
	metaPath := filepath.Join(fs.ownerDir(ownerID), metadataFile)

	table := make(map[string]FileMeta)
	if data, err := os.ReadFile(metaPath); err == nil {
		if err := json.Unmarshal(data, &table); err != nil {
			return fmt.Errorf("malformed metadata table: %w", err)
		}
	}

	table[uniqueName] = meta

	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath, data, 0640)
}

// Meta returns the recorded metadata for a stored file, if any.
func (fs *FileStore) Meta(ownerID, uniqueName string) (FileMeta, bool) {
	metaPath := filepath.Join(fs.ownerDir(ownerID), metadataFile)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return FileMeta{}, false
	}
	table := make(map[string]FileMeta)
	if err := json.Unmarshal(data, &table); err != nil {
		return FileMeta{}, false
	}
	meta, ok := table[uniqueName]
	return meta, ok
}

// List enumerates the owner's directory in filesystem order.
func (fs *FileStore) List(ownerID string) ([]FileInfo, error) {
	entries, err := os.ReadDir(fs.ownerDir(ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			log.Warnf("Failed to stat %s: %v", entry.Name(), err)
			continue
		}
		files = append(files, FileInfo{
			Name:        entry.Name(),
			Size:        info.Size(),
			Modified:    info.ModTime(),
			IsDirectory: entry.IsDir(),
		})
	}
	return files, nil
}

// Fetch reads a file from the owner's directory.
func (fs *FileStore) Fetch(ownerID, filename string) ([]byte, FileInfo, error) {
	safeName := utils.SanitizeFilename(filename)
	path := filepath.Join(fs.ownerDir(ownerID), safeName)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, FileInfo{}, ErrNotFound
		}
		return nil, FileInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("failed to read file: %w", err)
	}

	return content, FileInfo{
		Name:        safeName,
		Size:        info.Size(),
		Modified:    info.ModTime(),
		IsDirectory: info.IsDir(),
	}, nil
}

// Delete removes a file from the owner's directory. A missing file
// reports false, never an error.
func (fs *FileStore) Delete(ownerID, filename string) bool {
	safeName := utils.SanitizeFilename(filename)
	path := filepath.Join(fs.ownerDir(ownerID), safeName)

	if _, err := os.Stat(path); err != nil {
		return false
	}
	if err := os.Remove(path); err != nil {
		log.Errorf("Failed to delete %s: %v", path, err)
		return false
	}
	log.Infof("Deleted %s for %s", safeName, ownerID)
	return true
}

// Share copies a file from the owner's directory into the shared pool
// under "<ownerID>-<filename>". Sharing the same name twice overwrites
// the earlier copy; the shared copy's lifecycle is independent of the
// source.
func (fs *FileStore) Share(ownerID, filename string) bool {
	safeName := utils.SanitizeFilename(filename)
	srcPath := filepath.Join(fs.ownerDir(ownerID), safeName)
	dstPath := filepath.Join(fs.sharedDir, fmt.Sprintf("%s-%s", filepath.Base(ownerID), safeName))

	if _, err := os.Stat(srcPath); err != nil {
		// The file may be known by its original name while stored under
		// its generated unique name; resolve through the metadata table.
		if unique, ok := fs.uniqueNameFor(ownerID, safeName); ok {
			srcPath = filepath.Join(fs.ownerDir(ownerID), unique)
		} else {
			log.Warnf("Share source not found: %s", srcPath)
			return false
		}
	}
	if err := copyFile(srcPath, dstPath); err != nil {
		log.Errorf("Failed to share %s: %v", srcPath, err)
		return false
	}
	log.Infof("Shared %s as %s", srcPath, filepath.Base(dstPath))
	return true
}

// uniqueNameFor scans the owner's metadata table for an entry matching
// the given original name.
func (fs *FileStore) uniqueNameFor(ownerID, originalName string) (string, bool) {
	metaPath := filepath.Join(fs.ownerDir(ownerID), metadataFile)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return "", false
	}
	table := make(map[string]FileMeta)
	if err := json.Unmarshal(data, &table); err != nil {
		return "", false
	}
	for unique, meta := range table {
		if meta.OriginalName == originalName {
			return unique, true
		}
	}
	return "", false
}

// FetchShared resolves a lookup name against the shared pool. An exact
// stored-name match wins; otherwise the lookup is matched against the
// suffix after each stored name's first dash, supporting legacy
// references that predate owner prefixing. Enumeration is sorted, so
// duplicate suffixes resolve deterministically to the first prefix.
func (fs *FileStore) FetchShared(lookupName string) ([]byte, FileInfo, error) {
	lookup := utils.SanitizeFilename(lookupName)

	entries, err := os.ReadDir(fs.sharedDir)
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("failed to list shared directory: %w", err)
	}

	var match string
	for _, entry := range entries {
		if entry.Name() == lookup {
			match = entry.Name()
			break
		}
	}
	if match == "" {
		for _, entry := range entries {
			if _, suffix, found := strings.Cut(entry.Name(), "-"); found && suffix == lookup {
				match = entry.Name()
				break
			}
		}
	}
	if match == "" {
		return nil, FileInfo{}, ErrNotFound
	}

	path := filepath.Join(fs.sharedDir, match)
	info, err := os.Stat(path)
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("failed to stat shared file: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("failed to read shared file: %w", err)
	}

	return content, FileInfo{
		Name:     match,
		Size:     info.Size(),
		Modified: info.ModTime(),
	}, nil
}

// ListShared enumerates the shared pool, splitting each stored name on
// its first dash into sharer and original name. A name with no dash
// degenerates to both fields holding the whole name.
func (fs *FileStore) ListShared() ([]SharedInfo, error) {
	entries, err := os.ReadDir(fs.sharedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared directory: %w", err)
	}

	shared := make([]SharedInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			log.Warnf("Failed to stat shared %s: %v", entry.Name(), err)
			continue
		}
		name := entry.Name()
		sharedBy, originalName := name, name
		if by, orig, found := strings.Cut(name, "-"); found {
			sharedBy, originalName = by, orig
		}
		shared = append(shared, SharedInfo{
			Name:         name,
			OriginalName: originalName,
			SharedBy:     sharedBy,
			Size:         info.Size(),
			Modified:     info.ModTime(),
		})
	}
	return shared, nil
}

// OwnerDir exposes the owner's directory path for subprocess tools that
// operate on it (compression, analysis).
func (fs *FileStore) OwnerDir(ownerID string) string {
	return fs.ownerDir(ownerID)
}

// OwnerFilePath returns the sanitized absolute-ish path of one owner
// file without reading it, for tools that take a path argument.
func (fs *FileStore) OwnerFilePath(ownerID, filename string) (string, error) {
	safeName := utils.SanitizeFilename(filename)
	path := filepath.Join(fs.ownerDir(ownerID), safeName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	return path, nil
}

func (fs *FileStore) checkFreeSpace() error {
	if fs.minFreeBytes == 0 {
		return nil
	}
	return CheckStorageSpace(fs.uploadsDir, fs.minFreeBytes)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
