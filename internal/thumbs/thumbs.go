// Package thumbs generates thumbnails for uploaded images.
package thumbs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogger replaces the package-level logger.
func SetLogger(l *logrus.Logger) { log = l }

// thumbDir is the per-owner subdirectory holding generated thumbnails.
const thumbDir = ".thumbnails"

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
}

// IsImage reports whether the filename looks like a supported image.
func IsImage(filename string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Generator creates bounded-size thumbnails next to stored images.
type Generator struct {
	maxEdge int
}

// NewGenerator creates a thumbnail generator. maxEdge bounds the longer
// side of the generated image.
func NewGenerator(maxEdge int) *Generator {
	if maxEdge <= 0 {
		maxEdge = 256
	}
	return &Generator{maxEdge: maxEdge}
}

// Generate renders a thumbnail of the stored image into the owner
// directory's thumbnail subdirectory, keyed by the stored name. Failures
// are returned for logging but never block the upload that triggered
// generation.
func (g *Generator) Generate(ownerDir, storedName string) error {
	src := filepath.Join(ownerDir, storedName)
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}

	thumb := imaging.Fit(img, g.maxEdge, g.maxEdge, imaging.Lanczos)

	dir := filepath.Join(ownerDir, thumbDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	dst := filepath.Join(dir, storedName+".png")
	if err := imaging.Save(thumb, dst); err != nil {
		return fmt.Errorf("failed to save thumbnail: %w", err)
	}
	log.Debugf("Thumbnail generated: %s", dst)
	return nil
}

// Path returns the thumbnail path for a stored name, if one exists.
func (g *Generator) Path(ownerDir, storedName string) (string, bool) {
	path := filepath.Join(ownerDir, thumbDir, storedName+".png")
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}
