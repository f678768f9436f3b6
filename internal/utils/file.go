package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot.
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an image extension.
func IsImageFile(filename string) bool {
	ext := GetFileExtension(filename)
	imageExts := []string{"jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp"}

	for _, imgExt := range imageExts {
		if ext == imgExt {
			return true
		}
	}
	return false
}

// BaseName returns the file name without directory or extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReconstructionFilename builds the output path for a saved reconstruction.
// When outDir is empty the file is placed next to the thumbnail.
func ReconstructionFilename(thumbnailPath, outDir, format string) string {
	name := fmt.Sprintf("%s.reconstructed.%s", BaseName(thumbnailPath), format)
	if outDir == "" {
		outDir = filepath.Dir(thumbnailPath)
	}
	return filepath.Join(outDir, name)
}

// VisualizationFilename builds the output path for a saved match
// visualization. When outDir is empty the file is placed next to the
// thumbnail.
func VisualizationFilename(thumbnailPath, outDir, format string) string {
	name := fmt.Sprintf("%s.visualized.%s", BaseName(thumbnailPath), format)
	if outDir == "" {
		outDir = filepath.Dir(thumbnailPath)
	}
	return filepath.Join(outDir, name)
}

// FilePair is one thumbnail/master unit of work.
type FilePair struct {
	Thumbnail string
	Master    string
}

// PairFiles groups positional arguments into thumbnail/master pairs.
func PairFiles(args []string) ([]FilePair, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no input files given")
	}
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("files must be provided in thumbnail and master pairs, got %d", len(args))
	}

	pairs := make([]FilePair, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		pairs = append(pairs, FilePair{Thumbnail: args[i], Master: args[i+1]})
	}
	return pairs, nil
}

// FileExists checks if a file exists and is not a directory.
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}
