// removebg-square - batch background removal with XMP provenance tagging
// Copyright (C) 2026  The bg-remove-wpd authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pipeline

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// decoders for the formats the upload step cannot pass through as-is
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat reports an input this build cannot decode.  RAW
// formats land here: decoding NEF/ARW/CR3 needs a camera-raw library
// with no Go equivalent, so those files are quarantined instead.
var ErrUnsupportedFormat = errors.New("pipeline: unsupported input format")

var passthroughExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

var decodeExt = map[string]bool{
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

var rawExt = map[string]bool{
	".nef": true,
	".arw": true,
	".cr3": true,
}

// listInputs returns the candidate image files in dir, sorted by name.
func listInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if passthroughExt[ext] || decodeExt[ext] || rawExt[ext] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// normalizeInput makes sure the file at path is in a format the
// background-removal service accepts.  PNG and JPEG pass through
// unchanged; other decodable formats are re-encoded as PNG into tempDir.
func normalizeInput(path, tempDir string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case passthroughExt[ext]:
		return path, nil
	case rawExt[ext]:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	case decodeExt[ext]:
		// handled below
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("pipeline: opening %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("pipeline: decoding %s: %w", path, err)
	}

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("pipeline: %w", err)
	}
	out := filepath.Join(tempDir, stem(path)+"_normalized.png")
	if err := writePNG(out, img); err != nil {
		return "", err
	}
	return out, nil
}

// writePNG encodes img to path.
func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pipeline: creating %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("pipeline: encoding %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("pipeline: closing %s: %w", path, err)
	}
	return nil
}

// stem returns the file name without directory or extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
