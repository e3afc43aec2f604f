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
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chickensavory/bg-remove-wpd/internal/canvas"
	"github.com/chickensavory/bg-remove-wpd/internal/provenance"
	"github.com/chickensavory/bg-remove-wpd/internal/removebg"
)

// cutoutPNG encodes a 10x10 transparent image with an opaque center.
func cutoutPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 3; y < 7; y++ {
		for x := 3; x < 7; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fakeRemover returns canned cutouts, or an error, per call.
type fakeRemover struct {
	cutout []byte
	err    error
	calls  []string
}

func (f *fakeRemover) Remove(ctx context.Context, path, size string) ([]byte, error) {
	f.calls = append(f.calls, filepath.Base(path))
	if f.err != nil {
		return nil, f.err
	}
	return f.cutout, nil
}

func writeInputPNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		InputDir:  t.TempDir(),
		OutputDir: t.TempDir(),
		OutSize:   64,
		Margins:   canvas.Uniform(8),
		Tool:      "removebg-square-cli",
		EmbedXMP:  true,
		RunID:     "test-run",
	}
}

func TestProcessHappyPath(t *testing.T) {
	cfg := testConfig(t)
	writeInputPNG(t, cfg.InputDir, "b.png")
	writeInputPNG(t, cfg.InputDir, "a.png")

	client := &fakeRemover{cutout: cutoutPNG(t)}
	res, err := Process(context.Background(), client, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if res.Processed != 2 || res.Unprocessed != 0 {
		t.Fatalf("processed %d, unprocessed %d", res.Processed, res.Unprocessed)
	}
	// inputs are handled in name order
	if len(client.calls) != 2 || client.calls[0] != "a.png" || client.calls[1] != "b.png" {
		t.Errorf("remove calls = %v", client.calls)
	}
	for _, out := range res.Written {
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
			t.Errorf("%s: bounds = %v", out, b)
		}
		packet, err := provenance.ExtractPNG(out)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(packet), "ProcessedWith:removebg-square-cli") {
			t.Errorf("%s: provenance missing from embedded packet", out)
		}
	}
}

func TestProcessEmptyInput(t *testing.T) {
	cfg := testConfig(t)
	res, err := Process(context.Background(), &fakeRemover{}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 0 || len(res.Written) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestProcessQuarantinesRejection(t *testing.T) {
	cfg := testConfig(t)
	writeInputPNG(t, cfg.InputDir, "in.png")

	client := &fakeRemover{err: &removebg.APIError{StatusCode: 402, Body: "insufficient credits"}}
	res, err := Process(context.Background(), client, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if res.Unprocessed != 1 {
		t.Fatalf("unprocessed = %d", res.Unprocessed)
	}
	rec := res.UnprocessedFiles[0]
	if rec.Reason != "removebg_rejected" {
		t.Errorf("reason = %q", rec.Reason)
	}
	badDir := filepath.Join(cfg.OutputDir, "bad")
	if _, err := os.Stat(filepath.Join(badDir, "in.png")); err != nil {
		t.Errorf("quarantined copy missing: %v", err)
	}
	note, err := os.ReadFile(filepath.Join(badDir, "in_ERROR.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(note), "402") {
		t.Errorf("error note = %q", note)
	}
}

func TestProcessQuarantinesNetworkFailure(t *testing.T) {
	cfg := testConfig(t)
	writeInputPNG(t, cfg.InputDir, "in.png")

	client := &fakeRemover{err: errors.New("dial tcp: connection refused")}
	res, err := Process(context.Background(), client, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Unprocessed != 1 || res.UnprocessedFiles[0].Reason != "removebg_request_failed" {
		t.Errorf("result = %+v", res)
	}
}

func TestProcessQuarantinesRawInput(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.InputDir, "shot.nef"), []byte("not really raw"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := &fakeRemover{cutout: cutoutPNG(t)}
	res, err := Process(context.Background(), client, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Unprocessed != 1 || res.UnprocessedFiles[0].Reason != "normalize_failed" {
		t.Fatalf("result = %+v", res)
	}
	if len(client.calls) != 0 {
		t.Errorf("remove.bg was called for a RAW file: %v", client.calls)
	}
}

func TestProcessQuarantinesBadCutout(t *testing.T) {
	cfg := testConfig(t)
	writeInputPNG(t, cfg.InputDir, "in.png")

	client := &fakeRemover{cutout: []byte("this is not an image")}
	res, err := Process(context.Background(), client, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Unprocessed != 1 || res.UnprocessedFiles[0].Reason != "decode_cutout_failed" {
		t.Errorf("result = %+v", res)
	}
}

func TestProcessContinuesAfterFailure(t *testing.T) {
	cfg := testConfig(t)
	writeInputPNG(t, cfg.InputDir, "good.png")
	if err := os.WriteFile(filepath.Join(cfg.InputDir, "bad.nef"), []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := &fakeRemover{cutout: cutoutPNG(t)}
	res, err := Process(context.Background(), client, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 1 || res.Unprocessed != 1 {
		t.Errorf("processed %d, unprocessed %d", res.Processed, res.Unprocessed)
	}
}

func TestProcessCancellation(t *testing.T) {
	cfg := testConfig(t)
	writeInputPNG(t, cfg.InputDir, "in.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Process(ctx, &fakeRemover{}, cfg); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestProcessSidecar(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sidecar = true
	writeInputPNG(t, cfg.InputDir, "in.png")

	res, err := Process(context.Background(), &fakeRemover{cutout: cutoutPNG(t)}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Written) != 1 {
		t.Fatalf("written = %v", res.Written)
	}
	sidecar := res.Written[0] + ".xmp"
	data, err := os.ReadFile(sidecar)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "ProcessedWith:removebg-square-cli") {
		t.Errorf("sidecar = %q", data)
	}
}

func TestNormalizeInput(t *testing.T) {
	dir := t.TempDir()
	tempDir := filepath.Join(dir, "tmp")

	pngPath := writeInputPNG(t, dir, "img.png")
	got, err := normalizeInput(pngPath, tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if got != pngPath {
		t.Errorf("PNG must pass through, got %q", got)
	}

	// BMP goes through a PNG re-encode
	bmpPath := filepath.Join(dir, "img.bmp")
	writeBMP(t, bmpPath)
	got, err = normalizeInput(bmpPath, tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(got) != ".png" || !strings.Contains(got, "_normalized") {
		t.Errorf("normalized path = %q", got)
	}
	f, err := os.Open(got)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Errorf("normalized output is not a PNG: %v", err)
	}

	if _, err := normalizeInput(filepath.Join(dir, "x.arw"), tempDir); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

// writeBMP emits a minimal 2x2 24-bit BMP by hand.
func writeBMP(t *testing.T, path string) {
	t.Helper()
	// 2 rows of 2 pixels, rows padded to 4-byte multiples (2*3 -> 8)
	pix := []byte{
		255, 255, 255, 0, 0, 255, 0, 0,
		0, 255, 0, 255, 0, 0, 0, 0,
	}
	header := []byte{
		'B', 'M',
		70, 0, 0, 0, // file size: 14+40+16
		0, 0, 0, 0,
		54, 0, 0, 0, // pixel data offset
		40, 0, 0, 0, // info header size
		2, 0, 0, 0, // width
		2, 0, 0, 0, // height
		1, 0, // planes
		24, 0, // bpp
		0, 0, 0, 0, // no compression
		16, 0, 0, 0, // image size
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
	}
	if err := os.WriteFile(path, append(header, pix...), 0o644); err != nil {
		t.Fatal(err)
	}
}
