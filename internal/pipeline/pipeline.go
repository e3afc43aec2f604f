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

// Package pipeline runs the batch: every image in the input folder is
// sent through background removal, squared on a white canvas, written to
// the output folder and tagged with XMP provenance.
//
// Failures are isolated per file.  A file that cannot be processed is
// copied to the bad/ quarantine folder together with an error note, and
// the run continues with the next file.  Only context cancellation stops
// the batch early.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/chickensavory/bg-remove-wpd/internal/canvas"
	"github.com/chickensavory/bg-remove-wpd/internal/provenance"
	"github.com/chickensavory/bg-remove-wpd/internal/removebg"
)

// A Remover produces a background-removed cutout for an image file.
// *removebg.Client implements it.
type Remover interface {
	Remove(ctx context.Context, path, size string) ([]byte, error)
}

// Config holds the settings for one batch run.
type Config struct {
	InputDir  string
	OutputDir string

	OutSize    int            // output square edge length in pixels
	Margins    canvas.Margins // whitespace around the subject
	RemoveSize string         // remove.bg "size" parameter

	Tool     string // recorded in the XMP provenance
	EmbedXMP bool   // embed the packet into PNG outputs
	Sidecar  bool   // also write .xmp sidecar files

	RunID    string
	Progress bool      // render a progress bar on Log
	Log      io.Writer // defaults to io.Discard
}

// A Record describes the outcome for one input file.
type Record struct {
	Src     string
	Dest    string
	Reason  string // empty for processed files
	Error   string
	Seconds float64
}

// Result summarizes a batch run.
type Result struct {
	Written          []string
	Processed        int
	Unprocessed      int
	ProcessedFiles   []Record
	UnprocessedFiles []Record
	RunID            string
}

// Outcome reason codes recorded for quarantined files.
const (
	reasonNormalizeFailed = "normalize_failed"
	reasonRemoveRejected  = "removebg_rejected"
	reasonRemoveFailed    = "removebg_request_failed"
	reasonDecodeFailed    = "decode_cutout_failed"
	reasonComposeFailed   = "compose_failed"
	reasonSaveFailed      = "save_failed"
)

// Process runs the batch described by cfg, removing backgrounds with
// client.  It returns an error only for run-level problems (unreadable
// input folder, cancellation); per-file failures are reported in the
// Result.
func Process(ctx context.Context, client Remover, cfg Config) (*Result, error) {
	log := cfg.Log
	if log == nil {
		log = io.Discard
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if err := os.MkdirAll(cfg.InputDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	result := &Result{RunID: cfg.RunID}
	runDate := time.Now().Format("2006-01-02")
	totalStart := time.Now()

	files, err := listInputs(cfg.InputDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		fmt.Fprintln(log, "No input files found.")
		return result, nil
	}

	tempDir := filepath.Join(cfg.OutputDir, "_tmp_removebg")
	badDir := filepath.Join(cfg.OutputDir, "bad")

	var bar *pb.ProgressBar
	if cfg.Progress {
		bar = pb.New(len(files)).SetWriter(log).Start()
		defer bar.Finish()
	}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		start := time.Now()
		fmt.Fprintf(log, "[%d/%d] Processing: %s\n", i+1, len(files), path)

		outPath, reason, procErr := processOne(ctx, client, cfg, path, tempDir, badDir, runDate, log)
		seconds := time.Since(start).Seconds()

		if procErr != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			fmt.Fprintf(log, "  -> Skipped (%s)\n", reason)
			result.Unprocessed++
			result.UnprocessedFiles = append(result.UnprocessedFiles, Record{
				Src:     filepath.Base(path),
				Dest:    filepath.Base(filepath.Join(badDir, filepath.Base(path))),
				Reason:  reason,
				Error:   truncate(procErr.Error(), 2000),
				Seconds: seconds,
			})
		} else {
			fmt.Fprintf(log, "  Wrote: %s\n", outPath)
			fmt.Fprintf(log, "  Per-image time: %.2fs\n", seconds)
			result.Written = append(result.Written, outPath)
			result.Processed++
			result.ProcessedFiles = append(result.ProcessedFiles, Record{
				Src:     filepath.Base(path),
				Dest:    filepath.Base(outPath),
				Seconds: seconds,
			})
		}

		if bar != nil {
			bar.Increment()
		}
	}

	fmt.Fprintf(log, "[TOTAL] Finished %d/%d images in %.2fs\n",
		result.Processed, len(files), time.Since(totalStart).Seconds())
	return result, nil
}

// processOne takes one input through normalize, background removal,
// compositing, saving and tagging.  On failure it quarantines the input
// and returns a reason code with the error.
func processOne(ctx context.Context, client Remover, cfg Config, path, tempDir, badDir, runDate string, log io.Writer) (string, string, error) {
	normalized, err := normalizeInput(path, tempDir)
	if err != nil {
		quarantine(path, badDir, "normalize/open failed (skipped)", err.Error())
		return "", reasonNormalizeFailed, err
	}

	cut, err := client.Remove(ctx, normalized, cfg.RemoveSize)
	if err != nil {
		reason := reasonRemoveFailed
		note := "remove.bg request failed (network/timeout)"
		if apiErr, ok := removebg.AsAPIError(err); ok {
			reason = reasonRemoveRejected
			note = fmt.Sprintf("remove.bg HTTP %d (skipped)", apiErr.StatusCode)
			if !apiErr.Rejected() {
				reason = reasonRemoveFailed
			}
		}
		quarantine(path, badDir, note, err.Error())
		return "", reason, err
	}

	img, _, err := image.Decode(bytes.NewReader(cut))
	if err != nil {
		quarantine(path, badDir, "failed to decode remove.bg output (skipped)", err.Error())
		return "", reasonDecodeFailed, err
	}

	composed, err := canvas.Compose(img, cfg.OutSize, cfg.Margins)
	if err != nil {
		quarantine(path, badDir, "canvas compose failed (skipped)", err.Error())
		return "", reasonComposeFailed, err
	}

	outPath := filepath.Join(cfg.OutputDir, stem(path)+".png")
	if err := writePNG(outPath, composed); err != nil {
		quarantine(path, badDir, "save output failed (skipped)", err.Error())
		return "", reasonSaveFailed, err
	}

	tagErr := provenance.WriteTags(outPath, provenance.Options{
		Tool:     cfg.Tool,
		Date:     runDate,
		EmbedPNG: cfg.EmbedXMP,
		Sidecar:  cfg.Sidecar,
	})
	if tagErr != nil {
		// the output image itself is fine; report and move on
		fmt.Fprintf(log, "  [XMP] FAILED to tag %s: %v\n", filepath.Base(outPath), tagErr)
	} else {
		fmt.Fprintf(log, "  [XMP] tagged: %s (ProcessedWith:%s)\n", filepath.Base(outPath), cfg.Tool)
	}

	return outPath, "", nil
}

// quarantine copies a failed input into badDir and drops an error note
// beside it.  Quarantining is best effort; a failure here must not mask
// the original problem.
func quarantine(src, badDir, reason, detail string) {
	if err := os.MkdirAll(badDir, 0o755); err != nil {
		return
	}
	if data, err := os.ReadFile(src); err == nil {
		_ = os.WriteFile(filepath.Join(badDir, filepath.Base(src)), data, 0o644)
	}
	note := reason + "\n"
	if detail != "" {
		note += "\n" + truncate(detail, 2000) + "\n"
	}
	_ = os.WriteFile(filepath.Join(badDir, stem(src)+"_ERROR.txt"), []byte(note), 0o644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
