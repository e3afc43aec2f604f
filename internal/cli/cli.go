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

// Package cli implements the removebg-square command line interface.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/chickensavory/bg-remove-wpd/internal/canvas"
	"github.com/chickensavory/bg-remove-wpd/internal/keystore"
	"github.com/chickensavory/bg-remove-wpd/internal/pipeline"
	"github.com/chickensavory/bg-remove-wpd/internal/provenance"
	"github.com/chickensavory/bg-remove-wpd/internal/removebg"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const apiKeyEnv = "REMOVE_BG_API_KEY"

const usageText = `Usage: removebg-square [command] [flags]

Batch remove backgrounds with remove.bg and output squared images.

Commands:
  run       process a folder of images (default)
  set-key   store the remove.bg API key encrypted on disk
  version   print the version

Run "removebg-square <command> -h" for command flags.
`

// Run executes the command line given in args (args[0] is the program
// name) and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := "run"
	rest := args[1:]
	if len(rest) > 0 {
		switch rest[0] {
		case "run", "set-key", "version":
			cmd, rest = rest[0], rest[1:]
		case "help", "-h", "--help":
			fmt.Fprint(stdout, usageText)
			return 0
		}
	}

	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "removebg-square %s\n", Version)
		return 0
	case "set-key":
		return runSetKey(rest, stdout, stderr)
	default:
		return runBatch(rest, stdout, stderr)
	}
}

func runBatch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputDir := fs.String("input-dir", "input", "folder of input images")
	outputDir := fs.String("output-dir", "output", "folder for output images")
	outSize := fs.Int("out-size", 1000, "final output square size in pixels")
	padding := fs.Int("padding", 50, "padding around the subject in pixels")
	removeSize := fs.String("remove-size", "auto", `remove.bg "size" parameter (auto, preview, full)`)
	apiKey := fs.String("api-key", "", "remove.bg API key (overrides environment and stored key)")
	tool := fs.String("tool", provenance.DefaultTool, "tool name recorded in the XMP provenance")
	sidecar := fs.Bool("sidecar", false, "also write .xmp sidecar files")
	noEmbed := fs.Bool("no-embed", false, "do not embed XMP into PNG outputs")
	noProgress := fs.Bool("no-progress", false, "disable the progress bar")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *outSize < 1 {
		fmt.Fprintln(stderr, "Error: -out-size must be at least 1")
		return 2
	}
	if *padding < 0 {
		fmt.Fprintln(stderr, "Error: -padding must not be negative")
		return 2
	}

	key, err := resolveAPIKey(*apiKey, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := pipeline.Process(ctx, removebg.New(key), pipeline.Config{
		InputDir:   *inputDir,
		OutputDir:  *outputDir,
		OutSize:    *outSize,
		Margins:    canvas.Uniform(*padding),
		RemoveSize: *removeSize,
		Tool:       *tool,
		EmbedXMP:   !*noEmbed,
		Sidecar:    *sidecar,
		RunID:      time.Now().Format("20060102-150405"),
		Progress:   !*noProgress,
		Log:        stdout,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Wrote %d file(s) to: %s\n", len(result.Written), *outputDir)
	if result.Unprocessed > 0 {
		fmt.Fprintf(stdout, "%d file(s) could not be processed, see %s\n",
			result.Unprocessed, filepath.Join(*outputDir, "bad"))
		return 1
	}
	return 0
}

func runSetKey(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("set-key", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiKey := fs.String("api-key", "", "remove.bg API key to store (prompted for when empty)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	key := *apiKey
	if key == "" {
		var err error
		key, err = promptSecret(stdout, "remove.bg API key: ")
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	if key == "" {
		fmt.Fprintln(stderr, "Error: empty API key")
		return 1
	}

	passphrase, err := promptSecret(stdout, "Passphrase to protect the key: ")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	confirm, err := promptSecret(stdout, "Repeat passphrase: ")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if passphrase != confirm {
		fmt.Fprintln(stderr, "Error: passphrases do not match")
		return 1
	}

	path, err := keystore.DefaultPath()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := keystore.Save(path, key, []byte(passphrase)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Stored API key in %s\n", path)
	return 0
}

// resolveAPIKey picks the remove.bg key in order of precedence: the
// -api-key flag, the REMOVE_BG_API_KEY environment variable, then the
// encrypted key store.
func resolveAPIKey(flagValue string, stdout io.Writer) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(apiKeyEnv); env != "" {
		return env, nil
	}

	path, err := keystore.DefaultPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			passphrase, promptErr := promptSecret(stdout, "Passphrase for stored API key: ")
			if promptErr != nil {
				return "", promptErr
			}
			return keystore.Load(path, []byte(passphrase))
		}
	}
	return "", fmt.Errorf("no API key: pass -api-key, set %s or run set-key", apiKeyEnv)
}

// promptSecret reads a line from the terminal without echo.
func promptSecret(stdout io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal, cannot prompt for %q", prompt)
	}
	fmt.Fprint(stdout, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(secret), nil
}
