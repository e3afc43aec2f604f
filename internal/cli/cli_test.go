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

package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := Run([]string{"removebg-square", "version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "removebg-square") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := Run([]string{"removebg-square", "help"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{"run", "set-key", "version"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("usage text misses %q", want)
		}
	}
}

func TestRunBadFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := Run([]string{"removebg-square", "run", "-no-such-flag"}, &stdout, &stderr); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestRunRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero out-size", []string{"removebg-square", "run", "-out-size", "0"}},
		{"negative padding", []string{"removebg-square", "run", "-padding", "-1"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := Run(test.args, &stdout, &stderr); code != 2 {
				t.Errorf("exit code = %d, want 2", code)
			}
			if !strings.Contains(stderr.String(), "Error:") {
				t.Errorf("stderr = %q", stderr.String())
			}
		})
	}
}

func TestRunNoAPIKey(t *testing.T) {
	t.Setenv("REMOVE_BG_API_KEY", "")
	// point the key store lookup at an empty config dir
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	code := Run([]string{"removebg-square", "run", "-input-dir", t.TempDir(), "-output-dir", t.TempDir()}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "no API key") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestResolveAPIKeyPrecedence(t *testing.T) {
	t.Setenv("REMOVE_BG_API_KEY", "from-env")

	got, err := resolveAPIKey("from-flag", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "from-flag" {
		t.Errorf("flag value ignored, got %q", got)
	}

	got, err = resolveAPIKey("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "from-env" {
		t.Errorf("env value ignored, got %q", got)
	}
}
