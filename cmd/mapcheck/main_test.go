package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pixil98/go-arena/internal/maps"
	"github.com/pixil98/go-testutil"
)

const goodDoc = `
id: %[1]s
name: %[1]s
time-limit: 300
min-players: 2
max-players: 8
waiting-area: {x: 0, y: 70, z: 0}
game-boundary:
  min: {x: -50, y: 0, z: -50}
  max: {x: 50, y: 128, z: 50}
spawn-points:
  red:
    - {x: 10, y: 65, z: 0}
  blue:
    - {x: -10, y: 65, z: 0}
`

func writeMap(t *testing.T, root, key, doc string) {
	t.Helper()
	dir := filepath.Join(root, key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, maps.DefinitionFile), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, maps.LevelFile), []byte("level"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRun(t *testing.T) {
	tests := map[string]struct {
		setup      func(t *testing.T, root string)
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		"valid root": {
			setup: func(t *testing.T, root string) {
				writeMap(t, root, "dust", fmt.Sprintf(goodDoc, "dust"))
				writeMap(t, root, "mesa", fmt.Sprintf(goodDoc, "mesa"))
			},
			args:       []string{"--rotation", "dust,mesa"},
			wantCode:   0,
			wantStdout: "2 map(s) ok",
		},
		"quiet prints nothing": {
			setup: func(t *testing.T, root string) {
				writeMap(t, root, "dust", fmt.Sprintf(goodDoc, "dust"))
			},
			args:     []string{"-q"},
			wantCode: 0,
		},
		"broken definition": {
			setup: func(t *testing.T, root string) {
				writeMap(t, root, "dust", fmt.Sprintf(goodDoc, "dust"))
				writeMap(t, root, "bad", "id: bad\n")
			},
			wantCode:   1,
			wantStdout: "dust",
			wantStderr: "bad",
		},
		"unknown rotation entry": {
			setup: func(t *testing.T, root string) {
				writeMap(t, root, "dust", fmt.Sprintf(goodDoc, "dust"))
			},
			args:       []string{"--rotation", "dust,ghost"},
			wantCode:   1,
			wantStderr: `rotation entry "ghost" is not an available map`,
		},
		"empty root": {
			setup:      func(t *testing.T, root string) {},
			wantCode:   1,
			wantStderr: "map not found",
		},
		"bad flag": {
			setup:    func(t *testing.T, root string) {},
			args:     []string{"--nope"},
			wantCode: 2,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			tt.setup(t, root)

			var stdout, stderr bytes.Buffer
			code := run(append([]string{"--root", root}, tt.args...), &stdout, &stderr)

			testutil.AssertEqual(t, "exit code", code, tt.wantCode)
			if tt.wantStdout != "" && !strings.Contains(stdout.String(), tt.wantStdout) {
				t.Errorf("stdout %q missing %q", stdout.String(), tt.wantStdout)
			}
			if tt.wantStdout == "" && tt.wantCode == 0 && stdout.Len() != 0 {
				t.Errorf("expected no stdout, got %q", stdout.String())
			}
			if tt.wantStderr != "" && !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr %q missing %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	root := t.TempDir()
	writeMap(t, root, "dust", fmt.Sprintf(goodDoc, "dust"))

	defs, err := check(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := summarize(defs)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	testutil.AssertEqual(t, "line count", len(lines), 3)
	for _, want := range []string{"dust", "2-8", "300s"} {
		if !strings.Contains(lines[2], want) {
			t.Errorf("row %q missing %q", lines[2], want)
		}
	}
}
