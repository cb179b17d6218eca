package processor

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// stubTools populates a directory with executable stand-ins and points
// PATH at it, so lookups see exactly the named tools.
func stubTools(t *testing.T, names ...string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("PATH stubbing relies on unix executable bits")
	}
	dir := t.TempDir()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", dir)
}

func TestCheckDepsImagesOnly(t *testing.T) {
	stubTools(t, "cjxl", "exiftool")
	if err := CheckDeps(false, true, false, false, nil); err != nil {
		t.Errorf("CheckDeps = %v, want nil for image-only work", err)
	}
}

func TestCheckDepsMissingCjxl(t *testing.T) {
	stubTools(t, "exiftool")
	if err := CheckDeps(false, true, false, false, nil); !errors.Is(err, ErrCjxlNotFound) {
		t.Errorf("CheckDeps = %v, want ErrCjxlNotFound", err)
	}
}

func TestCheckDepsVideoNeedsFfmpeg(t *testing.T) {
	stubTools(t, "cjxl", "exiftool")
	if err := CheckDeps(true, true, false, false, nil); !errors.Is(err, ErrFfmpegNotFound) {
		t.Errorf("CheckDeps = %v, want ErrFfmpegNotFound", err)
	}

	stubTools(t, "cjxl", "exiftool", "ffmpeg")
	if err := CheckDeps(true, true, false, false, nil); !errors.Is(err, ErrFfprobeNotFound) {
		t.Errorf("CheckDeps = %v, want ErrFfprobeNotFound", err)
	}
}

func TestCheckDepsExploreRequiresDjxl(t *testing.T) {
	stubTools(t, "cjxl", "exiftool")

	// Without exploration a missing djxl only degrades the health check.
	var warned []string
	if err := CheckDeps(false, true, false, false, func(m string) { warned = append(warned, m) }); err != nil {
		t.Fatalf("CheckDeps = %v, want nil without exploration", err)
	}
	if len(warned) != 1 {
		t.Errorf("warnings = %v, want one djxl fallback note", warned)
	}

	if err := CheckDeps(false, true, false, true, nil); !errors.Is(err, ErrDjxlNotFound) {
		t.Errorf("CheckDeps with exploration = %v, want ErrDjxlNotFound", err)
	}

	// Video-only exploration scores through ffmpeg, not djxl.
	stubTools(t, "cjxl", "exiftool", "ffmpeg", "ffprobe")
	if err := CheckDeps(true, false, false, true, nil); err != nil {
		t.Errorf("CheckDeps video-only exploration = %v, want nil", err)
	}

	stubTools(t, "cjxl", "exiftool", "djxl")
	if err := CheckDeps(false, true, false, true, nil); err != nil {
		t.Errorf("CheckDeps with djxl present = %v, want nil", err)
	}
}
