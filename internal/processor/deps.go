package processor

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Sentinel errors for missing required external tools. Checked once,
// before any work starts.
var (
	ErrCjxlNotFound     = errors.New("cjxl not found on PATH (install libjxl)")
	ErrDjxlNotFound     = errors.New("djxl not found on PATH (required by --explore to score candidates)")
	ErrExiftoolNotFound = errors.New("exiftool not found on PATH")
	ErrFfmpegNotFound   = errors.New("ffmpeg not found on PATH")
	ErrFfprobeNotFound  = errors.New("ffprobe not found on PATH")
)

// CheckDeps validates the external toolchain before the pool is
// created. cjxl and exiftool are always required; ffmpeg and ffprobe
// only when the work list contains video. djxl is normally optional,
// with the image health check falling back to a signature-only pass
// reported through warn, but exploration scores every image candidate
// through a djxl decode and cannot run without it.
func CheckDeps(hasVideo, hasImage, skipHealthCheck, explore bool, warn func(string)) error {
	if _, err := exec.LookPath("cjxl"); err != nil {
		return ErrCjxlNotFound
	}
	if _, err := exec.LookPath("exiftool"); err != nil {
		return ErrExiftoolNotFound
	}
	if hasVideo {
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			return ErrFfmpegNotFound
		}
		if _, err := exec.LookPath("ffprobe"); err != nil {
			return ErrFfprobeNotFound
		}
	}
	if _, err := exec.LookPath("djxl"); err != nil {
		if explore && hasImage {
			return ErrDjxlNotFound
		}
		if !skipHealthCheck && warn != nil {
			warn("djxl not found, image health check limited to signature validation")
		}
	}
	return nil
}

// Diagnose prints presence and version of every external tool squish
// can use. Informational only; it never fails.
func Diagnose(w io.Writer) {
	tools := []struct {
		name        string
		versionArgs []string
		required    string
	}{
		{"cjxl", []string{"--version"}, "required"},
		{"djxl", []string{"--version"}, "decode health check, required by --explore"},
		{"exiftool", []string{"-ver"}, "required, metadata migration"},
		{"ffmpeg", []string{"-version"}, "required for video"},
		{"ffprobe", []string{"-version"}, "required for video"},
	}

	for _, t := range tools {
		path, err := exec.LookPath(t.name)
		if err != nil {
			fmt.Fprintf(w, "%-10s missing   (%s)\n", t.name, t.required)
			continue
		}
		version := toolVersion(t.name, t.versionArgs)
		fmt.Fprintf(w, "%-10s %s  %s\n", t.name, path, version)
	}
}

func toolVersion(name string, args []string) string {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil && len(out) == 0 {
		return ""
	}
	line := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(line, '\n'); idx > 0 {
		line = line[:idx]
	}
	if len(line) > 60 {
		line = line[:60]
	}
	return line
}
