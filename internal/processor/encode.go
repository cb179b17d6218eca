package processor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Encoders write to a staging path next to the final target. Nothing
// here touches the source file or the final path; commit handles the
// rename.

// encodeJXL converts an image to JPEG XL with cjxl. Distance 0 is
// lossless; JPEG sources at distance 0 use lossless transcoding, which
// cjxl applies automatically.
func encodeJXL(src, staged string, distance float64, effort int) error {
	args := []string{
		"-d", strconv.FormatFloat(distance, 'f', -1, 64),
		"-e", strconv.Itoa(effort),
		"--num_threads", "2",
		src, staged,
	}
	cmd := exec.Command("cjxl", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("cjxl: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

// encodeHEVC transcodes a video to HEVC in MP4. Audio and container
// metadata are carried over untouched. The hvc1 tag keeps the output
// playable in QuickTime.
func encodeHEVC(src, staged string, crf float64, lossless bool) error {
	kwargs := ffmpeg.KwArgs{
		"c:v":          "libx265",
		"preset":       "medium",
		"tag:v":        "hvc1",
		"c:a":          "copy",
		"map_metadata": "0",
		"f":            "mp4",
	}
	if lossless {
		kwargs["x265-params"] = "lossless=1"
	} else {
		kwargs["crf"] = crf
	}

	err := ffmpeg.Input(src).
		Output(staged, kwargs).
		OverWriteOutput().
		Silent(true).
		Run()
	if err != nil {
		return fmt.Errorf("ffmpeg encode %s: %w", src, err)
	}
	return nil
}

// migrateMetadata copies EXIF, IPTC, XMP and the ICC profile from the
// source into the staged output. Metadata loss is not worth failing a
// conversion over; callers treat errors as warnings.
func migrateMetadata(src, staged string) error {
	cmd := exec.Command("exiftool",
		"-tagsfromfile", src,
		"-all:all",
		"-icc_profile",
		"-overwrite_original",
		staged,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("exiftool: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

// verifyJXL decodes a staged JXL file to prove it is structurally
// sound. The decoded pixels are discarded.
func verifyJXL(staged string) error {
	tmp, err := os.CreateTemp("", "squish-verify-*.ppm")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.Command("djxl", staged, tmpPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("djxl: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

// verifyVideo decodes a staged video to the null muxer to prove every
// frame is readable.
func verifyVideo(staged string) error {
	err := ffmpeg.Input(staged).
		Output("pipe:", ffmpeg.KwArgs{"f": "null"}).
		Silent(true).
		Run()
	if err != nil {
		return fmt.Errorf("ffmpeg decode check %s: %w", staged, err)
	}
	return nil
}

// lastLine extracts the final non-empty line of tool output, which is
// where cjxl and exiftool put their actual error.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
