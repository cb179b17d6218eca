package processor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// VideoInfo is the subset of probed stream properties the strategy and
// estimator need.
type VideoInfo struct {
	Codec      string
	Width      int
	Height     int
	FPS        float64
	BitRate    int64
	BitDepth   int
	HasBFrames bool
	Duration   float64
	PixFmt     string
}

type probeStream struct {
	CodecType        string `json:"codec_type"`
	CodecName        string `json:"codec_name"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	AvgFrameRate     string `json:"avg_frame_rate"`
	BitRate          string `json:"bit_rate"`
	HasBFrames       int    `json:"has_b_frames"`
	PixFmt           string `json:"pix_fmt"`
	BitsPerRawSample string `json:"bits_per_raw_sample"`
}

type probeFormat struct {
	BitRate  string `json:"bit_rate"`
	Duration string `json:"duration"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// ProbeVideo runs ffprobe against a file and extracts the first video
// stream's properties. Stream-level bitrate is preferred; container
// bitrate is the fallback for formats like Matroska that omit it
// per stream.
func ProbeVideo(path string) (VideoInfo, error) {
	raw, err := ffmpeg.Probe(path)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}

	var result probeResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return VideoInfo{}, fmt.Errorf("parse probe output for %s: %w", path, err)
	}

	var info VideoInfo
	for _, s := range result.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.Codec = s.CodecName
		info.Width = s.Width
		info.Height = s.Height
		info.FPS = parseFrameRate(s.AvgFrameRate)
		info.HasBFrames = s.HasBFrames > 0
		info.PixFmt = s.PixFmt
		info.BitDepth = parseBitDepth(s.BitsPerRawSample, s.PixFmt)
		if br, err := strconv.ParseInt(s.BitRate, 10, 64); err == nil {
			info.BitRate = br
		}
		break
	}

	if info.BitRate == 0 {
		if br, err := strconv.ParseInt(result.Format.BitRate, 10, 64); err == nil {
			info.BitRate = br
		}
	}
	if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		info.Duration = d
	}

	return info, nil
}

// parseFrameRate evaluates ffprobe's rational frame rate notation
// ("30000/1001").
func parseFrameRate(r string) float64 {
	num, den, ok := strings.Cut(r, "/")
	if !ok {
		f, _ := strconv.ParseFloat(r, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// parseBitDepth prefers the explicit sample depth and falls back to
// pixel format naming conventions.
func parseBitDepth(raw, pixFmt string) int {
	if d, err := strconv.Atoi(raw); err == nil && d > 0 {
		return d
	}
	switch {
	case strings.Contains(pixFmt, "12le"), strings.Contains(pixFmt, "12be"):
		return 12
	case strings.Contains(pixFmt, "10le"), strings.Contains(pixFmt, "10be"):
		return 10
	}
	return 8
}
