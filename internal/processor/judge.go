package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/nfnt/resize"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Similarity scoring for explored candidates. Images are compared
// natively on decoded pixels; video defers to ffmpeg's ssim filter.

// gradeSSIM buckets a similarity score into a human-readable band.
func gradeSSIM(s float64) string {
	switch {
	case s >= 0.98:
		return "excellent"
	case s >= 0.95:
		return "good"
	case s >= 0.90:
		return "acceptable"
	case s >= 0.85:
		return "fair"
	default:
		return "poor"
	}
}

// imageSSIM compares a source image against a staged JXL candidate.
// The candidate is decoded through djxl first.
func imageSSIM(srcPath, jxlPath string) (float64, error) {
	tmp, err := os.CreateTemp("", "squish-ssim-*.png")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.Command("djxl", jxlPath, tmpPath)
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("djxl decode for comparison: %w", err)
	}

	a, err := loadImage(srcPath)
	if err != nil {
		return 0, err
	}
	b, err := loadImage(tmpPath)
	if err != nil {
		return 0, err
	}
	return ssim(gray(a), gray(b)), nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// gray converts to 8-bit luminance via the standard Rec. 601 weights.
func gray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

const ssimWindow = 8

// SSIM constants for 8-bit dynamic range.
const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

// ssim computes mean windowed structural similarity over two grayscale
// images. Mismatched dimensions are aligned by scaling the second
// image to the first.
func ssim(a, b *image.Gray) float64 {
	if !a.Bounds().Eq(b.Bounds()) {
		w := a.Bounds().Dx()
		h := a.Bounds().Dy()
		scaled := resize.Resize(uint(w), uint(h), b, resize.Bilinear)
		b = gray(scaled)
	}

	w := a.Bounds().Dx()
	h := a.Bounds().Dy()
	if w < ssimWindow || h < ssimWindow {
		return windowSSIM(a, b, a.Bounds().Min.X, a.Bounds().Min.Y, w, h)
	}

	var sum float64
	var n int
	for y := 0; y+ssimWindow <= h; y += ssimWindow {
		for x := 0; x+ssimWindow <= w; x += ssimWindow {
			sum += windowSSIM(a, b, a.Bounds().Min.X+x, a.Bounds().Min.Y+y, ssimWindow, ssimWindow)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func windowSSIM(a, b *image.Gray, x0, y0, w, h int) float64 {
	n := float64(w * h)
	var sumA, sumB float64
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			sumA += float64(a.GrayAt(x, y).Y)
			sumB += float64(b.GrayAt(x, y).Y)
		}
	}
	muA := sumA / n
	muB := sumB / n

	var varA, varB, cov float64
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			da := float64(a.GrayAt(x, y).Y) - muA
			db := float64(b.GrayAt(x, y).Y) - muB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	return ((2*muA*muB + ssimC1) * (2*cov + ssimC2)) /
		((muA*muA + muB*muB + ssimC1) * (varA + varB + ssimC2))
}

var ssimAllRe = regexp.MustCompile(`All:([0-9.]+)`)

// videoSSIM runs ffmpeg's ssim filter over both streams and parses the
// aggregate score from the filter's log line.
func videoSSIM(srcPath, candPath string) (float64, error) {
	var stderr bytes.Buffer
	err := ffmpeg.Output(
		[]*ffmpeg.Stream{
			ffmpeg.Input(candPath),
			ffmpeg.Input(srcPath),
		},
		"pipe:",
		ffmpeg.KwArgs{"lavfi": "ssim", "f": "null"},
	).WithErrorOutput(&stderr).Run()
	if err != nil {
		return 0, fmt.Errorf("ffmpeg ssim: %w", err)
	}

	m := ssimAllRe.FindStringSubmatch(stderr.String())
	if m == nil {
		return 0, errors.New("ssim score not found in ffmpeg output")
	}
	return strconv.ParseFloat(m[1], 64)
}
