package processor

import (
	"image"
	"image/color"
	"math"
	"os"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Quality estimation maps observed compression density to encoder
// parameters for the target codecs. Images map a 0-100 quality factor
// to a JXL Butteraugli distance; video maps bits per pixel to an x265
// CRF.

const (
	// Butteraugli distance bounds accepted by cjxl. Distance 0 is
	// mathematically lossless.
	minDistance = 0.0
	maxDistance = 5.0

	// CRF bounds for libx265. Values below 10 waste bits on sources
	// that were already lossy; values above 35 are visibly degraded.
	minCRF = 10.0
	maxCRF = 35.0

	// defaultDistance is used when the source quality cannot be
	// reconstructed and quality matching is off.
	defaultDistance = 1.0

	defaultCRF = 22.0
)

// distanceForQuality converts a JPEG-style quality factor to a JXL
// Butteraugli distance. Quality 100 maps to distance 0, quality 50 to
// distance 5.
func distanceForQuality(quality int) float64 {
	d := float64(100-quality) / 10
	return clamp(d, minDistance, maxDistance)
}

// qualityForBPP estimates the source quality factor from compression
// density when quantization tables are unavailable. Calibrated so that
// ~0.2 bpp maps to quality 70 and each doubling adds 15 points.
func qualityForBPP(bpp float64) int {
	if bpp <= 0 {
		return 75
	}
	q := 70 + 15*math.Log2(bpp*5)
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return int(math.Round(q))
}

// hevcCRF maps effective bits per pixel to an x265 CRF that
// approximates the source's quality level. Denser sources get lower
// CRF values.
func hevcCRF(effectiveBPP float64) float64 {
	if effectiveBPP <= 0 {
		return defaultCRF
	}
	crf := 46 - 5*math.Log2(effectiveBPP*100)
	return clamp(crf, minCRF, maxCRF)
}

// codecEfficiency normalizes the observed bitrate of a source codec to
// H.264 terms. A codec twice as efficient as H.264 at the same quality
// needs its bpp doubled before the CRF mapping.
var codecEfficiency = map[string]float64{
	"mpeg1video": 0.4,
	"mpeg2video": 0.5,
	"mpeg4":      0.7,
	"msmpeg4v3":  0.65,
	"wmv3":       0.7,
	"vc1":        0.8,
	"h263":       0.55,
	"h264":       1.0,
	"vp8":        0.85,
	"mjpeg":      0.35,
	"prores":     0.25,
	"dnxhd":      0.25,
	"theora":     0.6,
}

func codecEfficiencyFactor(codec string) float64 {
	if f, ok := codecEfficiency[codec]; ok {
		return f
	}
	return 1.0
}

// resolutionFactor accounts for bitrate not scaling linearly with
// pixel count. Larger frames carry proportionally less information
// per pixel at equal perceived quality.
func resolutionFactor(width, height int) float64 {
	pixels := width * height
	switch {
	case pixels <= 0:
		return 1.0
	case pixels <= 640*480:
		return 0.8
	case pixels <= 1280*720:
		return 0.9
	case pixels <= 1920*1080:
		return 1.0
	case pixels <= 2560*1440:
		return 1.1
	default:
		return 1.2
	}
}

func bitDepthFactor(depth int) float64 {
	if depth >= 10 {
		return 1.25
	}
	return 1.0
}

// bFrameFactor adjusts for sources without B-frames, which spend more
// bits for the same quality.
func bFrameFactor(hasBFrames bool) float64 {
	if hasBFrames {
		return 1.0
	}
	return 0.85
}

// alphaDiscount compensates for a transparency plane, which inflates
// size at equal visual quality.
const alphaDiscount = 0.9

func alphaPixFmt(pixFmt string) bool {
	for _, marker := range []string{"yuva", "rgba", "argb", "bgra", "abgr", "gbrap", "ya"} {
		if strings.Contains(pixFmt, marker) {
			return true
		}
	}
	return false
}

// effectiveBPP computes the codec-normalized bits per pixel of a video
// stream for the CRF mapping.
func effectiveBPP(v VideoInfo) float64 {
	if v.Width <= 0 || v.Height <= 0 || v.FPS <= 0 || v.BitRate <= 0 {
		return 0
	}
	raw := float64(v.BitRate) / (float64(v.Width) * float64(v.Height) * v.FPS)
	bpp := raw *
		codecEfficiencyFactor(v.Codec) *
		resolutionFactor(v.Width, v.Height) *
		bitDepthFactor(v.BitDepth) *
		bFrameFactor(v.HasBFrames)
	if alphaPixFmt(v.PixFmt) {
		bpp *= alphaDiscount
	}
	return bpp
}

// estimateImage builds a quality estimate for a lossy image. JPEG
// sources use quantization table reconstruction; everything else falls
// back to the bpp heuristic.
func estimateImage(item WorkItem, kindJPEG bool, width, height int, alpha bool) QualityEstimate {
	var bpp float64
	if width > 0 && height > 0 {
		bpp = float64(item.Size*8) / float64(width*height)
		if alpha {
			bpp *= alphaDiscount
		}
	}

	if kindJPEG {
		if jq, err := estimateJPEGQuality(item.Path); err == nil {
			return QualityEstimate{
				Quality:      float64(jq.Quality),
				EffectiveBPP: bpp,
				Param:        distanceForQuality(jq.Quality),
				Confidence:   jq.Confidence,
			}
		}
	}

	if bpp > 0 {
		q := qualityForBPP(bpp)
		return QualityEstimate{
			Quality:      float64(q),
			EffectiveBPP: bpp,
			Param:        distanceForQuality(q),
			Confidence:   0.5,
		}
	}

	return QualityEstimate{
		Quality:    75,
		Param:      defaultDistance,
		Confidence: 0.2,
	}
}

// estimateVideo builds a CRF estimate from probed stream properties.
func estimateVideo(v VideoInfo) QualityEstimate {
	bpp := effectiveBPP(v)
	if bpp <= 0 {
		return QualityEstimate{Param: defaultCRF, Confidence: 0.2}
	}
	return QualityEstimate{
		EffectiveBPP: bpp,
		Param:        roundHalf(hevcCRF(bpp)),
		Confidence:   0.7,
	}
}

// imageConfig reads pixel dimensions and alpha presence from an image
// header, returning zeros when the format is not decodable.
func imageConfig(path string) (width, height int, alpha bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	switch cfg.ColorModel {
	case color.NRGBAModel, color.RGBAModel, color.NRGBA64Model, color.RGBA64Model, color.AlphaModel:
		alpha = true
	}
	return cfg.Width, cfg.Height, alpha
}

// roundHalf rounds to the nearest 0.5 step, matching encoder CRF
// granularity.
func roundHalf(v float64) float64 {
	return math.Round(v*2) / 2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
