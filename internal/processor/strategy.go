package processor

import (
	"encoding/binary"
	"io"
	"os"

	"squish/pkg/imgutil"
)

// Plan is the per-file conversion decision: whether to convert at all,
// and with what encoder parameter.
type Plan struct {
	Convert  bool
	Lossless bool
	Param    float64
	Reason   string
}

// Lossy sources below this size rarely shrink further; re-encoding
// them only stacks generational loss.
const smallFileSize = 50 * 1024

// Video codecs that are already at least as efficient as the target.
var modernVideoCodecs = map[string]bool{
	"hevc": true,
	"av1":  true,
	"vp9":  true,
	"vvc":  true,
}

// Lossless video codecs that can be transcoded without quality loss.
var losslessVideoCodecs = map[string]bool{
	"ffv1":    true,
	"huffyuv": true,
	"utvideo": true,
}

// planImage decides what to do with an image file based on its sniffed
// format and quality estimate.
func planImage(item WorkItem, kind imgutil.Kind, opts Options) Plan {
	switch kind {
	case imgutil.KindJXL:
		return Plan{Reason: "already JPEG XL"}
	case imgutil.KindHEIC, imgutil.KindAVIF:
		return Plan{Reason: "modern lossy format, re-encoding would stack loss"}
	case imgutil.KindUnknown:
		return Plan{Reason: "unrecognized format"}
	}

	lossy := false
	switch kind {
	case imgutil.KindJPEG:
		lossy = true
	case imgutil.KindWebP:
		lossless, err := imgutil.WebPIsLossless(item.Path)
		if err != nil {
			return Plan{Reason: "unreadable WebP header"}
		}
		if !lossless {
			return Plan{Reason: "lossy WebP, re-encoding would stack loss"}
		}
	case imgutil.KindPNG:
		// Quantized PNGs carry lossy history; treat them as lossy
		// sources. Uncertain parses stay on the lossless path.
		if quantized, err := pngIsQuantized(item.Path); err == nil && quantized {
			lossy = true
		}
	}

	if !lossy {
		return Plan{Convert: true, Lossless: true, Reason: "lossless source"}
	}

	if opts.ForceLossless {
		return Plan{Convert: true, Lossless: true, Reason: "lossless forced"}
	}
	if item.Size < smallFileSize {
		return Plan{Reason: "too small to benefit"}
	}

	param := opts.Distance
	if opts.MatchQuality {
		w, h, alpha := imageConfig(item.Path)
		param = estimateImage(item, kind == imgutil.KindJPEG, w, h, alpha).Param
	}
	return Plan{Convert: true, Param: param, Reason: "lossy source"}
}

// planVideo decides what to do with a video stream.
func planVideo(v VideoInfo, opts Options) Plan {
	if modernVideoCodecs[v.Codec] {
		return Plan{Reason: "already " + v.Codec}
	}
	if losslessVideoCodecs[v.Codec] {
		return Plan{Convert: true, Lossless: true, Reason: "lossless source codec " + v.Codec}
	}
	if v.Codec == "" {
		return Plan{Reason: "no video stream"}
	}

	param := defaultCRF
	if opts.MatchQuality {
		param = estimateVideo(v).Param
	}
	return Plan{Convert: true, Param: param, Reason: "transcode from " + v.Codec}
}

// pngIsQuantized reports whether a PNG uses an indexed palette, the
// signature pngquant and friends leave behind.
func pngIsQuantized(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// 8-byte signature, then the IHDR chunk: length, "IHDR", width,
	// height, bit depth, color type.
	var buf [8 + 8 + 13]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return false, err
	}
	if string(buf[12:16]) != "IHDR" || binary.BigEndian.Uint32(buf[8:12]) != 13 {
		return false, nil
	}
	colorType := buf[25]
	return colorType == 3, nil
}
