package processor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Reconstructs the quality factor a JPEG was encoded with by comparing
// its quantization tables against regenerated IJG standard tables.
// Accuracy target is ±1 on the 0-100 scale for standard tables; custom
// tables still produce a best-fit estimate with reduced confidence.

// IJG standard base matrices (natural order).
var ijgLuminanceBase = [64]uint16{
	16, 11, 10, 16, 24, 40, 51, 61,
	12, 12, 14, 19, 26, 58, 60, 55,
	14, 13, 16, 24, 40, 57, 69, 56,
	14, 17, 22, 29, 51, 87, 80, 62,
	18, 22, 37, 56, 68, 109, 103, 77,
	24, 35, 55, 64, 81, 104, 113, 92,
	49, 64, 78, 87, 103, 121, 120, 101,
	72, 92, 95, 98, 112, 100, 103, 99,
}

var ijgChrominanceBase = [64]uint16{
	17, 18, 24, 47, 99, 99, 99, 99,
	18, 21, 26, 66, 99, 99, 99, 99,
	24, 26, 56, 99, 99, 99, 99, 99,
	47, 66, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
}

// zigzag maps coefficient position in the bitstream to natural order.
var zigzag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// dctWeights gives low-frequency coefficients more influence on the
// table match; quantization error there is what the eye notices.
var dctWeights = [64]float64{
	1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3,
	0.9, 0.85, 0.75, 0.65, 0.55, 0.45, 0.35, 0.25,
	0.8, 0.75, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2,
	0.7, 0.65, 0.6, 0.5, 0.4, 0.3, 0.2, 0.15,
	0.6, 0.55, 0.5, 0.4, 0.3, 0.2, 0.15, 0.1,
	0.5, 0.45, 0.4, 0.3, 0.2, 0.15, 0.1, 0.08,
	0.4, 0.35, 0.3, 0.2, 0.15, 0.1, 0.08, 0.05,
	0.3, 0.25, 0.2, 0.15, 0.1, 0.08, 0.05, 0.03,
}

var errNoQuantTables = errors.New("no quantization tables found")

// jpegQuality is a reconstructed source quality estimate.
type jpegQuality struct {
	Quality    int
	Confidence float64
	// Standard is true when the luminance table matched a regenerated
	// IJG table exactly.
	Standard bool
}

// generateStandardTable regenerates the IJG quantization table for a
// quality factor using the reference scaling formula.
func generateStandardTable(quality int, base *[64]uint16) [64]uint16 {
	q := float64(quality)
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}

	var scale float64
	if q < 50 {
		scale = 5000 / q
	} else {
		scale = 200 - 2*q
	}

	var out [64]uint16
	for i := 0; i < 64; i++ {
		v := (scale*float64(base[i]) + 50) / 100
		if v < 1 {
			v = 1
		}
		if v > 255 {
			v = 255
		}
		out[i] = uint16(v)
	}
	return out
}

func weightedSSE(a, b *[64]uint16) float64 {
	var sum, total float64
	for i := 0; i < 64; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += dctWeights[i] * d * d
		total += dctWeights[i]
	}
	return sum / total
}

// matchTable finds the quality factor whose regenerated standard table
// is closest to the extracted one.
func matchTable(extracted *[64]uint16, base *[64]uint16) (quality int, wsse float64) {
	best := 75
	bestSSE := -1.0
	for q := 1; q <= 100; q++ {
		candidate := generateStandardTable(q, base)
		s := weightedSSE(extracted, &candidate)
		if bestSSE < 0 || s < bestSSE {
			bestSSE = s
			best = q
			if s == 0 {
				break
			}
		}
	}
	return best, bestSSE
}

// estimateJPEGQuality parses DQT segments from a JPEG file and
// reconstructs the encoder quality factor.
func estimateJPEGQuality(path string) (jpegQuality, error) {
	f, err := os.Open(path)
	if err != nil {
		return jpegQuality{}, err
	}
	defer f.Close()

	luma, chroma, err := extractQuantTables(f)
	if err != nil {
		return jpegQuality{}, err
	}
	if luma == nil {
		return jpegQuality{}, errNoQuantTables
	}

	lq, lsse := matchTable(luma, &ijgLuminanceBase)
	result := jpegQuality{
		Quality:    lq,
		Standard:   lsse == 0,
		Confidence: confidenceFromSSE(lsse),
	}

	if chroma != nil {
		cq, csse := matchTable(chroma, &ijgChrominanceBase)
		// Disagreement between the two estimates means a non-standard
		// encoder; keep the luminance answer but trust it less.
		if diff := lq - cq; diff > 2 || diff < -2 {
			result.Confidence *= 0.7
			result.Standard = false
		} else if csse == 0 && lsse == 0 {
			result.Confidence = 1.0
		}
	}

	return result, nil
}

func confidenceFromSSE(wsse float64) float64 {
	if wsse == 0 {
		return 1.0
	}
	c := 1.0 / (1.0 + wsse/50.0)
	if c < 0.3 {
		c = 0.3
	}
	return c
}

// extractQuantTables walks the JPEG segment stream up to SOS and
// returns the luminance (id 0) and chrominance (id 1) tables in
// natural order, or nil when absent.
func extractQuantTables(r io.Reader) (luma, chroma *[64]uint16, err error) {
	var soi [2]byte
	if _, err := io.ReadFull(r, soi[:]); err != nil {
		return nil, nil, err
	}
	if soi[0] != 0xFF || soi[1] != 0xD8 {
		return nil, nil, errors.New("not a JPEG file")
	}

	for {
		marker, err := nextMarker(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return luma, chroma, nil
			}
			return nil, nil, err
		}

		// SOS: entropy-coded data follows, no more tables.
		if marker == 0xDA || marker == 0xD9 {
			return luma, chroma, nil
		}
		// Standalone markers carry no length.
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			continue
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, nil, err
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf[:]))
		if segLen < 2 {
			return nil, nil, fmt.Errorf("invalid segment length %d", segLen)
		}
		payload := make([]byte, segLen-2)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, err
		}

		if marker != 0xDB {
			continue
		}

		// A DQT segment may hold several tables back to back.
		for off := 0; off < len(payload); {
			precision := payload[off] >> 4
			id := payload[off] & 0x0F
			off++

			entrySize := 64
			if precision == 1 {
				entrySize = 128
			}
			if off+entrySize > len(payload) {
				return nil, nil, errors.New("truncated DQT segment")
			}

			var table [64]uint16
			for i := 0; i < 64; i++ {
				var v uint16
				if precision == 1 {
					v = binary.BigEndian.Uint16(payload[off+2*i:])
				} else {
					v = uint16(payload[off+i])
				}
				table[zigzag[i]] = v
			}
			off += entrySize

			switch id {
			case 0:
				t := table
				luma = &t
			case 1:
				t := table
				chroma = &t
			}
		}
	}
}

// nextMarker skips fill bytes and returns the next marker code.
func nextMarker(r io.Reader) (byte, error) {
	var b [1]byte
	// Find 0xFF.
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		if b[0] == 0xFF {
			break
		}
	}
	// Skip padding 0xFF bytes.
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		if b[0] != 0xFF {
			return b[0], nil
		}
	}
}
