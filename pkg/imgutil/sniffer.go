package imgutil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// Kind identifies a supported image container type, detected from magic
// bytes rather than the file extension.
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindPNG
	KindGIF
	KindWebP
	KindTIFF
	KindBMP
	KindHEIC
	KindAVIF
	KindJXL
)

func (k Kind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindGIF:
		return "gif"
	case KindWebP:
		return "webp"
	case KindTIFF:
		return "tiff"
	case KindBMP:
		return "bmp"
	case KindHEIC:
		return "heic"
	case KindAVIF:
		return "avif"
	case KindJXL:
		return "jxl"
	default:
		return "unknown"
	}
}

// headerLen covers the longest signature we need: ISOBMFF ftyp brands
// sit at offsets 8-12.
const headerLen = 16

var (
	pngSig     = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	jpegSig    = []byte{0xff, 0xd8, 0xff}
	gifSig     = []byte("GIF8")
	riffSig    = []byte("RIFF")
	webpSig    = []byte("WEBP")
	tiffSigLE  = []byte{0x49, 0x49, 0x2a, 0x00}
	tiffSigBE  = []byte{0x4d, 0x4d, 0x00, 0x2a}
	bmpSig     = []byte{0x42, 0x4d}
	jxlCodeSig = []byte{0xff, 0x0a}
	jxlBoxSig  = []byte{0x00, 0x00, 0x00, 0x0c, 0x4a, 0x58, 0x4c, 0x20}
	ftypMark   = []byte("ftyp")
)

var (
	heicBrands = [][]byte{[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("heim"), []byte("heis"), []byte("mif1"), []byte("msf1")}
	avifBrands = [][]byte{[]byte("avif"), []byte("avis")}
)

// DetectHeader inspects the first 16 bytes of a file for known signatures.
func DetectHeader(header []byte) (Kind, error) {
	if len(header) < 8 {
		return KindUnknown, errors.New("header too short")
	}

	if hasPrefix(header, jpegSig) {
		return KindJPEG, nil
	}
	if hasPrefix(header, pngSig) {
		return KindPNG, nil
	}
	if hasPrefix(header, gifSig) {
		return KindGIF, nil
	}
	if hasPrefix(header, riffSig) && len(header) >= 12 && bytes.Equal(header[8:12], webpSig) {
		return KindWebP, nil
	}
	if hasPrefix(header, tiffSigLE) || hasPrefix(header, tiffSigBE) {
		return KindTIFF, nil
	}
	if hasPrefix(header, jxlCodeSig) || hasPrefix(header, jxlBoxSig) {
		return KindJXL, nil
	}
	if len(header) >= 12 && bytes.Equal(header[4:8], ftypMark) {
		brand := header[8:12]
		for _, b := range avifBrands {
			if bytes.Equal(brand, b) {
				return KindAVIF, nil
			}
		}
		for _, b := range heicBrands {
			if bytes.Equal(brand, b) {
				return KindHEIC, nil
			}
		}
	}
	if hasPrefix(header, bmpSig) {
		return KindBMP, nil
	}

	return KindUnknown, nil
}

// SniffFile reads the first 16 bytes of a file to determine its type.
func SniffFile(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, err
	}
	defer f.Close()

	return SniffReader(f)
}

// SniffReader reads the first 16 bytes from r and determines its type.
func SniffReader(r io.Reader) (Kind, error) {
	header := make([]byte, headerLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return KindUnknown, err
	}

	return DetectHeader(header[:n])
}

// WebPIsLossless reports whether a WebP file carries a VP8L (lossless)
// coded substream. The RIFF chunks are walked in order, so metadata
// payloads that happen to contain the fourcc bytes never misclassify
// the file; only a real VP8L chunk header counts.
func WebPIsLossless(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return false, err
	}
	if !bytes.Equal(riff[:4], []byte("RIFF")) || !bytes.Equal(riff[8:12], []byte("WEBP")) {
		return false, errors.New("not a WebP container")
	}

	for {
		var hdr [8]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return false, nil
			}
			return false, err
		}
		switch string(hdr[:4]) {
		case "VP8L":
			return true, nil
		case "VP8 ":
			return false, nil
		}
		// Chunk payloads are padded to even length.
		skip := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		if skip%2 == 1 {
			skip++
		}
		if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
			return false, err
		}
	}
}

func hasPrefix(buf, prefix []byte) bool {
	if len(buf) < len(prefix) {
		return false
	}
	for i := range prefix {
		if buf[i] != prefix[i] {
			return false
		}
	}
	return true
}
