package processor

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"squish/pkg/imgutil"
)

func writePNG(t *testing.T, path string, img image.Image) WorkItem {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	info, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	return WorkItem{Path: path, Size: info.Size(), Media: MediaImage}
}

func writeWebP(t *testing.T, path string, chunk string) WorkItem {
	t.Helper()
	data := append([]byte("RIFF\x24\x00\x00\x00WEBP"), []byte(chunk+" \x00\x00\x00\x00")...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return WorkItem{Path: path, Size: int64(len(data)), Media: MediaImage}
}

func TestPlanImageModernFormatsSkipped(t *testing.T) {
	item := WorkItem{Path: "x", Size: 1 << 20, Media: MediaImage}
	for _, kind := range []imgutil.Kind{imgutil.KindJXL, imgutil.KindHEIC, imgutil.KindAVIF, imgutil.KindUnknown} {
		plan := planImage(item, kind, Options{})
		if plan.Convert {
			t.Errorf("%s: expected skip, got convert (%s)", kind, plan.Reason)
		}
	}
}

func TestPlanImageLosslessSources(t *testing.T) {
	dir := t.TempDir()

	truecolor := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	item := writePNG(t, filepath.Join(dir, "rgb.png"), truecolor)

	plan := planImage(item, imgutil.KindPNG, Options{})
	if !plan.Convert || !plan.Lossless {
		t.Errorf("truecolor PNG: got %+v, want lossless convert", plan)
	}

	for _, kind := range []imgutil.Kind{imgutil.KindGIF, imgutil.KindBMP, imgutil.KindTIFF} {
		plan := planImage(WorkItem{Path: "x", Size: 100}, kind, Options{})
		if !plan.Convert || !plan.Lossless {
			t.Errorf("%s: got %+v, want lossless convert", kind, plan)
		}
	}
}

func TestPlanImageQuantizedPNGIsLossy(t *testing.T) {
	dir := t.TempDir()

	pal := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{
		color.Black, color.White,
	})
	item := writePNG(t, filepath.Join(dir, "quant.png"), pal)
	item.Size = 200 * 1024

	plan := planImage(item, imgutil.KindPNG, Options{Distance: 1.0})
	if !plan.Convert || plan.Lossless {
		t.Errorf("quantized PNG: got %+v, want lossy convert", plan)
	}
	if plan.Param != 1.0 {
		t.Errorf("Param = %v, want configured distance", plan.Param)
	}
}

func TestPlanImageSmallLossySkipped(t *testing.T) {
	item := WorkItem{Path: "small.jpg", Size: 10 * 1024, Media: MediaImage}

	plan := planImage(item, imgutil.KindJPEG, Options{})
	if plan.Convert {
		t.Errorf("small JPEG: got convert, want skip (%s)", plan.Reason)
	}

	plan = planImage(item, imgutil.KindJPEG, Options{ForceLossless: true})
	if !plan.Convert || !plan.Lossless {
		t.Errorf("small JPEG with lossless forced: got %+v, want lossless convert", plan)
	}
}

func TestPlanImageWebP(t *testing.T) {
	dir := t.TempDir()

	lossless := writeWebP(t, filepath.Join(dir, "l.webp"), "VP8L")
	plan := planImage(lossless, imgutil.KindWebP, Options{})
	if !plan.Convert || !plan.Lossless {
		t.Errorf("VP8L WebP: got %+v, want lossless convert", plan)
	}

	lossy := writeWebP(t, filepath.Join(dir, "v.webp"), "VP8")
	plan = planImage(lossy, imgutil.KindWebP, Options{})
	if plan.Convert {
		t.Errorf("lossy WebP: got convert, want skip (%s)", plan.Reason)
	}
}

func TestPlanVideo(t *testing.T) {
	for _, codec := range []string{"hevc", "av1", "vp9"} {
		plan := planVideo(VideoInfo{Codec: codec}, Options{})
		if plan.Convert {
			t.Errorf("%s: got convert, want skip", codec)
		}
	}

	plan := planVideo(VideoInfo{Codec: "ffv1"}, Options{})
	if !plan.Convert || !plan.Lossless {
		t.Errorf("ffv1: got %+v, want lossless convert", plan)
	}

	plan = planVideo(VideoInfo{Codec: "h264"}, Options{})
	if !plan.Convert || plan.Lossless {
		t.Errorf("h264: got %+v, want lossy convert", plan)
	}
	if plan.Param != defaultCRF {
		t.Errorf("h264 Param = %v, want default CRF", plan.Param)
	}

	plan = planVideo(VideoInfo{
		Codec: "mpeg2video", Width: 1920, Height: 1080, FPS: 25, BitRate: 8_000_000,
	}, Options{MatchQuality: true})
	if !plan.Convert || plan.Param < minCRF || plan.Param > maxCRF {
		t.Errorf("matched mpeg2: got %+v, want CRF in range", plan)
	}

	if plan := planVideo(VideoInfo{}, Options{}); plan.Convert {
		t.Error("missing video stream: got convert, want skip")
	}
}

func TestPNGIsQuantized(t *testing.T) {
	dir := t.TempDir()

	pal := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black, color.White})
	item := writePNG(t, filepath.Join(dir, "pal.png"), pal)
	quantized, err := pngIsQuantized(item.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !quantized {
		t.Error("paletted PNG not detected as quantized")
	}

	rgb := writePNG(t, filepath.Join(dir, "rgb.png"), image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	quantized, err = pngIsQuantized(rgb.Path)
	if err != nil {
		t.Fatal(err)
	}
	if quantized {
		t.Error("truecolor PNG detected as quantized")
	}
}
