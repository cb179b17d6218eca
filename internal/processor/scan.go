package processor

import (
	"squish/pkg/imgutil"
)

// AnalyzeFile produces the read-only report behind scan mode and dry
// runs. It performs the same detection, estimation, and planning a
// conversion would, without encoding anything.
func AnalyzeFile(item WorkItem, opts Options) (*ScanReport, error) {
	switch item.Media {
	case MediaVideo:
		return analyzeVideo(item, opts)
	default:
		return analyzeImage(item, opts)
	}
}

func analyzeImage(item WorkItem, opts Options) (*ScanReport, error) {
	kind, err := imgutil.SniffFile(item.Path)
	if err != nil {
		return nil, err
	}

	report := &ScanReport{
		Path:   item.Path,
		Format: kind.String(),
	}

	plan := planImage(item, kind, opts)
	report.Action = planAction(plan)
	report.Reason = plan.Reason
	report.Param = plan.Param
	report.Lossless = plan.Convert && plan.Lossless

	if kind == imgutil.KindJPEG {
		w, h, alpha := imageConfig(item.Path)
		est := estimateImage(item, true, w, h, alpha)
		report.Quality = est.Quality
		report.BPP = est.EffectiveBPP
	}

	// Metadata extraction is best effort; files without EXIF are
	// normal.
	if info, err := readExifInfo(item.Path); err == nil {
		report.CaptureDate = info.CaptureDate
		report.CameraModel = info.CameraModel
	}

	return report, nil
}

func analyzeVideo(item WorkItem, opts Options) (*ScanReport, error) {
	info, err := ProbeVideo(item.Path)
	if err != nil {
		return nil, err
	}

	plan := planVideo(info, opts)
	est := estimateVideo(info)

	return &ScanReport{
		Path:     item.Path,
		Format:   info.Codec,
		Lossless: losslessVideoCodecs[info.Codec],
		BPP:      est.EffectiveBPP,
		Action:   planAction(plan),
		Reason:   plan.Reason,
		Param:    plan.Param,
	}, nil
}

func planAction(p Plan) string {
	switch {
	case !p.Convert:
		return "skip"
	case p.Lossless:
		return "convert lossless"
	default:
		return "convert lossy"
	}
}
