package processor

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"squish/pkg/imgutil"
)

// Run executes a batch over a pre-collected work list. The list is
// split into contiguous per-worker spans and never touched again; each
// worker owns its span and its slots in the outcome slice, so the only
// shared mutable state is Stats.
//
// cancel is checked between files. A set flag lets in-flight encodes
// finish and stops workers from starting the next file.
func Run(items []WorkItem, opts Options, cancel *atomic.Bool, updates chan<- ProgressUpdate, warn func(string)) (*Stats, []Outcome) {
	stats := &Stats{Total: len(items), Start: time.Now()}
	if updates != nil {
		updates <- ProgressUpdate{TotalDelta: len(items)}
	}

	outcomes := make([]Outcome, len(items))
	spans := partition(len(items), opts.Workers)

	var wg sync.WaitGroup
	for _, sp := range spans {
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if cancel != nil && cancel.Load() {
					return
				}
				o := processOne(items[i], opts, warn)
				outcomes[i] = o
				stats.fold(o)
				if updates != nil {
					updates <- progressDelta(o)
				}
			}
		}(sp[0], sp[1])
	}
	wg.Wait()

	return stats, outcomes
}

// partition splits n items into at most workers contiguous spans of
// near-equal length. Every index lands in exactly one span.
func partition(n, workers int) [][2]int {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	spans := make([][2]int, 0, workers)
	base := 0
	for w := 0; w < workers; w++ {
		size := n / workers
		if w < n%workers {
			size++
		}
		spans = append(spans, [2]int{base, base + size})
		base += size
	}
	return spans
}

func progressDelta(o Outcome) ProgressUpdate {
	u := ProgressUpdate{ProcessedDelta: 1, CurrentFile: o.Path}
	switch o.Status {
	case StatusSuccess:
		u.SuccessDelta = 1
		if o.OutputBytes > 0 {
			u.BytesInDelta = o.InputBytes
			u.BytesOutDelta = o.OutputBytes
		}
	case StatusFailed:
		u.FailedDelta = 1
	case StatusSkipped:
		u.SkippedDelta = 1
	}
	return u
}

// processOne takes a single file through detection, planning,
// encoding, post-processing, and commit.
func processOne(item WorkItem, opts Options, warn func(string)) Outcome {
	o := Outcome{Path: item.Path, InputBytes: item.Size}

	if opts.Mode == ModeScan {
		report, err := AnalyzeFile(item, opts)
		if err != nil {
			o.Status = StatusFailed
			o.Reason = err.Error()
			return o
		}
		o.Status = StatusSkipped
		o.Reason = report.Reason
		o.Scan = report
		return o
	}

	switch item.Media {
	case MediaVideo:
		return convertVideo(item, opts, warn)
	default:
		return convertImage(item, opts, warn)
	}
}

func convertImage(item WorkItem, opts Options, warn func(string)) Outcome {
	o := Outcome{Path: item.Path, InputBytes: item.Size}

	kind, err := imgutil.SniffFile(item.Path)
	if err != nil {
		o.Status = StatusFailed
		o.Reason = fmt.Sprintf("unreadable: %v", err)
		return o
	}

	plan := planImage(item, kind, opts)
	if !plan.Convert {
		o.Status = StatusSkipped
		o.Reason = plan.Reason
		return o
	}
	o.Param = plan.Param

	final := targetPath(item.Path, MediaImage)
	if _, err := os.Stat(final); err == nil {
		o.Status = StatusSkipped
		o.Reason = "target already exists"
		return o
	}

	if opts.DryRun {
		o.Status = StatusSuccess
		o.Reason = "would convert"
		return o
	}

	staged := stagingPath(final)
	defer os.Remove(staged)

	if opts.Explore && !plan.Lossless {
		result, err := exploreParam(
			Interval{Lo: exploreStep, Hi: maxDistance},
			item.Size,
			ssimFloor,
			func(d float64) (int64, float64, error) {
				if err := encodeJXL(item.Path, staged, d, opts.Effort); err != nil {
					return 0, 0, err
				}
				info, err := os.Stat(staged)
				if err != nil {
					return 0, 0, err
				}
				s, err := imageSSIM(item.Path, staged)
				return info.Size(), s, err
			},
		)
		if err != nil {
			o.Status = StatusFailed
			o.Reason = err.Error()
			return o
		}
		if !result.Found {
			o.Status = StatusSkipped
			o.Reason = "no parameter beats the source size"
			return o
		}
		o.Param = result.Param
		// The staged file may hold a later, rejected probe.
		if err := encodeJXL(item.Path, staged, result.Param, opts.Effort); err != nil {
			o.Status = StatusFailed
			o.Reason = err.Error()
			return o
		}
	} else {
		distance := plan.Param
		if plan.Lossless {
			distance = 0
		}
		if err := encodeJXL(item.Path, staged, distance, opts.Effort); err != nil {
			o.Status = StatusFailed
			o.Reason = err.Error()
			return o
		}
	}

	return finish(o, item, staged, final, MediaImage, opts, warn)
}

func convertVideo(item WorkItem, opts Options, warn func(string)) Outcome {
	o := Outcome{Path: item.Path, InputBytes: item.Size}

	info, err := ProbeVideo(item.Path)
	if err != nil {
		o.Status = StatusFailed
		o.Reason = err.Error()
		return o
	}

	plan := planVideo(info, opts)
	if !plan.Convert {
		o.Status = StatusSkipped
		o.Reason = plan.Reason
		return o
	}
	o.Param = plan.Param

	final := targetPath(item.Path, MediaVideo)
	if _, err := os.Stat(final); err == nil {
		o.Status = StatusSkipped
		o.Reason = "target already exists"
		return o
	}

	if opts.DryRun {
		o.Status = StatusSuccess
		o.Reason = "would convert"
		return o
	}

	staged := stagingPath(final)
	defer os.Remove(staged)

	if opts.Explore && !plan.Lossless {
		result, err := exploreParam(
			Interval{Lo: minCRF, Hi: maxCRF},
			item.Size,
			ssimFloor,
			func(crf float64) (int64, float64, error) {
				if err := encodeHEVC(item.Path, staged, crf, false); err != nil {
					return 0, 0, err
				}
				st, err := os.Stat(staged)
				if err != nil {
					return 0, 0, err
				}
				s, err := videoSSIM(item.Path, staged)
				return st.Size(), s, err
			},
		)
		if err != nil {
			o.Status = StatusFailed
			o.Reason = err.Error()
			return o
		}
		if !result.Found {
			o.Status = StatusSkipped
			o.Reason = "no parameter beats the source size"
			return o
		}
		o.Param = result.Param
		if err := encodeHEVC(item.Path, staged, result.Param, false); err != nil {
			o.Status = StatusFailed
			o.Reason = err.Error()
			return o
		}
	} else {
		if err := encodeHEVC(item.Path, staged, plan.Param, plan.Lossless); err != nil {
			o.Status = StatusFailed
			o.Reason = err.Error()
			return o
		}
	}

	return finish(o, item, staged, final, MediaVideo, opts, warn)
}

// finish runs post-processing and commit for an encoded staging file.
func finish(o Outcome, item WorkItem, staged, final string, media Media, opts Options, warn func(string)) Outcome {
	health, err := postProcess(item.Path, staged, media, opts, warn)
	o.HealthRan = health.Ran
	o.HealthPassed = health.Passed
	if err != nil {
		o.Status = StatusFailed
		o.Reason = fmt.Sprintf("health check failed: %v", err)
		return o
	}

	status, reason, outSize, err := commitStaged(item.Path, staged, final, item.Size, opts)
	if err != nil && warn != nil {
		warn(err.Error())
	}
	o.Status = status
	o.Reason = reason
	o.OutputBytes = outSize
	return o
}
