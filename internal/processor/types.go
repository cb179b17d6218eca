package processor

import (
	"sync"
	"time"
)

type Mode int

const (
	ModeConvert Mode = iota
	ModeScan
)

// Options is the immutable run configuration. It is built once by the
// command layer and passed by value; nothing mutates it after workers
// start.
type Options struct {
	Mode            Mode
	InPlace         bool
	Recursive       bool
	DryRun          bool
	Verbose         bool
	ForceLossless   bool
	MatchQuality    bool
	Explore         bool
	SkipHealthCheck bool
	Workers         int
	Distance        float64
	Effort          int
}

// Media is the coarse work-item class assigned at collection time from
// the extension whitelist. Fine-grained format detection happens later,
// from file content.
type Media int

const (
	MediaImage Media = iota
	MediaVideo
)

// WorkItem is one candidate file. The work list is fixed before any
// conversion begins and never mutated afterward, which is what makes
// the static partitioning lock-free.
type WorkItem struct {
	Path  string
	Size  int64
	Media Media
}

// QualityEstimate is the per-file analysis result consumed by the
// executor. It is not retained after the file completes.
type QualityEstimate struct {
	// Quality is the reconstructed source quality on a 0-100 scale,
	// when the source carries structural markers (JPEG quant tables).
	// Zero when only a bpp-derived estimate was possible.
	Quality float64
	// EffectiveBPP is the size-normalized density metric after
	// correction factors, for sources without quality markers.
	EffectiveBPP float64
	// Param is the resolved target encoder parameter: cjxl distance
	// for images, x265 CRF for video. Zero distance means lossless.
	Param      float64
	Lossless   bool
	Confidence float64
}

type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Outcome is the per-file pipeline result folded into Stats.
type Outcome struct {
	Path         string
	Status       Status
	Reason       string
	InputBytes   int64
	OutputBytes  int64
	Param        float64
	HealthRan    bool
	HealthPassed bool
	Scan         *ScanReport
}

// ScanReport is the read-only analysis produced in scan mode and for
// dry runs.
type ScanReport struct {
	Path        string
	Format      string
	Lossless    bool
	Quality     float64
	BPP         float64
	Action      string
	Reason      string
	Param       float64
	CaptureDate string
	CameraModel string
}

// Stats is the process-wide aggregate. Every read-modify-write happens
// under mu, and related counters are updated in the same critical
// section so they never disagree.
type Stats struct {
	mu sync.Mutex

	Total        int
	Processed    int
	Success      int
	Failed       int
	Skipped      int
	HealthPassed int
	HealthFailed int
	BytesIn      int64
	BytesOut     int64
	Start        time.Time
}

// fold records one finished file. Counter increments are grouped in a
// single critical section; no I/O happens under the lock.
func (s *Stats) fold(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Processed++
	switch o.Status {
	case StatusSuccess:
		s.Success++
		// Dry runs report success with no output bytes; they carry no
		// size reduction to account.
		if o.OutputBytes > 0 {
			s.BytesIn += o.InputBytes
			s.BytesOut += o.OutputBytes
		}
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
	if o.HealthRan {
		if o.HealthPassed {
			s.HealthPassed++
		} else {
			s.HealthFailed++
		}
	}
}

// Snapshot returns a copy of the counters taken under the lock.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Total:        s.Total,
		Processed:    s.Processed,
		Success:      s.Success,
		Failed:       s.Failed,
		Skipped:      s.Skipped,
		HealthPassed: s.HealthPassed,
		HealthFailed: s.HealthFailed,
		BytesIn:      s.BytesIn,
		BytesOut:     s.BytesOut,
		Start:        s.Start,
	}
}

// ProgressUpdate is a delta message consumed by the TUI.
type ProgressUpdate struct {
	TotalDelta     int
	ProcessedDelta int
	SuccessDelta   int
	FailedDelta    int
	SkippedDelta   int
	BytesInDelta   int64
	BytesOutDelta  int64
	CurrentFile    string
}
