package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestPartitionCoversEveryIndex(t *testing.T) {
	cases := []struct{ n, workers int }{
		{10, 3}, {100, 8}, {7, 7}, {3, 16}, {1, 1}, {0, 4},
	}
	for _, c := range cases {
		spans := partition(c.n, c.workers)

		covered := make([]bool, c.n)
		prev := 0
		for _, sp := range spans {
			if sp[0] != prev {
				t.Errorf("n=%d w=%d: span starts at %d, want %d (contiguous)", c.n, c.workers, sp[0], prev)
			}
			for i := sp[0]; i < sp[1]; i++ {
				if covered[i] {
					t.Errorf("n=%d w=%d: index %d assigned twice", c.n, c.workers, i)
				}
				covered[i] = true
			}
			prev = sp[1]
		}
		for i, ok := range covered {
			if !ok {
				t.Errorf("n=%d w=%d: index %d never assigned", c.n, c.workers, i)
			}
		}
		if len(spans) > c.workers || (c.n > 0 && len(spans) > c.n) {
			t.Errorf("n=%d w=%d: %d spans", c.n, c.workers, len(spans))
		}
	}
}

func TestPartitionBalanced(t *testing.T) {
	spans := partition(10, 3)
	sizes := []int{}
	for _, sp := range spans {
		sizes = append(sizes, sp[1]-sp[0])
	}
	for _, s := range sizes {
		if s < 3 || s > 4 {
			t.Fatalf("span sizes %v, want all within one of each other", sizes)
		}
	}
}

func writeJPEGStub(t *testing.T, path string) {
	t.Helper()
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 60)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		writeJPEGStub(t, filepath.Join(dir, name))
	}

	items, err := Collect(dir, true, nil)
	if err != nil {
		t.Fatal(err)
	}

	opts := Options{
		Mode:          ModeConvert,
		DryRun:        true,
		ForceLossless: true,
		Workers:       2,
	}
	var cancel atomic.Bool
	stats, outcomes := Run(items, opts, &cancel, nil, nil)

	s := stats.Snapshot()
	if s.Total != 3 || s.Processed != 3 || s.Success != 3 {
		t.Fatalf("stats = %+v, want 3 planned conversions", &s)
	}
	if s.BytesIn != 0 || s.BytesOut != 0 {
		t.Errorf("dry run accumulated bytes: in=%d out=%d", s.BytesIn, s.BytesOut)
	}
	for _, o := range outcomes {
		if o.Status != StatusSuccess || o.Reason != "would convert" {
			t.Errorf("%s: %v (%s)", o.Path, o.Status, o.Reason)
		}
	}

	// Nothing may be written during a dry run.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("directory grew during dry run: %d entries", len(entries))
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	writeJPEGStub(t, filepath.Join(dir, "a.jpg"))
	writeJPEGStub(t, filepath.Join(dir, "b.jpg"))

	items, err := Collect(dir, true, nil)
	if err != nil {
		t.Fatal(err)
	}

	var cancel atomic.Bool
	cancel.Store(true)
	stats, _ := Run(items, Options{Mode: ModeConvert, DryRun: true, Workers: 2}, &cancel, nil, nil)

	s := stats.Snapshot()
	if s.Processed != 0 {
		t.Errorf("processed %d files after cancellation, want 0", s.Processed)
	}
	if s.Total != 2 {
		t.Errorf("total = %d, want 2", s.Total)
	}
}

func TestRunSkipsExistingTarget(t *testing.T) {
	dir := t.TempDir()
	writeJPEGStub(t, filepath.Join(dir, "a.jpg"))
	if err := os.WriteFile(filepath.Join(dir, "a.jxl"), []byte{0xFF, 0x0A}, 0o644); err != nil {
		t.Fatal(err)
	}

	items := []WorkItem{{Path: filepath.Join(dir, "a.jpg"), Size: 64, Media: MediaImage}}
	opts := Options{Mode: ModeConvert, DryRun: true, ForceLossless: true, Workers: 1}
	_, outcomes := Run(items, opts, nil, nil, nil)

	if outcomes[0].Status != StatusSkipped || outcomes[0].Reason != "target already exists" {
		t.Errorf("outcome = %v (%s), want existing-target skip", outcomes[0].Status, outcomes[0].Reason)
	}
}

func TestRunProgressDeltasMatchStats(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"} {
		writeJPEGStub(t, filepath.Join(dir, name))
	}
	items, err := Collect(dir, true, nil)
	if err != nil {
		t.Fatal(err)
	}

	updates := make(chan ProgressUpdate, 64)
	opts := Options{Mode: ModeConvert, DryRun: true, ForceLossless: true, Workers: 3}
	stats, _ := Run(items, opts, nil, updates, nil)
	close(updates)

	var total, processed, success int
	for u := range updates {
		total += u.TotalDelta
		processed += u.ProcessedDelta
		success += u.SuccessDelta
	}

	s := stats.Snapshot()
	if total != s.Total || processed != s.Processed || success != s.Success {
		t.Errorf("deltas total=%d processed=%d success=%d, stats %+v", total, processed, success, &s)
	}
}

func TestRunCompletesWhenDisplayExitsEarly(t *testing.T) {
	dir := t.TempDir()
	var items []WorkItem
	for i := 0; i < 70; i++ {
		path := filepath.Join(dir, fmt.Sprintf("clip%02d.jpg", i))
		writeJPEGStub(t, path)
		items = append(items, WorkItem{Path: path, Size: 64, Media: MediaImage})
	}

	// A display that reads a few deltas and then goes away, leaving
	// only a drain loop behind. Workers must never wedge on the send.
	updates := make(chan ProgressUpdate, 2)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for i := 0; i < 3; i++ {
			<-updates
		}
		for range updates {
		}
	}()

	opts := Options{Mode: ModeConvert, DryRun: true, ForceLossless: true, Workers: 4}
	done := make(chan struct{})
	go func() {
		defer close(done)
		stats, _ := Run(items, opts, nil, updates, nil)
		if s := stats.Snapshot(); s.Processed != 70 {
			t.Errorf("processed = %d, want 70", s.Processed)
		}
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("Run did not finish with a partially consumed update channel")
	}
	close(updates)
	<-drained
}

func TestStatsFoldInvariant(t *testing.T) {
	var stats Stats
	outcomes := []Outcome{
		{Status: StatusSuccess, InputBytes: 1000, OutputBytes: 400, HealthRan: true, HealthPassed: true},
		{Status: StatusSuccess, InputBytes: 2000, OutputBytes: 900, HealthRan: true, HealthPassed: true},
		{Status: StatusSkipped},
		{Status: StatusFailed, HealthRan: true},
		{Status: StatusSuccess},
	}
	for _, o := range outcomes {
		stats.fold(o)
	}

	s := stats.Snapshot()
	if s.Processed != s.Success+s.Failed+s.Skipped {
		t.Errorf("processed %d != success %d + failed %d + skipped %d", s.Processed, s.Success, s.Failed, s.Skipped)
	}
	if s.BytesIn != 3000 || s.BytesOut != 1300 {
		t.Errorf("bytes in=%d out=%d, want 3000/1300", s.BytesIn, s.BytesOut)
	}
	if s.HealthPassed != 2 || s.HealthFailed != 1 {
		t.Errorf("health passed=%d failed=%d, want 2/1", s.HealthPassed, s.HealthFailed)
	}
}
