package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"squish/internal/processor"
)

func TestModelInterruptRequestsStop(t *testing.T) {
	updates := make(chan processor.ProgressUpdate)
	calls := 0
	m := NewModel(updates, func() { calls++ })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd != nil {
		t.Error("interrupt produced a command; the display must keep draining updates")
	}
	if calls != 1 {
		t.Fatalf("interrupt hook called %d times, want 1", calls)
	}

	model := next.(Model)
	if !strings.Contains(model.View(), "Stopping") {
		t.Error("view does not announce the pending stop")
	}

	// Repeated interrupts request the stop once.
	next, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if calls != 1 {
		t.Errorf("interrupt hook called %d times after repeat, want 1", calls)
	}

	// The display still quits normally once the channel closes.
	close(updates)
	model = next.(Model)
	final, cmd := model.Update(model.Init()())
	if cmd == nil {
		t.Fatal("closed update channel did not quit the display")
	}
	if !final.(Model).quitting {
		t.Error("model not marked quitting after the channel closed")
	}
}

func TestModelAccumulatesDeltas(t *testing.T) {
	m := NewModel(nil, nil)
	next, _ := m.Update(updateMsg{TotalDelta: 5})
	next, _ = next.(Model).Update(updateMsg{
		ProcessedDelta: 1,
		SuccessDelta:   1,
		BytesInDelta:   1000,
		BytesOutDelta:  400,
		CurrentFile:    "/photos/a.jpg",
	})

	model := next.(Model)
	if model.total != 5 || model.processed != 1 || model.success != 1 {
		t.Errorf("counts total=%d processed=%d success=%d", model.total, model.processed, model.success)
	}
	if model.currentFile != "/photos/a.jpg" {
		t.Errorf("currentFile = %q", model.currentFile)
	}
	if got := model.View(); !strings.Contains(got, "1/5") {
		t.Errorf("view missing progress counts:\n%s", got)
	}
}
