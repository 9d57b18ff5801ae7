package model

import "testing"

func TestRenderJob_TerminalEvent(t *testing.T) {
	done := RenderJob{ID: "a", Status: JobStatusCompleted, Progress: 100, OutputURL: "https://cdn/a.mp4"}
	ev := done.TerminalEvent()
	if ev.Type != EventCompleted || ev.OutputURL != done.OutputURL || ev.Percentage != 100 || !ev.IsTerminal() {
		t.Errorf("unexpected event %+v", ev)
	}

	failed := RenderJob{ID: "b", Status: JobStatusFailed, Progress: 40, Error: "boom"}
	ev = failed.TerminalEvent()
	if ev.Type != EventFailed || ev.Error != "boom" || ev.Percentage != 40 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestJobStatus(t *testing.T) {
	tests := []struct {
		status   JobStatus
		valid    bool
		terminal bool
	}{
		{JobStatusPending, true, false},
		{JobStatusProcessing, true, false},
		{JobStatusCompleted, true, true},
		{JobStatusFailed, true, true},
		{"cancelled", false, false},
	}
	for _, tt := range tests {
		if got := tt.status.IsValid(); got != tt.valid {
			t.Errorf("%s: IsValid = %v", tt.status, got)
		}
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s: IsTerminal = %v", tt.status, got)
		}
	}
}
