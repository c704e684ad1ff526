package model

import "testing"

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{StatusIdle, StatusUploading},
		{StatusUploading, StatusReady},
		{StatusReady, StatusProcessing},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusCompletedNoResult},
		{StatusProcessing, StatusFailed},
		{StatusCompleted, StatusProcessing},
		{StatusFailed, StatusProcessing},
		{StatusCompleted, StatusIdle},
		{StatusProcessing, StatusIdle},
	}

	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{StatusIdle, StatusProcessing},
		{StatusIdle, StatusCompleted},
		{StatusUploading, StatusProcessing},
		{StatusReady, StatusCompleted},
		{StatusCompleted, StatusReady},
		{"not_a_state", StatusIdle},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestIsTerminalStatus(t *testing.T) {
	for _, s := range []string{StatusCompleted, StatusCompletedNoResult, StatusFailed} {
		if !IsTerminalStatus(s) {
			t.Fatalf("expected %q to be terminal", s)
		}
	}
	for _, s := range []string{StatusIdle, StatusUploading, StatusReady, StatusProcessing} {
		if IsTerminalStatus(s) {
			t.Fatalf("expected %q to be non-terminal", s)
		}
	}
}

func TestTransitionSlotStatus_BlocksIllegalTransition(t *testing.T) {
	slot := NewTaskSlot(KindVideo)

	if err := TransitionSlotStatus(slot, StatusCompleted); err == nil {
		t.Fatalf("expected illegal transition error")
	}
	if slot.Status != StatusIdle {
		t.Fatalf("expected slot status to stay idle, got %q", slot.Status)
	}
}
