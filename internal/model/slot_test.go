package model

import (
	"errors"
	"testing"
)

func TestBeginUploadClearsPreviousSession(t *testing.T) {
	slot := NewTaskSlot(KindVideo)
	slot.BeginUpload()
	if err := slot.AssignSession("abc"); err != nil {
		t.Fatal(err)
	}
	slot.AppendLog(LogInfo, "old entry")
	slot.PreviewOrder = []string{"a.png", "b.png"}
	slot.ResultLocation = "/r/abc.pdf"

	slot.BeginUpload()

	if slot.Status != StatusUploading {
		t.Fatalf("expected uploading, got %q", slot.Status)
	}
	if slot.SessionID != "" || len(slot.Log) != 0 || len(slot.PreviewOrder) != 0 || slot.ResultLocation != "" {
		t.Fatalf("expected session-derived state cleared, got %+v", slot)
	}
	if slot.Kind != KindVideo {
		t.Fatalf("kind must never change, got %q", slot.Kind)
	}
}

func TestAssignSessionRequiresUploading(t *testing.T) {
	slot := NewTaskSlot(KindLongImage)
	if err := slot.AssignSession("l1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if err := slot.AssignSession(""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for empty id, got %v", err)
	}
}

func TestBeginProcessingStateGate(t *testing.T) {
	slot := NewTaskSlot(KindVideo)

	if err := slot.BeginProcessing(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState from idle, got %v", err)
	}

	slot.BeginUpload()
	if err := slot.BeginProcessing(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState from uploading, got %v", err)
	}

	if err := slot.AssignSession("abc"); err != nil {
		t.Fatal(err)
	}
	slot.Progress = 55
	if err := slot.BeginProcessing(); err != nil {
		t.Fatalf("expected processing from ready, got %v", err)
	}
	if slot.Progress != 0 {
		t.Fatalf("expected progress rewound to 0, got %d", slot.Progress)
	}
}

func TestBeginProcessingFromTerminalReprocesses(t *testing.T) {
	for _, terminal := range []string{StatusCompleted, StatusCompletedNoResult, StatusFailed} {
		slot := NewTaskSlot(KindVideo)
		slot.BeginUpload()
		if err := slot.AssignSession("abc"); err != nil {
			t.Fatal(err)
		}
		slot.Status = terminal
		slot.Progress = 100
		slot.ResultLocation = "/r/abc.pdf"

		if err := slot.BeginProcessing(); err != nil {
			t.Fatalf("reprocess from %q: %v", terminal, err)
		}
		if slot.Status != StatusProcessing || slot.Progress != 0 || slot.ResultLocation != "" {
			t.Fatalf("reprocess from %q left %+v", terminal, slot)
		}
		if slot.SessionID != "abc" {
			t.Fatalf("reprocess must keep the session id, got %q", slot.SessionID)
		}
	}
}

func TestSetPreviewOrderRejectsDuplicates(t *testing.T) {
	slot := NewTaskSlot(KindLongImage)
	if err := slot.SetPreviewOrder([]string{"a.png", "b.png", "a.png"}); err == nil {
		t.Fatal("expected duplicate rejection")
	}
	if err := slot.SetPreviewOrder([]string{"a.png", "b.png"}); err != nil {
		t.Fatal(err)
	}
}

func TestMovePreview(t *testing.T) {
	slot := NewTaskSlot(KindLongImage)
	if err := slot.SetPreviewOrder([]string{"a", "b", "c", "d"}); err != nil {
		t.Fatal(err)
	}

	if err := slot.MovePreview(0, 2); err != nil {
		t.Fatal(err)
	}
	want := []string{"b", "c", "a", "d"}
	for i, v := range want {
		if slot.PreviewOrder[i] != v {
			t.Fatalf("after move got %v, want %v", slot.PreviewOrder, want)
		}
	}

	if err := slot.MovePreview(3, 0); err != nil {
		t.Fatal(err)
	}
	if slot.PreviewOrder[0] != "d" {
		t.Fatalf("expected d first, got %v", slot.PreviewOrder)
	}

	if err := slot.MovePreview(-1, 0); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if err := slot.MovePreview(0, 4); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
