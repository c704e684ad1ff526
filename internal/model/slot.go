package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidState is returned when an action is requested in a slot
// state that does not permit it.
var ErrInvalidState = errors.New("invalid task slot state")

const (
	LogInfo    = "info"
	LogSuccess = "success"
	LogWarning = "warning"
	LogError   = "error"
)

type LogEntry struct {
	Time  time.Time `json:"time"`
	Level string    `json:"level"`
	Text  string    `json:"text"`
}

// TaskSlot holds one job kind's session identity and derived UI state.
// Kind is fixed for the slot's lifetime; everything else is cleared by
// Reset. Two slots exist per client (video, long image) and never share
// a session, a log, or a preview list.
type TaskSlot struct {
	Kind           string     `json:"kind"`
	SessionID      string     `json:"session_id,omitempty"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"`
	Log            []LogEntry `json:"log,omitempty"`
	PreviewOrder   []string   `json:"preview_order,omitempty"`
	ResultLocation string     `json:"result_location,omitempty"`
	ResultSavedTo  string     `json:"result_saved_to,omitempty"`
}

func NewTaskSlot(kind string) *TaskSlot {
	return &TaskSlot{Kind: kind, Status: StatusIdle}
}

func (s *TaskSlot) AppendLog(level, text string) {
	s.Log = append(s.Log, LogEntry{Time: time.Now(), Level: level, Text: text})
}

// Reset returns the slot to idle and clears all session-derived state.
// Always legal; the owning connection must be closed intentionally
// before calling this so a racing close event cannot reconnect.
func (s *TaskSlot) Reset() {
	s.SessionID = ""
	s.Status = StatusIdle
	s.Progress = 0
	s.Log = nil
	s.PreviewOrder = nil
	s.ResultLocation = ""
	s.ResultSavedTo = ""
}

// BeginUpload clears previous session state and marks the slot uploading.
func (s *TaskSlot) BeginUpload() {
	s.Reset()
	s.Status = StatusUploading
}

// AssignSession stores a freshly issued session id and marks the slot
// ready. A session id is never reused across slot generations; starting
// a new job always replaces it.
func (s *TaskSlot) AssignSession(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: empty session id for %s slot", ErrInvalidState, s.Kind)
	}
	if err := TransitionSlotStatus(s, StatusReady); err != nil {
		return err
	}
	s.SessionID = sessionID
	return nil
}

// BeginProcessing enters the processing state and rewinds progress.
// Legal from ready and from any terminal state (reprocess without a
// fresh upload); rejected everywhere else.
func (s *TaskSlot) BeginProcessing() error {
	if s.Status != StatusReady && !IsTerminalStatus(s.Status) {
		return fmt.Errorf("%w: cannot start processing from %q (kind=%s)", ErrInvalidState, s.Status, s.Kind)
	}
	if err := TransitionSlotStatus(s, StatusProcessing); err != nil {
		return err
	}
	s.Progress = 0
	s.ResultLocation = ""
	s.ResultSavedTo = ""
	return nil
}

// SetPreviewOrder replaces the preview list wholesale. Duplicates are
// rejected; the order is meaningful.
func (s *TaskSlot) SetPreviewOrder(order []string) error {
	seen := make(map[string]bool, len(order))
	for _, item := range order {
		if seen[item] {
			return fmt.Errorf("duplicate preview item %q", item)
		}
		seen[item] = true
	}
	s.PreviewOrder = append([]string(nil), order...)
	return nil
}

// MovePreview shifts one preview item to a new position. This is the
// only mutation the reorder widget performs; the server replaces the
// whole list on the next preview-bearing event.
func (s *TaskSlot) MovePreview(from, to int) error {
	n := len(s.PreviewOrder)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("preview move out of range: %d -> %d (len=%d)", from, to, n)
	}
	if from == to {
		return nil
	}
	item := s.PreviewOrder[from]
	rest := append(s.PreviewOrder[:from:from], s.PreviewOrder[from+1:]...)
	out := make([]string, 0, n)
	out = append(out, rest[:to]...)
	out = append(out, item)
	out = append(out, rest[to:]...)
	s.PreviewOrder = out
	return nil
}
