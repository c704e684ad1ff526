package model

import "strings"

// Wire status tags sent by the processing service. The in-progress
// family is open-ended free text; workingStatusMarkers is matched by
// substring for "still working" updates.
const (
	EventCompleted         = "completed"
	EventCompletedNoPDF    = "completed_no_pdf"
	EventCompletedNoResult = "completed_no_result"
	EventError             = "error"
)

var workingStatusMarkers = []string{
	"processing",
	"extracting_frames",
	"frames_extracted",
	"ocr_completed",
	"pdf_generating",
	"pdfGenerating",
	"longImageProcessing",
	"slicing",
	"preview_ready",
}

// StatusEvent is one decoded push-channel frame.
type StatusEvent struct {
	SessionID     string   `json:"session_id"`
	Status        string   `json:"status"`
	Message       string   `json:"message"`
	Progress      *int     `json:"progress,omitempty"`
	PreviewImages []string `json:"preview_images,omitempty"`
	ResultURL     string   `json:"result_url,omitempty"`
}

// IsTerminal reports whether the event carries a terminal outcome.
func (e StatusEvent) IsTerminal() bool {
	switch e.Status {
	case EventCompleted, EventCompletedNoPDF, EventCompletedNoResult, EventError:
		return true
	}
	return false
}

// TerminalSlotStatus maps a terminal wire tag to the slot status it
// lands in. Empty for non-terminal tags.
func (e StatusEvent) TerminalSlotStatus() string {
	switch e.Status {
	case EventCompleted:
		return StatusCompleted
	case EventCompletedNoPDF, EventCompletedNoResult:
		return StatusCompletedNoResult
	case EventError:
		return StatusFailed
	}
	return ""
}

// IsWorking reports whether the tag belongs to the in-progress family.
func (e StatusEvent) IsWorking() bool {
	for _, marker := range workingStatusMarkers {
		if strings.Contains(e.Status, marker) {
			return true
		}
	}
	return false
}
