package model

import "fmt"

const (
	KindVideo     = "video"
	KindLongImage = "long_image"
)

const (
	StatusIdle              = "idle"
	StatusUploading         = "uploading"
	StatusReady             = "ready"
	StatusProcessing        = "processing"
	StatusCompleted         = "completed"
	StatusCompletedNoResult = "completed_no_result"
	StatusFailed            = "failed"
)

var allowedTransitions = map[string]map[string]bool{
	StatusIdle: {
		StatusIdle:      true,
		StatusUploading: true,
	},
	StatusUploading: {
		StatusUploading: true,
		StatusReady:     true,
		StatusFailed:    true,
		StatusIdle:      true,
	},
	StatusReady: {
		StatusReady:      true,
		StatusProcessing: true,
		StatusFailed:     true,
		StatusIdle:       true,
	},
	StatusProcessing: {
		StatusProcessing:        true,
		StatusCompleted:         true,
		StatusCompletedNoResult: true,
		StatusFailed:            true,
		StatusIdle:              true,
	},
	StatusCompleted: {
		StatusCompleted:  true,
		StatusProcessing: true, // reprocess without a fresh upload
		StatusIdle:       true,
	},
	StatusCompletedNoResult: {
		StatusCompletedNoResult: true,
		StatusProcessing:        true,
		StatusIdle:              true,
	},
	StatusFailed: {
		StatusFailed:     true,
		StatusProcessing: true,
		StatusIdle:       true,
	},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

// IsTerminalStatus reports whether no further progress is expected
// without starting a new job.
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusCompletedNoResult || status == StatusFailed
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionSlotStatus(slot *TaskSlot, toStatus string) error {
	from := slot.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("%w: %q -> %q (kind=%s session_id=%s)", ErrInvalidState, from, toStatus, slot.Kind, slot.SessionID)
	}
	slot.Status = toStatus
	return nil
}
