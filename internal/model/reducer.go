package model

import "fmt"

// Apply reconciles one inbound push frame into the slot. The caller is
// responsible for routing: the frame's session id has already been
// matched to this slot, and Apply never re-derives ownership.
//
// Apply never fails. Unreachable status transitions and regressive
// progress values are recorded in the slot log and otherwise dropped,
// so out-of-order or duplicate frames cannot corrupt state.
func Apply(slot *TaskSlot, ev StatusEvent) {
	// Rule: every frame appends exactly one message entry; the text is
	// independently meaningful to the user even when nothing else changes.
	slot.AppendLog(eventLogLevel(ev), fmt.Sprintf("[%s] %s", ev.Status, ev.Message))

	if ev.PreviewImages != nil {
		// The server is the source of truth for initial ordering; a
		// preview-bearing frame replaces the client copy wholesale.
		if err := slot.SetPreviewOrder(ev.PreviewImages); err != nil {
			slot.AppendLog(LogWarning, fmt.Sprintf("preview list rejected: %v", err))
		}
	}

	if terminal := ev.TerminalSlotStatus(); terminal != "" {
		applyTerminal(slot, ev, terminal)
		return
	}

	if ev.IsWorking() && slot.Status == StatusReady {
		// The long-image pipeline starts processing server-side right
		// after upload; the first working frame moves the slot along.
		if err := TransitionSlotStatus(slot, StatusProcessing); err != nil {
			slot.AppendLog(LogWarning, err.Error())
			return
		}
		slot.Progress = 0
	}

	applyProgress(slot, ev)
}

func applyTerminal(slot *TaskSlot, ev StatusEvent, terminal string) {
	if !CanTransition(slot.Status, terminal) {
		// A late terminal frame after a client-side reset (or a
		// duplicate) is informative for the log but must not resurrect
		// the slot or its session id.
		slot.AppendLog(LogWarning, fmt.Sprintf("terminal %q ignored in state %q", ev.Status, slot.Status))
		return
	}
	if err := TransitionSlotStatus(slot, terminal); err != nil {
		slot.AppendLog(LogWarning, err.Error())
		return
	}
	switch terminal {
	case StatusCompleted:
		slot.Progress = 100
		slot.ResultLocation = ev.ResultURL
	case StatusCompletedNoResult:
		slot.Progress = 100
	}
}

func applyProgress(slot *TaskSlot, ev StatusEvent) {
	if ev.Progress == nil || slot.Status != StatusProcessing {
		return
	}
	p := *ev.Progress
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if p < slot.Progress {
		slot.AppendLog(LogWarning, fmt.Sprintf("stale progress %d%% ignored (at %d%%)", p, slot.Progress))
		return
	}
	slot.Progress = p
}

func eventLogLevel(ev StatusEvent) string {
	switch ev.Status {
	case EventError:
		return LogError
	case EventCompleted:
		return LogSuccess
	default:
		return LogInfo
	}
}
