package cli

import (
	"errors"
	"testing"

	"evidence-desk/internal/config"
	"evidence-desk/internal/model"
	"evidence-desk/internal/push"

	tea "github.com/charmbracelet/bubbletea"
)

var errTest = errors.New("upload failed")

func newTestPanelModel(t *testing.T) panelModel {
	t.Helper()
	return newPanelModel(config.Settings{DownloadDir: t.TempDir()}, nil, push.NewManager(push.Options{}), make(chan string, 8))
}

func readySlot(t *testing.T, slot *model.TaskSlot, sessionID string) {
	t.Helper()
	slot.BeginUpload()
	if err := slot.AssignSession(sessionID); err != nil {
		t.Fatal(err)
	}
}

func TestPanelTabSwitchesFocus(t *testing.T) {
	m := newTestPanelModel(t)
	if m.focus != model.KindVideo {
		t.Fatalf("initial focus = %q", m.focus)
	}

	next, _ := m.updateBrowse(tea.KeyMsg{Type: tea.KeyTab})
	m2 := next.(panelModel)
	if m2.focus != model.KindLongImage {
		t.Fatalf("focus after tab = %q", m2.focus)
	}

	next, _ = m2.updateBrowse(tea.KeyMsg{Type: tea.KeyTab})
	m3 := next.(panelModel)
	if m3.focus != model.KindVideo {
		t.Fatalf("focus after second tab = %q", m3.focus)
	}
}

func TestPanelPreviewReorder(t *testing.T) {
	m := newTestPanelModel(t)
	readySlot(t, m.video.slot, "v1")
	if err := m.video.slot.SetPreviewOrder([]string{"a.png", "b.png", "c.png"}); err != nil {
		t.Fatal(err)
	}

	next, _ := m.updateBrowse(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'J'}})
	m2 := next.(panelModel)
	got := m2.video.slot.PreviewOrder
	if got[0] != "b.png" || got[1] != "a.png" || got[2] != "c.png" {
		t.Fatalf("unexpected order after move down: %v", got)
	}
	if m2.video.previewCursor != 1 {
		t.Fatalf("cursor should follow the moved item, got %d", m2.video.previewCursor)
	}

	next, _ = m2.updateBrowse(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'K'}})
	m3 := next.(panelModel)
	got = m3.video.slot.PreviewOrder
	if got[0] != "a.png" || got[1] != "b.png" {
		t.Fatalf("unexpected order after move up: %v", got)
	}
}

func TestPanelPreviewMoveOutOfRangeIsRejected(t *testing.T) {
	m := newTestPanelModel(t)
	readySlot(t, m.video.slot, "v1")
	if err := m.video.slot.SetPreviewOrder([]string{"a.png"}); err != nil {
		t.Fatal(err)
	}

	next, _ := m.updateBrowse(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'J'}})
	m2 := next.(panelModel)
	if len(m2.video.slot.PreviewOrder) != 1 || m2.video.slot.PreviewOrder[0] != "a.png" {
		t.Fatalf("single-item order must be unchanged: %v", m2.video.slot.PreviewOrder)
	}
	if m2.video.previewCursor != 0 {
		t.Fatalf("cursor must not move on rejected reorder, got %d", m2.video.previewCursor)
	}
}

func TestPanelResetConfirmClearsSlot(t *testing.T) {
	m := newTestPanelModel(t)
	readySlot(t, m.video.slot, "v1")
	m.video.sessionID = "v1"

	next, _ := m.updateBrowse(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	m2 := next.(panelModel)
	if m2.mode != panelModeConfirmReset {
		t.Fatal("expected confirm mode after x")
	}

	next, _ = m2.updateConfirmReset(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	m3 := next.(panelModel)
	if m3.mode != panelModeBrowse {
		t.Fatal("expected browse mode after confirm")
	}
	if m3.video.slot.Status != model.StatusIdle || m3.video.slot.SessionID != "" {
		t.Fatalf("slot not reset: status=%q session=%q", m3.video.slot.Status, m3.video.slot.SessionID)
	}
	if m3.video.sessionID != "" {
		t.Fatalf("pane session not cleared: %q", m3.video.sessionID)
	}
}

func TestPanelResetCancelKeepsSlot(t *testing.T) {
	m := newTestPanelModel(t)
	readySlot(t, m.video.slot, "v1")
	m.mode = panelModeConfirmReset

	next, _ := m.updateConfirmReset(tea.KeyMsg{Type: tea.KeyEsc})
	m2 := next.(panelModel)
	if m2.mode != panelModeBrowse {
		t.Fatal("expected browse mode after cancel")
	}
	if m2.video.slot.Status != model.StatusReady {
		t.Fatalf("slot must be untouched, got %q", m2.video.slot.Status)
	}
}

func TestPanelNewJobRejectedWhileProcessing(t *testing.T) {
	m := newTestPanelModel(t)
	readySlot(t, m.video.slot, "v1")
	if err := m.video.slot.BeginProcessing(); err != nil {
		t.Fatal(err)
	}

	next, _ := m.updateBrowse(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	m2 := next.(panelModel)
	if m2.mode != panelModeBrowse {
		t.Fatal("form must not open while processing")
	}
	if m2.statusMessage == "" {
		t.Fatal("expected an explanatory status message")
	}
}

func TestPanelJobStartedRegistersAndStartsProcessing(t *testing.T) {
	m := newTestPanelModel(t)
	m.video.slot.BeginUpload()
	m.video.busy = true
	m.video.hasProcess = true

	next, cmd := m.handleJobStarted(jobStartedMsg{kind: model.KindVideo, sessionID: "v-9"})
	m2 := next.(panelModel)
	if !m2.video.registered || m2.video.sessionID != "v-9" {
		t.Fatalf("pane not registered: registered=%v session=%q", m2.video.registered, m2.video.sessionID)
	}
	if m2.video.slot.Status != model.StatusProcessing {
		t.Fatalf("slot status = %q", m2.video.slot.Status)
	}
	if cmd == nil {
		t.Fatal("expected a follow-up command")
	}
	if _, ok := m2.manager.Snapshot("v-9"); !ok {
		t.Fatal("session missing from the routing table")
	}
}

func TestPanelJobStartErrorResetsSlot(t *testing.T) {
	m := newTestPanelModel(t)
	m.video.slot.BeginUpload()
	m.video.busy = true

	next, _ := m.handleJobStarted(jobStartedMsg{kind: model.KindVideo, err: errTest})
	m2 := next.(panelModel)
	if m2.video.busy {
		t.Fatal("pane must not stay busy after a failed upload")
	}
	if m2.video.slot.Status != model.StatusIdle {
		t.Fatalf("slot status = %q", m2.video.slot.Status)
	}
	if m2.statusMessage == "" {
		t.Fatal("expected an error status message")
	}
}

func TestJobFormSelectCycles(t *testing.T) {
	m := newTestPanelModel(t)
	m.mode = panelModeForm
	m.form = newJobForm(model.KindLongImage, 80)
	m.form.Index = findJobFieldIndex(m.form, "layout")
	if m.form.Index < 0 {
		t.Fatal("layout field not found")
	}
	m.form.loadFieldIntoInput()

	next, _ := m.updateForm(tea.KeyMsg{Type: tea.KeySpace})
	m2 := next.(panelModel)
	if got := m2.form.currentField().Value; got != "grid" {
		t.Fatalf("expected grid after cycling from column, got %q", got)
	}

	next, _ = m2.updateForm(tea.KeyMsg{Type: tea.KeyLeft})
	m3 := next.(panelModel)
	if got := m3.form.currentField().Value; got != "column" {
		t.Fatalf("expected column after cycling back, got %q", got)
	}
}

func TestJobFormRequiresFile(t *testing.T) {
	m := newTestPanelModel(t)
	m.mode = panelModeForm
	m.form = newJobForm(model.KindVideo, 80)
	m.form.Index = len(m.form.Fields) - 1
	m.form.loadFieldIntoInput()

	next, _ := m.updateForm(tea.KeyMsg{Type: tea.KeyEnter})
	m2 := next.(panelModel)
	if m2.form == nil || m2.form.Error == "" {
		t.Fatal("expected a validation error for the missing file")
	}
	if m2.mode != panelModeForm {
		t.Fatal("form must stay open on validation error")
	}
}

func TestJobFormToVideoSpecAppliesDefaults(t *testing.T) {
	f := newJobForm(model.KindVideo, 80)
	f.Fields[findJobFieldIndex(f, "file")].Value = "/tmp/lecture.mp4"

	spec, err := f.toVideoSpec()
	if err != nil {
		t.Fatalf("toVideoSpec: %v", err)
	}
	if spec.FilePath != "/tmp/lecture.mp4" {
		t.Fatalf("file = %q", spec.FilePath)
	}
	if spec.Process.FrameIntervalSeconds != 1 {
		t.Fatalf("interval = %v", spec.Process.FrameIntervalSeconds)
	}
	if spec.Process.PDFRows != 3 || spec.Process.PDFCols != 2 {
		t.Fatalf("grid = %dx%d", spec.Process.PDFRows, spec.Process.PDFCols)
	}
	if spec.Process.PDFLayout != "grid" {
		t.Fatalf("layout = %q", spec.Process.PDFLayout)
	}
}

func findJobFieldIndex(f *jobForm, key string) int {
	for i, field := range f.Fields {
		if field.Key == key {
			return i
		}
	}
	return -1
}
