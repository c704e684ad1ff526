package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"evidence-desk/internal/config"
	"evidence-desk/internal/model"
	"evidence-desk/internal/pipeline"
	"evidence-desk/internal/push"
	"evidence-desk/internal/store"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

type panelMode int

const (
	panelModeBrowse panelMode = iota
	panelModeForm
	panelModeConfirmReset
)

// panelPane is one half of the monitor: a task slot plus the local UI
// state that does not belong in the slot itself.
type panelPane struct {
	kind          string
	slot          *model.TaskSlot
	registered    bool
	sessionID     string
	previewCursor int
	lastProcess   pipeline.ProcessSettings
	hasProcess    bool
	busy          bool
	savedTo       string
}

type panelModel struct {
	settings config.Settings
	client   *pipeline.Client
	manager  *push.Manager
	changes  chan string

	video *panelPane
	long  *panelPane
	focus string
	bar   progress.Model

	width  int
	height int
	mode   panelMode
	form   *jobForm

	confirmCleanup bool
	statusMessage  string
	fatalErr       error
}

type panelChangeMsg struct{ sessionID string }

type jobStartedMsg struct {
	kind      string
	sessionID string
	err       error
}

type processAckMsg struct {
	kind string
	ack  string
	err  error
}

type downloadDoneMsg struct {
	kind string
	path string
	err  error
}

type cleanupDoneMsg struct {
	kind    string
	message string
	err     error
}

type refFrameMsg struct {
	kind string
	path string
	err  error
}

func runPanel(args []string) error {
	fs := flag.NewFlagSet("panel", flag.ContinueOnError)
	server := fs.String("server", "", "server base URL (default: settings/env)")
	settingsPath := fs.String("settings", config.DefaultSettingsPath, "settings file path")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("panel requires an interactive terminal (TTY)")
	}

	settings, client, err := resolveClient(*settingsPath, *server)
	if err != nil {
		return err
	}

	changes := make(chan string, 128)
	mgr := push.NewManager(push.Options{
		ReconnectDelay: settings.ReconnectDelay(),
		DialAttempts:   settings.DialRetries,
		PingInterval:   settings.PingInterval(),
		OnChange: func(sessionID string) {
			select {
			case changes <- sessionID:
			default:
			}
		},
	})
	defer mgr.Shutdown()

	m := newPanelModel(settings, client, mgr, changes)
	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("panel requires an interactive terminal (TTY)")
		}
		return err
	}
	if fm, ok := finalModel.(panelModel); ok {
		return fm.fatalErr
	}
	return nil
}

func newPanelModel(settings config.Settings, client *pipeline.Client, mgr *push.Manager, changes chan string) panelModel {
	return panelModel{
		settings: settings,
		client:   client,
		manager:  mgr,
		changes:  changes,
		video:    &panelPane{kind: model.KindVideo, slot: model.NewTaskSlot(model.KindVideo)},
		long:     &panelPane{kind: model.KindLongImage, slot: model.NewTaskSlot(model.KindLongImage)},
		focus:    model.KindVideo,
		bar:      progress.New(progress.WithDefaultGradient()),
		mode:     panelModeBrowse,
	}
}

func (m panelModel) Init() tea.Cmd {
	return waitForChangeCmd(m.changes)
}

func waitForChangeCmd(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		sessionID, ok := <-ch
		if !ok {
			return nil
		}
		return panelChangeMsg{sessionID: sessionID}
	}
}

func (m panelModel) pane(kind string) *panelPane {
	if kind == model.KindLongImage {
		return m.long
	}
	return m.video
}

func (m panelModel) focused() *panelPane {
	return m.pane(m.focus)
}

// snapshot reads the pane's slot. Registered panes go through the
// manager so the read serializes with event dispatch; unregistered
// slots have no concurrent writer.
func (m panelModel) snapshot(p *panelPane) model.TaskSlot {
	if p.registered {
		if snap, ok := m.manager.Snapshot(p.sessionID); ok {
			return snap
		}
	}
	snap := *p.slot
	snap.Log = append([]model.LogEntry(nil), p.slot.Log...)
	snap.PreviewOrder = append([]string(nil), p.slot.PreviewOrder...)
	return snap
}

func (m panelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case panelChangeMsg:
		// Event applied by the push manager; re-render and re-arm.
		return m, waitForChangeCmd(m.changes)
	case jobStartedMsg:
		return m.handleJobStarted(msg)
	case processAckMsg:
		pane := m.pane(msg.kind)
		pane.busy = false
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			m.logToPane(pane, model.LogError, "processing request failed: "+msg.err.Error())
			return m, nil
		}
		if msg.ack != "" {
			m.statusMessage = msg.ack
		}
		return m, nil
	case downloadDoneMsg:
		pane := m.pane(msg.kind)
		pane.busy = false
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		pane.savedTo = msg.path
		m.setSavedTo(pane, msg.path)
		m.statusMessage = "saved " + msg.path
		return m, nil
	case cleanupDoneMsg:
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		m.statusMessage = defaultIfEmpty(msg.message, "server session cleaned up")
		return m, nil
	case refFrameMsg:
		pane := m.pane(msg.kind)
		pane.busy = false
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		m.statusMessage = "reference frame saved " + msg.path
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.mode {
	case panelModeForm:
		return m.updateForm(keyMsg)
	case panelModeConfirmReset:
		return m.updateConfirmReset(keyMsg)
	default:
		return m.updateBrowse(keyMsg)
	}
}

func (m panelModel) handleJobStarted(msg jobStartedMsg) (tea.Model, tea.Cmd) {
	pane := m.pane(msg.kind)
	if msg.err != nil {
		pane.busy = false
		pane.slot.Reset()
		m.statusMessage = "error: " + msg.err.Error()
		return m, nil
	}

	if err := pane.slot.AssignSession(msg.sessionID); err != nil {
		pane.busy = false
		m.statusMessage = "error: " + err.Error()
		return m, nil
	}
	if err := pane.slot.BeginProcessing(); err != nil {
		pane.busy = false
		m.statusMessage = "error: " + err.Error()
		return m, nil
	}
	if err := m.manager.Register(msg.sessionID, pane.slot); err != nil {
		pane.busy = false
		m.statusMessage = "error: " + err.Error()
		return m, nil
	}
	pane.registered = true
	pane.sessionID = msg.sessionID
	pane.previewCursor = 0
	pane.savedTo = ""
	m.statusMessage = fmt.Sprintf("%s session %s started", pane.kind, msg.sessionID)

	if pane.kind == model.KindVideo {
		return m, m.connectAndProcessCmd(pane.kind, msg.sessionID, pane.lastProcess)
	}
	return m, m.connectCmd(pane.kind, msg.sessionID)
}

func (m panelModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pane := m.focused()
	snap := m.snapshot(pane)

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab", "left", "right":
		if m.focus == model.KindVideo {
			m.focus = model.KindLongImage
		} else {
			m.focus = model.KindVideo
		}
		return m, nil
	case "n":
		if pane.busy || snap.Status == model.StatusProcessing || snap.Status == model.StatusUploading {
			m.statusMessage = "finish or reset the current job first"
			return m, nil
		}
		m.mode = panelModeForm
		m.form = newJobForm(pane.kind, m.width)
		m.statusMessage = ""
		return m, nil
	case "r":
		if pane.busy || !model.IsTerminalStatus(snap.Status) {
			m.statusMessage = "reprocess needs a finished job"
			return m, nil
		}
		if !pane.hasProcess {
			m.statusMessage = "no previous processing parameters to reuse"
			return m, nil
		}
		return m.startReprocess(pane, snap)
	case "d":
		if pane.busy || snap.Status != model.StatusCompleted || snap.ResultLocation == "" {
			m.statusMessage = "no result to download"
			return m, nil
		}
		pane.busy = true
		return m, m.downloadResultCmd(pane.kind, snap.ResultLocation)
	case "f":
		if pane.kind != model.KindVideo || pane.busy || snap.SessionID == "" {
			m.statusMessage = "reference frame needs an active video session"
			return m, nil
		}
		pane.busy = true
		return m, m.saveRefFrameCmd(pane.kind, snap.SessionID)
	case "x", "c":
		if snap.Status == model.StatusIdle {
			m.statusMessage = "slot is already idle"
			return m, nil
		}
		m.mode = panelModeConfirmReset
		m.confirmCleanup = msg.String() == "c"
		return m, nil
	case "up", "k":
		if pane.previewCursor > 0 {
			pane.previewCursor--
		}
		return m, nil
	case "down", "j":
		if pane.previewCursor < len(snap.PreviewOrder)-1 {
			pane.previewCursor++
		}
		return m, nil
	case "K", "shift+up":
		return m.movePreview(pane, -1)
	case "J", "shift+down":
		return m.movePreview(pane, +1)
	}
	return m, nil
}

func (m panelModel) movePreview(pane *panelPane, step int) (tea.Model, tea.Cmd) {
	from := pane.previewCursor
	to := from + step
	mutate := func(slot *model.TaskSlot) error {
		return slot.MovePreview(from, to)
	}
	var err error
	if pane.registered {
		err = m.manager.Mutate(pane.sessionID, mutate)
	} else {
		err = mutate(pane.slot)
	}
	if err != nil {
		m.statusMessage = "error: " + err.Error()
		return m, nil
	}
	pane.previewCursor = to
	return m, nil
}

func (m panelModel) startReprocess(pane *panelPane, snap model.TaskSlot) (tea.Model, tea.Cmd) {
	// Reprocessing reuses the session and the adjusted preview order.
	ps := pane.lastProcess
	ps.ImageOrder = pipeline.ImageOrderFromPreviews(snap.PreviewOrder)
	begin := func(slot *model.TaskSlot) error { return slot.BeginProcessing() }
	var err error
	if pane.registered {
		err = m.manager.Mutate(pane.sessionID, begin)
	} else {
		err = begin(pane.slot)
	}
	if err != nil {
		m.statusMessage = "error: " + err.Error()
		return m, nil
	}
	pane.busy = true
	m.statusMessage = "reprocessing " + pane.kind
	return m, m.connectAndProcessCmd(pane.kind, snap.SessionID, ps)
}

func (m panelModel) updateConfirmReset(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc", "n":
		m.mode = panelModeBrowse
		m.statusMessage = "reset cancelled"
		return m, nil
	case "y", "enter":
		m.mode = panelModeBrowse
		pane := m.focused()
		sessionID := pane.sessionID
		if pane.registered {
			m.manager.Unregister(sessionID)
			pane.registered = false
		}
		pane.slot.Reset()
		pane.sessionID = ""
		pane.previewCursor = 0
		pane.savedTo = ""
		pane.hasProcess = false
		m.statusMessage = pane.kind + " slot reset"
		if m.confirmCleanup && sessionID != "" {
			return m, m.cleanupSessionCmd(pane.kind, sessionID)
		}
		return m, nil
	}
	return m, nil
}

func (m panelModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.mode = panelModeBrowse
		return m, nil
	}
	if m.form.Saving {
		return m, nil
	}

	key := msg.String()
	switch key {
	case "ctrl+c", "esc":
		m.mode = panelModeBrowse
		m.form = nil
		m.statusMessage = "job setup cancelled"
		return m, nil
	case "up", "shift+tab":
		m.form.commitInput()
		if m.form.Index > 0 {
			m.form.Index--
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case "down", "tab":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 {
			m.form.Index++
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case " ", "space", "right", "l":
		if m.form.currentField().Kind == jobFieldSelect {
			m.form.nextSelectOption()
			return m, nil
		}
	case "left", "h":
		if m.form.currentField().Kind == jobFieldSelect {
			m.form.prevSelectOption()
			return m, nil
		}
	case "enter", "ctrl+s":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 && key != "ctrl+s" {
			m.form.Index++
			m.form.loadFieldIntoInput()
			return m, nil
		}
		return m.submitForm()
	}

	if m.form.currentField().Kind == jobFieldSelect {
		return m, nil
	}
	var cmd tea.Cmd
	m.form.Input, cmd = m.form.Input.Update(msg)
	m.form.Fields[m.form.Index].Value = m.form.Input.Value()
	return m, cmd
}

func (m panelModel) submitForm() (tea.Model, tea.Cmd) {
	pane := m.pane(m.form.Kind)

	if pane.registered {
		m.manager.Unregister(pane.sessionID)
		pane.registered = false
		pane.sessionID = ""
	}

	if m.form.Kind == model.KindVideo {
		spec, err := m.form.toVideoSpec()
		if err != nil {
			m.form.Error = err.Error()
			return m, nil
		}
		m.form.Error = ""
		m.form.Saving = true
		pane.lastProcess = spec.Process
		pane.hasProcess = true
		pane.busy = true
		pane.slot.BeginUpload()
		m.mode = panelModeBrowse
		m.form = nil
		m.statusMessage = "uploading video..."
		return m, m.uploadVideoCmd(spec)
	}

	spec, err := m.form.toLongSpec()
	if err != nil {
		m.form.Error = err.Error()
		return m, nil
	}
	m.form.Error = ""
	m.form.Saving = true
	pane.lastProcess = pipeline.NormalizeProcessSettings(pipeline.ProcessSettings{
		PDFRows:   spec.Settings.PDFRows,
		PDFCols:   spec.Settings.PDFCols,
		PDFTitle:  spec.Settings.PDFTitle,
		PDFLayout: spec.Settings.PDFLayout,
	})
	pane.hasProcess = true
	pane.busy = true
	pane.slot.BeginUpload()
	m.mode = panelModeBrowse
	m.form = nil
	m.statusMessage = "uploading long screenshot..."
	return m, m.uploadLongImageCmd(spec)
}

func (m panelModel) uploadVideoCmd(spec videoJobSpec) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		res, err := client.UploadVideo(context.Background(), pipeline.UploadVideoOptions{FilePath: spec.FilePath})
		if err != nil {
			return jobStartedMsg{kind: model.KindVideo, err: err}
		}
		return jobStartedMsg{kind: model.KindVideo, sessionID: res.SessionID}
	}
}

func (m panelModel) uploadLongImageCmd(spec longJobSpec) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		res, err := client.SliceLongImage(context.Background(), pipeline.SliceLongImageOptions{
			FilePath: spec.FilePath,
			Settings: spec.Settings,
		})
		if err != nil {
			return jobStartedMsg{kind: model.KindLongImage, err: err}
		}
		return jobStartedMsg{kind: model.KindLongImage, sessionID: res.SessionID}
	}
}

func (m panelModel) connectCmd(kind, sessionID string) tea.Cmd {
	mgr := m.manager
	client := m.client
	return func() tea.Msg {
		err := mgr.EnsureConnected(context.Background(), sessionID, client.WSURL(sessionID))
		return processAckMsg{kind: kind, err: err}
	}
}

func (m panelModel) connectAndProcessCmd(kind, sessionID string, ps pipeline.ProcessSettings) tea.Cmd {
	mgr := m.manager
	client := m.client
	return func() tea.Msg {
		ctx := context.Background()
		if err := mgr.EnsureConnected(ctx, sessionID, client.WSURL(sessionID)); err != nil {
			return processAckMsg{kind: kind, err: err}
		}
		ack, err := client.ProcessVideo(ctx, sessionID, ps)
		return processAckMsg{kind: kind, ack: ack, err: err}
	}
}

func (m panelModel) downloadResultCmd(kind, resultURL string) tea.Cmd {
	client := m.client
	dir := m.settings.DownloadDir
	return func() tea.Msg {
		path, err := client.DownloadResult(context.Background(), resultURL, dir)
		return downloadDoneMsg{kind: kind, path: path, err: err}
	}
}

func (m panelModel) cleanupSessionCmd(kind, sessionID string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		msg, err := client.CleanupSession(context.Background(), sessionID)
		return cleanupDoneMsg{kind: kind, message: msg, err: err}
	}
}

func (m panelModel) saveRefFrameCmd(kind, sessionID string) tea.Cmd {
	client := m.client
	dir := m.settings.DownloadDir
	return func() tea.Msg {
		png, err := client.ReferenceFrame(context.Background(), sessionID)
		if err != nil {
			return refFrameMsg{kind: kind, err: err}
		}
		path, err := saveReferenceFrame(dir, sessionID, png)
		return refFrameMsg{kind: kind, path: path, err: err}
	}
}

func saveReferenceFrame(dir, sessionID string, png []byte) (string, error) {
	path := store.UniquePath(filepath.Join(dir, "reference-"+sessionID+".png"))
	if err := store.WriteBytes(path, png); err != nil {
		return "", err
	}
	return path, nil
}

func (m panelModel) setSavedTo(pane *panelPane, path string) {
	if pane.registered {
		_ = m.manager.Mutate(pane.sessionID, func(slot *model.TaskSlot) error {
			slot.ResultSavedTo = path
			return nil
		})
		return
	}
	pane.slot.ResultSavedTo = path
}

func (m panelModel) logToPane(pane *panelPane, level, text string) {
	if pane.registered {
		_ = m.manager.Mutate(pane.sessionID, func(slot *model.TaskSlot) error {
			slot.AppendLog(level, text)
			return nil
		})
		return
	}
	pane.slot.AppendLog(level, text)
}
