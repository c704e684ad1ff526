package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"evidence-desk/internal/config"
	"evidence-desk/internal/model"
	"evidence-desk/internal/pipeline"
	"evidence-desk/internal/push"
)

// resolveClient loads the layered settings and builds the HTTP client.
// A non-empty server flag wins over the settings file and environment.
func resolveClient(settingsPath, serverOverride string) (config.Settings, *pipeline.Client, error) {
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return config.Settings{}, nil, err
	}
	if strings.TrimSpace(serverOverride) != "" {
		settings.ServerURL = strings.TrimSpace(serverOverride)
	}
	client, err := pipeline.NewClient(settings.ServerURL, settings.RequestTimeout())
	if err != nil {
		return config.Settings{}, nil, err
	}
	return settings, client, nil
}

type followOptions struct {
	Client       *pipeline.Client
	Settings     config.Settings
	Slot         *model.TaskSlot
	SessionID    string
	ShowProgress bool
	Verbose      bool

	// Start kicks off server-side processing once the push channel is
	// open, so early status frames are not missed. Nil when the server
	// already started on upload.
	Start func(ctx context.Context) error
}

// followSession opens the push channel for one session and blocks until
// the slot reaches a terminal status, the channel is lost for good, or
// the context is cancelled. The returned slot is a final snapshot.
func followSession(ctx context.Context, opts followOptions) (model.TaskSlot, error) {
	changes := make(chan string, 64)
	mgr := push.NewManager(push.Options{
		ReconnectDelay: opts.Settings.ReconnectDelay(),
		DialAttempts:   opts.Settings.DialRetries,
		PingInterval:   opts.Settings.PingInterval(),
		OnChange: func(sessionID string) {
			select {
			case changes <- sessionID:
			default:
			}
		},
		OnDiagnostic: func(text string) {
			if opts.Verbose {
				fmt.Fprintln(os.Stderr, "push: "+text)
			}
		},
	})
	defer mgr.Shutdown()

	if err := mgr.Register(opts.SessionID, opts.Slot); err != nil {
		return model.TaskSlot{}, err
	}
	if err := mgr.EnsureConnected(ctx, opts.SessionID, opts.Client.WSURL(opts.SessionID)); err != nil {
		return model.TaskSlot{}, err
	}
	if opts.Start != nil {
		if err := opts.Start(ctx); err != nil {
			return model.TaskSlot{}, err
		}
	}

	line := newLiveStatusLine(opts.ShowProgress, opts.Slot.Kind)
	line.Start()

	printedLogs := 0
	var closedSince time.Time
	lostAfter := opts.Settings.ReconnectDelay() + 5*time.Second

	for {
		select {
		case <-ctx.Done():
			line.Stop("interrupted")
			snap, _ := mgr.Snapshot(opts.SessionID)
			return snap, ctx.Err()
		case <-changes:
		case <-time.After(time.Second):
		}

		snap, ok := mgr.Snapshot(opts.SessionID)
		if !ok {
			line.Stop("session released")
			return model.TaskSlot{}, fmt.Errorf("session %s disappeared from the routing table", opts.SessionID)
		}
		if opts.Verbose {
			for ; printedLogs < len(snap.Log); printedLogs++ {
				entry := snap.Log[printedLogs]
				fmt.Printf("%s %s %s\n", entry.Time.Format("15:04:05"), entry.Level, entry.Text)
			}
		}
		line.Update(snap)

		if model.IsTerminalStatus(snap.Status) {
			line.Stop(fmt.Sprintf("[%s] %s", snap.Kind, snap.Status))
			return snap, nil
		}

		// One bounded reconnect is attempted by the manager. If the
		// channel stays closed past that window the job outcome is
		// unknowable from here.
		if mgr.ConnState(opts.SessionID) == push.StateClosed {
			if closedSince.IsZero() {
				closedSince = time.Now()
			} else if time.Since(closedSince) > lostAfter {
				line.Stop("push channel lost")
				return snap, fmt.Errorf("push channel for session %s lost and not recovered", opts.SessionID)
			}
		} else {
			closedSince = time.Time{}
		}
	}
}
