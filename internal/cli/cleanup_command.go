package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"evidence-desk/internal/config"
)

func runCleanup(args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	session := fs.String("session", "", "session id to delete on the server")
	server := fs.String("server", "", "server base URL (default: settings/env)")
	settingsPath := fs.String("settings", config.DefaultSettingsPath, "settings file path")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	sessionID := strings.TrimSpace(*session)
	if sessionID == "" {
		fs.Usage()
		return errors.New("--session is required")
	}

	if !*yes {
		ok, err := promptConfirm(fmt.Sprintf("delete server-side data for session %s? [y/N] ", sessionID))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("cleanup cancelled")
			return nil
		}
	}

	_, client, err := resolveClient(*settingsPath, *server)
	if err != nil {
		return err
	}
	msg, err := client.CleanupSession(context.Background(), sessionID)
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(map[string]string{
			"session_id": sessionID,
			"message":    msg,
		})
	}
	fmt.Printf("session %s cleaned up", sessionID)
	if msg != "" {
		fmt.Printf(": %s", msg)
	}
	fmt.Println()
	return nil
}
