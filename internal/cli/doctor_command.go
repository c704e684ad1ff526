package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"evidence-desk/internal/config"
	"evidence-desk/internal/pipeline"
	"evidence-desk/internal/store"
)

type doctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type doctorResult struct {
	OK     bool          `json:"ok"`
	Checks []doctorCheck `json:"checks"`
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	server := fs.String("server", "", "server base URL (default: settings/env)")
	settingsPath := fs.String("settings", config.DefaultSettingsPath, "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	checks := make([]doctorCheck, 0, 3)

	settings, created, err := config.EnsureSettings(*settingsPath)
	if err != nil {
		checks = append(checks, doctorCheck{Name: "settings", Message: err.Error()})
	} else {
		msg := "loaded"
		if created {
			msg = "created with defaults"
		}
		checks = append(checks, doctorCheck{Name: "settings", OK: true, Message: msg})
	}
	if strings.TrimSpace(*server) != "" {
		settings.ServerURL = strings.TrimSpace(*server)
	}

	checks = append(checks, serverCheck(settings.ServerURL))

	dirOK, dirMsg := ensureWritableDir(settings.DownloadDir)
	checks = append(checks, doctorCheck{Name: "directory:downloads", OK: dirOK, Message: dirMsg})

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	result := doctorResult{OK: ok, Checks: checks}

	if *jsonOut {
		return printJSON(result)
	}
	for _, c := range result.Checks {
		mark := "ok"
		if !c.OK {
			mark = "FAIL"
		}
		fmt.Printf("%-22s %-5s %s\n", c.Name, mark, c.Message)
	}
	if !result.OK {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

func serverCheck(serverURL string) doctorCheck {
	client, err := pipeline.NewClient(serverURL, 5*time.Second)
	if err != nil {
		return doctorCheck{Name: "server", Message: err.Error()}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		return doctorCheck{Name: "server", Message: fmt.Sprintf("%s unreachable: %v", serverURL, err)}
	}
	return doctorCheck{Name: "server", OK: true, Message: serverURL + " reachable"}
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := store.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "evidence-desk-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
