package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"evidence-desk/internal/config"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	settingsPath := fs.String("settings", config.DefaultSettingsPath, "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"settings_path": strings.TrimSpace(*settingsPath),
			"settings":      settings,
		})
	}

	fmt.Printf("settings: %s\n", strings.TrimSpace(*settingsPath))
	fmt.Printf("server_url: %s\n", settings.ServerURL)
	fmt.Printf("request_timeout_seconds: %d\n", settings.RequestTimeoutSeconds)
	fmt.Printf("reconnect_delay_seconds: %d\n", settings.ReconnectDelaySeconds)
	fmt.Printf("dial_retries: %d\n", settings.DialRetries)
	fmt.Printf("ping_interval_seconds: %d\n", settings.PingIntervalSeconds)
	fmt.Printf("download_dir: %s\n", settings.DownloadDir)
	return nil
}

func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	settingsPath := fs.String("settings", config.DefaultSettingsPath, "settings file path")
	serverURL := fs.String("server-url", "", "processing server base URL (empty keeps current)")
	timeout := fs.Int("timeout", -1, "HTTP request timeout in seconds (>=1, -1 keeps current)")
	reconnectDelay := fs.Int("reconnect-delay", -1, "reconnect delay in seconds (>=1, -1 keeps current)")
	dialRetries := fs.Int("dial-retries", -1, "push channel dial attempts (>=1, -1 keeps current)")
	pingInterval := fs.Int("ping-interval", -1, "keepalive interval in seconds (0 disables, -1 keeps current)")
	downloadDir := fs.String("download-dir", "", "result download directory (empty keeps current)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, _, err := config.EnsureSettings(*settingsPath)
	if err != nil {
		return err
	}

	if strings.TrimSpace(*serverURL) != "" {
		settings.ServerURL = strings.TrimSpace(*serverURL)
	}
	if *timeout != -1 {
		if *timeout <= 0 {
			return errors.New("--timeout must be >= 1")
		}
		settings.RequestTimeoutSeconds = *timeout
	}
	if *reconnectDelay != -1 {
		if *reconnectDelay <= 0 {
			return errors.New("--reconnect-delay must be >= 1")
		}
		settings.ReconnectDelaySeconds = *reconnectDelay
	}
	if *dialRetries != -1 {
		if *dialRetries <= 0 {
			return errors.New("--dial-retries must be >= 1")
		}
		settings.DialRetries = *dialRetries
	}
	if *pingInterval != -1 {
		if *pingInterval < 0 {
			return errors.New("--ping-interval must be >= 0")
		}
		settings.PingIntervalSeconds = *pingInterval
	}
	if strings.TrimSpace(*downloadDir) != "" {
		settings.DownloadDir = strings.TrimSpace(*downloadDir)
	}

	res, err := config.UpdateSettings(config.UpdateSettingsOptions{
		SettingsPath: *settingsPath,
		Settings:     settings,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}

	fmt.Printf("updated settings in %s\n", res.SettingsPath)
	fmt.Printf("server_url: %s\n", res.Settings.ServerURL)
	fmt.Printf("request_timeout_seconds: %d\n", res.Settings.RequestTimeoutSeconds)
	fmt.Printf("reconnect_delay_seconds: %d\n", res.Settings.ReconnectDelaySeconds)
	fmt.Printf("dial_retries: %d\n", res.Settings.DialRetries)
	fmt.Printf("ping_interval_seconds: %d\n", res.Settings.PingIntervalSeconds)
	fmt.Printf("download_dir: %s\n", res.Settings.DownloadDir)
	return nil
}

func printSettingsUsage() {
	fmt.Println("settings commands:")
	fmt.Println("  settings show")
	fmt.Println("  settings set [--server-url URL] [--timeout N] [--reconnect-delay N]")
	fmt.Println("               [--dial-retries N] [--ping-interval N] [--download-dir PATH]")
}
