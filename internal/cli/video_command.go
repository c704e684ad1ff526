package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"evidence-desk/internal/config"
	"evidence-desk/internal/model"
	"evidence-desk/internal/pipeline"
	"evidence-desk/internal/store"
)

type jobSummary struct {
	Kind      string   `json:"kind"`
	SessionID string   `json:"session_id"`
	Status    string   `json:"status"`
	Progress  int      `json:"progress"`
	ResultURL string   `json:"result_url,omitempty"`
	SavedTo   string   `json:"saved_to,omitempty"`
	Previews  []string `json:"previews,omitempty"`
	Cleanup   string   `json:"cleanup,omitempty"`
}

func runVideo(args []string) error {
	fs := flag.NewFlagSet("video", flag.ContinueOnError)
	file := fs.String("file", "", "video file to upload")
	server := fs.String("server", "", "server base URL (default: settings/env)")
	settingsPath := fs.String("settings", config.DefaultSettingsPath, "settings file path")
	interval := fs.Float64("interval", pipeline.DefaultFrameIntervalSeconds, "frame sampling interval in seconds")
	excludeFile := fs.String("exclude-file", "", "file with OCR exclusion phrases, one per line")
	ocrRect := fs.String("ocr-rect", "", "OCR analysis rectangle as x,y,w,h (empty = full frame)")
	rows := fs.Int("rows", pipeline.DefaultPDFRows, "PDF grid rows per page")
	cols := fs.Int("cols", pipeline.DefaultVideoPDFCols, "PDF grid columns per page")
	title := fs.String("title", "", "PDF title")
	layout := fs.String("layout", pipeline.LayoutGrid, "PDF layout: grid|column")
	refFrame := fs.String("ref-frame", "", "save the reference frame PNG to this path before processing")
	download := fs.Bool("download", true, "download the result PDF when completed")
	cleanup := fs.Bool("cleanup", false, "delete server-side session data afterwards")
	progress := fs.Bool("progress", true, "show live status line")
	verbose := fs.Bool("verbose", false, "print every status log line")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*file) == "" {
		fs.Usage()
		return errors.New("--file is required")
	}

	rect, err := parseOCRRect(*ocrRect)
	if err != nil {
		return err
	}
	exclusions, err := readExclusionList(*excludeFile)
	if err != nil {
		return err
	}

	settings, client, err := resolveClient(*settingsPath, *server)
	if err != nil {
		return err
	}
	ctx := context.Background()

	slot := model.NewTaskSlot(model.KindVideo)
	slot.BeginUpload()
	up, err := client.UploadVideo(ctx, pipeline.UploadVideoOptions{FilePath: strings.TrimSpace(*file)})
	if err != nil {
		return err
	}
	if err := slot.AssignSession(up.SessionID); err != nil {
		return err
	}

	if strings.TrimSpace(*refFrame) != "" {
		png, err := client.ReferenceFrame(ctx, up.SessionID)
		if err != nil {
			return err
		}
		if err := store.WriteBytes(strings.TrimSpace(*refFrame), png); err != nil {
			return err
		}
		if !*jsonOut {
			fmt.Printf("reference frame saved: %s\n", strings.TrimSpace(*refFrame))
		}
	}

	processSettings := pipeline.NormalizeProcessSettings(pipeline.ProcessSettings{
		FrameIntervalSeconds: *interval,
		ExclusionList:        exclusions,
		OCRAnalysisRect:      rect,
		PDFRows:              *rows,
		PDFCols:              *cols,
		PDFTitle:             strings.TrimSpace(*title),
		PDFLayout:            strings.TrimSpace(*layout),
	})
	if err := slot.BeginProcessing(); err != nil {
		return err
	}

	final, err := followSession(ctx, followOptions{
		Client:       client,
		Settings:     settings,
		Slot:         slot,
		SessionID:    up.SessionID,
		ShowProgress: *progress && !*verbose,
		Verbose:      *verbose,
		Start: func(ctx context.Context) error {
			_, err := client.ProcessVideo(ctx, up.SessionID, processSettings)
			return err
		},
	})
	if err != nil {
		return err
	}

	return finishJob(ctx, client, final, finishOptions{
		Download:    *download,
		DownloadDir: settings.DownloadDir,
		Cleanup:     *cleanup,
		JSON:        *jsonOut,
	})
}

type finishOptions struct {
	Download    bool
	DownloadDir string
	Cleanup     bool
	JSON        bool
}

// finishJob downloads the result for a completed slot, optionally
// releases the server-side session, and prints the summary.
func finishJob(ctx context.Context, client *pipeline.Client, final model.TaskSlot, opts finishOptions) error {
	summary := jobSummary{
		Kind:      final.Kind,
		SessionID: final.SessionID,
		Status:    final.Status,
		Progress:  final.Progress,
		ResultURL: final.ResultLocation,
		Previews:  final.PreviewOrder,
	}

	if opts.Download && final.Status == model.StatusCompleted && final.ResultLocation != "" {
		saved, err := client.DownloadResult(ctx, final.ResultLocation, opts.DownloadDir)
		if err != nil {
			return err
		}
		summary.SavedTo = saved
	}
	if opts.Cleanup && final.SessionID != "" {
		msg, err := client.CleanupSession(ctx, final.SessionID)
		if err != nil {
			return err
		}
		summary.Cleanup = msg
	}

	if opts.JSON {
		if err := printJSON(summary); err != nil {
			return err
		}
	} else {
		printJobSummary(summary)
	}

	if final.Status == model.StatusFailed {
		return fmt.Errorf("%s job failed", final.Kind)
	}
	return nil
}

func printJobSummary(s jobSummary) {
	fmt.Println("job summary")
	fmt.Printf("kind: %s\n", s.Kind)
	fmt.Printf("session_id: %s\n", s.SessionID)
	fmt.Printf("status: %s\n", s.Status)
	fmt.Printf("progress: %d%%\n", s.Progress)
	if s.ResultURL != "" {
		fmt.Printf("result_url: %s\n", s.ResultURL)
	}
	if s.SavedTo != "" {
		fmt.Printf("saved_to: %s\n", s.SavedTo)
	}
	if len(s.Previews) > 0 {
		fmt.Printf("previews: %d\n", len(s.Previews))
	}
	if s.Cleanup != "" {
		fmt.Printf("cleanup: %s\n", s.Cleanup)
	}
}
