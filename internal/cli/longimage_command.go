package cli

import (
	"context"
	"errors"
	"flag"
	"strings"

	"evidence-desk/internal/config"
	"evidence-desk/internal/model"
	"evidence-desk/internal/pipeline"
)

func runLongImage(args []string) error {
	fs := flag.NewFlagSet("longimage", flag.ContinueOnError)
	file := fs.String("file", "", "long screenshot file to upload")
	server := fs.String("server", "", "server base URL (default: settings/env)")
	settingsPath := fs.String("settings", config.DefaultSettingsPath, "settings file path")
	sliceHeight := fs.Int("slice-height", pipeline.DefaultSliceHeight, "slice height in pixels")
	overlap := fs.Int("overlap", pipeline.DefaultOverlap, "vertical overlap between slices in pixels")
	rows := fs.Int("rows", pipeline.DefaultPDFRows, "PDF grid rows per page")
	cols := fs.Int("cols", pipeline.DefaultLongImagePDFCols, "PDF grid columns per page")
	title := fs.String("title", "", "PDF title")
	layout := fs.String("layout", pipeline.LayoutColumn, "PDF layout: grid|column")
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

	settings, client, err := resolveClient(*settingsPath, *server)
	if err != nil {
		return err
	}
	ctx := context.Background()

	slot := model.NewTaskSlot(model.KindLongImage)
	slot.BeginUpload()
	res, err := client.SliceLongImage(ctx, pipeline.SliceLongImageOptions{
		FilePath: strings.TrimSpace(*file),
		Settings: pipeline.LongImageSettings{
			SliceHeight: *sliceHeight,
			Overlap:     *overlap,
			PDFRows:     *rows,
			PDFCols:     *cols,
			PDFTitle:    strings.TrimSpace(*title),
			PDFLayout:   strings.TrimSpace(*layout),
		},
	})
	if err != nil {
		return err
	}
	if err := slot.AssignSession(res.SessionID); err != nil {
		return err
	}
	// The server starts slicing on upload; there is no separate start
	// call for this pipeline.
	if err := slot.BeginProcessing(); err != nil {
		return err
	}

	final, err := followSession(ctx, followOptions{
		Client:       client,
		Settings:     settings,
		Slot:         slot,
		SessionID:    res.SessionID,
		ShowProgress: *progress && !*verbose,
		Verbose:      *verbose,
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
