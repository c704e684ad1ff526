package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "video":
		return runVideo(args[1:])
	case "longimage":
		return runLongImage(args[1:])
	case "panel":
		return runPanel(args[1:])
	case "cleanup":
		return runCleanup(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("evidence-desk: dual-pipeline evidence processing client")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  evidence-desk doctor")
	fmt.Println("  evidence-desk video --file lecture.mp4")
	fmt.Println("  evidence-desk longimage --file chatlog.png")
	fmt.Println("  evidence-desk panel")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  video     upload a video, process it, and download the evidence PDF")
	fmt.Println("  longimage upload a long screenshot, slice it, and download the PDF")
	fmt.Println("  panel     interactive two-panel job monitor (video + long screenshot)")
	fmt.Println("  cleanup   delete server-side data for a session")
	fmt.Println("  doctor    run server and filesystem preflight checks")
	fmt.Println("  settings  show/update client settings")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Server URL comes from settings, EVIDENCE_DESK_SERVER_URL, or --server")
}
