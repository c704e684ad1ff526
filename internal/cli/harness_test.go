package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeEvidenceServer stands in for the processing service: the upload
// and control endpoints plus one push channel per session.
type fakeEvidenceServer struct {
	t   *testing.T
	srv *httptest.Server

	processStarted chan struct{}
	cleanupCalls   atomic.Int32

	// frames are pushed once processing starts (or immediately after
	// the channel opens when startOnUpload is set).
	frames        []pushFrame
	startOnUpload bool
}

type pushFrame struct {
	SessionID     string   `json:"session_id"`
	Status        string   `json:"status"`
	Message       string   `json:"message"`
	Progress      *int     `json:"progress,omitempty"`
	PreviewImages []string `json:"preview_images,omitempty"`
	ResultURL     string   `json:"result_url,omitempty"`
}

func newFakeEvidenceServer(t *testing.T, sessionID string, frames []pushFrame, startOnUpload bool) *fakeEvidenceServer {
	t.Helper()
	f := &fakeEvidenceServer{
		t:              t,
		processStarted: make(chan struct{}),
		frames:         frames,
		startOnUpload:  startOnUpload,
	}

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/upload_video/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("video_file")
		if err != nil {
			http.Error(w, "missing video_file", http.StatusBadRequest)
			return
		}
		file.Close()
		writeJSONResponse(w, map[string]string{
			"session_id": sessionID,
			"filename":   header.Filename,
			"message":    "upload complete",
		})
	})

	mux.HandleFunc("/slice_long_image/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("long_image_file"); err != nil {
			http.Error(w, "missing long_image_file", http.StatusBadRequest)
			return
		}
		if r.FormValue("slice_height") == "" {
			http.Error(w, "missing slice_height", http.StatusBadRequest)
			return
		}
		writeJSONResponse(w, map[string]string{
			"session_id": sessionID,
			"message":    "slicing started",
		})
	})

	mux.HandleFunc("/process_video/", func(w http.ResponseWriter, r *http.Request) {
		if got := strings.TrimPrefix(r.URL.Path, "/process_video/"); got != sessionID {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		var settings map[string]any
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		close(f.processStarted)
		writeJSONResponse(w, map[string]string{"message": "processing started"})
	})

	mux.HandleFunc("/cleanup_session/", func(w http.ResponseWriter, r *http.Request) {
		f.cleanupCalls.Add(1)
		writeJSONResponse(w, map[string]string{"message": "session removed"})
	})

	mux.HandleFunc("/results/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake result"))
	})

	mux.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		if got := strings.TrimPrefix(r.URL.Path, "/ws/"); got != sessionID {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		// Drain keepalive pings from the client.
		go func() {
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		if !f.startOnUpload {
			select {
			case <-f.processStarted:
			case <-time.After(5 * time.Second):
				f.t.Error("processing was never started")
				return
			}
		}
		for _, frame := range f.frames {
			if err := ws.WriteJSON(frame); err != nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		deadline := time.Now().Add(time.Second)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), deadline)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, map[string]string{"message": "ok"})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func writeJSONResponse(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeHarnessSettings(t *testing.T, downloadDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{"download_dir":` + jsonString(downloadDir) + `,"reconnect_delay_seconds":1,"ping_interval_seconds":0}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestHarnessVideoJobEndToEnd(t *testing.T) {
	frames := []pushFrame{
		{SessionID: "vid-1", Status: "processing", Message: "extracting frames", Progress: intptr(30)},
		{SessionID: "vid-1", Status: "processing", Message: "building pdf", Progress: intptr(80),
			PreviewImages: []string{"frame_001.png", "frame_002.png"}},
		{SessionID: "vid-1", Status: "completed", Message: "done", Progress: intptr(100),
			ResultURL: "/results/evidence.pdf"},
	}
	f := newFakeEvidenceServer(t, "vid-1", frames, false)

	videoPath := filepath.Join(t.TempDir(), "lecture.mp4")
	if err := os.WriteFile(videoPath, []byte("not a real mp4"), 0o644); err != nil {
		t.Fatal(err)
	}
	downloadDir := filepath.Join(t.TempDir(), "downloads")

	err := Run([]string{"video",
		"--file", videoPath,
		"--server", f.srv.URL,
		"--settings", writeHarnessSettings(t, downloadDir),
		"--progress=false",
		"--json",
	})
	if err != nil {
		t.Fatalf("video command failed: %v", err)
	}

	dest := filepath.Join(downloadDir, "evidence.pdf")
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("result not downloaded: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("unexpected result content: %q", data)
	}
	if n := f.cleanupCalls.Load(); n != 0 {
		t.Fatalf("cleanup must not run without --cleanup, got %d calls", n)
	}
}

func TestHarnessLongImageJobEndToEnd(t *testing.T) {
	frames := []pushFrame{
		{SessionID: "long-1", Status: "processing", Message: "slicing", Progress: intptr(50)},
		{SessionID: "long-1", Status: "completed", Message: "done", Progress: intptr(100),
			ResultURL: "/results/screenshot.pdf"},
	}
	f := newFakeEvidenceServer(t, "long-1", frames, true)

	imagePath := filepath.Join(t.TempDir(), "chat.png")
	if err := os.WriteFile(imagePath, []byte("not a real png"), 0o644); err != nil {
		t.Fatal(err)
	}
	downloadDir := filepath.Join(t.TempDir(), "downloads")

	err := Run([]string{"longimage",
		"--file", imagePath,
		"--server", f.srv.URL,
		"--settings", writeHarnessSettings(t, downloadDir),
		"--progress=false",
		"--cleanup",
		"--json",
	})
	if err != nil {
		t.Fatalf("longimage command failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(downloadDir, "screenshot.pdf")); err != nil {
		t.Fatalf("result not downloaded: %v", err)
	}
	if n := f.cleanupCalls.Load(); n != 1 {
		t.Fatalf("expected one cleanup call, got %d", n)
	}
}

func TestHarnessFailedJobReturnsError(t *testing.T) {
	frames := []pushFrame{
		{SessionID: "vid-2", Status: "processing", Message: "extracting frames", Progress: intptr(10)},
		{SessionID: "vid-2", Status: "error", Message: "ffmpeg exploded"},
	}
	f := newFakeEvidenceServer(t, "vid-2", frames, false)

	videoPath := filepath.Join(t.TempDir(), "broken.mp4")
	if err := os.WriteFile(videoPath, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Run([]string{"video",
		"--file", videoPath,
		"--server", f.srv.URL,
		"--settings", writeHarnessSettings(t, t.TempDir()),
		"--progress=false",
	})
	if err == nil {
		t.Fatal("expected an error for a failed job")
	}
	if !strings.Contains(err.Error(), "failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func intptr(v int) *int { return &v }
