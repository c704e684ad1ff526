package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"evidence-desk/internal/store"

	"github.com/google/uuid"
)

// Client talks to the remote evidence processing service over HTTP.
// The push channel it pairs with is opened separately via WSURL.
type Client struct {
	baseURL  *url.URL
	httpc    *http.Client
	clientID string
}

type UploadVideoOptions struct {
	FilePath string
}

type UploadResult struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename,omitempty"`
	Message   string `json:"message,omitempty"`
}

type SliceLongImageOptions struct {
	FilePath string
	Settings LongImageSettings
}

type SliceResult struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

func NewClient(rawBaseURL string, timeout time.Duration) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(rawBaseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	base, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server URL %q: %w", rawBaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server URL %q must use http or https", rawBaseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  base,
		httpc:    &http.Client{Timeout: timeout},
		clientID: uuid.NewString(),
	}, nil
}

// ClientID is the per-process correlation id attached to every request.
func (c *Client) ClientID() string { return c.clientID }

// WSURL derives the push channel endpoint for a session from the HTTP
// base URL (http -> ws, https -> wss).
func (c *Client) WSURL(sessionID string) string {
	ws := *c.baseURL
	if ws.Scheme == "https" {
		ws.Scheme = "wss"
	} else {
		ws.Scheme = "ws"
	}
	ws.Path = path.Join(ws.Path, "ws", sessionID)
	return ws.String()
}

// UploadVideo sends the source video and opens a fresh session.
func (c *Client) UploadVideo(ctx context.Context, opts UploadVideoOptions) (UploadResult, error) {
	var result UploadResult
	err := c.postMultipart(ctx, "upload video", "/upload_video/", "video_file", opts.FilePath, nil, &result)
	if err != nil {
		return UploadResult{}, err
	}
	if result.SessionID == "" {
		return UploadResult{}, &TransportError{Op: "upload video", Message: "response missing session_id"}
	}
	return result, nil
}

// SliceLongImage uploads a long screenshot together with its slicing
// parameters; the server issues a session and starts processing
// immediately.
func (c *Client) SliceLongImage(ctx context.Context, opts SliceLongImageOptions) (SliceResult, error) {
	s := NormalizeLongImageSettings(opts.Settings)
	fields := map[string]string{
		"slice_height": strconv.Itoa(s.SliceHeight),
		"overlap":      strconv.Itoa(s.Overlap),
		"pdf_rows":     strconv.Itoa(s.PDFRows),
		"pdf_cols":     strconv.Itoa(s.PDFCols),
		"pdf_title":    s.PDFTitle,
		"pdf_layout":   s.PDFLayout,
	}
	if len(s.ImageOrder) > 0 {
		encoded, err := json.Marshal(s.ImageOrder)
		if err != nil {
			return SliceResult{}, fmt.Errorf("encode image order: %w", err)
		}
		fields["image_order_json"] = string(encoded)
	}

	var result SliceResult
	err := c.postMultipart(ctx, "slice long image", "/slice_long_image/", "long_image_file", opts.FilePath, fields, &result)
	if err != nil {
		return SliceResult{}, err
	}
	if result.SessionID == "" {
		return SliceResult{}, &TransportError{Op: "slice long image", Message: "response missing session_id"}
	}
	return result, nil
}

// ProcessVideo asks the server to start the frame/OCR/PDF pipeline for
// an uploaded video session. Returns the acknowledgement message.
func (c *Client) ProcessVideo(ctx context.Context, sessionID string, settings ProcessSettings) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("session id is required")
	}
	body, err := json.Marshal(NormalizeProcessSettings(settings))
	if err != nil {
		return "", fmt.Errorf("encode process settings: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/process_video/"+url.PathEscape(sessionID), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var ack struct {
		Message string `json:"message"`
	}
	if err := c.do(req, "process video", &ack); err != nil {
		return "", err
	}
	return ack.Message, nil
}

// ReferenceFrame fetches the PNG frame the crop widget presents for
// OCR-region selection.
func (c *Client) ReferenceFrame(ctx context.Context, sessionID string) ([]byte, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/get_reference_frame/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "reference frame", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "reference frame", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: "reference frame", StatusCode: resp.StatusCode, Message: serverMessage(body)}
	}
	return body, nil
}

// CleanupSession removes the session's server-side working files.
func (c *Client) CleanupSession(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("session id is required")
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/cleanup_session/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return "", err
	}

	var ack struct {
		Message string `json:"message"`
	}
	if err := c.do(req, "cleanup session", &ack); err != nil {
		return "", err
	}
	return ack.Message, nil
}

// DownloadResult fetches a result document by its server-relative URL
// and writes it under destDir, returning the local path. An existing
// file with the same name is never overwritten.
func (c *Client) DownloadResult(ctx context.Context, resultURL, destDir string) (string, error) {
	if strings.TrimSpace(resultURL) == "" {
		return "", fmt.Errorf("result URL is required")
	}
	ref, err := url.Parse(resultURL)
	if err != nil {
		return "", fmt.Errorf("parse result URL %q: %w", resultURL, err)
	}
	target := c.baseURL.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Client-ID", c.clientID)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", &TransportError{Op: "download result", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: "download result", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransportError{Op: "download result", StatusCode: resp.StatusCode, Message: serverMessage(body)}
	}

	name := path.Base(target.Path)
	if name == "" || name == "." || name == "/" {
		name = "result.pdf"
	}
	dest := store.UniquePath(filepath.Join(destDir, name))
	if err := store.WriteBytes(dest, body); err != nil {
		return "", err
	}
	return dest, nil
}

// Health probes the service root; any HTTP answer counts as reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Op: "health", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	target := *c.baseURL
	target.Path = path.Join(target.Path, endpoint)
	// path.Join drops the trailing slash FastAPI routes require.
	if strings.HasSuffix(endpoint, "/") {
		target.Path += "/"
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Client-ID", c.clientID)
	return req, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Message: serverMessage(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) postMultipart(ctx context.Context, op, endpoint, fileField, filePath string, fields map[string]string, out any) error {
	if strings.TrimSpace(filePath) == "" {
		return fmt.Errorf("%s: file path is required", op)
	}
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s: open %s: %w", op, filePath, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fileField, filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("%s: build form: %w", op, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("%s: read %s: %w", op, filePath, err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("%s: build form: %w", op, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%s: build form: %w", op, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req, op, out)
}
