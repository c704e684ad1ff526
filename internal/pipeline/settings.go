package pipeline

import (
	"net/url"
	"path"
	"strings"
)

const (
	LayoutGrid   = "grid"
	LayoutColumn = "column"

	DefaultFrameIntervalSeconds = 1.0
	DefaultSliceHeight          = 1000
	DefaultOverlap              = 100
	DefaultPDFRows              = 3
	DefaultVideoPDFCols         = 2
	DefaultLongImagePDFCols     = 1
)

// ProcessSettings is the JSON body of a video processing request. The
// crop rectangle comes from the external selection widget and is passed
// through opaquely as [x, y, width, height].
type ProcessSettings struct {
	FrameIntervalSeconds float64  `json:"frame_interval_seconds"`
	ExclusionList        []string `json:"exclusion_list"`
	OCRAnalysisRect      *[4]int  `json:"ocr_analysis_rect"`
	PDFRows              int      `json:"pdf_rows"`
	PDFCols              int      `json:"pdf_cols"`
	PDFTitle             string   `json:"pdf_title"`
	PDFLayout            string   `json:"pdf_layout"`
	ImageOrder           []string `json:"image_order,omitempty"`
}

// LongImageSettings are the multipart form fields of a long screenshot
// job. The server slices and starts processing in one request.
type LongImageSettings struct {
	SliceHeight int
	Overlap     int
	PDFRows     int
	PDFCols     int
	PDFTitle    string
	PDFLayout   string
	ImageOrder  []string
}

func NormalizeProcessSettings(raw ProcessSettings) ProcessSettings {
	norm := raw
	if norm.FrameIntervalSeconds <= 0 {
		norm.FrameIntervalSeconds = DefaultFrameIntervalSeconds
	}
	if norm.ExclusionList == nil {
		norm.ExclusionList = []string{}
	}
	if norm.PDFRows <= 0 {
		norm.PDFRows = DefaultPDFRows
	}
	if norm.PDFCols <= 0 {
		norm.PDFCols = DefaultVideoPDFCols
	}
	if strings.TrimSpace(norm.PDFTitle) == "" {
		norm.PDFTitle = "video evidence"
	}
	norm.PDFLayout = normalizeLayout(norm.PDFLayout, LayoutGrid)
	return norm
}

func NormalizeLongImageSettings(raw LongImageSettings) LongImageSettings {
	norm := raw
	if norm.SliceHeight <= 0 {
		norm.SliceHeight = DefaultSliceHeight
	}
	if norm.Overlap < 0 || norm.Overlap >= norm.SliceHeight {
		norm.Overlap = DefaultOverlap
	}
	if norm.PDFRows <= 0 {
		norm.PDFRows = DefaultPDFRows
	}
	if norm.PDFCols <= 0 {
		norm.PDFCols = DefaultLongImagePDFCols
	}
	if strings.TrimSpace(norm.PDFTitle) == "" {
		norm.PDFTitle = "long screenshot evidence"
	}
	norm.PDFLayout = normalizeLayout(norm.PDFLayout, LayoutColumn)
	return norm
}

func normalizeLayout(raw, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case LayoutGrid:
		return LayoutGrid
	case LayoutColumn:
		return LayoutColumn
	default:
		return fallback
	}
}

// ImageOrderFromPreviews converts preview identifiers (served image
// URLs) into the bare filenames the processing endpoints expect in
// image_order. Query strings and URL escaping are stripped.
func ImageOrderFromPreviews(previews []string) []string {
	order := make([]string, 0, len(previews))
	for _, p := range previews {
		raw := p
		if idx := strings.Index(raw, "?"); idx >= 0 {
			raw = raw[:idx]
		}
		name := path.Base(raw)
		if decoded, err := url.PathUnescape(name); err == nil {
			name = decoded
		}
		if name == "" || name == "." || name == "/" {
			continue
		}
		order = append(order, name)
	}
	return order
}
