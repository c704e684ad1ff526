package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"evidence-desk/internal/model"
	"evidence-desk/internal/pipeline"

	"github.com/charmbracelet/bubbles/textinput"
)

type jobFieldKind int

const (
	jobFieldString jobFieldKind = iota
	jobFieldInt
	jobFieldFloat
	jobFieldSelect
)

type jobFormField struct {
	Key      string
	Label    string
	Help     string
	Kind     jobFieldKind
	Value    string
	Options  []string
	Required bool
}

type jobForm struct {
	Kind   string // task kind the form starts a job for
	Title  string
	Fields []jobFormField
	Index  int
	Input  textinput.Model
	Error  string
	Saving bool
}

// videoJobSpec is what the video form produces: the file to upload and
// the processing parameters posted once the push channel is open.
type videoJobSpec struct {
	FilePath string
	Process  pipeline.ProcessSettings
}

type longJobSpec struct {
	FilePath string
	Settings pipeline.LongImageSettings
}

func newJobForm(kind string, width int) *jobForm {
	f := &jobForm{Kind: kind}
	layoutOptions := []string{pipeline.LayoutGrid, pipeline.LayoutColumn}
	if kind == model.KindVideo {
		f.Title = "New Video Job"
		f.Fields = []jobFormField{
			{Key: "file", Label: "Video File", Help: "Path to the recording to upload", Kind: jobFieldString, Required: true},
			{Key: "interval", Label: "Frame Interval (s)", Help: "Seconds between sampled frames", Kind: jobFieldFloat, Value: formatFloat(pipeline.DefaultFrameIntervalSeconds)},
			{Key: "exclude_file", Label: "Exclusion List File", Help: "Optional file with OCR phrases to drop, one per line", Kind: jobFieldString},
			{Key: "ocr_rect", Label: "OCR Rect", Help: "Optional x,y,w,h crop for text analysis", Kind: jobFieldString},
			{Key: "rows", Label: "PDF Rows", Help: "Grid rows per PDF page", Kind: jobFieldInt, Value: strconv.Itoa(pipeline.DefaultPDFRows)},
			{Key: "cols", Label: "PDF Columns", Help: "Grid columns per PDF page", Kind: jobFieldInt, Value: strconv.Itoa(pipeline.DefaultVideoPDFCols)},
			{Key: "title", Label: "PDF Title", Help: "Optional; empty uses the server default", Kind: jobFieldString},
			{Key: "layout", Label: "PDF Layout", Help: "Grid packs pages, column keeps reading order", Kind: jobFieldSelect, Value: pipeline.LayoutGrid, Options: layoutOptions},
		}
	} else {
		f.Title = "New Long Screenshot Job"
		f.Fields = []jobFormField{
			{Key: "file", Label: "Image File", Help: "Path to the long screenshot to upload", Kind: jobFieldString, Required: true},
			{Key: "slice_height", Label: "Slice Height", Help: "Pixels per slice", Kind: jobFieldInt, Value: strconv.Itoa(pipeline.DefaultSliceHeight)},
			{Key: "overlap", Label: "Overlap", Help: "Vertical overlap between slices; must stay below slice height", Kind: jobFieldInt, Value: strconv.Itoa(pipeline.DefaultOverlap)},
			{Key: "rows", Label: "PDF Rows", Help: "Grid rows per PDF page", Kind: jobFieldInt, Value: strconv.Itoa(pipeline.DefaultPDFRows)},
			{Key: "cols", Label: "PDF Columns", Help: "Grid columns per PDF page", Kind: jobFieldInt, Value: strconv.Itoa(pipeline.DefaultLongImagePDFCols)},
			{Key: "title", Label: "PDF Title", Help: "Optional; empty uses the server default", Kind: jobFieldString},
			{Key: "layout", Label: "PDF Layout", Help: "Column is the usual choice for screenshots", Kind: jobFieldSelect, Value: pipeline.LayoutColumn, Options: layoutOptions},
		}
	}

	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 1024
	input.Width = clampInt(width-8, 20, 120)
	f.Input = input
	f.loadFieldIntoInput()
	f.Input.Focus()
	return f
}

func (f *jobForm) currentField() jobFormField {
	if len(f.Fields) == 0 {
		return jobFormField{}
	}
	if f.Index < 0 {
		f.Index = 0
	}
	if f.Index >= len(f.Fields) {
		f.Index = len(f.Fields) - 1
	}
	return f.Fields[f.Index]
}

func (f *jobForm) commitInput() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	f.Fields[f.Index].Value = strings.TrimSpace(f.Input.Value())
}

func (f *jobForm) loadFieldIntoInput() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	f.Input.SetValue(f.Fields[f.Index].Value)
	f.Input.CursorEnd()
}

func (f *jobForm) nextSelectOption() {
	f.cycleSelectOption(1)
}

func (f *jobForm) prevSelectOption() {
	f.cycleSelectOption(-1)
}

func (f *jobForm) cycleSelectOption(step int) {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	curr := f.Fields[f.Index]
	if curr.Kind != jobFieldSelect || len(curr.Options) == 0 {
		return
	}
	pos := 0
	for i, opt := range curr.Options {
		if strings.EqualFold(opt, strings.TrimSpace(curr.Value)) {
			pos = i
			break
		}
	}
	pos = (pos + step + len(curr.Options)) % len(curr.Options)
	curr.Value = curr.Options[pos]
	f.Fields[f.Index] = curr
	f.loadFieldIntoInput()
}

func (f *jobForm) values() (map[string]string, error) {
	vals := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		v := strings.TrimSpace(field.Value)
		if field.Required && v == "" {
			return nil, fmt.Errorf("%s is required", strings.ToLower(field.Label))
		}
		switch field.Kind {
		case jobFieldInt:
			if v == "" {
				v = "0"
			}
			if n, err := strconv.Atoi(v); err != nil || n < 0 {
				return nil, fmt.Errorf("%s must be an integer >= 0", strings.ToLower(field.Label))
			}
		case jobFieldFloat:
			if v == "" {
				v = "0"
			}
			if x, err := strconv.ParseFloat(v, 64); err != nil || x < 0 {
				return nil, fmt.Errorf("%s must be a number >= 0", strings.ToLower(field.Label))
			}
		case jobFieldSelect:
			matched := false
			for _, opt := range field.Options {
				if strings.EqualFold(opt, v) {
					v = opt
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("%s has invalid value", strings.ToLower(field.Label))
			}
		}
		vals[field.Key] = v
	}
	return vals, nil
}

func (f *jobForm) toVideoSpec() (videoJobSpec, error) {
	if f == nil || f.Kind != model.KindVideo {
		return videoJobSpec{}, errors.New("internal form error")
	}
	vals, err := f.values()
	if err != nil {
		return videoJobSpec{}, err
	}
	rect, err := parseOCRRect(vals["ocr_rect"])
	if err != nil {
		return videoJobSpec{}, err
	}
	exclusions, err := readExclusionList(vals["exclude_file"])
	if err != nil {
		return videoJobSpec{}, err
	}
	interval, _ := strconv.ParseFloat(defaultIfEmpty(vals["interval"], "0"), 64)
	rows, _ := strconv.Atoi(defaultIfEmpty(vals["rows"], "0"))
	cols, _ := strconv.Atoi(defaultIfEmpty(vals["cols"], "0"))

	return videoJobSpec{
		FilePath: vals["file"],
		Process: pipeline.NormalizeProcessSettings(pipeline.ProcessSettings{
			FrameIntervalSeconds: interval,
			ExclusionList:        exclusions,
			OCRAnalysisRect:      rect,
			PDFRows:              rows,
			PDFCols:              cols,
			PDFTitle:             vals["title"],
			PDFLayout:            vals["layout"],
		}),
	}, nil
}

func (f *jobForm) toLongSpec() (longJobSpec, error) {
	if f == nil || f.Kind != model.KindLongImage {
		return longJobSpec{}, errors.New("internal form error")
	}
	vals, err := f.values()
	if err != nil {
		return longJobSpec{}, err
	}
	sliceHeight, _ := strconv.Atoi(defaultIfEmpty(vals["slice_height"], "0"))
	overlap, _ := strconv.Atoi(defaultIfEmpty(vals["overlap"], "0"))
	rows, _ := strconv.Atoi(defaultIfEmpty(vals["rows"], "0"))
	cols, _ := strconv.Atoi(defaultIfEmpty(vals["cols"], "0"))

	return longJobSpec{
		FilePath: vals["file"],
		Settings: pipeline.NormalizeLongImageSettings(pipeline.LongImageSettings{
			SliceHeight: sliceHeight,
			Overlap:     overlap,
			PDFRows:     rows,
			PDFCols:     cols,
			PDFTitle:    vals["title"],
			PDFLayout:   vals["layout"],
		}),
	}, nil
}

func formatFloat(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
