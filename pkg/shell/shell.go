// Package shell holds the state of one upload/analyze session and
// orchestrates file selection, upload, analysis and box selection.
//
// Network calls run outside the state lock. Every file selection and refresh
// starts a new generation; results that come back for an older generation
// are dropped.
package shell

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/menta2k/vision-lens/pkg/client"
	"github.com/menta2k/vision-lens/pkg/overlay"
	"github.com/menta2k/vision-lens/pkg/processing"
	"github.com/menta2k/vision-lens/pkg/types"
)

// ErrAnalyzeUnavailable is returned when Analyze is called without a
// finished upload or while a request is in flight
var ErrAnalyzeUnavailable = errors.New("analyze is not available")

// ErrUnknownTab is returned for out of range tab indexes
var ErrUnknownTab = errors.New("unknown tab")

// Phase is the derived position in the session lifecycle
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseFileSelected Phase = "fileSelected"
	PhaseUploading    Phase = "uploading"
	PhaseUploaded     Phase = "uploaded"
	PhaseAnalyzing    Phase = "analyzing"
	PhaseAnalyzed     Phase = "analyzed"
)

// ErrorKind separates blocking configuration problems from retryable failures
type ErrorKind string

const (
	ErrorKindConfig    ErrorKind = "config"
	ErrorKindTransport ErrorKind = "transport"
)

// Banner is the error message shown to the user
type Banner struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Shell is the application state machine
type Shell struct {
	uploader client.Uploader
	analyzer client.Analyzer
	renderer *overlay.Renderer

	mu            sync.Mutex
	generation    uint64
	fileName      string
	uploadedURL   string
	banner        *Banner
	uploading     bool
	analyzing     bool
	analysis      *types.AnalyzeImageResponse
	tab           overlay.Tab
	selectedBoxID string
	genderNeutral bool
	fileInputKey  int
}

// New creates an idle shell. renderer may be nil, in which case a renderer
// with the default container height is used.
func New(uploader client.Uploader, analyzer client.Analyzer, renderer *overlay.Renderer) *Shell {
	if renderer == nil {
		renderer = overlay.New(overlay.DefaultContainerHeight)
	}
	return &Shell{
		uploader:      uploader,
		analyzer:      analyzer,
		renderer:      renderer,
		genderNeutral: true,
	}
}

// Renderer returns the preview renderer
func (s *Shell) Renderer() *overlay.Renderer {
	return s.renderer
}

// SelectFile resets previous results, loads the preview and uploads the file.
// A nil file clears the selection. It blocks until the upload finishes and
// returns the upload error, if any; the same error is kept in the banner.
func (s *Shell) SelectFile(ctx context.Context, file *types.Upload) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.analysis = nil
	s.selectedBoxID = ""
	s.uploadedURL = ""
	s.banner = nil
	s.analyzing = false
	if file == nil {
		s.fileName = ""
		s.uploading = false
		s.renderer.Reset()
		s.mu.Unlock()
		return nil
	}
	s.fileName = file.Name
	s.uploading = true
	s.renderer.Reset()
	s.mu.Unlock()

	// a preview that fails to decode stays blank; the upload still runs
	preview, err := processing.DecodeImage(file.Data)
	if err != nil {
		log.Printf("preview for %s: %v", file.Name, err)
	}
	s.mu.Lock()
	if preview != nil && gen == s.generation {
		s.renderer.LoadImage(preview)
	}
	s.mu.Unlock()

	url, err := s.upload(ctx, *file)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		log.Printf("dropping stale upload result for %s", file.Name)
		return nil
	}
	s.uploading = false
	if err != nil {
		s.banner = bannerFor(err, "Failed to upload image")
		return err
	}
	s.uploadedURL = url
	return nil
}

func (s *Shell) upload(ctx context.Context, file types.Upload) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("%w: no upload backend configured", client.ErrConfig)
	}
	return s.uploader.Upload(ctx, file)
}

// CanAnalyze reports whether an upload finished and nothing is in flight
func (s *Shell) CanAnalyze() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canAnalyzeLocked()
}

func (s *Shell) canAnalyzeLocked() bool {
	return s.uploadedURL != "" && !s.uploading && !s.analyzing
}

// Analyze sends the uploaded URL to the analysis service. Previous results,
// selection and tab are cleared first. On failure the uploaded URL is kept
// so the analysis can be retried without uploading again.
func (s *Shell) Analyze(ctx context.Context) error {
	s.mu.Lock()
	if !s.canAnalyzeLocked() {
		s.mu.Unlock()
		return ErrAnalyzeUnavailable
	}
	gen := s.generation
	req := types.AnalyzeImageRequest{URL: s.uploadedURL, GenderNeutral: s.genderNeutral}
	s.analysis = nil
	s.selectedBoxID = ""
	s.tab = overlay.TabObjects
	s.analyzing = true
	s.mu.Unlock()

	var (
		res *types.AnalyzeImageResponse
		err error
	)
	if s.analyzer == nil {
		err = fmt.Errorf("%w: no analysis backend configured", client.ErrConfig)
	} else {
		res, err = s.analyzer.Analyze(ctx, req)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		log.Printf("dropping stale analysis result for %s", req.URL)
		return nil
	}
	s.analyzing = false
	if err != nil {
		s.banner = bannerFor(err, "Failed to analyze image")
		return err
	}
	if res == nil {
		res = &types.AnalyzeImageResponse{}
	}
	s.analysis = res
	return nil
}

// Refresh returns every piece of state to its initial value
func (s *Shell) Refresh() {
	s.mu.Lock()
	s.generation++
	s.fileName = ""
	s.uploadedURL = ""
	s.banner = nil
	s.uploading = false
	s.analyzing = false
	s.analysis = nil
	s.tab = overlay.TabObjects
	s.selectedBoxID = ""
	s.fileInputKey++
	s.renderer.Reset()
	s.mu.Unlock()
}

// SelectTab switches the result tab and clears the selected box
func (s *Shell) SelectTab(index int) error {
	tab := overlay.Tab(index)
	if !tab.Valid() {
		return ErrUnknownTab
	}
	s.mu.Lock()
	s.tab = tab
	s.selectedBoxID = ""
	s.mu.Unlock()
	return nil
}

// SelectBox selects a box by id, as a chip click does. An empty id clears it.
func (s *Shell) SelectBox(id string) {
	s.mu.Lock()
	s.selectedBoxID = id
	s.mu.Unlock()
}

// ClickCanvas hit-tests a canvas point against the boxes of the current tab
// and selects the first one containing it. A miss leaves the selection unchanged.
func (s *Shell) ClickCanvas(x, y float64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.renderer.HitTest(x, y, overlay.BoxesForTab(s.analysis, s.tab))
	if ok {
		s.selectedBoxID = id
	}
	return id, ok
}

// SetGenderNeutral sets the flag sent with the next analysis
func (s *Shell) SetGenderNeutral(v bool) {
	s.mu.Lock()
	s.genderNeutral = v
	s.mu.Unlock()
}

// DismissError hides a transport error banner. Config errors stay until the
// configuration changes.
func (s *Shell) DismissError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.banner == nil || s.banner.Kind == ErrorKindConfig {
		return false
	}
	s.banner = nil
	return true
}

// Snapshot returns a copy of the visible state
func (s *Shell) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:         s.phaseLocked(),
		FileName:      s.fileName,
		HasPreview:    s.renderer.Loaded(),
		UploadedURL:   s.uploadedURL,
		Uploading:     s.uploading,
		Analyzing:     s.analyzing,
		CanAnalyze:    s.canAnalyzeLocked(),
		CanRefresh:    !s.uploading && !s.analyzing,
		Tab:           int(s.tab),
		SelectedBoxID: s.selectedBoxID,
		GenderNeutral: s.genderNeutral,
		FileInputKey:  s.fileInputKey,
		Analysis:      s.analysis,
	}
	if s.banner != nil {
		b := *s.banner
		snap.Error = &b
	}
	if s.analysis != nil {
		snap.Tabs = overlay.Tabs(s.analysis)
		snap.Chips = overlay.Chips(s.analysis, s.tab)
		snap.Boxes = overlay.FilterSelected(overlay.BoxesForTab(s.analysis, s.tab), s.selectedBoxID)
	}
	return snap
}

// Canvas renders the preview with only the selected box of the current tab,
// drawn in its own colour. It returns nil when there is no decoded preview.
func (s *Shell) Canvas() *image.NRGBA {
	s.mu.Lock()
	boxes := overlay.FilterSelected(overlay.BoxesForTab(s.analysis, s.tab), s.selectedBoxID)
	s.mu.Unlock()
	return s.renderer.Render(boxes, "")
}

// CanvasAll renders every box of the current tab and highlights the selected one
func (s *Shell) CanvasAll() *image.NRGBA {
	s.mu.Lock()
	boxes := overlay.BoxesForTab(s.analysis, s.tab)
	selected := s.selectedBoxID
	s.mu.Unlock()
	return s.renderer.Render(boxes, selected)
}

func (s *Shell) phaseLocked() Phase {
	switch {
	case s.analyzing:
		return PhaseAnalyzing
	case s.analysis != nil:
		return PhaseAnalyzed
	case s.uploading:
		return PhaseUploading
	case s.uploadedURL != "":
		return PhaseUploaded
	case s.fileName != "":
		return PhaseFileSelected
	default:
		return PhaseIdle
	}
}

func bannerFor(err error, fallback string) *Banner {
	kind := ErrorKindTransport
	if errors.Is(err, client.ErrConfig) {
		kind = ErrorKindConfig
	}
	msg := err.Error()
	if msg == "" {
		msg = fallback
	}
	return &Banner{Kind: kind, Message: msg}
}
