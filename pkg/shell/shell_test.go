package shell

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/menta2k/vision-lens/pkg/client"
	"github.com/menta2k/vision-lens/pkg/overlay"
	"github.com/menta2k/vision-lens/pkg/types"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeUploader struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
	gate  chan struct{}
}

func (f *fakeUploader) Upload(ctx context.Context, file types.Upload) (string, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.url, f.err
}

type fakeAnalyzer struct {
	res  *types.AnalyzeImageResponse
	err  error
	last types.AnalyzeImageRequest
	gate chan struct{}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req types.AnalyzeImageRequest) (*types.AnalyzeImageResponse, error) {
	f.last = req
	if f.gate != nil {
		<-f.gate
	}
	return f.res, f.err
}

func photo(t *testing.T, w, h int) *types.Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{0, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &types.Upload{Name: "photo.jpg", Data: buf.Bytes()}
}

func catResponse() *types.AnalyzeImageResponse {
	return &types.AnalyzeImageResponse{
		ObjectsResult: &types.ObjectsResult{Values: []types.DetectedObject{{
			BoundingBox: types.BoundingBox{X: 10, Y: 20, W: 100, H: 80},
			Tags:        []types.Tag{{Name: "cat", Confidence: 0.91}},
		}}},
		TagsResult: &types.TagsResult{Values: []types.Tag{{Name: "animal", Confidence: 0.98}}},
	}
}

func TestInitialState(t *testing.T) {
	s := New(nil, nil, nil)
	snap := s.Snapshot()
	require.Equal(t, PhaseIdle, snap.Phase)
	require.True(t, snap.GenderNeutral)
	require.False(t, snap.CanAnalyze)
	require.Equal(t, 0, snap.Tab)
	require.ErrorIs(t, s.Analyze(context.Background()), ErrAnalyzeUnavailable)
}

func TestEndToEndObjectSelection(t *testing.T) {
	up := &fakeUploader{url: "https://res.cloudinary.com/demo/x.jpg"}
	an := &fakeAnalyzer{res: catResponse()}
	s := New(up, an, overlay.New(480))
	ctx := context.Background()

	require.NoError(t, s.SelectFile(ctx, photo(t, 640, 480)))
	snap := s.Snapshot()
	require.Equal(t, PhaseUploaded, snap.Phase)
	require.Equal(t, "photo.jpg", snap.FileName)
	require.True(t, snap.HasPreview)
	require.Equal(t, "https://res.cloudinary.com/demo/x.jpg", snap.UploadedURL)
	require.True(t, snap.CanAnalyze)

	require.NoError(t, s.Analyze(ctx))
	require.Equal(t, types.AnalyzeImageRequest{URL: "https://res.cloudinary.com/demo/x.jpg", GenderNeutral: true}, an.last)

	snap = s.Snapshot()
	require.Equal(t, PhaseAnalyzed, snap.Phase)
	require.Equal(t, "Objects (1)", snap.Tabs[0].Label)
	require.Equal(t, []overlay.Chip{{Label: "cat (0.91)", BoxID: "obj-0"}}, snap.Chips)
	require.Empty(t, snap.Boxes, "nothing is drawn before a chip is clicked")

	s.SelectBox(snap.Chips[0].BoxID)
	snap = s.Snapshot()
	require.Equal(t, "obj-0", snap.SelectedBoxID)
	require.Len(t, snap.Boxes, 1)
	require.Equal(t, types.BoundingBox{X: 10, Y: 20, W: 100, H: 80}, snap.Boxes[0].BoundingBox)

	// 640x480 at height 480 is scale 1, so the box edges are at 10,20 and 110,100
	canvas := s.Canvas()
	require.NotNil(t, canvas)
	cyan := color.NRGBA{0, 229, 255, 255}
	require.Equal(t, cyan, canvas.NRGBAAt(60, 20))
	require.Equal(t, cyan, canvas.NRGBAAt(110, 60))
	require.Equal(t, cyan, canvas.NRGBAAt(60, 100))
	require.NotEqual(t, cyan, canvas.NRGBAAt(60, 60))
	require.NotEqual(t, cyan, canvas.NRGBAAt(300, 300))
}

func TestClickCanvas(t *testing.T) {
	s := New(&fakeUploader{url: "u"}, &fakeAnalyzer{res: catResponse()}, overlay.New(240))
	ctx := context.Background()
	require.NoError(t, s.SelectFile(ctx, photo(t, 640, 480))) // scale 0.5
	require.NoError(t, s.Analyze(ctx))

	_, ok := s.ClickCanvas(200, 200)
	require.False(t, ok)
	require.Empty(t, s.Snapshot().SelectedBoxID)

	id, ok := s.ClickCanvas(30, 30) // (60,60) in image space
	require.True(t, ok)
	require.Equal(t, "obj-0", id)
	require.Equal(t, "obj-0", s.Snapshot().SelectedBoxID)

	// a miss keeps the current selection
	_, ok = s.ClickCanvas(200, 200)
	require.False(t, ok)
	require.Equal(t, "obj-0", s.Snapshot().SelectedBoxID)

	require.NotNil(t, s.CanvasAll())
}

func TestSelectTabResetsSelection(t *testing.T) {
	s := New(&fakeUploader{url: "u"}, &fakeAnalyzer{res: catResponse()}, nil)
	ctx := context.Background()
	require.NoError(t, s.SelectFile(ctx, photo(t, 10, 10)))
	require.NoError(t, s.Analyze(ctx))

	s.SelectBox("obj-0")
	require.NoError(t, s.SelectTab(3))
	snap := s.Snapshot()
	require.Equal(t, 3, snap.Tab)
	require.Empty(t, snap.SelectedBoxID)
	require.Equal(t, []overlay.Chip{{Label: "animal (0.98)"}}, snap.Chips)

	require.ErrorIs(t, s.SelectTab(4), ErrUnknownTab)
	require.ErrorIs(t, s.SelectTab(-1), ErrUnknownTab)
}

func TestSelectNewFileDiscardsAnalysis(t *testing.T) {
	up := &fakeUploader{url: "u1"}
	s := New(up, &fakeAnalyzer{res: catResponse()}, nil)
	ctx := context.Background()
	require.NoError(t, s.SelectFile(ctx, photo(t, 10, 10)))
	require.NoError(t, s.Analyze(ctx))
	s.SelectBox("obj-0")

	up.mu.Lock()
	up.gate = make(chan struct{})
	up.mu.Unlock()

	next := photo(t, 20, 20)
	done := make(chan error, 1)
	go func() { done <- s.SelectFile(ctx, next) }()

	require.Eventually(t, func() bool { return s.Snapshot().Phase == PhaseUploading }, timeout, tick)
	snap := s.Snapshot()
	require.Nil(t, snap.Analysis)
	require.Empty(t, snap.SelectedBoxID)
	require.Empty(t, snap.UploadedURL)
	require.False(t, snap.CanAnalyze)
	require.ErrorIs(t, s.Analyze(ctx), ErrAnalyzeUnavailable)

	close(up.gate)
	require.NoError(t, <-done)
	require.Equal(t, PhaseUploaded, s.Snapshot().Phase)
}

func TestRefreshResetsEverything(t *testing.T) {
	s := New(&fakeUploader{url: "u"}, &fakeAnalyzer{res: catResponse()}, nil)
	ctx := context.Background()
	require.NoError(t, s.SelectFile(ctx, photo(t, 10, 10)))
	require.NoError(t, s.Analyze(ctx))
	require.NoError(t, s.SelectTab(1))
	s.SelectBox("dc-0")
	key := s.Snapshot().FileInputKey

	s.Refresh()
	snap := s.Snapshot()
	require.Equal(t, PhaseIdle, snap.Phase)
	require.Empty(t, snap.FileName)
	require.False(t, snap.HasPreview)
	require.Empty(t, snap.UploadedURL)
	require.Nil(t, snap.Analysis)
	require.Equal(t, 0, snap.Tab)
	require.Empty(t, snap.SelectedBoxID)
	require.Nil(t, snap.Error)
	require.Equal(t, key+1, snap.FileInputKey)
	require.Nil(t, s.Canvas())
}

func TestStaleUploadAfterRefreshIsDropped(t *testing.T) {
	up := &fakeUploader{url: "late", gate: make(chan struct{})}
	s := New(up, nil, nil)

	file := photo(t, 10, 10)
	done := make(chan error, 1)
	go func() { done <- s.SelectFile(context.Background(), file) }()
	require.Eventually(t, func() bool { return s.Snapshot().Uploading }, timeout, tick)

	s.Refresh()
	close(up.gate)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	require.Equal(t, PhaseIdle, snap.Phase)
	require.Empty(t, snap.UploadedURL)
}

func TestStaleAnalysisAfterRefreshIsDropped(t *testing.T) {
	an := &fakeAnalyzer{res: catResponse(), gate: make(chan struct{})}
	s := New(&fakeUploader{url: "u"}, an, nil)
	ctx := context.Background()
	require.NoError(t, s.SelectFile(ctx, photo(t, 10, 10)))

	done := make(chan error, 1)
	go func() { done <- s.Analyze(ctx) }()
	require.Eventually(t, func() bool { return s.Snapshot().Analyzing }, timeout, tick)
	require.False(t, s.CanAnalyze())
	require.ErrorIs(t, s.Analyze(ctx), ErrAnalyzeUnavailable)

	s.Refresh()
	close(an.gate)
	require.NoError(t, <-done)
	require.Nil(t, s.Snapshot().Analysis)
}

func TestUploadConfigError(t *testing.T) {
	up := &fakeUploader{err: fmt.Errorf("%w: invalid CLOUDINARY_URL", client.ErrConfig)}
	s := New(up, nil, nil)

	err := s.SelectFile(context.Background(), photo(t, 10, 10))
	require.ErrorIs(t, err, client.ErrConfig)

	snap := s.Snapshot()
	require.Equal(t, PhaseFileSelected, snap.Phase)
	require.Equal(t, ErrorKindConfig, snap.Error.Kind)
	require.Contains(t, snap.Error.Message, "invalid CLOUDINARY_URL")
	require.False(t, s.DismissError(), "config errors are not dismissible")
}

func TestAnalyzeFailureKeepsUpload(t *testing.T) {
	an := &fakeAnalyzer{err: fmt.Errorf("%w: server returned status 500", client.ErrTransport)}
	s := New(&fakeUploader{url: "u"}, an, nil)
	ctx := context.Background()
	require.NoError(t, s.SelectFile(ctx, photo(t, 10, 10)))

	require.ErrorIs(t, s.Analyze(ctx), client.ErrTransport)
	snap := s.Snapshot()
	require.Equal(t, PhaseUploaded, snap.Phase)
	require.Equal(t, "u", snap.UploadedURL)
	require.True(t, snap.CanAnalyze)
	require.Equal(t, ErrorKindTransport, snap.Error.Kind)

	require.True(t, s.DismissError())
	require.Nil(t, s.Snapshot().Error)

	an.err = nil
	an.res = catResponse()
	s.SetGenderNeutral(false)
	require.NoError(t, s.Analyze(ctx))
	require.False(t, an.last.GenderNeutral)
	require.Equal(t, PhaseAnalyzed, s.Snapshot().Phase)
}

func TestUndecodablePreviewStillUploads(t *testing.T) {
	s := New(&fakeUploader{url: "u"}, nil, nil)
	require.NoError(t, s.SelectFile(context.Background(), &types.Upload{Name: "x.heic", Data: []byte("heic")}))
	snap := s.Snapshot()
	require.False(t, snap.HasPreview)
	require.Equal(t, "u", snap.UploadedURL)
	require.Nil(t, s.Canvas())
}

func TestClearFile(t *testing.T) {
	s := New(&fakeUploader{url: "u"}, nil, nil)
	require.NoError(t, s.SelectFile(context.Background(), photo(t, 10, 10)))
	require.NoError(t, s.SelectFile(context.Background(), nil))
	snap := s.Snapshot()
	require.Equal(t, PhaseIdle, snap.Phase)
	require.False(t, snap.HasPreview)
}
