// Package visionlens uploads an image to a media host, sends its public URL
// to a vision analysis service and renders the detected regions as an
// overlay on the preview.
//
// Basic usage:
//
//	cfg, err := config.Load(config.GetConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//	app, err := visionlens.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	data, _ := os.ReadFile("photo.jpg")
//	if err := app.Shell.SelectFile(ctx, &types.Upload{Name: "photo.jpg", Data: data}); err != nil {
//		log.Fatal(err)
//	}
//	if err := app.Shell.Analyze(ctx); err != nil {
//		log.Fatal(err)
//	}
//	for _, chip := range app.Shell.Snapshot().Chips {
//		fmt.Println(chip.Label)
//	}
//
// The package consists of these components:
//
//  1. Upload (pkg/cloudinary, pkg/objectstore): put the file somewhere public
//  2. Analysis (pkg/azure, or pkg/detection with pkg/ollama or pkg/llamacpp): describe the image
//  3. Overlay (pkg/overlay): scale boxes to the preview and draw them
//  4. Shell (pkg/shell): the session state machine tying them together
//
// Configuration errors, such as a missing upload preset, are reported before
// any network call is made.
package visionlens

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/menta2k/vision-lens/internal/config"
	"github.com/menta2k/vision-lens/internal/server"
	"github.com/menta2k/vision-lens/internal/settings"
	"github.com/menta2k/vision-lens/pkg/azure"
	"github.com/menta2k/vision-lens/pkg/client"
	"github.com/menta2k/vision-lens/pkg/cloudinary"
	"github.com/menta2k/vision-lens/pkg/detection"
	"github.com/menta2k/vision-lens/pkg/llamacpp"
	"github.com/menta2k/vision-lens/pkg/objectstore"
	"github.com/menta2k/vision-lens/pkg/ollama"
	"github.com/menta2k/vision-lens/pkg/overlay"
	"github.com/menta2k/vision-lens/pkg/processing"
	"github.com/menta2k/vision-lens/pkg/shell"
	"github.com/menta2k/vision-lens/pkg/types"
)

// Version of the vision lens library
const Version = "1.0.0"

// App bundles a configured shell with its settings store
type App struct {
	Config   *config.Config
	Shell    *shell.Shell
	Settings settings.Store
}

// New wires the upload and analysis backends named in cfg into a shell.
//
// Backends with missing credentials are still created; they fail with
// client.ErrConfig when first used, so the user sees the problem in the UI.
// Only malformed configuration is rejected here.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	uploader, err := NewUploader(cfg)
	if err != nil {
		return nil, err
	}
	analyzer, err := NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	sh := shell.New(uploader, analyzer, overlay.New(cfg.Overlay.ContainerHeight))
	sh.SetGenderNeutral(cfg.Analysis.GenderNeutral)

	var store settings.Store = settings.NewMemoryStore(settings.DefaultTheme)
	if cfg.Settings.Path != "" {
		fs, err := settings.Open(cfg.Settings.Path)
		if err != nil {
			return nil, err
		}
		store = fs
	}

	return &App{Config: cfg, Shell: sh, Settings: store}, nil
}

// Handler returns the HTTP API for the app
func (a *App) Handler() http.Handler {
	return server.NewRouter(a.Shell, a.Settings, server.Options{
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Links:          a.Config.Links,
		MaxUploadBytes: int64(a.Config.Upload.MaxUploadSizeMiB) << 20,
	})
}

// NewUploader creates the upload backend selected by cfg.Upload.Backend
func NewUploader(cfg *config.Config) (client.Uploader, error) {
	switch cfg.Upload.Backend {
	case "cloudinary":
		return cloudinary.NewClient(cloudinary.Config{
			CloudName:    cfg.Upload.CloudinaryName,
			URL:          cfg.Upload.CloudinaryURL,
			UploadPreset: cfg.Upload.UnsignedPreset,
		}), nil
	case "minio":
		m := cfg.Upload.Minio
		store, err := objectstore.New(objectstore.Config{
			Endpoint:      m.Endpoint,
			AccessKey:     m.AccessKey,
			SecretKey:     m.SecretKey,
			Bucket:        m.Bucket,
			Region:        m.Region,
			UseSSL:        m.UseSSL,
			PublicBaseURL: m.PublicBaseURL,
		})
		if err != nil {
			return unavailableUploader{err: err}, nil
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown upload backend %q", client.ErrConfig, cfg.Upload.Backend)
	}
}

// NewAnalyzer creates the analysis backend selected by cfg.Analysis.Backend
func NewAnalyzer(cfg *config.Config) (client.Analyzer, error) {
	switch cfg.Analysis.Backend {
	case "azure":
		httpClient := &http.Client{}
		if cfg.Analysis.TimeoutSeconds > 0 {
			httpClient.Timeout = time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second
		}
		return azure.NewClient(cfg.Analysis.BaseURL, httpClient), nil
	case "ollama":
		oc, err := ollama.NewClient(cfg.Analysis.OllamaURL)
		if err != nil {
			return unavailableAnalyzer{err: err}, nil
		}
		return detection.NewDetector(oc, processing.NewProcessor(), detection.Options{Model: cfg.Analysis.Model}), nil
	case "llamacpp":
		lc, err := llamacpp.NewClient(cfg.Analysis.LlamaCppURL)
		if err != nil {
			return unavailableAnalyzer{err: err}, nil
		}
		return detection.NewDetector(lc, processing.NewProcessor(), detection.Options{Model: cfg.Analysis.Model}), nil
	default:
		return nil, fmt.Errorf("%w: unknown analysis backend %q", client.ErrConfig, cfg.Analysis.Backend)
	}
}

// unavailableUploader reports a configuration problem on every upload
type unavailableUploader struct{ err error }

func (u unavailableUploader) Upload(context.Context, types.Upload) (string, error) {
	return "", u.err
}

type unavailableAnalyzer struct{ err error }

func (u unavailableAnalyzer) Analyze(context.Context, types.AnalyzeImageRequest) (*types.AnalyzeImageResponse, error) {
	return nil, u.err
}
