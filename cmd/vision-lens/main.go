package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	visionlens "github.com/menta2k/vision-lens"
	"github.com/menta2k/vision-lens/internal/config"
	"github.com/menta2k/vision-lens/internal/utils"
	"github.com/menta2k/vision-lens/pkg/overlay"
	"github.com/menta2k/vision-lens/pkg/processing"
	"github.com/menta2k/vision-lens/pkg/types"
)

func main() {
	var configPath, in, outDir, ext string
	var backend, uploader, apiURL, model string
	var height, tab, quality int
	var selectID, click string
	var genderNeutral, all, serve bool
	var addr string

	flag.StringVar(&configPath, "config", config.GetConfigPath(), "config file (JSON)")
	flag.StringVar(&in, "in", "", "input image path (jpg/png/gif/webp)")
	flag.StringVar(&outDir, "out", "", "output directory (default from config)")
	flag.StringVar(&ext, "ext", "", "overlay output format: png|jpg|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")

	flag.StringVar(&backend, "backend", "", "analysis backend: azure, ollama or llamacpp")
	flag.StringVar(&uploader, "uploader", "", "upload backend: cloudinary or minio")
	flag.StringVar(&apiURL, "url", "", "analysis service base URL, or the local model server URL for ollama/llamacpp")
	flag.StringVar(&model, "model", "", "model name for the ollama and llamacpp backends")
	flag.BoolVar(&genderNeutral, "gender-neutral", true, "ask for gender neutral labels")

	flag.IntVar(&height, "height", 0, "canvas height in pixels")
	flag.IntVar(&tab, "tab", 0, "result tab: 0 objects, 1 dense captions, 2 smart crops, 3 tags")
	flag.StringVar(&selectID, "select", "", "box id to draw, e.g. obj-0")
	flag.StringVar(&click, "click", "", "canvas point x,y to hit-test")
	flag.BoolVar(&all, "all", false, "draw every box of the tab, highlighting the selected one")

	flag.BoolVar(&serve, "serve", false, "run the HTTP API instead of a one-shot analysis")
	flag.StringVar(&addr, "addr", "", "listen address for -serve")

	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if backend != "" {
		cfg.Analysis.Backend = backend
	}
	if uploader != "" {
		cfg.Upload.Backend = uploader
	}
	if apiURL != "" {
		apiURL = strings.TrimPrefix(apiURL, "@")
		switch cfg.Analysis.Backend {
		case "ollama":
			cfg.Analysis.OllamaURL = apiURL
		case "llamacpp":
			cfg.Analysis.LlamaCppURL = apiURL
		default:
			cfg.Analysis.BaseURL = apiURL
		}
	}
	if model != "" {
		cfg.Analysis.Model = model
	}
	if set["gender-neutral"] {
		cfg.Analysis.GenderNeutral = genderNeutral
	}
	if height > 0 {
		cfg.Overlay.ContainerHeight = height
	}
	if outDir != "" {
		cfg.Output.OutputDir = outDir
	}
	if ext != "" {
		cfg.Output.DefaultFormat = strings.ToLower(ext)
	}
	if quality > 0 {
		cfg.Output.Quality = quality
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	app, err := visionlens.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if serve {
		log.Printf("vision-lens %s listening on %s (analysis=%s upload=%s)",
			visionlens.Version, cfg.Server.Addr, cfg.Analysis.Backend, cfg.Upload.Backend)
		log.Fatal(http.ListenAndServe(cfg.Server.Addr, app.Handler()))
	}

	if in == "" {
		log.Fatalf("usage: %s -in photo.jpg [-backend azure|ollama|llamacpp] [-uploader cloudinary|minio] [-tab 0] [-select obj-0] [-click x,y] [-out outdir] [-ext png|jpg|webp] | -serve", filepath.Base(os.Args[0]))
	}
	if !utils.IsImageFile(in) {
		log.Printf("warning: %s does not have an image extension", in)
	}

	data, err := os.ReadFile(in)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("read %s (%s)", in, utils.FormatFileSize(int64(len(data))))

	ctx := context.Background()
	sh := app.Shell

	if err := sh.SelectFile(ctx, &types.Upload{Name: filepath.Base(in), Data: data}); err != nil {
		log.Fatalf("upload failed: %v", err)
	}
	log.Printf("uploaded %s", sh.Snapshot().UploadedURL)

	if err := sh.Analyze(ctx); err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	if err := sh.SelectTab(tab); err != nil {
		log.Fatalf("tab %d: %v", tab, err)
	}
	if selectID != "" {
		sh.SelectBox(selectID)
	}
	if click != "" {
		x, y, err := parsePoint(click)
		if err != nil {
			log.Fatal(err)
		}
		if id, ok := sh.ClickCanvas(x, y); ok {
			log.Printf("click %s selected %s", click, id)
		} else {
			log.Printf("click %s hit nothing", click)
		}
	}

	snap := sh.Snapshot()
	if snap.Analysis != nil && snap.Analysis.CaptionResult != nil {
		log.Printf("caption: %s", snap.Analysis.CaptionResult.Text)
	}
	for _, t := range snap.Tabs {
		marker := " "
		if t.Index == snap.Tab {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, t.Label)
	}
	for _, chip := range snap.Chips {
		id := chip.BoxID
		if id == "" {
			id = "-"
		}
		fmt.Printf("    [%s] %s\n", id, chip.Label)
	}

	if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
		log.Fatal(err)
	}

	var canvas *image.NRGBA
	if all {
		canvas = sh.CanvasAll()
	} else {
		canvas = sh.Canvas()
	}
	if canvas == nil {
		log.Printf("no preview could be decoded, skipping overlay image")
	} else {
		outPath := utils.OutputFilename(in, cfg.Output.OutputDir, cfg.Output.Suffix, cfg.Output.DefaultFormat)
		if err := processing.NewProcessor().SaveImage(canvas, outPath, cfg.Output.DefaultFormat, cfg.Output.Quality, false); err != nil {
			log.Printf("save %s failed: %v", outPath, err)
		} else {
			log.Printf("wrote %s (%s tab, selected=%q)", outPath, overlay.Tab(snap.Tab), snap.SelectedBoxID)
		}
	}

	// Save raw analysis output
	js, _ := json.MarshalIndent(snap.Analysis, "", "  ")
	jsonPath := filepath.Join(cfg.Output.OutputDir, "analysis.json")
	if err := os.WriteFile(jsonPath, js, 0o644); err != nil {
		log.Printf("save %s failed: %v", jsonPath, err)
	} else {
		log.Printf("wrote %s", jsonPath)
	}
}

// parsePoint parses "x,y" canvas coordinates
func parsePoint(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid point %q, want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x in %q: %v", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid y in %q: %v", s, err)
	}
	return x, y, nil
}
