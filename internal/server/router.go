// Package server exposes the shell over a small local HTTP API so a browser
// front end can drive it.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/menta2k/vision-lens/internal/config"
	"github.com/menta2k/vision-lens/internal/settings"
	"github.com/menta2k/vision-lens/pkg/client"
	"github.com/menta2k/vision-lens/pkg/processing"
	"github.com/menta2k/vision-lens/pkg/shell"
	"github.com/menta2k/vision-lens/pkg/types"
)

// errBadRequest marks malformed client input
var errBadRequest = errors.New("bad request")

// Options configure the router
type Options struct {
	AllowedOrigins []string
	Links          config.LinksConfig
	// MaxUploadBytes limits multipart bodies, 0 means 20 MiB
	MaxUploadBytes int64
}

type Router struct {
	shell     *shell.Shell
	settings  settings.Store
	links     config.LinksConfig
	maxUpload int64
}

// NewRouter builds the HTTP handler around a shell and a settings store
func NewRouter(sh *shell.Shell, st settings.Store, opts Options) http.Handler {
	if st == nil {
		st = settings.NewMemoryStore(settings.DefaultTheme)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	r := &Router{shell: sh, settings: st, links: opts.Links, maxUpload: opts.MaxUploadBytes}
	mux := chi.NewRouter()
	mux.Use(LoggingMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"service":"vision-lens"}`))
	})

	mux.Route("/api", func(rt chi.Router) {
		rt.Get("/state", r.wrap(r.handleState))
		rt.Post("/file", r.wrap(r.handleSelectFile))
		rt.Delete("/file", r.wrap(r.handleClearFile))
		rt.Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Post("/refresh", r.wrap(r.handleRefresh))
		rt.Put("/tab/{index}", r.wrap(r.handleTab))
		rt.Put("/selection/{id}", r.wrap(r.handleSelect))
		rt.Delete("/selection", r.wrap(r.handleClearSelection))
		rt.Post("/click", r.wrap(r.handleClick))
		rt.Put("/gender-neutral", r.wrap(r.handleGenderNeutral))
		rt.Delete("/error", r.wrap(r.handleDismissError))
		rt.Get("/canvas.png", r.wrap(r.handleCanvas))
		rt.Get("/theme", r.wrap(r.handleTheme))
		rt.Post("/theme/toggle", r.wrap(r.handleToggleTheme))
		rt.Get("/links", r.wrap(r.handleLinks))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			writeError(w, statusFor(err), err)
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, shell.ErrUnknownTab):
		return http.StatusNotFound
	case errors.Is(err, shell.ErrAnalyzeUnavailable):
		return http.StatusConflict
	case errors.Is(err, client.ErrConfig):
		return http.StatusPreconditionFailed
	case errors.Is(err, client.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

func (r *Router) writeState(w http.ResponseWriter) error {
	return writeJSON(w, r.shell.Snapshot())
}

// GET /api/state
func (r *Router) handleState(w http.ResponseWriter, req *http.Request) error {
	return r.writeState(w)
}

// POST /api/file
// Multipart form with a single "file" part. Blocks until the upload finishes.
func (r *Router) handleSelectFile(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	if err := req.ParseMultipartForm(r.maxUpload); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	src, fh, err := req.FormFile("file")
	if err != nil {
		return fmt.Errorf("%w: missing file part: %v", errBadRequest, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	if err := r.shell.SelectFile(req.Context(), &types.Upload{Name: fh.Filename, Data: data}); err != nil {
		return err
	}
	return r.writeState(w)
}

// DELETE /api/file
func (r *Router) handleClearFile(w http.ResponseWriter, req *http.Request) error {
	if err := r.shell.SelectFile(req.Context(), nil); err != nil {
		return err
	}
	return r.writeState(w)
}

// POST /api/analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	if err := r.shell.Analyze(req.Context()); err != nil {
		return err
	}
	return r.writeState(w)
}

// POST /api/refresh
func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) error {
	r.shell.Refresh()
	return r.writeState(w)
}

// PUT /api/tab/{index}
func (r *Router) handleTab(w http.ResponseWriter, req *http.Request) error {
	index, err := strconv.Atoi(chi.URLParam(req, "index"))
	if err != nil {
		return fmt.Errorf("%w: tab index must be a number", errBadRequest)
	}
	if err := r.shell.SelectTab(index); err != nil {
		return err
	}
	return r.writeState(w)
}

// PUT /api/selection/{id}
func (r *Router) handleSelect(w http.ResponseWriter, req *http.Request) error {
	r.shell.SelectBox(chi.URLParam(req, "id"))
	return r.writeState(w)
}

// DELETE /api/selection
func (r *Router) handleClearSelection(w http.ResponseWriter, req *http.Request) error {
	r.shell.SelectBox("")
	return r.writeState(w)
}

// POST /api/click
// Body: {"x": 10, "y": 20} in canvas pixels
func (r *Router) handleClick(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if body.X == nil || body.Y == nil {
		return fmt.Errorf("%w: x and y are required", errBadRequest)
	}

	id, hit := r.shell.ClickCanvas(*body.X, *body.Y)
	return writeJSON(w, map[string]any{
		"hit":   hit,
		"id":    id,
		"state": r.shell.Snapshot(),
	})
}

// PUT /api/gender-neutral
// Body: {"genderNeutral": true}
func (r *Router) handleGenderNeutral(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		GenderNeutral *bool `json:"genderNeutral"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if body.GenderNeutral == nil {
		return fmt.Errorf("%w: genderNeutral is required", errBadRequest)
	}
	r.shell.SetGenderNeutral(*body.GenderNeutral)
	return r.writeState(w)
}

// DELETE /api/error
func (r *Router) handleDismissError(w http.ResponseWriter, req *http.Request) error {
	dismissed := r.shell.DismissError()
	return writeJSON(w, map[string]any{
		"dismissed": dismissed,
		"state":     r.shell.Snapshot(),
	})
}

// GET /api/canvas.png?all=true
func (r *Router) handleCanvas(w http.ResponseWriter, req *http.Request) error {
	all, _ := strconv.ParseBool(req.URL.Query().Get("all"))

	var canvas *image.NRGBA
	if all {
		canvas = r.shell.CanvasAll()
	} else {
		canvas = r.shell.Canvas()
	}
	if canvas == nil {
		writeError(w, http.StatusNotFound, errors.New("no preview loaded"))
		return nil
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	return processing.Encode(w, canvas, "png", 0, false)
}

// GET /api/theme
func (r *Router) handleTheme(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, map[string]settings.Theme{"themeMode": r.settings.Theme()})
}

// POST /api/theme/toggle
func (r *Router) handleToggleTheme(w http.ResponseWriter, req *http.Request) error {
	t, err := r.settings.Toggle()
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]settings.Theme{"themeMode": t})
}

// GET /api/links
func (r *Router) handleLinks(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, map[string]string{
		"repoUrl":        r.links.RepoURL,
		"backendRepoUrl": r.links.BackendRepoURL,
	})
}
