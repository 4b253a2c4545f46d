package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/menta2k/vision-lens/pkg/client"
	"github.com/menta2k/vision-lens/pkg/processing"
	"github.com/menta2k/vision-lens/pkg/types"
)

// DefaultPrompt asks a local vision model for the same result groups the
// remote service returns
const DefaultPrompt = `You are an image analyzer.

Return JSON only:
{
  "caption": {"text": "short neutral sentence", "confidence": 0.0},
  "objects": [
    {"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "tags": [{"name": "string", "confidence": 0.0}]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- List at most 10 objects, most prominent first.
- Tags: lowercase, concise, no punctuation or duplicates, at most 10.
- Do not guess real identities.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// genderNeutralRule is appended when gendered labels must be avoided
const genderNeutralRule = `
- Use gender neutral words only: "person", "child", "people". Never "man", "woman", "boy" or "girl".`

// ModelVersion is reported in responses produced by the local backend
const ModelVersion = "local"

var neutralWords = map[string]string{
	"man":   "person",
	"woman": "person",
	"men":   "people",
	"women": "people",
	"boy":   "child",
	"girl":  "child",
	"guy":   "person",
	"lady":  "person",
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
	reWord     = regexp.MustCompile(`[A-Za-z]+`)
)

// Options configure the local analyzer
type Options struct {
	Model    string
	SendSize int // max long side sent to the model, 0 keeps the original
	SendQ    int // JPEG quality of the image sent to the model
}

// Detector analyzes images with a local vision model and shapes the answer
// like the remote service's response. It implements client.Analyzer.
type Detector struct {
	client    client.VisionClient
	processor *processing.Processor
	opts      Options
}

type modelBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type modelAnswer struct {
	Caption *struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"caption"`
	Objects []struct {
		Label      string   `json:"label"`
		Confidence float64  `json:"confidence"`
		Box        modelBox `json:"box"`
	} `json:"objects"`
	Tags []types.Tag `json:"tags"`
}

// NewDetector creates a detector backed by a vision client
func NewDetector(c client.VisionClient, processor *processing.Processor, opts Options) *Detector {
	if processor == nil {
		processor = processing.NewProcessor()
	}
	if opts.SendSize == 0 {
		opts.SendSize = 1536
	}
	if opts.SendQ == 0 {
		opts.SendQ = 85
	}
	return &Detector{client: c, processor: processor, opts: opts}
}

// Analyze downloads the image, asks the model about it and returns boxes in
// source image pixels
func (d *Detector) Analyze(ctx context.Context, req types.AnalyzeImageRequest) (*types.AnalyzeImageResponse, error) {
	if d.client == nil {
		return nil, fmt.Errorf("%w: no local vision client", client.ErrConfig)
	}
	img, err := d.processor.LoadImageSmart(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", client.ErrTransport, err)
	}
	return d.AnalyzeDecoded(ctx, img, req.GenderNeutral)
}

// AnalyzeDecoded runs the model on an already decoded image
func (d *Detector) AnalyzeDecoded(ctx context.Context, img image.Image, genderNeutral bool) (*types.AnalyzeImageResponse, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, "jpg", d.opts.SendSize, d.opts.SendQ)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	prompt := DefaultPrompt
	if genderNeutral {
		prompt += genderNeutralRule
	}

	raw, err := d.client.AnalyzeImage(ctx, d.opts.Model, prompt, imgB64)
	if err != nil {
		return nil, err
	}

	answer, err := parseAnswer(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", client.ErrTransport, err)
	}

	info := processing.GetImageInfo(img)
	return buildResponse(answer, info.Width, info.Height, genderNeutral), nil
}

func parseAnswer(raw string) (*modelAnswer, error) {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, fmt.Errorf("model returned non-JSON response")
	}
	var out modelAnswer
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %v", err)
	}
	return &out, nil
}

func buildResponse(a *modelAnswer, width, height int, genderNeutral bool) *types.AnalyzeImageResponse {
	res := &types.AnalyzeImageResponse{
		ModelVersion: ModelVersion,
		Metadata:     &types.ImageMetadata{Width: width, Height: height},
		ObjectsResult: &types.ObjectsResult{
			Values: make([]types.DetectedObject, 0, len(a.Objects)),
		},
		TagsResult: &types.TagsResult{Values: normalizeTags(a.Tags, genderNeutral)},
	}

	if a.Caption != nil && a.Caption.Text != "" {
		text := a.Caption.Text
		if genderNeutral {
			text = neutralize(text)
		}
		res.CaptionResult = &types.CaptionResult{Text: text, Confidence: clamp(a.Caption.Confidence, 0, 1)}
	}

	for _, o := range a.Objects {
		label := strings.ToLower(strings.TrimSpace(o.Label))
		if genderNeutral {
			label = neutralize(label)
		}
		var tags []types.Tag
		if label != "" {
			tags = []types.Tag{{Name: label, Confidence: clamp(o.Confidence, 0, 1)}}
		}
		res.ObjectsResult.Values = append(res.ObjectsResult.Values, types.DetectedObject{
			BoundingBox: toPixels(normalizeBox(o.Box), width, height),
			Tags:        tags,
		})
	}
	return res
}

// normalizeBox clamps a normalized box so it stays inside the image
func normalizeBox(b modelBox) modelBox {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return modelBox{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

func toPixels(b modelBox, width, height int) types.BoundingBox {
	fw, fh := float64(width), float64(height)
	return types.BoundingBox{
		X: roundPx(b.X * fw),
		Y: roundPx(b.Y * fh),
		W: roundPx(b.W * fw),
		H: roundPx(b.H * fh),
	}
}

func roundPx(v float64) float64 {
	return float64(int(v + 0.5))
}

// normalizeTags lowercases, dedupes and limits tags to 10 entries
func normalizeTags(tags []types.Tag, genderNeutral bool) []types.Tag {
	seen := map[string]struct{}{}
	out := make([]types.Tag, 0, len(tags))
	for _, t := range tags {
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if genderNeutral {
			name = neutralize(name)
		}
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, types.Tag{Name: name, Confidence: clamp(t.Confidence, 0, 1)})
		if len(out) == 10 {
			break
		}
	}
	return out
}

// neutralize replaces gendered words, keeping the case of the first letter
func neutralize(s string) string {
	return reWord.ReplaceAllStringFunc(s, func(w string) string {
		repl, ok := neutralWords[strings.ToLower(w)]
		if !ok {
			return w
		}
		if w[0] >= 'A' && w[0] <= 'Z' {
			return strings.ToUpper(repl[:1]) + repl[1:]
		}
		return repl
	})
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
