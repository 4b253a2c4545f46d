package types

import "encoding/json"

// BoundingBox is an axis-aligned rectangle in source image pixel space
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether the point lies inside the closed rectangle
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.X && x <= b.X+b.W && y >= b.Y && y <= b.Y+b.H
}

// CaptionResult is the single caption describing the whole image
type CaptionResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// DenseCaption is a caption tied to a region of the image
type DenseCaption struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// Tag is a named label with a confidence score
type Tag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// DetectedObject is an object region with its candidate tags
type DetectedObject struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Tags        []Tag       `json:"tags"`
}

// SmartCrop is a suggested crop rectangle for an aspect ratio
type SmartCrop struct {
	AspectRatio float64     `json:"aspectRatio"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// PersonDetection is a detected person region
type PersonDetection struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Confidence  float64     `json:"confidence"`
}

// ImageMetadata holds the dimensions the service analyzed
type ImageMetadata struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type DenseCaptionsResult struct {
	Values []DenseCaption `json:"values"`
}

type TagsResult struct {
	Values []Tag `json:"values"`
}

type ObjectsResult struct {
	Values []DetectedObject `json:"values"`
}

type SmartCropsResult struct {
	Values []SmartCrop `json:"values"`
}

type PeopleResult struct {
	Values []PersonDetection `json:"values"`
}

// ReadResult keeps OCR blocks opaque; nothing renders them
type ReadResult struct {
	Blocks []json.RawMessage `json:"blocks"`
}

// AnalyzeImageResponse is the structured result returned by the vision service.
// Every group is optional; a nil group is treated as empty.
type AnalyzeImageResponse struct {
	ModelVersion        string               `json:"modelVersion"`
	CaptionResult       *CaptionResult       `json:"captionResult,omitempty"`
	DenseCaptionsResult *DenseCaptionsResult `json:"denseCaptionsResult,omitempty"`
	Metadata            *ImageMetadata       `json:"metadata,omitempty"`
	TagsResult          *TagsResult          `json:"tagsResult,omitempty"`
	ObjectsResult       *ObjectsResult       `json:"objectsResult,omitempty"`
	ReadResult          *ReadResult          `json:"readResult,omitempty"`
	SmartCropsResult    *SmartCropsResult    `json:"smartCropsResult,omitempty"`
	PeopleResult        *PeopleResult        `json:"peopleResult,omitempty"`
}

// Objects returns the detected objects or nil
func (r *AnalyzeImageResponse) Objects() []DetectedObject {
	if r == nil || r.ObjectsResult == nil {
		return nil
	}
	return r.ObjectsResult.Values
}

// DenseCaptions returns the dense captions or nil
func (r *AnalyzeImageResponse) DenseCaptions() []DenseCaption {
	if r == nil || r.DenseCaptionsResult == nil {
		return nil
	}
	return r.DenseCaptionsResult.Values
}

// SmartCrops returns the smart crops or nil
func (r *AnalyzeImageResponse) SmartCrops() []SmartCrop {
	if r == nil || r.SmartCropsResult == nil {
		return nil
	}
	return r.SmartCropsResult.Values
}

// Tags returns the image level tags or nil
func (r *AnalyzeImageResponse) Tags() []Tag {
	if r == nil || r.TagsResult == nil {
		return nil
	}
	return r.TagsResult.Values
}

// People returns the detected people or nil
func (r *AnalyzeImageResponse) People() []PersonDetection {
	if r == nil || r.PeopleResult == nil {
		return nil
	}
	return r.PeopleResult.Values
}

// AnalyzeImageRequest is the body sent to the analysis endpoint
type AnalyzeImageRequest struct {
	URL           string `json:"url"`
	GenderNeutral bool   `json:"genderNeutral"`
}

// DrawableBox is a render-layer view of a bounding box
type DrawableBox struct {
	BoundingBox
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Color string `json:"color,omitempty"`
}

// Upload is a file blob picked by the user
type Upload struct {
	Name string
	Data []byte
}
