package shell

import (
	"github.com/menta2k/vision-lens/pkg/overlay"
	"github.com/menta2k/vision-lens/pkg/types"
)

// Snapshot is a read-only view of the shell state
type Snapshot struct {
	Phase         Phase                       `json:"phase"`
	FileName      string                      `json:"fileName,omitempty"`
	HasPreview    bool                        `json:"hasPreview"`
	UploadedURL   string                      `json:"uploadedUrl,omitempty"`
	Uploading     bool                        `json:"uploading"`
	Analyzing     bool                        `json:"analyzing"`
	CanAnalyze    bool                        `json:"canAnalyze"`
	CanRefresh    bool                        `json:"canRefresh"`
	Error         *Banner                     `json:"error,omitempty"`
	Tab           int                         `json:"tab"`
	SelectedBoxID string                      `json:"selectedBoxId,omitempty"`
	GenderNeutral bool                        `json:"genderNeutral"`
	FileInputKey  int                         `json:"fileInputKey"`
	Tabs          []overlay.TabInfo           `json:"tabs,omitempty"`
	Chips         []overlay.Chip              `json:"chips,omitempty"`
	Boxes         []types.DrawableBox         `json:"boxes,omitempty"`
	Analysis      *types.AnalyzeImageResponse `json:"analysis,omitempty"`
}
