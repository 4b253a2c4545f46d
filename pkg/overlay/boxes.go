package overlay

import (
	"fmt"
	"strconv"

	"github.com/menta2k/vision-lens/pkg/types"
)

// Tab selects which result group is listed and drawn
type Tab int

const (
	TabObjects Tab = iota
	TabDenseCaptions
	TabSmartCrops
	TabTags
)

const (
	ObjectColor       = "#00e5ff"
	DenseCaptionColor = "#ffd54f"
	SmartCropColor    = "#66bb6a"
)

var tabNames = [...]string{"Objects", "Dense Captions", "Smart Crops", "Tags"}

// TabCount is the number of result tabs
const TabCount = len(tabNames)

// Valid reports whether t is a known tab
func (t Tab) Valid() bool {
	return t >= 0 && int(t) < TabCount
}

func (t Tab) String() string {
	if !t.Valid() {
		return "Tab(" + strconv.Itoa(int(t)) + ")"
	}
	return tabNames[t]
}

// TabInfo is a tab header with its result count
type TabInfo struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Chip is one clickable result entry. BoxID is empty for entries without a box.
type Chip struct {
	Label string `json:"label"`
	BoxID string `json:"boxId,omitempty"`
}

// Tabs returns the tab headers, e.g. "Objects (3)"
func Tabs(res *types.AnalyzeImageResponse) []TabInfo {
	counts := []int{
		len(res.Objects()),
		len(res.DenseCaptions()),
		len(res.SmartCrops()),
		len(res.Tags()),
	}
	out := make([]TabInfo, TabCount)
	for i, name := range tabNames {
		out[i] = TabInfo{Index: i, Label: fmt.Sprintf("%s (%d)", name, counts[i]), Count: counts[i]}
	}
	return out
}

// ObjectBoxes builds obj-<i> boxes labeled with the first tag name
func ObjectBoxes(res *types.AnalyzeImageResponse) []types.DrawableBox {
	values := res.Objects()
	out := make([]types.DrawableBox, 0, len(values))
	for i, v := range values {
		label := fmt.Sprintf("object %d", i+1)
		if len(v.Tags) > 0 && v.Tags[0].Name != "" {
			label = v.Tags[0].Name
		}
		out = append(out, types.DrawableBox{
			BoundingBox: v.BoundingBox,
			ID:          fmt.Sprintf("obj-%d", i),
			Label:       label,
			Color:       ObjectColor,
		})
	}
	return out
}

// DenseCaptionBoxes builds dc-<i> boxes labeled with the caption text
func DenseCaptionBoxes(res *types.AnalyzeImageResponse) []types.DrawableBox {
	values := res.DenseCaptions()
	out := make([]types.DrawableBox, 0, len(values))
	for i, v := range values {
		out = append(out, types.DrawableBox{
			BoundingBox: v.BoundingBox,
			ID:          fmt.Sprintf("dc-%d", i),
			Label:       v.Text,
			Color:       DenseCaptionColor,
		})
	}
	return out
}

// SmartCropBoxes builds sc-<i> boxes labeled with the aspect ratio
func SmartCropBoxes(res *types.AnalyzeImageResponse) []types.DrawableBox {
	values := res.SmartCrops()
	out := make([]types.DrawableBox, 0, len(values))
	for i, v := range values {
		out = append(out, types.DrawableBox{
			BoundingBox: v.BoundingBox,
			ID:          fmt.Sprintf("sc-%d", i),
			Label:       "crop " + formatNumber(v.AspectRatio),
			Color:       SmartCropColor,
		})
	}
	return out
}

// BoxesForTab returns the drawable boxes of a tab. The tags tab has none.
func BoxesForTab(res *types.AnalyzeImageResponse, tab Tab) []types.DrawableBox {
	switch tab {
	case TabObjects:
		return ObjectBoxes(res)
	case TabDenseCaptions:
		return DenseCaptionBoxes(res)
	case TabSmartCrops:
		return SmartCropBoxes(res)
	default:
		return nil
	}
}

// Chips returns the list entries shown under a tab
func Chips(res *types.AnalyzeImageResponse, tab Tab) []Chip {
	var out []Chip
	switch tab {
	case TabObjects:
		for i, o := range res.Objects() {
			label := "object"
			if len(o.Tags) > 0 {
				if o.Tags[0].Name != "" {
					label = o.Tags[0].Name
				}
				label = fmt.Sprintf("%s (%.2f)", label, o.Tags[0].Confidence)
			}
			out = append(out, Chip{Label: label, BoxID: fmt.Sprintf("obj-%d", i)})
		}
	case TabDenseCaptions:
		for i, c := range res.DenseCaptions() {
			out = append(out, Chip{Label: fmt.Sprintf("%s (%.2f)", c.Text, c.Confidence), BoxID: fmt.Sprintf("dc-%d", i)})
		}
	case TabSmartCrops:
		for i, c := range res.SmartCrops() {
			out = append(out, Chip{Label: "Aspect: " + formatNumber(c.AspectRatio), BoxID: fmt.Sprintf("sc-%d", i)})
		}
	case TabTags:
		for _, t := range res.Tags() {
			out = append(out, Chip{Label: fmt.Sprintf("%s (%.2f)", t.Name, t.Confidence)})
		}
	}
	return out
}

// FilterSelected keeps only the box with the given id; empty id keeps nothing
func FilterSelected(boxes []types.DrawableBox, id string) []types.DrawableBox {
	if id == "" {
		return nil
	}
	for _, b := range boxes {
		if b.ID == id {
			return []types.DrawableBox{b}
		}
	}
	return nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
