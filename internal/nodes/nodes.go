// Package nodes describes the operations of goat as nodes for a graph host:
// their names, categories and input schemas, plus the small scalar helpers
// that do not warrant a package of their own.
package nodes

import (
	"github.com/kiesman99/goat/internal/grain"
	"github.com/kiesman99/goat/internal/resample"
	"github.com/kiesman99/goat/internal/seed"
	"github.com/kiesman99/goat/internal/stitch"
	"github.com/kiesman99/goat/internal/upscaler"
	"github.com/kiesman99/goat/pkg/tile"
)

// Kind is the type of a node input
type Kind string

const (
	KindImage    Kind = "IMAGE"
	KindTileData Kind = "TILE_DATA"
	KindModel    Kind = "UPSCALE_MODEL"
	KindInt      Kind = "INT"
	KindFloat    Kind = "FLOAT"
	KindBool     Kind = "BOOLEAN"
	KindChoice   Kind = "CHOICE"
)

// Input describes one parameter of a node
type Input struct {
	Name    string   `json:"name"`
	Kind    Kind     `json:"kind"`
	Default any      `json:"default,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Step    float64  `json:"step,omitempty"`
	Choices []string `json:"choices,omitempty"`
}

// Node is the metadata a host needs to present an operation
type Node struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Inputs      []Input  `json:"inputs"`
	Outputs     []string `json:"outputs"`
}

const (
	categoryImage          = "GOAT Nodes/Image"
	categoryMath           = "GOAT Nodes/Math"
	categoryPostprocessing = "GOAT Nodes/Postprocessing"
)

func bounds(lo, hi float64) (*float64, *float64) {
	return &lo, &hi
}

func intInput(name string, def int64, lo, hi float64) Input {
	in := Input{Name: name, Kind: KindInt, Default: def}
	in.Min, in.Max = bounds(lo, hi)
	return in
}

func floatInput(name string, def, lo, hi, step float64) Input {
	in := Input{Name: name, Kind: KindFloat, Default: def, Step: step}
	in.Min, in.Max = bounds(lo, hi)
	return in
}

func choiceInput(name, def string, choices []string) Input {
	return Input{Name: name, Kind: KindChoice, Default: def, Choices: choices}
}

func names[T interface{ String() string }](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}

// Registry lists every node goat provides
func Registry() []Node {
	tiling := tile.DefaultOptions()
	upscale := upscaler.DefaultOptions()
	film := grain.DefaultOptions()

	grainKinds := make([]string, 0, 2*len(grain.Kinds()))
	for _, k := range grain.Kinds() {
		grainKinds = append(grainKinds, k.String(), k.String()+"_cuda")
	}

	return []Node{
		{
			Name:        "Image_Tiler",
			DisplayName: "Image Tiler",
			Category:    categoryImage,
			Description: "Splits an image into overlapping tiles.",
			Inputs: []Input{
				{Name: "image", Kind: KindImage},
				intInput("tile_width", int64(tiling.TileWidth), 1, tile.MaxTileSize),
				intInput("tile_height", int64(tiling.TileHeight), 1, tile.MaxTileSize),
				intInput("row_overlap", int64(tiling.RowOverlap), 1, tile.MaxOverlap),
				intInput("col_overlap", int64(tiling.ColOverlap), 1, tile.MaxOverlap),
				intInput("row_offset", 0, -tile.MaxOffset, tile.MaxOffset),
				intInput("col_offset", 0, -tile.MaxOffset, tile.MaxOffset),
				choiceInput("tiling_mode", tiling.Mode.String(), names(tile.TilingModes())),
			},
			Outputs: []string{"IMAGES", "TILE_DATA", "TILE_COUNT"},
		},
		{
			Name:        "Image_Untiler",
			DisplayName: "Image Untiler",
			Category:    categoryImage,
			Description: "Merges tiles into an image, blending the overlaps.",
			Inputs: []Input{
				{Name: "images", Kind: KindImage},
				{Name: "tile_data", Kind: KindTileData},
				choiceInput("blend_mode", tile.BlendSine.String(), names(tile.BlendModes())),
				intInput("blend_range", 128, 0, stitch.MaxBlendRange),
			},
			Outputs: []string{"IMAGE"},
		},
		{
			Name:        "Advanced_Upscale_Image_Using_Model",
			DisplayName: "Advanced Upscale Image (using Model)",
			Category:    categoryImage,
			Description: "Upscales the image to any factor with an upscale model in up to two stages.",
			Inputs: []Input{
				{Name: "upscale_model", Kind: KindModel},
				{Name: "image", Kind: KindImage},
				floatInput("upscale_by", upscale.UpscaleBy, upscaler.MinUpscaleBy, upscaler.MaxUpscaleBy, 0.025),
				choiceInput("rescale_method", upscale.Method.String(), names(resample.Methods())),
				choiceInput("stage2_order", upscale.Stage2Order.String(), []string{"upscale_first", "downscale_first"}),
				{Name: "mixed_initial", Kind: KindBool, Default: upscale.MixedInitial},
				{Name: "tiled_upscale", Kind: KindBool, Default: upscale.Tiled},
			},
			Outputs: []string{"IMAGE", "WIDTH", "HEIGHT"},
		},
		{
			Name:        "Fast_Film_Grain",
			DisplayName: "Fast Film Grain",
			Category:    categoryPostprocessing,
			Description: "Applies film grain to the image with a strength between 0 and 1.",
			Inputs: []Input{
				{Name: "image", Kind: KindImage},
				floatInput("strength", film.Strength, 0, 1, 0.01),
				choiceInput("grain", film.Kind.String(), grainKinds),
				intInput("seed", 0, 0, grain.MaxSeed),
			},
			Outputs: []string{"IMAGE"},
		},
		{
			Name:        "Fast_Color_Match",
			DisplayName: "Fast Color Match",
			Category:    categoryPostprocessing,
			Description: "Matches the colors of the image to those of a reference image.",
			Inputs: []Input{
				{Name: "image", Kind: KindImage},
				{Name: "reference", Kind: KindImage},
				floatInput("strength", 1, 0, 1, 0.01),
				{Name: "adaptive_matching", Kind: KindBool, Default: true},
			},
			Outputs: []string{"IMAGE"},
		},
		{
			Name:        "Smart_Seed",
			DisplayName: "Smart Seed",
			Category:    categoryMath,
			Description: "Generates a new seed or keeps the current one, remembering the last four.",
			Inputs: []Input{
				intInput("seed", seed.Random, seed.Random, seed.MaxSeed),
				{Name: "generate_new", Kind: KindBool, Default: true},
			},
			Outputs: []string{"current_seed"},
		},
		{
			Name:        "Get_Side_Length_Of_Image",
			DisplayName: "Get Side Length Of Image",
			Category:    categoryImage,
			Description: "Returns the length of the image's longest (max) or shortest (min) side.",
			Inputs: []Input{
				{Name: "image", Kind: KindImage},
				{Name: "side_length", Kind: KindBool, Default: true},
			},
			Outputs: []string{"INT"},
		},
		{
			Name:        "Capped_Int_Positive",
			DisplayName: "Capped Int (Positive)",
			Category:    categoryMath,
			Description: "Caps the integer at a specific number. A cap of 0 equals uncapped.",
			Inputs: []Input{
				intInput("int", 0, 0, MaxInt),
				intInput("cap", 10, 0, MaxInt),
			},
			Outputs: []string{"INT"},
		},
		{
			Name:        "Capped_Float_Positive",
			DisplayName: "Capped Float (Positive)",
			Category:    categoryMath,
			Description: "Caps the (positive) float at a specific number. A cap of 0 equals uncapped.",
			Inputs: []Input{
				floatInput("float", 0, 0, MaxFloat, 0),
				floatInput("cap", 1, 0, MaxFloat, 0),
			},
			Outputs: []string{"FLOAT"},
		},
		{
			Name:        "Int_Divide_Rounded",
			DisplayName: "Int Divide (Rounded)",
			Category:    categoryMath,
			Description: "Divides a by b and rounds the result to the nearest int.",
			Inputs: []Input{
				{Name: "a", Kind: KindInt},
				{Name: "b", Kind: KindInt},
			},
			Outputs: []string{"INT"},
		},
	}
}

// Lookup finds a node by name
func Lookup(name string) (Node, bool) {
	for _, n := range Registry() {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}
