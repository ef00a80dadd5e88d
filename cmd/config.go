package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kiesman99/goat/internal/resample"
	"github.com/kiesman99/goat/internal/upscaler"
	"github.com/kiesman99/goat/pkg/tile"
)

// binding maps a flag name to its config key
type binding struct {
	flag string
	key  string
}

var tileBindings = []binding{
	{"tile-width", "tile.width"},
	{"tile-height", "tile.height"},
	{"row-overlap", "tile.row-overlap"},
	{"col-overlap", "tile.col-overlap"},
	{"row-offset", "tile.row-offset"},
	{"col-offset", "tile.col-offset"},
	{"mode", "tile.mode"},
}

var untileBindings = []binding{
	{"blend-mode", "untile.blend-mode"},
	{"blend-range", "untile.blend-range"},
}

var upscaleBindings = []binding{
	{"by", "upscale.by"},
	{"method", "upscale.method"},
	{"stage2-order", "upscale.stage2-order"},
	{"mixed-initial", "upscale.mixed-initial"},
	{"tiled", "upscale.tiled"},
	{"model-scale", "upscale.model-scale"},
	{"model-method", "upscale.model-method"},
}

// bindFlags attaches the flags of the running command to their config keys.
// Several commands share keys, so this has to happen in PreRunE rather than init.
func bindFlags(flags *pflag.FlagSet, bindings ...[]binding) error {
	for _, group := range bindings {
		for _, b := range group {
			if err := viper.BindPFlag(b.key, flags.Lookup(b.flag)); err != nil {
				return fmt.Errorf("binding --%s: %w", b.flag, err)
			}
		}
	}
	return nil
}

func addTileFlags(cmd *cobra.Command) {
	d := tile.DefaultOptions()
	cmd.Flags().Int("tile-width", d.TileWidth, "tile width in pixels")
	cmd.Flags().Int("tile-height", d.TileHeight, "tile height in pixels")
	cmd.Flags().Int("row-overlap", d.RowOverlap, "horizontal overlap between neighbouring tiles")
	cmd.Flags().Int("col-overlap", d.ColOverlap, "vertical overlap between neighbouring tiles")
	cmd.Flags().Int("row-offset", d.RowOffset, "horizontal shift per tile column")
	cmd.Flags().Int("col-offset", d.ColOffset, "vertical shift per tile row")
	cmd.Flags().String("mode", d.Mode.String(), "tile order (radial|checkerboard|spiral|row|column|diagonal)")
}

func addUntileFlags(cmd *cobra.Command) {
	cmd.Flags().String("blend-mode", tile.BlendSine.String(), "seam blend curve (linear|sine|cubic|quadratic|hermite|sine_quadratic_mix|quadratic_sine_mix)")
	cmd.Flags().Int("blend-range", 128, "width of the seam fade in pixels")
}

func addUpscaleFlags(cmd *cobra.Command) {
	d := upscaler.DefaultOptions()
	cmd.Flags().Float64("by", d.UpscaleBy, "total upscale factor")
	cmd.Flags().String("method", d.Method.String(), "resampling method (nearest|bilinear|area|bicubic|lanczos)")
	cmd.Flags().String("stage2-order", d.Stage2Order.String(), "second pass order (downscale_first|upscale_first)")
	cmd.Flags().Bool("mixed-initial", d.MixedInitial, "soften the input before the first pass")
	cmd.Flags().Bool("tiled", d.Tiled, "run the model on four overlapping quadrants")
	cmd.Flags().Int("model-scale", 4, "scale factor of the stand-in model")
	cmd.Flags().String("model-method", resample.Lanczos.String(), "resampling method of the stand-in model")
}

func tileOptions() (tile.Options, error) {
	mode, err := tile.ParseTilingMode(viper.GetString("tile.mode"))
	if err != nil {
		return tile.Options{}, err
	}
	return tile.Options{
		GeometryOptions: tile.GeometryOptions{
			TileWidth:  viper.GetInt("tile.width"),
			TileHeight: viper.GetInt("tile.height"),
			RowOverlap: viper.GetInt("tile.row-overlap"),
			ColOverlap: viper.GetInt("tile.col-overlap"),
			RowOffset:  viper.GetInt("tile.row-offset"),
			ColOffset:  viper.GetInt("tile.col-offset"),
		},
		Mode: mode,
	}, nil
}

func upscaleOptions() (upscaler.Options, error) {
	opts := upscaler.DefaultOptions()
	opts.UpscaleBy = viper.GetFloat64("upscale.by")
	opts.MixedInitial = viper.GetBool("upscale.mixed-initial")
	opts.Tiled = viper.GetBool("upscale.tiled")

	var err error
	if opts.Method, err = resample.ParseMethod(viper.GetString("upscale.method")); err != nil {
		return opts, err
	}
	if opts.Stage2Order, err = upscaler.ParseStage2Order(viper.GetString("upscale.stage2-order")); err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

func processor() *tile.Processor {
	return tile.NewProcessor(viper.GetString("user-agent"))
}
