package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/goat/pkg/tile"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the tile origins for an image size",
	Long: `Print the tile metadata (image size and ordered tile origins) as JSON
without reading any pixels. The size comes from --width/--height or from
the image given with --input.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), tileBindings)
	},
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringP("input", "i", "", "read the image size from this file or URL")
	planCmd.Flags().Int("width", 0, "image width in pixels")
	planCmd.Flags().Int("height", 0, "image height in pixels")
	addTileFlags(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	opts, err := tileOptions()
	if err != nil {
		return err
	}

	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	if input, _ := cmd.Flags().GetString("input"); input != "" {
		img, err := processor().Load(cmd.Context(), input, tile.FormatFloat)
		if err != nil {
			return err
		}
		width, height = img.Width, img.Height
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("either --input or both --width and --height are required")
	}

	origins, err := tile.GenerateOrigins(width, height, opts.GeometryOptions)
	if err != nil {
		return err
	}
	origins, err = tile.Reorder(origins, opts.Mode, tile.Layout{
		ImageWidth:  width,
		ImageHeight: height,
		TileWidth:   opts.TileWidth,
		TileHeight:  opts.TileHeight,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(tile.Metadata{Height: height, Width: width, Origins: origins})
}

// workers returns the configured concurrency limit
func workers() int {
	return viper.GetInt("workers")
}
