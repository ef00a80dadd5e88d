package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/goat/internal/logging"
	"github.com/kiesman99/goat/internal/stitch"
	"github.com/kiesman99/goat/pkg/tile"
)

// MetadataFile is the name of the metadata file written next to the tiles
const MetadataFile = "metadata.json"

var tileCmd = &cobra.Command{
	Use:   "tile",
	Short: "Split an image into overlapping tiles",
	Long: `Split an image into overlapping tiles. Tiles are written in emission
order as tile_0000.png, tile_0001.png, ... together with metadata.json,
which untile needs to put them back together.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), tileBindings)
	},
	RunE: runTile,
}

var untileCmd = &cobra.Command{
	Use:   "untile",
	Short: "Merge a directory of tiles back into one image",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), untileBindings)
	},
	RunE: runUntile,
}

func init() {
	rootCmd.AddCommand(tileCmd)
	rootCmd.AddCommand(untileCmd)

	tileCmd.Flags().StringP("input", "i", "", "input image file or URL (required)")
	tileCmd.Flags().StringP("output", "o", "", "output directory (required)")
	tileCmd.MarkFlagRequired("input")
	tileCmd.MarkFlagRequired("output")
	addTileFlags(tileCmd)

	untileCmd.Flags().StringP("input", "i", "", "directory written by tile (required)")
	untileCmd.Flags().StringP("output", "o", "", "output PNG file (required)")
	untileCmd.MarkFlagRequired("input")
	untileCmd.MarkFlagRequired("output")
	addUntileFlags(untileCmd)
}

func tileName(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("tile_%04d.png", i))
}

func runTile(cmd *cobra.Command, args []string) error {
	opts, err := tileOptions()
	if err != nil {
		return err
	}
	input, _ := cmd.Flags().GetString("input")
	dir, _ := cmd.Flags().GetString("output")

	img, err := processor().Load(cmd.Context(), input, tile.FormatFloat)
	if err != nil {
		return err
	}

	tiles, err := stitch.NewStitcher(workers()).Split(cmd.Context(), img, opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("can't create output directory: %w", err)
	}
	for i, t := range tiles.Batch {
		if err := tile.WritePNG(tileName(dir, i), t); err != nil {
			return fmt.Errorf("can't write tile %d: %w", i, err)
		}
	}

	data, err := json.MarshalIndent(tiles.Metadata, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), data, 0o644); err != nil {
		return fmt.Errorf("can't write metadata: %w", err)
	}

	logging.Logger().Info("wrote tiles", "dir", dir, "count", tiles.Count)
	return nil
}

func runUntile(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")

	mode, err := tile.ParseBlendMode(viper.GetString("untile.blend-mode"))
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return fmt.Errorf("can't read metadata: %w", err)
	}
	var meta tile.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("can't parse %s: %w", MetadataFile, err)
	}

	p := processor()
	batch := make([]*tile.Image, len(meta.Origins))
	for i := range batch {
		if batch[i], err = p.Load(cmd.Context(), tileName(dir, i), tile.FormatFloat); err != nil {
			return err
		}
	}

	merged, err := stitch.NewStitcher(workers()).Merge(cmd.Context(), batch, meta, mode, viper.GetInt("untile.blend-range"))
	if err != nil {
		return err
	}
	if err := tile.WritePNG(output, merged); err != nil {
		return err
	}

	logging.Logger().Info("merged tiles", "output", output, "width", merged.Width, "height", merged.Height)
	return nil
}
