package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/goat/internal/model"
	"github.com/kiesman99/goat/internal/resample"
	"github.com/kiesman99/goat/internal/upscaler"
	"github.com/kiesman99/goat/pkg/tile"
)

var upscaleCmd = &cobra.Command{
	Use:   "upscale",
	Short: "Upscale an image in up to two model passes",
	Long: `Upscale an image by an arbitrary factor. The model runs once, or twice
when one pass falls short, and the result is resampled to the exact target
size. The model is a resampling stand-in with a fixed integer scale.

If anything goes wrong the input image is written unchanged and a warning
is logged.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), upscaleBindings)
	},
	RunE: runUpscale,
}

func init() {
	rootCmd.AddCommand(upscaleCmd)

	upscaleCmd.Flags().StringP("input", "i", "", "input image file or URL (required)")
	upscaleCmd.Flags().StringP("output", "o", "", "output PNG file (required)")
	upscaleCmd.MarkFlagRequired("input")
	upscaleCmd.MarkFlagRequired("output")
	addUpscaleFlags(upscaleCmd)
}

func runUpscale(cmd *cobra.Command, args []string) error {
	opts, err := upscaleOptions()
	if err != nil {
		return err
	}
	scale := viper.GetInt("upscale.model-scale")
	if err := tile.CheckRange("model_scale", scale, 1, 16); err != nil {
		return err
	}
	modelMethod, err := resample.ParseMethod(viper.GetString("upscale.model-method"))
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")

	img, err := processor().Load(cmd.Context(), input, tile.FormatFloat)
	if err != nil {
		return err
	}

	res := upscaler.New(model.NewResampling(scale, modelMethod, nil), nil).Upscale(cmd.Context(), img, opts)
	if err := tile.WritePNG(output, res.Image); err != nil {
		return err
	}

	if res.Fallback {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: upscale failed, wrote the input image: %v\n", res.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%dx%d\n", res.Width, res.Height)
	return nil
}
