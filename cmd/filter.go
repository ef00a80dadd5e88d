package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiesman99/goat/internal/colormatch"
	"github.com/kiesman99/goat/internal/grain"
	"github.com/kiesman99/goat/internal/seed"
	"github.com/kiesman99/goat/pkg/tile"
)

var grainCmd = &cobra.Command{
	Use:   "grain",
	Short: "Add film grain to an image",
	RunE:  runGrain,
}

var colorMatchCmd = &cobra.Command{
	Use:   "colormatch",
	Short: "Match the colour statistics of an image to a reference",
	RunE:  runColorMatch,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Pick seeds the way the seed node does",
	Long: `Run the seed node --count times in a row with the same inputs and print
each chosen seed. The history only lives for this invocation.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(grainCmd)
	rootCmd.AddCommand(colorMatchCmd)
	rootCmd.AddCommand(seedCmd)

	gd := grain.DefaultOptions()
	grainCmd.Flags().StringP("input", "i", "", "input image file or URL (required)")
	grainCmd.Flags().StringP("output", "o", "", "output PNG file (required)")
	grainCmd.Flags().Float64("strength", gd.Strength, "grain strength in [0,1]")
	grainCmd.Flags().String("grain", gd.Kind.String(), "grain type (gaussian|fft|mixed, optionally with _cuda)")
	grainCmd.Flags().Int64("seed", gd.Seed, "noise seed")
	grainCmd.MarkFlagRequired("input")
	grainCmd.MarkFlagRequired("output")

	cd := colormatch.DefaultOptions()
	colorMatchCmd.Flags().StringP("input", "i", "", "input image file or URL (required)")
	colorMatchCmd.Flags().StringP("reference", "r", "", "reference image file or URL (required)")
	colorMatchCmd.Flags().StringP("output", "o", "", "output PNG file (required)")
	colorMatchCmd.Flags().Float64("strength", cd.Strength, "match strength in [0,1]")
	colorMatchCmd.Flags().Bool("adaptive", cd.Adaptive, "weaken the match when the statistics differ a lot")
	colorMatchCmd.MarkFlagRequired("input")
	colorMatchCmd.MarkFlagRequired("reference")
	colorMatchCmd.MarkFlagRequired("output")

	seedCmd.Flags().Int64("seed", seed.Random, "requested seed, -1 for random")
	seedCmd.Flags().Bool("generate-new", false, "draw a new seed unless the requested one is remembered")
	seedCmd.Flags().Int("count", 1, "number of consecutive runs")
}

func runGrain(cmd *cobra.Command, args []string) error {
	opts := grain.DefaultOptions()
	opts.Strength, _ = cmd.Flags().GetFloat64("strength")
	opts.Seed, _ = cmd.Flags().GetInt64("seed")
	kind, _ := cmd.Flags().GetString("grain")

	var err error
	if opts.Kind, err = grain.ParseKind(kind); err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")

	img, err := processor().Load(cmd.Context(), input, tile.FormatFloat)
	if err != nil {
		return err
	}
	out, err := grain.Apply(cmd.Context(), img, opts)
	if err != nil {
		return err
	}
	return tile.WritePNG(output, out)
}

func runColorMatch(cmd *cobra.Command, args []string) error {
	opts := colormatch.DefaultOptions()
	opts.Strength, _ = cmd.Flags().GetFloat64("strength")
	opts.Adaptive, _ = cmd.Flags().GetBool("adaptive")

	input, _ := cmd.Flags().GetString("input")
	reference, _ := cmd.Flags().GetString("reference")
	output, _ := cmd.Flags().GetString("output")

	p := processor()
	img, err := p.Load(cmd.Context(), input, tile.FormatFloat)
	if err != nil {
		return err
	}
	ref, err := p.Load(cmd.Context(), reference, tile.FormatFloat)
	if err != nil {
		return err
	}

	out, err := colormatch.Match(cmd.Context(), img, ref, opts)
	if err != nil {
		return err
	}
	return tile.WritePNG(output, out)
}

func runSeed(cmd *cobra.Command, args []string) error {
	requested, _ := cmd.Flags().GetInt64("seed")
	generateNew, _ := cmd.Flags().GetBool("generate-new")
	count, _ := cmd.Flags().GetInt("count")

	h := seed.NewHistory(nil)
	for range count {
		s, err := h.Next(requested, generateNew)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return nil
}
