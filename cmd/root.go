package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/goat/internal/logging"
)

// Version is reported by the server health endpoint and the User-Agent
const Version = "0.3.0"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "goat",
	Short: "Tile, blend and upscale images",
	Long: `goat splits images into overlapping tiles, merges them back with
smooth seam blending, and upscales images in up to two model passes.

Inputs may be local files or http(s) URLs.

Examples:
  # Show where 1024px tiles with 48px overlap land on a 2000x2000 image
  goat plan --width 2000 --height 2000 --row-overlap 48 --col-overlap 48 --mode row

  # Split an image into tiles and merge them back
  goat tile -i photo.png -o tiles/ --tile-width 512 --tile-height 512 --mode spiral
  goat untile -i tiles/ -o merged.png --blend-mode hermite --blend-range 64

  # Upscale by 3 with a 2x stand-in model, tiled
  goat upscale -i photo.png -o big.png --by 3 --model-scale 2 --tiled

  # Start HTTP server
  goat serve --port 8080`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if viper.GetBool("verbose") {
			level = slog.LevelDebug
		}
		logging.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.goat.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output")
	rootCmd.PersistentFlags().Int("workers", runtime.GOMAXPROCS(0), "maximum concurrent tile or channel workers")
	rootCmd.PersistentFlags().String("user-agent", "goat/"+Version, "HTTP User-Agent header for URL inputs")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	viper.BindPFlag("user-agent", rootCmd.PersistentFlags().Lookup("user-agent"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		// Search config in home directory with name ".goat" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".goat")
	}

	// GOAT_TILE_WIDTH sets tile.width
	viper.SetEnvPrefix("GOAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
