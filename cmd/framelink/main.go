package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/framelink-dev/framelink/internal/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagVerbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "framelink",
		Short: "Stream raw RGBA frames over ordered byte streams",
		Long: `Framelink moves rendered RGBA frames between processes over any
ordered byte stream: TCP, unix sockets, or websockets.

The sender encodes each frame as one self-describing message; the
receiver reassembles messages from arbitrarily fragmented reads,
correlates frames with the latest pose sample, and hands complete
frames to a consumer. Memory stays bounded no matter how the bytes
arrive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(flagVerbose)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", ".",
		"Directory containing framelink.json")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(
		sendCmd(),
		recvCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// setupLogging installs the process-wide structured logger.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// loadConfig reads framelink.json from the --config directory.
func loadConfig() (*config.Config, error) {
	return config.Load(flagConfig)
}
