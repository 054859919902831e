package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hotshot-go/hotshot/config"
)

var (
	flagTxInterval time.Duration
	flagTxSize     int
)

var rootCmd = &cobra.Command{
	Use:   "sequencer",
	Short: "Run a local HotShot sequencer network",
	Long: "Runs a network of HotShot nodes connected by an in-process network. Each node keeps its " +
		"consensus state in its own database under the data directory and resumes from it on restart.",
	SilenceUsage: true,
	RunE:         run,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaults := config.DefaultConfig()
	config.InitializeFlags(rootCmd.Flags(), &defaults)
	rootCmd.Flags().DurationVar(&flagTxInterval, "tx-interval", 0, "submit a random transaction at this interval, 0 disables")
	rootCmd.Flags().IntVar(&flagTxSize, "tx-size", 64, "size in bytes of generated transactions")
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level: %w", err)
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger(), nil
}
