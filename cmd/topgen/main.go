// Command topgen bridges Verilog/SystemVerilog module source and the
// spreadsheet form used for top-level wiring review (spec.md §6).
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lenslan/topgen/internal/config"
	"github.com/lenslan/topgen/internal/pipeline"
)

var topDir string
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "topgen",
	Short: "Round-trip bridge between module source and top-level wiring sheets",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		info, err := os.Stat(topDir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("--top %q is not a directory", topDir)
		}
		return nil
	},
}

var genSheetCmd = &cobra.Command{
	Use:   "gen-sheet",
	Short: "Walk --top, parse every source file, and emit/update its sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(topDir)
		if err != nil {
			log.WithError(err).Warn("could not load config, using defaults")
			cfg = config.DefaultConfig()
		}
		return pipeline.GenSheet(cfg, topDir)
	},
}

var fromSheetCmd = &cobra.Command{
	Use:   "from-sheet",
	Short: "Read <dirname>.xlsx next to --top and emit <dirname>.v",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(topDir)
		if err != nil {
			log.WithError(err).Warn("could not load config, using defaults")
			cfg = config.DefaultConfig()
		}
		return pipeline.FromSheet(cfg, topDir)
	},
}

var fromFileCmd = &cobra.Command{
	Use:   "from-file",
	Short: "Run gen-sheet then from-sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(topDir)
		if err != nil {
			log.WithError(err).Warn("could not load config, using defaults")
			cfg = config.DefaultConfig()
		}
		return pipeline.FromFile(cfg, topDir)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&topDir, "top", "", "path to the top module directory (required)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	_ = rootCmd.MarkPersistentFlagRequired("top")

	rootCmd.AddCommand(genSheetCmd, fromSheetCmd, fromFileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
