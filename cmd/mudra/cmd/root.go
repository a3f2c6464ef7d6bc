// Package cmd contains all CLI commands for mudra.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/store"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	v       = config.NewViper()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mudra",
	Short: "Control your computer with hand gestures",
	Long: `Mudra watches a camera, recognizes static hand gestures and turns
them into actions.

Each frame goes through the same pipeline:
  - Landmarks  → 21 hand points from the detector
  - Features   → which fingers are open, pinch distance, thumb angle
  - Label      → FIST, THUMBS_UP, POINTING, OPEN_PALM, PINCH or NONE
  - Stabilizer → a label must hold for several frames before it counts
  - Dispatcher → the binding for the label in the active mode fires once

Run 'mudra run' to start detecting, or 'mudra replay' to feed a recorded
session through the same pipeline.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mudra/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")

	v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// loadConfig reads the config file, environment and bound flags.
func loadConfig() (*config.Config, error) {
	return config.Load(v, cfgFile)
}

// configPath returns the file 'config init' writes and the other commands read.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

// openStore opens the database in the data directory, seeding it with the
// configured bindings on first use.
func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath(), store.WithMaxEvents(cfg.Store.MaxEvents))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	seed, err := cfg.SeedBindings()
	if err != nil {
		st.Close()
		return nil, err
	}
	seeded, err := st.Bindings().Seed(seed)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("seeding bindings: %w", err)
	}
	if seeded {
		log.Printf("Seeded %d bindings from configuration", len(seed))
	}

	return st, nil
}

// quietLogs sends log output to w unless --verbose is set.
func quietLogs(w io.Writer) {
	if !v.GetBool("verbose") {
		log.SetOutput(w)
	}
}
