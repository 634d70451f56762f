// Package main is the entry point for the neurite CLI: it loads a z-stack of
// slices and runs path searches, ridge filters and fills over it.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/katalvlaran/neurite/tracer"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the neurite CLI.
var rootCmd = &cobra.Command{
	Use:   "neurite",
	Short: "Semi-automated neurite tracing on image stacks",
	Long: `neurite finds the most probable centreline of a filament between two
points of a 3D (or 2D) image stack. The cost of a voxel is derived from its
intensity or from a Hessian ridge filter (tubeness or Frangi vesselness).

Subcommands: trace (path search), filter (compute and save a ridge field),
fill (flood the cost field around seed voxels).`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./neurite.yaml or ~/.config/neurite/config.yaml)")
	rootCmd.PersistentFlags().StringSlice("slices", nil, "slice files or glob patterns, in z order")
	rootCmd.PersistentFlags().StringSlice("secondary", nil, "optional secondary image slices")
	rootCmd.PersistentFlags().String("spacing", "1,1,1", "voxel spacing dx,dy,dz")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().Int("workers", 0, "concurrent searches (default: number of CPUs)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
}

func initConfig() {
	def := tracer.DefaultConfig()
	viper.SetDefault("mode", def.Mode)
	viper.SetDefault("source", def.Source)
	viper.SetDefault("cost", def.Cost)
	viper.SetDefault("heuristic", def.Heuristic)
	viper.SetDefault("filter.kind", def.Filter.Kind)
	viper.SetDefault("filter.sigmas", def.Filter.Sigmas)
	viper.SetDefault("log.level", def.Log.Level)
	viper.SetDefault("log.format", def.Log.Format)

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("neurite")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "neurite"))
		}
	}

	viper.SetEnvPrefix("NEURITE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig decodes the merged flags, file and environment settings.
func loadConfig() (tracer.Config, error) {
	cfg := tracer.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
