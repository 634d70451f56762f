package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/katalvlaran/neurite/hessian"
	"github.com/katalvlaran/neurite/tracer"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Compute a Hessian ridge field and save it as a snapshot",
	Long: `Filter computes the tubeness or Frangi vesselness field of the image at the
given --sigma scales and writes it as a compressed snapshot (zstd, lz4 or
uncompressed) that can be inspected or reused.`,
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().String("kind", "", "filter kind: tubeness or frangi (default from config)")
	filterCmd.Flags().Float64Slice("sigma", nil, "scales in calibrated units (default from config)")
	filterCmd.Flags().String("source", "primary", "image to filter: primary or secondary")
	filterCmd.Flags().String("codec", "zstd", "snapshot codec: zstd, lz4 or none")
	filterCmd.Flags().StringP("out", "o", "", "snapshot file (required)")
	_ = filterCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	kindName := cfg.Filter.Kind
	if cmd.Flags().Changed("kind") {
		kindName, _ = cmd.Flags().GetString("kind")
	}
	kind, err := hessian.ParseKind(kindName)
	if err != nil {
		return err
	}
	sigmas := cfg.Filter.Sigmas
	if cmd.Flags().Changed("sigma") {
		sigmas, _ = cmd.Flags().GetFloat64Slice("sigma")
	}
	params := hessian.Params{Kind: kind, Sigmas: sigmas}
	if err := params.Validate(); err != nil {
		return err
	}
	roleName, _ := cmd.Flags().GetString("source")
	role, err := tracer.ParseRole(roleName)
	if err != nil {
		return err
	}
	codecName, _ := cmd.Flags().GetString("codec")
	codec, err := hessian.ParseCodec(codecName)
	if err != nil {
		return err
	}

	tr, _, err := newTracer(cmd, cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	field, err := tr.Filter(ctx, role, params, func(p float64) {
		if p >= 0 {
			fmt.Fprintf(os.Stderr, "\rfilter %3.0f%%", 100*p)
		}
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("out")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := field.Encode(f, codec); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%dx%dx%d, max %.4g)\n", path, field.Width, field.Height, field.Depth, field.Max())

	return nil
}
