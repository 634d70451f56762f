package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/katalvlaran/neurite/fill"
)

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Flood the cost field around seed voxels",
	Long: `Fill runs Dijkstra from the --seed voxels over the same cost field a trace
would use and reports every voxel within --threshold cost-distance.`,
	RunE: runFill,
}

func init() {
	fillCmd.Flags().StringArray("seed", nil, "seed voxel x,y,z (repeatable)")
	fillCmd.Flags().Float64("threshold", 0, "maximum cost-distance (0 = unbounded)")
	fillCmd.Flags().Float64("wall", 0, "voxels with cost ≥ wall are impassable (0 = none)")
	addRequestFlags(fillCmd)
	addOutputFlags(fillCmd)

	rootCmd.AddCommand(fillCmd)
}

// fillOut is the serialised form of a fill.
type fillOut struct {
	Seeds  int        `yaml:"seeds" json:"seeds"`
	Voxels int        `yaml:"voxels" json:"voxels"`
	Points []pointOut `yaml:"points" json:"points"`
}

func runFill(cmd *cobra.Command, args []string) error {
	cfg, err := requestConfig(cmd)
	if err != nil {
		return err
	}
	req, err := cfg.Request()
	if err != nil {
		return err
	}
	raw, _ := cmd.Flags().GetStringArray("seed")
	seeds, err := parseCoords(raw)
	if err != nil {
		return err
	}

	var opts []fill.Option
	if t, _ := cmd.Flags().GetFloat64("threshold"); t > 0 {
		opts = append(opts, fill.WithMaxDistance(t))
	}
	if w, _ := cmd.Flags().GetFloat64("wall"); w > 0 {
		opts = append(opts, fill.WithInfCostThreshold(w))
	}

	tr, sp, err := newTracer(cmd, cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := tr.Fill(ctx, seeds, req, opts...)
	if err != nil {
		return err
	}

	out := fillOut{Seeds: len(seeds), Voxels: res.Len()}
	for _, c := range res.Voxels() {
		out.Points = append(out.Points, pointOut{
			X:     float64(c.X) * sp.DX,
			Y:     float64(c.Y) * sp.DY,
			Z:     float64(c.Z) * sp.DZ,
			Voxel: c.String(),
			Cost:  res.Distance(c),
		})
	}

	format, _ := cmd.Flags().GetString("format")
	dst, _ := cmd.Flags().GetString("out")
	w, err := createOutput(dst)
	if err != nil {
		return err
	}
	defer w.Close()

	return writeOutput(w, format, out)
}
