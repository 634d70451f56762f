package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/katalvlaran/neurite/search"
	"github.com/katalvlaran/neurite/tracer"
	"github.com/katalvlaran/neurite/volume"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Trace the cheapest path between two or more points",
	Long: `Trace searches the cost field of the image between --start and --goal, or
through every consecutive pair of --points (auto-trace), and writes the
calibrated path as YAML or JSON.

Curvature costs (--cost tubeness|frangi|curvature) compute a Hessian ridge
field at --sigma scales first.`,
	RunE: runTrace,
}

func init() {
	traceCmd.Flags().String("start", "", "start voxel x,y,z")
	traceCmd.Flags().String("goal", "", "goal voxel x,y,z")
	traceCmd.Flags().StringArray("points", nil, "auto-trace through these voxels (repeatable x,y,z)")
	addRequestFlags(traceCmd)
	traceCmd.Flags().Int("max-expansions", 0, "stop after this many expansions (0 = unlimited)")
	traceCmd.Flags().Bool("progress", false, "print search progress to stderr")
	addOutputFlags(traceCmd)

	rootCmd.AddCommand(traceCmd)
}

// addRequestFlags registers the flags shared by every command that builds
// a tracer.Request.
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "search mode: bidirectional or unidirectional")
	cmd.Flags().String("cost", "", "cost: reciprocal, probability, difference, difference-squared, curvature")
	cmd.Flags().String("heuristic", "", "heuristic: euclidean or zero")
	cmd.Flags().String("source", "", "image the cost reads: primary or secondary")
	cmd.Flags().String("filter-kind", "", "ridge filter for curvature costs: tubeness or frangi")
	cmd.Flags().Float64Slice("sigma", nil, "ridge filter scales in calibrated units")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "yaml", "output format: yaml or json")
	cmd.Flags().StringP("out", "o", "-", "output file (- for stdout)")
}

// requestConfig overlays explicitly set command flags on the loaded config.
func requestConfig(cmd *cobra.Command) (tracer.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, err
	}
	str := func(flag string, dst *string) {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
	str("mode", &cfg.Mode)
	str("cost", &cfg.Cost)
	str("heuristic", &cfg.Heuristic)
	str("source", &cfg.Source)
	str("filter-kind", &cfg.Filter.Kind)
	if cmd.Flags().Changed("sigma") {
		cfg.Filter.Sigmas, _ = cmd.Flags().GetFloat64Slice("sigma")
	}
	// "tubeness" and "frangi" as a cost name also pick the filter.
	if cfg.Cost == "tubeness" || cfg.Cost == "frangi" {
		if !cmd.Flags().Changed("filter-kind") {
			cfg.Filter.Kind = cfg.Cost
		}
	}

	return cfg, nil
}

// newTracer loads the images and builds a tracer from cfg.
func newTracer(cmd *cobra.Command, cfg tracer.Config) (*tracer.Tracer, volume.Spacing, error) {
	primary, secondary, err := loadImages(cmd)
	if err != nil {
		return nil, volume.Spacing{}, err
	}
	var sec volume.Sampler
	if secondary != nil {
		sec = secondary
	}
	tr := tracer.NewFromConfig(cfg)
	if err := tr.SetImages(primary, sec, false); err != nil {
		tr.Close()
		return nil, volume.Spacing{}, err
	}

	return tr, volume.SpacingOf(primary), nil
}

func runTrace(cmd *cobra.Command, args []string) error {
	cfg, err := requestConfig(cmd)
	if err != nil {
		return err
	}
	req, err := cfg.Request()
	if err != nil {
		return err
	}
	req.MaxExpansions, _ = cmd.Flags().GetInt("max-expansions")

	var points []volume.Coord
	if raw, _ := cmd.Flags().GetStringArray("points"); len(raw) > 0 {
		if points, err = parseCoords(raw); err != nil {
			return err
		}
	} else {
		start, _ := cmd.Flags().GetString("start")
		goal, _ := cmd.Flags().GetString("goal")
		if start == "" || goal == "" {
			return fmt.Errorf("provide --start and --goal, or --points")
		}
		if points, err = parseCoords([]string{start, goal}); err != nil {
			return err
		}
	}

	tr, sp, err := newTracer(cmd, cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var out pathOut
	if len(points) == 2 {
		out, err = traceOne(ctx, cmd, tr, req, points[0], points[1], sp)
	} else {
		var paths []*search.Path
		if paths, err = tr.AutoTrace(ctx, points, req); err == nil {
			out = newPathOut(tracer.Join(paths), sp)
		}
	}
	if err != nil {
		return err
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

func traceOne(ctx context.Context, cmd *cobra.Command, tr *tracer.Tracer, req tracer.Request, a, b volume.Coord, sp volume.Spacing) (pathOut, error) {
	req.Start, req.Goal = a, b
	var sink tracer.SinkFuncs
	if show, _ := cmd.Flags().GetBool("progress"); show {
		sink.Progress = func(opened, closed int) {
			fmt.Fprintf(os.Stderr, "\ropened %d closed %d", opened, closed)
		}
		sink.Finished = func(search.Result) { fmt.Fprintln(os.Stderr) }
	}

	h, err := tr.Submit(ctx, req, sink)
	if err != nil {
		return pathOut{}, err
	}
	res := h.Wait()
	if res.Status != search.Succeeded {
		return pathOut{}, fmt.Errorf("search %s: %w", res.Status, res.Err)
	}
	out := newPathOut(res.Path, sp)
	out.Opened, out.Closed, out.Expanded = res.Stats.Opened, res.Stats.Closed, res.Stats.Expanded

	return out, nil
}
