package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/katalvlaran/neurite/search"
	"github.com/katalvlaran/neurite/stack"
	"github.com/katalvlaran/neurite/volume"
)

// parseCoord parses "x,y,z" (or "x,y" for a plane) into a voxel address.
func parseCoord(s string) (volume.Coord, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 && len(parts) != 3 {
		return volume.Coord{}, fmt.Errorf("coordinate %q: want x,y[,z]", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return volume.Coord{}, fmt.Errorf("coordinate %q: %w", s, err)
		}
		v[i] = n
	}

	return volume.C(v[0], v[1], v[2]), nil
}

func parseCoords(ss []string) ([]volume.Coord, error) {
	out := make([]volume.Coord, 0, len(ss))
	for _, s := range ss {
		c, err := parseCoord(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, nil
}

// parseSpacing parses "dx,dy,dz".
func parseSpacing(s string) (volume.Spacing, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return volume.Spacing{}, fmt.Errorf("spacing %q: want dx,dy,dz", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return volume.Spacing{}, fmt.Errorf("spacing %q: %w", s, err)
		}
		v[i] = f
	}

	return volume.Spacing{DX: v[0], DY: v[1], DZ: v[2]}, nil
}

// loadImages reads the primary and optional secondary stacks named by the
// persistent flags.
func loadImages(cmd *cobra.Command) (primary, secondary *volume.Volume, err error) {
	spacing, _ := cmd.Flags().GetString("spacing")
	sp, err := parseSpacing(spacing)
	if err != nil {
		return nil, nil, err
	}
	opt := volume.WithSpacing(sp.DX, sp.DY, sp.DZ)

	patterns, _ := cmd.Flags().GetStringSlice("slices")
	if len(patterns) == 0 {
		return nil, nil, fmt.Errorf("provide the image with --slices")
	}
	paths, err := stack.Expand(patterns)
	if err != nil {
		return nil, nil, err
	}
	if primary, err = stack.Load(paths, opt); err != nil {
		return nil, nil, err
	}

	patterns, _ = cmd.Flags().GetStringSlice("secondary")
	if len(patterns) == 0 {
		return primary, nil, nil
	}
	if paths, err = stack.Expand(patterns); err != nil {
		return nil, nil, err
	}
	if secondary, err = stack.Load(paths, opt); err != nil {
		return nil, nil, err
	}

	return primary, secondary, nil
}

// pointOut is the serialised form of a path vertex.
type pointOut struct {
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
	Z     float64 `yaml:"z" json:"z"`
	Voxel string  `yaml:"voxel" json:"voxel"`
	Cost  float64 `yaml:"cost" json:"cost"`
}

// pathOut is the serialised form of a traced path.
type pathOut struct {
	Status   string     `yaml:"status" json:"status"`
	Error    string     `yaml:"error,omitempty" json:"error,omitempty"`
	Cost     float64    `yaml:"cost" json:"cost"`
	Length   float64    `yaml:"length" json:"length"`
	Opened   int        `yaml:"opened,omitempty" json:"opened,omitempty"`
	Closed   int        `yaml:"closed,omitempty" json:"closed,omitempty"`
	Expanded int        `yaml:"expanded,omitempty" json:"expanded,omitempty"`
	Points   []pointOut `yaml:"points" json:"points"`
}

func newPathOut(p *search.Path, sp volume.Spacing) pathOut {
	out := pathOut{Status: search.Succeeded.String()}
	if p == nil {
		return out
	}
	out.Points = make([]pointOut, p.Len())
	for i, pt := range p.Points {
		out.Points[i] = pointOut{X: pt.X, Y: pt.Y, Z: pt.Z, Voxel: p.Coords[i].String(), Cost: p.Cumulative[i]}
	}
	if n := p.Len(); n > 0 {
		out.Cost = p.Cumulative[n-1]
	}
	out.Length = p.Length(sp)

	return out
}

// writeOutput encodes v as YAML or JSON.
func writeOutput(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", format)
	}
}

// createOutput opens path for writing, or returns stdout for "" or "-".
func createOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}

	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
