package tracer

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/katalvlaran/neurite/cost"
	"github.com/katalvlaran/neurite/hessian"
	"github.com/katalvlaran/neurite/internal/logging"
	"github.com/katalvlaran/neurite/search"
)

// Config is the file/environment form of the tracer settings and the
// default request. Zero numeric fields keep the package defaults.
type Config struct {
	Workers          int           `yaml:"workers" json:"workers" mapstructure:"workers"`
	FilterWorkers    int           `yaml:"filter_workers" json:"filter_workers" mapstructure:"filter_workers"`
	ProgressInterval time.Duration `yaml:"progress_interval" json:"progress_interval" mapstructure:"progress_interval"`
	DenseLimit       int           `yaml:"dense_limit" json:"dense_limit" mapstructure:"dense_limit"`

	Mode      string       `yaml:"mode" json:"mode" mapstructure:"mode"`
	Source    string       `yaml:"source" json:"source" mapstructure:"source"`
	Cost      string       `yaml:"cost" json:"cost" mapstructure:"cost"`
	Heuristic string       `yaml:"heuristic" json:"heuristic" mapstructure:"heuristic"`
	Tuning    TuningConfig `yaml:"tuning" json:"tuning" mapstructure:"tuning"`
	Filter    FilterConfig `yaml:"filter" json:"filter" mapstructure:"filter"`

	Log LogConfig `yaml:"log" json:"log" mapstructure:"log"`
}

// TuningConfig holds cost-function knobs.
type TuningConfig struct {
	ZFudge     float64 `yaml:"z_fudge" json:"z_fudge" mapstructure:"z_fudge"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier" mapstructure:"multiplier"`
	Epsilon    float64 `yaml:"epsilon" json:"epsilon" mapstructure:"epsilon"`
}

// FilterConfig selects the ridge filter used by curvature costs.
type FilterConfig struct {
	Kind   string    `yaml:"kind" json:"kind" mapstructure:"kind"`
	Sigmas []float64 `yaml:"sigmas" json:"sigmas" mapstructure:"sigmas"`
}

// LogConfig selects the log level and format ("text" or "json").
type LogConfig struct {
	Level  string `yaml:"level" json:"level" mapstructure:"level"`
	Format string `yaml:"format" json:"format" mapstructure:"format"`
}

// DefaultConfig returns bidirectional search with a reciprocal cost on the
// primary image, Frangi at σ=1 for curvature costs and info text logs.
func DefaultConfig() Config {
	return Config{
		Mode:      search.Bidirectional.String(),
		Source:    hessian.Primary.String(),
		Cost:      cost.Reciprocal.String(),
		Heuristic: cost.Euclidean.String(),
		Filter:    FilterConfig{Kind: hessian.Frangi.String(), Sigmas: []float64{1}},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Options converts the pool settings to functional options.
func (c Config) Options() []Option {
	var opts []Option
	if c.Workers > 0 {
		opts = append(opts, WithWorkers(c.Workers))
	}
	if c.FilterWorkers > 0 {
		opts = append(opts, WithFilterWorkers(c.FilterWorkers))
	}
	if c.ProgressInterval > 0 {
		opts = append(opts, WithProgressInterval(c.ProgressInterval))
	}
	if c.DenseLimit > 0 {
		opts = append(opts, WithDenseLimit(c.DenseLimit))
	}

	return opts
}

// Logger builds a stderr logger from the Log section.
func (c Config) Logger() *logging.Logger {
	level := logging.ParseLevel(c.Log.Level)
	if strings.EqualFold(c.Log.Format, "json") {
		return logging.NewJSON(os.Stderr, level)
	}

	return logging.NewText(os.Stderr, level)
}

// Request parses the default request. Start and Goal are left zero.
func (c Config) Request() (Request, error) {
	var (
		req Request
		err error
	)
	if req.Mode, err = search.ParseMode(c.Mode); err != nil {
		return Request{}, err
	}
	if req.Source, err = ParseRole(c.Source); err != nil {
		return Request{}, err
	}
	if req.Cost, err = cost.ParseKind(c.Cost); err != nil {
		return Request{}, err
	}
	if req.Heuristic, err = cost.ParseHeuristic(c.Heuristic); err != nil {
		return Request{}, err
	}
	req.CostParams = cost.Params{
		ZFudge:     c.Tuning.ZFudge,
		Multiplier: c.Tuning.Multiplier,
		Epsilon:    c.Tuning.Epsilon,
	}
	if req.Cost == cost.Curvature {
		if req.Filter.Kind, err = hessian.ParseKind(c.Filter.Kind); err != nil {
			return Request{}, err
		}
		req.Filter.Sigmas = append([]float64(nil), c.Filter.Sigmas...)
		if err = req.Filter.Validate(); err != nil {
			return Request{}, err
		}
	}

	return req, nil
}

// ParseRole maps "primary" or "secondary" to a hessian.Role.
func ParseRole(s string) (hessian.Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "primary":
		return hessian.Primary, nil
	case "secondary":
		return hessian.Secondary, nil
	default:
		return 0, fmt.Errorf("tracer: unknown image role %q", s)
	}
}

// NewFromConfig builds a Tracer from c; opts are applied after the
// config-derived options.
func NewFromConfig(c Config, opts ...Option) *Tracer {
	all := append(c.Options(), WithLogger(c.Logger()))

	return New(append(all, opts...)...)
}
