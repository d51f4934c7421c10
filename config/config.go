// Package config loads spatialpred configuration from a YAML file and
// SPATIALPRED_* environment variables.
package config

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/spatialpred/core/parallel"
	"github.com/YuminosukeSato/spatialpred/engine"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/pkg/log"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// EnvPrefix prefixes every environment override, e.g.
// SPATIALPRED_ENGINE_RANKER=moran.
const EnvPrefix = "SPATIALPRED"

// DefaultPort is the port worker nodes listen on.
const DefaultPort = 7777

// Config holds the full application configuration.
type Config struct {
	Engine engine.Config       `yaml:"engine" mapstructure:"engine"`
	Pool   parallel.PoolConfig `yaml:"pool" mapstructure:"pool"`
	Input  InputConfig         `yaml:"input" mapstructure:"input"`
	Log    LogConfig           `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the data of a run.
type InputConfig struct {
	// Data is a CSV table with a header row.
	Data string `yaml:"data" mapstructure:"data"`
	// Distance is a CSV distance matrix. When empty, distances are computed
	// from the X and Y coordinate columns of Data.
	Distance string `yaml:"distance" mapstructure:"distance"`
	// DistanceHeader skips the first row of the distance CSV.
	DistanceHeader bool `yaml:"distance_header" mapstructure:"distance_header"`

	X      string `yaml:"x" mapstructure:"x"`
	Y      string `yaml:"y" mapstructure:"y"`
	Metric string `yaml:"metric" mapstructure:"metric"`

	Dependent  string   `yaml:"dependent" mapstructure:"dependent"`
	Predictors []string `yaml:"predictors" mapstructure:"predictors"`

	// Out is the path of the YAML report. Empty means stdout.
	Out string `yaml:"out" mapstructure:"out"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Console reports whether human-readable output was requested.
func (c LogConfig) Console() bool {
	return strings.EqualFold(c.Format, "console")
}

// NewViper returns a viper instance with defaults and environment binding
// set up. Callers may bind command-line flags to it before calling
// LoadViper.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := engine.DefaultConfig()
	v.SetDefault("engine.generator", def.Generator.String())
	v.SetDefault("engine.ranker", def.Ranker.String())
	v.SetDefault("engine.selector", def.Selector.String())
	v.SetDefault("engine.thresholds", []float64(def.Thresholds))
	v.SetDefault("engine.weights.r_squared", def.Weights.RSquared)
	v.SetDefault("engine.weights.penalization", def.Weights.Penalization)
	v.SetDefault("engine.max_predictors", def.MaxPredictors)
	v.SetDefault("engine.pca_weighted", def.PCAWeighted)
	v.SetDefault("engine.max_correlation", def.MaxCorrelation)
	v.SetDefault("engine.repetitions", def.Repetitions)
	v.SetDefault("engine.seed", def.Seed)

	v.SetDefault("pool.workers", 0)
	v.SetDefault("pool.nodes", []string{})
	v.SetDefault("pool.port", DefaultPort)
	v.SetDefault("pool.coordinator", "")

	v.SetDefault("input.data", "")
	v.SetDefault("input.distance", "")
	v.SetDefault("input.distance_header", false)
	v.SetDefault("input.x", "")
	v.SetDefault("input.y", "")
	v.SetDefault("input.metric", spatial.Euclidean.String())
	v.SetDefault("input.dependent", "")
	v.SetDefault("input.predictors", []string{})
	v.SetDefault("input.out", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	return v
}

// Load reads configuration from path and the environment. An empty path
// looks for an optional spatialpred.yaml in the working directory.
func Load(path string) (*Config, error) {
	return LoadViper(NewViper(), path)
}

// LoadViper is Load on a caller-prepared viper instance.
func LoadViper(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
	} else {
		v.SetConfigName("spatialpred")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "config: read file")
			}
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if _, err := spatial.ParseMetric(c.Input.Metric); err != nil {
		return err
	}
	if (c.Input.X == "") != (c.Input.Y == "") {
		return errors.NewConfigError("input.x", "x and y coordinate columns are set together", c.Input.X+","+c.Input.Y)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "":
	default:
		return errors.NewConfigError("log.format", "must be json or console", c.Log.Format)
	}
	return nil
}

// InitLogger installs the package-level logger described by cfg.
func InitLogger(cfg LogConfig) error {
	if err := log.SetupLogger(cfg.Level, cfg.Console()); err != nil {
		return errors.Wrap(err, "config: init logger")
	}
	return nil
}
