package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/puff-cli/internal/scoring"
)

// Config holds the full application configuration.
type Config struct {
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// InputConfig configures how puff logs are read.
type InputConfig struct {
	Sheet         string   `yaml:"sheet" mapstructure:"sheet"`
	CommentPrefix string   `yaml:"comment_prefix" mapstructure:"comment_prefix"`
	DateLayouts   []string `yaml:"date_layouts" mapstructure:"date_layouts"`
}

// OutputConfig configures where graded tables are written.
type OutputConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
	Manifest    bool   `yaml:"manifest" mapstructure:"manifest"`
}

// ScoringConfig holds the operator-tunable scoring constants.
type ScoringConfig struct {
	Continuity      BandsConfig `yaml:"continuity" mapstructure:"continuity"`
	Time            BandsConfig `yaml:"time" mapstructure:"time"`
	GreenThreshold  float64     `yaml:"green_threshold" mapstructure:"green_threshold"`
	YellowThreshold float64     `yaml:"yellow_threshold" mapstructure:"yellow_threshold"`
}

// BandsConfig holds the three upper bounds for single and double doses.
type BandsConfig struct {
	Single []int `yaml:"single" mapstructure:"single"`
	Double []int `yaml:"double" mapstructure:"double"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PUFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	def := scoring.DefaultThresholds()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("input.sheet", "Puffs")
	v.SetDefault("input.comment_prefix", "#")
	// Ambiguous numeric dates are month-first, as the clinic's logs are
	// (03-01-24 and 03/01/2024 are 1 March). XLSX date cells arrive as
	// ISO text and never reach these.
	v.SetDefault("input.date_layouts", []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006/01/02",
		"01-02-06",
		"01/02/2006",
	})
	v.SetDefault("output.dir", "results")
	v.SetDefault("output.metrics_file", "")
	v.SetDefault("output.manifest", true)
	v.SetDefault("scoring.continuity.single", def.Continuity.Single[:])
	v.SetDefault("scoring.continuity.double", def.Continuity.Double[:])
	v.SetDefault("scoring.time.single", def.Time.Single[:])
	v.SetDefault("scoring.time.double", def.Time.Double[:])
	v.SetDefault("scoring.green_threshold", def.Green)
	v.SetDefault("scoring.yellow_threshold", def.Yellow)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "puff.db")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Thresholds converts the scoring section into the immutable value the
// scorer and aggregator consume.
func (c *Config) Thresholds() (scoring.Thresholds, error) {
	var th scoring.Thresholds
	var err error
	if th.Continuity.Single, err = toBands("scoring.continuity.single", c.Scoring.Continuity.Single); err != nil {
		return th, err
	}
	if th.Continuity.Double, err = toBands("scoring.continuity.double", c.Scoring.Continuity.Double); err != nil {
		return th, err
	}
	if th.Time.Single, err = toBands("scoring.time.single", c.Scoring.Time.Single); err != nil {
		return th, err
	}
	if th.Time.Double, err = toBands("scoring.time.double", c.Scoring.Time.Double); err != nil {
		return th, err
	}
	th.Green = c.Scoring.GreenThreshold
	th.Yellow = c.Scoring.YellowThreshold
	return th, th.Validate()
}

func toBands(key string, vals []int) (scoring.Bands, error) {
	var b scoring.Bands
	if len(vals) != len(b) {
		return b, eris.Errorf("config: %s needs exactly %d values, got %d", key, len(b), len(vals))
	}
	copy(b[:], vals)
	return b, nil
}

// Validate checks the configuration before any input is read.
func (c *Config) Validate() error {
	var problems []string

	if _, err := c.Thresholds(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Output.Dir == "" {
		problems = append(problems, "output.dir is required")
	}
	if c.Input.Sheet == "" {
		problems = append(problems, "input.sheet is required")
	}
	if len(c.Input.DateLayouts) == 0 {
		problems = append(problems, "input.date_layouts must list at least one layout")
	}
	switch c.Store.Driver {
	case "none":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for driver "+c.Store.Driver)
		}
	default:
		problems = append(problems, "store.driver must be one of sqlite, postgres, none")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
