package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/thoas/go-funk"
)

// EnvPrefix is the prefix for environment overrides (KGRAPH_PIPELINE_SEED, ...)
const EnvPrefix = "KGRAPH"

// Config is the complete runtime configuration, built once in cmd and passed
// into each component's constructor.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Similarity SimilarityConfig `mapstructure:"similarity" yaml:"similarity"`
	Selection  SelectionConfig  `mapstructure:"selection" yaml:"selection"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal color names.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// PipelineConfig drives the graph metrics batch.
type PipelineConfig struct {
	BaseDir         string             `mapstructure:"base_dir" yaml:"base_dir"`
	OutputDir       string             `mapstructure:"output_dir" yaml:"output_dir"`
	OutputFile      string             `mapstructure:"output_file" yaml:"output_file"`
	Sources         []string           `mapstructure:"sources" yaml:"sources"`
	ReferenceSource string             `mapstructure:"reference_source" yaml:"reference_source"`
	Conferences     []ConferenceConfig `mapstructure:"conferences" yaml:"conferences"`
	Categories      []string           `mapstructure:"categories" yaml:"categories"`
	// Seed for the alignment sampler; 0 seeds from the clock.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// ConferenceConfig lists the years processed for one venue. A slice keeps
// the venue name's case, which viper would lowercase as a map key.
type ConferenceConfig struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Years []int  `mapstructure:"years" yaml:"years"`
}

// DatabaseConfig points at the optional SQLite sink. An empty path disables it.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SimilarityConfig drives the review/section similarity stage.
type SimilarityConfig struct {
	RootDir     string        `mapstructure:"root_dir" yaml:"root_dir"`
	Models      []string      `mapstructure:"models" yaml:"models"`
	Encoder     EncoderConfig `mapstructure:"encoder" yaml:"encoder"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
}

// EncoderConfig configures an OpenAI-compatible embeddings endpoint.
type EncoderConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
}

// SelectionConfig drives consistent-paper labeling.
type SelectionConfig struct {
	RootDir          string             `mapstructure:"root_dir" yaml:"root_dir"`
	LabelPercent     float64            `mapstructure:"label_percent" yaml:"label_percent"`
	BorderlineWindow float64            `mapstructure:"borderline_window" yaml:"borderline_window"`
	Thresholds       map[string]float64 `mapstructure:"thresholds" yaml:"thresholds"`
	DefaultThreshold float64            `mapstructure:"default_threshold" yaml:"default_threshold"`
	UseKDE           bool               `mapstructure:"use_kde" yaml:"use_kde"`
}

// NewDefaultConfig returns a Config populated only from defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "kgraph")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Pipeline --
	v.SetDefault("pipeline.base_dir", "../Data/Knowledge_Graph/")
	v.SetDefault("pipeline.output_dir", "../Data/Knowledge_Graph/")
	v.SetDefault("pipeline.output_file", "graph_metrics_clean.csv")
	v.SetDefault("pipeline.sources", []string{"claude", "gemini", "gpt", "llama", "qwen", "real"})
	v.SetDefault("pipeline.reference_source", "real")
	v.SetDefault("pipeline.conferences", []ConferenceConfig{
		{Name: "ICLR", Years: []int{2024, 2025}},
		{Name: "NeurIPS", Years: []int{2023, 2024}},
	})
	v.SetDefault("pipeline.categories", []string{"good", "borderline", "bad"})
	v.SetDefault("pipeline.seed", 0)

	// -- Database --
	v.SetDefault("database.path", "")

	// -- Similarity --
	v.SetDefault("similarity.root_dir", "../Data")
	v.SetDefault("similarity.models", []string{"gpt", "gemini", "claude", "llama", "qwen"})
	v.SetDefault("similarity.encoder.base_url", "")
	v.SetDefault("similarity.encoder.model", "bge-m3")
	v.SetDefault("similarity.encoder.api_key", "")
	v.SetDefault("similarity.concurrency", 1)

	// -- Selection --
	v.SetDefault("selection.root_dir", "../Data")
	v.SetDefault("selection.label_percent", 0.025)
	v.SetDefault("selection.borderline_window", 0.0125)
	v.SetDefault("selection.thresholds", map[string]float64{
		"ICLR2025":    0.66,
		"ICLR2024":    0.66,
		"NeurIPS2023": 0.61,
		"NeurIPS2024": 0.62,
	})
	v.SetDefault("selection.default_threshold", 1.0)
	v.SetDefault("selection.use_kde", false)
}

// BindEnv wires KGRAPH_* environment overrides into v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadEnv loads a .env file into the process environment if one exists.
// Missing files are not an error; variables already set are not overwritten.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	return nil
}

// NewConfigFromViper unmarshals and validates a Config.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets only ever come from the environment
	_ = v.BindEnv("similarity.encoder.api_key", EnvPrefix+"_ENCODER_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline configuration invalid: %w", err)
	}
	if c.Similarity.Concurrency <= 0 {
		return errors.New("similarity.concurrency must be a positive integer")
	}
	if err := c.Selection.Validate(); err != nil {
		return fmt.Errorf("selection configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the pipeline source set.
func (p *PipelineConfig) Validate() error {
	if len(p.Sources) == 0 {
		return errors.New("pipeline.sources must not be empty")
	}
	if len(funk.UniqString(p.Sources)) != len(p.Sources) {
		return fmt.Errorf("pipeline.sources contains duplicates: %v", p.Sources)
	}
	if !funk.ContainsString(p.Sources, p.ReferenceSource) {
		return fmt.Errorf("pipeline.reference_source %q is not one of pipeline.sources", p.ReferenceSource)
	}
	if p.BaseDir == "" {
		return errors.New("pipeline.base_dir is required")
	}
	if p.OutputFile == "" {
		return errors.New("pipeline.output_file is required")
	}
	for _, c := range p.Conferences {
		if c.Name == "" {
			return errors.New("pipeline.conferences entries need a name")
		}
	}
	return nil
}

// Validate checks the labeling fractions.
func (s *SelectionConfig) Validate() error {
	if s.LabelPercent <= 0 || s.LabelPercent >= 0.5 {
		return fmt.Errorf("selection.label_percent must be in (0, 0.5), got %v", s.LabelPercent)
	}
	if s.BorderlineWindow < 0 || s.BorderlineWindow >= 0.5 {
		return fmt.Errorf("selection.borderline_window must be in [0, 0.5), got %v", s.BorderlineWindow)
	}
	return nil
}

// ThresholdFor returns the std_rating cutoff for a dataset name such as
// "ICLR2024", falling back to DefaultThreshold.
func (s *SelectionConfig) ThresholdFor(dataset string) float64 {
	// viper lowercases map keys
	for k, t := range s.Thresholds {
		if strings.EqualFold(k, dataset) {
			return t
		}
	}
	return s.DefaultThreshold
}
