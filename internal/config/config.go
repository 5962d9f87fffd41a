package config

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"qrbadge/internal/core"
	"qrbadge/internal/fsutil"
	"qrbadge/internal/render"
	"qrbadge/internal/table"
)

// Config holds all qrbadge configuration.
type Config struct {
	// Input table and where generated files go
	Input     string `yaml:"input"`
	Delimiter string `yaml:"delimiter"`
	OutputDir string `yaml:"output_dir"`

	// Message embedded in every QR payload and record
	Message string `yaml:"message"`

	// Seed makes code allocation reproducible. Unset means a random seed.
	Seed *uint64 `yaml:"seed,omitempty"`

	QR      QRConfig      `yaml:"qr"`
	Card    CardConfig    `yaml:"card"`
	Outputs OutputsConfig `yaml:"outputs"`

	// Trace, when set, is the path of the canonical run trace.
	Trace string `yaml:"trace,omitempty"`

	Log LogConfig `yaml:"log"`
}

// QRConfig configures symbol construction.
type QRConfig struct {
	BoxSize    int    `yaml:"box_size"`
	QuietZone  bool   `yaml:"quiet_zone"`
	Level      string `yaml:"level"`   // low, medium, high, highest
	Version    int    `yaml:"version"` // 0 = auto
	Resolution int    `yaml:"resolution"`
}

// CardConfig configures badge compositing.
type CardConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Template string `yaml:"template"`

	// CommitteeTemplates maps a committee name (case-insensitive) to its own template.
	CommitteeTemplates map[string]string `yaml:"committee_templates,omitempty"`

	Offset OffsetConfig `yaml:"offset"`
}

type OffsetConfig struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// OutputsConfig toggles the aggregate tables.
type OutputsConfig struct {
	ResultsCSV   bool `yaml:"results_csv"`
	DelegatesCSV bool `yaml:"delegates_csv"`
	JSON         bool `yaml:"json"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Input:     "delegates.csv",
		Delimiter: ",",
		OutputDir: ".",
		Message:   core.DefaultMessage,

		QR: QRConfig{
			BoxSize:    render.DefaultBoxSize,
			QuietZone:  true,
			Level:      "low",
			Version:    0,
			Resolution: render.DefaultResolution,
		},

		Card: CardConfig{
			Enabled:  false,
			Template: "id_card_template.png",
			Offset:   OffsetConfig{X: 200, Y: 500},
		},

		Outputs: OutputsConfig{
			ResultsCSV:   true,
			DelegatesCSV: true,
			JSON:         true,
		},

		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("QRBADGE_INPUT"); v != "" {
		c.Input = v
	}
	if v := os.Getenv("QRBADGE_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	// A template given through the environment implies card generation.
	if v := os.Getenv("QRBADGE_TEMPLATE"); v != "" {
		c.Card.Template = v
		c.Card.Enabled = true
	}
	if v := os.Getenv("QRBADGE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// ValidLogLevels lists the accepted log.level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidLogFormats lists the accepted log.format values.
var ValidLogFormats = []string{"json", "console"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Input) == "" {
		errs = append(errs, errors.New("input is required"))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if _, err := c.Comma(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.QROptions(); err != nil {
		errs = append(errs, err)
	}
	if c.Card.Enabled && strings.TrimSpace(c.Card.Template) == "" {
		errs = append(errs, errors.New("card.template is required when cards are enabled"))
	}
	if c.Card.Offset.X < 0 || c.Card.Offset.Y < 0 {
		errs = append(errs, fmt.Errorf("card.offset must be non-negative (got %d,%d)", c.Card.Offset.X, c.Card.Offset.Y))
	}
	for committee, tmpl := range c.Card.CommitteeTemplates {
		if strings.TrimSpace(committee) == "" || strings.TrimSpace(tmpl) == "" {
			errs = append(errs, fmt.Errorf("card.committee_templates: empty entry %q: %q", committee, tmpl))
		}
	}
	if !contains(ValidLogLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("invalid log.level: %s (valid: %v)", c.Log.Level, ValidLogLevels))
	}
	if !contains(ValidLogFormats, strings.ToLower(c.Log.Format)) {
		errs = append(errs, fmt.Errorf("invalid log.format: %s (valid: %v)", c.Log.Format, ValidLogFormats))
	}
	return errors.Join(errs...)
}

// Comma returns the input field delimiter.
func (c *Config) Comma() (rune, error) {
	return table.ParseDelimiter(c.Delimiter)
}

// QROptions converts the qr section into renderer options.
func (c *Config) QROptions() (render.QROptions, error) {
	level, err := render.ParseLevel(c.QR.Level)
	if err != nil {
		return render.QROptions{}, err
	}
	opts := render.QROptions{
		Level:      level,
		Version:    c.QR.Version,
		BoxSize:    c.QR.BoxSize,
		QuietZone:  c.QR.QuietZone,
		Resolution: c.QR.Resolution,
	}
	if err := opts.Validate(); err != nil {
		return render.QROptions{}, err
	}
	return opts, nil
}

// CardsEnabled reports whether badges are composited for this run.
func (c *Config) CardsEnabled() bool {
	return c.Card.Enabled
}

// CardOffset is the top-left position of the QR on the template.
func (c *Config) CardOffset() image.Point {
	return image.Pt(c.Card.Offset.X, c.Card.Offset.Y)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
