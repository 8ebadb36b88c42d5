// Package config loads the qrctl configuration from YAML with defaults for
// every key.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration
type Config struct {
	Database struct {
		// Dir is the root of the local DICOM database
		Dir string `yaml:"dir"`
		// Parser selects the header parser used while indexing: suyashkumar or native
		Parser string `yaml:"parser"`
	} `yaml:"database"`

	Tools struct {
		// Mode is native (in-process encoders) or exec (dcmqi binaries)
		Mode string `yaml:"mode"`
		// Dir is searched before PATH for dcmqi binaries
		Dir  string `yaml:"dir"`
		Poll struct {
			Ticks    int           `yaml:"ticks"`
			Interval time.Duration `yaml:"interval"`
		} `yaml:"poll"`
	} `yaml:"tools"`

	Temp struct {
		Dir string `yaml:"dir"`
	} `yaml:"temp"`

	Application struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"application"`

	Series SeriesDefaults `yaml:"series"`

	Provenance struct {
		AutomaticTools []string `yaml:"automaticTools"`
	} `yaml:"provenance"`

	Statistics struct {
		VisibleOnly bool `yaml:"visibleOnly"`
	} `yaml:"statistics"`

	Logging struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
		File  struct {
			Path       string `yaml:"path"`
			MaxSizeMB  int    `yaml:"maxSizeMB"`
			MaxBackups int    `yaml:"maxBackups"`
			MaxAgeDays int    `yaml:"maxAgeDays"`
		} `yaml:"file"`
	} `yaml:"logging"`
}

// SeriesDefaults are the series attributes written on SEG and SR output
type SeriesDefaults struct {
	ContentCreatorName                  string `yaml:"contentCreatorName"`
	ClinicalTrialSeriesID               string `yaml:"clinicalTrialSeriesID"`
	ClinicalTrialTimePointID            string `yaml:"clinicalTrialTimePointID"`
	ClinicalTrialCoordinatingCenterName string `yaml:"clinicalTrialCoordinatingCenterName"`
	SkipEmpty                           bool   `yaml:"skipEmpty"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Database.Dir = "dicomdb"
	cfg.Database.Parser = "suyashkumar"

	cfg.Tools.Mode = "native"
	cfg.Tools.Poll.Ticks = 20
	cfg.Tools.Poll.Interval = time.Second

	cfg.Temp.Dir = os.TempDir()

	cfg.Application.Name = "qrctl"
	cfg.Application.Version = "1.0"

	cfg.Series.ContentCreatorName = "Reader1"
	cfg.Series.ClinicalTrialSeriesID = "Session1"
	cfg.Series.ClinicalTrialTimePointID = "1"
	cfg.Series.ClinicalTrialCoordinatingCenterName = "QIICR"

	cfg.Statistics.VisibleOnly = false

	cfg.Logging.Level = "INFO"
	cfg.Logging.File.MaxSizeMB = 10
	cfg.Logging.File.MaxBackups = 3
	cfg.Logging.File.MaxAgeDays = 28
	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Validate checks enumerated values
func (c *Config) Validate() error {
	switch c.Tools.Mode {
	case "native", "exec":
	default:
		return fmt.Errorf("tools.mode must be native or exec, got %q", c.Tools.Mode)
	}
	switch c.Database.Parser {
	case "suyashkumar", "native":
	default:
		return fmt.Errorf("database.parser must be suyashkumar or native, got %q", c.Database.Parser)
	}
	if c.Tools.Poll.Ticks <= 0 {
		return fmt.Errorf("tools.poll.ticks must be positive")
	}
	return nil
}
