package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	DocPath    string // path to the .hcl graph document
	OutputPath string // export target; empty means print the preview SVG

	Scale     float64
	LogFormat string
	LogLevel  string
}

// NewConfig validates a raw configuration.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.DocPath == "" {
		return nil, errors.New("DocPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
