package assessment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
)

// Config carries the engine's tunable constants. Defaults match the
// documented policy; an optional YAML file can override individual values.
type Config struct {
	// PassThreshold is the composite percentage required to pass.
	PassThreshold int `yaml:"pass_threshold"`
	// MaxAttempts is the hard ceiling on submissions per (user, module).
	MaxAttempts int `yaml:"max_attempts"`
	// WeakAreaThreshold marks a category as weak when its score is below it.
	WeakAreaThreshold int `yaml:"weak_area_threshold"`
	// ContextCharBudget bounds the assembled retrieval context.
	ContextCharBudget int `yaml:"context_char_budget"`
	// TopKPerQuery is the per-query nearest-neighbor fetch size.
	TopKPerQuery int `yaml:"top_k_per_query"`
	// MaxGenerateAttempts bounds the generate-critique-retry loop.
	MaxGenerateAttempts int `yaml:"max_generate_attempts"`
	// FanOutLimit bounds concurrent retrieval sub-queries and gradings.
	FanOutLimit int `yaml:"fan_out_limit"`
}

func DefaultConfig() Config {
	return Config{
		PassThreshold:       70,
		MaxAttempts:         3,
		WeakAreaThreshold:   60,
		ContextCharBudget:   8000,
		TopKPerQuery:        8,
		MaxGenerateAttempts: 2,
		FanOutLimit:         4,
	}
}

// LoadConfig overlays the YAML file at path (if any) onto the defaults.
func LoadConfig(path string, log *logger.Logger) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read assessment config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse assessment config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	if log != nil {
		log.Info("assessment config loaded", "path", path,
			"pass_threshold", cfg.PassThreshold,
			"max_attempts", cfg.MaxAttempts,
		)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.PassThreshold < 1 || c.PassThreshold > 100 {
		return fmt.Errorf("pass_threshold must be in [1,100], got %d", c.PassThreshold)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.MaxGenerateAttempts < 1 {
		return fmt.Errorf("max_generate_attempts must be >= 1, got %d", c.MaxGenerateAttempts)
	}
	if c.FanOutLimit < 1 {
		return fmt.Errorf("fan_out_limit must be >= 1, got %d", c.FanOutLimit)
	}
	return nil
}
