// Package config loads backend settings from the environment, with an
// optional YAML file layered underneath. Environment always wins, so a
// file can hold stable defaults while STORYWEAVE_* variables override
// per run.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL        string `yaml:"base_url" validate:"required,url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model" validate:"required"`
	Backend        string `yaml:"backend" validate:"required,oneof=auto openai ollama"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"required,min=1,max=3600"`
	Debug          bool   `yaml:"debug"`
	Limits         Limits `yaml:"limits" validate:"required"`
}

// Load builds the effective configuration: defaults, then the YAML file
// named by STORYWEAVE_CONFIG (if any), then environment variables. A
// .env file in the working directory is read first so local development
// can keep keys out of the shell profile.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:        "https://api.openai.com/v1",
		Model:          "gpt-4o-mini",
		Backend:        "auto",
		TimeoutSeconds: 60,
		Limits:         DefaultLimits(),
	}

	if path := os.Getenv("STORYWEAVE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STORYWEAVE_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("STORYWEAVE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("STORYWEAVE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("STORYWEAVE_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("STORYWEAVE_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = debug
		}
	}
}
