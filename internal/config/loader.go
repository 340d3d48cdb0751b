package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// listKeys are env keys whose value is a comma separated list.
var listKeys = map[string]bool{
	"classifier_labels": true,
	"cors_origins":      true,
	"metrics_buckets":   true,
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CONFIG_FILE is set
//  3. env (PORT, OPENAI_KEY, API_TOKEN, DATABASE_URL, ...)
//
// A .env file should already be loaded into the environment by the caller.
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %v", ErrLoadConfig, path, err)
		}
	}

	// Flat keys: OPENAI_BASE_URL -> openai_base_url. Empty values are
	// dropped so they don't blank out defaults.
	envProvider := env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		key = strings.ToLower(key)
		switch {
		case key == "metrics_buckets":
			return key, parseFloats(value)
		case listKeys[key]:
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	// Overridden lists replace the defaults instead of merging into them.
	for key := range listKeys {
		if !k.Exists(key) {
			continue
		}
		switch key {
		case "classifier_labels":
			cfg.Labels = nil
		case "cors_origins":
			cfg.CORSOrigins = nil
		case "metrics_buckets":
			cfg.MetricsBuckets = nil
		}
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("%w: port must not be empty", ErrInvalidConfig)
	}
	switch c.ClassifyContract {
	case ContractV1, ContractV2:
	default:
		return fmt.Errorf("%w: classify_contract must be %q or %q, got %q", ErrInvalidConfig, ContractV1, ContractV2, c.ClassifyContract)
	}
	if len(c.Labels) == 0 {
		return fmt.Errorf("%w: classifier_labels must not be empty", ErrInvalidConfig)
	}
	return nil
}

// parseFloats drops entries that are not numbers.
func parseFloats(s string) []float64 {
	var out []float64
	for _, p := range splitList(s) {
		if f, err := strconv.ParseFloat(p, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
