package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, BACKEND_API_KEY, etc.)
//  2. YAML config file
//  3. Defaults
//
// configPath may be empty, in which case only environment variables and
// defaults apply. A configPath that points at a missing file is an
// error; an empty path is not.
//
// Environment variables map to config keys by splitting on the first
// underscore: the prefix is the section, the remainder is the field.
//
//	SERVER_PORT              -> server.port
//	BACKEND_API_KEY          -> backend.api_key
//	PIPELINE_WORKER_LIMIT    -> pipeline.worker_limit
//	EVENTS_NATS_URL          -> events.nats_url
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// configSections are the env prefixes this service recognizes.
// Unrelated environment variables must not leak into the config map.
var configSections = map[string]bool{
	"server":   true,
	"backend":  true,
	"pipeline": true,
	"events":   true,
	"logging":  true,
}

// transformEnv maps SECTION_FIELD_NAME to section.field_name. The split
// happens on the first underscore only, so field names keep theirs.
func transformEnv(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 || !configSections[parts[0]] {
		return ""
	}
	return parts[0] + "." + parts[1]
}
