package config

import (
	"encoding/json"
	"os"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	AllowAutoCreateNamespaces bool        `json:"allowAutoCreateNamespaces"`
	DefaultNamespaceName      string      `json:"defaultNamespaceName"`
	NamespaceNameRegex        string      `json:"namespaceNameRegex"`
	LogDefaults               LogDefaults `json:"logDefaults"`
	MaxNamespaces             int         `json:"maxNamespaces"`
	AllowedNamespaces         []string    `json:"allowedNamespaces"`
	// RedisAddr, when set, enables the distributed sequencer backed by a
	// shared Redis counter. Empty means local in-process sequencing.
	RedisAddr string `json:"redisAddr"`
}

// LogDefaults captures per-log baseline geometry and limits.
type LogDefaults struct {
	// ArraySize is the fixed partition capacity (and index-tree branching
	// factor) for big-array backed logs. Immutable per log once created.
	ArraySize uint64 `json:"arraySize"`
	// SectionSize is the notification page size.
	SectionSize uint64 `json:"sectionSize"`
	// PayloadMaxBytes bounds a single item's serialized state.
	PayloadMaxBytes int `json:"payloadMaxBytes"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		AllowAutoCreateNamespaces: true,
		DefaultNamespaceName:      "default",
		NamespaceNameRegex:        "[a-z0-9-_]{1,64}",
		LogDefaults: LogDefaults{
			ArraySize:       10000,
			SectionSize:     20,
			PayloadMaxBytes: 1 << 20,
		},
	}
}

// Load reads configuration from a JSON file. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
