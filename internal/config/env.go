package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays LEDGER_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("LEDGER_ALLOW_AUTO_CREATE_NAMESPACES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowAutoCreateNamespaces = b
		}
	}
	if v := os.Getenv("LEDGER_DEFAULT_NAMESPACE_NAME"); v != "" {
		cfg.DefaultNamespaceName = v
	}
	if v := os.Getenv("LEDGER_NAMESPACE_NAME_REGEX"); v != "" {
		cfg.NamespaceNameRegex = v
	}
	if v := os.Getenv("LEDGER_LOG_DEFAULTS_ARRAY_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			cfg.LogDefaults.ArraySize = n
		}
	}
	if v := os.Getenv("LEDGER_LOG_DEFAULTS_SECTION_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			cfg.LogDefaults.SectionSize = n
		}
	}
	if v := os.Getenv("LEDGER_LOG_DEFAULTS_PAYLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LogDefaults.PayloadMaxBytes = n
		}
	}
	if v := os.Getenv("LEDGER_MAX_NAMESPACES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxNamespaces = n
		}
	}
	if v := os.Getenv("LEDGER_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("LEDGER_ALLOWED_NAMESPACES"); v != "" {
		parts := strings.Split(v, ",")
		cfg.AllowedNamespaces = nil
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.AllowedNamespaces = append(cfg.AllowedNamespaces, p)
			}
		}
	}
}
