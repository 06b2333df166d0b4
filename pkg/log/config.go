package log

import "fmt"

// Config declares logger construction in a form suitable for loading from
// configuration files or environment variables.
type Config struct {
	// Level is the minimum level name: debug, info, warn, error, fatal.
	Level string `json:"level"`
	// Format selects the formatter: "text" or "json".
	Format string `json:"format"`
	// File, when set, adds a file output in addition to the console.
	File string `json:"file"`
}

// ApplyConfig builds a Logger from a declarative Config.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		return NewLogger(), nil
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var formatter Formatter
	switch cfg.Format {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}
	opts := []LoggerOption{WithLevel(level), WithFormatter(formatter)}
	if cfg.File != "" {
		fo, err := NewFileOutput(cfg.File)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithOutput(NewConsoleOutput()), WithOutput(fo))
	}
	return NewLogger(opts...), nil
}
