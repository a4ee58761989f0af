package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override. A double underscore nests:
// CSVJSON_PARSER__OPTIONS__CHUNK_SIZE sets parser.options.chunk_size.
const EnvPrefix = "CSVJSON_"

// Defaults are loaded before any other source.
var Defaults = map[string]any{
	"job":                 "csvjson",
	"source.kind":         "file",
	"parser.kind":         "csv",
	"output.format":       "json",
	"output.path":         "-",
	"metrics.backend":     "none",
	"metrics.flush_every": "60s",
	"logging.level":       "info",
	"logging.format":      "text",
}

// FlagKeys maps CLI flag names to config keys. Flags not listed here are
// not part of the pipeline config.
var FlagKeys = map[string]string{
	"job":             "job",
	"encoding":        "source.file.encoding",
	"delimiter":       "parser.options.delimiter",
	"preserve-types":  "parser.options.preserve_types",
	"trim-whitespace": "parser.options.trim_whitespace",
	"default-value":   "parser.options.default_value",
	"chunk-size":      "parser.options.chunk_size",
	"format":          "output.format",
	"out":             "output.path",
	"indent":          "output.indent",
	"storage":         "storage.kind",
	"dsn":             "storage.db.dsn",
	"table":           "storage.db.table",
	"metrics-backend": "metrics.backend",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
}

// Load builds a Pipeline from, lowest to highest precedence: Defaults, the
// YAML or JSON file at path (skipped when path is empty), CSVJSON_
// environment variables and the flags in flags that were explicitly set.
func Load(path string, flags *pflag.FlagSet) (Pipeline, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(Defaults, "."), nil); err != nil {
		return Pipeline{}, fmt.Errorf("load defaults: %w", err)
	}

	// 2. Config file. The YAML parser also reads JSON.
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Pipeline{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Pipeline{}, fmt.Errorf("load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return Pipeline{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var p Pipeline
	if err := k.Unmarshal("", &p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config: %w", err)
	}
	if p.Metrics.FlushEvery == 0 {
		p.Metrics.FlushEvery = 60 * time.Second
	}
	return p, nil
}

// envKey turns CSVJSON_OUTPUT__FORMAT into output.format.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
