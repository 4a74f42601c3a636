package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "SHOPQA_"

// LoadWithFile layers a static config file under the environment. An empty
// path behaves like Load.
func LoadWithFile(serviceName, path string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}
	if strings.TrimSpace(path) == "" {
		return Load(serviceName, lookup)
	}
	fileLookup, err := FileLookup(path)
	if err != nil {
		return Config{}, err
	}
	return Load(serviceName, Chain(lookup, fileLookup))
}

// FileLookup reads a YAML, TOML or JSON file and resolves environment-style
// keys against it: SHOPQA_DATABASE_HOST reads database.host.
func FileLookup(path string) (LookupFunc, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	return func(key string) (string, bool) {
		fileKey, ok := fileKeyFor(key)
		if !ok || !v.IsSet(fileKey) {
			return "", false
		}
		return v.GetString(fileKey), true
	}, nil
}

// Chain returns the first lookup that knows a key.
func Chain(lookups ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			if value, ok := lookup(key); ok {
				return value, true
			}
		}
		return "", false
	}
}

func fileKeyFor(envKey string) (string, bool) {
	if !strings.HasPrefix(envKey, envPrefix) {
		return "", false
	}
	rest := strings.ToLower(strings.TrimPrefix(envKey, envPrefix))
	if rest == "" {
		return "", false
	}
	section, field, found := strings.Cut(rest, "_")
	if !found {
		return section, true
	}
	return section + "." + field, true
}
