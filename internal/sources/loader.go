package sources

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// sitesFile mirrors the top-level structure of the sites YAML file.
type sitesFile struct {
	Sites map[string]map[string]any `yaml:"sites"`
}

// Load reads, decodes and validates the sites file at path.
func Load(path string) (*Registry, error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("read sites file: %w", readErr)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML sites data.
func Parse(data []byte) (*Registry, error) {
	var file sitesFile
	if yamlErr := yaml.Unmarshal(data, &file); yamlErr != nil {
		return nil, fmt.Errorf("parse sites yaml: %w", yamlErr)
	}

	if len(file.Sites) == 0 {
		return nil, ErrNoSites
	}

	sites := make(map[string]SiteConfig, len(file.Sites))
	for name, raw := range file.Sites {
		cfg, decodeErr := decodeSite(raw)
		if decodeErr != nil {
			return nil, fmt.Errorf("site %q: %w", name, decodeErr)
		}

		_, delaySet := raw["delay"]
		cfg = cfg.withDefaults(name, delaySet)

		if validateErr := cfg.validate(); validateErr != nil {
			return nil, fmt.Errorf("site %q: %w", name, validateErr)
		}
		sites[name] = cfg
	}

	return newRegistry(sites), nil
}

func decodeSite(raw map[string]any) (SiteConfig, error) {
	var cfg SiteConfig
	decoder, decoderErr := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if decoderErr != nil {
		return SiteConfig{}, fmt.Errorf("build decoder: %w", decoderErr)
	}

	if decodeErr := decoder.Decode(raw); decodeErr != nil {
		return SiteConfig{}, fmt.Errorf("%w: %v", ErrInvalidSite, decodeErr)
	}
	return cfg, nil
}

// secondsToDurationHook decodes bare numbers into durations measured in
// seconds, so `delay: 1.5` means one and a half seconds. Strings still go
// through time.ParseDuration.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))

	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}
