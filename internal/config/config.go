package config

import (
	_ "embed"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// EnvPrefix marks environment variables that override configuration keys,
// e.g. DISTBATCH_ROUTING_APIKEY -> routing.apiKey.
const EnvPrefix = "DISTBATCH_"

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Env struct {
		Log Log `yaml:"log"`
	} `yaml:"env"`

	Routing Routing `yaml:"routing"`
	Input   Input   `yaml:"input"`
	Output  Output  `yaml:"output"`
	Status  Status  `yaml:"status"`
	Run     Run     `yaml:"run"`
}

type Log struct {
	Pretty bool   `yaml:"pretty"`
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Routing selects and configures the external routing service.
type Routing struct {
	// google (Directions API) or ors (OpenRouteService)
	Provider string `yaml:"provider" validate:"required,oneof=google ors"`
	APIKey   string `yaml:"apiKey" validate:"required"`

	// Overrides the provider's public endpoint.
	BaseURL string `yaml:"baseUrl" validate:"omitempty,url"`

	// ORS routing profile.
	Profile string `yaml:"profile"`

	// Google only. Empty disables the option.
	TrafficModel  string `yaml:"trafficModel" validate:"omitempty,oneof=best_guess pessimistic optimistic"`
	DepartureTime string `yaml:"departureTime"`
	Language      string `yaml:"language"`

	Units string `yaml:"units" validate:"omitempty,oneof=metric imperial"`

	// Zero means no client timeout.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type Input struct {
	// CSV/XLSX file path, SQLite file, or postgres:// URL.
	Path      string      `yaml:"path" validate:"required"`
	Delimiter string      `yaml:"delimiter" validate:"omitempty,len=1"`
	Sheet     string      `yaml:"sheet"`
	Table     string      `yaml:"table"`
	Labels    InputLabels `yaml:"labels"`
}

type InputLabels struct {
	ID       string `yaml:"id" validate:"required"`
	FromLong string `yaml:"fromLong" validate:"required"`
	FromLat  string `yaml:"fromLat" validate:"required"`
	ToLong   string `yaml:"toLong" validate:"required"`
	ToLat    string `yaml:"toLat" validate:"required"`
}

type Output struct {
	Dir    string       `yaml:"dir"`
	Labels OutputLabels `yaml:"labels"`
}

type OutputLabels struct {
	Distance      string `yaml:"distance" validate:"required"`
	Duration      string `yaml:"duration" validate:"required"`
	DurationValue string `yaml:"durationValue" validate:"required"`
	JSON          string `yaml:"json" validate:"required"`

	// Optional great-circle distance column; empty disables it.
	StraightLine string `yaml:"straightLine"`
}

// Status configures the per-row log file columns.
type Status struct {
	Label string `yaml:"label" validate:"required"`

	// Optional failure cause column; empty disables it.
	CauseLabel string `yaml:"causeLabel"`
}

type Run struct {
	Workers   int  `yaml:"workers" validate:"gte=1,lte=32"`
	AssumeYes bool `yaml:"assumeYes"`

	// Grace period for rows in flight after an interrupt.
	Drain time.Duration `yaml:"drain" validate:"gte=0"`
}

// Load builds the configuration from the embedded defaults, the YAML file at
// path and DISTBATCH_* environment variables, in that order. A missing file is
// an error only when required is set.
func Load(path string, required bool) (*Config, error) {
	return load(path, required, os.Environ)
}

func load(path string, required bool, environ func() []string) (*Config, error) {
	cfg := new(Config)
	k := koanf.New(".")

	if err := k.Load(embedded(defaultsYAML), yaml.Parser()); err != nil {
		return nil, errors.Wrap(err, "load default config")
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "read config %s", path)
			}
		} else if required {
			return nil, errors.Wrapf(err, "config file %s", path)
		}
	}

	existing := k.Raw()

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:      EnvPrefix,
		EnvironFunc: environ,
		TransformFunc: func(key, v string) (string, any) {
			return canonicalizeEnvKey(strings.TrimPrefix(key, EnvPrefix), existing), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables")
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "yaml",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	return cfg, nil
}

// Validate checks configuration values. Input column labels are not
// matched against the input header here.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// embedded serves an in-memory document to koanf.
type embedded []byte

func (e embedded) ReadBytes() ([]byte, error) { return e, nil }

func (e embedded) Read() (map[string]any, error) {
	return nil, errors.New("embedded provider does not support this method")
}

// canonicalizeEnvKey maps an env key (without prefix) onto the dotted path of
// the existing config tree, e.g. INPUT_LABELS_FROM_LAT -> input.labels.fromLat.
// Consecutive segments are joined when that matches a known key.
func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for i := 0; i < len(segments); i++ {
		if segments[i] == "" {
			continue
		}

		matched, next, used := "", map[string]any(nil), 0
		for j := len(segments); j > i; j-- {
			if m, n, ok := findExistingSegment(current, strings.Join(segments[i:j], "")); ok {
				matched, next, used = m, n, j-i
				break
			}
		}

		if used == 0 {
			canonical = append(canonical, segments[i])
			current = nil
			continue
		}

		canonical = append(canonical, matched)
		current = next
		i += used - 1
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
