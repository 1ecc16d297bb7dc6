// Package config loads lectern settings from lectern.yaml with a LECTERN_
// environment overlay.
package config

import (
	"os"
	"path/filepath"
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

	"github.com/jmcleod/lectern/content"
	"github.com/jmcleod/lectern/guard"
)

const (
	// FileName is the config file looked up in each search path.
	FileName  = "lectern.yaml"
	EnvPrefix = "LECTERN_"
)

// Storage drivers.
const (
	DriverBolt   = "bbolt"
	DriverMemory = "memory"
)

type Config struct {
	API struct {
		BaseURL   string        `koanf:"baseURL" validate:"required,url"`
		Timeout   time.Duration `koanf:"timeout" validate:"gte=0"`
		RateLimit float64       `koanf:"rateLimit" validate:"gte=0"`
		Burst     int           `koanf:"burst" validate:"gte=0"`
	} `koanf:"api"`

	Storage struct {
		Driver string `koanf:"driver" validate:"oneof=bbolt memory"`
		Path   string `koanf:"path"`
		// SealSecret, when set, encrypts every stored slot.
		SealSecret string `koanf:"sealSecret"`
	} `koanf:"storage"`

	Cache content.Staleness `koanf:"cache"`

	Guard guard.Config `koanf:"guard"`

	Serve struct {
		Port int `koanf:"port" validate:"gte=0,lte=65535"`
	} `koanf:"serve"`

	Log Log `koanf:"log"`
}

type Log struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Pretty bool   `koanf:"pretty"`
}

// DefaultDataPath is where the bbolt session file lives when storage.path
// is unset.
func DefaultDataPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "lectern", "session.db")
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := new(Config)
	cfg.API.BaseURL = "http://localhost:5000/api"
	cfg.API.Timeout = 15 * time.Second
	cfg.API.RateLimit = 10
	cfg.API.Burst = 20
	cfg.Storage.Driver = DriverBolt
	cfg.Storage.Path = DefaultDataPath()
	cfg.Cache = content.DefaultStaleness()
	cfg.Guard = guard.DefaultConfig()
	cfg.Serve.Port = 8088
	cfg.Log.Level = "info"
	return cfg
}

// SearchPaths returns the directories checked for lectern.yaml, in order.
func SearchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "lectern"))
	}
	return paths
}

// Load reads configuration. An explicit path must exist; otherwise the
// first lectern.yaml in SearchPaths is used, or none. Values not set by the
// file or environment keep their defaults.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Environ)
}

// LoadWithEnv is Load with an explicit environment source.
func LoadWithEnv(path string, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	configFile, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config %s failed", configFile)
		}
	}

	existing := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:      EnvPrefix,
		EnvironFunc: environ,
		TransformFunc: func(key, value string) (string, any) {
			return canonicalizeEnvKey(strings.TrimPrefix(key, EnvPrefix), existing), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config failed")
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultDataPath()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

func findConfigFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", errors.Wrapf(err, "config file %s", path)
		}
		return path, nil
	}
	for _, dir := range SearchPaths() {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

// canonicalizeEnvKey maps API_BASEURL to api.baseURL by matching each
// segment against keys already loaded from the file. Unknown segments are
// kept lowercase.
func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
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
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
