package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/rr-zoned/internal/dns/domain"
)

// envPrefix is stripped from environment keys; "__" in the remainder
// separates nesting levels, so DNS_SERVER__LISTEN_PORT sets server.listen_port.
const (
	envPrefix     = "DNS_"
	envConfigFile = "DNS_CONFIG_FILE"
)

// AppConfig holds process configuration.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log      LoggingConfig  `koanf:"log"`
	Store    StoreConfig    `koanf:"store"`
	Admin    AdminConfig    `koanf:"admin"`
	Server   ServerConfig   `koanf:"server"`
	QueryLog QueryLogConfig `koanf:"querylog"`
}

type LoggingConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// StoreConfig locates the embedded databases.
type StoreConfig struct {
	Dir string `koanf:"dir" validate:"required"`
	// MatchCacheSize bounds the qname to zone lookup cache. 0 disables it.
	MatchCacheSize int `koanf:"match_cache_size" validate:"gte=0"`
}

// AdminConfig configures the HTTP administration API. An empty Addr disables it.
type AdminConfig struct {
	Addr string `koanf:"addr" validate:"omitempty,host_port"`
}

// ServerConfig seeds the persisted DNS settings the first time the store is
// created. StopTimeout bounds how long a listener stop may take.
type ServerConfig struct {
	ListenAddr  string        `koanf:"listen_addr" validate:"required,ip"`
	ListenPort  int           `koanf:"listen_port" validate:"gte=0,lte=65535"`
	Upstream    string        `koanf:"upstream" validate:"omitempty,host_port"`
	DefaultTTL  uint32        `koanf:"default_ttl"`
	StopTimeout time.Duration `koanf:"stop_timeout" validate:"gt=0"`
}

// QueryLogConfig controls retention of the query log. Retain 0 keeps everything.
type QueryLogConfig struct {
	Retain int `koanf:"retain" validate:"gte=0"`
}

// Settings converts the seed values into domain settings.
func (s ServerConfig) Settings() domain.Settings {
	return domain.Settings{
		ListenAddr: s.ListenAddr,
		ListenPort: s.ListenPort,
		Upstream:   s.Upstream,
		DefaultTTL: s.DefaultTTL,
	}
}

// DEFAULT_APP_CONFIG mirrors the defaults of the persisted settings so a fresh
// install listens on 0.0.0.0:5353 with no upstream.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	Store: StoreConfig{
		Dir:            "/var/lib/rr-zoned",
		MatchCacheSize: 4096,
	},
	Admin: AdminConfig{Addr: "127.0.0.1:8000"},
	Server: ServerConfig{
		ListenAddr:  "0.0.0.0",
		ListenPort:  5353,
		DefaultTTL:  300,
		StopTimeout: 2 * time.Second,
	},
	QueryLog: QueryLogConfig{Retain: 10000},
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader loads the YAML file named by DNS_CONFIG_FILE, if any.
var fileLoader = func(k *koanf.Koanf) error {
	path := strings.TrimSpace(os.Getenv(envConfigFile))
	if path == "" {
		return nil
	}
	return k.Load(file.Provider(path), yaml.Parser())
}

// envLoader loads DNS_ prefixed environment variables. It can be replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			if key == envConfigFile {
				return "", nil
			}
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			return strings.ReplaceAll(key, "__", "."), strings.TrimSpace(value)
		},
	}), nil)
}

// registerValidation adds the custom tags used by AppConfig and domain types.
var registerValidation = func(v *validator.Validate) error {
	domain.RegisterValidations(v)
	return nil
}

// Load merges defaults, the optional config file and the environment, then
// validates the result.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	if err := fileLoader(k); err != nil {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &cfg, nil
}
