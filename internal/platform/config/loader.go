package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = ".config.yaml"

// Loader reads defaults, then the YAML file, then VESTA_* environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
	checker   *validator.Validate
}

// NewLoader creates a loader that reads .config.yaml from the working directory.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      DefaultPath,
		checker:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file location.
func (l *Loader) WithPath(path string) *Loader {
	if strings.TrimSpace(path) != "" {
		l.path = path
	}
	return l
}

// Path reports the file the loader reads.
func (l *Loader) Path() string {
	return l.path
}

// Load 加载配置：默认值 -> 配置文件 -> 环境变量
func (l *Loader) Load() (*Config, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("加载 .env 失败: %w", err)
		}
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(l.path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败: %w", l.path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// 没有配置文件时使用默认值
	default:
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", l.path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := l.validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := l.checker.Struct(cfg); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if cfg.Store.Driver == "redis" && cfg.Store.Redis.Addr == "" {
		return errors.New("配置校验失败: store.redis.addr required for redis driver")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("VESTA_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VESTA_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("VESTA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VESTA_API_BASE_URL"); v != "" {
		cfg.Classifier.APIBaseURL = v
	}
	if v := os.Getenv("VESTA_API_TOKEN"); v != "" {
		cfg.Auth.GlobalToken = v
	}
	if v := os.Getenv("VESTA_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("VESTA_REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("VESTA_SYNTHESIS_MODE"); v != "" {
		cfg.Synthesis.Mode = v
	}
	return nil
}
