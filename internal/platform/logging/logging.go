package logging

import (
	"fmt"
	"strings"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

// New creates a Logger writing coloured text to stdout and JSON lines to
// Dir/Filename, rotated daily.
func New(cfg Config) (*Logger, error) {
	if strings.TrimSpace(cfg.Filename) == "" {
		cfg.Filename = "vesta-voice.log"
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		cfg.Dir = "data/logs"
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return logger, nil
}
