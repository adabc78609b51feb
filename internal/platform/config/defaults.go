package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:               "0.0.0.0",
			Port:             8090,
			WebSocketPath:    "/ws/voice",
			HandshakeTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "vesta-voice.log",
		},
		Web: WebConfig{
			StaticDir:    "./web",
			AllowOrigins: []string{"*"},
		},
		Assistant: AssistantConfig{
			Language:           "es-ES",
			SpeechRate:         0.9,
			SpeechPitch:        1.0,
			SpeechVolume:       1.0,
			RecognitionTimeout: 10 * time.Second,
			ProcessingTimeout:  15 * time.Second,
			ErrorDisplayDelay:  3 * time.Second,
			FollowUpDelay:      time.Second,
			MaxSpokenErrors:    2,
		},
		Classifier: ClassifierConfig{
			APIBaseURL: "http://localhost:8080/api",
			Timeout:    20 * time.Second,
		},
		Auth: AuthConfig{
			TokenSources: []string{"session", "local", "meta", "global"},
		},
		Store: StoreConfig{
			Driver:    "sqlite",
			TTL:       30 * 24 * time.Hour,
			Namespace: "vesta",
			SQLite: SQLiteConfig{
				DSN: "data/vesta-voice.db",
			},
		},
		Synthesis: SynthesisConfig{
			Mode: "browser",
		},
	}
}
