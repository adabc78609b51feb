package config

import (
	"time"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Web        WebConfig        `yaml:"web"`
	Assistant  AssistantConfig  `yaml:"assistant"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Auth       AuthConfig       `yaml:"auth"`
	Store      StoreConfig      `yaml:"store"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
}

type ServerConfig struct {
	IP               string        `yaml:"ip"`
	Port             int           `yaml:"port" validate:"min=1,max=65535"`
	WebSocketPath    string        `yaml:"websocket_path" validate:"required,startswith=/"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

type LogConfig struct {
	Level string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	StaticDir    string   `yaml:"static_dir"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// AssistantConfig 语音助手行为参数
type AssistantConfig struct {
	Language           string        `yaml:"language" validate:"required"`
	SpeechRate         float64       `yaml:"speech_rate" validate:"gt=0,lte=10"`
	SpeechPitch        float64       `yaml:"speech_pitch" validate:"gte=0,lte=2"`
	SpeechVolume       float64       `yaml:"speech_volume" validate:"gte=0,lte=1"`
	RecognitionTimeout time.Duration `yaml:"recognition_timeout" validate:"gt=0"`
	ProcessingTimeout  time.Duration `yaml:"processing_timeout" validate:"gt=0"`
	ErrorDisplayDelay  time.Duration `yaml:"error_display_delay" validate:"gte=0"`
	FollowUpDelay      time.Duration `yaml:"follow_up_delay" validate:"gte=0"`
	MaxSpokenErrors    int           `yaml:"max_spoken_errors" validate:"gte=0"`
	Routes             []RouteConfig `yaml:"routes" validate:"dive"`
	// Functions lists the page functions the classifier may invoke by name.
	Functions []string `yaml:"functions"`
}

type RouteConfig struct {
	Name         string   `yaml:"name" validate:"required"`
	Keywords     []string `yaml:"keywords" validate:"required,min=1"`
	URL          string   `yaml:"url" validate:"required"`
	Confirmation string   `yaml:"confirmation" validate:"required"`
}

type ClassifierConfig struct {
	APIBaseURL string        `yaml:"api_base_url" validate:"required,url"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
}

type AuthConfig struct {
	// TokenSources 令牌来源优先级，首个非空值生效
	TokenSources []string `yaml:"token_sources" validate:"dive,oneof=session local meta global"`
	GlobalToken  string   `yaml:"global_token"`
	// IssuerSecret 非空时启用 /api/auth/token 开发签发接口
	IssuerSecret string        `yaml:"issuer_secret"`
	IssuerTTL    time.Duration `yaml:"issuer_ttl"`
}

type StoreConfig struct {
	Driver    string        `yaml:"driver" validate:"omitempty,oneof=memory sqlite redis"`
	TTL       time.Duration `yaml:"ttl"`
	Namespace string        `yaml:"namespace"`
	SQLite    SQLiteConfig  `yaml:"sqlite"`
	Redis     RedisConfig   `yaml:"redis"`
}

type SQLiteConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type SynthesisConfig struct {
	Mode      string        `yaml:"mode" validate:"omitempty,oneof=browser edge"`
	Voice     string        `yaml:"voice"`
	CacheSize int           `yaml:"cache_size" validate:"gte=0"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}
