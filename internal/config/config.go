package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingSecret 表示缺少 Discord token 或 provider 凭据。
	ErrCodeMissingSecret = "config_missing_secret"
)

const (
	// EnvConfigPath 指定 YAML 配置文件路径（--config 优先）。
	EnvConfigPath = "MOVIEBOT_CONFIG"

	DefaultProvider      = "tmdb"
	DefaultHandleTimeout = 30 * time.Second
	DefaultRetryMax      = 2
	DefaultRetryPause    = time.Second
	DefaultHTTPTimeout   = 15 * time.Second
)

// Mode 决定哪些凭据是必填的。
type Mode int

const (
	// ModeRun：连接 Discord，需要 token 与 provider 凭据。
	ModeRun Mode = iota
	// ModeAsk：本地执行一条指令，只需要 provider 凭据。
	ModeAsk
)

type Config struct {
	Provider string        `koanf:"provider"`
	Discord  DiscordConfig `koanf:"discord"`
	Bot      BotConfig     `koanf:"bot"`
	TMDB     TMDBConfig    `koanf:"tmdb"`
	HTTP     HTTPConfig    `koanf:"http"`
	Breaker  BreakerConfig `koanf:"breaker"`
	Logging  LoggingConfig `koanf:"logging"`
	Metrics  MetricsConfig `koanf:"metrics"`
}

type DiscordConfig struct {
	Token string `koanf:"token"`
}

type BotConfig struct {
	// HandleTimeout 是单条消息处理的上限（含 provider 重试）。
	HandleTimeout time.Duration `koanf:"handle_timeout"`
}

type TMDBConfig struct {
	APIKey              string `koanf:"api_key"`
	BearerToken         string `koanf:"bearer_token"`
	BaseURL             string `koanf:"base_url"`
	ImageBaseURL        string `koanf:"image_base_url"`
	PlaceholderImageURL string `koanf:"placeholder_image_url"`
	Language            string `koanf:"language"`
}

type HTTPConfig struct {
	ProxyURL string        `koanf:"proxy_url"`
	Timeout  time.Duration `koanf:"timeout"`
	// RetryMax 不含首次尝试：2 表示最多 3 次。
	RetryMax   int           `koanf:"retry_max"`
	RetryPause time.Duration `koanf:"retry_pause"`
}

type BreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
	OpenTimeout         time.Duration `koanf:"open_timeout"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type MetricsConfig struct {
	// Addr 为空时不启动 /healthz 与 /metrics。
	Addr string `koanf:"addr"`
}

// Options 描述一次加载的输入来源。
type Options struct {
	// ConfigPath 为空时读取 $MOVIEBOT_CONFIG；两者都为空则不读文件。
	ConfigPath string
	// EnvFile 为空时尝试当前目录的 .env（不存在不报错）；显式指定则必须存在。
	EnvFile string
	Mode    Mode
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	where := ""
	if e.Path != "" {
		where = fmt.Sprintf("（%s）", e.Path)
	}
	switch e.Code {
	case ErrCodeMissingSecret:
		return fmt.Sprintf("%s：缺少凭据%s：%v", e.Code, where, e.Err)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置无效%s：%v", e.Code, where, e.Err)
		}
		return fmt.Sprintf("%s：配置无效%s", e.Code, where)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Defaults 返回内置默认配置。
func Defaults() Config {
	return Config{
		Provider: DefaultProvider,
		Bot:      BotConfig{HandleTimeout: DefaultHandleTimeout},
		TMDB: TMDBConfig{
			BaseURL:             "https://api.themoviedb.org/3",
			ImageBaseURL:        "https://image.tmdb.org/t/p/original",
			PlaceholderImageURL: "https://placehold.co/500x750?text=No+Poster",
			Language:            "en-US",
		},
		HTTP: HTTPConfig{
			Timeout:    DefaultHTTPTimeout,
			RetryMax:   DefaultRetryMax,
			RetryPause: DefaultRetryPause,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load 按固定优先级合并配置：默认值 < YAML 文件 < 环境变量（含 .env）。
func Load(opts Options) (Config, error) {
	if err := loadDotEnv(opts.EnvFile); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: opts.EnvFile, Err: err}
	}

	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Err: err}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
		}
	}
	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	cfg.normalize()

	if err := cfg.Validate(opts.Mode); err != nil {
		var ce *Error
		if errors.As(err, &ce) && ce.Path == "" {
			ce.Path = path
		}
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if strings.TrimSpace(path) != "" {
		return godotenv.Load(path)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// envVars 是支持的环境变量到配置键的映射；未列出的变量一律忽略。
var envVars = map[string]string{
	"DISCORD_TOKEN":         "discord.token",
	"TMDB_API_KEY":          "tmdb.api_key",
	"TMDB_BEARER_TOKEN":     "tmdb.bearer_token",
	"TMDB_BASE_URL":         "tmdb.base_url",
	"TMDB_IMAGE_BASE_URL":   "tmdb.image_base_url",
	"TMDB_LANGUAGE":         "tmdb.language",
	"PLACEHOLDER_IMAGE_URL": "tmdb.placeholder_image_url",
	"PROVIDER":              "provider",
	"HTTP_PROXY_URL":        "http.proxy_url",
	"HTTP_RETRY_MAX":        "http.retry_max",
	"HTTP_RETRY_PAUSE":      "http.retry_pause",
	"HTTP_TIMEOUT":          "http.timeout",
	"HANDLE_TIMEOUT":        "bot.handle_timeout",
	"LOG_LEVEL":             "logging.level",
	"LOG_FORMAT":            "logging.format",
	"METRICS_ADDR":          "metrics.addr",
}

// envValue 映射环境变量；空值视为未设置，不覆盖文件与默认值。
func envValue(name, value string) (string, any) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return envVars[strings.ToUpper(name)], value
}

func (c *Config) normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Discord.Token = strings.TrimSpace(c.Discord.Token)
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BearerToken = strings.TrimSpace(c.TMDB.BearerToken)
	c.HTTP.ProxyURL = strings.TrimSpace(c.HTTP.ProxyURL)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Metrics.Addr = strings.TrimSpace(c.Metrics.Addr)
}

// Validate 检查字段合法性；mode 决定 Discord token 是否必填。
func (c Config) Validate(mode Mode) error {
	if c.Provider != DefaultProvider {
		return invalid("provider 只能是 tmdb，实际是 %q", c.Provider)
	}
	if c.TMDB.APIKey == "" && c.TMDB.BearerToken == "" {
		return &Error{Code: ErrCodeMissingSecret, Err: errors.New("需要 TMDB_API_KEY 或 TMDB_BEARER_TOKEN")}
	}
	if mode == ModeRun && c.Discord.Token == "" {
		return &Error{Code: ErrCodeMissingSecret, Err: errors.New("需要 DISCORD_TOKEN")}
	}

	for name, raw := range map[string]string{
		"tmdb.base_url":              c.TMDB.BaseURL,
		"tmdb.image_base_url":        c.TMDB.ImageBaseURL,
		"tmdb.placeholder_image_url": c.TMDB.PlaceholderImageURL,
	} {
		if err := checkHTTPURL(name, raw, false); err != nil {
			return err
		}
	}
	if err := checkHTTPURL("http.proxy_url", c.HTTP.ProxyURL, true); err != nil {
		return err
	}

	if c.HTTP.RetryMax < 0 || c.HTTP.RetryMax > 10 {
		return invalid("http.retry_max 必须在 [0, 10] 内，实际是 %d", c.HTTP.RetryMax)
	}
	if c.HTTP.RetryPause < 0 {
		return invalid("http.retry_pause 不能为负：%s", c.HTTP.RetryPause)
	}
	if c.HTTP.Timeout <= 0 {
		return invalid("http.timeout 必须为正：%s", c.HTTP.Timeout)
	}
	if c.Bot.HandleTimeout <= 0 {
		return invalid("bot.handle_timeout 必须为正：%s", c.Bot.HandleTimeout)
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		return invalid("breaker.consecutive_failures 必须大于 0")
	}
	if c.Breaker.OpenTimeout <= 0 {
		return invalid("breaker.open_timeout 必须为正：%s", c.Breaker.OpenTimeout)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return invalid("logging.format 只能是 json 或 console，实际是 %q", c.Logging.Format)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return &Error{Code: ErrCodeInvalid, Err: fmt.Errorf(format, args...)}
}

func checkHTTPURL(name, raw string, optional bool) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if optional {
			return nil
		}
		return invalid("%s 不能为空", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("%s 无效：%q", name, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" && !optional {
		return invalid("%s 必须是 http/https：%q", name, raw)
	}
	return nil
}
