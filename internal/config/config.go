package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/locshare/internal/logger"
	"gopkg.in/yaml.v3"
)

// Методы аутентификации создателей сессий.
const (
	AuthPassword = "password" // один общий пароль (bcrypt-хеш в конфиге)
	AuthHtpasswd = "htpasswd" // файл htpasswd: логин:bcrypt-хеш
	AuthDatabase = "database" // таблица users в Postgres
)

// loadEnv читает .env только вне production (в контейнере/prod конфиг только из env).
func loadEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		f, err := os.Open(dir + "/.env")
		if err == nil {
			loadEnvFrom(f)
			f.Close()
			return
		}
		idx := strings.LastIndex(strings.TrimSuffix(dir, "/"), "/")
		if idx <= 0 {
			return
		}
		dir = dir[:idx]
	}
}

func loadEnvFrom(f *os.File) {
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if len(val) >= 2 && (val[0] == '"' && val[len(val)-1] == '"' || val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}
		if key != "" && os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// RedisConfig — Redis (сессии, данные шар, PIN-индексы групп).
type RedisConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// AuthConfig — проверка пароля при создании сессии.
type AuthConfig struct {
	Method       string `yaml:"method"`
	PasswordHash string `yaml:"password_hash"`
	HtpasswdPath string `yaml:"htpasswd_path"`
}

// DatabaseConfig — Postgres для auth method "database".
type DatabaseConfig struct {
	URL            string `yaml:"database_url"`
	MaxConnections int    `yaml:"db_max_connections"`
}

// Config содержит настройки приложения. Значение неизменяемо после Load
// и передаётся в конструкторы явно, а не через глобальное состояние.
// Приоритет: переменные окружения > YAML-файл > значения по умолчанию.
type Config struct {
	// Сервер
	ServerAddr   string        `yaml:"server_addr"`
	ReadTimeout  time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`
	IdleTimeout  time.Duration `yaml:"-"`

	// Публичный URL фронтенда; ссылка просмотра = PublicURL + "?" + shareID.
	PublicURL string `yaml:"public_url"`

	// Ограничения сессий
	MaxDuration     int     `yaml:"max_duration"`      // максимум секунд на одну сессию
	MinInterval     float64 `yaml:"min_interval"`      // минимум секунд между отчётами
	MaxCachedPoints int     `yaml:"max_cached_points"` // точек на сессию (FIFO-вытеснение)

	// Политика публичных идентификаторов
	LinkStyle        string              `yaml:"link_style"`
	AllowLinkReq     bool                `yaml:"allow_link_req"`
	ReservedLinks    map[string][]string `yaml:"reserved_links"`    // id → логины, которым он зарезервирован
	ReserveWhitelist bool                `yaml:"reserve_whitelist"` // только зарезервированные id разрешены как кастомные

	// WebSocket (живой просмотр)
	MaxWSConnections int `yaml:"max_ws_connections"`
	WSWriteTimeout   int `yaml:"ws_write_timeout"`
	WSPongTimeout    int `yaml:"ws_pong_timeout"`

	// CORS
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`

	// Логирование
	LogLevel string `yaml:"log_level"`

	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"-"`
}

// DatabaseURL возвращает строку подключения к БД (для auth method "database").
func (c *Config) DatabaseURL() string { return c.Database.URL }

// DBMaxConnections возвращает максимальное число соединений в пуле.
func (c *Config) DBMaxConnections() int {
	if c.Database.MaxConnections <= 0 {
		return 10
	}
	return c.Database.MaxConnections
}

// yamlConfig — промежуточная структура для парсинга YAML (таймауты в секундах).
type yamlConfig struct {
	ServerAddr       string              `yaml:"server_addr"`
	ReadTimeout      int                 `yaml:"read_timeout"`
	WriteTimeout     int                 `yaml:"write_timeout"`
	IdleTimeout      int                 `yaml:"idle_timeout"`
	PublicURL        string              `yaml:"public_url"`
	MaxDuration      int                 `yaml:"max_duration"`
	MinInterval      float64             `yaml:"min_interval"`
	MaxCachedPoints  int                 `yaml:"max_cached_points"`
	LinkStyle        string              `yaml:"link_style"`
	AllowLinkReq     *bool               `yaml:"allow_link_req"`
	ReservedLinks    map[string][]string `yaml:"reserved_links"`
	ReserveWhitelist bool                `yaml:"reserve_whitelist"`
	MaxWSConnections int                 `yaml:"max_ws_connections"`
	WSWriteTimeout   int                 `yaml:"ws_write_timeout"`
	WSPongTimeout    int                 `yaml:"ws_pong_timeout"`
	CORSOrigins      string              `yaml:"cors_allowed_origins"`
	LogLevel         string              `yaml:"log_level"`
	Redis            RedisConfig         `yaml:"redis"`
	Auth             AuthConfig          `yaml:"auth"`
}

// Load загружает конфигурацию.
// Сначала подгружаются переменные из .env (если есть), затем YAML и env (env имеет приоритет).
func Load() *Config {
	loadEnv()
	// Значения по умолчанию
	yc := yamlConfig{
		ServerAddr:       ":8080",
		ReadTimeout:      15,
		WriteTimeout:     15,
		IdleTimeout:      60,
		PublicURL:        "https://example.com/",
		MaxDuration:      86400,
		MinInterval:      1,
		MaxCachedPoints:  3,
		LinkStyle:        "4+4-upper",
		MaxWSConnections: 10000,
		WSWriteTimeout:   10,
		WSPongTimeout:    60,
		CORSOrigins:      "*",
		LogLevel:         "info",
		Redis:            RedisConfig{URL: "redis://localhost:6379", Prefix: "locshare"},
		Auth: AuthConfig{
			Method: AuthPassword,
			// bcrypt-хеш пароля "password"; обязательно замените в развёртывании.
			PasswordHash: "$2y$10$4ZP1iY8A3dZygXoPgsXYV.S3gHzBbiT9nSfONjhWrvMxVPkcFq1Ka",
			HtpasswdPath: "/etc/locshare/users.htpasswd",
		},
	}
	allowLinkReq := true

	// Загрузка конфигурации приложения: CONFIG_PATH → config/api.yaml
	for _, path := range []string{os.Getenv("CONFIG_PATH"), "config/api.yaml"} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &yc); err != nil {
			logger.Errorf("config: ошибка парсинга %s: %v (используются значения по умолчанию)", path, err)
		} else {
			logger.Infof("config: загружен %s", path)
		}
		break
	}
	if yc.AllowLinkReq != nil {
		allowLinkReq = *yc.AllowLinkReq
	}

	cfg := &Config{
		ServerAddr:         envStr("SERVER_ADDR", yc.ServerAddr),
		ReadTimeout:        time.Duration(envInt("READ_TIMEOUT", yc.ReadTimeout)) * time.Second,
		WriteTimeout:       time.Duration(envInt("WRITE_TIMEOUT", yc.WriteTimeout)) * time.Second,
		IdleTimeout:        time.Duration(envInt("IDLE_TIMEOUT", yc.IdleTimeout)) * time.Second,
		PublicURL:          envStr("PUBLIC_URL", yc.PublicURL),
		MaxDuration:        envInt("MAX_DURATION", yc.MaxDuration),
		MinInterval:        envFloat("MIN_INTERVAL", yc.MinInterval),
		MaxCachedPoints:    envInt("MAX_CACHED_POINTS", yc.MaxCachedPoints),
		LinkStyle:          envStr("LINK_STYLE", yc.LinkStyle),
		AllowLinkReq:       envBool("ALLOW_LINK_REQ", allowLinkReq),
		ReservedLinks:      yc.ReservedLinks,
		ReserveWhitelist:   envBool("RESERVE_WHITELIST", yc.ReserveWhitelist),
		MaxWSConnections:   envInt("MAX_WS_CONNECTIONS", yc.MaxWSConnections),
		WSWriteTimeout:     envInt("WS_WRITE_TIMEOUT", yc.WSWriteTimeout),
		WSPongTimeout:      envInt("WS_PONG_TIMEOUT", yc.WSPongTimeout),
		CORSAllowedOrigins: envStr("CORS_ALLOWED_ORIGINS", yc.CORSOrigins),
		LogLevel:           envStr("LOG_LEVEL", yc.LogLevel),
		Redis: RedisConfig{
			URL:    envStr("REDIS_URL", yc.Redis.URL),
			Prefix: envStr("REDIS_PREFIX", yc.Redis.Prefix),
		},
		Auth: AuthConfig{
			Method:       envStr("AUTH_METHOD", yc.Auth.Method),
			PasswordHash: envStr("AUTH_PASSWORD_HASH", yc.Auth.PasswordHash),
			HtpasswdPath: envStr("AUTH_HTPASSWD_PATH", yc.Auth.HtpasswdPath),
		},
		Database: DatabaseConfig{
			URL:            envStr("DATABASE_URL", ""),
			MaxConnections: envInt("DB_MAX_CONNECTIONS", 10),
		},
	}

	if cfg.MinInterval < 1 {
		cfg.MinInterval = 1
	}
	if cfg.MaxCachedPoints < 1 {
		cfg.MaxCachedPoints = 1
	}

	if os.Getenv("APP_ENV") == "production" {
		if cfg.Auth.Method == AuthPassword && strings.HasSuffix(cfg.Auth.PasswordHash, "Fq1Ka") {
			logger.Errorf("config: в production задайте AUTH_PASSWORD_HASH (не используйте дефолтный пароль)")
			os.Exit(1)
		}
		if cfg.Auth.Method == AuthDatabase && cfg.Database.URL == "" {
			logger.Errorf("config: auth method database требует DATABASE_URL")
			os.Exit(1)
		}
	}

	return cfg
}

// envStr возвращает значение переменной окружения или fallback.
func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt возвращает числовое значение переменной окружения или fallback.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
