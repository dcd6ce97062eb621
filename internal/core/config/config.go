// Package config 读取 YAML 配置，APP_ 前缀环境变量覆盖（APP_SESSION_DRIVER → session.driver）。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultPath = "./configs/config.local.yaml"

type HTTP struct {
	Host              string   `mapstructure:"host"`
	Port              int      `mapstructure:"port"`
	ReadTimeoutSec    int      `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec   int      `mapstructure:"write_timeout_sec"`
	IdleTimeoutSec    int      `mapstructure:"idle_timeout_sec"`
	RequestTimeoutSec int      `mapstructure:"request_timeout_sec"`
	CORSOrigins       []string `mapstructure:"cors_origins"`
	RPS               float64  `mapstructure:"rps"`
	Burst             int      `mapstructure:"burst"`
	LoginRPS          float64  `mapstructure:"login_rps"`
	LoginBurst        int      `mapstructure:"login_burst"`
	MaxConcurrent     int64    `mapstructure:"max_concurrent"`
	MaxBodyBytes      int64    `mapstructure:"max_body_bytes"`
}

type App struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	HTTP HTTP   `mapstructure:"http"`
}

type Rotate struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	JSON   bool   `mapstructure:"json"`
	Rotate Rotate `mapstructure:"rotate"`
}

// JWT 会话 cookie 的签名参数
type JWT struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type Session struct {
	CookieName        string `mapstructure:"cookie_name"`
	CookieDomain      string `mapstructure:"cookie_domain"`
	Secure            bool   `mapstructure:"secure"`
	TTLMin            int    `mapstructure:"ttl_min"`
	Driver            string `mapstructure:"driver"` // memory | redis | gorm
	RestoreTimeoutSec int    `mapstructure:"restore_timeout_sec"`
	IdleTTLMin        int    `mapstructure:"idle_ttl_min"`
	SweepIntervalSec  int    `mapstructure:"sweep_interval_sec"`
}

type Backend struct {
	BaseURL            string `mapstructure:"base_url"`
	TimeoutSec         int    `mapstructure:"timeout_sec"`
	RetryMax           int    `mapstructure:"retry_max"`
	ProfileCacheTTLSec int    `mapstructure:"profile_cache_ttl_sec"` // 0 关闭 redis 缓存
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string `mapstructure:"driver"`
	DSN                string `mapstructure:"dsn"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int    `mapstructure:"conn_max_lifetime_min"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
	LogLevel           string `mapstructure:"log_level"`
}

type Config struct {
	App     App     `mapstructure:"app"`
	Log     Log     `mapstructure:"log"`
	JWT     JWT     `mapstructure:"jwt"`
	Session Session `mapstructure:"session"`
	Backend Backend `mapstructure:"backend"`
	Redis   Redis   `mapstructure:"redis"`
	DB      DB      `mapstructure:"db"`
}

func (s Session) TTL() time.Duration { return time.Duration(s.TTLMin) * time.Minute }
func (s Session) RestoreTimeout() time.Duration {
	return time.Duration(s.RestoreTimeoutSec) * time.Second
}
func (s Session) IdleTTL() time.Duration { return time.Duration(s.IdleTTLMin) * time.Minute }
func (s Session) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalSec) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "myduka-web")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.read_timeout_sec", 10)
	v.SetDefault("app.http.write_timeout_sec", 15)
	v.SetDefault("app.http.idle_timeout_sec", 60)
	v.SetDefault("app.http.request_timeout_sec", 10)
	v.SetDefault("app.http.cors_origins", []string{})
	v.SetDefault("app.http.rps", 200)
	v.SetDefault("app.http.burst", 400)
	v.SetDefault("app.http.login_rps", 1)
	v.SetDefault("app.http.login_burst", 5)
	v.SetDefault("app.http.max_concurrent", 300)
	v.SetDefault("app.http.max_body_bytes", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.rotate.enable", false)
	v.SetDefault("log.rotate.filename", "logs/web.log")
	v.SetDefault("log.rotate.max_size_mb", 100)
	v.SetDefault("log.rotate.max_backups", 7)
	v.SetDefault("log.rotate.max_age_days", 14)
	v.SetDefault("log.rotate.compress", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "myduka-web")

	v.SetDefault("session.cookie_name", "myduka_sid")
	v.SetDefault("session.cookie_domain", "")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.ttl_min", 7*24*60)
	v.SetDefault("session.driver", "memory")
	v.SetDefault("session.restore_timeout_sec", 5)
	v.SetDefault("session.idle_ttl_min", 30)
	v.SetDefault("session.sweep_interval_sec", 60)

	v.SetDefault("backend.base_url", "http://127.0.0.1:5000")
	v.SetDefault("backend.timeout_sec", 5)
	v.SetDefault("backend.retry_max", 2)
	v.SetDefault("backend.profile_cache_ttl_sec", 60)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime_min", 30)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.log_level", "warn")
}

// Load path 为空时取 CONFIG_PATH，再退到 DefaultPath；文件不存在时只用默认值和环境变量
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = DefaultPath
		}
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret is required")
	}
	switch c.Session.Driver {
	case "memory", "redis", "gorm":
	default:
		return fmt.Errorf("config: unknown session.driver %q", c.Session.Driver)
	}
	if c.Backend.BaseURL == "" {
		return errors.New("config: backend.base_url is required")
	}
	return nil
}

// NeedsRedis redis token 存储或 profile 缓存任一开启
func (c *Config) NeedsRedis() bool {
	return c.Session.Driver == "redis" || c.Backend.ProfileCacheTTLSec > 0
}
