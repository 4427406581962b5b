package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name        string
	Env         string
	ClientURL   string   `mapstructure:"clientUrl"`
	CORSOrigins []string `mapstructure:"corsOrigins"`
	HTTP        HTTP
	Admin       AdminHTTP
}

func (a App) IsProduction() bool { return strings.EqualFold(a.Env, "production") || strings.EqualFold(a.Env, "prod") }

type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type JWT struct {
	AccessSecret         string `mapstructure:"accessSecret"`
	RefreshSecret        string `mapstructure:"refreshSecret"`
	Issuer               string
	AccessTokenTTLMin    int `mapstructure:"accessTokenTTLMin"`
	RefreshTokenTTLHours int `mapstructure:"refreshTokenTTLHours"`
}

func (j JWT) AccessTTL() time.Duration  { return time.Duration(j.AccessTokenTTLMin) * time.Minute }
func (j JWT) RefreshTTL() time.Duration { return time.Duration(j.RefreshTokenTTLHours) * time.Hour }

type Auth struct {
	AllowRegistration   bool   `mapstructure:"allowRegistration"`
	BootstrapToken      string `mapstructure:"bootstrapToken"`
	ResetTokenTTLMin    int    `mapstructure:"resetTokenTTLMin"`
	VerifyTokenTTLHours int    `mapstructure:"verifyTokenTTLHours"`
	CookieDomain        string `mapstructure:"cookieDomain"`
	// 每 IP 对 /auth/* 的限速
	RatePerSec float64 `mapstructure:"ratePerSec"`
	RateBurst  int     `mapstructure:"rateBurst"`
}

type Content struct {
	HonorSchedule bool `mapstructure:"honorSchedule"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTLSec   int    `mapstructure:"ttlSec"`
}

type RabbitMQ struct {
	URL       string `mapstructure:"url"`
	MailQueue string `mapstructure:"mailQueue"`
}

type Mail struct {
	From string
}

type Trace struct {
	Enabled bool
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Config struct {
	App      App
	Log      Log
	JWT      JWT
	Auth     Auth
	Content  Content
	DB       DB
	Redis    Redis    `mapstructure:"redis"`
	RabbitMQ RabbitMQ `mapstructure:"rabbitmq"`
	Mail     Mail
	Trace    Trace
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "POSTO Admin Platform")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.clientUrl", "http://localhost:5173")
	v.SetDefault("app.corsOrigins", []string{"http://localhost:5173"})
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readTimeoutSec", 15)
	v.SetDefault("app.http.writeTimeoutSec", 15)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.admin.host", "0.0.0.0")
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("log.level", "info")
	v.SetDefault("jwt.issuer", "posto-admin")
	v.SetDefault("jwt.accessTokenTTLMin", 15)
	v.SetDefault("jwt.refreshTokenTTLHours", 7*24)
	v.SetDefault("auth.allowRegistration", true)
	v.SetDefault("auth.resetTokenTTLMin", 60)
	v.SetDefault("auth.verifyTokenTTLHours", 48)
	v.SetDefault("auth.ratePerSec", 1)
	v.SetDefault("auth.rateBurst", 20)
	v.SetDefault("content.honorSchedule", true)
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "posto.db")
	v.SetDefault("db.maxOpenConns", 20)
	v.SetDefault("db.maxIdleConns", 10)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.autoMigrate", true)
	v.SetDefault("redis.ttlSec", 300)
	v.SetDefault("rabbitmq.mailQueue", "mail.outbound")
	v.SetDefault("mail.from", "POSTO <no-reply@posto.local>")

	// 以下 key 默认零值，声明出来才能被 APP_ 环境变量覆盖
	for _, k := range []string{
		"jwt.accessSecret", "jwt.refreshSecret", "auth.bootstrapToken", "auth.cookieDomain",
		"db.username", "db.password", "db.logLevel",
		"redis.addr", "redis.password", "rabbitmq.url",
	} {
		v.SetDefault(k, "")
	}
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.json", false)
	v.SetDefault("trace.enabled", false)
}

// Load 读取 yaml（可缺省）并叠加 APP_ 前缀环境变量，如 APP_JWT_ACCESSSECRET
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config: %w", err)
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
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("config: jwt.accessSecret and jwt.refreshSecret are required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("config: jwt.accessSecret and jwt.refreshSecret must differ")
	}
	return nil
}
