// Package config предоставляет структуры и функции для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилищ и режимы доставки писем.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"

	NotifierSMTP  = "smtp"
	NotifierQueue = "queue"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string          `yaml:"env" env:"ENV" env-default:"local"`
	StorageDriver           string          `yaml:"storage_driver" env-default:"postgres"`
	TokenStore              string          `yaml:"token_store" env-default:"postgres"`
	StorageConnectionString string          `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string          `yaml:"migrations_path" env-default:"./migrations"`
	GRPCHealthAddress       string          `yaml:"grpc_health_address"`
	Notifier                string          `yaml:"notifier" env-default:"smtp"`
	HTTPServer              HTTPServer      `yaml:"http_server"`
	Tokens                  Tokens          `yaml:"tokens"`
	Password                Password        `yaml:"password"`
	RedisConnection         RedisConnection `yaml:"redis_connection"`
	RabbitMQ                RabbitMQ        `yaml:"rabbitmq"`
	SMTP                    SMTP            `yaml:"smtp"`
	Recovery                Recovery        `yaml:"recovery"`
	RateLimit               RateLimit       `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Tokens настройки доменов подписи токенов сессии и восстановления
type Tokens struct {
	SessionSecret string        `yaml:"session_secret" env:"SESSION_SECRET"`
	ResetSecret   string        `yaml:"reset_secret" env:"RESET_SECRET"`
	ResetTTL      time.Duration `yaml:"reset_ttl" env-default:"1h"`
	Issuer        string        `yaml:"issuer" env-default:"gig-messenger"`
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"10m"`
}

// Password настройки хэширования паролей
type Password struct {
	BcryptCost int `yaml:"bcrypt_cost" env-default:"8"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// RabbitMQ настройки подключения к брокеру для очереди писем
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// SMTP настройки почтового сервера
type SMTP struct {
	Host string `yaml:"host"`
	Port string `yaml:"port" env-default:"587"`
	User string `yaml:"user"`
	Pass string `yaml:"pass" env:"SMTP_PASSWORD"`
	From string `yaml:"from"`
}

// Recovery настройки письма восстановления пароля
type Recovery struct {
	LinkBaseURL string `yaml:"link_base_url" env-default:"http://localhost:3000/reset-password"`
	Subject     string `yaml:"subject" env-default:"Password recovery"`
}

// RateLimit настройки ограничения частоты запросов на вход и восстановление
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"1"`
	Burst int     `yaml:"burst" env-default:"5"`
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH, завершает процесс при ошибке
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла, дополняет его переменными окружения и проверяет.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.Tokens.SessionSecret == "" {
		return errors.New("tokens.session_secret is required")
	}
	if c.Tokens.ResetSecret == "" {
		return errors.New("tokens.reset_secret is required")
	}
	if c.Tokens.SessionSecret == c.Tokens.ResetSecret {
		return errors.New("session and reset secrets must differ")
	}
	if c.Tokens.ResetTTL <= 0 {
		return errors.New("tokens.reset_ttl must be positive")
	}
	switch c.StorageDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown storage_driver %q", c.StorageDriver)
	}
	switch c.TokenStore {
	case DriverPostgres, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown token_store %q", c.TokenStore)
	}
	if c.TokenStore == DriverPostgres && c.StorageDriver != DriverPostgres {
		return errors.New("token_store postgres requires storage_driver postgres")
	}
	if c.StorageDriver == DriverPostgres && c.StorageConnectionString == "" {
		return errors.New("storage_connection_string is required for postgres")
	}
	switch c.Notifier {
	case NotifierSMTP, NotifierQueue:
	default:
		return fmt.Errorf("unknown notifier %q", c.Notifier)
	}
	if c.Notifier == NotifierQueue && c.RabbitMQ.URL == "" {
		return errors.New("rabbitmq.url is required for queue notifier")
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageDriver: %s\n"+
			"TokenStore: %s\n"+
			"StorageConnectionString: %s\n"+
			"Notifier: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Tokens:\n"+
			"  SessionSecret: %s\n"+
			"  ResetSecret: %s\n"+
			"  ResetTTL: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  Password: %s\n"+
			"SMTP:\n"+
			"  Host: %s\n"+
			"  User: %s\n"+
			"  Pass: %s\n",
		c.Env,
		c.StorageDriver,
		c.TokenStore,
		mask(c.StorageConnectionString),
		c.Notifier,
		c.HTTPServer.AddressHTTP,
		c.HTTPServer.TimeoutHTTP,
		c.HTTPServer.IdleTimeout,
		mask(c.Tokens.SessionSecret),
		mask(c.Tokens.ResetSecret),
		c.Tokens.ResetTTL,
		c.RedisConnection.AddressRedis,
		mask(c.RedisConnection.Password),
		c.SMTP.Host,
		c.SMTP.User,
		mask(c.SMTP.Pass),
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "******"
}
