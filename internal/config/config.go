package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath используется, если переменная CONFIG_PATH не задана
const DefaultPath = "config/config.yaml"

// Config определяет структуру конфигурации всего приложения целиком
type Config struct {
	HTTPServer `yaml:"http_server"`
	Catalog    `yaml:"catalog"`
	Storage    `yaml:"storage"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	Kafka      `yaml:"kafka"`
	Logger     `yaml:"logger"`
}

// HTTPServer содержит конфигурацию для HTTP-сервера
type HTTPServer struct {
	Port    string        `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// Catalog содержит настройки клиента удалённого каталога товаров
type Catalog struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Storage выбирает бэкенд для хранения корзины: memory, postgres или redis
type Storage struct {
	Driver  string `yaml:"driver"`
	CartKey string `yaml:"cart_key"`
}

// Postgres содержит конфигурацию для подключения к базе данных
type Postgres struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	DBName   string `yaml:"db_name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// Redis содержит адрес (host:port или redis://...) и номер базы
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Kafka содержит конфигурацию для подключения к кафке
// пустой список брокеров отключает и консьюмер команд, и публикацию событий
type Kafka struct {
	Brokers       []string `yaml:"brokers"`
	CommandsTopic string   `yaml:"commands_topic"`
	EventsTopic   string   `yaml:"events_topic"`
	GroupID       string   `yaml:"group_id"`
}

// Logger содержит конфигурацию для логгера
type Logger struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Enabled сообщает, настроена ли кафка
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Load читает и разбирает конфигурацию, подставляя значения по умолчанию
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if configPath == "" {
		return nil, fmt.Errorf("%s: config path is empty", op)
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read config file: %w", op, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal config: %w", op, err)
	}

	cfg.setDefaults()

	switch cfg.Storage.Driver {
	case "memory", "postgres", "redis":
	default:
		return nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Storage.Driver)
	}

	return &cfg, nil
}

// MustLoad загружает конфигурацию из файла по указанному пути
// в случае ошибки программа завершается с фатальной ошибкой
func MustLoad(configPath string) *Config {
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	return cfg
}

// PathFromEnv возвращает путь из CONFIG_PATH или DefaultPath
func PathFromEnv() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

func (c *Config) setDefaults() {
	if c.HTTPServer.Port == "" {
		c.HTTPServer.Port = ":8080"
	}
	if c.HTTPServer.Timeout == 0 {
		c.HTTPServer.Timeout = 10 * time.Second
	}
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = "https://fakestoreapi.com"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.CartKey == "" {
		c.Storage.CartKey = "cart"
	}
	if c.Kafka.CommandsTopic == "" {
		c.Kafka.CommandsTopic = "cart-commands"
	}
	if c.Kafka.EventsTopic == "" {
		c.Kafka.EventsTopic = "cart-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "mini-storefront"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "INFO"
	}
}
