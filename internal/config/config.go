// Package config - конфигурация corsserve.
//
// Использует Viper для:
// - Значений по умолчанию
// - Опционального YAML файла
// - Переменных окружения (включая .env через godotenv)
//
// Порядок приоритета (от высшего к низшему):
// 1. Позиционный аргумент порта
// 2. Environment variables
// 3. Config file
// 4. Default values
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix - префикс переменных окружения.
const EnvPrefix = "CORSSERVE"

// DefaultPort - порт по умолчанию, если аргумент не передан.
const DefaultPort = 8000

// ErrInvalidPort возвращается, когда порт не удалось разобрать.
var ErrInvalidPort = errors.New("invalid port")

// ============================================
// Main Configuration
// ============================================

// Config - главная структура конфигурации.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Static  StaticConfig  `mapstructure:"static"`
	Headers HeadersConfig `mapstructure:"headers"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Log     LogConfig     `mapstructure:"log"`
}

// AppConfig - конфигурация приложения.
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment" validate:"oneof=development test production"`
}

// IsProduction возвращает true если окружение production.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ServerConfig - конфигурация HTTP сервера.
//
// Host всегда loopback: сервер не должен быть доступен с других машин.
type ServerConfig struct {
	Host            string        `mapstructure:"host" validate:"required,loopback"`
	Port            int           `mapstructure:"port" validate:"min=0,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=0"` // 0 - без ограничения, большие файлы
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// Address возвращает полный адрес сервера.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StaticConfig - откуда раздаются файлы.
type StaticConfig struct {
	Root string `mapstructure:"root" validate:"required"`
}

// HeadersConfig - заголовки, добавляемые к каждому ответу.
type HeadersConfig struct {
	AllowOrigin  string `mapstructure:"allow_origin" validate:"required"`
	AllowMethods string `mapstructure:"allow_methods" validate:"required"`
	AllowHeaders string `mapstructure:"allow_headers" validate:"required"`
	CacheControl string `mapstructure:"cache_control" validate:"required"`
}

// AdminConfig - служебные endpoints (health, ready, metrics).
// Выключены по умолчанию, чтобы не перекрывать файлы.
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix" validate:"required,startswith=/"`
}

// TracingConfig - OpenTelemetry трассировка.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"min=0,max=1"`
}

// LogConfig - конфигурация логирования.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// ============================================
// Configuration Loading
// ============================================

// Load загружает конфигурацию из файла и переменных окружения.
//
// configPath - дополнительная директория для поиска файла
// configName - имя файла без расширения (например, "corsserve")
//
// Отсутствие файла не является ошибкой.
func Load(configPath, configName string) (*Config, error) {
	v := newViper()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home + "/.config/corsserve")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromEnv загружает конфигурацию только из переменных окружения.
func LoadFromEnv() (*Config, error) {
	return unmarshal(newViper())
}

// LoadDotEnv загружает переменные из .env файлов.
// Уже установленные переменные не перезаписываются, отсутствующий файл игнорируется.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return nil
}

func newViper() *viper.Viper {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults устанавливает значения по умолчанию.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "corsserve")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("static.root", ".")

	v.SetDefault("headers.allow_origin", "*")
	v.SetDefault("headers.allow_methods", "*")
	v.SetDefault("headers.allow_headers", "*")
	v.SetDefault("headers.cache_control", "no-store, no-cache, must-revalidate")

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.prefix", "/_corsserve")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "corsserve")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// ============================================
// Command Line
// ============================================

// Usage - строка использования команды.
const Usage = "usage: corsserve [port]"

// ParsePort разбирает позиционный аргумент порта.
func ParsePort(arg string) (int, error) {
	port, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrInvalidPort, arg, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%w %q: out of range", ErrInvalidPort, arg)
	}
	return port, nil
}

// ApplyArgs применяет позиционные аргументы: `[port]`.
// Лишние аргументы - ошибка.
func (c *Config) ApplyArgs(args []string) error {
	switch len(args) {
	case 0:
		return nil
	case 1:
		port, err := ParsePort(args[0])
		if err != nil {
			return err
		}
		c.Server.Port = port
		return nil
	default:
		return fmt.Errorf("unexpected arguments: %s (%s)", strings.Join(args[1:], " "), Usage)
	}
}

// ============================================
// Configuration Validation
// ============================================

// Validate валидирует конфигурацию.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %v fails %q", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return err
	}

	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("loopback", validateLoopback)
	return v
}

// validateLoopback проверяет, что хост - loopback интерфейс.
func validateLoopback(fl validator.FieldLevel) bool {
	return IsLoopback(fl.Field().String())
}

// IsLoopback сообщает, указывает ли host на loopback интерфейс.
func IsLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ============================================
// Presets
// ============================================

// Development возвращает конфигурацию по умолчанию без чтения окружения.
func Development() *Config {
	return &Config{
		App: AppConfig{
			Name:        "corsserve",
			Version:     "dev",
			Environment: "development",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Static: StaticConfig{
			Root: ".",
		},
		Headers: HeadersConfig{
			AllowOrigin:  "*",
			AllowMethods: "*",
			AllowHeaders: "*",
			CacheControl: "no-store, no-cache, must-revalidate",
		},
		Admin: AdminConfig{
			Enabled: false,
			Prefix:  "/_corsserve",
		},
		Tracing: TracingConfig{
			Insecure:    true,
			ServiceName: "corsserve",
			SampleRatio: 1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Test возвращает конфигурацию для тестов: эфемерный порт, тихий лог.
func Test() *Config {
	cfg := Development()
	cfg.App.Environment = "test"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Log.Level = "error"
	return cfg
}
