package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Engine struct {
		MaxSteps            int     `mapstructure:"max_steps"`
		MaxDepth            int     `mapstructure:"max_depth"`
		HTTPTimeoutSeconds  float64 `mapstructure:"http_timeout_seconds"`
		ModelTimeoutSeconds float64 `mapstructure:"model_timeout_seconds"`
	} `mapstructure:"engine"`
	Scheduler struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"scheduler"`
	LLM struct {
		APIKey  string `mapstructure:"api_key"`
		BaseURL string `mapstructure:"base_url"`
		Model   string `mapstructure:"model"`
	} `mapstructure:"llm"`
	Facts struct {
		Enabled bool   `mapstructure:"enabled"`
		Model   string `mapstructure:"model"`
	} `mapstructure:"facts"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

// LoadConfig loads the configuration from a file and the environment.
// A missing config file is not an error; defaults and FLOWMESH_* environment
// variables still apply.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("FLOWMESH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", 5432)
	viper.SetDefault("db.user", "flowmesh")
	viper.SetDefault("db.name", "flowmesh")
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("engine.max_steps", 1000)
	viper.SetDefault("engine.max_depth", 5)
	viper.SetDefault("engine.http_timeout_seconds", 30)
	viper.SetDefault("engine.model_timeout_seconds", 120)
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("facts.enabled", false)
	viper.SetDefault("log.level", "info")
}
