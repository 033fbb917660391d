package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Search    SearchConfig
	LLM       LLMConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

// AuthConfig carries the optional server-side shared API key. When set it
// takes precedence over any credential supplied by the caller.
type AuthConfig struct {
	SharedKey string
}

type RateLimitConfig struct {
	MaxRequests   int
	WindowSeconds int
}

type SearchConfig struct {
	URL        string
	APIKey     string
	Index      string
	ModelID    string
	MaxHits    int
	TimeoutSec int
}

type LLMConfig struct {
	APIKey             string
	Model              string
	ClassifierModel    string
	Temperature        float32
	MaxTokens          int
	TimeoutSec         int
	HistoryBudgetWords int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bayard-gateway")

	viper.SetEnvPrefix("BAYARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 5550)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 120)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("auth.sharedKey", "")

	viper.SetDefault("ratelimit.maxRequests", 500)
	viper.SetDefault("ratelimit.windowSeconds", 3600)

	viper.SetDefault("search.url", "http://localhost:9200")
	viper.SetDefault("search.index", "bayardcorpus")
	viper.SetDefault("search.modelID", ".elser_model_2_linux-x86_64")
	viper.SetDefault("search.maxHits", 10)
	viper.SetDefault("search.timeoutSec", 10)

	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.classifierModel", "gpt-3.5-turbo-instruct")
	viper.SetDefault("llm.temperature", 0.5)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 60)
	viper.SetDefault("llm.historyBudgetWords", 1000)

	viper.SetDefault("sqlite.path", "./data/bayard.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
