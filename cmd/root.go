package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/grant-recommender/internal/db"
	"github.com/spigell/grant-recommender/internal/lock"
	"github.com/spigell/grant-recommender/internal/logger"
	"github.com/spigell/grant-recommender/internal/recommend"
	"github.com/spigell/grant-recommender/internal/store"
)

const (
	app = "grant-recommender"
)

type Config struct {
	Database  db.Config         `mapstructure:"database"`
	Redis     RedisConfig       `mapstructure:"redis"`
	AI        AIConfig          `mapstructure:"ai"`
	Semantic  SemanticConfig    `mapstructure:"semantic"`
	Recommend recommend.Options `mapstructure:"recommend"`
	Cache     store.Config      `mapstructure:"cache"`
	Lock      lock.Config       `mapstructure:"lock"`
	Log       logger.Config     `mapstructure:"log"`
}

type RedisConfig struct {
	URL     string `mapstructure:"url"`
	URLFile string `mapstructure:"url-file"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string        `mapstructure:"api-key"`
	APIKeyFile     string        `mapstructure:"api-key-file"`
	Model          string        `mapstructure:"model"`
	ThinkingBudget int32         `mapstructure:"thinking-budget"`
	MaxLogLength   int           `mapstructure:"max-log-length"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type SemanticConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "grant-recommender ranks open funding opportunities for nonprofit projects",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"database.url":           "DATABASE_URL",
		"redis.url":              "REDIS_URL",
		"ai.gemini.api-key":      "GEMINI_API_KEY",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"recommend.exclude-file": "GRANT_RECOMMENDER_EXCLUDE_FILE",
		"cache.backend":          "GRANT_RECOMMENDER_CACHE_BACKEND",
		"lock.backend":           "GRANT_RECOMMENDER_LOCK_BACKEND",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is grant-recommender.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	d := recommend.DefaultOptions()
	viper.SetDefault("recommend.max-results", d.MaxResults)
	viper.SetDefault("recommend.min-score", d.MinScore)
	viper.SetDefault("recommend.prelim-gate-ratio", d.PrelimGateRatio)
	viper.SetDefault("recommend.shortlist-size", d.ShortlistSize)
	viper.SetDefault("recommend.llm-concurrency", d.LLMConcurrency)
	viper.SetDefault("recommend.llm-batch-pause", d.LLMBatchPause)
	viper.SetDefault("recommend.open-status", d.OpenStatus)
	viper.SetDefault("recommend.applicable-to", d.ApplicableTo)

	viper.SetDefault("semantic.enabled", true)
	viper.SetDefault("ai.enabled", true)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.thinking-budget", -1)
	viper.SetDefault("ai.gemini.max-log-length", 2000)

	viper.SetDefault("cache.backend", store.BackendPostgres)
	viper.SetDefault("lock.backend", lock.BackendMemory)
	viper.SetDefault("lock.ttl", lock.DefaultTTL)
}

func initConfig() {
	// a missing .env is the normal case outside development
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Without an explicit file the environment and the defaults are enough.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{ThinkingBudget: -1}
	}

	return config, nil
}
