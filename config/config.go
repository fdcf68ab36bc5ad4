package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode     string `mapstructure:"mode"`
	Handlers struct {
		Pprof struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"pprof"`
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Provider struct {
		Model       string        `mapstructure:"model"`
		Timeout     time.Duration `mapstructure:"timeout"`
		Temperature float64       `mapstructure:"temperature"`
	} `mapstructure:"provider"`
	Cache struct {
		ChatTTL           time.Duration `mapstructure:"chatTTL"`
		ItineraryTTL      time.Duration `mapstructure:"itineraryTTL"`
		TranslationTTL    time.Duration `mapstructure:"translationTTL"`
		RecommendationTTL time.Duration `mapstructure:"recommendationTTL"`
		SweepInterval     time.Duration `mapstructure:"sweepInterval"`
		MaxEntries        int           `mapstructure:"maxEntries"`
	} `mapstructure:"cache"`
	Retrieval struct {
		TopK     int     `mapstructure:"topK"`
		MinScore float64 `mapstructure:"minScore"`
	} `mapstructure:"retrieval"`
	Session struct {
		TTL           time.Duration `mapstructure:"ttl"`
		MaxMessages   int           `mapstructure:"maxMessages"`
		PreserveTurns int           `mapstructure:"preserveTurns"`
		ContextBudget int           `mapstructure:"contextBudget"` // characters
		JanitorPeriod time.Duration `mapstructure:"janitorPeriod"`
	} `mapstructure:"session"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}
