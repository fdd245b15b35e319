package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel string `env:"CM_LOG_LEVEL" envDefault:"info"`

	NotionToken  string `env:"CM_NOTION_TOKEN"`
	NotionPageID string `env:"CM_NOTION_PAGE_ID"`

	OpenAIAPIKey  string `env:"CM_OPENAI_API_KEY"`
	OpenAIModel   string `env:"CM_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"CM_OPENAI_BASE_URL"`

	NojiBearerToken string `env:"CM_NOJI_BEARER_TOKEN"`
	NojiAPIURL      string `env:"CM_NOJI_API_URL" envDefault:"https://api-de.noji.io"`
	NojiDeckID      int    `env:"CM_NOJI_DECK_ID"`

	StateFilePath string `env:"CM_STATE_FILE_PATH" envDefault:"lesson-state.json"`
	BatchLabel    string `env:"CM_BATCH_LABEL" envDefault:"Lesson Notes"`
}

func (c *Config) Validate() error {
	if c.NotionToken == "" {
		return fmt.Errorf("CM_NOTION_TOKEN is required")
	}
	if c.NotionPageID == "" {
		return fmt.Errorf("CM_NOTION_PAGE_ID is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("CM_OPENAI_API_KEY is required")
	}
	if c.NojiBearerToken == "" {
		return fmt.Errorf("CM_NOJI_BEARER_TOKEN is required")
	}
	if c.NojiDeckID <= 0 {
		return fmt.Errorf("CM_NOJI_DECK_ID must be a positive deck id")
	}
	if c.StateFilePath == "" {
		return fmt.Errorf("CM_STATE_FILE_PATH cannot be empty")
	}
	return nil
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		cfg = &Config{}
		if err := env.Parse(cfg); err != nil {
			log.Fatalf("failed to parse config: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			log.Fatalf("config validation failed: %v", err)
		}
	})
	return cfg
}
