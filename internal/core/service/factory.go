package service

import (
	"cardmill/internal/adapters/destination"
	"cardmill/internal/adapters/llm"
	"cardmill/internal/adapters/markdown"
	"cardmill/internal/adapters/source"
	"cardmill/internal/config"
	"cardmill/internal/core/domain/ports"
)

func CreateBlockSource(cfg *config.Config) ports.BlockSource {
	return source.NewNotionAdapter(cfg.NotionToken, "", cfg.LogLevel)
}

func CreateTextConverter(_ *config.Config) ports.TextConverter {
	return markdown.NewConverter()
}

func CreateLLMClient(cfg *config.Config) (*llm.OpenAIClient, error) {
	return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
}

func CreateCardDestination(cfg *config.Config) ports.CardDestination {
	return destination.NewNojiAdapter(cfg.NojiAPIURL, cfg.NojiBearerToken, cfg.NojiDeckID, cfg.LogLevel)
}
