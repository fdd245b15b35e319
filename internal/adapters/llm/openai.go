package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"cardmill/internal/core/domain/models"
	"cardmill/internal/core/domain/ports"
)

// Ensure OpenAIClient implements both LLM-backed capabilities
var (
	_ ports.ImageReader   = (*OpenAIClient)(nil)
	_ ports.CardGenerator = (*OpenAIClient)(nil)
)

// OpenAIClient backs both image-content extraction and card generation with
// the OpenAI chat completions API. No retry or backoff lives here; transient
// failures surface to the caller.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client. BaseURL overrides the API endpoint for
// OpenAI-compatible servers and tests.
func NewOpenAIClient(apiKey, model, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

const extractSystemPrompt = `You are an expert at extracting content from images of language learning materials. Document exactly what is visible: all Arabic script, transliteration and English/French text with their locations, the visual elements present, and the page layout. Extract only what is actually shown. Do not add translations, explanations or interpretations that are not in the image. Respond in markdown.`

// ExtractImage asks the vision model to transcribe one image. The context
// hint carries the image's position and caption.
func (c *OpenAIClient) ExtractImage(ctx context.Context, imageURL, contextHint string) (string, error) {
	userPrompt := "Extract and document exactly what is visible in this image from language learning material."
	if contextHint != "" {
		userPrompt += "\n\nAdditional context: " + contextHint
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		MaxTokens:   8000,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: extractSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: userPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: imageURL,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("image extraction request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in extraction response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if len(content) < 10 {
		return "", fmt.Errorf("extracted content is too short or empty")
	}

	return content, nil
}

const generateSystemPrompt = `You are an expert language teacher who creates effective flashcards for learning Lebanese Arabic alongside Modern Standard Arabic. You correct errors in student notes, complete missing translations, and design cards following spaced repetition principles. You always label Lebanese and MSA variants when they differ, keep Arabic script separate from Latin text, and may use basic HTML tags (h1-h3, p, strong, em, u, s, ul, ol, li, br) for formatting.`

const generateUserPrompt = `Based on the following lesson notes, create flashcards that will help a student learn effectively.

<LessonContent>
%s
</LessonContent>

The notes are student notes and may contain mistakes or gaps: actively correct spelling errors, complete obvious sequences, and supply missing Lebanese or MSA equivalents. Do not add topics the notes never mention. Create as many cards as needed for complete coverage: recognition cards (Arabic front), production cards (English/French front) for both dialects, dialect comparison cards when Lebanese and MSA differ, plus grammar, pronunciation and cultural context cards.

Respond with a JSON object of the form {"cards": [{"front": "...", "back": "..."}]}.`

// cardsEnvelope matches the structured generation response.
type cardsEnvelope struct {
	Cards []models.Card `json:"cards"`
}

// GenerateCards turns one lesson artifact into flashcards.
func (c *OpenAIClient) GenerateCards(ctx context.Context, artifact string) ([]models.Card, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		MaxTokens:   16384,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: generateSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(generateUserPrompt, artifact),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("card generation request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in generation response")
	}

	var envelope cardsEnvelope
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse cards response: %w", err)
	}

	// Drop cards with a blank side rather than shipping them downstream.
	var cards []models.Card
	for _, card := range envelope.Cards {
		if strings.TrimSpace(card.Front) == "" || strings.TrimSpace(card.Back) == "" {
			continue
		}
		cards = append(cards, card)
	}

	if len(cards) == 0 {
		return nil, fmt.Errorf("no valid cards generated")
	}

	return cards, nil
}
