package destination

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"cardmill/internal/adapters/util"
	"cardmill/internal/core/domain/models"
	"cardmill/internal/core/domain/ports"
)

// Ensure NojiAdapter implements CardDestination
var _ ports.CardDestination = (*NojiAdapter)(nil)

// NojiAdapter ships flashcards to the Noji API, one note per card.
type NojiAdapter struct {
	baseURL string
	token   string
	deckID  int
	client  *http.Client
}

func NewNojiAdapter(baseURL, token string, deckID int, logLevel string) *NojiAdapter {
	return &NojiAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		deckID:  deckID,
		client: &http.Client{
			Transport: &util.LoggingTransport{LogLevel: logLevel},
			Timeout:   time.Minute,
		},
	}
}

// Ping verifies the deck exists and the token can reach it.
func (a *NojiAdapter) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/decks/%d", a.baseURL, a.deckID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	a.setHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach noji API: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("deck %d not found", a.deckID)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("noji authentication failed (status %d)", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("noji API returned status %d", resp.StatusCode)
	}

	return nil
}

// AddCards creates one note per card, sequentially. Per-card failures are
// counted and collected; they never abort the remaining cards.
func (a *NojiAdapter) AddCards(ctx context.Context, cards []models.Card) (*models.DispatchReport, error) {
	report := &models.DispatchReport{}

	for i, card := range cards {
		if err := a.createCard(ctx, card); err != nil {
			log.Printf("WARNING: failed to add card %d/%d: %v", i+1, len(cards), err)
			report.Failed++
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		report.Success++
	}

	return report, nil
}

// notePayload is the wire shape the Noji notes endpoint expects.
type notePayload struct {
	Note noteBody `json:"note"`
}

type noteBody struct {
	TemplateID          string            `json:"template_id"`
	Fields              noteFields        `json:"fields"`
	DeckID              int               `json:"deck_id"`
	FieldAttachmentsMap map[string]string `json:"field_attachments_map"`
	Reverse             bool              `json:"reverse"`
}

type noteFields struct {
	FrontSide string `json:"front_side"`
	BackSide  string `json:"back_side"`
}

func (a *NojiAdapter) createCard(ctx context.Context, card models.Card) error {
	payload := notePayload{
		Note: noteBody{
			TemplateID: "front_to_back",
			Fields: noteFields{
				FrontSide: card.Front,
				BackSide:  card.Back,
			},
			DeckID:              a.deckID,
			FieldAttachmentsMap: map[string]string{},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal note: %w", err)
	}

	url := a.baseURL + "/api/notes"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	a.setHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send note to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("noji API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func (a *NojiAdapter) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")
}
