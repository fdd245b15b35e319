package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cardmill/internal/adapters/util"
	"cardmill/internal/core/domain/models"
	"cardmill/internal/core/domain/ports"
)

// Ensure NotionAdapter implements BlockSource
var _ ports.BlockSource = (*NotionAdapter)(nil)

const (
	notionAPIBase = "https://api.notion.com"
	notionVersion = "2022-06-28"
	pageSize      = 100
)

// NotionAdapter fetches the block children of a Notion page, following the
// cursor-based pagination until the full stream is collected.
type NotionAdapter struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewNotionAdapter(token, baseURL, logLevel string) *NotionAdapter {
	if baseURL == "" {
		baseURL = notionAPIBase
	}

	return &NotionAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Transport: &util.LoggingTransport{LogLevel: logLevel},
			Timeout:   2 * time.Minute,
		},
	}
}

// FetchAllBlocks returns the page's top-level blocks in stable document order.
func (a *NotionAdapter) FetchAllBlocks(ctx context.Context, rootID string) ([]models.Block, error) {
	if rootID == "" {
		return nil, fmt.Errorf("notion page id is not configured")
	}

	var blocks []models.Block
	cursor := ""

	for {
		page, err := a.fetchPage(ctx, rootID, cursor)
		if err != nil {
			return nil, err
		}

		for _, raw := range page.Results {
			blocks = append(blocks, decodeBlock(raw))
		}
		log.Printf("Fetched %d blocks (total: %d)", len(page.Results), len(blocks))

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return blocks, nil
}

type childrenPage struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor"`
}

func (a *NotionAdapter) fetchPage(ctx context.Context, rootID, cursor string) (*childrenPage, error) {
	endpoint := fmt.Sprintf("%s/v1/blocks/%s/children", a.baseURL, url.PathEscape(rootID))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	q := req.URL.Query()
	q.Set("page_size", fmt.Sprintf("%d", pageSize))
	if cursor != "" {
		q.Set("start_cursor", cursor)
	}
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Notion-Version", notionVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blocks from %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("notion API returned status %d: %s", resp.StatusCode, string(body))
	}

	var page childrenPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode blocks response: %w", err)
	}

	return &page, nil
}

// Wire types for the subset of the block payload the pipeline consumes.

type apiBlock struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Paragraph *richTextPayload `json:"paragraph"`
	Heading1  *richTextPayload `json:"heading_1"`
	Heading2  *richTextPayload `json:"heading_2"`
	Heading3  *richTextPayload `json:"heading_3"`
	Bulleted  *richTextPayload `json:"bulleted_list_item"`
	Numbered  *richTextPayload `json:"numbered_list_item"`
	ToDo      *todoPayload     `json:"to_do"`
	Quote     *richTextPayload `json:"quote"`
	Code      *codePayload     `json:"code"`
	Image     *imagePayload    `json:"image"`
}

type richTextPayload struct {
	RichText []richText `json:"rich_text"`
}

type todoPayload struct {
	RichText []richText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

type codePayload struct {
	RichText []richText `json:"rich_text"`
	Language string     `json:"language"`
}

type imagePayload struct {
	External *fileRef   `json:"external"`
	File     *fileRef   `json:"file"`
	Caption  []richText `json:"caption"`
}

type fileRef struct {
	URL string `json:"url"`
}

type richText struct {
	PlainText string `json:"plain_text"`
}

// decodeBlock maps one wire block onto the closed Block variant. Kinds the
// pipeline does not understand become KindOther with the raw payload kept.
func decodeBlock(raw json.RawMessage) models.Block {
	var wire apiBlock
	if err := json.Unmarshal(raw, &wire); err != nil {
		return models.Block{Kind: models.KindOther, Raw: raw}
	}

	b := models.Block{ID: wire.ID}

	switch wire.Type {
	case "paragraph":
		b.Kind = models.KindParagraph
		b.Text = plainText(payloadText(wire.Paragraph))
	case "heading_1":
		b.Kind = models.KindHeading1
		b.Text = plainText(payloadText(wire.Heading1))
	case "heading_2":
		b.Kind = models.KindHeading2
		b.Text = plainText(payloadText(wire.Heading2))
	case "heading_3":
		b.Kind = models.KindHeading3
		b.Text = plainText(payloadText(wire.Heading3))
	case "bulleted_list_item":
		b.Kind = models.KindBulletedListItem
		b.Text = plainText(payloadText(wire.Bulleted))
	case "numbered_list_item":
		b.Kind = models.KindNumberedListItem
		b.Text = plainText(payloadText(wire.Numbered))
	case "to_do":
		b.Kind = models.KindToDo
		if wire.ToDo != nil {
			b.Text = plainText(wire.ToDo.RichText)
			b.Checked = wire.ToDo.Checked
		}
	case "quote":
		b.Kind = models.KindQuote
		b.Text = plainText(payloadText(wire.Quote))
	case "code":
		b.Kind = models.KindCode
		if wire.Code != nil {
			b.Text = plainText(wire.Code.RichText)
			b.Language = wire.Code.Language
		}
	case "image":
		b.Kind = models.KindImage
		if wire.Image != nil {
			// External URL takes precedence over the Notion-hosted file.
			if wire.Image.External != nil && wire.Image.External.URL != "" {
				b.ImageURL = wire.Image.External.URL
			} else if wire.Image.File != nil {
				b.ImageURL = wire.Image.File.URL
			}
			b.Caption = plainText(wire.Image.Caption)
		}
	case "divider":
		b.Kind = models.KindDivider
	default:
		b.Kind = models.KindOther
		b.Raw = raw
	}

	return b
}

func payloadText(p *richTextPayload) []richText {
	if p == nil {
		return nil
	}
	return p.RichText
}

func plainText(rt []richText) string {
	var sb strings.Builder
	for _, t := range rt {
		sb.WriteString(t.PlainText)
	}
	return strings.TrimSpace(sb.String())
}
