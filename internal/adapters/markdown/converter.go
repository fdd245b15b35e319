package markdown

import (
	"context"
	"fmt"
	"strings"

	"cardmill/internal/core/domain/models"
	"cardmill/internal/core/domain/ports"
)

// Ensure Converter implements TextConverter
var _ ports.TextConverter = (*Converter)(nil)

// Converter renders content blocks to markdown. Deterministic: identical
// block sequences always produce identical output.
type Converter struct{}

func NewConverter() *Converter {
	return &Converter{}
}

func (c *Converter) Convert(_ context.Context, blocks []models.Block) (string, error) {
	var sb strings.Builder
	prevList := false
	ordinal := 0

	for _, b := range blocks {
		// Numbered lists count consecutively; any other kind resets the run.
		if b.Kind != models.KindNumberedListItem {
			ordinal = 0
		}

		var line string
		switch b.Kind {
		case models.KindHeading1:
			line = "# " + b.Text
		case models.KindHeading2:
			line = "## " + b.Text
		case models.KindHeading3:
			line = "### " + b.Text
		case models.KindParagraph:
			line = b.Text
		case models.KindBulletedListItem:
			line = "- " + b.Text
		case models.KindNumberedListItem:
			ordinal++
			line = fmt.Sprintf("%d. %s", ordinal, b.Text)
		case models.KindToDo:
			box := "[ ]"
			if b.Checked {
				box = "[x]"
			}
			line = "- " + box + " " + b.Text
		case models.KindQuote:
			line = "> " + b.Text
		case models.KindCode:
			line = "```" + b.Language + "\n" + b.Text + "\n```"
		default:
			// Image, divider and unknown kinds contribute nothing here.
			continue
		}

		if line == "" {
			continue
		}

		if sb.Len() > 0 {
			// Adjacent list items stay on consecutive lines; everything else
			// gets a blank line between blocks.
			if prevList && isListKind(b.Kind) {
				sb.WriteString("\n")
			} else {
				sb.WriteString("\n\n")
			}
		}
		sb.WriteString(line)
		prevList = isListKind(b.Kind)
	}

	return sb.String(), nil
}

func isListKind(k models.BlockKind) bool {
	switch k {
	case models.KindBulletedListItem, models.KindNumberedListItem, models.KindToDo:
		return true
	}
	return false
}
