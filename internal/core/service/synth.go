package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"

	"cardmill/internal/core/domain/models"
	"cardmill/internal/core/domain/ports"
)

// MinArtifactLength is the threshold, in characters, below which a
// synthesized artifact is treated as empty and skipped for card generation.
const MinArtifactLength = 50

// imageMarkupRe matches markdown image references the converter may emit for
// images nested inside container blocks, which the top-level partition in
// Synthesize never sees.
var imageMarkupRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)

var blankRunRe = regexp.MustCompile(`\n\s*\n\s*\n`)

// Synthesizer merges a lesson's converted text with the extracted content of
// its images into one composite markdown artifact.
type Synthesizer struct {
	converter ports.TextConverter
	images    ports.ImageReader
}

func NewSynthesizer(converter ports.TextConverter, images ports.ImageReader) *Synthesizer {
	return &Synthesizer{converter: converter, images: images}
}

// Synthesize builds the composite artifact for one lesson. A text-conversion
// failure propagates as a failure for the whole lesson; individual image
// extraction failures only drop that image's section.
func (s *Synthesizer) Synthesize(ctx context.Context, lesson models.Lesson) (string, error) {
	images := lesson.ImageBlocks()
	var regular []models.Block
	for _, b := range lesson.Blocks {
		if b.Kind != models.KindImage {
			regular = append(regular, b)
		}
	}

	var text string
	if len(regular) > 0 {
		converted, err := s.converter.Convert(ctx, regular)
		if err != nil {
			return "", fmt.Errorf("convert lesson %s: %w", lesson.ID, err)
		}
		text = cleanConvertedText(converted)
	}

	var imageSection string
	if len(images) > 0 {
		extractions := s.extractAll(ctx, lesson.ID, images)
		imageSection = formatImageSection(extractions)
	}

	return combine(text, imageSection), nil
}

// cleanConvertedText strips stray image markup and collapses the blank-line
// runs left behind.
func cleanConvertedText(text string) string {
	text = imageMarkupRe.ReplaceAllString(text, "")
	for blankRunRe.MatchString(text) {
		text = blankRunRe.ReplaceAllString(text, "\n\n")
	}
	return strings.TrimSpace(text)
}

// extractAll fans out one extraction call per image block and joins before
// returning. Results are addressed by input position, so output order is
// stable regardless of completion order. A failed or URL-less image leaves a
// nil slot that is dropped from the returned slice.
func (s *Synthesizer) extractAll(ctx context.Context, lessonID string, images []models.Block) []models.ImageExtraction {
	slots := make([]*models.ImageExtraction, len(images))

	var wg sync.WaitGroup
	for i, img := range images {
		if img.ImageURL == "" {
			log.Printf("WARNING: image block %s in %s has no URL, skipping", img.ID, lessonID)
			continue
		}

		wg.Add(1)
		go func(i int, img models.Block) {
			defer wg.Done()

			hint := fmt.Sprintf("lesson image %d", i+1)
			if img.Caption != "" {
				hint += " with caption: " + img.Caption
			}

			content, err := s.images.ExtractImage(ctx, img.ImageURL, hint)
			if err != nil {
				log.Printf("WARNING: extraction failed for image %s in %s: %v", img.ID, lessonID, err)
				return
			}

			slots[i] = &models.ImageExtraction{
				Index:     i,
				BlockID:   img.ID,
				SourceURL: img.ImageURL,
				Caption:   img.Caption,
				Content:   content,
			}
		}(i, img)
	}
	wg.Wait()

	var results []models.ImageExtraction
	for _, slot := range slots {
		if slot != nil {
			results = append(results, *slot)
		}
	}
	return results
}

// formatImageSection renders the extractions as one labeled block of
// delimited, identifiable sections keyed by originating block id.
func formatImageSection(extractions []models.ImageExtraction) string {
	if len(extractions) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("# Images in this Lesson\n\n")
	for _, ex := range extractions {
		sb.WriteString(fmt.Sprintf("<image id=%q>\n  <extracted-content>\n%s\n  </extracted-content>\n</image>\n\n", ex.BlockID, indent(ex.Content, 4)))
	}
	return strings.TrimSpace(sb.String())
}

func indent(content string, spaces int) string {
	pad := strings.Repeat(" ", spaces)
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

func combine(text, imageSection string) string {
	switch {
	case text == "":
		return imageSection
	case imageSection == "":
		return text
	default:
		return text + "\n\n---\n\n" + imageSection
	}
}
