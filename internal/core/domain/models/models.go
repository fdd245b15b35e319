package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// BlockKind is the closed set of content block kinds the pipeline understands.
// Anything else maps to KindOther with its raw payload retained.
type BlockKind string

const (
	KindParagraph        BlockKind = "paragraph"
	KindHeading1         BlockKind = "heading_1"
	KindHeading2         BlockKind = "heading_2"
	KindHeading3         BlockKind = "heading_3"
	KindBulletedListItem BlockKind = "bulleted_list_item"
	KindNumberedListItem BlockKind = "numbered_list_item"
	KindToDo             BlockKind = "to_do"
	KindQuote            BlockKind = "quote"
	KindCode             BlockKind = "code"
	KindImage            BlockKind = "image"
	KindDivider          BlockKind = "divider"
	KindOther            BlockKind = "other"
)

// textKinds are the kinds that carry primary text content.
var textKinds = map[BlockKind]bool{
	KindParagraph:        true,
	KindHeading1:         true,
	KindHeading2:         true,
	KindHeading3:         true,
	KindBulletedListItem: true,
	KindNumberedListItem: true,
	KindToDo:             true,
	KindQuote:            true,
}

// Block is one content unit fetched from the source document.
// Immutable after fetch; which fields are meaningful depends on Kind.
type Block struct {
	ID       string          `json:"id"`
	Kind     BlockKind       `json:"kind"`
	Text     string          `json:"text,omitempty"`     // text-bearing kinds
	Checked  bool            `json:"checked,omitempty"`  // to_do
	Language string          `json:"language,omitempty"` // code
	ImageURL string          `json:"image_url,omitempty"`
	Caption  string          `json:"caption,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"` // payload of unrecognized kinds
}

// IsText reports whether the block carries primary text content.
func (b Block) IsText() bool {
	return textKinds[b.Kind]
}

// Lesson is a contiguous run of non-divider blocks produced by one
// segmentation pass.
//
// The ID derives purely from position, so inserting or reordering blocks
// upstream shifts the identity of every subsequent lesson. That fragility is
// accepted: the checkpoint ledger keys on these IDs and changing the scheme
// would invalidate existing state files.
type Lesson struct {
	Index                int     `json:"index"`
	ID                   string  `json:"id"`
	PrecedingSeparatorID string  `json:"preceding_separator_id,omitempty"`
	Blocks               []Block `json:"blocks"`
}

// NewLesson builds a lesson at the given sequence position.
func NewLesson(index int, separatorID string, blocks []Block) Lesson {
	return Lesson{
		Index:                index,
		ID:                   fmt.Sprintf("lesson-%d", index),
		PrecedingSeparatorID: separatorID,
		Blocks:               blocks,
	}
}

// Title guesses a human-readable title: the first heading, a truncated first
// paragraph, or a positional fallback.
func (l Lesson) Title() string {
	if len(l.Blocks) == 0 {
		return fmt.Sprintf("Lesson %d", l.Index+1)
	}
	first := l.Blocks[0]
	switch first.Kind {
	case KindHeading1, KindHeading2, KindHeading3:
		if first.Text != "" {
			return first.Text
		}
	case KindParagraph:
		if first.Text != "" {
			// Truncate on rune boundaries; Arabic text is the common case
			// here and a byte slice would cut multi-byte runes in half.
			if r := []rune(first.Text); len(r) > 50 {
				return string(r[:50]) + "..."
			}
			return first.Text
		}
	}
	return fmt.Sprintf("Lesson %d", l.Index+1)
}

// HasImages reports whether any top-level block is an image.
func (l Lesson) HasImages() bool {
	for _, b := range l.Blocks {
		if b.Kind == KindImage {
			return true
		}
	}
	return false
}

// HasText reports whether any block carries text content.
func (l Lesson) HasText() bool {
	for _, b := range l.Blocks {
		if b.IsText() {
			return true
		}
	}
	return false
}

// BlockTypes returns the distinct block kinds in first-seen order.
func (l Lesson) BlockTypes() []string {
	seen := make(map[BlockKind]bool)
	var kinds []string
	for _, b := range l.Blocks {
		if !seen[b.Kind] {
			seen[b.Kind] = true
			kinds = append(kinds, string(b.Kind))
		}
	}
	return kinds
}

// ImageBlocks returns the top-level image blocks in document order.
func (l Lesson) ImageBlocks() []Block {
	var images []Block
	for _, b := range l.Blocks {
		if b.Kind == KindImage {
			images = append(images, b)
		}
	}
	return images
}

// ImageExtraction is the understood content of one image block.
// Failed extractions produce no entry at all.
type ImageExtraction struct {
	Index     int    `json:"index"`
	BlockID   string `json:"block_id"`
	SourceURL string `json:"source_url"`
	Caption   string `json:"caption,omitempty"`
	Content   string `json:"content"`
}

// Card is one flashcard. Front and back may carry basic HTML.
type Card struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// DispatchReport is the per-call outcome of shipping cards downstream.
type DispatchReport struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// LessonRecord is the durable proof that a lesson's pipeline was attempted.
// Written exactly once per lesson id; reprocessing requires an explicit unmark.
type LessonRecord struct {
	ProcessedAt          time.Time `json:"processed_at"`
	Title                string    `json:"title"`
	BlockCount           int       `json:"block_count"`
	HasImages            bool      `json:"has_images"`
	HasText              bool      `json:"has_text"`
	BlockTypes           []string  `json:"block_types"`
	CardsGenerated       int       `json:"cards_generated"`
	CardsAdded           int       `json:"cards_added"`
	CardsFailed          int       `json:"cards_failed"`
	ProcessingSuccessful bool      `json:"processing_successful"`
}

// BatchStats is the batch-level bookkeeping inside the state aggregate.
type BatchStats struct {
	TotalProcessed int        `json:"total_processed"`
	TotalFound     int        `json:"total_found"`
	LastBatchID    string     `json:"last_batch_id,omitempty"`
	LastBatchLabel string     `json:"last_batch_label,omitempty"`
	BatchStarted   *time.Time `json:"batch_started,omitempty"`
	BatchCompleted *time.Time `json:"batch_completed,omitempty"`
}

// ProcessingState is the whole durable aggregate. It is rewritten in full on
// every mutation; Version exists for forward compatibility of the file format.
type ProcessingState struct {
	Version          string                  `json:"version"`
	CreatedAt        time.Time               `json:"created_at"`
	LastUpdated      time.Time               `json:"last_updated"`
	ProcessedLessons map[string]LessonRecord `json:"processed_lessons"`
	Stats            BatchStats              `json:"stats"`
}

// StateVersion is the current on-disk schema version.
const StateVersion = "1.0"

// NewProcessingState returns an empty aggregate.
func NewProcessingState() ProcessingState {
	now := time.Now().UTC()
	return ProcessingState{
		Version:          StateVersion,
		CreatedAt:        now,
		LastUpdated:      now,
		ProcessedLessons: make(map[string]LessonRecord),
	}
}

// StateStats is the derived, read-only view of progress.
type StateStats struct {
	TotalProcessed  int     `json:"total_processed"`
	TotalFound      int     `json:"total_found"`
	Remaining       int     `json:"remaining"`
	ProgressPercent float64 `json:"progress_percent"`
	IsComplete      bool    `json:"is_complete"`
}

// BatchSummary is what one orchestrator run reports back.
type BatchSummary struct {
	LessonsFound     int
	LessonsProcessed int
	CardsCreated     int
	Errors           int
}
