package ports

import (
	"context"

	"cardmill/internal/core/domain/models"
)

// BlockSource fetches the ordered block stream for a root document.
// Pagination is the adapter's concern; callers see one stable sequence.
type BlockSource interface {
	FetchAllBlocks(ctx context.Context, rootID string) ([]models.Block, error)
}

// TextConverter renders non-image blocks to normalized markdown.
// Must be deterministic for identical input.
type TextConverter interface {
	Convert(ctx context.Context, blocks []models.Block) (string, error)
}

// ImageReader extracts structured text content from a single image.
// Each call may fail independently.
type ImageReader interface {
	ExtractImage(ctx context.Context, imageURL, contextHint string) (string, error)
}

// CardGenerator turns one lesson artifact into flashcards.
type CardGenerator interface {
	GenerateCards(ctx context.Context, artifact string) ([]models.Card, error)
}

// CardDestination ships generated cards to the flashcard service.
type CardDestination interface {
	// Ping verifies connectivity and deck access. Used as a startup gate.
	Ping(ctx context.Context) error

	// AddCards dispatches cards one by one and reports per-call totals.
	// Individual card failures are counted, never returned as an error.
	AddCards(ctx context.Context, cards []models.Card) (*models.DispatchReport, error)
}

// StateStore is the durable checkpoint ledger. All mutation funnels through
// it; every mutating call persists the full aggregate before returning.
type StateStore interface {
	IsProcessed(lessonID string) bool

	// MarkProcessed inserts the record and returns true, or returns false
	// without touching anything when the lesson is already marked.
	MarkProcessed(lessonID string, rec models.LessonRecord) bool

	// Unmark removes a lesson's record so it can be reprocessed.
	Unmark(lessonID string) bool

	// FilterUnprocessed returns the lessons not yet marked, preserving order.
	FilterUnprocessed(lessons []models.Lesson) []models.Lesson

	// Record returns the stored record for a lesson, if any.
	Record(lessonID string) (models.LessonRecord, bool)

	// StartBatch and CompleteBatch stamp batch-level bookkeeping. Neither
	// gates the other; CompleteBatch without StartBatch is tolerated.
	StartBatch(label string, totalFound int)
	CompleteBatch()

	Stats() models.StateStats

	// Reset discards the aggregate and persists a fresh one.
	Reset() error
}
