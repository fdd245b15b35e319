package service

import (
	"context"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"cardmill/internal/config"
	"cardmill/internal/core/domain/models"
	"cardmill/internal/core/domain/ports"
)

// WorkerService drives one batch run: fetch, segment, filter against the
// checkpoint ledger, then process the remaining lessons one at a time.
type WorkerService struct {
	cfg    *config.Config
	source ports.BlockSource
	synth  *Synthesizer
	gen    ports.CardGenerator
	dest   ports.CardDestination
	state  ports.StateStore
}

func NewWorkerService(
	cfg *config.Config,
	source ports.BlockSource,
	synth *Synthesizer,
	gen ports.CardGenerator,
	dest ports.CardDestination,
	state ports.StateStore,
) *WorkerService {
	return &WorkerService{
		cfg:    cfg,
		source: source,
		synth:  synth,
		gen:    gen,
		dest:   dest,
		state:  state,
	}
}

// Run executes one batch. Failures inside a single lesson's pipeline never
// abort the batch; only fetch failures do. The lesson loop is strictly
// sequential: the flashcard and LLM services are rate limited, and one
// lesson's image fan-out is the only concurrency this pipeline is allowed.
func (s *WorkerService) Run(ctx context.Context) (*models.BatchSummary, error) {
	log.Printf("Fetching blocks for page %s...", s.cfg.NotionPageID)
	blocks, err := s.source.FetchAllBlocks(ctx, s.cfg.NotionPageID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blocks: %w", err)
	}

	lessons := SegmentBlocks(blocks)
	log.Printf("Segmented %d blocks into %d lessons", len(blocks), len(lessons))

	pending := s.state.FilterUnprocessed(lessons)
	log.Printf("%d unprocessed lessons (%d already processed)", len(pending), len(lessons)-len(pending))

	summary := &models.BatchSummary{LessonsFound: len(lessons)}
	if len(pending) == 0 {
		log.Println("All lessons have been processed. Nothing to do.")
		return summary, nil
	}

	// Batch bookkeeping records the full count found, not the filtered one.
	s.state.StartBatch(s.cfg.BatchLabel, len(lessons))

	for i, lesson := range pending {
		log.Printf("Processing lesson %d/%d: %s (%d blocks)", i+1, len(pending), lesson.ID, len(lesson.Blocks))

		cards, report := s.processLesson(ctx, lesson, summary)

		rec := buildRecord(lesson, cards, report)
		s.state.MarkProcessed(lesson.ID, rec)
		summary.LessonsProcessed++
	}

	s.state.CompleteBatch()

	log.Printf("Batch complete. Lessons: %d, Cards created: %d, Errors: %d",
		summary.LessonsProcessed, summary.CardsCreated, summary.Errors)
	return summary, nil
}

// processLesson runs synthesis, generation and dispatch for one lesson.
// Every failure path is caught here and converted to zero output so the
// lesson is still checkpointed. A nil report means no dispatch was attempted
// and nothing went wrong (short artifact or zero cards).
func (s *WorkerService) processLesson(ctx context.Context, lesson models.Lesson, summary *models.BatchSummary) ([]models.Card, *models.DispatchReport) {
	artifact, err := s.synth.Synthesize(ctx, lesson)
	if err != nil {
		log.Printf("ERROR synthesizing lesson %s: %v", lesson.ID, err)
		summary.Errors++
		return nil, &models.DispatchReport{}
	}

	if n := utf8.RuneCountInString(artifact); n < MinArtifactLength {
		log.Printf("Lesson %s content too short (%d chars), skipping card generation", lesson.ID, n)
		return nil, nil
	}

	cards, err := s.gen.GenerateCards(ctx, artifact)
	if err != nil {
		log.Printf("ERROR generating cards for lesson %s: %v", lesson.ID, err)
		summary.Errors++
		return nil, &models.DispatchReport{}
	}
	log.Printf("Generated %d cards for lesson %s", len(cards), lesson.ID)

	if len(cards) == 0 {
		return cards, nil
	}

	report, err := s.dest.AddCards(ctx, cards)
	if err != nil {
		log.Printf("ERROR dispatching cards for lesson %s: %v", lesson.ID, err)
		summary.Errors++
		return nil, &models.DispatchReport{}
	}

	summary.CardsCreated += report.Success
	summary.Errors += report.Failed
	if report.Failed > 0 {
		log.Printf("WARNING: %d cards failed to add for lesson %s", report.Failed, lesson.ID)
	}
	return cards, report
}

// buildRecord derives the checkpoint record for a lesson. ProcessingSuccessful
// is false only when no dispatch report exists at all; per-card failures do
// not flip it.
func buildRecord(lesson models.Lesson, cards []models.Card, report *models.DispatchReport) models.LessonRecord {
	rec := models.LessonRecord{
		ProcessedAt:          time.Now().UTC(),
		Title:                lesson.Title(),
		BlockCount:           len(lesson.Blocks),
		HasImages:            lesson.HasImages(),
		HasText:              lesson.HasText(),
		BlockTypes:           lesson.BlockTypes(),
		CardsGenerated:       len(cards),
		ProcessingSuccessful: report != nil,
	}
	if report != nil {
		rec.CardsAdded = report.Success
		rec.CardsFailed = report.Failed
	}
	return rec
}
