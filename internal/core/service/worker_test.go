package service_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardmill/internal/adapters/tracker"
	"cardmill/internal/config"
	"cardmill/internal/core/domain/models"
	"cardmill/internal/core/service"
)

// mockBlockSource implements ports.BlockSource
type mockBlockSource struct {
	blocks []models.Block
	err    error
}

func (m *mockBlockSource) FetchAllBlocks(_ context.Context, _ string) ([]models.Block, error) {
	return m.blocks, m.err
}

// passConverter implements ports.TextConverter by echoing block text.
type passConverter struct {
	err error
}

func (c *passConverter) Convert(_ context.Context, blocks []models.Block) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	var parts []string
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// mockImageReader implements ports.ImageReader
type mockImageReader struct{}

func (m *mockImageReader) ExtractImage(_ context.Context, url, _ string) (string, error) {
	return "extracted from " + url, nil
}

// mockGenerator implements ports.CardGenerator
type mockGenerator struct {
	cards     []models.Card
	err       error
	artifacts []string
}

func (m *mockGenerator) GenerateCards(_ context.Context, artifact string) ([]models.Card, error) {
	m.artifacts = append(m.artifacts, artifact)
	if m.err != nil {
		return nil, m.err
	}
	return m.cards, nil
}

// mockDestination implements ports.CardDestination
type mockDestination struct {
	report     *models.DispatchReport
	err        error
	dispatched int
}

func (m *mockDestination) Ping(_ context.Context) error { return nil }

func (m *mockDestination) AddCards(_ context.Context, cards []models.Card) (*models.DispatchReport, error) {
	m.dispatched += len(cards)
	if m.err != nil {
		return nil, m.err
	}
	if m.report != nil {
		return m.report, nil
	}
	return &models.DispatchReport{Success: len(cards)}, nil
}

func tempStore(t *testing.T) *tracker.FileProcessingStore {
	t.Helper()
	f, err := os.CreateTemp("", "cardmill_test_state_*.json")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	store, err := tracker.NewFileProcessingStore(f.Name())
	require.NoError(t, err)
	return store
}

func testConfig() *config.Config {
	return &config.Config{
		NotionPageID: "page-1",
		BatchLabel:   "Test Lessons",
	}
}

// longText pads out a paragraph so the artifact clears the minimum length.
const longText = "This paragraph carries enough characters to clear the minimum artifact threshold."

func lessonBlocks() []models.Block {
	return []models.Block{
		{ID: "h1", Kind: models.KindHeading1, Text: "Greetings"},
		{ID: "p1", Kind: models.KindParagraph, Text: longText},
		{ID: "d1", Kind: models.KindDivider},
		{ID: "p2", Kind: models.KindParagraph, Text: longText + " Second lesson."},
	}
}

func newWorker(cfg *config.Config, src *mockBlockSource, conv *passConverter, gen *mockGenerator, dest *mockDestination, state *tracker.FileProcessingStore) *service.WorkerService {
	synth := service.NewSynthesizer(conv, &mockImageReader{})
	return service.NewWorkerService(cfg, src, synth, gen, dest, state)
}

func TestWorkerService_Run_HappyPath(t *testing.T) {
	state := tempStore(t)
	gen := &mockGenerator{cards: []models.Card{{Front: "f", Back: "b"}, {Front: "f2", Back: "b2"}}}
	dest := &mockDestination{}

	worker := newWorker(testConfig(), &mockBlockSource{blocks: lessonBlocks()}, &passConverter{}, gen, dest, state)

	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.LessonsFound)
	assert.Equal(t, 2, summary.LessonsProcessed)
	assert.Equal(t, 4, summary.CardsCreated)
	assert.Equal(t, 0, summary.Errors)

	assert.True(t, state.IsProcessed("lesson-0"))
	assert.True(t, state.IsProcessed("lesson-1"))

	rec, ok := state.Record("lesson-0")
	require.True(t, ok)
	assert.Equal(t, "Greetings", rec.Title)
	assert.Equal(t, 2, rec.BlockCount)
	assert.True(t, rec.HasText)
	assert.False(t, rec.HasImages)
	assert.Equal(t, 2, rec.CardsGenerated)
	assert.Equal(t, 2, rec.CardsAdded)
	assert.True(t, rec.ProcessingSuccessful)

	stats := state.Stats()
	assert.Equal(t, 2, stats.TotalFound)
	assert.True(t, stats.IsComplete)
}

func TestWorkerService_Run_SecondRunIsNoOp(t *testing.T) {
	state := tempStore(t)
	gen := &mockGenerator{cards: []models.Card{{Front: "f", Back: "b"}}}
	dest := &mockDestination{}

	worker := newWorker(testConfig(), &mockBlockSource{blocks: lessonBlocks()}, &passConverter{}, gen, dest, state)

	_, err := worker.Run(context.Background())
	require.NoError(t, err)
	firstDispatched := dest.dispatched

	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.LessonsFound)
	assert.Equal(t, 0, summary.LessonsProcessed)
	assert.Equal(t, 0, summary.CardsCreated)
	assert.Equal(t, firstDispatched, dest.dispatched, "no new cards dispatched on re-run")
}

func TestWorkerService_Run_ShortArtifactSkipsGeneration(t *testing.T) {
	state := tempStore(t)
	gen := &mockGenerator{cards: []models.Card{{Front: "f", Back: "b"}}}
	dest := &mockDestination{}

	blocks := []models.Block{
		{ID: "p1", Kind: models.KindParagraph, Text: "way too short"},
	}
	worker := newWorker(testConfig(), &mockBlockSource{blocks: blocks}, &passConverter{}, gen, dest, state)

	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.LessonsProcessed)
	assert.Equal(t, 0, summary.CardsCreated)
	assert.Empty(t, gen.artifacts, "generation must not run for short artifacts")

	rec, ok := state.Record("lesson-0")
	require.True(t, ok, "short lessons are still checkpointed")
	assert.Equal(t, 0, rec.CardsGenerated)
	assert.False(t, rec.ProcessingSuccessful)
}

func TestWorkerService_Run_ArtifactThresholdCountsCharacters(t *testing.T) {
	state := tempStore(t)
	gen := &mockGenerator{cards: []models.Card{{Front: "f", Back: "b"}}}
	dest := &mockDestination{}

	// 30 Arabic characters are 60 bytes; the cutoff counts characters, so
	// this artifact is still too short.
	blocks := []models.Block{
		{ID: "p1", Kind: models.KindParagraph, Text: strings.Repeat("ب", 30)},
	}
	worker := newWorker(testConfig(), &mockBlockSource{blocks: blocks}, &passConverter{}, gen, dest, state)

	_, err := worker.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gen.artifacts, "30 characters must not clear a 50-character threshold")

	// 55 Arabic characters clear it.
	state2 := tempStore(t)
	blocks2 := []models.Block{
		{ID: "p1", Kind: models.KindParagraph, Text: strings.Repeat("ب", 55)},
	}
	worker2 := newWorker(testConfig(), &mockBlockSource{blocks: blocks2}, &passConverter{}, gen, dest, state2)

	_, err = worker2.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, gen.artifacts, 1)
}

func TestWorkerService_Run_SynthesisFailureStillCheckpoints(t *testing.T) {
	state := tempStore(t)
	gen := &mockGenerator{cards: []models.Card{{Front: "f", Back: "b"}}}
	dest := &mockDestination{}

	worker := newWorker(testConfig(), &mockBlockSource{blocks: lessonBlocks()},
		&passConverter{err: errors.New("conversion blew up")}, gen, dest, state)

	summary, err := worker.Run(context.Background())
	require.NoError(t, err, "per-lesson failures never abort the batch")

	assert.Equal(t, 2, summary.LessonsProcessed)
	assert.Equal(t, 2, summary.Errors)
	assert.Equal(t, 0, summary.CardsCreated)

	rec, ok := state.Record("lesson-0")
	require.True(t, ok)
	assert.Equal(t, 0, rec.CardsGenerated)
	assert.Equal(t, 0, rec.CardsAdded)
	assert.True(t, rec.ProcessingSuccessful, "caught failures still carry a zero report")
}

func TestWorkerService_Run_GenerationFailureCounted(t *testing.T) {
	state := tempStore(t)
	gen := &mockGenerator{err: errors.New("model unavailable")}
	dest := &mockDestination{}

	worker := newWorker(testConfig(), &mockBlockSource{blocks: lessonBlocks()}, &passConverter{}, gen, dest, state)

	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Errors)
	assert.Equal(t, 0, dest.dispatched)
	assert.True(t, state.IsProcessed("lesson-0"))
	assert.True(t, state.IsProcessed("lesson-1"))
}

func TestWorkerService_Run_PartialDispatchAccumulates(t *testing.T) {
	state := tempStore(t)
	cards := []models.Card{
		{Front: "1", Back: "a"}, {Front: "2", Back: "b"}, {Front: "3", Back: "c"},
		{Front: "4", Back: "d"}, {Front: "5", Back: "e"},
	}
	gen := &mockGenerator{cards: cards}
	dest := &mockDestination{report: &models.DispatchReport{Success: 3, Failed: 2}}

	blocks := []models.Block{
		{ID: "p1", Kind: models.KindParagraph, Text: longText},
	}
	worker := newWorker(testConfig(), &mockBlockSource{blocks: blocks}, &passConverter{}, gen, dest, state)

	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.CardsCreated)
	assert.Equal(t, 2, summary.Errors)

	rec, ok := state.Record("lesson-0")
	require.True(t, ok)
	assert.Equal(t, 5, rec.CardsGenerated)
	assert.Equal(t, 3, rec.CardsAdded)
	assert.Equal(t, 2, rec.CardsFailed)
	assert.True(t, rec.ProcessingSuccessful, "per-card failures do not flip the success flag")
}

func TestWorkerService_Run_FetchFailureAborts(t *testing.T) {
	state := tempStore(t)
	worker := newWorker(testConfig(), &mockBlockSource{err: errors.New("notion unreachable")},
		&passConverter{}, &mockGenerator{}, &mockDestination{}, state)

	_, err := worker.Run(context.Background())
	require.Error(t, err)
}

func TestWorkerService_Run_NoBlocks(t *testing.T) {
	state := tempStore(t)
	worker := newWorker(testConfig(), &mockBlockSource{}, &passConverter{}, &mockGenerator{}, &mockDestination{}, state)

	summary, err := worker.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.LessonsFound)
	assert.Equal(t, 0, summary.LessonsProcessed)
}
