package tracker

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardmill/internal/core/domain/models"
	"cardmill/internal/core/domain/ports"
)

// FileProcessingStore implements ports.StateStore over a single JSON file.
// Every mutation rewrites the whole aggregate synchronously; there is no
// append log and no write batching. Concurrent processes against the same
// file are unsafe (last writer wins); single-instance execution is a
// deployment constraint, not something enforced here.
var _ ports.StateStore = (*FileProcessingStore)(nil)

type FileProcessingStore struct {
	filepath string
	mu       sync.RWMutex
	state    models.ProcessingState
}

// NewFileProcessingStore loads the aggregate from path, or starts fresh when
// the file is missing. An unreadable or unparseable file also degrades to a
// fresh aggregate: availability over strict continuity, at the cost of
// silently restarting progress on corruption. The incident is logged.
func NewFileProcessingStore(path string) (*FileProcessingStore, error) {
	store := &FileProcessingStore{
		filepath: path,
		state:    models.NewProcessingState(),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	store.load()
	return store, nil
}

func (s *FileProcessingStore) load() {
	f, err := os.Open(s.filepath)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("No state file at %s, starting fresh", s.filepath)
		return
	}
	if err != nil {
		log.Printf("WARNING: cannot read state file %s, starting fresh: %v", s.filepath, err)
		return
	}
	defer f.Close()

	var loaded models.ProcessingState
	if err := json.NewDecoder(f).Decode(&loaded); err != nil {
		if err == io.EOF {
			return // empty file is fine
		}
		log.Printf("WARNING: state file %s is unreadable, starting fresh: %v", s.filepath, err)
		return
	}

	if loaded.ProcessedLessons == nil {
		loaded.ProcessedLessons = make(map[string]models.LessonRecord)
	}
	s.state = loaded
	log.Printf("Loaded state: %d lessons processed", s.state.Stats.TotalProcessed)
}

func (s *FileProcessingStore) IsProcessed(lessonID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.ProcessedLessons[lessonID]
	return ok
}

// MarkProcessed records a lesson exactly once. First write wins: a second
// call for the same id changes nothing and returns false.
func (s *FileProcessingStore) MarkProcessed(lessonID string, rec models.LessonRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.ProcessedLessons[lessonID]; ok {
		log.Printf("Lesson already processed: %s", lessonID)
		return false
	}

	s.state.ProcessedLessons[lessonID] = rec
	s.state.Stats.TotalProcessed++
	s.persist()
	return true
}

// Unmark removes a lesson's record so a later run reprocesses it.
func (s *FileProcessingStore) Unmark(lessonID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.ProcessedLessons[lessonID]; !ok {
		return false
	}

	delete(s.state.ProcessedLessons, lessonID)
	s.state.Stats.TotalProcessed--
	s.persist()
	return true
}

func (s *FileProcessingStore) FilterUnprocessed(lessons []models.Lesson) []models.Lesson {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []models.Lesson
	for _, l := range lessons {
		if _, ok := s.state.ProcessedLessons[l.ID]; !ok {
			pending = append(pending, l)
		}
	}
	return pending
}

func (s *FileProcessingStore) Record(lessonID string) (models.LessonRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.ProcessedLessons[lessonID]
	return rec, ok
}

// StartBatch stamps batch bookkeeping. It does not gate CompleteBatch.
func (s *FileProcessingStore) StartBatch(label string, totalFound int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.state.Stats.LastBatchID = uuid.New().String()
	s.state.Stats.LastBatchLabel = label
	s.state.Stats.TotalFound = totalFound
	s.state.Stats.BatchStarted = &now
	s.state.Stats.BatchCompleted = nil
	s.persist()
}

func (s *FileProcessingStore) CompleteBatch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.state.Stats.BatchCompleted = &now
	s.persist()
}

func (s *FileProcessingStore) Stats() models.StateStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	processed := s.state.Stats.TotalProcessed
	total := s.state.Stats.TotalFound
	remaining := total - processed

	var progress float64
	if total > 0 {
		progress = float64(processed) / float64(total) * 100
	}

	return models.StateStats{
		TotalProcessed:  processed,
		TotalFound:      total,
		Remaining:       remaining,
		ProgressPercent: progress,
		IsComplete:      remaining == 0 && total > 0,
	}
}

// Reset discards the whole aggregate and persists a fresh one.
func (s *FileProcessingStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = models.NewProcessingState()
	return s.save()
}

// persist writes the aggregate, logging rather than failing on error: a save
// failure leaves the in-memory mark standing so the running batch stays
// consistent, at the risk of the durable record lagging reality.
func (s *FileProcessingStore) persist() {
	if err := s.save(); err != nil {
		log.Printf("WARNING: failed to save state file %s: %v", s.filepath, err)
	}
}

// save rewrites the whole aggregate atomically. Callers hold the lock.
func (s *FileProcessingStore) save() error {
	s.state.LastUpdated = time.Now().UTC()

	tmpFile := s.filepath + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.state); err != nil {
		f.Close()
		return err
	}
	f.Close()

	return os.Rename(tmpFile, s.filepath)
}
