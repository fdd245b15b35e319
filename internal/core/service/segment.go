package service

import (
	"cardmill/internal/core/domain/models"
)

// SegmentBlocks splits an ordered block stream into lessons at divider
// blocks. A divider closes the lesson accumulated so far (if any) and its id
// becomes the preceding-separator id of the NEXT lesson. Leading dividers and
// empty gaps between consecutive dividers produce no lesson; a trailing run
// of blocks after the last divider closes a final lesson. A stream with no
// dividers yields exactly one lesson.
//
// Pure function: identical input always yields lessons with identical ids
// and content.
func SegmentBlocks(blocks []models.Block) []models.Lesson {
	var (
		lessons   []models.Lesson
		buffer    []models.Block
		separator string
	)

	for _, b := range blocks {
		if b.Kind == models.KindDivider {
			if len(buffer) > 0 {
				lessons = append(lessons, models.NewLesson(len(lessons), separator, buffer))
				buffer = nil
			}
			// This divider opens whatever lesson comes next.
			separator = b.ID
			continue
		}
		buffer = append(buffer, b)
	}

	if len(buffer) > 0 {
		lessons = append(lessons, models.NewLesson(len(lessons), separator, buffer))
	}

	return lessons
}
