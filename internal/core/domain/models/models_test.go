package models

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLessonTitle_FromHeading(t *testing.T) {
	lesson := NewLesson(0, "", []Block{
		{Kind: KindHeading1, Text: "Greetings"},
	})
	assert.Equal(t, "Greetings", lesson.Title())
}

func TestLessonTitle_TruncatesArabicOnRuneBoundary(t *testing.T) {
	text := "a" + strings.Repeat("ب", 60)
	lesson := NewLesson(0, "", []Block{
		{Kind: KindParagraph, Text: text},
	})

	title := lesson.Title()
	require.True(t, utf8.ValidString(title), "truncation must never split a rune")
	assert.Equal(t, string([]rune(text)[:50])+"...", title)
	assert.Equal(t, 53, utf8.RuneCountInString(title))
}

func TestLessonTitle_ShortArabicParagraphKeptWhole(t *testing.T) {
	// 30 Arabic runes are 60 bytes; the cutoff counts characters, not bytes.
	text := strings.Repeat("ب", 30)
	lesson := NewLesson(0, "", []Block{
		{Kind: KindParagraph, Text: text},
	})
	assert.Equal(t, text, lesson.Title())
}

func TestLessonTitle_Fallback(t *testing.T) {
	assert.Equal(t, "Lesson 3", NewLesson(2, "", nil).Title())
	assert.Equal(t, "Lesson 1", NewLesson(0, "", []Block{{Kind: KindImage}}).Title())
}

func TestLessonImageBlocks(t *testing.T) {
	lesson := NewLesson(0, "", []Block{
		{ID: "t1", Kind: KindParagraph, Text: "text"},
		{ID: "i1", Kind: KindImage, ImageURL: "https://example.com/1.png"},
		{ID: "t2", Kind: KindQuote, Text: "quote"},
		{ID: "i2", Kind: KindImage, ImageURL: "https://example.com/2.png"},
	})

	images := lesson.ImageBlocks()
	require.Len(t, images, 2)
	assert.Equal(t, "i1", images[0].ID)
	assert.Equal(t, "i2", images[1].ID)

	assert.Empty(t, NewLesson(1, "", []Block{{Kind: KindParagraph, Text: "no images"}}).ImageBlocks())
}
