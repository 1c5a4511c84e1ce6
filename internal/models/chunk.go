package models

import (
	"fmt"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Chunk is one retrievable span of lesson text with its own embedding.
// The integer index is the vector-index identifier; indices are assigned
// monotonically and never reused within an ingestion run.
type Chunk struct {
	ID surrealmodels.RecordID `json:"id"`

	// Display text, without the embedding context prefix.
	Content string `json:"content"`

	// Provenance. Lesson is nil for course-level preamble text.
	CourseTitle string `json:"course"`
	Lesson      *int   `json:"lesson,omitempty"`

	// Globally unique, monotonically assigned.
	Index int `json:"idx"`

	// Search
	Embedding []float32 `json:"embedding"`

	// EmbedText is the context-prefixed text that gets embedded.
	// Populated by the parser, consumed at ingest, never persisted.
	EmbedText string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// EmbedPrefix builds the context prefix prepended to chunk text before
// embedding, so the vector captures provenance alongside content. The
// exact format must stay stable between ingestion and any re-embedding.
func EmbedPrefix(courseTitle string, lesson *int) string {
	if lesson != nil {
		return fmt.Sprintf("Course %s Lesson %d content: ", courseTitle, *lesson)
	}
	return fmt.Sprintf("Course %s content: ", courseTitle)
}

// ScoredChunk pairs a chunk with its embedding distance from a query.
// Lower distance means more similar.
type ScoredChunk struct {
	Chunk
	Distance float64 `json:"distance"`
}

// Source is the provenance citation surfaced alongside an answer for
// one query, then discarded.
type Source struct {
	Label  string  `json:"label"`
	Course string  `json:"course"`
	Lesson *int    `json:"lesson,omitempty"`
	Link   *string `json:"link,omitempty"`
}

// SourceLabel formats the display label for a citation.
func SourceLabel(courseTitle string, lesson *int) string {
	if lesson != nil {
		return fmt.Sprintf("%s - Lesson %d", courseTitle, *lesson)
	}
	return courseTitle
}
