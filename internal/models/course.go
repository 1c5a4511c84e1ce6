// Package models defines data structures for the coursechat assistant.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Lesson is one lesson within a course. Lessons exist only as course
// metadata; they are never stored as standalone records.
type Lesson struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	Link   *string `json:"link,omitempty"`
}

// Course represents one ingested course document. The title is the
// primary key across both vector collections; reprocessing a document
// replaces the record wholesale.
type Course struct {
	ID surrealmodels.RecordID `json:"id"`

	Title      string   `json:"title"`
	Link       *string  `json:"link,omitempty"`
	Instructor *string  `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`

	// Search
	Embedding []float32 `json:"embedding"`

	CreatedAt time.Time `json:"created_at"`
}

// LessonLink returns the link of the lesson with the given number,
// or nil if the lesson has no link or does not exist.
func (c *Course) LessonLink(number int) *string {
	for _, l := range c.Lessons {
		if l.Number == number {
			return l.Link
		}
	}
	return nil
}

// CourseOutline is the display shape returned by the outline tool:
// title, link and the full numbered lesson list.
type CourseOutline struct {
	Title   string   `json:"title"`
	Link    *string  `json:"link,omitempty"`
	Lessons []Lesson `json:"lessons"`
}
