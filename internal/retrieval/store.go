// Package retrieval implements semantic search over the course and
// chunk collections, including fuzzy course name resolution.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/coursechat/internal/db"
	"github.com/raphaelgruber/coursechat/internal/metrics"
	"github.com/raphaelgruber/coursechat/internal/models"
)

// ErrCourseNotFound indicates a course name could not be resolved
// against the catalog, for example because it is empty.
var ErrCourseNotFound = errors.New("course not found")

// Embedder turns text into vectors. Implemented by llm.Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the vector store behind the retrieval layer. Implemented by
// db.Client.
type Index interface {
	UpsertCourse(ctx context.Context, course models.Course) error
	UpsertChunks(ctx context.Context, chunks []models.Chunk) error
	DeleteCourse(ctx context.Context, title string) error
	NearestCourse(ctx context.Context, embedding []float32) (*models.Course, error)
	CourseByTitle(ctx context.Context, title string) (*models.Course, error)
	SearchChunks(ctx context.Context, embedding []float32, filter db.ChunkFilter, limit int) ([]models.ScoredChunk, error)
	CourseTitles(ctx context.Context) ([]string, error)
	CourseCount(ctx context.Context) (int, error)
	MaxChunkIndex(ctx context.Context) (int, error)
}

// Store ties an embedder to the vector index.
type Store struct {
	embedder   Embedder
	index      Index
	maxResults int
	collector  *metrics.Collector
	log        *slog.Logger
}

// NewStore creates a retrieval store. maxResults caps the number of
// chunks a search returns.
func NewStore(embedder Embedder, index Index, maxResults int, log *slog.Logger) *Store {
	if maxResults <= 0 {
		maxResults = 5
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		embedder:   embedder,
		index:      index,
		maxResults: maxResults,
		log:        log,
	}
}

// SetCollector enables timing collection for chunk searches.
func (s *Store) SetCollector(c *metrics.Collector) {
	s.collector = c
}

// AddCourse embeds and stores a course with its chunks. Chunk indices
// coming from the parser are document-relative; they are shifted past
// the highest index already stored so ids stay globally unique.
func (s *Store) AddCourse(ctx context.Context, course models.Course, chunks []models.Chunk) error {
	titleEmb, err := s.embedder.Embed(ctx, course.Title)
	if err != nil {
		return fmt.Errorf("embed course title: %w", err)
	}
	course.Embedding = titleEmb

	if err := s.index.UpsertCourse(ctx, course); err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.EmbedText
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	base, err := s.index.MaxChunkIndex(ctx)
	if err != nil {
		return err
	}
	offset := base + 1

	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
		chunks[i].Index += offset
	}

	if err := s.index.UpsertChunks(ctx, chunks); err != nil {
		return err
	}

	s.log.Info("course indexed", "title", course.Title, "chunks", len(chunks))
	return nil
}

// HasCourse reports whether a course with this exact title exists.
func (s *Store) HasCourse(ctx context.Context, title string) (bool, error) {
	_, err := s.index.CourseByTitle(ctx, title)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteCourse removes a course and its chunks from the index.
func (s *Store) DeleteCourse(ctx context.Context, title string) error {
	return s.index.DeleteCourse(ctx, title)
}

// ResolveCourseTitle matches a partial or fuzzy course name to the
// exact title of the nearest course in the catalog. There is no
// similarity floor: any non-empty name resolves to the best match as
// long as the catalog is not empty.
func (s *Store) ResolveCourseTitle(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty course name", ErrCourseNotFound)
	}

	emb, err := s.embedder.Embed(ctx, name)
	if err != nil {
		return "", fmt.Errorf("embed course name: %w", err)
	}

	course, err := s.index.NearestCourse(ctx, emb)
	if errors.Is(err, db.ErrNotFound) {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}
	if err != nil {
		return "", err
	}

	s.log.Debug("course name resolved", "name", name, "title", course.Title)
	return course.Title, nil
}

// SearchResult is the outcome of a chunk search, including the filters
// after course name resolution.
type SearchResult struct {
	Chunks []models.ScoredChunk
	Course *string
	Lesson *int
}

// Search returns the chunks nearest to the query, optionally restricted
// to a course (matched fuzzily) and a lesson number. An unresolvable
// course name fails with ErrCourseNotFound rather than silently
// searching the whole corpus.
func (s *Store) Search(ctx context.Context, query string, courseName *string, lesson *int) (*SearchResult, error) {
	var course *string
	if courseName != nil {
		title, err := s.ResolveCourseTitle(ctx, *courseName)
		if err != nil {
			return nil, err
		}
		course = &title
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	start := time.Now()
	chunks, err := s.index.SearchChunks(ctx, emb, db.ChunkFilter{
		CourseTitle: course,
		Lesson:      lesson,
	}, s.maxResults)
	if err != nil {
		return nil, err
	}
	if s.collector != nil {
		s.collector.RecordTiming(metrics.OpDBSearch, time.Since(start))
	}

	return &SearchResult{Chunks: chunks, Course: course, Lesson: lesson}, nil
}

// Outline returns the stored outline of the course whose name best
// matches the given one.
func (s *Store) Outline(ctx context.Context, name string) (*models.CourseOutline, error) {
	title, err := s.ResolveCourseTitle(ctx, name)
	if err != nil {
		return nil, err
	}

	course, err := s.index.CourseByTitle(ctx, title)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	return &models.CourseOutline{
		Title:   course.Title,
		Link:    course.Link,
		Lessons: course.Lessons,
	}, nil
}

// LessonLink returns the link of a lesson within a course, or nil when
// either is unknown.
func (s *Store) LessonLink(ctx context.Context, courseTitle string, lesson int) *string {
	course, err := s.index.CourseByTitle(ctx, courseTitle)
	if err != nil {
		return nil
	}
	return course.LessonLink(lesson)
}

// CourseLink returns the link of a course, or nil when unknown.
func (s *Store) CourseLink(ctx context.Context, courseTitle string) *string {
	course, err := s.index.CourseByTitle(ctx, courseTitle)
	if err != nil {
		return nil
	}
	return course.Link
}

// CourseTitles lists all course titles in the catalog.
func (s *Store) CourseTitles(ctx context.Context) ([]string, error) {
	return s.index.CourseTitles(ctx)
}

// CourseCount returns the number of indexed courses.
func (s *Store) CourseCount(ctx context.Context) (int, error) {
	return s.index.CourseCount(ctx)
}
