package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/coursechat/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// knnEF is the HNSW search effort parameter. 40 gives good recall for
// collections of this size.
const knnEF = 40

// UpsertCourse inserts or wholesale-replaces a course record. The
// record is keyed by a slug of the title, so reprocessing the same
// document overwrites the prior record.
func (c *Client) UpsertCourse(ctx context.Context, course models.Course) error {
	lessons := course.Lessons
	if lessons == nil {
		lessons = []models.Lesson{}
	}

	sql := `
		UPSERT type::record("course", $id) SET
			title = $title,
			link = $link,
			instructor = $instructor,
			lessons = $lessons,
			embedding = $embedding
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":         models.Slugify(course.Title),
		"title":      course.Title,
		"link":       course.Link,
		"instructor": course.Instructor,
		"lessons":    lessons,
		"embedding":  course.Embedding,
	})
	if err != nil {
		return fmt.Errorf("upsert course: %w", wrapQueryError(err))
	}
	return nil
}

// UpsertChunks inserts or replaces chunk records, keyed by the global
// chunk index.
func (c *Client) UpsertChunks(ctx context.Context, chunks []models.Chunk) error {
	sql := `
		UPSERT type::record("chunk", $id) SET
			content = $content,
			course = $course,
			lesson = $lesson,
			idx = $idx,
			embedding = $embedding
	`
	for _, chunk := range chunks {
		_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
			"id":        chunk.Index,
			"content":   chunk.Content,
			"course":    chunk.CourseTitle,
			"lesson":    chunk.Lesson,
			"idx":       chunk.Index,
			"embedding": chunk.Embedding,
		})
		if err != nil {
			return fmt.Errorf("upsert chunk %d: %w", chunk.Index, wrapQueryError(err))
		}
	}
	return nil
}

// DeleteCourse removes a course record and all of its chunks.
// Reprocessing is whole-document: there are no partial updates.
func (c *Client) DeleteCourse(ctx context.Context, title string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE chunk WHERE course = $title;
		DELETE type::record("course", $id);
	`, map[string]any{
		"title": title,
		"id":    models.Slugify(title),
	})
	if err != nil {
		return fmt.Errorf("delete course %q: %w", title, wrapQueryError(err))
	}
	return nil
}

// NearestCourse returns the single course whose embedding is nearest to
// the given vector, with no similarity floor. Returns ErrNotFound when
// the collection is empty.
func (c *Client) NearestCourse(ctx context.Context, embedding []float32) (*models.Course, error) {
	sql := fmt.Sprintf(`
		SELECT * FROM course WHERE embedding <|1,%d|> $emb
	`, knnEF)

	results, err := surrealdb.Query[[]models.Course](ctx, c.db, sql, map[string]any{
		"emb": embedding,
	})
	if err != nil {
		return nil, fmt.Errorf("nearest course: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// CourseByTitle returns the course with the exact title, or ErrNotFound.
func (c *Client) CourseByTitle(ctx context.Context, title string) (*models.Course, error) {
	results, err := surrealdb.Query[[]models.Course](ctx, c.db, `
		SELECT * FROM course WHERE title = $title LIMIT 1
	`, map[string]any{"title": title})
	if err != nil {
		return nil, fmt.Errorf("course by title: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// ChunkFilter restricts a chunk search to a course and/or lesson.
// Nil fields are not filtered on.
type ChunkFilter struct {
	CourseTitle *string
	Lesson      *int
}

// SearchChunks returns the limit nearest chunks to the embedding,
// optionally restricted by equality filters. An empty result is valid.
func (c *Client) SearchChunks(ctx context.Context, embedding []float32, filter ChunkFilter, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	courseClause := ""
	if filter.CourseTitle != nil {
		courseClause = "AND course = $course"
	}
	lessonClause := ""
	if filter.Lesson != nil {
		lessonClause = "AND lesson = $lesson"
	}

	sql := fmt.Sprintf(`
		SELECT *, vector::distance::knn() AS distance FROM chunk
		WHERE embedding <|%d,%d|> $emb %s %s
		ORDER BY distance
	`, limit, knnEF, courseClause, lessonClause)

	vars := map[string]any{"emb": embedding}
	if filter.CourseTitle != nil {
		vars["course"] = *filter.CourseTitle
	}
	if filter.Lesson != nil {
		vars["lesson"] = *filter.Lesson
	}

	results, err := surrealdb.Query[[]models.ScoredChunk](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.ScoredChunk{}, nil
	}
	return (*results)[0].Result, nil
}

// CourseTitles returns all course titles in the metadata collection.
func (c *Client) CourseTitles(ctx context.Context) ([]string, error) {
	results, err := surrealdb.Query[[]struct {
		Title string `json:"title"`
	}](ctx, c.db, `SELECT title FROM course ORDER BY title`, nil)
	if err != nil {
		return nil, fmt.Errorf("course titles: %w", wrapQueryError(err))
	}

	titles := []string{}
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			titles = append(titles, row.Title)
		}
	}
	return titles, nil
}

// CourseCount returns the number of courses in the metadata collection.
func (c *Client) CourseCount(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, `SELECT count() AS count FROM course GROUP ALL`, nil)
	if err != nil {
		return 0, fmt.Errorf("course count: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// MaxChunkIndex returns the highest chunk index currently stored, or -1
// when the chunk collection is empty. Used to keep global indices
// monotonic across ingestion runs.
func (c *Client) MaxChunkIndex(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Max *int `json:"max"`
	}](ctx, c.db, `SELECT math::max(idx) AS max FROM chunk GROUP ALL`, nil)
	if err != nil {
		return -1, fmt.Errorf("max chunk index: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 || (*results)[0].Result[0].Max == nil {
		return -1, nil
	}
	return *(*results)[0].Result[0].Max, nil
}
