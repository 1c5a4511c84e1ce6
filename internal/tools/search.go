package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/coursechat/internal/models"
	"github.com/raphaelgruber/coursechat/internal/retrieval"
	"github.com/tmc/langchaingo/llms"
)

// Searcher is the slice of the retrieval store the search tool needs.
type Searcher interface {
	Search(ctx context.Context, query string, courseName *string, lesson *int) (*retrieval.SearchResult, error)
	LessonLink(ctx context.Context, courseTitle string, lesson int) *string
	CourseLink(ctx context.Context, courseTitle string) *string
}

// SearchInput is the model-facing argument schema of the search tool.
type SearchInput struct {
	Query        string  `json:"query"`
	CourseName   *string `json:"course_name,omitempty"`
	LessonNumber *int    `json:"lesson_number,omitempty"`
}

// SearchTool searches course content with optional course and lesson
// filters. Failed course resolution is reported to the model as text
// so it can rephrase, not surfaced as a hard error.
type SearchTool struct {
	store Searcher
}

// NewSearchTool creates the course content search tool.
func NewSearchTool(store Searcher) *SearchTool {
	return &SearchTool{store: store}
}

// Definition implements Tool.
func (t *SearchTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "search_course_content",
			Description: "Search course materials with smart course name matching and lesson filtering",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What to search for in the course content",
					},
					"course_name": map[string]any{
						"type":        "string",
						"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
					},
					"lesson_number": map[string]any{
						"type":        "integer",
						"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// Execute implements Tool.
func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	var input SearchInput
	if err := json.Unmarshal(args, &input); err != nil {
		return Result{}, fmt.Errorf("parse search arguments: %w", err)
	}
	if input.Query == "" {
		return Result{Text: "Search query cannot be empty."}, nil
	}

	result, err := t.store.Search(ctx, input.Query, input.CourseName, input.LessonNumber)
	if errors.Is(err, retrieval.ErrCourseNotFound) {
		return Result{Text: fmt.Sprintf("No course found matching '%s'", *input.CourseName)}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if len(result.Chunks) == 0 {
		return Result{Text: emptyMessage(result.Course, result.Lesson)}, nil
	}

	return t.format(ctx, result), nil
}

// emptyMessage names the active filters so the model knows what scope
// came up empty.
func emptyMessage(course *string, lesson *int) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if course != nil {
		fmt.Fprintf(&b, " in course '%s'", *course)
	}
	if lesson != nil {
		fmt.Fprintf(&b, " in lesson %d", *lesson)
	}
	b.WriteString(".")
	return b.String()
}

// format renders chunks with provenance headers and collects sources
// deduplicated by label in first-hit order, linked to the lesson when
// possible and the course otherwise.
func (t *SearchTool) format(ctx context.Context, result *retrieval.SearchResult) Result {
	blocks := make([]string, 0, len(result.Chunks))
	sources := make([]models.Source, 0, len(result.Chunks))
	cited := make(map[string]bool, len(result.Chunks))

	for _, chunk := range result.Chunks {
		header := fmt.Sprintf("[%s]", chunk.CourseTitle)
		if chunk.Lesson != nil {
			header = fmt.Sprintf("[%s - Lesson %d]", chunk.CourseTitle, *chunk.Lesson)
		}
		blocks = append(blocks, header+"\n"+chunk.Content)

		label := models.SourceLabel(chunk.CourseTitle, chunk.Lesson)
		if cited[label] {
			continue
		}
		cited[label] = true

		var link *string
		if chunk.Lesson != nil {
			link = t.store.LessonLink(ctx, chunk.CourseTitle, *chunk.Lesson)
		}
		if link == nil {
			link = t.store.CourseLink(ctx, chunk.CourseTitle)
		}
		sources = append(sources, models.Source{
			Label:  label,
			Course: chunk.CourseTitle,
			Lesson: chunk.Lesson,
			Link:   link,
		})
	}

	return Result{
		Text:    strings.Join(blocks, "\n\n"),
		Sources: sources,
	}
}
