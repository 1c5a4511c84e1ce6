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

// Outliner is the slice of the retrieval store the outline tool needs.
type Outliner interface {
	Outline(ctx context.Context, name string) (*models.CourseOutline, error)
}

// OutlineInput is the model-facing argument schema of the outline tool.
type OutlineInput struct {
	CourseName string `json:"course_name"`
}

// OutlineTool returns a course's full lesson list, for questions about
// course structure rather than content.
type OutlineTool struct {
	store Outliner
}

// NewOutlineTool creates the course outline tool.
func NewOutlineTool(store Outliner) *OutlineTool {
	return &OutlineTool{store: store}
}

// Definition implements Tool.
func (t *OutlineTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "get_course_outline",
			Description: "Get the outline of a course: its title, link and complete lesson list",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"course_name": map[string]any{
						"type":        "string",
						"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
					},
				},
				"required": []string{"course_name"},
			},
		},
	}
}

// Execute implements Tool.
func (t *OutlineTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	var input OutlineInput
	if err := json.Unmarshal(args, &input); err != nil {
		return Result{}, fmt.Errorf("parse outline arguments: %w", err)
	}
	if input.CourseName == "" {
		return Result{Text: "Course name cannot be empty."}, nil
	}

	outline, err := t.store.Outline(ctx, input.CourseName)
	if errors.Is(err, retrieval.ErrCourseNotFound) {
		return Result{Text: fmt.Sprintf("No course found matching '%s'", input.CourseName)}, nil
	}
	if err != nil {
		return Result{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", outline.Title)
	if outline.Link != nil {
		fmt.Fprintf(&b, "Link: %s\n", *outline.Link)
	}
	fmt.Fprintf(&b, "Lessons (%d):\n", len(outline.Lessons))
	for _, lesson := range outline.Lessons {
		fmt.Fprintf(&b, "  Lesson %d: %s\n", lesson.Number, lesson.Title)
	}

	return Result{
		Text: b.String(),
		Sources: []models.Source{{
			Label:  outline.Title,
			Course: outline.Title,
			Link:   outline.Link,
		}},
	}, nil
}
