// Package parser turns structured course documents into a course header
// plus retrievable text chunks.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/raphaelgruber/coursechat/internal/models"
)

// ErrMalformedDocument indicates a document whose mandatory header could
// not be parsed. No partial course is returned.
var ErrMalformedDocument = errors.New("malformed document")

// Header line prefixes, in fixed order.
const (
	titlePrefix      = "Course Title:"
	linkPrefix       = "Course Link:"
	instructorPrefix = "Course Instructor:"
	lessonLinkPrefix = "Lesson Link:"
)

// lessonMarker matches a lesson-start line: "Lesson <N>: <title>".
var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// ParseDocument parses one course document into its course header and
// the chunks of its lesson text. Chunk indices are assigned sequentially
// starting at 0; the ingestor offsets them into the global sequence.
//
// Malformed lesson markers (for example a duplicate lesson number) are
// logged and skipped so one bad lesson does not abort the document.
func ParseDocument(text string, cfg ChunkConfig) (*models.Course, []models.Chunk, error) {
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return nil, nil, fmt.Errorf("%w: expected 3 header lines, got %d", ErrMalformedDocument, len(lines))
	}

	title, ok := headerValue(lines[0], titlePrefix)
	if !ok || title == "" {
		return nil, nil, fmt.Errorf("%w: missing course title", ErrMalformedDocument)
	}
	link, _ := headerValue(lines[1], linkPrefix)
	instructor, _ := headerValue(lines[2], instructorPrefix)

	course := &models.Course{
		Title:      title,
		Link:       optional(link),
		Instructor: optional(instructor),
	}

	// Scan the body for lesson markers. Text before the first marker is
	// course-level preamble and carries no lesson number.
	type section struct {
		lesson *int
		body   []string
	}
	sections := []section{{lesson: nil}}
	seen := map[int]bool{}

	for i := 3; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		m := lessonMarker.FindStringSubmatch(line)
		if m == nil {
			cur := &sections[len(sections)-1]
			cur.body = append(cur.body, lines[i])
			continue
		}

		number, err := strconv.Atoi(m[1])
		if err != nil || seen[number] {
			slog.Warn("skipping malformed lesson marker", "course", title, "line", i+1, "marker", line)
			continue
		}
		seen[number] = true

		lesson := models.Lesson{Number: number, Title: strings.TrimSpace(m[2])}
		if i+1 < len(lines) {
			if ll, ok := headerValue(lines[i+1], lessonLinkPrefix); ok {
				lesson.Link = optional(ll)
				i++
			}
		}
		course.Lessons = append(course.Lessons, lesson)
		sections = append(sections, section{lesson: &lesson.Number})
	}

	var chunks []models.Chunk
	for _, sec := range sections {
		body := strings.TrimSpace(strings.Join(sec.body, "\n"))
		if body == "" {
			continue
		}
		for _, piece := range ChunkText(body, cfg) {
			chunks = append(chunks, models.Chunk{
				Content:     piece,
				CourseTitle: title,
				Lesson:      sec.lesson,
				Index:       len(chunks),
				EmbedText:   models.EmbedPrefix(title, sec.lesson) + piece,
			})
		}
	}

	return course, chunks, nil
}

// headerValue extracts the trimmed value after a header prefix. The
// second return is false when the line does not carry the prefix.
func headerValue(line, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), prefix)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
