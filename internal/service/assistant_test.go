package service

import (
	"context"
	"errors"
	"testing"

	"github.com/raphaelgruber/coursechat/internal/generator"
	"github.com/raphaelgruber/coursechat/internal/metrics"
	"github.com/raphaelgruber/coursechat/internal/models"
	"github.com/raphaelgruber/coursechat/internal/session"
)

type stubGenerator struct {
	answer      *generator.Answer
	err         error
	lastHistory string
}

func (s *stubGenerator) Generate(_ context.Context, question, history string) (*generator.Answer, error) {
	s.lastHistory = history
	return s.answer, s.err
}

type stubCatalog struct {
	titles []string
}

func (s *stubCatalog) CourseTitles(context.Context) ([]string, error) { return s.titles, nil }
func (s *stubCatalog) CourseCount(context.Context) (int, error)       { return len(s.titles), nil }

func TestQueryCreatesSession(t *testing.T) {
	gen := &stubGenerator{answer: &generator.Answer{Text: "hi"}}
	a := NewAssistant(gen, &stubCatalog{}, session.NewManager(2), nil, nil)

	resp, err := a.Query(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("Expected a session id to be assigned")
	}
	if resp.Answer != "hi" {
		t.Errorf("Unexpected answer %q", resp.Answer)
	}
	if resp.Sources == nil {
		t.Error("Sources must be non-nil for JSON encoding")
	}
}

func TestQueryThreadsHistory(t *testing.T) {
	gen := &stubGenerator{answer: &generator.Answer{Text: "second answer"}}
	sessions := session.NewManager(2)
	a := NewAssistant(gen, &stubCatalog{}, sessions, nil, nil)

	first, err := a.Query(context.Background(), "first question", "")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if gen.lastHistory != "" {
		t.Errorf("First query should see empty history, got %q", gen.lastHistory)
	}

	if _, err := a.Query(context.Background(), "second question", first.SessionID); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want := "User: first question\nAssistant: second answer"
	if gen.lastHistory != want {
		t.Errorf("Second query history:\ngot  %q\nwant %q", gen.lastHistory, want)
	}
}

func TestQueryFailureNotRecorded(t *testing.T) {
	genErr := errors.New("llm down")
	gen := &stubGenerator{err: genErr}
	sessions := session.NewManager(2)
	a := NewAssistant(gen, &stubCatalog{}, sessions, nil, nil)

	id := sessions.Create()
	if _, err := a.Query(context.Background(), "q", id); !errors.Is(err, genErr) {
		t.Fatalf("Expected generator error, got %v", err)
	}
	if len(sessions.History(id)) != 0 {
		t.Error("Failed query must not be recorded in history")
	}
}

func TestQueryRecordsMetrics(t *testing.T) {
	gen := &stubGenerator{answer: &generator.Answer{Text: "ok"}}
	collector := metrics.NewCollector()
	a := NewAssistant(gen, &stubCatalog{}, session.NewManager(2), collector, nil)

	if _, err := a.Query(context.Background(), "q", ""); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if snap := collector.Snapshot(); snap.Query == nil || snap.Query.Count != 1 {
		t.Error("Expected query timing to be recorded")
	}
}

func TestQueryReturnsSources(t *testing.T) {
	lesson := 1
	gen := &stubGenerator{answer: &generator.Answer{
		Text: "answer",
		Sources: []models.Source{
			{Label: "Course - Lesson 1", Course: "Course", Lesson: &lesson},
		},
	}}
	a := NewAssistant(gen, &stubCatalog{}, session.NewManager(2), nil, nil)

	resp, err := a.Query(context.Background(), "q", "")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Label != "Course - Lesson 1" {
		t.Errorf("Unexpected sources %+v", resp.Sources)
	}
}

func TestStats(t *testing.T) {
	a := NewAssistant(&stubGenerator{}, &stubCatalog{titles: []string{"A", "B"}}, session.NewManager(2), nil, nil)

	stats, err := a.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalCourses != 2 || len(stats.CourseTitles) != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}
