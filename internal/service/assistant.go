// Package service wires retrieval, generation and sessions into the
// operations the CLI and server expose.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/raphaelgruber/coursechat/internal/generator"
	"github.com/raphaelgruber/coursechat/internal/metrics"
	"github.com/raphaelgruber/coursechat/internal/models"
)

// Generator produces answers. Implemented by generator.Generator.
type Generator interface {
	Generate(ctx context.Context, question, history string) (*generator.Answer, error)
}

// Catalog reads course metadata. Implemented by retrieval.Store.
type Catalog interface {
	CourseTitles(ctx context.Context) ([]string, error)
	CourseCount(ctx context.Context) (int, error)
}

// QueryResponse is the answer to one user question.
type QueryResponse struct {
	Answer    string          `json:"answer"`
	Sources   []models.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

// CourseStats summarizes the indexed corpus.
type CourseStats struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// Sessions is the conversation memory. Implemented by session.Manager.
type Sessions interface {
	Create() string
	Record(id, question, answer string)
	FormatHistory(id string) string
}

// Assistant answers course questions with conversation context.
type Assistant struct {
	generator Generator
	catalog   Catalog
	sessions  Sessions
	collector *metrics.Collector
	log       *slog.Logger
}

// NewAssistant creates the query service.
func NewAssistant(gen Generator, catalog Catalog, sessions Sessions, collector *metrics.Collector, log *slog.Logger) *Assistant {
	if log == nil {
		log = slog.Default()
	}
	return &Assistant{
		generator: gen,
		catalog:   catalog,
		sessions:  sessions,
		collector: collector,
		log:       log,
	}
}

// Query answers a question within a session. An empty sessionID starts
// a new session; the id in the response is what the caller should send
// next time. History is recorded only for successful answers.
func (a *Assistant) Query(ctx context.Context, question, sessionID string) (*QueryResponse, error) {
	if sessionID == "" {
		sessionID = a.sessions.Create()
	}
	history := a.sessions.FormatHistory(sessionID)

	start := time.Now()
	answer, err := a.generator.Generate(ctx, question, history)
	duration := time.Since(start)
	if a.collector != nil {
		a.collector.RecordTiming(metrics.OpQuery, duration)
	}
	if err != nil {
		a.log.Error("query failed", "session", sessionID, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, err
	}

	a.sessions.Record(sessionID, question, answer.Text)
	a.log.Info("query answered", "session", sessionID, "sources", len(answer.Sources), "duration_ms", duration.Milliseconds())

	sources := answer.Sources
	if sources == nil {
		sources = []models.Source{}
	}
	return &QueryResponse{
		Answer:    answer.Text,
		Sources:   sources,
		SessionID: sessionID,
	}, nil
}

// Stats returns course analytics for the catalog endpoint.
func (a *Assistant) Stats(ctx context.Context) (*CourseStats, error) {
	titles, err := a.catalog.CourseTitles(ctx)
	if err != nil {
		return nil, err
	}
	count, err := a.catalog.CourseCount(ctx)
	if err != nil {
		return nil, err
	}
	return &CourseStats{TotalCourses: count, CourseTitles: titles}, nil
}
