package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raphaelgruber/coursechat/internal/llm"
	"github.com/raphaelgruber/coursechat/internal/metrics"
	"github.com/raphaelgruber/coursechat/internal/models"
	"github.com/raphaelgruber/coursechat/internal/parser"
)

// Extensions accepted when scanning a course folder.
var courseFileExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// ContentStore is the slice of the retrieval store ingestion needs.
type ContentStore interface {
	AddCourse(ctx context.Context, course models.Course, chunks []models.Chunk) error
	HasCourse(ctx context.Context, title string) (bool, error)
	DeleteCourse(ctx context.Context, title string) error
}

// Wiper clears all indexed data. Implemented by db.Client.
type Wiper interface {
	WipeData(ctx context.Context) error
}

// Ingestor parses course documents and indexes them.
type Ingestor struct {
	store     ContentStore
	wiper     Wiper
	chunkCfg  parser.ChunkConfig
	collector *metrics.Collector
	log       *slog.Logger
}

// NewIngestor creates the ingestion service.
func NewIngestor(store ContentStore, wiper Wiper, chunkCfg parser.ChunkConfig, collector *metrics.Collector, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		store:     store,
		wiper:     wiper,
		chunkCfg:  chunkCfg,
		collector: collector,
		log:       log,
	}
}

// IngestResult summarizes a folder ingestion run.
type IngestResult struct {
	CoursesAdded   int
	CoursesSkipped int
	ChunksAdded    int
	Errors         []string
}

// AddCourseDocument parses and indexes a single course document,
// replacing any existing course with the same title. Returns the
// course and its chunk count.
func (s *Ingestor) AddCourseDocument(ctx context.Context, path string) (*models.Course, int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read file: %w", err)
	}

	course, chunks, err := parser.ParseDocument(string(content), s.chunkCfg)
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	exists, err := s.store.HasCourse(ctx, course.Title)
	if err != nil {
		return nil, 0, err
	}
	if exists {
		// Whole-document replacement, no partial updates
		if err := s.store.DeleteCourse(ctx, course.Title); err != nil {
			return nil, 0, err
		}
	}

	start := time.Now()
	if err := s.store.AddCourse(ctx, *course, chunks); err != nil {
		return nil, 0, err
	}
	if s.collector != nil {
		s.collector.RecordTiming(metrics.OpIngest, time.Since(start))
	}

	return course, len(chunks), nil
}

// AddCourseFolder indexes every course document in a folder. Courses
// whose exact title is already indexed are skipped, so repeated runs
// are cheap; pass clear to drop all existing data first. Malformed
// documents are reported and skipped, but a fatal provider error
// (auth, quota) aborts the whole run.
func (s *Ingestor) AddCourseFolder(ctx context.Context, dir string, clear bool) (*IngestResult, error) {
	if clear {
		if s.wiper == nil {
			return nil, fmt.Errorf("no database handle to clear")
		}
		if err := s.wiper.WipeData(ctx); err != nil {
			return nil, fmt.Errorf("clear existing data: %w", err)
		}
		s.log.Info("existing course data cleared")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder: %w", err)
	}

	result := &IngestResult{}
	for _, entry := range entries {
		if entry.IsDir() || !courseFileExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		content, err := os.ReadFile(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}

		course, chunks, err := parser.ParseDocument(string(content), s.chunkCfg)
		if err != nil {
			s.log.Warn("skipping malformed document", "file", entry.Name(), "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}

		exists, err := s.store.HasCourse(ctx, course.Title)
		if err != nil {
			return result, err
		}
		if exists {
			s.log.Debug("course already indexed", "title", course.Title)
			result.CoursesSkipped++
			continue
		}

		start := time.Now()
		if err := s.store.AddCourse(ctx, *course, chunks); err != nil {
			if errors.Is(err, llm.ErrFatalAPI) {
				return result, fmt.Errorf("ingest %s: %w", entry.Name(), err)
			}
			s.log.Warn("failed to index course", "file", entry.Name(), "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		if s.collector != nil {
			s.collector.RecordTiming(metrics.OpIngest, time.Since(start))
		}

		result.CoursesAdded++
		result.ChunksAdded += len(chunks)
	}

	s.log.Info("folder ingestion complete", "dir", dir,
		"added", result.CoursesAdded, "skipped", result.CoursesSkipped, "errors", len(result.Errors))
	return result, nil
}
