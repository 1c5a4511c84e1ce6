// Package db provides integration tests for SurrealDB operations.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/raphaelgruber/coursechat/internal/models"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	// Schema with the test embedding dimension (384, all-minilm:l6-v2)
	if err := testDB.InitSchema(ctx, 384); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

// axisEmbedding returns a 384-dim vector concentrated on one axis, so
// that vectors built on different axes are far apart under cosine
// distance while perturbed copies of the same axis stay close.
func axisEmbedding(axis int, weight float32) []float32 {
	embedding := make([]float32, 384)
	for i := range embedding {
		embedding[i] = 0.01
	}
	embedding[axis%384] = weight
	return embedding
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

// =============================================================================
// EMPTY COLLECTION TESTS
// =============================================================================

func TestEmptyCollections(t *testing.T) {
	ctx := context.Background()

	if err := testDB.WipeData(ctx); err != nil {
		t.Fatalf("WipeData failed: %v", err)
	}

	if _, err := testDB.NearestCourse(ctx, axisEmbedding(0, 1.0)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from empty course collection, got %v", err)
	}

	count, err := testDB.CourseCount(ctx)
	if err != nil {
		t.Fatalf("CourseCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 courses, got %d", count)
	}

	maxIdx, err := testDB.MaxChunkIndex(ctx)
	if err != nil {
		t.Fatalf("MaxChunkIndex failed: %v", err)
	}
	if maxIdx != -1 {
		t.Errorf("Expected max chunk index -1 on empty collection, got %d", maxIdx)
	}

	chunks, err := testDB.SearchChunks(ctx, axisEmbedding(0, 1.0), ChunkFilter{}, 5)
	if err != nil {
		t.Fatalf("SearchChunks failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Expected no chunks, got %d", len(chunks))
	}
}

// =============================================================================
// COURSE TESTS
// =============================================================================

func TestUpsertAndGetCourse(t *testing.T) {
	ctx := context.Background()

	course := models.Course{
		Title:      "Building Toward Computer Use",
		Link:       strPtr("https://example.com/courses/computer-use"),
		Instructor: strPtr("Colt Steele"),
		Lessons: []models.Lesson{
			{Number: 0, Title: "Introduction", Link: strPtr("https://example.com/lessons/0")},
			{Number: 1, Title: "Tool Calling", Link: nil},
		},
		Embedding: axisEmbedding(0, 1.0),
	}
	if err := testDB.UpsertCourse(ctx, course); err != nil {
		t.Fatalf("UpsertCourse failed: %v", err)
	}

	got, err := testDB.CourseByTitle(ctx, "Building Toward Computer Use")
	if err != nil {
		t.Fatalf("CourseByTitle failed: %v", err)
	}
	if got.Title != course.Title {
		t.Errorf("Expected title %q, got %q", course.Title, got.Title)
	}
	if got.Instructor == nil || *got.Instructor != "Colt Steele" {
		t.Errorf("Expected instructor Colt Steele, got %v", got.Instructor)
	}
	if len(got.Lessons) != 2 {
		t.Fatalf("Expected 2 lessons, got %d", len(got.Lessons))
	}
	if got.Lessons[1].Title != "Tool Calling" {
		t.Errorf("Expected lesson 1 title 'Tool Calling', got %q", got.Lessons[1].Title)
	}

	// Same title replaces the record instead of creating a duplicate
	course.Instructor = strPtr("Someone Else")
	if err := testDB.UpsertCourse(ctx, course); err != nil {
		t.Fatalf("second UpsertCourse failed: %v", err)
	}
	count, err := testDB.CourseCount(ctx)
	if err != nil {
		t.Fatalf("CourseCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 course after re-upsert, got %d", count)
	}
	got, err = testDB.CourseByTitle(ctx, "Building Toward Computer Use")
	if err != nil {
		t.Fatalf("CourseByTitle after re-upsert failed: %v", err)
	}
	if got.Instructor == nil || *got.Instructor != "Someone Else" {
		t.Errorf("Expected replaced instructor, got %v", got.Instructor)
	}
}

func TestCourseByTitleNotFound(t *testing.T) {
	ctx := context.Background()

	_, err := testDB.CourseByTitle(ctx, "No Such Course")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestNearestCourse(t *testing.T) {
	ctx := context.Background()

	second := models.Course{
		Title:     "MCP: Build Rich-Context AI Apps",
		Embedding: axisEmbedding(100, 1.0),
	}
	if err := testDB.UpsertCourse(ctx, second); err != nil {
		t.Fatalf("UpsertCourse failed: %v", err)
	}

	// Query vector near the second course's axis but not identical
	got, err := testDB.NearestCourse(ctx, axisEmbedding(100, 0.8))
	if err != nil {
		t.Fatalf("NearestCourse failed: %v", err)
	}
	if got.Title != second.Title {
		t.Errorf("Expected nearest course %q, got %q", second.Title, got.Title)
	}

	got, err = testDB.NearestCourse(ctx, axisEmbedding(0, 0.9))
	if err != nil {
		t.Fatalf("NearestCourse failed: %v", err)
	}
	if got.Title != "Building Toward Computer Use" {
		t.Errorf("Expected nearest course 'Building Toward Computer Use', got %q", got.Title)
	}
}

func TestCourseTitles(t *testing.T) {
	ctx := context.Background()

	titles, err := testDB.CourseTitles(ctx)
	if err != nil {
		t.Fatalf("CourseTitles failed: %v", err)
	}
	if len(titles) != 2 {
		t.Fatalf("Expected 2 titles, got %d: %v", len(titles), titles)
	}
	// Ordered by title
	if titles[0] != "Building Toward Computer Use" || titles[1] != "MCP: Build Rich-Context AI Apps" {
		t.Errorf("Unexpected titles order: %v", titles)
	}
}

// =============================================================================
// CHUNK TESTS
// =============================================================================

func TestUpsertAndSearchChunks(t *testing.T) {
	ctx := context.Background()

	chunks := []models.Chunk{
		{Index: 0, Content: "Computers use tools", CourseTitle: "Building Toward Computer Use", Lesson: intPtr(0), Embedding: axisEmbedding(10, 1.0)},
		{Index: 1, Content: "Tool calling loops", CourseTitle: "Building Toward Computer Use", Lesson: intPtr(1), Embedding: axisEmbedding(11, 1.0)},
		{Index: 2, Content: "MCP servers expose resources", CourseTitle: "MCP: Build Rich-Context AI Apps", Lesson: intPtr(0), Embedding: axisEmbedding(12, 1.0)},
	}
	if err := testDB.UpsertChunks(ctx, chunks); err != nil {
		t.Fatalf("UpsertChunks failed: %v", err)
	}

	results, err := testDB.SearchChunks(ctx, axisEmbedding(10, 0.9), ChunkFilter{}, 2)
	if err != nil {
		t.Fatalf("SearchChunks failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Content != "Computers use tools" {
		t.Errorf("Expected nearest chunk first, got %q", results[0].Content)
	}
	if results[0].Distance > results[1].Distance {
		t.Errorf("Expected results ordered by distance: %f > %f", results[0].Distance, results[1].Distance)
	}
}

func TestSearchChunksCourseFilter(t *testing.T) {
	ctx := context.Background()

	results, err := testDB.SearchChunks(ctx, axisEmbedding(10, 0.9), ChunkFilter{
		CourseTitle: strPtr("MCP: Build Rich-Context AI Apps"),
	}, 5)
	if err != nil {
		t.Fatalf("SearchChunks failed: %v", err)
	}
	for _, r := range results {
		if r.CourseTitle != "MCP: Build Rich-Context AI Apps" {
			t.Errorf("Course filter leaked chunk from %q", r.CourseTitle)
		}
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 chunk for filtered course, got %d", len(results))
	}
}

func TestSearchChunksLessonFilter(t *testing.T) {
	ctx := context.Background()

	results, err := testDB.SearchChunks(ctx, axisEmbedding(10, 0.9), ChunkFilter{
		CourseTitle: strPtr("Building Toward Computer Use"),
		Lesson:      intPtr(1),
	}, 5)
	if err != nil {
		t.Fatalf("SearchChunks failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 chunk for lesson filter, got %d", len(results))
	}
	if results[0].Lesson == nil || *results[0].Lesson != 1 {
		t.Errorf("Lesson filter returned wrong lesson: %v", results[0].Lesson)
	}
}

func TestMaxChunkIndex(t *testing.T) {
	ctx := context.Background()

	maxIdx, err := testDB.MaxChunkIndex(ctx)
	if err != nil {
		t.Fatalf("MaxChunkIndex failed: %v", err)
	}
	if maxIdx != 2 {
		t.Errorf("Expected max chunk index 2, got %d", maxIdx)
	}
}

func TestDeleteCourse(t *testing.T) {
	ctx := context.Background()

	if err := testDB.DeleteCourse(ctx, "Building Toward Computer Use"); err != nil {
		t.Fatalf("DeleteCourse failed: %v", err)
	}

	if _, err := testDB.CourseByTitle(ctx, "Building Toward Computer Use"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected deleted course to be gone, got %v", err)
	}

	// Chunks of the deleted course are gone, the other course's remain
	results, err := testDB.SearchChunks(ctx, axisEmbedding(10, 0.9), ChunkFilter{}, 10)
	if err != nil {
		t.Fatalf("SearchChunks failed: %v", err)
	}
	for _, r := range results {
		if r.CourseTitle == "Building Toward Computer Use" {
			t.Errorf("Chunk of deleted course survived: %q", r.Content)
		}
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 surviving chunk, got %d", len(results))
	}
}
