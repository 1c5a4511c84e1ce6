package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/raphaelgruber/coursechat/internal/db"
	"github.com/raphaelgruber/coursechat/internal/metrics"
	"github.com/raphaelgruber/coursechat/internal/models"
)

// fakeEmbedder maps known texts to fixed vectors and everything else to
// a far-away default.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// fakeIndex keeps courses and chunks in memory. Nearest neighbor is
// squared L2 distance, good enough for three-dimensional test vectors.
type fakeIndex struct {
	courses    map[string]models.Course
	chunks     []models.Chunk
	maxIdx     int
	lastFilter db.ChunkFilter
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{courses: map[string]models.Course{}, maxIdx: -1}
}

func (f *fakeIndex) UpsertCourse(_ context.Context, course models.Course) error {
	f.courses[course.Title] = course
	return nil
}

func (f *fakeIndex) UpsertChunks(_ context.Context, chunks []models.Chunk) error {
	f.chunks = append(f.chunks, chunks...)
	for _, c := range chunks {
		if c.Index > f.maxIdx {
			f.maxIdx = c.Index
		}
	}
	return nil
}

func (f *fakeIndex) DeleteCourse(_ context.Context, title string) error {
	delete(f.courses, title)
	kept := f.chunks[:0]
	for _, c := range f.chunks {
		if c.CourseTitle != title {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}

func sqDist(a, b []float32) float32 {
	var d float32
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}

func (f *fakeIndex) NearestCourse(_ context.Context, embedding []float32) (*models.Course, error) {
	var best *models.Course
	var bestDist float32
	for title := range f.courses {
		course := f.courses[title]
		d := sqDist(embedding, course.Embedding)
		if best == nil || d < bestDist {
			best, bestDist = &course, d
		}
	}
	if best == nil {
		return nil, db.ErrNotFound
	}
	return best, nil
}

func (f *fakeIndex) CourseByTitle(_ context.Context, title string) (*models.Course, error) {
	course, ok := f.courses[title]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &course, nil
}

func (f *fakeIndex) SearchChunks(_ context.Context, embedding []float32, filter db.ChunkFilter, limit int) ([]models.ScoredChunk, error) {
	f.lastFilter = filter
	var out []models.ScoredChunk
	for _, c := range f.chunks {
		if filter.CourseTitle != nil && c.CourseTitle != *filter.CourseTitle {
			continue
		}
		if filter.Lesson != nil && (c.Lesson == nil || *c.Lesson != *filter.Lesson) {
			continue
		}
		out = append(out, models.ScoredChunk{Chunk: c, Distance: float64(sqDist(embedding, c.Embedding))})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeIndex) CourseTitles(_ context.Context) ([]string, error) {
	titles := []string{}
	for t := range f.courses {
		titles = append(titles, t)
	}
	return titles, nil
}

func (f *fakeIndex) CourseCount(_ context.Context) (int, error) {
	return len(f.courses), nil
}

func (f *fakeIndex) MaxChunkIndex(_ context.Context) (int, error) {
	return f.maxIdx, nil
}

func testStore(t *testing.T) (*Store, *fakeIndex) {
	t.Helper()
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"Building Toward Computer Use":    {1, 0, 0},
		"computer use":                    {0.9, 0.1, 0},
		"MCP: Build Rich-Context AI Apps": {0, 1, 0},
		"mcp":                             {0.1, 0.9, 0},
	}}
	idx := newFakeIndex()
	return NewStore(emb, idx, 5, nil), idx
}

func seedCourses(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for _, title := range []string{"Building Toward Computer Use", "MCP: Build Rich-Context AI Apps"} {
		err := s.AddCourse(ctx, models.Course{Title: title}, nil)
		if err != nil {
			t.Fatalf("AddCourse(%q) failed: %v", title, err)
		}
	}
}

func TestResolveCourseTitle(t *testing.T) {
	s, _ := testStore(t)
	seedCourses(t, s)
	ctx := context.Background()

	tests := []struct {
		name string
		want string
	}{
		{"computer use", "Building Toward Computer Use"},
		{"mcp", "MCP: Build Rich-Context AI Apps"},
		{"Building Toward Computer Use", "Building Toward Computer Use"},
	}
	for _, tt := range tests {
		got, err := s.ResolveCourseTitle(ctx, tt.name)
		if err != nil {
			t.Fatalf("ResolveCourseTitle(%q) failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("ResolveCourseTitle(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestResolveCourseTitleEmptyName(t *testing.T) {
	s, _ := testStore(t)
	seedCourses(t, s)

	_, err := s.ResolveCourseTitle(context.Background(), "")
	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("Expected ErrCourseNotFound for empty name, got %v", err)
	}
}

func TestResolveCourseTitleEmptyCatalog(t *testing.T) {
	s, _ := testStore(t)

	_, err := s.ResolveCourseTitle(context.Background(), "computer use")
	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("Expected ErrCourseNotFound on empty catalog, got %v", err)
	}
}

func TestAddCourseOffsetsChunkIndices(t *testing.T) {
	s, idx := testStore(t)
	ctx := context.Background()

	first := []models.Chunk{
		{Index: 0, Content: "a", CourseTitle: "Building Toward Computer Use", EmbedText: "Course Building Toward Computer Use content: a"},
		{Index: 1, Content: "b", CourseTitle: "Building Toward Computer Use", EmbedText: "Course Building Toward Computer Use content: b"},
	}
	if err := s.AddCourse(ctx, models.Course{Title: "Building Toward Computer Use"}, first); err != nil {
		t.Fatalf("AddCourse failed: %v", err)
	}

	second := []models.Chunk{
		{Index: 0, Content: "c", CourseTitle: "MCP: Build Rich-Context AI Apps", EmbedText: "x"},
	}
	if err := s.AddCourse(ctx, models.Course{Title: "MCP: Build Rich-Context AI Apps"}, second); err != nil {
		t.Fatalf("AddCourse failed: %v", err)
	}

	if len(idx.chunks) != 3 {
		t.Fatalf("Expected 3 stored chunks, got %d", len(idx.chunks))
	}
	for i, want := range []int{0, 1, 2} {
		if idx.chunks[i].Index != want {
			t.Errorf("chunk %d: expected global index %d, got %d", i, want, idx.chunks[i].Index)
		}
	}
	for i, c := range idx.chunks {
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d stored without embedding", i)
		}
	}
}

func TestSearchResolvesCourseFilter(t *testing.T) {
	s, idx := testStore(t)
	seedCourses(t, s)
	ctx := context.Background()

	lesson := 1
	chunks := []models.Chunk{
		{Index: 10, Content: "tool loops", CourseTitle: "Building Toward Computer Use", Lesson: &lesson, Embedding: []float32{1, 0, 0}},
		{Index: 11, Content: "mcp servers", CourseTitle: "MCP: Build Rich-Context AI Apps", Embedding: []float32{0, 1, 0}},
	}
	if err := idx.UpsertChunks(ctx, chunks); err != nil {
		t.Fatalf("UpsertChunks failed: %v", err)
	}

	name := "computer use"
	result, err := s.Search(ctx, "how do tool loops work", &name, &lesson)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if result.Course == nil || *result.Course != "Building Toward Computer Use" {
		t.Errorf("Expected resolved course title, got %v", result.Course)
	}
	if idx.lastFilter.CourseTitle == nil || *idx.lastFilter.CourseTitle != "Building Toward Computer Use" {
		t.Errorf("Expected exact title in filter, got %v", idx.lastFilter.CourseTitle)
	}
	if len(result.Chunks) != 1 || result.Chunks[0].Content != "tool loops" {
		t.Errorf("Unexpected search result: %+v", result.Chunks)
	}
}

func TestSearchUnresolvableCourse(t *testing.T) {
	s, idx := testStore(t)
	ctx := context.Background()

	name := "anything"
	_, err := s.Search(ctx, "query", &name, nil)
	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("Expected ErrCourseNotFound, got %v", err)
	}
	if idx.lastFilter.CourseTitle != nil {
		t.Error("Search ran against the index despite unresolvable course")
	}
}

func TestSearchWholeCorpus(t *testing.T) {
	s, idx := testStore(t)
	seedCourses(t, s)
	ctx := context.Background()

	if err := idx.UpsertChunks(ctx, []models.Chunk{
		{Index: 20, Content: "a", CourseTitle: "Building Toward Computer Use", Embedding: []float32{1, 0, 0}},
		{Index: 21, Content: "b", CourseTitle: "MCP: Build Rich-Context AI Apps", Embedding: []float32{0, 1, 0}},
	}); err != nil {
		t.Fatalf("UpsertChunks failed: %v", err)
	}

	result, err := s.Search(ctx, "query", nil, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Chunks) != 2 {
		t.Errorf("Expected unfiltered search across all courses, got %d chunks", len(result.Chunks))
	}
	if result.Course != nil {
		t.Errorf("Expected no course filter, got %v", result.Course)
	}
}

func TestSearchRecordsTiming(t *testing.T) {
	s, _ := testStore(t)
	seedCourses(t, s)
	collector := metrics.NewCollector()
	s.SetCollector(collector)

	if _, err := s.Search(context.Background(), "query", nil, nil); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	snap := collector.Snapshot()
	if snap.DBSearch == nil {
		t.Fatal("expected db_search metrics to be recorded")
	}
	if snap.DBSearch.Count != 1 {
		t.Errorf("count = %d, want 1", snap.DBSearch.Count)
	}
}

func TestOutline(t *testing.T) {
	s, idx := testStore(t)
	ctx := context.Background()

	link := "https://example.com/course"
	lessonLink := "https://example.com/lesson/0"
	idx.courses["Building Toward Computer Use"] = models.Course{
		Title:     "Building Toward Computer Use",
		Link:      &link,
		Embedding: []float32{1, 0, 0},
		Lessons: []models.Lesson{
			{Number: 0, Title: "Introduction", Link: &lessonLink},
			{Number: 1, Title: "Tool Calling"},
		},
	}

	outline, err := s.Outline(ctx, "computer use")
	if err != nil {
		t.Fatalf("Outline failed: %v", err)
	}
	if outline.Title != "Building Toward Computer Use" {
		t.Errorf("Expected resolved title, got %q", outline.Title)
	}
	if outline.Link == nil || *outline.Link != link {
		t.Errorf("Expected course link, got %v", outline.Link)
	}
	if len(outline.Lessons) != 2 {
		t.Errorf("Expected 2 lessons, got %d", len(outline.Lessons))
	}
}

func TestHasCourse(t *testing.T) {
	s, _ := testStore(t)
	seedCourses(t, s)
	ctx := context.Background()

	for _, tt := range []struct {
		title string
		want  bool
	}{
		{"Building Toward Computer Use", true},
		{"No Such Course", false},
	} {
		got, err := s.HasCourse(ctx, tt.title)
		if err != nil {
			t.Fatalf("HasCourse(%q) failed: %v", tt.title, err)
		}
		if got != tt.want {
			t.Errorf("HasCourse(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestLessonAndCourseLinks(t *testing.T) {
	s, idx := testStore(t)
	ctx := context.Background()

	courseLink := "https://example.com/course"
	lessonLink := "https://example.com/lesson/1"
	idx.courses["Building Toward Computer Use"] = models.Course{
		Title: "Building Toward Computer Use",
		Link:  &courseLink,
		Lessons: []models.Lesson{
			{Number: 1, Title: "Tool Calling", Link: &lessonLink},
		},
	}

	if got := s.LessonLink(ctx, "Building Toward Computer Use", 1); got == nil || *got != lessonLink {
		t.Errorf("Expected lesson link, got %v", got)
	}
	if got := s.LessonLink(ctx, "Building Toward Computer Use", 9); got != nil {
		t.Errorf("Expected nil for unknown lesson, got %q", *got)
	}
	if got := s.CourseLink(ctx, "Building Toward Computer Use"); got == nil || *got != courseLink {
		t.Errorf("Expected course link, got %v", got)
	}
	if got := s.CourseLink(ctx, "No Such Course"); got != nil {
		t.Errorf("Expected nil for unknown course, got %q", *got)
	}
}
