package db

import "fmt"

// schemaSQL returns the schema for the two collections. Course records
// are keyed by a slug of their title; chunk records by their global
// chunk index. Both carry an HNSW cosine index over the embedding.
func schemaSQL(dimension int) string {
	return fmt.Sprintf(`
    -- ==========================================================================
    -- COURSE TABLE (one record per course, used for name resolution)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS course SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title ON course TYPE string;
    DEFINE FIELD IF NOT EXISTS link ON course TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS instructor ON course TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS lessons ON course TYPE array<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS embedding ON course TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS created_at ON course TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS course_title ON course FIELDS title UNIQUE;
    DEFINE INDEX IF NOT EXISTS course_embedding ON course FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;

    -- ==========================================================================
    -- CHUNK TABLE (one record per text chunk, used for content search)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS content ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS course ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS lesson ON chunk TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS idx ON chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS embedding ON chunk TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS created_at ON chunk TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS chunk_course ON chunk FIELDS course;
    DEFINE INDEX IF NOT EXISTS chunk_lesson ON chunk FIELDS course, lesson;
    DEFINE INDEX IF NOT EXISTS chunk_embedding ON chunk FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`, dimension, dimension)
}
