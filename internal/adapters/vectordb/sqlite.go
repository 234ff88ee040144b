package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
)

// sqliteColumns are filter fields answered by the WHERE clause; the rest are matched after decoding.
//
//nolint:gochecknoglobals
var sqliteColumns = map[string]string{
	"level":    "level",
	"courseId": "id",
	"id":       "id",
	"title":    "title",
}

// SQLiteIndex implements ports.CourseIndex with SQLite persistence.
// Similarity is brute force over the filtered rows, which suits catalogs of a few thousand courses.
type SQLiteIndex struct {
	mu       sync.RWMutex
	db       *sql.DB
	dataPath string
}

// NewSQLiteIndex opens (or creates) the course index under dataPath.
func NewSQLiteIndex(dataPath string) (*SQLiteIndex, error) {
	if dataPath == "" {
		dataPath = "./data"
	}

	// Ensure data directory exists
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "courses.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteIndex{
		db:       db,
		dataPath: dataPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables.
func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS courses (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		level TEXT NOT NULL,
		document TEXT NOT NULL,
		embedding BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_courses_level ON courses(level);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Index stores a course with its embedding, replacing any course with the same ID.
func (s *SQLiteIndex) Index(ctx context.Context, course entities.Course, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	course.Score = 0
	document, err := json.Marshal(course)
	if err != nil {
		return fmt.Errorf("encoding course: %w", err)
	}
	embeddingJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO courses (id, title, level, document, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			level = excluded.level,
			document = excluded.document,
			embedding = excluded.embedding,
			updated_at = CURRENT_TIMESTAMP
	`, course.ID, course.Title, strings.ToLower(string(course.Level)), string(document), embeddingJSON)
	if err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}
	return nil
}

// Search finds the k courses most similar to vector that match every filter.
func (s *SQLiteIndex) Search(ctx context.Context, vector []float32, k int, filters []entities.Filter) ([]entities.Course, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT document, embedding FROM courses"
	var (
		where []string
		args  []any
		rest  []entities.Filter
	)
	for _, f := range filters {
		col, ok := sqliteColumns[f.Field]
		if !ok {
			rest = append(rest, f)
			continue
		}
		where = append(where, col+" = ? COLLATE NOCASE")
		args = append(args, f.Value)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying courses: %w", err)
	}
	defer rows.Close()

	var results []entities.Course
	for rows.Next() {
		var document string
		var embeddingJSON []byte
		if err := rows.Scan(&document, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var course entities.Course
		if err := json.Unmarshal([]byte(document), &course); err != nil {
			continue // Skip corrupted rows
		}
		var embedding []float32
		if err := json.Unmarshal(embeddingJSON, &embedding); err != nil {
			continue
		}

		if ok, _ := matches(course, rest); !ok {
			continue
		}
		course.Score = cosineSimilarity(vector, embedding)
		results = append(results, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	return rankTop(results, k), nil
}

// Clear removes all data from the index.
func (s *SQLiteIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM courses")
	return err
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// CourseCount returns the number of indexed courses.
func (s *SQLiteIndex) CourseCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM courses").Scan(&count)
	return count, err
}
