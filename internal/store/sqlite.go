package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dgallion1/pedigest/internal/embed"
	"github.com/dgallion1/pedigest/internal/record"
)

var _ Store = (*SQLite)(nil)

// SQLite keeps the corpus in a local file. Embeddings are stored as
// little-endian float32 blobs and ranked in memory, which is fine at
// textbook scale.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path and prepares the schema.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`PRAGMA synchronous=NORMAL`,
		`PRAGMA foreign_keys=ON`,
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	s := &SQLite{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nelson_textbook (
			id TEXT PRIMARY KEY,
			chapter TEXT,
			section TEXT,
			page_number INTEGER,
			content TEXT NOT NULL,
			embedding BLOB,
			keywords TEXT,
			medical_category TEXT,
			age_group TEXT,
			created_at TEXT DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS pediatric_medical_resources (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			resource_type TEXT,
			category TEXT,
			age_range TEXT,
			weight_range TEXT,
			embedding BLOB,
			source TEXT,
			created_at TEXT DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_textbook_category ON nelson_textbook(medical_category)`,
		`CREATE INDEX IF NOT EXISTS idx_textbook_age_group ON nelson_textbook(age_group)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Insert writes a batch inside one transaction, replacing rows that share
// an id so re-runs are idempotent.
func (s *SQLite) Insert(ctx context.Context, records []record.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO nelson_textbook
		(id, chapter, section, page_number, content, embedding, keywords, medical_category, age_group)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		keywords, err := json.Marshal(rec.Keywords)
		if err != nil {
			return fmt.Errorf("marshal keywords: %w", err)
		}
		var emb []byte
		if len(rec.Embedding) > 0 {
			emb = encodeFloat32Slice(rec.Embedding)
		}
		if _, err := stmt.ExecContext(ctx,
			id, rec.Chapter, rec.Section, rec.PageNumber, rec.Content,
			emb, string(keywords), rec.MedicalCategory, rec.AgeGroup,
		); err != nil {
			return fmt.Errorf("insert record %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// InsertResources writes supplemental resource rows.
func (s *SQLite) InsertResources(ctx context.Context, resources []record.ResourceRecord) error {
	if len(resources) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO pediatric_medical_resources
		(id, title, content, resource_type, category, age_range, weight_range, embedding, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range resources {
		id := res.ID
		if id == "" {
			id = uuid.NewString()
		}
		var emb []byte
		if len(res.Embedding) > 0 {
			emb = encodeFloat32Slice(res.Embedding)
		}
		if _, err := stmt.ExecContext(ctx,
			id, res.Title, res.Content, res.ResourceType, res.Category,
			res.AgeRange, res.WeightRange, emb, res.Source,
		); err != nil {
			return fmt.Errorf("insert resource %q: %w", res.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nelson_textbook`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// SemanticSearch loads embedded rows and ranks them by cosine similarity.
func (s *SQLite) SemanticSearch(ctx context.Context, query []float32, threshold float32, limit int) ([]SearchResult, error) {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, chapter, section, page_number, content,
		embedding, keywords, medical_category, age_group
		FROM nelson_textbook WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		rec, emb, err := scanTextbookRow(rows)
		if err != nil {
			return nil, err
		}
		vec, err := decodeFloat32Slice(emb)
		if err != nil || embed.IsZero(vec) {
			continue
		}
		sim := embed.CosineSimilarity(query, vec)
		if sim < threshold {
			continue
		}
		rec.Embedding = vec
		results = append(results, SearchResult{Record: rec, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// KeywordSearch matches a content substring or an entry in the stored
// keywords list.
func (s *SQLite) KeywordSearch(ctx context.Context, term string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	term = strings.ToLower(strings.TrimSpace(term))
	pattern := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT id, chapter, section, page_number, content,
		embedding, keywords, medical_category, age_group
		FROM nelson_textbook
		WHERE lower(content) LIKE ? OR lower(keywords) LIKE ?
		LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()
	return collectTextbookRows(rows)
}

// CategorySearch matches the exact medical category.
func (s *SQLite) CategorySearch(ctx context.Context, category string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, chapter, section, page_number, content,
		embedding, keywords, medical_category, age_group
		FROM nelson_textbook
		WHERE medical_category = ?
		LIMIT ?`, category, limit)
	if err != nil {
		return nil, fmt.Errorf("category search: %w", err)
	}
	defer rows.Close()
	return collectTextbookRows(rows)
}

// Stats gathers table counts and label distributions.
func (s *SQLite) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Categories: make(map[string]int),
		AgeGroups:  make(map[string]int),
	}
	counts := []struct {
		dest  *int
		query string
	}{
		{&stats.TextbookCount, `SELECT COUNT(*) FROM nelson_textbook`},
		{&stats.ResourceCount, `SELECT COUNT(*) FROM pediatric_medical_resources`},
		{&stats.EmbeddedCount, `SELECT COUNT(*) FROM nelson_textbook WHERE embedding IS NOT NULL`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("stats count: %w", err)
		}
	}

	if err := s.countLabels(ctx, `SELECT medical_category, COUNT(*) FROM nelson_textbook
		WHERE medical_category IS NOT NULL GROUP BY medical_category`, stats.Categories); err != nil {
		return nil, err
	}
	if err := s.countLabels(ctx, `SELECT age_group, COUNT(*) FROM nelson_textbook
		WHERE age_group IS NOT NULL GROUP BY age_group`, stats.AgeGroups); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *SQLite) countLabels(ctx context.Context, query string, dest map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("label stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return fmt.Errorf("scan label: %w", err)
		}
		dest[label] = n
	}
	return rows.Err()
}

func scanTextbookRow(rows *sql.Rows) (record.Record, []byte, error) {
	var (
		rec      record.Record
		emb      []byte
		keywords sql.NullString
		chapter  sql.NullString
		section  sql.NullString
		page     sql.NullInt64
		category sql.NullString
		ageGroup sql.NullString
	)
	if err := rows.Scan(&rec.ID, &chapter, &section, &page, &rec.Content,
		&emb, &keywords, &category, &ageGroup); err != nil {
		return rec, nil, fmt.Errorf("scan row: %w", err)
	}
	rec.Type = record.TypeTextbook
	rec.Source = record.DefaultSource
	rec.Chapter = chapter.String
	rec.Section = section.String
	rec.PageNumber = int(page.Int64)
	rec.MedicalCategory = category.String
	rec.AgeGroup = ageGroup.String
	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &rec.Keywords); err != nil {
			return rec, nil, fmt.Errorf("unmarshal keywords: %w", err)
		}
	}
	return rec, emb, nil
}

func collectTextbookRows(rows *sql.Rows) ([]SearchResult, error) {
	var results []SearchResult
	for rows.Next() {
		rec, emb, err := scanTextbookRow(rows)
		if err != nil {
			return nil, err
		}
		if len(emb) > 0 {
			if vec, err := decodeFloat32Slice(emb); err == nil {
				rec.Embedding = vec
			}
		}
		results = append(results, SearchResult{Record: rec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect rows: %w", err)
	}
	return results, nil
}

// encodeFloat32Slice packs a vector as little-endian float32 bytes.
func encodeFloat32Slice(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32Slice unpacks little-endian float32 bytes.
func decodeFloat32Slice(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding length %d", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
