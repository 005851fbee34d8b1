package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/dgallion1/pedigest/internal/record"
)

var _ Store = (*Postgres)(nil)

// Postgres stores records in PostgreSQL with pgvector embeddings.
type Postgres struct {
	db            *sqlx.DB
	textbookTable string
	resourceTable string
}

// NewPostgres connects with the given DSN. Table names may be empty to use
// the defaults.
func NewPostgres(ctx context.Context, dsn, textbookTable, resourceTable string) (*Postgres, error) {
	if textbookTable == "" {
		textbookTable = DefaultTextbookTable
	}
	if resourceTable == "" {
		resourceTable = DefaultResourceTable
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return &Postgres{db: db, textbookTable: textbookTable, resourceTable: resourceTable}, nil
}

// EnsureSchema creates the extension, tables, indexes and the
// match_documents function used by the REST backend.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range SchemaStatements(p.textbookTable, p.resourceTable) {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SchemaStatements returns the pgvector DDL for the given tables. Table
// names may be empty to use the defaults.
func SchemaStatements(textbookTable, resourceTable string) []string {
	if textbookTable == "" {
		textbookTable = DefaultTextbookTable
	}
	if resourceTable == "" {
		resourceTable = DefaultResourceTable
	}
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			chapter VARCHAR(255),
			section VARCHAR(500),
			page_number INTEGER,
			content TEXT NOT NULL,
			embedding vector(1536),
			keywords TEXT[],
			medical_category VARCHAR(100),
			age_group VARCHAR(50),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`, textbookTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			resource_type VARCHAR(50) CHECK (resource_type IN ('protocol', 'dosage', 'guideline', 'reference')),
			category VARCHAR(100),
			age_range VARCHAR(50),
			weight_range VARCHAR(50),
			embedding vector(1536),
			source VARCHAR(255),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`, resourceTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
			textbookTable, textbookTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_keywords_idx ON %s USING GIN (keywords)`,
			textbookTable, textbookTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_category_idx ON %s (medical_category)`,
			textbookTable, textbookTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
			resourceTable, resourceTable),
		matchDocumentsFunction(textbookTable, resourceTable),
	}
}

func matchDocumentsFunction(textbookTable, resourceTable string) string {
	return fmt.Sprintf(`CREATE OR REPLACE FUNCTION match_documents(
	query_embedding vector(1536),
	match_table TEXT DEFAULT '%[1]s',
	match_count INT DEFAULT %[3]d,
	similarity_threshold FLOAT DEFAULT %[4]g
)
RETURNS TABLE (id UUID, content TEXT, similarity FLOAT, metadata JSONB)
LANGUAGE plpgsql
AS $func$
BEGIN
	IF match_table = '%[1]s' THEN
		RETURN QUERY
		SELECT nt.id, nt.content,
			(1 - (nt.embedding <=> query_embedding))::FLOAT AS similarity,
			jsonb_build_object(
				'chapter', nt.chapter,
				'section', nt.section,
				'page_number', nt.page_number,
				'category', nt.medical_category,
				'age_group', nt.age_group,
				'source', 'Nelson Textbook of Pediatrics'
			) AS metadata
		FROM %[1]s nt
		WHERE nt.embedding IS NOT NULL
		  AND (1 - (nt.embedding <=> query_embedding)) >= similarity_threshold
		ORDER BY nt.embedding <=> query_embedding
		LIMIT match_count;
	ELSE
		RETURN QUERY
		SELECT pr.id, pr.content,
			(1 - (pr.embedding <=> query_embedding))::FLOAT AS similarity,
			jsonb_build_object(
				'title', pr.title,
				'resource_type', pr.resource_type,
				'category', pr.category,
				'age_range', pr.age_range,
				'source', pr.source
			) AS metadata
		FROM %[2]s pr
		WHERE pr.embedding IS NOT NULL
		  AND (1 - (pr.embedding <=> query_embedding)) >= similarity_threshold
		ORDER BY pr.embedding <=> query_embedding
		LIMIT match_count;
	END IF;
END;
$func$`, textbookTable, resourceTable, DefaultMatchLimit, DefaultMatchThreshold)
}

// Insert writes a batch inside one transaction.
func (p *Postgres) Insert(ctx context.Context, records []record.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`INSERT INTO %s
		(chapter, section, page_number, content, embedding, keywords, medical_category, age_group)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, p.textbookTable)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var emb any
		if len(rec.Embedding) > 0 {
			emb = pgvector.NewVector(rec.Embedding)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Chapter, rec.Section, rec.PageNumber, rec.Content,
			emb, pq.Array(rec.Keywords), rec.MedicalCategory, rec.AgeGroup,
		); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// InsertResources writes supplemental resource rows.
func (p *Postgres) InsertResources(ctx context.Context, resources []record.ResourceRecord) error {
	if len(resources) == 0 {
		return nil
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`INSERT INTO %s
		(title, content, resource_type, category, age_range, weight_range, embedding, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, p.resourceTable)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range resources {
		var emb any
		if len(res.Embedding) > 0 {
			emb = pgvector.NewVector(res.Embedding)
		}
		if _, err := stmt.ExecContext(ctx,
			res.Title, res.Content, res.ResourceType, res.Category,
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

func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, p.textbookTable)
	if err := p.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// pgRow is the scan target for textbook selects.
type pgRow struct {
	ID              string         `db:"id"`
	Chapter         string         `db:"chapter"`
	Section         string         `db:"section"`
	PageNumber      int            `db:"page_number"`
	Content         string         `db:"content"`
	Keywords        pq.StringArray `db:"keywords"`
	MedicalCategory string         `db:"medical_category"`
	AgeGroup        string         `db:"age_group"`
	Similarity      float32        `db:"similarity"`
}

func (r pgRow) toResult() SearchResult {
	return SearchResult{
		Similarity: r.Similarity,
		Record: record.Record{
			ID:              r.ID,
			Type:            record.TypeTextbook,
			Source:          record.DefaultSource,
			Chapter:         r.Chapter,
			Section:         r.Section,
			PageNumber:      r.PageNumber,
			Content:         r.Content,
			MedicalCategory: r.MedicalCategory,
			AgeGroup:        r.AgeGroup,
			Keywords:        []string(r.Keywords),
		},
	}
}

// SemanticSearch ranks rows by cosine similarity using the pgvector
// distance operator.
func (p *Postgres) SemanticSearch(ctx context.Context, query []float32, threshold float32, limit int) ([]SearchResult, error) {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	sqlQuery := fmt.Sprintf(`SELECT id, chapter, section, page_number, content,
			keywords, medical_category, age_group,
			(1 - (embedding <=> $1))::float4 AS similarity
		FROM %s
		WHERE embedding IS NOT NULL
		  AND (1 - (embedding <=> $1)) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`, p.textbookTable)

	var rows []pgRow
	if err := p.db.SelectContext(ctx, &rows, sqlQuery, pgvector.NewVector(query), threshold, limit); err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toResult())
	}
	return results, nil
}

// KeywordSearch matches the keywords array or a content substring.
func (p *Postgres) KeywordSearch(ctx context.Context, term string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	term = strings.ToLower(strings.TrimSpace(term))
	sqlQuery := fmt.Sprintf(`SELECT id, chapter, section, page_number, content,
			keywords, medical_category, age_group, 0::float4 AS similarity
		FROM %s
		WHERE $1 = ANY(keywords) OR content ILIKE '%%' || $1 || '%%'
		LIMIT $2`, p.textbookTable)

	var rows []pgRow
	if err := p.db.SelectContext(ctx, &rows, sqlQuery, term, limit); err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toResult())
	}
	return results, nil
}

// CategorySearch matches the exact medical category.
func (p *Postgres) CategorySearch(ctx context.Context, category string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	sqlQuery := fmt.Sprintf(`SELECT id, chapter, section, page_number, content,
			keywords, medical_category, age_group, 0::float4 AS similarity
		FROM %s
		WHERE medical_category = $1
		LIMIT $2`, p.textbookTable)

	var rows []pgRow
	if err := p.db.SelectContext(ctx, &rows, sqlQuery, category, limit); err != nil {
		return nil, fmt.Errorf("category search: %w", err)
	}
	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toResult())
	}
	return results, nil
}

// Stats gathers table counts and label distributions.
func (p *Postgres) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Categories: make(map[string]int),
		AgeGroups:  make(map[string]int),
	}
	queries := []struct {
		dest  *int
		query string
	}{
		{&stats.TextbookCount, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, p.textbookTable)},
		{&stats.ResourceCount, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, p.resourceTable)},
		{&stats.EmbeddedCount, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE embedding IS NOT NULL`, p.textbookTable)},
	}
	for _, q := range queries {
		if err := p.db.GetContext(ctx, q.dest, q.query); err != nil {
			return nil, fmt.Errorf("stats count: %w", err)
		}
	}

	type labelCount struct {
		Label string `db:"label"`
		N     int    `db:"n"`
	}
	var cats []labelCount
	catQuery := fmt.Sprintf(`SELECT medical_category AS label, COUNT(*) AS n
		FROM %s WHERE medical_category IS NOT NULL
		GROUP BY medical_category`, p.textbookTable)
	if err := p.db.SelectContext(ctx, &cats, catQuery); err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	for _, c := range cats {
		stats.Categories[c.Label] = c.N
	}

	var ages []labelCount
	ageQuery := fmt.Sprintf(`SELECT age_group AS label, COUNT(*) AS n
		FROM %s WHERE age_group IS NOT NULL
		GROUP BY age_group`, p.textbookTable)
	if err := p.db.SelectContext(ctx, &ages, ageQuery); err != nil {
		return nil, fmt.Errorf("age group stats: %w", err)
	}
	for _, a := range ages {
		stats.AgeGroups[a.Label] = a.N
	}
	return stats, nil
}
