package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/pedigest/internal/record"
)

// Compile-time interface check.
var _ Store = (*Supabase)(nil)

// Default Supabase table names.
const (
	DefaultTextbookTable = "nelson_textbook"
	DefaultResourceTable = "pediatric_medical_resources"
)

// Supabase talks to the Supabase REST API (PostgREST plus the
// match_documents RPC for vector search).
type Supabase struct {
	baseURL       string
	apiKey        string
	textbookTable string
	resourceTable string
	httpClient    *http.Client
}

// NewSupabase creates a REST client. Table names may be empty to use the
// defaults.
func NewSupabase(baseURL, apiKey, textbookTable, resourceTable string) *Supabase {
	if textbookTable == "" {
		textbookTable = DefaultTextbookTable
	}
	if resourceTable == "" {
		resourceTable = DefaultResourceTable
	}
	return &Supabase{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		textbookTable: textbookTable,
		resourceTable: resourceTable,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// supabaseRow is the textbook table shape on the wire.
type supabaseRow struct {
	ID              string          `json:"id,omitempty"`
	Chapter         string          `json:"chapter"`
	Section         string          `json:"section"`
	PageNumber      int             `json:"page_number"`
	Content         string          `json:"content"`
	Embedding       json.RawMessage `json:"embedding,omitempty"`
	Keywords        []string        `json:"keywords"`
	MedicalCategory string          `json:"medical_category"`
	AgeGroup        string          `json:"age_group"`
}

// matchRow is one hit from the match_documents RPC.
type matchRow struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
	Metadata   struct {
		Chapter    string `json:"chapter"`
		Section    string `json:"section"`
		PageNumber int    `json:"page_number"`
		Category   string `json:"category"`
		AgeGroup   string `json:"age_group"`
		Source     string `json:"source"`
	} `json:"metadata"`
}

// Insert uploads a batch to the textbook table. Rate limits and server
// errors surface as RetryableError so the caller's retry policy applies.
func (s *Supabase) Insert(ctx context.Context, records []record.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]supabaseRow, len(records))
	for i, rec := range records {
		rows[i] = rowFromRecord(rec)
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.restURL(s.textbookTable, nil), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(httpReq)
	httpReq.Header.Set("Prefer", "return=minimal")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("insert batch: status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Count returns the number of textbook rows using an exact-count header.
func (s *Supabase) Count(ctx context.Context) (int, error) {
	return s.countTable(ctx, s.textbookTable, nil)
}

func (s *Supabase) countTable(ctx context.Context, table string, filter url.Values) (int, error) {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")
	for k, vs := range filter {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.restURL(table, q), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(httpReq)
	httpReq.Header.Set("Prefer", "count=exact")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("count %s: status %d", table, resp.StatusCode)
	}
	return parseContentRangeTotal(resp.Header.Get("Content-Range"))
}

// parseContentRangeTotal pulls the total from a header like "0-0/1234".
func parseContentRangeTotal(cr string) (int, error) {
	slash := strings.LastIndexByte(cr, '/')
	if slash < 0 {
		return 0, fmt.Errorf("missing content-range header")
	}
	total := cr[slash+1:]
	if total == "*" {
		return 0, fmt.Errorf("count unavailable")
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("parse content-range %q: %w", cr, err)
	}
	return n, nil
}

func (s *Supabase) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// SemanticSearch calls the match_documents RPC.
func (s *Supabase) SemanticSearch(ctx context.Context, query []float32, threshold float32, limit int) ([]SearchResult, error) {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	payload := map[string]any{
		"query_embedding":      query,
		"match_table":          s.textbookTable,
		"match_count":          limit,
		"similarity_threshold": threshold,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal rpc: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rest/v1/rpc/match_documents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(httpReq)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("semantic search: status %d: %s", resp.StatusCode, string(respBody))
	}

	var rows []matchRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode matches: %w", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		source := row.Metadata.Source
		if source == "" {
			source = record.DefaultSource
		}
		results = append(results, SearchResult{
			Similarity: row.Similarity,
			Record: record.Record{
				ID:              row.ID,
				Type:            record.TypeTextbook,
				Source:          source,
				Chapter:         row.Metadata.Chapter,
				Section:         row.Metadata.Section,
				PageNumber:      row.Metadata.PageNumber,
				Content:         row.Content,
				MedicalCategory: row.Metadata.Category,
				AgeGroup:        row.Metadata.AgeGroup,
			},
		})
	}
	return results, nil
}

// KeywordSearch matches the keywords array or content substring.
func (s *Supabase) KeywordSearch(ctx context.Context, term string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	term = strings.ToLower(strings.TrimSpace(term))
	q := url.Values{}
	q.Set("select", "*")
	q.Set("or", fmt.Sprintf("(content.ilike.*%s*,keywords.cs.{%s})", term, term))
	q.Set("limit", strconv.Itoa(limit))

	return s.selectRows(ctx, q)
}

// CategorySearch matches the exact medical category.
func (s *Supabase) CategorySearch(ctx context.Context, category string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	q := url.Values{}
	q.Set("select", "*")
	q.Set("medical_category", "eq."+category)
	q.Set("limit", strconv.Itoa(limit))

	return s.selectRows(ctx, q)
}

func (s *Supabase) selectRows(ctx context.Context, q url.Values) ([]SearchResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.restURL(s.textbookTable, q), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(httpReq)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("select rows: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("select rows: status %d: %s", resp.StatusCode, string(respBody))
	}

	var rows []supabaseRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, SearchResult{Record: recordFromRow(row)})
	}
	return results, nil
}

// Stats gathers per-table counts and label distributions.
func (s *Supabase) Stats(ctx context.Context) (*Stats, error) {
	textbooks, err := s.countTable(ctx, s.textbookTable, nil)
	if err != nil {
		return nil, fmt.Errorf("textbook count: %w", err)
	}
	resources, err := s.countTable(ctx, s.resourceTable, nil)
	if err != nil {
		return nil, fmt.Errorf("resource count: %w", err)
	}
	embedded, err := s.countTable(ctx, s.textbookTable, url.Values{"embedding": {"not.is.null"}})
	if err != nil {
		return nil, fmt.Errorf("embedded count: %w", err)
	}

	stats := &Stats{
		TextbookCount: textbooks,
		ResourceCount: resources,
		EmbeddedCount: embedded,
		Categories:    make(map[string]int),
		AgeGroups:     make(map[string]int),
	}

	q := url.Values{}
	q.Set("select", "medical_category,age_group")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.restURL(s.textbookTable, q), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(httpReq)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("label stats: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("label stats: status %d", resp.StatusCode)
	}

	var labels []struct {
		MedicalCategory string `json:"medical_category"`
		AgeGroup        string `json:"age_group"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&labels); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	for _, l := range labels {
		if l.MedicalCategory != "" {
			stats.Categories[l.MedicalCategory]++
		}
		if l.AgeGroup != "" {
			stats.AgeGroups[l.AgeGroup]++
		}
	}
	return stats, nil
}

// InsertResources uploads supplemental resource rows.
func (s *Supabase) InsertResources(ctx context.Context, resources []record.ResourceRecord) error {
	if len(resources) == 0 {
		return nil
	}
	type resourceRow struct {
		Title        string          `json:"title"`
		Content      string          `json:"content"`
		ResourceType string          `json:"resource_type"`
		Category     string          `json:"category"`
		AgeRange     string          `json:"age_range,omitempty"`
		WeightRange  string          `json:"weight_range,omitempty"`
		Embedding    json.RawMessage `json:"embedding,omitempty"`
		Source       string          `json:"source"`
	}
	rows := make([]resourceRow, len(resources))
	for i, res := range resources {
		rows[i] = resourceRow{
			Title:        res.Title,
			Content:      res.Content,
			ResourceType: res.ResourceType,
			Category:     res.Category,
			AgeRange:     res.AgeRange,
			WeightRange:  res.WeightRange,
			Embedding:    marshalVector(res.Embedding),
			Source:       res.Source,
		}
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal resources: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.restURL(s.resourceTable, nil), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(httpReq)
	httpReq.Header.Set("Prefer", "return=minimal")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("insert resources: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("insert resources: status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (s *Supabase) restURL(table string, q url.Values) string {
	u := s.baseURL + "/rest/v1/" + table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (s *Supabase) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
}

func rowFromRecord(rec record.Record) supabaseRow {
	return supabaseRow{
		Chapter:         rec.Chapter,
		Section:         rec.Section,
		PageNumber:      rec.PageNumber,
		Content:         rec.Content,
		Embedding:       marshalVector(rec.Embedding),
		Keywords:        rec.Keywords,
		MedicalCategory: rec.MedicalCategory,
		AgeGroup:        rec.AgeGroup,
	}
}

func recordFromRow(row supabaseRow) record.Record {
	return record.Record{
		ID:              row.ID,
		Type:            record.TypeTextbook,
		Source:          record.DefaultSource,
		Chapter:         row.Chapter,
		Section:         row.Section,
		PageNumber:      row.PageNumber,
		Content:         row.Content,
		MedicalCategory: row.MedicalCategory,
		AgeGroup:        row.AgeGroup,
		Keywords:        row.Keywords,
		Embedding:       unmarshalVector(row.Embedding),
	}
}

// marshalVector renders a vector as a JSON array, or nothing when empty.
func marshalVector(v []float32) json.RawMessage {
	if len(v) == 0 {
		return nil
	}
	raw, _ := json.Marshal(v)
	return raw
}

// unmarshalVector accepts either a JSON array or the pgvector text form
// "[0.1,0.2]" that PostgREST returns for vector columns.
func unmarshalVector(raw json.RawMessage) []float32 {
	if len(raw) == 0 {
		return nil
	}
	var direct []float32
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil
	}
	return ParseVectorText(text)
}

// ParseVectorText parses the pgvector text format "[0.1,0.2,...]".
func ParseVectorText(s string) []float32 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil
		}
		out = append(out, float32(f))
	}
	return out
}
