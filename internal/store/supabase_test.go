package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgallion1/pedigest/internal/record"
)

func TestSupabase_InsertSendsBatch(t *testing.T) {
	var gotRows []supabaseRow
	var gotPrefer, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/rest/v1/nelson_textbook" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotPrefer = r.Header.Get("Prefer")
		gotKey = r.Header.Get("apikey")
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRows); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	s := NewSupabase(server.URL, "test-key", "", "")
	rec := textbookRecord("nelson_0001", "Fever management in infants.", "Infectious Diseases",
		[]string{"fever"}, []float32{0.1, 0.2})
	rec.Chapter = "Fever"
	rec.Section = "Evaluation"
	rec.PageNumber = 120

	if err := s.Insert(context.Background(), []record.Record{rec}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if gotPrefer != "return=minimal" {
		t.Errorf("Prefer = %q, want return=minimal", gotPrefer)
	}
	if gotKey != "test-key" {
		t.Errorf("apikey = %q", gotKey)
	}
	if len(gotRows) != 1 {
		t.Fatalf("got %d rows, want 1", len(gotRows))
	}
	row := gotRows[0]
	if row.Chapter != "Fever" || row.Section != "Evaluation" || row.PageNumber != 120 {
		t.Errorf("row = %+v", row)
	}
	if row.MedicalCategory != "Infectious Diseases" {
		t.Errorf("MedicalCategory = %q", row.MedicalCategory)
	}
	if len(row.Keywords) != 1 || row.Keywords[0] != "fever" {
		t.Errorf("Keywords = %v", row.Keywords)
	}
}

func TestSupabase_InsertRateLimitIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	s := NewSupabase(server.URL, "key", "", "")
	err := s.Insert(context.Background(), []record.Record{textbookRecord("a", "x", "", nil, nil)})
	if err == nil {
		t.Fatal("expected error")
	}
	var re *RetryableError
	if !errors.As(err, &re) {
		t.Fatalf("error %v is not retryable", err)
	}
	if re.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", re.StatusCode)
	}
}

func TestSupabase_InsertServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	s := NewSupabase(server.URL, "key", "", "")
	err := s.Insert(context.Background(), []record.Record{textbookRecord("a", "x", "", nil, nil)})
	var re *RetryableError
	if !errors.As(err, &re) {
		t.Fatalf("error %v is not retryable", err)
	}
}

func TestSupabase_InsertBadRequestIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"column does not exist"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	s := NewSupabase(server.URL, "key", "", "")
	err := s.Insert(context.Background(), []record.Record{textbookRecord("a", "x", "", nil, nil)})
	if err == nil {
		t.Fatal("expected error")
	}
	var re *RetryableError
	if errors.As(err, &re) {
		t.Fatalf("bad request should not be retryable: %v", err)
	}
}

func TestSupabase_InsertEmptyBatchNoRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	s := NewSupabase(server.URL, "key", "", "")
	if err := s.Insert(context.Background(), nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if called {
		t.Error("empty batch should not hit the server")
	}
}

func TestSupabase_CountParsesContentRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if prefer := r.Header.Get("Prefer"); prefer != "count=exact" {
			t.Errorf("Prefer = %q, want count=exact", prefer)
		}
		w.Header().Set("Content-Range", "0-0/1234")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	s := NewSupabase(server.URL, "key", "", "")
	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1234 {
		t.Errorf("Count = %d, want 1234", n)
	}
}

func TestSupabase_SemanticSearchCallsRPC(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/rpc/match_documents" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":         "11111111-2222-3333-4444-555555555555",
				"content":    "Kawasaki disease presents with prolonged fever.",
				"similarity": 0.91,
				"metadata": map[string]any{
					"chapter":     "Rheumatic Diseases",
					"section":     "Kawasaki Disease",
					"page_number": 1310,
					"category":    "Rheumatology",
					"age_group":   "Toddler",
					"source":      "Nelson Textbook of Pediatrics",
				},
			},
		})
	}))
	defer server.Close()

	s := NewSupabase(server.URL, "key", "", "")
	results, err := s.SemanticSearch(context.Background(), []float32{0.1, 0.2}, 0.75, 3)
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}

	if payload["match_table"] != "nelson_textbook" {
		t.Errorf("match_table = %v", payload["match_table"])
	}
	if payload["match_count"] != float64(3) {
		t.Errorf("match_count = %v, want 3", payload["match_count"])
	}
	if payload["similarity_threshold"] != 0.75 {
		t.Errorf("similarity_threshold = %v, want 0.75", payload["similarity_threshold"])
	}

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Similarity != 0.91 {
		t.Errorf("Similarity = %v", r.Similarity)
	}
	if r.Record.Chapter != "Rheumatic Diseases" || r.Record.Section != "Kawasaki Disease" {
		t.Errorf("record = %+v", r.Record)
	}
	if r.Record.PageNumber != 1310 {
		t.Errorf("PageNumber = %d", r.Record.PageNumber)
	}
	if r.Record.MedicalCategory != "Rheumatology" || r.Record.AgeGroup != "Toddler" {
		t.Errorf("labels = %q, %q", r.Record.MedicalCategory, r.Record.AgeGroup)
	}
}

func TestSupabase_SemanticSearchDefaults(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	s := NewSupabase(server.URL, "key", "", "")
	if _, err := s.SemanticSearch(context.Background(), []float32{1}, 0, 0); err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
	if payload["match_count"] != float64(DefaultMatchLimit) {
		t.Errorf("match_count = %v, want %d", payload["match_count"], DefaultMatchLimit)
	}
	if payload["similarity_threshold"] != DefaultMatchThreshold {
		t.Errorf("similarity_threshold = %v, want %v", payload["similarity_threshold"], DefaultMatchThreshold)
	}
}

func TestSupabase_KeywordSearchFilter(t *testing.T) {
	var gotOr string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOr = r.URL.Query().Get("or")
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":               "abc",
				"chapter":          "Fever",
				"section":          "Evaluation",
				"page_number":      120,
				"content":          "Fever without a source in infants.",
				"embedding":        "[0.5,0.5]",
				"keywords":         []string{"fever"},
				"medical_category": "Infectious Diseases",
				"age_group":        "Infant",
			},
		})
	}))
	defer server.Close()

	s := NewSupabase(server.URL, "key", "", "")
	results, err := s.KeywordSearch(context.Background(), "Fever", 5)
	if err != nil {
		t.Fatalf("KeywordSearch: %v", err)
	}
	want := "(content.ilike.*fever*,keywords.cs.{fever})"
	if gotOr != want {
		t.Errorf("or filter = %q, want %q", gotOr, want)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	rec := results[0].Record
	if rec.ID != "abc" || rec.AgeGroup != "Infant" {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Embedding) != 2 || rec.Embedding[0] != 0.5 {
		t.Errorf("embedding = %v, want parsed pgvector text", rec.Embedding)
	}
}

func TestSupabase_CategorySearchFilter(t *testing.T) {
	var gotFilter string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("medical_category")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	s := NewSupabase(server.URL, "key", "", "")
	if _, err := s.CategorySearch(context.Background(), "Cardiology", 10); err != nil {
		t.Fatalf("CategorySearch: %v", err)
	}
	if gotFilter != "eq.Cardiology" {
		t.Errorf("filter = %q, want eq.Cardiology", gotFilter)
	}
}

func TestParseContentRangeTotal(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0-0/1234", 1234, false},
		{"*/7", 7, false},
		{"0-24/*", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseContentRangeTotal(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseContentRangeTotal(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseContentRangeTotal(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseContentRangeTotal(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseVectorText(t *testing.T) {
	got := ParseVectorText("[0.1,0.2,0.3]")
	if len(got) != 3 {
		t.Fatalf("got %d values, want 3", len(got))
	}
	if got[1] != 0.2 {
		t.Errorf("got[1] = %v, want 0.2", got[1])
	}
	if out := ParseVectorText("[]"); out != nil {
		t.Errorf("empty vector = %v, want nil", out)
	}
	if out := ParseVectorText("not a vector"); out != nil {
		t.Errorf("garbage = %v, want nil", out)
	}
}
