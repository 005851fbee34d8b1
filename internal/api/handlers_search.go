package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgallion1/pedigest/internal/store"
)

type searchRequest struct {
	Query     string  `json:"query"`
	Mode      string  `json:"mode,omitempty"`
	Threshold float32 `json:"threshold,omitempty"`
	Limit     int     `json:"limit,omitempty"`
}

type searchHit struct {
	ID         string  `json:"id"`
	Chapter    string  `json:"chapter"`
	Section    string  `json:"section"`
	Content    string  `json:"content"`
	Category   string  `json:"medical_category"`
	AgeGroup   string  `json:"age_group"`
	PageNumber int     `json:"page_number"`
	Similarity float32 `json:"similarity,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = "semantic"
	}
	limit := req.Limit
	if limit <= 0 {
		limit = store.DefaultMatchLimit
	}
	threshold := req.Threshold
	if threshold <= 0 {
		threshold = store.DefaultMatchThreshold
	}

	ctx := r.Context()
	st := s.orchestrator.Store()

	var (
		results []store.SearchResult
		err     error
	)
	switch mode {
	case "semantic":
		vectors, embErr := s.orchestrator.Embedder().Embed(ctx, []string{req.Query})
		if embErr != nil {
			jsonError(w, "failed to embed query: "+embErr.Error(), http.StatusBadGateway)
			return
		}
		results, err = st.SemanticSearch(ctx, vectors[0], threshold, limit)
	case "keyword":
		results, err = st.KeywordSearch(ctx, req.Query, limit)
	case "category":
		results, err = st.CategorySearch(ctx, req.Query, limit)
	default:
		jsonError(w, fmt.Sprintf("unknown search mode %q", mode), http.StatusBadRequest)
		return
	}
	if err != nil {
		jsonError(w, "search failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{
			ID:         res.Record.ID,
			Chapter:    res.Record.Chapter,
			Section:    res.Record.Section,
			Content:    res.Record.Content,
			Category:   res.Record.MedicalCategory,
			AgeGroup:   res.Record.AgeGroup,
			PageNumber: res.Record.PageNumber,
			Similarity: res.Similarity,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"mode":    mode,
		"count":   len(hits),
		"results": hits,
	})
}
