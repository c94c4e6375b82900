// Package search provides full-text keyword search over recovered code
// stages, backed by an in-memory bleve index built from the audit
// database.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/procsight/procsight/internal/storage"
)

// Searcher defines the interface for code stage keyword search.
type Searcher interface {
	// Search executes a keyword search using FTS query syntax.
	// Supports field scoping, boolean operators, phrase search,
	// wildcards, and fuzzy matching. Options may be nil.
	Search(ctx context.Context, queryStr string, options *Options) ([]*Result, error)

	// Close releases the index.
	Close() error
}

// Options narrow a search.
type Options struct {
	Language string // exact language filter: "VB", "C#", "Unknown"
	Object   string // wildcard filter on object name
	Limit    int    // max hits; defaults to 15, capped at 100
}

// Result is one matching code stage with highlighting.
type Result struct {
	ObjectName string   `json:"object_name"`
	PageName   string   `json:"page_name"`
	StageName  string   `json:"stage_name"`
	Language   string   `json:"language"`
	SHA256     string   `json:"sha256"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights"` // matching snippets with <em> tags
}

type searcher struct {
	index bleve.Index
}

// New builds an in-memory index over every code stage in the database.
func New(db *sql.DB) (Searcher, error) {
	stages, err := storage.NewReader(db).CodeStages("")
	if err != nil {
		return nil, err
	}

	index, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}

	const batchSize = 1000
	batch := index.NewBatch()
	for i, st := range stages {
		doc := map[string]interface{}{
			"object_name": st.ObjectName,
			"page_name":   st.PageName,
			"stage_name":  st.StageName,
			"language":    st.Language,
			"sha256":      st.SHA256,
			"code":        st.CodeText,
		}
		// Stage ids repeat across objects in pathological exports,
		// so the document key carries the object id too.
		key := fmt.Sprintf("%s/%s/%d", st.ObjectID, st.StageID, i)
		if err := batch.Index(key, doc); err != nil {
			index.Close()
			return nil, fmt.Errorf("index code stage %s: %w", key, err)
		}
		if batch.Size() >= batchSize {
			if err := index.Batch(batch); err != nil {
				index.Close()
				return nil, fmt.Errorf("execute index batch: %w", err)
			}
			batch = index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			index.Close()
			return nil, fmt.Errorf("execute index batch: %w", err)
		}
	}

	return &searcher{index: index}, nil
}

// buildMapping creates the index mapping for code stage documents.
// Code is the primary search target; identity fields use the keyword
// analyzer for exact filtering.
func buildMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	codeMapping := bleve.NewTextFieldMapping()
	codeMapping.Analyzer = "standard"
	codeMapping.Store = true
	codeMapping.Index = true
	codeMapping.IncludeTermVectors = true // enable phrase search

	nameMapping := bleve.NewTextFieldMapping()
	nameMapping.Analyzer = "standard"
	nameMapping.Store = true
	nameMapping.Index = true

	keywordMapping := bleve.NewTextFieldMapping()
	keywordMapping.Analyzer = "keyword"
	keywordMapping.Store = true
	keywordMapping.Index = true

	storedOnly := bleve.NewTextFieldMapping()
	storedOnly.Analyzer = "keyword"
	storedOnly.Store = true
	storedOnly.Index = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("code", codeMapping)
	docMapping.AddFieldMappingsAt("object_name", nameMapping)
	docMapping.AddFieldMappingsAt("page_name", nameMapping)
	docMapping.AddFieldMappingsAt("stage_name", nameMapping)
	docMapping.AddFieldMappingsAt("language", keywordMapping)
	docMapping.AddFieldMappingsAt("sha256", storedOnly)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func (s *searcher) Search(ctx context.Context, queryStr string, options *Options) ([]*Result, error) {
	if options == nil {
		options = &Options{}
	}
	limit := options.Limit
	if limit <= 0 || limit > 100 {
		limit = 15
	}

	var queries []query.Query
	queries = append(queries, bleve.NewQueryStringQuery(queryStr))

	if options.Language != "" {
		langQuery := bleve.NewTermQuery(options.Language)
		langQuery.SetField("language")
		queries = append(queries, langQuery)
	}
	if options.Object != "" {
		objQuery := bleve.NewWildcardQuery(options.Object)
		objQuery.SetField("object_name")
		queries = append(queries, objQuery)
	}

	var finalQuery query.Query
	if len(queries) == 1 {
		finalQuery = queries[0]
	} else {
		finalQuery = bleve.NewConjunctionQuery(queries...)
	}

	req := bleve.NewSearchRequestOptions(finalQuery, limit, 0, false)
	highlightStyle := "html"
	req.Highlight = bleve.NewHighlight()
	req.Highlight.Style = &highlightStyle
	req.Highlight.Fields = []string{"code"}
	req.Fields = []string{"object_name", "page_name", "stage_name", "language", "sha256"}

	searchResult, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*Result, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		r := &Result{Score: hit.Score}
		r.ObjectName, _ = hit.Fields["object_name"].(string)
		r.PageName, _ = hit.Fields["page_name"].(string)
		r.StageName, _ = hit.Fields["stage_name"].(string)
		r.Language, _ = hit.Fields["language"].(string)
		r.SHA256, _ = hit.Fields["sha256"].(string)
		r.Highlights = extractHighlights(hit.Fragments)
		results = append(results, r)
	}
	return results, nil
}

func (s *searcher) Close() error {
	return s.index.Close()
}

// extractHighlights flattens bleve fragment maps into a stable list.
func extractHighlights(fragments map[string][]string) []string {
	var out []string
	fields := make([]string, 0, len(fragments))
	for field := range fragments {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		out = append(out, fragments[field]...)
	}
	return out
}
