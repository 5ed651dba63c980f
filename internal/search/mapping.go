package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	unicodetokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

// textAnalyzer splits on Unicode word boundaries and lowercases. There is no
// stemming so fuzzy edit distances are measured against the surface form:
// "databse" is one edit from "database", not from "databas".
const textAnalyzer = "kb_text"

// buildIndexMapping creates the mapping for article documents.
//
//   - title, description, tag_names: full text, folded before indexing
//   - tag_ids: keyword, exact match on opaque IDs
//
// Nothing is stored; hits are resolved against the collection by ID.
func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(textAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicodetokenizer.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = textAnalyzer

	docMapping := bleve.NewDocumentMapping()

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = textAnalyzer
	titleField.Store = false
	docMapping.AddFieldMappingsAt(fieldTitle, titleField)

	descField := bleve.NewTextFieldMapping()
	descField.Analyzer = textAnalyzer
	descField.Store = false
	descField.IncludeTermVectors = false
	docMapping.AddFieldMappingsAt(fieldDescription, descField)

	tagNamesField := bleve.NewTextFieldMapping()
	tagNamesField.Analyzer = textAnalyzer
	tagNamesField.Store = false
	docMapping.AddFieldMappingsAt(fieldTagNames, tagNamesField)

	tagIDsField := bleve.NewTextFieldMapping()
	tagIDsField.Analyzer = keyword.Name
	tagIDsField.Store = false
	tagIDsField.IncludeInAll = false
	docMapping.AddFieldMappingsAt(fieldTagIDs, tagIDsField)

	indexMapping.DefaultMapping = docMapping

	return indexMapping, nil
}
