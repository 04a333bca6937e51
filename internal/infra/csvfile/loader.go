package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"personality-quiz-service/internal/domain"
)

// Loader reads the question catalog from a CSV file with a header row.
// Required columns: text, facet (matched case-insensitively); extra columns
// are ignored.
type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

func (l *Loader) LoadCatalog(_ context.Context, catalogID string) (domain.Catalog, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: open %s: %v", domain.ErrCatalogNotFound, l.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: read header: %v", domain.ErrCatalogNotFound, err)
	}
	textCol, facetCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "text", "question":
			textCol = i
		case "facet":
			facetCol = i
		}
	}
	if textCol < 0 || facetCol < 0 {
		return domain.Catalog{}, fmt.Errorf("%w: missing text/facet columns in %s", domain.ErrCatalogNotFound, l.path)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: read rows: %v", domain.ErrCatalogNotFound, err)
	}

	questions := make([]domain.Question, 0, len(rows))
	for _, row := range rows {
		if textCol >= len(row) || facetCol >= len(row) {
			continue
		}
		text := strings.TrimSpace(row[textCol])
		facet := strings.TrimSpace(row[facetCol])
		if text == "" {
			continue
		}
		questions = append(questions, domain.Question{Text: text, Facet: facet})
	}
	if len(questions) == 0 {
		return domain.Catalog{}, fmt.Errorf("%w: %s has no questions", domain.ErrCatalogNotFound, l.path)
	}
	return domain.Catalog{ID: catalogID, Questions: questions}, nil
}
