package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	streamkit "github.com/goliatone/go-streamkit/components/streamkit"
)

// CatalogInput filters the variable catalog.
type CatalogInput struct {
	// IncludeImages keeps `_img` variables, which the builder hides by default.
	IncludeImages bool   `json:"include_images"`
	Category      string `json:"category,omitempty"`
}

// CatalogResult lists variables and their categories.
type CatalogResult struct {
	Variables  []streamkit.Variable `json:"variables"`
	Categories []string             `json:"categories"`
}

type catalogService interface {
	Catalog(ctx context.Context) (*streamkit.Catalog, error)
}

// CatalogQuery exposes the template variable catalog.
type CatalogQuery struct {
	service catalogService
}

// NewCatalogQuery builds the query.
func NewCatalogQuery(service catalogService) *CatalogQuery {
	return &CatalogQuery{service: service}
}

var _ gocommand.Querier[CatalogInput, CatalogResult] = (*CatalogQuery)(nil)

// Query loads the catalog and applies the filters.
func (q *CatalogQuery) Query(ctx context.Context, input CatalogInput) (CatalogResult, error) {
	catalog, err := q.service.Catalog(ctx)
	if err != nil {
		return CatalogResult{}, err
	}
	vars := catalog.Selectable()
	if input.IncludeImages {
		vars = catalog.Variables()
	}
	out := make([]streamkit.Variable, 0, len(vars))
	for _, v := range vars {
		if input.Category != "" && v.Category != input.Category {
			continue
		}
		out = append(out, v)
	}
	return CatalogResult{Variables: out, Categories: catalog.Categories()}, nil
}
