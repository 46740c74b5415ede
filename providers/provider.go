package providers

import (
	"context"

	"slr-manager/models"
	"slr-manager/providers/europepmc"
	"slr-manager/providers/reviewservice"
	"slr-manager/providers/searchservice"
)

// SearchService ist die Sicht des Review-Service auf den Search-Service.
type SearchService interface {
	// DeleteFormInstances entfernt alle Instanzen eines Formulars. Idempotent auf der Gegenseite.
	DeleteFormInstances(ctx context.Context, formID uint) error

	// CreateSearch legt eine Suche für eine Datenquelle an.
	CreateSearch(ctx context.Context, dataSourceID uint, in searchservice.CreateSearchRequest) (*searchservice.SearchResponse, error)
}

// ReviewService ist die Sicht des Search-Service auf den Review-Service.
type ReviewService interface {
	SelectionCriteria(ctx context.Context, protocolID uint) ([]reviewservice.Criteria, error)
	FormData(ctx context.Context, protocolID uint, role models.FormRole) (*reviewservice.FormData, error)
}

// LiteratureSearch findet Studien in einer externen Literaturdatenbank.
type LiteratureSearch interface {
	Search(ctx context.Context, query string, limit int) ([]europepmc.Hit, error)
}

var (
	_ SearchService    = (*searchservice.Client)(nil)
	_ ReviewService    = (*reviewservice.Client)(nil)
	_ LiteratureSearch = (*europepmc.Client)(nil)
)
