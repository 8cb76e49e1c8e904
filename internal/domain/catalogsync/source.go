package catalogsync

import "context"

// SourceCatalogFetcher pulls the full catalog from one source platform. The
// engine treats fetchers as black boxes; implementations live in
// infrastructure and are registered per source platform.
type SourceCatalogFetcher interface {
	// SourcePlatform names the platform this fetcher reads from
	SourcePlatform() string

	// FetchSourceCatalog returns every sellable variant of the source store
	FetchSourceCatalog(ctx context.Context) ([]CatalogItem, error)
}

// SourceFetcherFunc adapts a function to the SourceCatalogFetcher interface.
type SourceFetcherFunc struct {
	Platform string
	Fetch    func(ctx context.Context) ([]CatalogItem, error)
}

// SourcePlatform names the platform this fetcher reads from
func (f SourceFetcherFunc) SourcePlatform() string { return f.Platform }

// FetchSourceCatalog returns every sellable variant of the source store
func (f SourceFetcherFunc) FetchSourceCatalog(ctx context.Context) ([]CatalogItem, error) {
	return f.Fetch(ctx)
}
