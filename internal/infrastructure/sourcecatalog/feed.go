package sourcecatalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/infrastructure/retry"
)

// ErrFeedMissingURL indicates the feed URL is not set
var ErrFeedMissingURL = errors.New("sourcecatalog: missing feed URL")

// FeedConfig points at a JSON product feed exposed by a source system that
// has no dedicated adapter.
type FeedConfig struct {
	// Name identifies the source in group keys, e.g. "supplier-feed"
	Name string
	// URL is the feed endpoint
	URL string
	// BearerToken authenticates the request when set
	BearerToken string
	// TimeoutSeconds bounds the HTTP call (default 60; feeds can be large)
	TimeoutSeconds int
	// Primary marks this source as authoritative for SKU dedup
	Primary bool
}

// feedItem is one entry of the feed's items array.
type feedItem struct {
	SKU            string                         `json:"sku"`
	Title          string                         `json:"title"`
	VariantTitle   string                         `json:"variant_title"`
	Price          string                         `json:"price"`
	CompareAtPrice string                         `json:"compare_at_price"`
	Currency       string                         `json:"currency"`
	Stock          int                            `json:"stock"`
	Images         []string                       `json:"images"`
	Description    string                         `json:"description"`
	ProductType    string                         `json:"product_type"`
	Vendor         string                         `json:"vendor"`
	Tags           []string                       `json:"tags"`
	Barcode        string                         `json:"barcode"`
	ProductID      string                         `json:"product_id"`
	VariantID      string                         `json:"variant_id"`
	Collections    []catalogsync.SourceCollection `json:"collections"`
	UpdatedAt      time.Time                      `json:"updated_at"`
}

// FeedFetcher reads catalog items from a plain JSON feed.
type FeedFetcher struct {
	config     *FeedConfig
	httpClient *http.Client
}

// NewFeedFetcher creates a fetcher for one feed.
func NewFeedFetcher(config *FeedConfig) (*FeedFetcher, error) {
	if strings.TrimSpace(config.URL) == "" {
		return nil, ErrFeedMissingURL
	}
	timeout := config.TimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	return &FeedFetcher{
		config:     config,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

// SourcePlatform identifies the feed in catalog items and group keys
func (f *FeedFetcher) SourcePlatform() string {
	if f.config.Name != "" {
		return "feed:" + f.config.Name
	}
	return "feed"
}

// FetchSourceCatalog downloads and converts the whole feed.
func (f *FeedFetcher) FetchSourceCatalog(ctx context.Context) ([]catalogsync.CatalogItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("sourcecatalog: create feed request: %w", err)
	}
	if f.config.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.config.BearerToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sourcecatalog: fetch feed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceResponseSize))
	if err != nil {
		return nil, fmt.Errorf("sourcecatalog: read feed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfterSeconds(resp.Header.Get("Retry-After")),
			Message:    strings.TrimSpace(string(raw)),
		}
	}

	var feed struct {
		Items []feedItem `json:"items"`
	}
	if err := json.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("sourcecatalog: decode feed: %w", err)
	}

	items := make([]catalogsync.CatalogItem, 0, len(feed.Items))
	for _, fi := range feed.Items {
		items = append(items, catalogsync.CatalogItem{
			SKU:            fi.SKU,
			Title:          fi.Title,
			VariantTitle:   fi.VariantTitle,
			Price:          parseSourceDecimal(fi.Price),
			CompareAtPrice: parseSourceDecimal(fi.CompareAtPrice),
			Currency:       fi.Currency,
			Stock:          fi.Stock,
			Images:         fi.Images,
			Description:    fi.Description,
			ProductType:    fi.ProductType,
			Vendor:         fi.Vendor,
			Tags:           fi.Tags,
			Barcode:        fi.Barcode,
			ProductID:      fi.ProductID,
			VariantID:      fi.VariantID,
			Collections:    fi.Collections,
			SourcePlatform: f.SourcePlatform(),
			PrimarySource:  f.config.Primary,
			UpdatedAt:      fi.UpdatedAt,
		})
	}
	return items, nil
}

// Ensure the fetcher implements the source catalog port
var _ catalogsync.SourceCatalogFetcher = (*FeedFetcher)(nil)
