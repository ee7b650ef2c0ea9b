// Package redirect resolves a product identifier to its outbound affiliate
// destination with tracking parameters merged in.
package redirect

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/kamazennext/catalog/internal/catalog"
	"github.com/kamazennext/catalog/internal/model"
)

// Resolver errors.
var (
	ErrNotFound           = errors.New("product not found")
	ErrInvalidDestination = errors.New("invalid destination URL")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// Tracking parameter values.
const (
	UTMSource       = "kamazennext"
	UTMMedium       = "affiliate"
	DefaultCampaign = "automation"
	DefaultContent  = "tool"

	maxDestinationLength = 2048
)

// Catalog is the read side of the catalog store.
type Catalog interface {
	Load(ctx context.Context) ([]model.Product, error)
}

// Resolution is a successfully resolved redirect.
type Resolution struct {
	Product     model.Product
	Destination string // rewritten URL for the Location header
	Campaign    string // effective utm_campaign
	Content     string // effective utm_content
}

// Resolver looks products up in the catalog on every call.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a Resolver.
func NewResolver(cat Catalog) *Resolver {
	return &Resolver{catalog: cat}
}

// Resolve finds the product whose slug, or failing that id, equals
// identifier and builds its tracked destination. from becomes utm_campaign
// when non-empty.
func (r *Resolver) Resolve(ctx context.Context, identifier, from string) (*Resolution, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrNotFound
	}

	products, err := r.catalog.Load(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	product, ok := find(products, identifier)
	if !ok {
		return nil, ErrNotFound
	}

	destination := product.Destination()
	if destination == "" {
		return nil, ErrNotFound
	}

	campaign := strings.TrimSpace(from)
	if campaign == "" {
		campaign = slugOr(product.Category, DefaultCampaign)
	}
	content := DefaultContent
	for _, candidate := range []string{product.Slug, product.ID, product.Name} {
		if slug := model.Slugify(candidate); slug != "" {
			content = slug
			break
		}
	}

	rewritten, err := MergeTracking(destination, map[string]string{
		"utm_source":   UTMSource,
		"utm_medium":   UTMMedium,
		"utm_campaign": campaign,
		"utm_content":  content,
	})
	if err != nil {
		return nil, err
	}

	return &Resolution{
		Product:     product,
		Destination: rewritten,
		Campaign:    campaign,
		Content:     content,
	}, nil
}

// find prefers a slug match over an id match.
func find(products []model.Product, identifier string) (model.Product, bool) {
	for _, p := range products {
		if p.Slug != "" && p.Slug == identifier {
			return p, true
		}
	}
	for _, p := range products {
		if p.ID == identifier {
			return p, true
		}
	}
	return model.Product{}, false
}

func slugOr(value, fallback string) string {
	if slug := model.Slugify(value); slug != "" {
		return slug
	}
	return fallback
}

// MergeTracking validates destination and adds each of params whose key is
// absent from its query. Existing keys keep all their values. A query that
// parses is re-encoded with sorted keys; one that does not keeps its bytes
// and gains the missing params at the end. Everything else in the URL is
// preserved.
func MergeTracking(destination string, params map[string]string) (string, error) {
	if len(destination) > maxDestinationLength {
		return "", ErrInvalidDestination
	}

	parsed, err := url.Parse(strings.TrimSpace(destination))
	if err != nil {
		return "", ErrInvalidDestination
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrInvalidDestination
	}
	if parsed.Host == "" || parsed.User != nil {
		return "", ErrInvalidDestination
	}

	query, err := url.ParseQuery(parsed.RawQuery)
	if err != nil {
		// Affiliate networks emit queries Go refuses (";" separators, stray
		// "%"). Keep those bytes as they are and append what is missing.
		parsed.RawQuery = appendMissing(parsed.RawQuery, params)
		return parsed.String(), nil
	}
	for key, value := range params {
		if _, exists := query[key]; !exists {
			query.Set(key, value)
		}
	}

	parsed.RawQuery = query.Encode()
	parsed.ForceQuery = false
	return parsed.String(), nil
}

// appendMissing adds params absent from a raw query that url.ParseQuery
// rejects. Keys are unescaped leniently; existing pairs are kept verbatim and
// new pairs are appended in key order.
func appendMissing(rawQuery string, params map[string]string) string {
	present := make(map[string]bool)
	for _, pair := range strings.Split(rawQuery, "&") {
		key, _, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		present[key] = true
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		if !present[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(rawQuery)
	for _, key := range keys {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[key]))
	}
	return b.String()
}
