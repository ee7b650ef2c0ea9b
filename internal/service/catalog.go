// Package service provides the admin-facing catalog operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kamazennext/catalog/internal/catalog"
	"github.com/kamazennext/catalog/internal/metrics"
	"github.com/kamazennext/catalog/internal/model"
)

// Service errors.
var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
	ErrIDTaken         = errors.New("product id already exists")
	ErrSlugTaken       = errors.New("product slug already exists")
)

// Store is the part of the catalog store the service needs.
type Store interface {
	Load(ctx context.Context) ([]model.Product, error)
	LoadOrEmpty(ctx context.Context) []model.Product
	Update(ctx context.Context, fn catalog.UpdateFunc) error
	ListBackups() ([]catalog.BackupInfo, error)
}

// CatalogService handles single-product edits.
type CatalogService struct {
	store   Store
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(store Store, logger *slog.Logger, recorder metrics.Recorder) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CatalogService{
		store:   store,
		logger:  logger.With("component", "service.catalog"),
		metrics: recorder,
		now:     time.Now,
	}
}

// List returns the full catalog in file order for the admin.
// A missing catalog is empty; a corrupt one is an error.
func (s *CatalogService) List(ctx context.Context) ([]model.Product, error) {
	products, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return []model.Product{}, nil
		}
		return nil, err
	}
	return products, nil
}

// Get returns one product by id.
func (s *CatalogService) Get(ctx context.Context, id string) (*model.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexByID(products, id); i >= 0 {
		return &products[i], nil
	}
	return nil, ErrProductNotFound
}

// PublicList returns the storefront listing. Read failures degrade to an
// empty catalog.
func (s *CatalogService) PublicList(ctx context.Context) []model.Product {
	products := s.store.LoadOrEmpty(ctx)
	model.SortForDisplay(products)
	return products
}

// PublicGet finds a product by slug, falling back to id.
func (s *CatalogService) PublicGet(ctx context.Context, slug string) (*model.Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrProductNotFound
	}

	products := s.store.LoadOrEmpty(ctx)
	for i := range products {
		if strings.EqualFold(products[i].Slug, slug) {
			return &products[i], nil
		}
	}
	for i := range products {
		if products[i].ID == slug {
			return &products[i], nil
		}
	}
	return nil, ErrProductNotFound
}

// Backups lists catalog snapshots, newest first.
func (s *CatalogService) Backups() ([]catalog.BackupInfo, error) {
	return s.store.ListBackups()
}

// Save creates or replaces one product.
//
// originalID is the id the product had when the edit began; empty means a
// new product. The id may change on edit as long as the new one is free.
// Reviews are normalized and the slug defaults to the slugified name (then
// id) when that slug is free. The whole check-and-write runs under the
// catalog lock.
func (s *CatalogService) Save(ctx context.Context, originalID string, input model.Product) (*model.Product, error) {
	p := input
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Slug = strings.TrimSpace(p.Slug)
	originalID = strings.TrimSpace(originalID)

	ts := s.now()
	p.Reviews = normalizeReviews(p.Reviews, ts)
	if p.LastUpdated == "" {
		p.LastUpdated = ts.UTC().Format("2006-01-02")
	}

	if err := validateProduct(&p); err != nil {
		return nil, err
	}

	err := s.store.Update(ctx, func(products []model.Product) ([]model.Product, error) {
		existing := -1
		if originalID != "" {
			existing = indexByID(products, originalID)
			if existing < 0 {
				return nil, ErrProductNotFound
			}
		}

		for i := range products {
			if i == existing {
				continue
			}
			if products[i].ID == p.ID {
				return nil, fmt.Errorf("%w: %q", ErrIDTaken, p.ID)
			}
		}

		taken := func(slug string) bool {
			for i := range products {
				if i != existing && strings.EqualFold(products[i].Slug, slug) {
					return true
				}
			}
			return false
		}

		if p.Slug != "" {
			if taken(p.Slug) {
				return nil, fmt.Errorf("%w: %q", ErrSlugTaken, p.Slug)
			}
		} else {
			for _, candidate := range []string{model.Slugify(p.Name), model.Slugify(p.ID)} {
				if candidate != "" && !taken(candidate) {
					p.Slug = candidate
					break
				}
			}
		}

		p.RecomputeRating()

		if existing >= 0 {
			products[existing] = p
			return products, nil
		}
		return append(products, p), nil
	})
	if err != nil {
		s.recordSave(err)
		return nil, err
	}
	s.recordSave(nil)
	s.metrics.IncProductSaved()

	s.logger.Info("product saved",
		"product_id", p.ID,
		"original_id", originalID,
		"slug", p.Slug,
		"reviews", len(p.Reviews),
	)
	return &p, nil
}

// Delete removes a product. The write snapshots the catalog first, so the
// newest backup holds the deleted record.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrProductNotFound
	}

	err := s.store.Update(ctx, func(products []model.Product) ([]model.Product, error) {
		i := indexByID(products, id)
		if i < 0 {
			return nil, ErrProductNotFound
		}
		return append(products[:i:i], products[i+1:]...), nil
	})
	if err != nil {
		s.recordSave(err)
		return err
	}
	s.recordSave(nil)
	s.metrics.IncProductDeleted()

	s.logger.Info("product deleted", "product_id", id)
	return nil
}

// recordSave counts catalog writes. Rejections decided before anything is
// written do not count as failed saves.
func (s *CatalogService) recordSave(err error) {
	switch {
	case err == nil:
		s.metrics.IncCatalogSave("success")
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrIDTaken), errors.Is(err, ErrSlugTaken):
	default:
		s.metrics.IncCatalogSave("failed")
	}
}

func indexByID(products []model.Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

// normalizeReviews drops reviews with no author, title or body, clamps
// ratings and gives every review a unique id.
func normalizeReviews(reviews []model.Review, now time.Time) []model.Review {
	out := make([]model.Review, 0, len(reviews))
	seen := make(map[string]bool, len(reviews))

	for _, r := range reviews {
		r.Author = strings.TrimSpace(r.Author)
		r.Title = strings.TrimSpace(r.Title)
		r.Body = strings.TrimSpace(r.Body)
		if r.Author == "" && r.Title == "" && r.Body == "" {
			continue
		}

		if r.Rating != nil {
			clamped := model.ClampRating(*r.Rating)
			r.Rating = &clamped
		}

		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" || seen[r.ID] {
			r.ID = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
		}
		seen[r.ID] = true

		if r.Date == "" {
			r.Date = now.UTC().Format("2006-01-02")
		}
		out = append(out, r)
	}

	return out
}
