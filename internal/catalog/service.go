// Package catalog serves product browsing with cache-aside over the
// key-value store.
package catalog

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/example/ec-storefront/internal/backend"
	"github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

// Backend is the slice of the backend client the catalog reads from.
type Backend interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
	ProductsByCategory(ctx context.Context, categoryID int64) ([]catalog.Product, error)
	SearchProducts(ctx context.Context, keyword string) ([]catalog.Product, error)
	ListCategories(ctx context.Context) ([]catalog.Category, error)
}

type Service struct {
	backend Backend
	cache   *store.JSONCache
	sf      singleflight.Group
}

// NewService creates the catalog. A nil cache disables caching.
func NewService(b Backend, cache *store.JSONCache) *Service {
	return &Service{backend: b, cache: cache}
}

const (
	productsKey   = "products"
	categoriesKey = "categories"
)

func productKey(id int64) string  { return "product:" + strconv.FormatInt(id, 10) }
func categoryKey(id int64) string { return "category:" + strconv.FormatInt(id, 10) }

// cached reads key from the cache, or fetches it once for all concurrent
// callers and stores the result.
func cached[T any](ctx context.Context, s *Service, key string, fetch func(context.Context) (T, error)) (T, error) {
	if s.cache != nil {
		var hit T
		found, err := s.cache.Get(ctx, key, &hit)
		if err != nil {
			log.Printf("[Catalog] Cache error for %s: %v", key, err)
		}
		if found {
			return hit, nil
		}
	}

	// The shared fetch must not die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	val, err, _ := s.sf.Do(key, func() (any, error) {
		v, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(shared, key, v); err != nil {
				log.Printf("[Catalog] Warning: failed to cache %s: %v", key, err)
			}
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return val.(T), nil
}

func (s *Service) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return cached(ctx, s, productsKey, s.backend.ListProducts)
}

func (s *Service) ProductsByCategory(ctx context.Context, categoryID int64) ([]catalog.Product, error) {
	return cached(ctx, s, categoryKey(categoryID), func(ctx context.Context) ([]catalog.Product, error) {
		return s.backend.ProductsByCategory(ctx, categoryID)
	})
}

func (s *Service) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	return cached(ctx, s, categoriesKey, s.backend.ListCategories)
}

// SearchProducts is not cached; the keyword goes to the backend unchanged.
func (s *Service) SearchProducts(ctx context.Context, keyword string) ([]catalog.Product, error) {
	return s.backend.SearchProducts(ctx, keyword)
}

func (s *Service) Product(ctx context.Context, id int64) (catalog.Product, error) {
	p, err := cached(ctx, s, productKey(id), func(ctx context.Context) (catalog.Product, error) {
		return s.backend.GetProduct(ctx, id)
	})
	return p, mapNotFound(id, err)
}

// FreshProduct bypasses the cache for an up-to-date stock quantity and
// refreshes the cached entry.
func (s *Service) FreshProduct(ctx context.Context, id int64) (catalog.Product, error) {
	p, err := s.backend.GetProduct(ctx, id)
	if err != nil {
		return catalog.Product{}, mapNotFound(id, err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, productKey(id), p); err != nil {
			log.Printf("[Catalog] Warning: failed to cache product %d: %v", id, err)
		}
	}
	return p, nil
}

// Invalidate drops cached entries whose stock may have changed, e.g. after an
// order was placed. Category lists go too: the product's own when its cached
// entry names one, otherwise every category the cache knows about.
func (s *Service) Invalidate(ctx context.Context, productIDs ...int64) {
	if s.cache == nil {
		return
	}
	keys := []string{productsKey}
	categories := map[int64]struct{}{}
	allCategories := false
	for _, id := range productIDs {
		var p catalog.Product
		found, err := s.cache.Get(ctx, productKey(id), &p)
		if err != nil || !found || p.CategoryID == 0 {
			allCategories = true
		} else {
			categories[p.CategoryID] = struct{}{}
		}
		keys = append(keys, productKey(id))
	}
	if allCategories {
		var all []catalog.Category
		if _, err := s.cache.Get(ctx, categoriesKey, &all); err != nil {
			log.Printf("[Catalog] Cache error for %s: %v", categoriesKey, err)
		}
		for _, c := range all {
			categories[c.ID] = struct{}{}
		}
	}
	for id := range categories {
		keys = append(keys, categoryKey(id))
	}

	for _, k := range keys {
		if err := s.cache.Delete(ctx, k); err != nil {
			log.Printf("[Catalog] Warning: failed to invalidate %s: %v", k, err)
		}
	}
}

func mapNotFound(id int64, err error) error {
	if err != nil && backend.IsNotFound(err) {
		return fmt.Errorf("product %d: %w", id, catalog.ErrProductNotFound)
	}
	return err
}
