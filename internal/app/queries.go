package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stayfinder/internal/domain"
)

// CatalogService serves the browse/search side: property detail and filtered
// listings, cache-aside over redis.
type CatalogService struct {
	repo     domain.PropertyRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewCatalogService(r domain.PropertyRepository, c domain.Cache, ttl time.Duration) *CatalogService {
	return &CatalogService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *CatalogService) GetProperty(ctx context.Context, id int64) (domain.Property, error) {
	key := fmt.Sprintf("property:%d", id)
	var p domain.Property
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &p); ok {
			return p, nil
		}
	}
	p, err := s.repo.GetProperty(ctx, id)
	if err != nil {
		return domain.Property{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, p, int(s.cacheTTL.Seconds()))
	}
	return p, nil
}

// ListProperties caches only the unfiltered default page; filtered searches
// go straight through, their key space is unbounded.
func (s *CatalogService) ListProperties(ctx context.Context, q domain.PropertiesQuery) (domain.PropertiesPage, error) {
	cacheable := s.cache != nil &&
		q.Location == nil && q.Type == nil && q.MinPrice == nil && q.MaxPrice == nil &&
		q.MinRating == nil && q.Guests == nil && q.Amenity == nil && q.Cursor == nil

	key := fmt.Sprintf("properties:%d", q.Limit)
	if cacheable {
		var out domain.PropertiesPage
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	page, err := s.repo.ListProperties(ctx, q)
	if err != nil {
		return domain.PropertiesPage{}, err
	}

	if cacheable {
		// copy slice to avoid aliasing the repo's backing array
		cp := deepCopyPropertiesPage(page)
		if b, _ := json.Marshal(cp); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
		}
		return cp, nil
	}
	return page, nil
}

func deepCopyPropertiesPage(in domain.PropertiesPage) domain.PropertiesPage {
	out := domain.PropertiesPage{NextCursor: in.NextCursor}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Property, n)
		copy(out.Items, in.Items)
	}
	return out
}
