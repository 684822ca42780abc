package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-fulfillment/core"
)

const bookCacheKeyPrefix = "go-fulfillment::book::v1"

// CachedBookStore layers a read cache over catalog lookups. The catalog
// changes rarely relative to webhook traffic, so cached reads answer the
// handle resolution on every delivery.
type CachedBookStore struct {
	base  core.CatalogStore
	cache repositorycache.CacheService
}

func NewCachedBookStore(base core.CatalogStore, cacheService repositorycache.CacheService) (*CachedBookStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base book store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: book cache service is required")
	}
	return &CachedBookStore{base: base, cache: cacheService}, nil
}

// BookHandleCacheKey is the deterministic key contract for handle reads:
// go-fulfillment::book::v1::handle::<handle> with the handle URL-path escaped
// after normalization.
func BookHandleCacheKey(handle string) string {
	return bookCacheKeyPrefix + "::handle::" + url.PathEscape(core.NormalizeHandle(handle))
}

func BookIDCacheKey(id int64) string {
	return bookCacheKeyPrefix + "::id::" + strconv.FormatInt(id, 10)
}

func FreeBookIDsCacheKey() string {
	return bookCacheKeyPrefix + "::free"
}

func (s *CachedBookStore) GetByHandles(ctx context.Context, handles []string) (map[string]core.BookRef, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached book store is not configured")
	}
	out := make(map[string]core.BookRef, len(handles))
	for _, handle := range handles {
		normalized := core.NormalizeHandle(handle)
		if normalized == "" {
			continue
		}
		if _, exists := out[normalized]; exists {
			continue
		}
		book, err := repositorycache.GetOrFetch(ctx, s.cache, BookHandleCacheKey(normalized), func(ctx context.Context) (core.BookRef, error) {
			fetched, fetchErr := s.base.GetByHandles(ctx, []string{normalized})
			if fetchErr != nil {
				return core.BookRef{}, fetchErr
			}
			book, ok := fetched[normalized]
			if !ok {
				return core.BookRef{}, fmt.Errorf("sqlstore: book %q: %w", normalized, core.ErrBookNotFound)
			}
			return book, nil
		})
		if err != nil {
			// Missing handles are an expected outcome, not a failure.
			continue
		}
		out[normalized] = book
	}
	return out, nil
}

func (s *CachedBookStore) GetByID(ctx context.Context, id int64) (core.BookRef, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.BookRef{}, fmt.Errorf("sqlstore: cached book store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, BookIDCacheKey(id), func(ctx context.Context) (core.BookRef, error) {
		return s.base.GetByID(ctx, id)
	})
}

func (s *CachedBookStore) FreeBookIDs(ctx context.Context) ([]int64, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached book store is not configured")
	}
	ids, err := repositorycache.GetOrFetch(ctx, s.cache, FreeBookIDsCacheKey(), func(ctx context.Context) ([]int64, error) {
		return s.base.FreeBookIDs(ctx)
	})
	if err != nil {
		return nil, err
	}
	return append([]int64(nil), ids...), nil
}

// Invalidate drops cached entries for a book after a catalog change.
func (s *CachedBookStore) Invalidate(ctx context.Context, handle string, id int64) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached book store is not configured")
	}
	if err := s.cache.Delete(ctx, BookHandleCacheKey(handle)); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, BookIDCacheKey(id)); err != nil {
		return err
	}
	return s.cache.Delete(ctx, FreeBookIDsCacheKey())
}

var _ core.CatalogStore = (*CachedBookStore)(nil)
