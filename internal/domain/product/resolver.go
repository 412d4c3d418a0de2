package product

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/promo-engine/internal/cache"
)

const categoryKeyPrefix = "category:"

// CategoryResolver maps product ids to category ids through a read-through
// cache. Concurrent lookups for the same set of missing ids share one
// repository query.
type CategoryResolver struct {
	products Repository
	cache    cache.Cache
	ttl      time.Duration
	group    singleflight.Group
}

// NewCategoryResolver creates a resolver that keeps categories in c for ttl.
func NewCategoryResolver(products Repository, c cache.Cache, ttl time.Duration) *CategoryResolver {
	return &CategoryResolver{
		products: products,
		cache:    c,
		ttl:      ttl,
	}
}

// Categories returns the category of each known product in ids. Products
// that do not exist are absent from the result. Cache failures are logged
// and fall back to the repository.
func (r *CategoryResolver) Categories(ctx context.Context, ids []string) (map[string]string, error) {
	ids = distinct(ids)
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = categoryKeyPrefix + id
	}
	hits, err := r.cache.GetMulti(ctx, keys)
	if err != nil {
		zctx.From(ctx).Warn("Category cache read failed", zap.Error(err))
		hits = nil
	}

	var misses []string
	for i, id := range ids {
		if v, ok := hits[keys[i]]; ok {
			if v != "" {
				out[id] = v
			}
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	slices.Sort(misses)
	v, err, _ := r.group.Do(strings.Join(misses, ","), func() (any, error) {
		return r.load(ctx, misses)
	})
	if err != nil {
		return nil, err
	}
	for id, cat := range v.(map[string]string) {
		if cat != "" {
			out[id] = cat
		}
	}
	return out, nil
}

func (r *CategoryResolver) load(ctx context.Context, ids []string) (map[string]string, error) {
	products, err := r.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	loaded := make(map[string]string, len(products))
	entries := make(map[string]string, len(products))
	for _, p := range products {
		loaded[p.ID] = p.CategoryID
		entries[categoryKeyPrefix+p.ID] = p.CategoryID
	}

	if err := r.cache.SetMulti(ctx, entries, r.ttl); err != nil {
		zctx.From(ctx).Warn("Category cache write failed", zap.Error(err))
	}
	return loaded, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
