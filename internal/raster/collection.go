package raster

import (
	"context"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/canopylabs/canopy/internal/domain"
)

// defaultParallelLoads bounds concurrent payload loads per collection.
const defaultParallelLoads = 8

// MapFunc transforms one materialized image.
type MapFunc func(ctx context.Context, img *Image) (*Image, error)

type source struct {
	catalog Catalog
	filter  domain.SceneFilter
	ops     []MapFunc
}

// Collection is a lazy, filterable view over catalog scenes. Filters and
// maps compose without touching the catalog; nothing loads until Size,
// Images, First or Mosaic runs. Collections are immutable: every method
// returns a derived collection.
type Collection struct {
	sources  []source
	limit    int
	parallel int
}

// NewCollection opens a lazy view over one sensor's scenes.
func NewCollection(catalog Catalog, sensor string) *Collection {
	return &Collection{
		sources:  []source{{catalog: catalog, filter: domain.SceneFilter{Sensor: sensor}}},
		parallel: defaultParallelLoads,
	}
}

func (c *Collection) clone() *Collection {
	n := &Collection{
		sources:  make([]source, len(c.sources)),
		limit:    c.limit,
		parallel: c.parallel,
	}
	for i, s := range c.sources {
		n.sources[i] = source{
			catalog: s.catalog,
			filter:  s.filter,
			ops:     append([]MapFunc(nil), s.ops...),
		}
	}
	return n
}

// WithParallelism bounds concurrent payload loads during materialization.
func (c *Collection) WithParallelism(n int) *Collection {
	out := c.clone()
	if n > 0 {
		out.parallel = n
	}
	return out
}

// FilterBounds keeps scenes whose footprint intersects the bound.
func (c *Collection) FilterBounds(bound orb.Bound) *Collection {
	out := c.clone()
	for i := range out.sources {
		out.sources[i].filter.Bounds = bound
	}
	return out
}

// FilterDate keeps scenes acquired in [start, end). The end is exclusive.
func (c *Collection) FilterDate(start, end time.Time) *Collection {
	out := c.clone()
	for i := range out.sources {
		out.sources[i].filter.StartDate = start
		out.sources[i].filter.EndDate = end
	}
	return out
}

// FilterCloudCover keeps scenes at or below the given scene cloud cover.
func (c *Collection) FilterCloudCover(max float64) *Collection {
	out := c.clone()
	for i := range out.sources {
		out.sources[i].filter.MaxCloudCover = max
	}
	return out
}

// FilterCalendar keeps scenes whose acquisition month falls in the
// inclusive range. Ranges may wrap the year end, e.g. 11 through 2.
func (c *Collection) FilterCalendar(startMonth, endMonth int) *Collection {
	out := c.clone()
	for i := range out.sources {
		out.sources[i].filter.StartMonth = startMonth
		out.sources[i].filter.EndMonth = endMonth
	}
	return out
}

// Limit caps how many scenes materialize, applied to the merged
// acquisition-ordered scene list before any payload loads.
func (c *Collection) Limit(n int) *Collection {
	out := c.clone()
	out.limit = n
	return out
}

// Map queues fn to run on every materialized image.
func (c *Collection) Map(fn MapFunc) *Collection {
	out := c.clone()
	for i := range out.sources {
		out.sources[i].ops = append(out.sources[i].ops, fn)
	}
	return out
}

// Merge unions this collection with another. Queued maps keep applying
// to the images of the collection they were attached to.
func (c *Collection) Merge(other *Collection) *Collection {
	out := c.clone()
	for _, s := range other.clone().sources {
		out.sources = append(out.sources, s)
	}
	return out
}

type loadItem struct {
	scene domain.Scene
	src   int
}

func (c *Collection) items(ctx context.Context) ([]loadItem, error) {
	var items []loadItem
	for i := range c.sources {
		scenes, err := c.sources[i].catalog.Search(ctx, c.sources[i].filter)
		if err != nil {
			return nil, err
		}
		for _, sc := range scenes {
			items = append(items, loadItem{scene: sc, src: i})
		}
	}

	sort.Slice(items, func(a, b int) bool {
		if !items[a].scene.AcquiredAt.Equal(items[b].scene.AcquiredAt) {
			return items[a].scene.AcquiredAt.Before(items[b].scene.AcquiredAt)
		}
		return items[a].scene.ID < items[b].scene.ID
	})

	if c.limit > 0 && len(items) > c.limit {
		items = items[:c.limit]
	}
	return items, nil
}

// Scenes returns the metadata of every scene the collection would load,
// in acquisition order.
func (c *Collection) Scenes(ctx context.Context) ([]domain.Scene, error) {
	items, err := c.items(ctx)
	if err != nil {
		return nil, err
	}
	scenes := make([]domain.Scene, len(items))
	for i, it := range items {
		scenes[i] = it.scene
	}
	return scenes, nil
}

// Size returns the number of scenes without loading payloads.
func (c *Collection) Size(ctx context.Context) (int, error) {
	items, err := c.items(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Images materializes every scene, in acquisition order. An empty
// collection yields an empty slice.
func (c *Collection) Images(ctx context.Context) ([]*Image, error) {
	items, err := c.items(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*Image, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)

	for i := range items {
		idx := i
		g.Go(func() error {
			img, err := c.materialize(gctx, items[idx])
			if err != nil {
				return err
			}
			results[idx] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// First materializes the earliest scene, or nil for an empty collection.
func (c *Collection) First(ctx context.Context) (*Image, error) {
	items, err := c.items(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return c.materialize(ctx, items[0])
}

func (c *Collection) materialize(ctx context.Context, it loadItem) (*Image, error) {
	img, err := c.sources[it.src].catalog.Load(ctx, it.scene)
	if err != nil {
		return nil, err
	}
	if img.Scene == nil {
		sc := it.scene
		img.Scene = &sc
	}
	for _, op := range c.sources[it.src].ops {
		img, err = op(ctx, img)
		if err != nil {
			return nil, err
		}
	}
	return img, nil
}
