package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/nnet"
	"github.com/canopylabs/canopy/internal/pkg/metrics"
	"github.com/canopylabs/canopy/internal/raster"
	"github.com/canopylabs/canopy/internal/sensor"
)

// BuilderOptions tunes the product builder.
type BuilderOptions struct {
	// LandCoverVersion selects the partition map year, default 2020.
	LandCoverVersion int
	// MaxParallelLoads bounds concurrent scene loads, default 8.
	MaxParallelLoads int
}

// Builder assembles product collections: catalog scenes filtered,
// enriched, conditioned and carried through the retrieval networks at
// the requested output resolution.
type Builder struct {
	catalog   raster.Catalog
	partition PartitionSource
	networks  nnet.Source
	sensors   *sensor.Registry
	opts      BuilderOptions
	logger    *zap.Logger
}

// NewBuilder creates a product builder.
func NewBuilder(catalog raster.Catalog, partition PartitionSource, networks nnet.Source, sensors *sensor.Registry, opts BuilderOptions, logger *zap.Logger) *Builder {
	if opts.LandCoverVersion == 0 {
		opts.LandCoverVersion = sensor.DefaultLandCoverVersion
	}
	return &Builder{
		catalog:   catalog,
		partition: partition,
		networks:  networks,
		sensors:   sensors,
		opts:      opts,
		logger:    logger,
	}
}

// Build assembles the lazy product collection for one request. No scene
// payload loads until the caller materializes; an empty filter window
// materializes into an empty product set, not an error. Configuration
// faults (unknown sensor, missing banks, unusable geometry) fail here,
// before any catalog scene work.
func (b *Builder) Build(ctx context.Context, req domain.ProductRequest) (*raster.Collection, error) {
	req.Normalize()

	cfg, err := b.sensors.Get(req.Sensor)
	if err != nil {
		return nil, err
	}
	if len(req.Geometry) == 0 {
		return nil, fmt.Errorf("product request has no geometry")
	}

	bound := req.Geometry.Bound()
	workGrid, err := raster.NewGrid(bound, req.InputScale)
	if err != nil {
		return nil, fmt.Errorf("working grid: %w", err)
	}
	outGrid, err := raster.NewGrid(bound, req.OutputScale)
	if err != nil {
		return nil, fmt.Errorf("output grid: %w", err)
	}

	part, err := b.regionPartition(ctx, req.Geometry, workGrid)
	if err != nil {
		return nil, err
	}

	// The domain drives QC flagging. Passthrough products carry a QC
	// band too, with nothing to flag.
	var set *nnet.BankSet
	dom := unboundedDomain(cfg.InputBands)
	if !req.Variable.IsPassthrough() {
		set, err = b.networks.BankSet(ctx, req.Sensor, req.Variable)
		if err != nil {
			return nil, fmt.Errorf("network banks for %s/%s: %w", req.Sensor, req.Variable, err)
		}
		dom = nnet.DomainFromBank(set.Estimate)
	}

	b.logger.Debug("building product collection",
		zap.String("sensor", req.Sensor),
		zap.String("variable", string(req.Variable)),
		zap.Time("start", req.StartDate),
		zap.Time("end", req.EndDate),
		zap.Float64("inputScale", req.InputScale),
		zap.Float64("outputScale", req.OutputScale))

	col := raster.NewCollection(b.catalog, req.Sensor).
		FilterBounds(bound).
		FilterDate(req.StartDate, req.EndDate).
		FilterCloudCover(req.MaxCloudCover).
		FilterCalendar(req.StartMonth, req.EndMonth).
		Limit(domain.MaxScenesPerWindow)
	if b.opts.MaxParallelLoads > 0 {
		col = col.WithParallelism(b.opts.MaxParallelLoads)
	}

	ops := []raster.MapFunc{
		enrichOp(cfg, req.Geometry),
		reprojectInOp(cfg, workGrid),
		conditionOp(cfg, part),
	}
	if cfg.CloudProbCollection != "" {
		ops = append(ops, cloudProbOp(b.catalog, workGrid))
	}
	ops = append(ops, qcOp(dom))
	if req.Variable.IsPassthrough() {
		ops = append(ops, passthroughOp(cfg, outGrid))
	} else {
		ops = append(ops, retrievalOp(req.Variable, set, outGrid))
	}
	return col.Map(productOp(req.Sensor, string(req.Variable), ops)), nil
}

// productOp runs the per-image transform sequence and records the
// finished product.
func productOp(sensorName, variable string, ops []raster.MapFunc) raster.MapFunc {
	return func(ctx context.Context, img *raster.Image) (*raster.Image, error) {
		start := time.Now()
		var err error
		for _, op := range ops {
			if img, err = op(ctx, img); err != nil {
				return nil, err
			}
		}
		metrics.RecordProduct(sensorName, variable, time.Since(start))
		return img, nil
	}
}

// Summarize runs the filter and cap steps without loading any payload.
func (b *Builder) Summarize(ctx context.Context, req domain.ProductRequest) (*domain.ProductSummary, error) {
	req.Normalize()
	if _, err := b.sensors.Get(req.Sensor); err != nil {
		return nil, err
	}
	if len(req.Geometry) == 0 {
		return nil, fmt.Errorf("product request has no geometry")
	}

	col := raster.NewCollection(b.catalog, req.Sensor).
		FilterBounds(req.Geometry.Bound()).
		FilterDate(req.StartDate, req.EndDate).
		FilterCloudCover(req.MaxCloudCover).
		FilterCalendar(req.StartMonth, req.EndMonth).
		Limit(domain.MaxScenesPerWindow)

	scenes, err := col.Scenes(ctx)
	if err != nil {
		return nil, err
	}

	summary := &domain.ProductSummary{
		SceneCount: len(scenes),
		Capped:     len(scenes) == domain.MaxScenesPerWindow,
		Scenes:     make([]domain.SceneRef, len(scenes)),
	}
	for i, sc := range scenes {
		summary.Scenes[i] = domain.SceneRef{ID: sc.ID, AcquiredAt: sc.AcquiredAt, CloudCover: sc.CloudCover}
	}
	return summary, nil
}

// regionPartition builds the land cover band clipped to the request
// geometry. One band per request: estimate and uncertainty dispatch
// both read it.
func (b *Builder) regionPartition(ctx context.Context, geom orb.Polygon, grid raster.Grid) (*raster.Band, error) {
	part, err := BuildPartition(ctx, b.partition, grid, b.opts.LandCoverVersion)
	if err != nil {
		return nil, err
	}

	img := raster.NewImage(grid, time.Time{})
	img.Bands = append(img.Bands, part)
	clipped := img.Clip(geom)
	out, _ := clipped.Band(BandPartition)
	return out, nil
}

// enrichOp clips to the region, applies the clear-sky mask and attaches
// the date, coordinate and observation geometry bands on the scene's
// native grid.
func enrichOp(cfg *sensor.Config, geom orb.Polygon) raster.MapFunc {
	return func(_ context.Context, img *raster.Image) (*raster.Image, error) {
		out := img.Clip(geom)

		out, err := MaskClear(out, cfg)
		if err != nil {
			return nil, err
		}
		if out, err = AddDateBand(out); err != nil {
			return nil, err
		}
		if out, err = AddCoordinateBands(out); err != nil {
			return nil, err
		}
		return AddGeometryBands(out)
	}
}

// reprojectInOp resamples onto the working grid: mean for continuous
// bands, nearest for the categorical QA band.
func reprojectInOp(cfg *sensor.Config, grid raster.Grid) raster.MapFunc {
	return func(_ context.Context, img *raster.Image) (*raster.Image, error) {
		return img.ReprojectBands(grid, map[string]raster.ResampleMethod{
			cfg.QABand: raster.ResampleNearest,
		}, raster.ResampleMean), nil
	}
}

// conditionOp masks non-land pixels, scales reflectance and attaches
// the shared partition band.
func conditionOp(cfg *sensor.Config, part *raster.Band) raster.MapFunc {
	return func(_ context.Context, img *raster.Image) (*raster.Image, error) {
		out, err := MaskLand(img, part)
		if err != nil {
			return nil, err
		}
		if out, err = ScaleBands(out, cfg); err != nil {
			return nil, err
		}
		return out.AddBands(part)
	}
}

// cloudProbOp merges the scene's cloud probability companion onto the
// working grid as an extra band. Scenes without a companion pass
// through unchanged.
func cloudProbOp(cat raster.Catalog, grid raster.Grid) raster.MapFunc {
	return func(ctx context.Context, img *raster.Image) (*raster.Image, error) {
		if img.Scene == nil {
			return img, nil
		}
		prob, err := cat.LoadCloudProbability(ctx, *img.Scene)
		if err != nil {
			return nil, fmt.Errorf("cloud probability for %s: %w", img.Scene.ID, err)
		}
		if prob == nil {
			return img, nil
		}

		aligned := prob.Reproject(grid, raster.ResampleMean)
		if len(aligned.Bands) == 0 {
			return img, nil
		}
		band := aligned.Bands[0].Clone()
		band.Name = BandCloudProbability
		return img.AddBands(band)
	}
}

// qcOp attaches the domain QC band.
func qcOp(dom *nnet.Domain) raster.MapFunc {
	return func(_ context.Context, img *raster.Image) (*raster.Image, error) {
		return DomainFlags(img, dom)
	}
}

// passthroughOp keeps the conditioned band set, dropping only the QA
// band, and resolves the output grid. No network runs.
func passthroughOp(cfg *sensor.Config, grid raster.Grid) raster.MapFunc {
	return func(_ context.Context, img *raster.Image) (*raster.Image, error) {
		names := make([]string, 0, len(img.Bands))
		for _, b := range img.Bands {
			if b.Name == cfg.QABand {
				continue
			}
			names = append(names, b.Name)
		}
		out, err := img.Select(names...)
		if err != nil {
			return nil, err
		}
		return reprojectOut(out, grid), nil
	}
}

// retrievalOp dispatches the estimate and uncertainty banks, carries
// the ancillary bands and resolves the output grid.
func retrievalOp(variable domain.Variable, set *nnet.BankSet, grid raster.Grid) raster.MapFunc {
	return func(_ context.Context, img *raster.Image) (*raster.Image, error) {
		estimate, err := nnet.Dispatch(img, set.Estimate, BandPartition, string(variable))
		if err != nil {
			return nil, err
		}
		uncertainty, err := nnet.Dispatch(img, set.Uncertainty, BandPartition, variable.UncertaintyBand())
		if err != nil {
			return nil, err
		}

		carry := []string{BandDate, BandQC, BandLongitude, BandLatitude, BandPartition}
		if _, ok := img.Band(BandCloudProbability); ok {
			carry = append(carry, BandCloudProbability)
		}
		out, err := img.Select(carry...)
		if err != nil {
			return nil, err
		}
		if out, err = out.AddBands(estimate, uncertainty); err != nil {
			return nil, err
		}
		return reprojectOut(out, grid), nil
	}
}

// reprojectOut resamples a finished product onto the output grid, mean
// for continuous bands and nearest for the categorical ones.
func reprojectOut(img *raster.Image, grid raster.Grid) *raster.Image {
	return img.ReprojectBands(grid, map[string]raster.ResampleMethod{
		BandPartition: raster.ResampleNearest,
		BandQC:        raster.ResampleNearest,
	}, raster.ResampleMean)
}

// unboundedDomain covers the named bands with an infinite range, for
// products that flag nothing.
func unboundedDomain(bands []string) *nnet.Domain {
	d := &nnet.Domain{
		Bands: append([]string(nil), bands...),
		Min:   make([]float64, len(bands)),
		Max:   make([]float64, len(bands)),
	}
	for i := range bands {
		d.Min[i] = math.Inf(-1)
		d.Max[i] = math.Inf(1)
	}
	return d
}
