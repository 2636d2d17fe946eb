package pipeline

import (
	"context"

	"github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
	"github.com/Iwaschkin/maptoposter/pkg/layercache"
	"github.com/Iwaschkin/maptoposter/pkg/render"
)

// optionalLayer is a layer fetched with a tag selector when its flag is set.
type optionalLayer struct {
	name     string
	flag     layercache.Flags
	selector geo.Selector
}

var optionalLayers = []optionalLayer{
	{render.SourceWater, layercache.FlagWater, geo.WaterSelector},
	{render.SourceWaterways, layercache.FlagWaterways, geo.WaterwaySelector},
	{render.SourceParks, layercache.FlagParks, geo.ParksSelector},
	{render.SourceRailways, layercache.FlagRail, geo.RailwaySelector},
}

// prepared is the outcome of one fetch, shared between coalesced callers.
type prepared struct {
	payload      layercache.Payload
	degradations []Degradation
}

// prepare returns the projected layers for the run, from the layer cache
// when possible. Callers always receive their own copy.
func (r *Runner) prepare(ctx context.Context, ru *run) (layercache.Payload, error) {
	opts := ru.opts
	dist := geo.CompensatedDistance(opts.Distance, opts.Width, opts.Height)
	flags := opts.Flags()
	key := layercache.Normalize(opts.Point.Lat, opts.Point.Lon, dist, flags)
	useCache := opts.Style.EnableLayerCache && r.Layers != nil

	if useCache {
		if p, ok := r.Layers.Get(key); ok {
			ru.result.CacheHit = true
			ru.logger.Debug("layer cache hit", "key", key)
			return p, nil
		}
	}

	coalesce := r.Coalesce && !opts.NoCoalesce && key.Valid()
	fetchCtx := ctx
	if coalesce {
		// Coalesced callers share the fetch, so no single caller may cancel it.
		fetchCtx = context.WithoutCancel(ctx)
	}
	load := func() (prepared, error) {
		p, err := r.fetch(fetchCtx, ru, dist, flags)
		if err != nil {
			return prepared{}, err
		}
		if useCache {
			info := r.Layers.Set(key, p.payload)
			for _, layer := range info.Fallbacks {
				p.degradations = append(p.degradations, Degradation{
					Code:    errors.ErrCodeSizeEstimation,
					Layer:   layer,
					Message: "size could not be measured, assumed fallback size",
				})
			}
			ru.logger.Debug("layer cache set", "key", key, "stored", info.Stored, "bytes", info.SizeBytes)
		}
		return p, nil
	}

	var (
		out prepared
		err error
	)
	if coalesce {
		ch := r.group.DoChan(key.String(), func() (any, error) { return load() })
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
			out = res.Val.(prepared)
			out.payload = out.payload.Clone()
			if res.Shared {
				ru.logger.Debug("shared in-flight fetch", "key", key)
			}
		}
	} else {
		out, err = load()
		if err != nil {
			return nil, err
		}
	}

	for _, d := range out.degradations {
		ru.degrade(d.Code, d.Layer, "%s", d.Message)
	}
	return out.payload, nil
}

// fetch downloads the network and the requested optional layers and
// projects them around the poster center.
func (r *Runner) fetch(ctx context.Context, ru *run, dist float64, flags layercache.Flags) (prepared, error) {
	center := ru.opts.Point
	var out prepared
	note := func(code errors.Code, layer, msg string) {
		out.degradations = append(out.degradations, Degradation{Code: code, Layer: layer, Message: msg})
	}

	network, err := r.Provider.FetchNetwork(ctx, center, dist)
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return out, errors.Wrap(errors.ErrCodePrimaryDataMissing, err,
			"street network at %s within %.0f m", center, dist)
	}
	if network.Empty() {
		return out, errors.New(errors.ErrCodePrimaryDataMissing,
			"no street network at %s within %.0f m", center, dist)
	}

	raw := layercache.Payload{render.SourceRoads: network}
	for _, l := range optionalLayers {
		if !flags.Has(l.flag) {
			continue
		}
		fc, err := r.Provider.FetchFeatures(ctx, center, dist, l.selector)
		switch {
		case err != nil:
			note(errors.ErrCodeDataAbsent, l.name, err.Error())
		case fc.Empty():
			note(errors.ErrCodeDataAbsent, l.name, "no features")
		default:
			raw[l.name] = fc
		}
	}

	primary, fallback := geo.NewMercator(center), geo.NewEquirectangular(center)
	out.payload = make(layercache.Payload, len(raw))
	for name, fc := range raw {
		projected, outcome, err := geo.Project(fc, primary, fallback)
		switch outcome {
		case geo.OutcomeFallback:
			note(errors.ErrCodeProjection, name, "mercator failed, used equirectangular")
		case geo.OutcomeUnprojected:
			note(errors.ErrCodeProjection, name, "left unprojected: "+err.Error())
		}
		out.payload[name] = projected
	}
	return out, nil
}
