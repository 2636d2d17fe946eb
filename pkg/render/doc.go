// Package render draws prepared map layers onto a poster canvas.
//
// # Overview
//
// Rendering is split in three parts:
//
//   - [Layer]: one drawable unit (water polygons, the casing of primary
//     roads, the bottom gradient, the text block) with its z-order and style
//   - [Target]: the output canvas for one format (PNG, SVG or PDF), sized in
//     inches, mapping projected metres onto the page
//   - [Backend]: the code that draws a sorted list of layers onto a target
//
// [BuildLayers] turns the prepared feature collections of a poster into data
// layers; [GradientLayers] and [TextLayer] add the fades and the typography.
//
//	layers := render.BuildLayers(prepared, styleCfg, theme)
//	layers = append(layers, render.GradientLayers(theme, styleCfg.GradientStrength)...)
//	text, _ := render.TextLayer(labels, theme)
//	layers = append(layers, text)
//
//	target, err := render.NewTarget(render.FormatPNG, 12, 16, 300,
//	    render.WithViewport(viewport), render.WithBackground(theme.Color(style.KeyBG)))
//	backend := render.DefaultRegistry().Resolve("canvas")
//	err = backend.RenderLayers(ctx, layers, target)
//	err = target.Encode(w)
//
// # Backends
//
// The [Registry] maps names to backends and never fails a lookup: unknown or
// unavailable names resolve to the default backend. [DefaultRegistry] holds:
//
//   - "canvas" (default, alias "matplotlib"): vector paths on a
//     gonum/plot vg canvas, for every format
//   - "density" (alias "datashader"): raster-only density accumulation of
//     road strokes with blurred glow, delegating all other layers to canvas
//
// # Z-Order
//
// Layers are drawn in ascending [Layer.ZOrder]; equal z-orders keep the
// order they were built in. Road classes add fractional offsets so minor
// roads paint under major roads within the paths, casing and core bands.
package render
