package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
	mapio "github.com/Iwaschkin/maptoposter/pkg/io"
	"github.com/Iwaschkin/maptoposter/pkg/layercache"
	"github.com/Iwaschkin/maptoposter/pkg/pipeline"
)

// exportLayers are the optional layers written by 'export', next to the
// street network.
var exportLayers = []struct {
	name     string
	flag     layercache.Flags
	selector geo.Selector
}{
	{"water", layercache.FlagWater, geo.WaterSelector},
	{"waterways", layercache.FlagWaterways, geo.WaterwaySelector},
	{"parks", layercache.FlagParks, geo.ParksSelector},
	{"rail", layercache.FlagRail, geo.RailwaySelector},
}

type exportOpts struct {
	source   sourceFlags
	city     string
	country  string
	distance float64
	skip     string
	output   string
}

func (c *CLI) exportCommand() *cobra.Command {
	var opts exportOpts

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Save the map data of a city as GeoJSON",
		Long: `Fetch the street network and map layers around a city and save them as one
GeoJSON file. The file can be rendered offline with 'render --geojson'.`,
		Example: `  maptoposter export -c Lisbon -C Portugal -o lisbon.geojson
  maptoposter render -c Lisbon --lat 38.7223 --lon -9.1393 --geojson lisbon.geojson`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.distance == 0 {
				opts.distance = c.Config.Distance
			}
			return c.runExport(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.city, "city", "c", "", "city name (required)")
	cmd.Flags().StringVarP(&opts.country, "country", "C", "", "country name")
	cmd.Flags().Float64VarP(&opts.distance, "distance", "d", 0, fmt.Sprintf("map radius in metres (default %d)", int(pipeline.DefaultDistance)))
	cmd.Flags().StringVar(&opts.skip, "skip", "", "optional layers to leave out: water,waterways,parks,rail")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default <city>.geojson)")
	_ = cmd.MarkFlagRequired("city")
	opts.source.register(cmd)

	return cmd
}

func (c *CLI) runExport(ctx context.Context, opts *exportOpts) error {
	if opts.distance == 0 {
		opts.distance = pipeline.DefaultDistance
	}
	if err := errors.ValidateDistance(opts.distance); err != nil {
		return err
	}
	exclude, err := layercache.ParseFlags(opts.skip)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "--skip")
	}
	out := opts.output
	if out == "" {
		out = pipeline.SanitizeFilename(strings.ToLower(opts.city)) + ".geojson"
	}

	e, err := c.newEnv(ctx, opts.source)
	if err != nil {
		return err
	}
	defer e.Close()

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, "Locating "+opts.city)
	spinner.Start()
	center, err := e.geocode(ctx, opts.city, opts.country, nil)
	if err != nil {
		spinner.StopWithError("Could not locate " + opts.city)
		return err
	}

	spinner.SetMessage("Fetching street network")
	fc, err := e.provider.FetchNetwork(ctx, center, opts.distance)
	if err != nil {
		spinner.StopWithError("Street network download failed")
		return err
	}
	if fc.Empty() {
		spinner.StopWithError("No streets found")
		return errors.New(errors.ErrCodePrimaryDataMissing, "no street network around %s", center)
	}
	merged := &geo.FeatureCollection{Features: fc.Features}
	counts := map[string]int{"streets": fc.Len()}

	for _, l := range exportLayers {
		if exclude.Has(l.flag) {
			continue
		}
		spinner.SetMessage("Fetching " + l.name)
		layer, err := e.provider.FetchFeatures(ctx, center, opts.distance, l.selector)
		if err != nil {
			if ctx.Err() != nil {
				spinner.Stop()
				return ctx.Err()
			}
			c.Logger.Warn("layer skipped", "layer", l.name, "err", err)
			continue
		}
		counts[l.name] = layer.Len()
		if layer != nil {
			merged.Features = append(merged.Features, layer.Features...)
		}
	}

	if err := mapio.ExportGeoJSON(merged, out); err != nil {
		spinner.StopWithError("Could not write " + out)
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "export")
	}
	spinner.StopWithSuccess(fmt.Sprintf("Exported %d features", merged.Len()))
	abs, _ := filepath.Abs(out)
	printFile(abs)
	for _, l := range append([]string{"streets"}, layerNames()...) {
		if n, ok := counts[l]; ok {
			printDetail("%-10s %d", l, n)
		}
	}
	prog.done("exported", "city", opts.city, "features", merged.Len())
	printNextStep("Render it offline", fmt.Sprintf("maptoposter render -c %q --lat %.4f --lon %.4f --geojson %s", opts.city, center.Lat, center.Lon, out))
	return nil
}

func layerNames() []string {
	names := make([]string, len(exportLayers))
	for i, l := range exportLayers {
		names[i] = l.name
	}
	return names
}
