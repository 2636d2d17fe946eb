package cli

import (
	"github.com/spf13/cobra"

	"github.com/Iwaschkin/maptoposter/internal/server"
)

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr   string
		source sourceFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve posters over HTTP",
		Long: `Serve posters over HTTP. POST a JSON poster request to /v1/posters and
the rendered artifact is returned in the response body.`,
		Example: `  maptoposter serve --addr :8080
  curl -X POST localhost:8080/v1/posters -d '{"city":"Paris","country":"France","format":"svg"}' -o paris.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			timeout, err := c.Config.Server.TimeoutDuration()
			if err != nil {
				return err
			}
			e, err := c.newEnv(ctx, source)
			if err != nil {
				return err
			}
			defer e.Close()

			cfg := server.Config{
				Addr:        firstNonEmpty(addr, c.Config.Server.Addr),
				Timeout:     timeout,
				TexturesDir: c.Config.Server.TexturesDir,
				Logger:      c.Logger,
			}
			if e.geocoder != nil {
				cfg.Geocoder = e.geocoder
			}
			return server.New(e.runner, cfg).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default "+server.DefaultAddr+")")
	source.register(cmd)

	return cmd
}
