package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iwaschkin/maptoposter/pkg/cache"
)

// cacheCommand creates the geodata cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the geodata cache",
		Long: `Manage the cache of OpenStreetMap responses and geocoding results.
The backend (file, redis or mongo) is chosen in the config file.`,
	}

	cmd.AddCommand(c.cacheStatsCommand())
	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

func (c *CLI) openCache(ctx context.Context) (cache.Cache, error) {
	blobs, err := cache.Open(ctx, c.Config.Cache)
	if err != nil {
		return nil, fmt.Errorf("open geodata cache: %w", err)
	}
	return blobs, nil
}

// cacheStatsCommand creates the "cache stats" subcommand.
func (c *CLI) cacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show geodata cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			blobs, err := c.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer blobs.Close()

			backend := c.Config.Cache.Backend
			if backend == "" {
				backend = cache.BackendFile
			}
			printKeyValue("Backend", backend)

			fc, ok := blobs.(*cache.FileCache)
			if !ok {
				printDetail("Usage is only reported for the file backend")
				return nil
			}
			entries, size, err := fc.Usage()
			if err != nil {
				return fmt.Errorf("read cache usage: %w", err)
			}
			printKeyValue("Directory", fc.Dir())
			printKeyValue("Entries", fmt.Sprint(entries))
			printKeyValue("Size", humanBytes(size))
			return nil
		},
	}
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached response",
		RunE: func(cmd *cobra.Command, args []string) error {
			blobs, err := c.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer blobs.Close()

			cl, ok := blobs.(cache.Clearer)
			if !ok {
				return fmt.Errorf("cache backend %q cannot be cleared; entries expire on their own", c.Config.Cache.Backend)
			}
			n, err := cl.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			if n == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d cached entries", n)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the file cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}
