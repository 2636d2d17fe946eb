package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/observability"
	"github.com/Iwaschkin/maptoposter/pkg/pipeline"
)

type batchOpts struct {
	posterFlags
	source  sourceFlags
	workers int
	plain   bool
}

func (c *CLI) batchCommand() *cobra.Command {
	var opts batchOpts

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Render posters for every city in a file",
		Long: `Render posters for every city in FILE, one "city,country" per line,
optionally followed by ",lat,lon" to skip geocoding. Blank lines and lines
starting with # are ignored.`,
		Example: `  maptoposter batch cities.txt -t noir -w 8
  maptoposter batch cities.txt --all-themes -o posters`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.merge(c.Config)
			if opts.workers <= 0 {
				opts.workers = c.Config.Workers
			}
			return c.runBatch(cmd.Context(), args[0], &opts, cmd.Flags().Changed("seed"))
		},
	}

	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, fmt.Sprintf("posters rendered in parallel (default %d)", pipeline.DefaultWorkers))
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "log progress lines instead of the interactive view")
	opts.posterFlags.register(cmd)
	c.completePosterFlags(cmd)
	opts.source.register(cmd)

	return cmd
}

func (c *CLI) runBatch(ctx context.Context, path string, opts *batchOpts, seedSet bool) error {
	jobs, skipped, err := pipeline.ParseBatchFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "batch file")
	}
	for _, s := range skipped {
		printWarning("line %d skipped (%s): %s", s.Line, s.Reason, s.Text)
	}
	if len(jobs) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no cities in %s", path)
	}

	cfg, err := opts.styleConfig(seedSet)
	if err != nil {
		return err
	}
	base, err := opts.options(cfg)
	if err != nil {
		return err
	}

	e, err := c.newEnv(ctx, opts.source)
	if err != nil {
		return err
	}
	defer e.Close()

	jobs, err = expandThemes(jobs, &opts.posterFlags, e)
	if err != nil {
		return err
	}

	render := func(ctx context.Context, job pipeline.Job, onStage func(pipeline.StageEvent)) (*pipeline.Result, error) {
		run := base
		run.City, run.Country = job.City, job.Country
		run.Theme = job.Theme
		run.OnStage = onStage
		point, err := e.geocode(ctx, job.City, job.Country, job.Point)
		if err != nil {
			return nil, err
		}
		run.Point = point
		res, err := e.runner.Execute(ctx, run)
		if err != nil {
			return nil, err
		}
		path := opts.outputPath(job.City, res.Theme, res.Format, false)
		if err := writeArtifact(path, res.Artifact); err != nil {
			return nil, err
		}
		return res, nil
	}

	counter := observability.NewCacheCounter()
	if !c.Verbose {
		observability.SetCacheHooks(counter)
		defer observability.Reset()
	}

	prog := newProgress(c.Logger)
	var results []pipeline.JobResult
	if !opts.plain && isatty.IsTerminal(os.Stdout.Fd()) {
		results, err = c.runBatchTUI(ctx, jobs, opts.workers, render)
		if err != nil {
			return err
		}
	} else {
		results = pipeline.RunBatch(ctx, jobs, opts.workers, func(ctx context.Context, job pipeline.Job) (*pipeline.Result, error) {
			res, err := render(ctx, job, stageLogger(c.Logger, job.String()))
			if err != nil {
				c.Logger.Error("failed", "job", job, "err", errors.UserMessage(err))
			} else {
				c.Logger.Info("rendered", "job", job, "cache_hit", res.CacheHit)
			}
			return res, err
		})
	}

	summary := pipeline.Summarize(results)
	prog.done("batch finished", "batch", summary.ID[:8], "ok", summary.Succeeded, "failed", summary.Failed)
	printBatchSummary(results, summary)
	if !c.Verbose {
		printCacheCounts(counter)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d posters failed", summary.Failed, len(results))
	}
	return nil
}

// expandThemes repeats every job once per theme for --all-themes.
func expandThemes(jobs []pipeline.Job, flags *posterFlags, e *env) ([]pipeline.Job, error) {
	themes, err := flags.themes(e.runner.Themes)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.Job, 0, len(jobs)*len(themes))
	for _, job := range jobs {
		for _, theme := range themes {
			j := job
			j.Theme = theme
			out = append(out, j)
		}
	}
	return out, nil
}

type stagedJobFunc func(ctx context.Context, job pipeline.Job, onStage func(pipeline.StageEvent)) (*pipeline.Result, error)

// runBatchTUI runs the batch behind the interactive progress view. Quitting
// the view cancels jobs that have not finished.
func (c *CLI) runBatchTUI(ctx context.Context, jobs []pipeline.Job, workers int, fn stagedJobFunc) ([]pipeline.JobResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newBatchModel(jobs, cancel), tea.WithContext(ctx), tea.WithOutput(os.Stderr))

	// The view owns the terminal; keep log lines out of it.
	level := c.Logger.GetLevel()
	c.Logger.SetLevel(log.FatalLevel)
	defer c.Logger.SetLevel(level)

	resultc := make(chan []pipeline.JobResult, 1)
	go func() {
		results := pipeline.RunBatch(ctx, jobs, workers, func(ctx context.Context, job pipeline.Job) (*pipeline.Result, error) {
			p.Send(jobStartedMsg{job: job})
			start := time.Now()
			res, err := fn(ctx, job, func(e pipeline.StageEvent) {
				p.Send(jobStageMsg{job: job, stage: e.Stage})
			})
			p.Send(jobDoneMsg{job: job, result: res, err: err, took: time.Since(start)})
			return res, err
		})
		p.Send(batchDoneMsg{})
		resultc <- results
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("progress view: %w", err)
	}
	cancel()
	return <-resultc, nil
}

func printBatchSummary(results []pipeline.JobResult, summary pipeline.Summary) {
	printNewline()
	for _, r := range results {
		if r.OK() {
			continue
		}
		printError("%s: %s", r.Job, errors.UserMessage(r.Err))
	}
	if summary.Succeeded > 0 {
		printSuccess("%d posters rendered", summary.Succeeded)
	}
	if summary.Failed > 0 {
		printWarning("%d failed", summary.Failed)
	}
}

// printCacheCounts reports cache traffic of the batch.
func printCacheCounts(counter *observability.CacheCounter) {
	for _, keyType := range []string{"geodata", "layers"} {
		hits, misses, _ := counter.Counts(keyType)
		if hits+misses == 0 {
			continue
		}
		printDetail("%s cache: %d hits, %d misses", keyType, hits, misses)
	}
}

func printNewline() { fmt.Println() }
