package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Iwaschkin/maptoposter/pkg/geo"
)

// =============================================================================
// Batch Jobs
// =============================================================================

// Job is one city of a batch.
type Job struct {
	City    string
	Country string
	// Point is set when the batch file carried coordinates, skipping
	// geocoding.
	Point *geo.Point
	// Theme overrides the batch theme, for --all-themes runs.
	Theme string
}

func (j Job) String() string {
	s := j.City
	if j.Country != "" {
		s += ", " + j.Country
	}
	if j.Theme != "" {
		s += " [" + j.Theme + "]"
	}
	return s
}

// JobResult is the outcome of one job.
type JobResult struct {
	Job      Job
	Result   *Result
	Err      error
	Duration time.Duration
}

// OK reports whether the job produced a poster.
func (r JobResult) OK() bool { return r.Err == nil && r.Result != nil }

// JobFunc renders one job.
type JobFunc func(ctx context.Context, job Job) (*Result, error)

// RunBatch runs fn for every job with at most workers jobs in flight
// (DefaultWorkers when workers <= 0). Results are returned in input order.
// A failing job never cancels the others; a cancelled ctx stops jobs that
// have not started yet, which report ctx.Err().
func RunBatch(ctx context.Context, jobs []Job, workers int, fn JobFunc) []JobResult {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make([]JobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			start := time.Now()
			results[i].Job = job
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			res, err := fn(ctx, job)
			results[i].Result = res
			results[i].Err = err
			results[i].Duration = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Summary counts the outcomes of a batch.
type Summary struct {
	ID        string
	Succeeded int
	Failed    int
}

// Summarize counts successes and failures.
func Summarize(results []JobResult) Summary {
	s := Summary{ID: uuid.NewString()}
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// =============================================================================
// Batch Files
// =============================================================================

// SkippedLine is a batch file line that could not be parsed.
type SkippedLine struct {
	Line   int
	Text   string
	Reason string
}

// ParseBatch reads "city,country" lines, optionally followed by ",lat,lon".
// Blank lines and lines starting with # are ignored; malformed lines are
// skipped and reported.
func ParseBatch(r io.Reader) ([]Job, []SkippedLine, error) {
	var (
		jobs    []Job
		skipped []SkippedLine
	)
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		job, reason := parseBatchLine(line)
		if reason != "" {
			skipped = append(skipped, SkippedLine{Line: n, Text: line, Reason: reason})
			continue
		}
		jobs = append(jobs, job)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("read batch file: %w", err)
	}
	return jobs, skipped, nil
}

// ParseBatchFile is ParseBatch on a file.
func ParseBatchFile(path string) ([]Job, []SkippedLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ParseBatch(f)
}

func parseBatchLine(line string) (Job, string) {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) != 2 && len(parts) != 4 {
		return Job{}, "expected city,country or city,country,lat,lon"
	}
	job := Job{City: parts[0], Country: parts[1]}
	if job.City == "" || job.Country == "" {
		return Job{}, "city and country must not be empty"
	}
	if len(parts) == 4 {
		lat, err1 := strconv.ParseFloat(parts[2], 64)
		lon, err2 := strconv.ParseFloat(parts[3], 64)
		p := geo.Point{Lat: lat, Lon: lon}
		if err1 != nil || err2 != nil || !p.Valid() {
			return Job{}, "invalid coordinates"
		}
		job.Point = &p
	}
	return job, ""
}
