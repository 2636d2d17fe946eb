package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Iwaschkin/maptoposter/pkg/pipeline"
)

// newLogger creates the CLI logger. Timestamps read "15:04:05.00".
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress times one operation. Not safe for concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// elapsed is the time since start, rounded to milliseconds.
func (p *progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}

// done logs msg with the elapsed time and any extra key/value pairs.
func (p *progress) done(msg string, keyvals ...any) {
	p.logger.Info(msg, append([]any{"took", p.elapsed()}, keyvals...)...)
}

// stageLogger returns a pipeline stage callback that logs each transition of
// job at debug level, and failures at warn.
func stageLogger(l *log.Logger, job string) func(pipeline.StageEvent) {
	return func(e pipeline.StageEvent) {
		if e.Stage == pipeline.StageFailed {
			l.Warn("stage", "job", job, "stage", e.Stage, "err", e.Err)
			return
		}
		l.Debug("stage", "job", job, "stage", e.Stage, "elapsed", e.Elapsed.Round(time.Millisecond))
	}
}
