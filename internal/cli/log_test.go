package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Iwaschkin/maptoposter/pkg/pipeline"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)

	if logger == nil {
		t.Fatal("newLogger() returned nil")
	}

	// Test that it can log
	logger.Info("test message")

	if buf.Len() == 0 {
		t.Error("logger should have written output")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{
			name:    "info at info level",
			level:   log.InfoLevel,
			logFunc: func(l *log.Logger) { l.Info("test") },
			wantLog: true,
		},
		{
			name:    "debug at info level",
			level:   log.InfoLevel,
			logFunc: func(l *log.Logger) { l.Debug("test") },
			wantLog: false,
		},
		{
			name:    "debug at debug level",
			level:   log.DebugLevel,
			logFunc: func(l *log.Logger) { l.Debug("test") },
			wantLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.level)
			tt.logFunc(logger)

			gotLog := buf.Len() > 0
			if gotLog != tt.wantLog {
				t.Errorf("got log output = %v, want %v", gotLog, tt.wantLog)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, log.InfoLevel))
	time.Sleep(10 * time.Millisecond)

	if prog.elapsed() < 10*time.Millisecond {
		t.Errorf("elapsed() = %v, want at least 10ms", prog.elapsed())
	}
	prog.done("rendered", "city", "paris")

	out := buf.String()
	for _, want := range []string{"rendered", "took=", "city=paris"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}

func TestStageLogger(t *testing.T) {
	var buf bytes.Buffer
	onStage := stageLogger(newLogger(&buf, log.InfoLevel), "paris")

	onStage(pipeline.StageEvent{Stage: pipeline.StagePreparing})
	if buf.Len() != 0 {
		t.Errorf("debug transition logged at info level: %q", buf.String())
	}
	onStage(pipeline.StageEvent{Stage: pipeline.StageFailed, Err: errors.New("no streets")})
	if !strings.Contains(buf.String(), "no streets") {
		t.Errorf("failure not logged: %q", buf.String())
	}
}
