package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	perrors "github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/pipeline"
)

var batchJobs = []pipeline.Job{
	{City: "Paris", Country: "France"},
	{City: "Tokyo", Country: "Japan"},
	{City: "Paris", Country: "France"},
}

func update(t *testing.T, m BatchModel, msgs ...tea.Msg) BatchModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(BatchModel)
	}
	return m
}

func TestBatchModelProgress(t *testing.T) {
	m := newBatchModel(batchJobs, nil)

	m = update(t, m,
		jobStartedMsg{job: batchJobs[0]},
		jobStageMsg{job: batchJobs[0], stage: pipeline.StageCompositing},
		jobStartedMsg{job: batchJobs[1]},
	)
	if m.Rows[0].status != jobRunning || m.Rows[0].stage != pipeline.StageCompositing {
		t.Errorf("row 0 = %+v, want running/compositing", m.Rows[0])
	}
	if m.Rows[2].status != jobPending {
		t.Errorf("duplicate job started early: %+v", m.Rows[2])
	}

	m = update(t, m,
		jobDoneMsg{job: batchJobs[0], result: &pipeline.Result{CacheHit: true}, took: time.Second},
		jobStartedMsg{job: batchJobs[2]},
		jobDoneMsg{job: batchJobs[1], err: perrors.New(perrors.ErrCodeLocationNotFound, "no match")},
	)
	if m.Rows[0].status != jobDone || !m.Rows[0].cacheHit {
		t.Errorf("row 0 = %+v, want done from cache", m.Rows[0])
	}
	if m.Rows[2].status != jobRunning {
		t.Errorf("second Paris row = %+v, want running", m.Rows[2])
	}

	finished, failed := m.Counts()
	if finished != 2 || failed != 1 {
		t.Errorf("Counts() = %d, %d, want 2, 1", finished, failed)
	}

	view := m.View()
	for _, want := range []string{"Rendering 3 posters", "Tokyo, Japan", "LOCATION_NOT_FOUND", "done (cached)", "[2/3]", "1 failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestBatchModelQuitCancels(t *testing.T) {
	cancelled := false
	m := newBatchModel(batchJobs, func() { cancelled = true })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled {
		t.Error("quitting did not cancel the batch")
	}
	if !next.(BatchModel).Quitting || cmd == nil {
		t.Error("quitting should return tea.Quit")
	}
}

func TestBatchModelDone(t *testing.T) {
	m := newBatchModel(batchJobs, nil)
	next, cmd := m.Update(batchDoneMsg{})
	if !next.(BatchModel).Finished || cmd == nil {
		t.Error("batchDoneMsg should finish and quit")
	}
}

func TestBatchModelScroll(t *testing.T) {
	jobs := make([]pipeline.Job, 20)
	for i := range jobs {
		jobs[i] = pipeline.Job{City: string(rune('A' + i))}
	}
	m := newBatchModel(jobs, nil)
	m = update(t, m, tea.WindowSizeMsg{Height: 11})
	if m.Height != 5 {
		t.Fatalf("Height = %d, want 5", m.Height)
	}
	for _, j := range jobs[:8] {
		m = update(t, m, jobStartedMsg{job: j})
	}
	if m.Offset != 3 {
		t.Errorf("Offset = %d, want 3", m.Offset)
	}
}

func TestRowStatus(t *testing.T) {
	tests := []struct {
		row  jobRow
		want string
	}{
		{jobRow{}, "queued"},
		{jobRow{status: jobRunning}, "locating"},
		{jobRow{status: jobRunning, stage: pipeline.StagePostProcessing}, "post processing"},
		{jobRow{status: jobDone}, "done"},
		{jobRow{status: jobFailed, err: errors.New("boom")}, "failed"},
	}
	for _, tt := range tests {
		if got := rowStatus(tt.row); got != tt.want {
			t.Errorf("rowStatus(%+v) = %q, want %q", tt.row, got, tt.want)
		}
	}
}
