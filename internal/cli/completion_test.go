package cli

import (
	"io"
	"slices"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Iwaschkin/maptoposter/pkg/render"
	"github.com/Iwaschkin/maptoposter/pkg/style"
)

func TestPosterFlagCompletion(t *testing.T) {
	root := New(io.Discard, log.InfoLevel).RootCommand()

	tests := []struct {
		command string
		flag    string
		want    string
	}{
		{"render", "theme", style.DefaultThemeName},
		{"render", "backend", render.BackendDensity},
		{"render", "format", render.FormatPDF},
		{"batch", "preset", style.Presets()[0].Name},
	}
	for _, tt := range tests {
		t.Run(tt.command+" --"+tt.flag, func(t *testing.T) {
			cmd, _, err := root.Find([]string{tt.command})
			if err != nil {
				t.Fatal(err)
			}
			complete, ok := cmd.GetFlagCompletionFunc(tt.flag)
			if !ok {
				t.Fatalf("no completion registered for --%s", tt.flag)
			}
			vals, dir := complete(cmd, nil, "")
			if dir != cobra.ShellCompDirectiveNoFileComp {
				t.Errorf("directive = %v, want NoFileComp", dir)
			}
			if !slices.Contains(vals, tt.want) {
				t.Errorf("completions %v do not contain %q", vals, tt.want)
			}
		})
	}
}
