package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Iwaschkin/maptoposter/pkg/render"
	"github.com/Iwaschkin/maptoposter/pkg/style"
)

func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion bash|zsh|fish",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script. Theme, preset, backend and format flags
complete to the values maptoposter knows about.

  source <(maptoposter completion bash)
  maptoposter completion zsh > "${fpath[1]}/_maptoposter"
  maptoposter completion fish | source`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return cmd.Root().GenBashCompletionV2(os.Stdout, true)
			}
		},
	}
}

// completePosterFlags registers value completion for the poster flags of cmd.
func (c *CLI) completePosterFlags(cmd *cobra.Command) {
	fixed := func(vals ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return vals, cobra.ShellCompDirectiveNoFileComp
		}
	}

	_ = cmd.RegisterFlagCompletionFunc("theme", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		names, err := style.NewStore(c.Config.ThemesDir).Names()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	var presets []string
	for _, p := range style.Presets() {
		presets = append(presets, p.Name)
	}
	_ = cmd.RegisterFlagCompletionFunc("preset", fixed(presets...))
	_ = cmd.RegisterFlagCompletionFunc("backend", fixed(render.DefaultRegistry().Names()...))
	_ = cmd.RegisterFlagCompletionFunc("format", fixed(render.FormatPNG, render.FormatSVG, render.FormatPDF))
	_ = cmd.RegisterFlagCompletionFunc("style-pack", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "toml"}, cobra.ShellCompDirectiveFilterFileExt
	})
}
