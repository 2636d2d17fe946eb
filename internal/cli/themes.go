package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Iwaschkin/maptoposter/pkg/style"
)

// swatchKeys are the theme colors previewed by 'themes'.
var swatchKeys = []string{style.KeyBG, style.KeyText, style.KeyWater, style.KeyParks, style.KeyRoadMotorway, style.KeyRoadResidential}

func (c *CLI) themesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "themes",
		Short: "List available color themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := style.NewStore(c.Config.ThemesDir)
			themes, err := store.All()
			if err != nil {
				printWarning("%v", err)
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(themes)
			}
			fmt.Println(themeTable(themes))
			printNextStep("Render with a theme", "maptoposter render -c Paris -t "+style.DefaultThemeName)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print themes as JSON")
	return cmd
}

func themeTable(themes []style.Theme) string {
	rows := make([][]string, 0, len(themes))
	for _, t := range themes {
		rows = append(rows, []string{t.ID, t.Name, swatch(t), t.Description})
	}
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Theme", "Name", "Colors", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case col == 0:
				return StyleHighlight
			case col == 3:
				return StyleDim
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

// swatch renders a block per previewed color.
func swatch(t style.Theme) string {
	var b strings.Builder
	for _, key := range swatchKeys {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(t.Hex(key))).Render("██"))
	}
	return b.String()
}

func (c *CLI) presetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List built-in style presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := [][]string{}
			for _, p := range style.Presets() {
				effects := strings.Join(p.Config.Effects(), ", ")
				if effects == "" {
					effects = "-"
				}
				rows = append(rows, []string{p.Name, effects, p.Description})
			}
			headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
			t := table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
				Headers("Preset", "Effects", "Description").
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == -1 {
						return headerStyle
					}
					if col == 0 {
						return StyleHighlight
					}
					return lipgloss.NewStyle()
				})
			fmt.Println(t.Render())
			printNextStep("Render with a preset", "maptoposter render -c Paris --preset vintage")
			return nil
		},
	}
}
