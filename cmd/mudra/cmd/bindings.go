package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ayusman/mudra/internal/store"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	disabledStyle = cellStyle.Foreground(lipgloss.Color("#666666"))
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3d5a80"))
)

var bindingsCmd = &cobra.Command{
	Use:   "bindings",
	Short: "Inspect gesture bindings",
}

var bindingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the bindings in the database",
	Args:  cobra.NoArgs,
	RunE:  runBindingsList,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent gesture changes",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	rootCmd.AddCommand(bindingsCmd, eventsCmd)
	bindingsCmd.AddCommand(bindingsListCmd)

	eventsCmd.Flags().Int("limit", 20, "number of events to show")
}

func runBindingsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	bindings, err := st.Bindings().List()
	if err != nil {
		return fmt.Errorf("listing bindings: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), bindingTable(bindings))
	return nil
}

func bindingTable(bindings []*store.Binding) string {
	rows := make([][]string, 0, len(bindings))
	for _, b := range bindings {
		target := "-"
		if b.PluginName != "" {
			target = b.PluginName + "/" + b.PluginAction
		}
		next := b.NextMode
		if next == "" {
			next = "-"
		}
		rows = append(rows, []string{
			modeOrAny(b.Mode),
			b.Label,
			b.Action,
			target,
			(time.Duration(b.CooldownMs) * time.Millisecond).String(),
			next,
			strconv.FormatBool(b.Enabled),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("MODE", "GESTURE", "ACTION", "PLUGIN", "COOLDOWN", "NEXT MODE", "ENABLED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(bindings) && !bindings[row].Enabled:
				return disabledStyle
			default:
				return cellStyle
			}
		})
	return t.String()
}

func modeOrAny(mode string) string {
	if mode == "" {
		return "any"
	}
	return mode
}

func runEvents(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	events, err := st.Events().Recent(limit)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			e.CreatedAt.Local().Format("15:04:05.000"),
			e.Previous + " -> " + e.Label,
			modeOrAny(e.Mode),
			e.Status,
			e.Action,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("TIME", "CHANGE", "MODE", "STATUS", "ACTION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(cmd.OutOrStdout(), t.String())
	return nil
}
