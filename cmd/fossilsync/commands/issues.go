package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nhle/fossilsync/internal/model"
	"github.com/nhle/fossilsync/internal/source"
	"github.com/nhle/fossilsync/internal/theme"
)

// IssuesCmd prints the issues a target currently reports, without storing
// them.
var IssuesCmd = &cobra.Command{
	Use:   "issues <target>",
	Short: "Show the open issues a target would import",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssues,
}

var issuesJSON bool

func init() {
	IssuesCmd.Flags().BoolVar(&issuesJSON, "json", false, "print issues as JSON")
}

func runIssues(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	targets, err := a.Targets(args[0])
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	svc, err := source.New(ctx, targets[0], a.Deps())
	if err != nil {
		return err
	}

	issues, err := svc.Issues(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if issuesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(issues)
	}

	if len(issues) == 0 {
		fmt.Fprintln(out, "no open issues")
		return nil
	}
	fmt.Fprintln(out, issueTable(issues))
	return nil
}

func issueTable(issues []model.Issue) string {
	rows := make([][]string, 0, len(issues))
	for _, issue := range issues {
		rows = append(rows, []string{
			string(issue.Priority),
			issue.Project,
			issue.Description,
			strings.Join(issue.Tags, " "),
		})
	}

	return renderTable(
		[]string{"Pri", "Project", "Description", "Tags"},
		rows,
		func(row, col int) lipgloss.Style {
			if col == 0 {
				return theme.PriorityStyle(issues[row].Priority)
			}
			return theme.CellStyle
		},
	)
}
