package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nhle/fossilsync/internal/model"
	"github.com/nhle/fossilsync/internal/store"
	"github.com/nhle/fossilsync/internal/theme"
)

// TasksCmd lists the tasks kept in the local store.
var TasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List stored tasks",
	RunE:  runTasks,
}

var tasksFilter store.TaskFilter

func init() {
	TasksCmd.Flags().StringVar(&tasksFilter.Target, "target", "", "only tasks of this target")
	TasksCmd.Flags().StringVar(&tasksFilter.Status, "status", "", "only tasks with this status (pending, completed)")
}

func runTasks(cmd *cobra.Command, args []string) error {
	switch tasksFilter.Status {
	case "", model.StatusPending, model.StatusCompleted:
	default:
		return fmt.Errorf("unknown status %q", tasksFilter.Status)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.Store()
	if err != nil {
		return err
	}

	tasks, err := s.GetTasks(commandContext(cmd), tasksFilter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "no tasks")
		return nil
	}
	fmt.Fprintln(out, taskTable(tasks))
	return nil
}

func taskTable(tasks []model.Task) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.UUID[:8],
			t.Target,
			t.Status,
			string(t.Priority),
			t.Description,
		})
	}

	return renderTable(
		[]string{"ID", "Target", "Status", "Pri", "Description"},
		rows,
		func(row, col int) lipgloss.Style {
			switch col {
			case 2:
				return theme.StatusStyle(tasks[row].Status)
			case 3:
				return theme.PriorityStyle(tasks[row].Priority)
			}
			return theme.CellStyle
		},
	)
}
