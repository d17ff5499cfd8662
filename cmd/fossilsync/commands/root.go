package commands

import (
	"strings"

	crdb "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/nhle/fossilsync/internal/app"
	"github.com/nhle/fossilsync/internal/source"
	_ "github.com/nhle/fossilsync/internal/source/fossil"
	"github.com/nhle/fossilsync/internal/theme"
)

var opts app.Options

// RootCmd is the fossilsync entry point.
var RootCmd = &cobra.Command{
	Use:   "fossilsync",
	Short: "Synchronize Fossil ticket reports into a local task list",
	Long: `fossilsync pulls the open tickets of Fossil ticket reports and keeps
them as tasks in a local database.

Examples:
  fossilsync pull                   # Synchronize every configured target
  fossilsync pull --every 10m       # Keep synchronizing every ten minutes
  fossilsync issues my_fossil       # Show what a target would import
  fossilsync tasks --status pending # List stored tasks
  fossilsync uda >> ~/.taskrc       # Declare the custom task fields`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "configuration file (default ~/.config/fossilsync/config.yaml)")
	flags.StringVar(&opts.DBPath, "db", "", "task database (overrides general.db_path)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (overrides general.log_level)")
	flags.BoolVar(&opts.LogJSON, "log-json", false, "emit JSON logs")
	flags.BoolVar(&opts.NonInteractive, "non-interactive", false, "never prompt for passwords")

	RootCmd.AddCommand(PullCmd)
	RootCmd.AddCommand(IssuesCmd)
	RootCmd.AddCommand(TasksCmd)
	RootCmd.AddCommand(UDACmd)
	RootCmd.AddCommand(ValidateCmd)
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

// FormatError renders err with any configuration hints attached to it.
func FormatError(err error) string {
	var b strings.Builder
	b.WriteString(theme.ErrorStyle.Render("error:"))
	b.WriteString(" ")
	b.WriteString(err.Error())

	if source.IsAuthError(err) {
		b.WriteString("\n")
		b.WriteString(theme.HintStyle.Render("check the username and password of the target"))
	}
	if hints := crdb.FlattenHints(err); hints != "" {
		b.WriteString("\n")
		b.WriteString(theme.HintStyle.Render(hints))
	}
	return b.String()
}

// openApp loads the configuration selected by the global flags.
func openApp() (*app.App, error) {
	return app.New(opts)
}
