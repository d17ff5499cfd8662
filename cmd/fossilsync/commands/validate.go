package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/fossilsync/internal/source"
	"github.com/nhle/fossilsync/internal/theme"
)

// ValidateCmd checks every selected target section offline.
var ValidateCmd = &cobra.Command{
	Use:   "validate [target...]",
	Short: "Check target configuration without contacting any server",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	targets, err := a.Targets(args...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var errs []error
	for _, t := range targets {
		if err := source.Validate(t); err != nil {
			fmt.Fprintf(out, "%s\n", FormatError(err))
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "%s %s (%s)\n", theme.SuccessStyle.Render("✓"), t.Name, t.Service)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d invalid targets: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
