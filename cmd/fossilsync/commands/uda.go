package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nhle/fossilsync/internal/source"
)

// UDACmd prints Taskwarrior declarations for every service's custom fields.
var UDACmd = &cobra.Command{
	Use:   "uda",
	Short: "Print taskrc declarations of the custom task fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeUDAs(cmd.OutOrStdout())
	},
}

func writeUDAs(w io.Writer) error {
	for _, t := range source.Types() {
		f, _ := source.Lookup(t)
		if f.UDAs == nil {
			continue
		}
		for _, u := range f.UDAs() {
			if _, err := fmt.Fprintf(w, "uda.%s.type=%s\nuda.%s.label=%s\n",
				u.Name, u.Type, u.Name, u.Label); err != nil {
				return err
			}
		}
	}
	return nil
}
